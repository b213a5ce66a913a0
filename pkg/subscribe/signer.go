// Package subscribe builds and signs the off-chain authorization that lets
// the settlement-chain subscription contract open a token stream on the
// donor's behalf (a bySig meta-transaction).
package subscribe

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"giveflow/pkg/amount"
	"giveflow/pkg/types"
	"giveflow/pkg/wallet"
)

// DeadlineWindow is how long a subscription signature stays valid
const DeadlineWindow = 3600 // seconds

// NonceTypeAccount selects account-sequential replay protection in traits
const NonceTypeAccount = 0

// ChainReader is the read-only on-chain surface the signer needs
type ChainReader interface {
	BlockTimestamp(ctx context.Context) (uint64, error)
	TokenDecimals(ctx context.Context, token string) (uint8, error)
	AccountNonce(ctx context.Context, contract, account string) (*big.Int, error)
	Domain(ctx context.Context, contract string) (*wallet.DomainFields, error)
}

// TypedDataSigner is the signing capability the signer consumes
type TypedDataSigner interface {
	ActiveAccount(ctx context.Context) (types.Account, error)
	SignTypedData(ctx context.Context, data apitypes.TypedData, targetChainID int64) ([]byte, error)
}

// Params describe the subscription to authorize
type Params struct {
	MonthlyUSD string // human-readable monthly amount, e.g. "10"
	Target     string // stream recipient
	ProjectID  *big.Int
	Token      string // settlement token whose decimals scale the rate
}

// Signer builds subscription signature bundles against one contract on the
// settlement chain
type Signer struct {
	reader   ChainReader
	contract string
	chainID  int64
	log      zerolog.Logger
}

// NewSigner creates a subscription signer for the given settlement-chain contract
func NewSigner(reader ChainReader, contract string, settlementChainID int64, log zerolog.Logger) *Signer {
	return &Signer{
		reader:   reader,
		contract: contract,
		chainID:  settlementChainID,
		log:      log,
	}
}

// SignatureBundle reads the on-chain state the signature depends on, encodes
// the subscribe call, and obtains the user's EIP-712 signature. The deadline
// comes from the chain's block timestamp, not the local clock, so clock skew
// cannot produce signatures the contract rejects.
func (s *Signer) SignatureBundle(ctx context.Context, params Params, signerCap TypedDataSigner) (*types.SubscriptionSignatureBundle, error) {
	account, err := signerCap.ActiveAccount(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrWalletNotConnected, "failed to read active account", err)
	}
	if !account.IsConnected() {
		return nil, types.NewError(types.ErrWalletNotConnected, "no active wallet account", nil)
	}

	blockTime, err := s.reader.BlockTimestamp(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrSubscriptionFailed, "failed to read block timestamp", err)
	}
	deadline := blockTime + DeadlineWindow

	// The three reads are independent of each other but all feed the
	// signature, so they run concurrently.
	var (
		domain   *wallet.DomainFields
		nonce    *big.Int
		decimals uint8
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		domain, err = s.reader.Domain(groupCtx, s.contract)
		return err
	})
	group.Go(func() error {
		var err error
		nonce, err = s.reader.AccountNonce(groupCtx, s.contract, account.Address)
		return err
	})
	group.Go(func() error {
		var err error
		decimals, err = s.reader.TokenDecimals(groupCtx, params.Token)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, types.NewError(types.ErrSubscriptionFailed, "failed to read subscription contract state", err)
	}

	rate, err := CalculateRate(params.MonthlyUSD, int(decimals))
	if err != nil {
		return nil, err
	}

	callData, err := SubscribeCallData(params.Target, rate, params.ProjectID)
	if err != nil {
		return nil, types.NewError(types.ErrSubscriptionFailed, "failed to encode subscribe call", err)
	}

	traits := PackTraits(NonceTypeAccount, deadline, nonce)

	typedData := s.typedData(domain, traits, callData)

	signature, err := signerCap.SignTypedData(ctx, typedData, s.chainID)
	if err != nil {
		return nil, classifySigningError(err)
	}

	s.log.Debug().Str("signer", account.Address).Uint64("deadline", deadline).Msg("subscription signature obtained")

	return &types.SubscriptionSignatureBundle{
		Signature:         signature,
		Traits:            traits,
		SubscribeCallData: callData,
		Signer:            account.Address,
	}, nil
}

// typedData constructs the EIP-712 payload over {traits, data}, explicitly
// pinning the domain to the settlement chain
func (s *Signer) typedData(domain *wallet.DomainFields, traits *big.Int, callData []byte) apitypes.TypedData {
	chainID := domain.ChainID
	if chainID == nil || chainID.Sign() == 0 {
		chainID = big.NewInt(s.chainID)
	}

	verifying := domain.VerifyingContract
	if verifying == "" {
		verifying = s.contract
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"SignedCall": []apitypes.Type{
				{Name: "traits", Type: "uint256"},
				{Name: "data", Type: "bytes"},
			},
		},
		PrimaryType: "SignedCall",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*ethmath.HexOrDecimal256)(chainID),
			VerifyingContract: verifying,
		},
		Message: apitypes.TypedDataMessage{
			"traits": (*ethmath.HexOrDecimal256)(traits),
			"data":   hexutil.Encode(callData),
		},
	}
}

// CalculateRate converts a monthly USD amount to a per-second streaming rate
// in the token's smallest unit: floor(monthly * 10^decimals / secondsPerMonth).
// Truncation towards zero means sub-unit precision is lost for small monthly
// amounts; callers must tolerate the rounding.
func CalculateRate(monthlyUSD string, decimals int) (*big.Int, error) {
	if !amount.IsPositiveDecimal(monthlyUSD) {
		return nil, types.NewError(types.ErrInvalidParams, fmt.Sprintf("monthly amount must be a positive decimal, got %q", monthlyUSD), nil)
	}

	monthly, err := amount.ToSmallestUnit(monthlyUSD, decimals)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidParams, "invalid monthly amount", err)
	}

	return monthly.Quo(monthly, big.NewInt(types.SecondsPerMonth)), nil
}

// Traits bit layout, most significant bits first:
//
//	nonceType: 2 bits | deadline: 46 bits | reserved: 80 bits | nonce: 128 bits
var (
	deadlineMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 46), big.NewInt(1))
	nonceMask    = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// PackTraits packs the signature traits word
func PackTraits(nonceType uint8, deadline uint64, nonce *big.Int) *big.Int {
	traits := new(big.Int).Lsh(big.NewInt(int64(nonceType&0x3)), 254)

	d := new(big.Int).And(new(big.Int).SetUint64(deadline), deadlineMask)
	traits.Or(traits, d.Lsh(d, 208))

	n := new(big.Int).And(nonce, nonceMask)
	traits.Or(traits, n)

	return traits
}

// UnpackTraits splits a traits word back into its fields
func UnpackTraits(traits *big.Int) (nonceType uint8, deadline uint64, nonce *big.Int) {
	nonceType = uint8(new(big.Int).Rsh(traits, 254).Uint64())
	deadline = new(big.Int).And(new(big.Int).Rsh(traits, 208), deadlineMask).Uint64()
	nonce = new(big.Int).And(traits, nonceMask)
	return
}

// classifySigningError maps wallet signing failures per the rejection rules
func classifySigningError(err error) error {
	if types.IsClassified(err) {
		return err
	}

	var coded interface{ ErrorCode() int }
	if ok := asErrorCode(err, &coded); ok && coded.ErrorCode() == wallet.WalletRejectionCode {
		return types.NewError(types.ErrSignatureRejected, "signature request rejected", err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "rejected") {
		return types.NewError(types.ErrSignatureRejected, "signature request rejected", err)
	}
	return types.NewError(types.ErrSubscriptionFailed, "subscription signing failed", err)
}

func asErrorCode(err error, target *interface{ ErrorCode() int }) bool {
	for err != nil {
		if coded, ok := err.(interface{ ErrorCode() int }); ok {
			*target = coded
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
