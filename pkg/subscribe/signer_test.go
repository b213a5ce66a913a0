package subscribe

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"giveflow/pkg/types"
	"giveflow/pkg/wallet"
)

func TestCalculateRate(t *testing.T) {
	tests := []struct {
		monthly  string
		decimals int
		want     string
	}{
		// floor(10 * 10^6 / 2592000) = 3
		{"10", 6, "3"},
		// floor(100 * 10^6 / 2592000) = 38
		{"100", 6, "38"},
		{"1000", 6, "385"},
		// 18 decimals keeps precision for small amounts
		{"10", 18, "3858024691358"},
	}

	for _, tt := range tests {
		rate, err := CalculateRate(tt.monthly, tt.decimals)
		require.NoError(t, err, "monthly %q", tt.monthly)
		require.Equal(t, tt.want, rate.String(), "monthly %q decimals %d", tt.monthly, tt.decimals)
	}
}

func TestCalculateRateRejectsBadAmounts(t *testing.T) {
	for _, bad := range []string{"0", "-5", "abc", "", "0.00"} {
		_, err := CalculateRate(bad, 6)
		require.Error(t, err, "monthly %q", bad)
		require.Equal(t, types.ErrInvalidParams, types.KindOf(err), "monthly %q", bad)
	}
}

func TestPackTraitsRoundTrip(t *testing.T) {
	nonce := big.NewInt(7)
	deadline := uint64(1756500000)

	traits := PackTraits(NonceTypeAccount, deadline, nonce)

	nonceType, gotDeadline, gotNonce := UnpackTraits(traits)
	require.Equal(t, uint8(NonceTypeAccount), nonceType)
	require.Equal(t, deadline, gotDeadline)
	require.Equal(t, "7", gotNonce.String())
}

func TestPackTraitsBitLayout(t *testing.T) {
	// nonceType lands in the top 2 bits
	traits := PackTraits(3, 0, big.NewInt(0))
	require.Equal(t, 0, traits.Cmp(new(big.Int).Lsh(big.NewInt(3), 254)))

	// deadline occupies bits 208..253
	traits = PackTraits(0, 1, big.NewInt(0))
	require.Equal(t, 0, traits.Cmp(new(big.Int).Lsh(big.NewInt(1), 208)))

	// nonce stays in the low 128 bits
	traits = PackTraits(0, 0, big.NewInt(255))
	require.Equal(t, "255", traits.String())

	// an oversized nonce is masked to 128 bits
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	traits = PackTraits(0, 0, huge)
	require.Equal(t, "0", traits.String())

	// fields never overlap
	traits = PackTraits(1, 0xFFFF, big.NewInt(42))
	nonceType, deadline, nonce := UnpackTraits(traits)
	require.Equal(t, uint8(1), nonceType)
	require.Equal(t, uint64(0xFFFF), deadline)
	require.Equal(t, "42", nonce.String())
}

func TestSubscribeCallData(t *testing.T) {
	data, err := SubscribeCallData("0x2222222222222222222222222222222222222222", big.NewInt(3), big.NewInt(1))
	require.NoError(t, err)
	// selector + 3 words
	require.Len(t, data, 4+32*3)

	_, err = SubscribeCallData("not-an-address", big.NewInt(3), nil)
	require.Error(t, err)
}

func TestBySigCallDataRequiresSignature(t *testing.T) {
	_, err := BySigCallData(nil)
	require.Error(t, err)

	_, err = BySigCallData(&types.SubscriptionSignatureBundle{})
	require.Error(t, err)
}

// fakeReader serves fixed on-chain state
type fakeReader struct {
	blockTime uint64
	decimals  uint8
	nonce     *big.Int
	domain    *wallet.DomainFields
	err       error
}

func (f *fakeReader) BlockTimestamp(context.Context) (uint64, error) { return f.blockTime, f.err }
func (f *fakeReader) TokenDecimals(context.Context, string) (uint8, error) {
	return f.decimals, f.err
}
func (f *fakeReader) AccountNonce(context.Context, string, string) (*big.Int, error) {
	return f.nonce, f.err
}
func (f *fakeReader) Domain(context.Context, string) (*wallet.DomainFields, error) {
	return f.domain, f.err
}

// fakeSigner records the typed data it was asked to sign
type fakeSigner struct {
	account   types.Account
	signature []byte
	signErr   error
	signed    apitypes.TypedData
	chainID   int64
}

func (f *fakeSigner) ActiveAccount(context.Context) (types.Account, error) {
	return f.account, nil
}

func (f *fakeSigner) SignTypedData(_ context.Context, data apitypes.TypedData, targetChainID int64) ([]byte, error) {
	f.signed = data
	f.chainID = targetChainID
	return f.signature, f.signErr
}

const testContract = "0x5555555555555555555555555555555555555555"

func newTestSigner(reader *fakeReader) *Signer {
	return NewSigner(reader, testContract, 137, zerolog.Nop())
}

func testSignParams() Params {
	return Params{
		MonthlyUSD: "10",
		Target:     "0x2222222222222222222222222222222222222222",
		ProjectID:  big.NewInt(1),
		Token:      "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
	}
}

func TestSignatureBundle(t *testing.T) {
	reader := &fakeReader{
		blockTime: 1756500000,
		decimals:  6,
		nonce:     big.NewInt(4),
		domain:    &wallet.DomainFields{Name: "GiveFlow", Version: "1", ChainID: big.NewInt(137), VerifyingContract: testContract},
	}
	signer := &fakeSigner{
		account:   types.Account{Address: "0x1111111111111111111111111111111111111111", ChainID: 137},
		signature: make([]byte, 65),
	}

	bundle, err := newTestSigner(reader).SignatureBundle(context.Background(), testSignParams(), signer)
	require.NoError(t, err)

	require.Equal(t, signer.account.Address, bundle.Signer)
	require.Len(t, bundle.Signature, 65)
	require.NotEmpty(t, bundle.SubscribeCallData)

	// Deadline derives from the block timestamp, not the local clock
	nonceType, deadline, nonce := UnpackTraits(bundle.Traits)
	require.Equal(t, uint8(NonceTypeAccount), nonceType)
	require.Equal(t, uint64(1756500000+DeadlineWindow), deadline)
	require.Equal(t, "4", nonce.String())

	// The signature targets the settlement chain
	require.Equal(t, int64(137), signer.chainID)
	require.Equal(t, "SignedCall", signer.signed.PrimaryType)
	require.Equal(t, "GiveFlow", signer.signed.Domain.Name)
}

func TestSignatureBundleRequiresAccount(t *testing.T) {
	reader := &fakeReader{blockTime: 1, decimals: 6, nonce: big.NewInt(0), domain: &wallet.DomainFields{}}
	signer := &fakeSigner{account: types.Account{}}

	_, err := newTestSigner(reader).SignatureBundle(context.Background(), testSignParams(), signer)
	require.Error(t, err)
	require.Equal(t, types.ErrWalletNotConnected, types.KindOf(err))
}

func TestSignatureBundleClassifiesRejection(t *testing.T) {
	reader := &fakeReader{
		blockTime: 1756500000,
		decimals:  6,
		nonce:     big.NewInt(0),
		domain:    &wallet.DomainFields{Name: "GiveFlow", Version: "1", ChainID: big.NewInt(137), VerifyingContract: testContract},
	}
	signer := &fakeSigner{
		account: types.Account{Address: "0x1111111111111111111111111111111111111111", ChainID: 137},
		signErr: errors.New("user rejected signing"),
	}

	_, err := newTestSigner(reader).SignatureBundle(context.Background(), testSignParams(), signer)
	require.Error(t, err)
	require.Equal(t, types.ErrSignatureRejected, types.KindOf(err))
}

type codedError struct{ code int }

func (e codedError) Error() string  { return "denied" }
func (e codedError) ErrorCode() int { return e.code }

func TestClassifySigningError(t *testing.T) {
	require.Equal(t, types.ErrSignatureRejected, types.KindOf(classifySigningError(codedError{code: 4001})))
	require.Equal(t, types.ErrSignatureRejected, types.KindOf(classifySigningError(errors.New("Rejected by user"))))
	require.Equal(t, types.ErrSubscriptionFailed, types.KindOf(classifySigningError(errors.New("rpc timeout"))))

	// Already classified errors pass through unchanged
	original := types.NewError(types.ErrInsufficientFunds, "balance too low", nil)
	require.Equal(t, types.ErrInsufficientFunds, types.KindOf(classifySigningError(original)))
}
