package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Read-only ABI fragments used for on-chain queries
const (
	erc20ReadABI = `[
		{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
		{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
	]`
	noncesABI = `[{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"nonces","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`
	// EIP-5267 domain introspection
	eip712DomainABI = `[{"constant":true,"inputs":[],"name":"eip712Domain","outputs":[{"name":"fields","type":"bytes1"},{"name":"name","type":"string"},{"name":"version","type":"string"},{"name":"chainId","type":"uint256"},{"name":"verifyingContract","type":"address"},{"name":"salt","type":"bytes32"},{"name":"extensions","type":"uint256[]"}],"type":"function"}]`
)

// DomainFields are the EIP-712 domain parameters read from a contract
type DomainFields struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract string
}

// Reader performs read-only calls against a single chain
type Reader struct {
	client *ethclient.Client
}

// NewReader wraps an RPC client for read-only queries
func NewReader(client *ethclient.Client) *Reader {
	return &Reader{client: client}
}

// BlockTimestamp returns the latest block's timestamp. The chain, not the
// local clock, is the source of truth for signature deadlines.
func (r *Reader) BlockTimestamp(ctx context.Context) (uint64, error) {
	header, err := r.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block header: %w", err)
	}
	return header.Time, nil
}

// TokenDecimals reads an ERC-20 token's decimals
func (r *Reader) TokenDecimals(ctx context.Context, token string) (uint8, error) {
	result, err := r.call(ctx, erc20ReadABI, token, "decimals")
	if err != nil {
		return 0, err
	}
	if len(result) < 32 {
		return 0, fmt.Errorf("short decimals response from %s", token)
	}
	return result[31], nil
}

// Allowance reads an ERC-20 allowance from owner to spender
func (r *Reader) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20ReadABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	data, err := parsedABI.Pack("allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("failed to pack allowance call: %w", err)
	}

	result, err := r.rawCall(ctx, token, data)
	if err != nil {
		return nil, err
	}

	return new(big.Int).SetBytes(result), nil
}

// AccountNonce reads a contract's replay-protection nonce for an account
func (r *Reader) AccountNonce(ctx context.Context, contract, account string) (*big.Int, error) {
	parsedABI, err := abi.JSON(strings.NewReader(noncesABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nonces ABI: %w", err)
	}

	data, err := parsedABI.Pack("nonces", common.HexToAddress(account))
	if err != nil {
		return nil, fmt.Errorf("failed to pack nonces call: %w", err)
	}

	result, err := r.rawCall(ctx, contract, data)
	if err != nil {
		return nil, err
	}

	return new(big.Int).SetBytes(result), nil
}

// Domain reads a contract's EIP-712 domain parameters via EIP-5267
func (r *Reader) Domain(ctx context.Context, contract string) (*DomainFields, error) {
	parsedABI, err := abi.JSON(strings.NewReader(eip712DomainABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse eip712Domain ABI: %w", err)
	}

	data, err := parsedABI.Pack("eip712Domain")
	if err != nil {
		return nil, fmt.Errorf("failed to pack eip712Domain call: %w", err)
	}

	result, err := r.rawCall(ctx, contract, data)
	if err != nil {
		return nil, err
	}

	values, err := parsedABI.Unpack("eip712Domain", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack eip712Domain response: %w", err)
	}
	if len(values) < 5 {
		return nil, fmt.Errorf("short eip712Domain response from %s", contract)
	}

	name, _ := values[1].(string)
	version, _ := values[2].(string)
	chainID, _ := values[3].(*big.Int)
	verifying, _ := values[4].(common.Address)

	return &DomainFields{
		Name:              name,
		Version:           version,
		ChainID:           chainID,
		VerifyingContract: verifying.Hex(),
	}, nil
}

// call packs a no-argument method and executes it against the contract
func (r *Reader) call(ctx context.Context, abiJSON, contract, method string) ([]byte, error) {
	parsedABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	data, err := parsedABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	return r.rawCall(ctx, contract, data)
}

func (r *Reader) rawCall(ctx context.Context, contract string, data []byte) ([]byte, error) {
	to := common.HexToAddress(contract)
	msg := ethereum.CallMsg{To: &to, Data: data}

	result, err := r.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}
	return result, nil
}
