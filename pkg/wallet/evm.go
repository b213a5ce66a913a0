package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/rs/zerolog"

	"giveflow/pkg/route"
	"giveflow/pkg/types"
)

// Network holds the connection settings for one EVM chain
type Network struct {
	ChainID  int64
	RPCUrl   string
	GasPrice *int64  // optional override, wei
	GasLimit *uint64 // optional override
}

// ERC20 transfer function ABI
const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// EVMWallet signs and sends transactions with a local private key across a
// set of configured networks. One network is "active" at a time, mirroring
// how a browser wallet exposes a single connected chain.
type EVMWallet struct {
	networks   map[int64]Network
	privateKey *ecdsa.PrivateKey
	address    common.Address
	log        zerolog.Logger

	mu      sync.Mutex
	clients map[int64]*ethclient.Client
	active  int64
}

// NewEVMWallet creates a wallet from a private key and network set.
// initialChainID selects the starting active chain.
func NewEVMWallet(privateKeyHex string, networks map[int64]Network, initialChainID int64, log zerolog.Logger) (*EVMWallet, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	if _, exists := networks[initialChainID]; !exists {
		return nil, fmt.Errorf("chain %d not configured", initialChainID)
	}

	return &EVMWallet{
		networks:   networks,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		log:        log,
		clients:    make(map[int64]*ethclient.Client),
		active:     initialChainID,
	}, nil
}

// Address returns the wallet's account address
func (w *EVMWallet) Address() string {
	return w.address.Hex()
}

// ActiveAccount returns the account address and the currently active chain
func (w *EVMWallet) ActiveAccount(_ context.Context) (types.Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return types.Account{Address: w.address.Hex(), ChainID: w.active}, nil
}

// SwitchChain changes the active chain, dialing its RPC endpoint if needed
func (w *EVMWallet) SwitchChain(_ context.Context, chainID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active == chainID {
		return nil
	}
	if _, err := w.clientLocked(chainID); err != nil {
		return err
	}

	w.log.Debug().Int64("from", w.active).Int64("to", chainID).Msg("switching active chain")
	w.active = chainID
	return nil
}

// Client returns a connected RPC client for the given chain
func (w *EVMWallet) Client(chainID int64) (*ethclient.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clientLocked(chainID)
}

// clientLocked dials lazily and caches the connection (must hold w.mu)
func (w *EVMWallet) clientLocked(chainID int64) (*ethclient.Client, error) {
	if client, exists := w.clients[chainID]; exists {
		return client, nil
	}

	network, exists := w.networks[chainID]
	if !exists {
		return nil, fmt.Errorf("chain %d not configured", chainID)
	}
	if network.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for chain %d", chainID)
	}

	client, err := ethclient.Dial(network.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	w.clients[chainID] = client
	return client, nil
}

// activeNetwork returns the active chain's client and settings
func (w *EVMWallet) activeNetwork() (*ethclient.Client, Network, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	client, err := w.clientLocked(w.active)
	if err != nil {
		return nil, Network{}, err
	}
	return client, w.networks[w.active], nil
}

// SendTransaction signs and broadcasts a transaction on the active chain
func (w *EVMWallet) SendTransaction(ctx context.Context, req types.TransactionRequest) (string, error) {
	client, network, err := w.activeNetwork()
	if err != nil {
		return "", err
	}

	if !common.IsHexAddress(req.To) {
		return "", fmt.Errorf("invalid destination address: %s", req.To)
	}
	to := common.HexToAddress(req.To)

	var data []byte
	if req.Data != "" {
		data, err = hexutil.Decode(req.Data)
		if err != nil {
			return "", fmt.Errorf("invalid call data: %w", err)
		}
	}

	value := big.NewInt(0)
	if req.Value != "" && req.Value != "0" {
		parsed, ok := new(big.Int).SetString(strings.TrimPrefix(req.Value, "0x"), valueBase(req.Value))
		if !ok {
			return "", fmt.Errorf("invalid transaction value: %s", req.Value)
		}
		value = parsed
	}

	nonce, err := client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := w.gasPrice(ctx, client, network)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit, err := w.gasLimit(ctx, client, network, req, to, value, data)
	if err != nil {
		return "", err
	}

	tx := ethtypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)

	chainID := big.NewInt(network.ChainID)
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chainID), w.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return signedTx.Hash().Hex(), nil
}

// TransferToken sends a plain transfer of token to the recipient
func (w *EVMWallet) TransferToken(ctx context.Context, token types.Token, to string, amount *big.Int) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient address: %s", to)
	}

	if isNative(token.Address) {
		return w.SendTransaction(ctx, types.TransactionRequest{
			To:    to,
			Value: amount.String(),
		})
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return "", fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	data, err := parsedABI.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack transfer data: %w", err)
	}

	return w.SendTransaction(ctx, types.TransactionRequest{
		To:   token.Address,
		Data: hexutil.Encode(data),
	})
}

// SignTypedData hashes EIP-712 typed data and signs the digest. The domain in
// the typed data already targets targetChainID; the active chain is not
// consulted, so a wallet connected elsewhere still signs the settlement
// chain's domain.
func (w *EVMWallet) SignTypedData(_ context.Context, data apitypes.TypedData, _ int64) ([]byte, error) {
	domainSeparator, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := data.HashStruct(data.PrimaryType, data.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	digest := crypto.Keccak256(rawData)

	signature, err := crypto.Sign(digest, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}

	// Recovery ID to Ethereum V convention
	signature[64] += 27

	return signature, nil
}

// gasPrice returns the configured override or the network's suggestion
func (w *EVMWallet) gasPrice(ctx context.Context, client *ethclient.Client, network Network) (*big.Int, error) {
	if network.GasPrice != nil {
		return big.NewInt(*network.GasPrice), nil
	}
	return client.SuggestGasPrice(ctx)
}

// gasLimit picks, in order: the request's gas, the network override, an
// estimate with a 20% buffer, or the plain-transfer default.
func (w *EVMWallet) gasLimit(ctx context.Context, client *ethclient.Client, network Network, req types.TransactionRequest, to common.Address, value *big.Int, data []byte) (uint64, error) {
	if req.Gas > 0 {
		return req.Gas, nil
	}
	if network.GasLimit != nil {
		return *network.GasLimit, nil
	}
	if len(data) == 0 {
		return 21000, nil
	}

	msg := ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  data,
	}
	estimated, err := client.EstimateGas(ctx, msg)
	if err != nil {
		w.log.Debug().Err(err).Msg("gas estimation failed, using default")
		return 300000, nil
	}
	return estimated * 120 / 100, nil
}

// Close closes all RPC connections
func (w *EVMWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, client := range w.clients {
		client.Close()
	}
	w.clients = make(map[int64]*ethclient.Client)
}

func isNative(address string) bool {
	addr := strings.ToLower(address)
	return addr == "" || addr == route.NativeZeroAddress || addr == route.NativeFFAddress
}

// valueBase picks the numeric base for a transaction value string
func valueBase(value string) int {
	if strings.HasPrefix(value, "0x") {
		return 16
	}
	return 10
}
