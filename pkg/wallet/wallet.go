// Package wallet provides the signing and transaction capabilities the
// donation engine consumes. The engine only sees the Wallet interface; the
// concrete implementation here drives EVM chains with a local private key.
package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"giveflow/pkg/types"
)

// Wallet is the black-box capability surface consumed by the engine
type Wallet interface {
	// ActiveAccount returns the current account and active chain
	ActiveAccount(ctx context.Context) (types.Account, error)

	// SendTransaction signs and broadcasts a transaction on the active chain
	SendTransaction(ctx context.Context, tx types.TransactionRequest) (string, error)

	// SignTypedData produces an EIP-712 signature. The typed data's domain is
	// pinned to targetChainID regardless of the wallet's active chain.
	SignTypedData(ctx context.Context, data apitypes.TypedData, targetChainID int64) ([]byte, error)

	// SwitchChain changes the active chain
	SwitchChain(ctx context.Context, chainID int64) error

	// TransferToken sends a plain token transfer on the active chain.
	// Native tokens move by value; ERC-20 tokens via the transfer method.
	TransferToken(ctx context.Context, token types.Token, to string, amount *big.Int) (string, error)
}

// WalletRejectionCode is the EIP-1193 code wallets use when the user declines
const WalletRejectionCode = 4001
