package subscribe

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"giveflow/pkg/types"
)

// Subscription contract call fragments
const (
	subscribeABI = `[{"inputs":[{"name":"to","type":"address"},{"name":"rate","type":"uint256"},{"name":"projectId","type":"uint256"}],"name":"subscribe","outputs":[],"type":"function"}]`
	bySigABI     = `[{"inputs":[{"name":"signer","type":"address"},{"name":"traits","type":"uint256"},{"name":"data","type":"bytes"},{"name":"signature","type":"bytes"}],"name":"subscribeBySig","outputs":[],"type":"function"}]`
	depositABI   = `[{"inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"}],"name":"deposit","outputs":[],"type":"function"}]`
	approveABI   = `[{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}]`
)

// SubscribeCallData encodes the subscribe(to, rate, projectId) call that the
// signature authorizes
func SubscribeCallData(target string, rate *big.Int, projectID *big.Int) ([]byte, error) {
	if !common.IsHexAddress(target) {
		return nil, fmt.Errorf("invalid subscription target: %s", target)
	}
	if projectID == nil {
		projectID = big.NewInt(0)
	}

	parsed, err := abi.JSON(strings.NewReader(subscribeABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse subscribe ABI: %w", err)
	}
	return parsed.Pack("subscribe", common.HexToAddress(target), rate, projectID)
}

// BySigCallData encodes the meta-transaction call that executes a signed
// subscribe on behalf of the signer
func BySigCallData(bundle *types.SubscriptionSignatureBundle) ([]byte, error) {
	if bundle == nil || len(bundle.Signature) == 0 {
		return nil, fmt.Errorf("signature bundle is empty")
	}

	parsed, err := abi.JSON(strings.NewReader(bySigABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bySig ABI: %w", err)
	}
	return parsed.Pack("subscribeBySig",
		common.HexToAddress(bundle.Signer),
		bundle.Traits,
		bundle.SubscribeCallData,
		bundle.Signature,
	)
}

// DepositCallData encodes a deposit(account, amount) call funding the stream
func DepositCallData(account string, depositAmount *big.Int) ([]byte, error) {
	parsed, err := abi.JSON(strings.NewReader(depositABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse deposit ABI: %w", err)
	}
	return parsed.Pack("deposit", common.HexToAddress(account), depositAmount)
}

// ApproveCallData encodes an ERC-20 approve(spender, amount) call
func ApproveCallData(spender string, approveAmount *big.Int) ([]byte, error) {
	parsed, err := abi.JSON(strings.NewReader(approveABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse approve ABI: %w", err)
	}
	return parsed.Pack("approve", common.HexToAddress(spender), approveAmount)
}
