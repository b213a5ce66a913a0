package types

import (
	"math/big"
	"time"
)

// DonationPath identifies how a donation reaches the settlement token
type DonationPath string

const (
	PathDirect        DonationPath = "direct"          // Same token, same chain - plain transfer
	PathSameChainSwap DonationPath = "same-chain-swap" // Same chain, different token - DEX swap
	PathCrossChain    DonationPath = "cross-chain"     // Different chain - bridge deposit
)

// Token is an immutable snapshot of a donatable asset
type Token struct {
	ChainID  int64  `json:"chain_id"`
	Address  string `json:"address"` // 20-byte hex, or a native sentinel
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Balance  string `json:"balance,omitempty"` // smallest units, optional
}

// TransactionRequest is an unsigned transaction payload produced by a quote
type TransactionRequest struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
	Gas   uint64 `json:"gas,omitempty"`
}

// IsEmpty reports whether the request carries neither a destination nor call data
func (t TransactionRequest) IsEmpty() bool {
	return t.To == "" && t.Data == ""
}

// QuoteFees holds the USD-denominated fee breakdown of a quote
type QuoteFees struct {
	TotalUSD  string `json:"total_usd"`
	BridgeUSD string `json:"bridge_usd"`
	SwapUSD   string `json:"swap_usd"`
}

// NormalizedQuote is the uniform quote shape shared by all three donation paths.
// The three amount fields are non-negative integer strings in the token's
// smallest unit; for the direct path all three are equal.
type NormalizedQuote struct {
	ExpectedOutputAmount string               `json:"expected_output_amount"`
	MinOutputAmount      string               `json:"min_output_amount"`
	InputAmount          string               `json:"input_amount"`
	ExpectedFillTimeSec  int                  `json:"expected_fill_time_sec"`
	Fees                 QuoteFees            `json:"fees"`
	SwapTransaction      TransactionRequest   `json:"swap_transaction"`
	ApprovalTransactions []TransactionRequest `json:"approval_transactions"`
	OriginChainID        int64                `json:"origin_chain_id"`
	DestinationChainID   int64                `json:"destination_chain_id"`
	DepositID            string               `json:"deposit_id,omitempty"`
	Path                 DonationPath         `json:"path"`
	UserPays             string               `json:"user_pays"` // human-readable source amount
}

// SubscriptionSignatureBundle is the output of the subscription signing step
type SubscriptionSignatureBundle struct {
	Signature         []byte   // 65-byte ECDSA signature
	Traits            *big.Int // packed word: nonceType(2) | deadline(46) | reserved(80) | nonce(128)
	SubscribeCallData []byte
	Signer            string
}

// ExecutionResult is returned to the caller after a one-time donation
type ExecutionResult struct {
	ID     string       `json:"id"`
	TxHash string       `json:"tx_hash"`
	Path   DonationPath `json:"path"`
	Amount string       `json:"amount"` // smallest units as executed
}

// SubscriptionResult is returned to the caller after a subscription is created
type SubscriptionResult struct {
	ID            string       `json:"id"`
	TxHashes      []string     `json:"tx_hashes"`
	Path          DonationPath `json:"path"`
	MonthlyUSD    string       `json:"monthly_usd"`
	RatePerSecond string       `json:"rate_per_second"`
	Signer        string       `json:"signer"`
}

// ChainInfo describes a chain supported by the bridge provider
type ChainInfo struct {
	ChainID   int64  `json:"chainId"`
	Name      string `json:"name"`
	PublicRPC string `json:"publicRpcUrl,omitempty"`
	Explorer  string `json:"explorerUrl,omitempty"`
}

// Account is the wallet's current account snapshot
type Account struct {
	Address string
	ChainID int64
}

// IsConnected reports whether the wallet has an active account
func (a Account) IsConnected() bool {
	return a.Address != ""
}

// SubscriptionStage is a step of the subscription creation state machine
type SubscriptionStage string

const (
	StageIdle        SubscriptionStage = "idle"
	StageSwitching   SubscriptionStage = "switching"
	StageSigning     SubscriptionStage = "signing"
	StageBuilding    SubscriptionStage = "building"
	StageReturning   SubscriptionStage = "returning"
	StageQuoting     SubscriptionStage = "quoting"
	StageApproving   SubscriptionStage = "approving"
	StageSubscribing SubscriptionStage = "subscribing"
	StageConfirming  SubscriptionStage = "confirming"
	StageCompleted   SubscriptionStage = "completed"
	StageFailed      SubscriptionStage = "failed"
)

// ProgressFunc receives state machine transitions during subscription creation
type ProgressFunc func(stage SubscriptionStage)

// ChainCacheTTL is how long a fetched chain list stays fresh
const ChainCacheTTL = 5 * time.Minute

// SecondsPerMonth is the fixed month length used for streaming rates (30 days)
const SecondsPerMonth = 30 * 24 * 3600
