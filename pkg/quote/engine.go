// Package quote turns a classified donation into a normalized quote with a
// uniform shape across all three execution paths.
package quote

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"giveflow/pkg/amount"
	"giveflow/pkg/bridge"
	"giveflow/pkg/metrics"
	"giveflow/pkg/route"
	"giveflow/pkg/swap"
	"giveflow/pkg/types"
)

// DefaultSlippageBps is the slippage tolerance passed to both providers (1%)
const DefaultSlippageBps = 100

// BridgeQuoter is the cross-chain quoting dependency
type BridgeQuoter interface {
	GetQuote(ctx context.Context, params bridge.QuoteParams) (*types.NormalizedQuote, error)
}

// SwapQuoter is the same-chain swap quoting dependency
type SwapQuoter interface {
	GetQuote(ctx context.Context, params swap.QuoteParams) (*swap.Quote, error)
}

// Engine produces normalized quotes. One long-lived instance holds the
// adapter references; each call is otherwise stateless.
type Engine struct {
	settlement  types.Token
	bridge      BridgeQuoter
	swap        SwapQuoter
	slippageBps int
	log         zerolog.Logger
}

// NewEngine creates a quote engine pinned to the settlement token
func NewEngine(settlement types.Token, bridgeQuoter BridgeQuoter, swapQuoter SwapQuoter, log zerolog.Logger) *Engine {
	return &Engine{
		settlement:  settlement,
		bridge:      bridgeQuoter,
		swap:        swapQuoter,
		slippageBps: DefaultSlippageBps,
		log:         log,
	}
}

// Classify returns the donation path for a source token
func (e *Engine) Classify(source types.Token) types.DonationPath {
	return route.Classify(source, e.settlement.ChainID, e.settlement.Address)
}

// CalculateQuote produces a normalized quote for sending recipientAmount of
// the settlement token to the recipient, paid from the source token.
// recipientAmount is human-readable, e.g. "100" for $100.
func (e *Engine) CalculateQuote(ctx context.Context, source types.Token, recipientAmount, depositor, recipient string) (*types.NormalizedQuote, error) {
	if !amount.IsPositiveDecimal(recipientAmount) {
		return nil, types.NewError(types.ErrInvalidParams, fmt.Sprintf("recipient amount must be a positive decimal, got %q", recipientAmount), nil)
	}

	outputUnits, err := amount.ToSmallestUnit(recipientAmount, e.settlement.Decimals)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidParams, "invalid recipient amount", err)
	}

	path := e.Classify(source)

	var result *types.NormalizedQuote
	switch path {
	case types.PathDirect:
		result, err = e.directQuote(source, outputUnits.String())
	case types.PathSameChainSwap:
		result, err = e.swapQuote(ctx, source, outputUnits.String(), depositor, recipient)
	case types.PathCrossChain:
		result, err = e.bridgeQuote(ctx, source, outputUnits.String(), depositor, recipient)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.QuotesTotal.WithLabelValues(string(path), outcome).Inc()

	return result, err
}

// directQuote needs no network call: the user already holds the settlement
// token, so all three amounts are identical and fees are zero
func (e *Engine) directQuote(source types.Token, outputUnits string) (*types.NormalizedQuote, error) {
	return &types.NormalizedQuote{
		ExpectedOutputAmount: outputUnits,
		MinOutputAmount:      outputUnits,
		InputAmount:          outputUnits,
		ExpectedFillTimeSec:  0,
		Fees:                 types.QuoteFees{TotalUSD: "0", BridgeUSD: "0", SwapUSD: "0"},
		ApprovalTransactions: []types.TransactionRequest{},
		OriginChainID:        source.ChainID,
		DestinationChainID:   e.settlement.ChainID,
		Path:                 types.PathDirect,
		UserPays:             amount.FromSmallestUnit(outputUnits, e.settlement.Decimals),
	}, nil
}

// swapQuote delegates to the DEX adapter. The user-pays amount comes from the
// swap's reported input amount, never assumed 1:1.
func (e *Engine) swapQuote(ctx context.Context, source types.Token, outputUnits, depositor, recipient string) (*types.NormalizedQuote, error) {
	swapResult, err := e.swap.GetQuote(ctx, swap.QuoteParams{
		ChainID:      source.ChainID,
		InputToken:   source.Address,
		OutputToken:  e.settlement.Address,
		OutputAmount: outputUnits,
		Swapper:      depositor,
		Recipient:    recipient,
		SlippageBps:  e.slippageBps,
	})
	if err != nil {
		return nil, err
	}

	approvals := []types.TransactionRequest{}
	if !swapResult.ApprovalTx.IsEmpty() {
		approvals = append(approvals, swapResult.ApprovalTx)
	}

	return &types.NormalizedQuote{
		ExpectedOutputAmount: swapResult.OutputAmount,
		MinOutputAmount:      swapResult.MinOutputAmount,
		InputAmount:          swapResult.InputAmount,
		ExpectedFillTimeSec:  0,
		Fees:                 types.QuoteFees{TotalUSD: swapResult.FeeUSD, BridgeUSD: "0", SwapUSD: swapResult.FeeUSD},
		SwapTransaction:      swapResult.SwapTransaction,
		ApprovalTransactions: approvals,
		OriginChainID:        source.ChainID,
		DestinationChainID:   e.settlement.ChainID,
		Path:                 types.PathSameChainSwap,
		UserPays:             amount.FromSmallestUnit(swapResult.InputAmount, source.Decimals),
	}, nil
}

// bridgeQuote delegates to the bridge adapter. The user-pays amount is the
// input amount in the SOURCE token's decimals, not the settlement token's.
func (e *Engine) bridgeQuote(ctx context.Context, source types.Token, outputUnits, depositor, recipient string) (*types.NormalizedQuote, error) {
	result, err := e.bridge.GetQuote(ctx, bridge.QuoteParams{
		Amount:        outputUnits,
		InputToken:    source.Address,
		OriginChainID: source.ChainID,
		Depositor:     depositor,
		Recipient:     recipient,
		SlippageBps:   e.slippageBps,
	})
	if err != nil {
		return nil, err
	}

	result.UserPays = amount.FromSmallestUnit(result.InputAmount, source.Decimals)
	return result, nil
}

// Settlement returns the fixed settlement token
func (e *Engine) Settlement() types.Token {
	return e.settlement
}

// SlippageBps returns the engine's slippage tolerance
func (e *Engine) SlippageBps() int {
	return e.slippageBps
}
