package quote

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"giveflow/pkg/bridge"
	"giveflow/pkg/swap"
	"giveflow/pkg/types"
)

const (
	polygonUSDC = "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"
	baseUSDC    = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	wmatic      = "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"
	depositor   = "0x1111111111111111111111111111111111111111"
	recipient   = "0x2222222222222222222222222222222222222222"
)

var settlement = types.Token{ChainID: 137, Address: polygonUSDC, Symbol: "USDC", Decimals: 6}

type fakeBridge struct {
	params bridge.QuoteParams
	quote  *types.NormalizedQuote
	err    error
}

func (f *fakeBridge) GetQuote(_ context.Context, params bridge.QuoteParams) (*types.NormalizedQuote, error) {
	f.params = params
	return f.quote, f.err
}

type fakeSwap struct {
	params swap.QuoteParams
	quote  *swap.Quote
	err    error
}

func (f *fakeSwap) GetQuote(_ context.Context, params swap.QuoteParams) (*swap.Quote, error) {
	f.params = params
	return f.quote, f.err
}

func newTestEngine(b *fakeBridge, s *fakeSwap) *Engine {
	return NewEngine(settlement, b, s, zerolog.Nop())
}

func TestDirectQuote(t *testing.T) {
	e := newTestEngine(&fakeBridge{}, &fakeSwap{})
	source := types.Token{ChainID: 137, Address: polygonUSDC, Symbol: "USDC", Decimals: 6}

	q, err := e.CalculateQuote(context.Background(), source, "100", depositor, recipient)
	require.NoError(t, err)

	require.Equal(t, types.PathDirect, q.Path)
	// All three amounts are the same integer and fees are zero
	require.Equal(t, "100000000", q.ExpectedOutputAmount)
	require.Equal(t, "100000000", q.MinOutputAmount)
	require.Equal(t, "100000000", q.InputAmount)
	require.Equal(t, "0", q.Fees.TotalUSD)
	require.Equal(t, 0, q.ExpectedFillTimeSec)
	require.Empty(t, q.ApprovalTransactions)
	require.Equal(t, "100", q.UserPays)
}

func TestQuoteRejectsBadAmounts(t *testing.T) {
	e := newTestEngine(&fakeBridge{}, &fakeSwap{})
	source := types.Token{ChainID: 137, Address: polygonUSDC, Decimals: 6}

	for _, bad := range []string{"0", "-5", "abc", "", "1.2.3", "0.000"} {
		_, err := e.CalculateQuote(context.Background(), source, bad, depositor, recipient)
		require.Error(t, err, "amount %q", bad)
		require.Equal(t, types.ErrInvalidParams, types.KindOf(err), "amount %q", bad)
	}
}

func TestSwapQuote(t *testing.T) {
	fs := &fakeSwap{
		quote: &swap.Quote{
			InputAmount:     "52000000000000000000",
			OutputAmount:    "100000000",
			MinOutputAmount: "99000000",
			FeeUSD:          "0.30",
			SwapTransaction: types.TransactionRequest{To: recipient, Data: "0xabcd", Value: "0"},
			ApprovalTx:      types.TransactionRequest{To: wmatic, Data: "0x095ea7b3", Value: "0"},
			ChainID:         137,
		},
	}
	e := newTestEngine(&fakeBridge{}, fs)
	source := types.Token{ChainID: 137, Address: wmatic, Symbol: "WMATIC", Decimals: 18}

	q, err := e.CalculateQuote(context.Background(), source, "100", depositor, recipient)
	require.NoError(t, err)

	require.Equal(t, types.PathSameChainSwap, q.Path)
	require.Equal(t, "100000000", fs.params.OutputAmount)
	require.Equal(t, polygonUSDC, fs.params.OutputToken)
	require.Equal(t, DefaultSlippageBps, fs.params.SlippageBps)
	require.Equal(t, "0.30", q.Fees.SwapUSD)
	require.Len(t, q.ApprovalTransactions, 1)
	// User pays in the SOURCE token's decimals
	require.Equal(t, "52", q.UserPays)
}

func TestBridgeQuote(t *testing.T) {
	fb := &fakeBridge{
		quote: &types.NormalizedQuote{
			ExpectedOutputAmount: "100000000",
			MinOutputAmount:      "99000000",
			InputAmount:          "100250000",
			Fees:                 types.QuoteFees{TotalUSD: "0.25", BridgeUSD: "0.25", SwapUSD: "0"},
			OriginChainID:        8453,
			DestinationChainID:   137,
			Path:                 types.PathCrossChain,
		},
	}
	e := newTestEngine(fb, &fakeSwap{})
	source := types.Token{ChainID: 8453, Address: baseUSDC, Symbol: "USDC", Decimals: 6}

	q, err := e.CalculateQuote(context.Background(), source, "100", depositor, recipient)
	require.NoError(t, err)

	require.Equal(t, types.PathCrossChain, q.Path)
	require.Equal(t, "100000000", fb.params.Amount)
	require.Equal(t, int64(8453), fb.params.OriginChainID)
	require.Equal(t, "100.25", q.UserPays)
}

func TestQuoteErrorsPassThrough(t *testing.T) {
	fb := &fakeBridge{err: types.NewError(types.ErrInsufficientLiquidity, "insufficient liquidity", nil)}
	e := newTestEngine(fb, &fakeSwap{})
	source := types.Token{ChainID: 8453, Address: baseUSDC, Decimals: 6}

	_, err := e.CalculateQuote(context.Background(), source, "100", depositor, recipient)
	require.Error(t, err)
	require.Equal(t, types.ErrInsufficientLiquidity, types.KindOf(err))
}
