package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"giveflow/pkg/types"
)

const (
	testSettlementChain = int64(137)
	testSettlementToken = "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"
	testDepositor       = "0x1111111111111111111111111111111111111111"
	testRecipient       = "0x2222222222222222222222222222222222222222"
	testInputToken      = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, testSettlementChain, testSettlementToken, zerolog.Nop())
}

func validParams() QuoteParams {
	return QuoteParams{
		Amount:        "100000000",
		InputToken:    testInputToken,
		OriginChainID: 8453,
		Depositor:     testDepositor,
		Recipient:     testRecipient,
		SlippageBps:   100,
	}
}

func TestGetQuoteNormalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/swap/approval", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "minOutput", q.Get("tradeType"))
		require.Equal(t, "100000000", q.Get("amount"))
		require.Equal(t, testSettlementToken, q.Get("outputToken"))
		require.Equal(t, "137", q.Get("destinationChainId"))
		require.Equal(t, "8453", q.Get("originChainId"))

		w.Write([]byte(`{
			"expectedOutputAmount": "100000000",
			"minOutputAmount": "99000000",
			"inputAmount": "100250000",
			"expectedFillTime": 4,
			"fees": {"totalUsd": "0.25", "bridgeUsd": "0.25", "swapUsd": "0"},
			"swapTx": {"to": "0x3333333333333333333333333333333333333333", "data": "0xdeadbeef", "value": "0"},
			"approvalTxns": [{"to": "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "data": "0x095ea7b3"}],
			"depositId": "42"
		}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	quote, err := c.GetQuote(context.Background(), validParams())
	require.NoError(t, err)

	require.Equal(t, "100000000", quote.ExpectedOutputAmount)
	require.Equal(t, "99000000", quote.MinOutputAmount)
	require.Equal(t, "100250000", quote.InputAmount)
	require.Equal(t, 4, quote.ExpectedFillTimeSec)
	require.Equal(t, "0.25", quote.Fees.TotalUSD)
	require.Equal(t, int64(8453), quote.OriginChainID)
	require.Equal(t, testSettlementChain, quote.DestinationChainID)
	require.Equal(t, types.PathCrossChain, quote.Path)
	require.Len(t, quote.ApprovalTransactions, 1)
	// Missing value on the approval defaults to "0"
	require.Equal(t, "0", quote.ApprovalTransactions[0].Value)
	require.Equal(t, "42", quote.DepositID)
}

// A 200 response carrying only an error message is still an error
func TestGetQuoteErrorBodyWithOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": "Insufficient liquidity for requested amount"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.GetQuote(context.Background(), validParams())
	require.Error(t, err)
	require.Equal(t, types.ErrInsufficientLiquidity, types.KindOf(err))
}

func TestGetQuoteClassifiesErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   types.ErrorKind
	}{
		{"message wins over status", 400, `{"message": "unsupported origin chain 999"}`, types.ErrUnsupportedNetwork},
		{"bare 400", 400, `{"message": "missing parameter"}`, types.ErrInvalidParams},
		{"bare 404", 404, `{}`, types.ErrRouteNotFound},
		{"server error", 502, `oops`, types.ErrServerUnavailable},
		{"unmatched status", 403, `{}`, types.ErrNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(server.URL)
			_, err := c.GetQuote(context.Background(), validParams())
			require.Error(t, err)
			require.Equal(t, tt.want, types.KindOf(err))
		})
	}
}

func TestGetQuoteValidatesParams(t *testing.T) {
	c := newTestClient("http://unused.invalid")

	tests := []struct {
		name   string
		mutate func(*QuoteParams)
	}{
		{"zero amount", func(p *QuoteParams) { p.Amount = "0" }},
		{"decimal amount", func(p *QuoteParams) { p.Amount = "1.5" }},
		{"empty amount", func(p *QuoteParams) { p.Amount = "" }},
		{"bad input token", func(p *QuoteParams) { p.InputToken = "usdc" }},
		{"bad depositor", func(p *QuoteParams) { p.Depositor = "0x123" }},
		{"bad recipient", func(p *QuoteParams) { p.Recipient = "" }},
		{"bad origin chain", func(p *QuoteParams) { p.OriginChainID = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)
			_, err := c.GetQuote(context.Background(), params)
			require.Error(t, err)
			require.Equal(t, types.ErrInvalidParams, types.KindOf(err))
		})
	}
}

func TestGetQuotePartialResponseDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"expectedOutputAmount": "100000000",
			"swapTx": {"to": "0x3333333333333333333333333333333333333333", "data": "0xdeadbeef"}
		}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	quote, err := c.GetQuote(context.Background(), validParams())
	require.NoError(t, err)

	require.Equal(t, "0", quote.MinOutputAmount)
	require.Equal(t, "0", quote.InputAmount)
	require.Equal(t, "0", quote.Fees.TotalUSD)
	require.Equal(t, "0", quote.SwapTransaction.Value)
}

// recordingWallet captures submitted transactions in order
type recordingWallet struct {
	sentTxs []types.TransactionRequest
	sendErr error
}

func (f *recordingWallet) ActiveAccount(context.Context) (types.Account, error) {
	return types.Account{Address: testDepositor, ChainID: testSettlementChain}, nil
}

func (f *recordingWallet) SendTransaction(_ context.Context, tx types.TransactionRequest) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sentTxs = append(f.sentTxs, tx)
	return fmt.Sprintf("0xtx%d", len(f.sentTxs)), nil
}

func (f *recordingWallet) SignTypedData(context.Context, apitypes.TypedData, int64) ([]byte, error) {
	return make([]byte, 65), nil
}

func (f *recordingWallet) SwitchChain(context.Context, int64) error { return nil }

func (f *recordingWallet) TransferToken(context.Context, types.Token, string, *big.Int) (string, error) {
	return "0xtransfer", nil
}

func TestExecuteSwapRunsApprovalsInOrder(t *testing.T) {
	c := newTestClient("http://unused.invalid")
	w := &recordingWallet{}

	quote := &types.NormalizedQuote{
		ApprovalTransactions: []types.TransactionRequest{
			{To: testInputToken, Data: "0x095ea7b3", Value: "0"},
			// Malformed entries are skipped, not fatal
			{To: "", Data: "0x095ea7b3"},
			{To: testInputToken, Data: "not-hex"},
			{To: "0x4444444444444444444444444444444444444444", Data: "0xa9059cbb", Value: "0"},
		},
		SwapTransaction: types.TransactionRequest{To: "0x3333333333333333333333333333333333333333", Data: "0xdeadbeef", Value: "0"},
		Path:            types.PathCrossChain,
	}

	txHash, err := c.ExecuteSwap(context.Background(), quote, w)
	require.NoError(t, err)

	// Valid approvals in list order, then the swap itself
	require.Len(t, w.sentTxs, 3)
	require.Equal(t, testInputToken, w.sentTxs[0].To)
	require.Equal(t, "0x4444444444444444444444444444444444444444", w.sentTxs[1].To)
	require.Equal(t, "0xdeadbeef", w.sentTxs[2].Data)
	require.Equal(t, "0xtx3", txHash)
}

func TestExecuteSwapClassifiesWalletErrors(t *testing.T) {
	c := newTestClient("http://unused.invalid")
	w := &recordingWallet{sendErr: errors.New("user rejected the request")}

	quote := &types.NormalizedQuote{
		SwapTransaction: types.TransactionRequest{To: "0x3333333333333333333333333333333333333333", Data: "0xdeadbeef"},
	}

	_, err := c.ExecuteSwap(context.Background(), quote, w)
	require.Error(t, err)
	require.Equal(t, types.ErrTransactionRejected, types.KindOf(err))
}

func TestExecuteSwapRequiresSwapTransaction(t *testing.T) {
	c := newTestClient("http://unused.invalid")
	w := &recordingWallet{}

	_, err := c.ExecuteSwap(context.Background(), nil, w)
	require.Equal(t, types.ErrInvalidParams, types.KindOf(err))

	_, err = c.ExecuteSwap(context.Background(), &types.NormalizedQuote{}, w)
	require.Equal(t, types.ErrInvalidParams, types.KindOf(err))
	require.Empty(t, w.sentTxs)
}

func TestSupportedChainsCaching(t *testing.T) {
	fetches := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		require.Equal(t, "/chains", r.URL.Path)
		if fetches == 1 {
			w.Write([]byte(`[{"chainId": 1, "name": "Ethereum"}, {"chainId": 137, "name": "Polygon"}]`))
			return
		}
		w.Write([]byte(`[{"chainId": 8453, "name": "Base"}]`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	current := time.Now()
	c.now = func() time.Time { return current }

	ctx := context.Background()

	first, err := c.SupportedChains(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 1, fetches)

	// Within the TTL the cache answers
	current = current.Add(types.ChainCacheTTL - time.Second)
	second, err := c.SupportedChains(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, fetches)

	// Past the TTL a fresh fetch replaces the cache wholesale
	current = current.Add(2 * time.Second)
	third, err := c.SupportedChains(ctx)
	require.NoError(t, err)
	require.Len(t, third, 1)
	require.Equal(t, "Base", third[0].Name)
	require.Equal(t, 2, fetches)
}

func TestSupportedChainsErrorDoesNotPoisonCache(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"chainId": 137, "name": "Polygon"}]`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	ctx := context.Background()

	healthy = false
	_, err := c.SupportedChains(ctx)
	require.Error(t, err)
	require.Equal(t, types.ErrServerUnavailable, types.KindOf(err))

	healthy = true
	chains, err := c.SupportedChains(ctx)
	require.NoError(t, err)
	require.Len(t, chains, 1)
}
