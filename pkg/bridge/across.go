// Package bridge quotes and executes cross-chain donations through an
// Across-style bridge API. Provider errors are classified into typed error
// kinds at this boundary; callers above never see raw provider failures.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"giveflow/pkg/amount"
	"giveflow/pkg/metrics"
	"giveflow/pkg/types"
	"giveflow/pkg/wallet"
)

const (
	// RequestTimeout bounds every provider HTTP call
	RequestTimeout = 30 * time.Second

	// tradeTypeMinOutput asks the provider to solve for an exact output amount
	tradeTypeMinOutput = "minOutput"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Action is one instruction attached to a cross-chain deposit. The bridge
// relayer executes the bundle atomically on the destination chain.
type Action struct {
	Target   string `json:"target"`
	CallData string `json:"callData"`
	Value    string `json:"value"`
}

// QuoteParams are the inputs for a cross-chain quote
type QuoteParams struct {
	Amount        string // recipient amount in settlement smallest units
	InputToken    string
	OriginChainID int64
	Depositor     string
	Recipient     string
	SlippageBps   int
	Actions       []Action // optional destination-side instruction bundle
}

// Client is the bridge adapter. It holds the single-entry chain-metadata
// cache; everything else is per-call.
type Client struct {
	baseURL           string
	settlementChainID int64
	settlementToken   string
	http              *http.Client
	log               zerolog.Logger

	mu    sync.RWMutex
	cache *chainCache
	now   func() time.Time
}

// chainCache is a wholesale snapshot of the provider's chain list
type chainCache struct {
	chains    []types.ChainInfo
	fetchedAt time.Time
}

// NewClient creates a bridge client pinned to the settlement chain and token
func NewClient(baseURL string, settlementChainID int64, settlementToken string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:           baseURL,
		settlementChainID: settlementChainID,
		settlementToken:   settlementToken,
		http:              &http.Client{},
		log:               log,
		now:               time.Now,
	}
}

// providerTx is a transaction payload as the provider serializes it
type providerTx struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
	Gas   uint64 `json:"gas,omitempty"`
}

// providerQuote is the provider's quote response. Error bodies reuse the
// same shape with only Message populated.
type providerQuote struct {
	Message              string       `json:"message,omitempty"`
	ExpectedOutputAmount string       `json:"expectedOutputAmount"`
	MinOutputAmount      string       `json:"minOutputAmount"`
	InputAmount          string       `json:"inputAmount"`
	ExpectedFillTime     int          `json:"expectedFillTime"`
	Fees                 providerFees `json:"fees"`
	SwapTx               providerTx   `json:"swapTx"`
	ApprovalTxns         []providerTx `json:"approvalTxns"`
	DepositID            string       `json:"depositId"`
}

type providerFees struct {
	TotalUSD  string `json:"totalUsd"`
	BridgeUSD string `json:"bridgeUsd"`
	SwapUSD   string `json:"swapUsd"`
}

// GetQuote fetches a cross-chain quote. The destination is always the
// settlement chain and token; tradeType=minOutput makes the provider solve
// for the exact amount the recipient should receive.
func (c *Client) GetQuote(ctx context.Context, params QuoteParams) (*types.NormalizedQuote, error) {
	if err := validateQuoteParams(params); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("tradeType", tradeTypeMinOutput)
	query.Set("amount", params.Amount)
	query.Set("inputToken", params.InputToken)
	query.Set("originChainId", strconv.FormatInt(params.OriginChainID, 10))
	query.Set("outputToken", c.settlementToken)
	query.Set("destinationChainId", strconv.FormatInt(c.settlementChainID, 10))
	query.Set("depositor", params.Depositor)
	query.Set("recipient", params.Recipient)
	if params.SlippageBps > 0 {
		query.Set("slippageTolerance", strconv.Itoa(params.SlippageBps))
	}
	if len(params.Actions) > 0 {
		encoded, err := json.Marshal(params.Actions)
		if err != nil {
			return nil, types.NewError(types.ErrInvalidParams, "failed to encode actions", err)
		}
		query.Set("actions", string(encoded))
	}

	body, status, err := c.get(ctx, "/swap/approval", query)
	if err != nil {
		return nil, err
	}

	var quote providerQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		if status >= 200 && status < 300 {
			return nil, types.NewError(types.ErrNetworkError, "malformed quote response", err)
		}
		return nil, c.classifyResponse(status, "")
	}

	if status < 200 || status >= 300 {
		return nil, c.classifyResponse(status, quote.Message)
	}

	// Providers sometimes return 200 with an error message instead of a
	// quote. A response with no transaction payload and no amounts is one.
	if quote.Message != "" && quote.SwapTx.To == "" && quote.ExpectedOutputAmount == "" {
		return nil, c.classifyResponse(status, quote.Message)
	}

	return c.normalize(quote, params.OriginChainID), nil
}

// normalize maps a provider quote into the uniform shape, defaulting missing
// fields to "0" so partial responses degrade instead of crashing the caller
func (c *Client) normalize(quote providerQuote, originChainID int64) *types.NormalizedQuote {
	approvals := make([]types.TransactionRequest, 0, len(quote.ApprovalTxns))
	for _, tx := range quote.ApprovalTxns {
		approvals = append(approvals, types.TransactionRequest{
			To:    tx.To,
			Data:  tx.Data,
			Value: orZero(tx.Value),
			Gas:   tx.Gas,
		})
	}

	return &types.NormalizedQuote{
		ExpectedOutputAmount: orZero(quote.ExpectedOutputAmount),
		MinOutputAmount:      orZero(quote.MinOutputAmount),
		InputAmount:          orZero(quote.InputAmount),
		ExpectedFillTimeSec:  quote.ExpectedFillTime,
		Fees: types.QuoteFees{
			TotalUSD:  orZero(quote.Fees.TotalUSD),
			BridgeUSD: orZero(quote.Fees.BridgeUSD),
			SwapUSD:   orZero(quote.Fees.SwapUSD),
		},
		SwapTransaction: types.TransactionRequest{
			To:    quote.SwapTx.To,
			Data:  quote.SwapTx.Data,
			Value: orZero(quote.SwapTx.Value),
			Gas:   quote.SwapTx.Gas,
		},
		ApprovalTransactions: approvals,
		OriginChainID:        originChainID,
		DestinationChainID:   c.settlementChainID,
		DepositID:            quote.DepositID,
		Path:                 types.PathCrossChain,
	}
}

// ExecuteSwap runs the quote's approval transactions in order, then the swap
// transaction itself, through the wallet. Returns the swap transaction hash.
func (c *Client) ExecuteSwap(ctx context.Context, quote *types.NormalizedQuote, w wallet.Wallet) (string, error) {
	if quote == nil || quote.SwapTransaction.IsEmpty() {
		return "", types.NewError(types.ErrInvalidParams, "quote has no executable swap transaction", nil)
	}

	// Approvals run sequentially: each may depend on the previous one's
	// state. A malformed approval is skipped rather than fatal, since the
	// swap transaction fails loudly if an approval was actually required.
	for i, approval := range quote.ApprovalTransactions {
		if approval.To == "" || approval.Data == "" {
			c.log.Warn().Int("index", i).Msg("skipping approval with missing to/data")
			continue
		}
		if !addressPattern.MatchString(approval.To) || !isHexPayload(approval.Data) {
			c.log.Warn().Int("index", i).Str("to", approval.To).Msg("skipping approval with malformed payload")
			continue
		}

		txHash, err := w.SendTransaction(ctx, approval)
		if err != nil {
			return "", c.classifyWallet(err, "approval transaction failed")
		}
		c.log.Info().Int("index", i).Str("tx", txHash).Msg("approval submitted")
	}

	txHash, err := w.SendTransaction(ctx, quote.SwapTransaction)
	if err != nil {
		return "", c.classifyWallet(err, "swap transaction failed")
	}

	return txHash, nil
}

// SupportedChains returns the provider's chain list, cached for ChainCacheTTL.
// A fresh fetch replaces the cache wholesale; entries are never merged.
func (c *Client) SupportedChains(ctx context.Context) ([]types.ChainInfo, error) {
	c.mu.RLock()
	cached := c.cache
	c.mu.RUnlock()

	if cached != nil && c.now().Sub(cached.fetchedAt) < types.ChainCacheTTL {
		return cached.chains, nil
	}

	metrics.ChainListFetches.Inc()
	body, status, err := c.get(ctx, "/chains", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, c.classifyResponse(status, "")
	}

	var chains []types.ChainInfo
	if err := json.Unmarshal(body, &chains); err != nil {
		return nil, types.NewError(types.ErrNetworkError, "malformed chain list response", err)
	}

	c.mu.Lock()
	c.cache = &chainCache{chains: chains, fetchedAt: c.now()}
	c.mu.Unlock()

	return chains, nil
}

// get performs one bounded HTTP request against the provider
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, types.NewError(types.ErrInvalidParams, "failed to build provider request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, 0, types.NewError(types.ErrNetworkError, "provider request timed out", err)
		}
		return nil, 0, types.NewError(types.ErrNetworkError, "provider request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, types.NewError(types.ErrNetworkError, "failed to read provider response", err)
	}

	return body, resp.StatusCode, nil
}

// classifyResponse maps a provider error body into a typed error. Message
// patterns win over the status code; unmatched messages fall back to the
// status mapping.
func (c *Client) classifyResponse(status int, message string) error {
	if kind, ok := ClassifyMessage(message); ok {
		return types.NewError(kind, message, nil)
	}

	kind := classifyStatus(status)
	if message == "" {
		message = fmt.Sprintf("provider returned status %d", status)
	}
	return types.NewError(kind, message, nil)
}

// classifyWallet wraps a raw wallet error into a typed error
func (c *Client) classifyWallet(err error, msg string) error {
	if types.IsClassified(err) {
		return err
	}
	return types.NewError(ClassifyWalletError(err), msg, err)
}

func validateQuoteParams(params QuoteParams) error {
	if !amount.IsPositiveInteger(params.Amount) {
		return types.NewError(types.ErrInvalidParams, fmt.Sprintf("amount must be a positive integer string, got %q", params.Amount), nil)
	}
	if !addressPattern.MatchString(params.InputToken) {
		return types.NewError(types.ErrInvalidParams, fmt.Sprintf("invalid input token address: %q", params.InputToken), nil)
	}
	if !addressPattern.MatchString(params.Depositor) {
		return types.NewError(types.ErrInvalidParams, fmt.Sprintf("invalid depositor address: %q", params.Depositor), nil)
	}
	if !addressPattern.MatchString(params.Recipient) {
		return types.NewError(types.ErrInvalidParams, fmt.Sprintf("invalid recipient address: %q", params.Recipient), nil)
	}
	if params.OriginChainID <= 0 {
		return types.NewError(types.ErrInvalidParams, fmt.Sprintf("invalid origin chain id: %d", params.OriginChainID), nil)
	}
	return nil
}

func isHexPayload(data string) bool {
	_, err := hexutil.Decode(data)
	return err == nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
