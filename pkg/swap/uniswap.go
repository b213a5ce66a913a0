// Package swap provides the same-chain DEX swap adapter. It speaks a
// Uniswap-style trading API and classifies provider and wallet errors at the
// boundary, like the bridge adapter does.
package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"giveflow/pkg/bridge"
	"giveflow/pkg/types"
	"giveflow/pkg/wallet"
)

// RequestTimeout bounds every provider HTTP call
const RequestTimeout = 30 * time.Second

// Quote is a same-chain swap quote as normalized from the provider
type Quote struct {
	InputAmount     string                   `json:"inputAmount"`
	OutputAmount    string                   `json:"outputAmount"`
	MinOutputAmount string                   `json:"minOutputAmount"`
	FeeUSD          string                   `json:"feeUsd"`
	SwapTransaction types.TransactionRequest `json:"swapTransaction"`
	ApprovalTx      types.TransactionRequest `json:"approvalTx"`
	ChainID         int64                    `json:"chainId"`
}

// QuoteParams are the inputs for a same-chain swap quote
type QuoteParams struct {
	ChainID      int64
	InputToken   string
	OutputToken  string
	OutputAmount string // exact output in settlement smallest units
	Swapper      string
	Recipient    string
	SlippageBps  int
}

// Client is the swap adapter
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a swap client against the trading API base URL
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		log:     log,
	}
}

// providerResponse is the trading API's quote shape
type providerResponse struct {
	Message string `json:"message,omitempty"`
	Quote   struct {
		Input struct {
			Amount string `json:"amount"`
		} `json:"input"`
		Output struct {
			Amount string `json:"amount"`
		} `json:"output"`
		MinOutputAmount string `json:"minOutputAmount"`
		FeeUSD          string `json:"feeUsd"`
	} `json:"quote"`
	Swap struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
		Gas   uint64 `json:"gasLimit,omitempty"`
	} `json:"swap"`
	Approval struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	} `json:"approval"`
}

// GetQuote requests a swap quote solving for an exact output amount
func (c *Client) GetQuote(ctx context.Context, params QuoteParams) (*Quote, error) {
	if params.OutputAmount == "" || params.OutputAmount == "0" {
		return nil, types.NewError(types.ErrInvalidParams, "output amount must be positive", nil)
	}

	reqBody := map[string]interface{}{
		"type":         "EXACT_OUTPUT",
		"tokenIn":      params.InputToken,
		"tokenOut":     params.OutputToken,
		"amount":       params.OutputAmount,
		"chainId":      params.ChainID,
		"swapper":      params.Swapper,
		"recipient":    params.Recipient,
		"slippageBps":  params.SlippageBps,
		"generateCall": true,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidParams, "failed to encode quote request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quote", bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidParams, "failed to build quote request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, types.NewError(types.ErrNetworkError, "swap provider request timed out", err)
		}
		return nil, types.NewError(types.ErrNetworkError, "swap provider request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrNetworkError, "failed to read swap provider response", err)
	}

	var decoded providerResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, types.NewError(types.ErrNetworkError, "malformed swap quote response", err)
		}
		return nil, classifyResponse(resp.StatusCode, "")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyResponse(resp.StatusCode, decoded.Message)
	}

	// A 200 body carrying only a message and no quote is still an error
	if decoded.Message != "" && decoded.Swap.To == "" && decoded.Quote.Output.Amount == "" {
		return nil, classifyResponse(resp.StatusCode, decoded.Message)
	}

	return &Quote{
		InputAmount:     orZero(decoded.Quote.Input.Amount),
		OutputAmount:    orZero(decoded.Quote.Output.Amount),
		MinOutputAmount: orZero(decoded.Quote.MinOutputAmount),
		FeeUSD:          orZero(decoded.Quote.FeeUSD),
		SwapTransaction: types.TransactionRequest{
			To:    decoded.Swap.To,
			Data:  decoded.Swap.Data,
			Value: orZero(decoded.Swap.Value),
			Gas:   decoded.Swap.Gas,
		},
		ApprovalTx: types.TransactionRequest{
			To:    decoded.Approval.To,
			Data:  decoded.Approval.Data,
			Value: orZero(decoded.Approval.Value),
		},
		ChainID: params.ChainID,
	}, nil
}

// ExecuteSwap submits the quote's approval (when present) and swap
// transactions through the wallet, returning the swap transaction hash
func (c *Client) ExecuteSwap(ctx context.Context, quote *Quote, w wallet.Wallet) (string, error) {
	if quote == nil || quote.SwapTransaction.IsEmpty() {
		return "", types.NewError(types.ErrInvalidParams, "quote has no executable swap transaction", nil)
	}

	if !quote.ApprovalTx.IsEmpty() {
		txHash, err := w.SendTransaction(ctx, quote.ApprovalTx)
		if err != nil {
			return "", classifyWallet(err, "swap approval failed")
		}
		c.log.Info().Str("tx", txHash).Msg("swap approval submitted")
	}

	txHash, err := w.SendTransaction(ctx, quote.SwapTransaction)
	if err != nil {
		return "", classifyWallet(err, "swap transaction failed")
	}

	return txHash, nil
}

func classifyResponse(status int, message string) error {
	if kind, ok := bridge.ClassifyMessage(message); ok {
		return types.NewError(kind, message, nil)
	}

	var kind types.ErrorKind
	switch {
	case status == 400:
		kind = types.ErrInvalidParams
	case status == 404:
		kind = types.ErrRouteNotFound
	case status >= 500:
		kind = types.ErrServerUnavailable
	default:
		kind = types.ErrNetworkError
	}
	if message == "" {
		message = fmt.Sprintf("swap provider returned status %d", status)
	}
	return types.NewError(kind, message, nil)
}

func classifyWallet(err error, msg string) error {
	if types.IsClassified(err) {
		return err
	}
	return types.NewError(bridge.ClassifyWalletError(err), msg, err)
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
