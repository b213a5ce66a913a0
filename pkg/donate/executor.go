// Package donate orchestrates donation execution. It routes a normalized
// quote to the right execution path and drives the multi-step subscription
// choreography, including temporary chain switching and rollback.
package donate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"giveflow/pkg/bridge"
	"giveflow/pkg/metrics"
	"giveflow/pkg/subscribe"
	"giveflow/pkg/swap"
	"giveflow/pkg/types"
	"giveflow/pkg/wallet"
)

// BridgeExecutor is the cross-chain dependency surface
type BridgeExecutor interface {
	GetQuote(ctx context.Context, params bridge.QuoteParams) (*types.NormalizedQuote, error)
	ExecuteSwap(ctx context.Context, quote *types.NormalizedQuote, w wallet.Wallet) (string, error)
}

// SwapExecutor is the same-chain swap dependency surface
type SwapExecutor interface {
	ExecuteSwap(ctx context.Context, quote *swap.Quote, w wallet.Wallet) (string, error)
}

// SignatureProvider builds subscription signature bundles
type SignatureProvider interface {
	SignatureBundle(ctx context.Context, params subscribe.Params, signerCap subscribe.TypedDataSigner) (*types.SubscriptionSignatureBundle, error)
}

// AllowanceReader reads ERC-20 allowances on the settlement chain
type AllowanceReader interface {
	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)
}

// Executor is the top-level donation orchestrator. Construct one per process
// with explicit dependencies; it holds no hidden global state.
type Executor struct {
	wallet       wallet.Wallet
	bridge       BridgeExecutor
	swap         SwapExecutor
	signer       SignatureProvider
	allowances   AllowanceReader
	settlement   types.Token
	subscription string // subscription contract on the settlement chain
	slippageBps  int
	log          zerolog.Logger
}

// NewExecutor creates a donation executor
func NewExecutor(w wallet.Wallet, bridgeExec BridgeExecutor, swapExec SwapExecutor, signer SignatureProvider, allowances AllowanceReader, settlement types.Token, subscriptionContract string, slippageBps int, log zerolog.Logger) *Executor {
	return &Executor{
		wallet:       w,
		bridge:       bridgeExec,
		swap:         swapExec,
		signer:       signer,
		allowances:   allowances,
		settlement:   settlement,
		subscription: subscriptionContract,
		slippageBps:  slippageBps,
		log:          log,
	}
}

// ExecuteDonation executes a one-time donation along the quote's path
func (e *Executor) ExecuteDonation(ctx context.Context, quote *types.NormalizedQuote, source types.Token, recipient string) (*types.ExecutionResult, error) {
	if quote == nil {
		return nil, types.NewError(types.ErrInvalidParams, "quote is required", nil)
	}

	var (
		txHash string
		err    error
	)

	switch quote.Path {
	case types.PathDirect:
		txHash, err = e.executeDirect(ctx, quote, source, recipient)
	case types.PathSameChainSwap:
		txHash, err = e.swap.ExecuteSwap(ctx, &swap.Quote{
			InputAmount:     quote.InputAmount,
			OutputAmount:    quote.ExpectedOutputAmount,
			MinOutputAmount: quote.MinOutputAmount,
			SwapTransaction: quote.SwapTransaction,
			ApprovalTx:      firstApproval(quote),
			ChainID:         quote.OriginChainID,
		}, e.wallet)
	case types.PathCrossChain:
		txHash, err = e.bridge.ExecuteSwap(ctx, quote, e.wallet)
	default:
		return nil, types.NewError(types.ErrInvalidParams, fmt.Sprintf("unknown donation path: %s", quote.Path), nil)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.DonationsTotal.WithLabelValues(string(quote.Path), outcome).Inc()

	if err != nil {
		return nil, fmt.Errorf("donation execution failed: %w", err)
	}

	e.log.Info().Str("path", string(quote.Path)).Str("tx", txHash).Msg("donation executed")

	return &types.ExecutionResult{
		ID:     uuid.New().String(),
		TxHash: txHash,
		Path:   quote.Path,
		Amount: quote.InputAmount,
	}, nil
}

// executeDirect sends a plain transfer of the settlement token
func (e *Executor) executeDirect(ctx context.Context, quote *types.NormalizedQuote, source types.Token, recipient string) (string, error) {
	units, ok := new(big.Int).SetString(quote.InputAmount, 10)
	if !ok {
		return "", types.NewError(types.ErrInvalidParams, fmt.Sprintf("invalid quote amount: %q", quote.InputAmount), nil)
	}

	txHash, err := e.wallet.TransferToken(ctx, source, recipient, units)
	if err != nil {
		if types.IsClassified(err) {
			return "", err
		}
		return "", types.NewError(bridge.ClassifyWalletError(err), "transfer failed", err)
	}
	return txHash, nil
}

// ExecuteSubscription drives the subscription state machine:
//
//	switching -> signing -> [building -> returning -> quoting] -> approving -> subscribing -> confirming
//
// The bracketed stages only apply to the cross-chain path. If any stage after
// switching fails while the active chain differs from the starting chain, the
// executor attempts exactly one best-effort switch-back before re-throwing
// the original error.
func (e *Executor) ExecuteSubscription(ctx context.Context, quote *types.NormalizedQuote, source types.Token, monthlyUSD, target string, projectID *big.Int, onProgress types.ProgressFunc) (*types.SubscriptionResult, error) {
	if quote == nil {
		return nil, types.NewError(types.ErrInvalidParams, "quote is required", nil)
	}

	progress := func(stage types.SubscriptionStage) {
		if onProgress != nil {
			onProgress(stage)
		}
	}

	account, err := e.wallet.ActiveAccount(ctx)
	if err != nil || !account.IsConnected() {
		return nil, types.NewError(types.ErrWalletNotConnected, "no active wallet account", err)
	}
	startChain := account.ChainID

	fail := func(stage types.SubscriptionStage, err error) (*types.SubscriptionResult, error) {
		e.rollbackChain(ctx, startChain)
		progress(types.StageFailed)
		metrics.SubscriptionsTotal.WithLabelValues(string(quote.Path), "error").Inc()
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	// switching: the signature domain is pinned to the settlement chain, so
	// signing happens there regardless of where the funds live
	progress(types.StageSwitching)
	if startChain != e.settlement.ChainID {
		if err := e.wallet.SwitchChain(ctx, e.settlement.ChainID); err != nil {
			// Nothing irreversible happened yet; no rollback needed
			progress(types.StageFailed)
			metrics.SubscriptionsTotal.WithLabelValues(string(quote.Path), "error").Inc()
			return nil, fmt.Errorf("switching: %w", types.NewError(types.ErrNetworkError, "chain switch failed", err))
		}
	}

	progress(types.StageSigning)
	bundle, err := e.signer.SignatureBundle(ctx, subscribe.Params{
		MonthlyUSD: monthlyUSD,
		Target:     target,
		ProjectID:  projectID,
		Token:      e.settlement.Address,
	}, e.wallet)
	if err != nil {
		return fail(types.StageSigning, err)
	}

	var txHashes []string
	if quote.Path == types.PathCrossChain {
		txHashes, err = e.subscribeCrossChain(ctx, quote, source, account, bundle, startChain, progress)
	} else {
		txHashes, err = e.subscribeOnSettlementChain(ctx, quote, account, bundle, progress)
	}
	if err != nil {
		// The failing stage already wrapped its context
		e.rollbackChain(ctx, startChain)
		progress(types.StageFailed)
		metrics.SubscriptionsTotal.WithLabelValues(string(quote.Path), "error").Inc()
		return nil, err
	}

	progress(types.StageConfirming)
	progress(types.StageCompleted)
	metrics.SubscriptionsTotal.WithLabelValues(string(quote.Path), "ok").Inc()

	rate, rateErr := subscribe.CalculateRate(monthlyUSD, e.settlement.Decimals)
	rateStr := ""
	if rateErr == nil {
		rateStr = rate.String()
	}

	return &types.SubscriptionResult{
		ID:            uuid.New().String(),
		TxHashes:      txHashes,
		Path:          quote.Path,
		MonthlyUSD:    monthlyUSD,
		RatePerSecond: rateStr,
		Signer:        bundle.Signer,
	}, nil
}

// subscribeOnSettlementChain handles the direct and same-chain-swap paths.
// The user is already on the settlement chain after switching: convert if
// needed, ensure the allowance, then deposit and execute the signed call.
func (e *Executor) subscribeOnSettlementChain(ctx context.Context, quote *types.NormalizedQuote, account types.Account, bundle *types.SubscriptionSignatureBundle, progress types.ProgressFunc) ([]string, error) {
	var txHashes []string

	deposit, ok := new(big.Int).SetString(quote.ExpectedOutputAmount, 10)
	if !ok {
		return nil, fmt.Errorf("%s: %w", types.StageApproving, types.NewError(types.ErrInvalidParams, fmt.Sprintf("invalid quote amount: %q", quote.ExpectedOutputAmount), nil))
	}

	// Same-chain-swap path first converts the source token into the
	// settlement token using the quote's swap transaction
	if quote.Path == types.PathSameChainSwap {
		txHash, err := e.swap.ExecuteSwap(ctx, &swap.Quote{
			InputAmount:     quote.InputAmount,
			OutputAmount:    quote.ExpectedOutputAmount,
			MinOutputAmount: quote.MinOutputAmount,
			SwapTransaction: quote.SwapTransaction,
			ApprovalTx:      firstApproval(quote),
			ChainID:         quote.OriginChainID,
		}, e.wallet)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", types.StageSubscribing, err)
		}
		txHashes = append(txHashes, txHash)
	}

	// approving: idempotent. Submit an approval only when the current
	// allowance does not cover the deposit.
	progress(types.StageApproving)
	allowance, err := e.allowances.Allowance(ctx, e.settlement.Address, account.Address, e.subscription)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", types.StageApproving, types.NewError(types.ErrNetworkError, "failed to read allowance", err))
	}
	if allowance.Cmp(deposit) < 0 {
		approveData, err := subscribe.ApproveCallData(e.subscription, deposit)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", types.StageApproving, types.NewError(types.ErrInvalidParams, "failed to encode approval", err))
		}
		txHash, err := e.sendClassified(ctx, types.TransactionRequest{
			To:   e.settlement.Address,
			Data: hexEncode(approveData),
		}, "approval transaction failed")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", types.StageApproving, err)
		}
		txHashes = append(txHashes, txHash)
	} else {
		e.log.Debug().Str("allowance", allowance.String()).Str("required", deposit.String()).Msg("allowance sufficient, skipping approval")
	}

	// subscribing: deposit then the signed subscribe call, sequentially
	progress(types.StageSubscribing)
	depositData, err := subscribe.DepositCallData(account.Address, deposit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", types.StageSubscribing, types.NewError(types.ErrInvalidParams, "failed to encode deposit", err))
	}
	txHash, err := e.sendClassified(ctx, types.TransactionRequest{
		To:   e.subscription,
		Data: hexEncode(depositData),
	}, "deposit transaction failed")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", types.StageSubscribing, err)
	}
	txHashes = append(txHashes, txHash)

	bySigData, err := subscribe.BySigCallData(bundle)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", types.StageSubscribing, types.NewError(types.ErrInvalidParams, "failed to encode signed call", err))
	}
	txHash, err = e.sendClassified(ctx, types.TransactionRequest{
		To:   e.subscription,
		Data: hexEncode(bySigData),
	}, "subscribe transaction failed")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", types.StageSubscribing, err)
	}
	txHashes = append(txHashes, txHash)

	return txHashes, nil
}

// subscribeCrossChain handles the cross-chain path: build the destination
// instruction bundle, return to the origin chain, re-quote with the bundle
// attached, then run approvals and the single deposit carrying it.
func (e *Executor) subscribeCrossChain(ctx context.Context, quote *types.NormalizedQuote, source types.Token, account types.Account, bundle *types.SubscriptionSignatureBundle, startChain int64, progress types.ProgressFunc) ([]string, error) {
	progress(types.StageBuilding)
	actions, err := e.buildActions(quote, bundle)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", types.StageBuilding, err)
	}

	// returning: the deposit is signed from the chain holding the funds
	progress(types.StageReturning)
	if err := e.wallet.SwitchChain(ctx, startChain); err != nil {
		return nil, fmt.Errorf("%s: %w", types.StageReturning, types.NewError(types.ErrNetworkError, "chain switch failed", err))
	}

	// quoting: the bridge relayer executes the subscription call atomically
	// with the deposit on arrival
	progress(types.StageQuoting)
	actioned, err := e.bridge.GetQuote(ctx, bridge.QuoteParams{
		Amount:        quote.ExpectedOutputAmount,
		InputToken:    source.Address,
		OriginChainID: source.ChainID,
		Depositor:     account.Address,
		Recipient:     e.subscription,
		SlippageBps:   e.slippageBps,
		Actions:       actions,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", types.StageQuoting, err)
	}

	var txHashes []string

	progress(types.StageApproving)
	for i, approval := range actioned.ApprovalTransactions {
		if approval.IsEmpty() {
			e.log.Warn().Int("index", i).Msg("skipping empty approval from actioned quote")
			continue
		}
		txHash, err := e.sendClassified(ctx, approval, "approval transaction failed")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", types.StageApproving, err)
		}
		txHashes = append(txHashes, txHash)
	}

	progress(types.StageSubscribing)
	if actioned.SwapTransaction.IsEmpty() {
		return nil, fmt.Errorf("%s: %w", types.StageSubscribing, types.NewError(types.ErrRouteNotFound, "actioned quote has no deposit transaction", nil))
	}
	txHash, err := e.sendClassified(ctx, actioned.SwapTransaction, "deposit transaction failed")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", types.StageSubscribing, err)
	}
	txHashes = append(txHashes, txHash)

	return txHashes, nil
}

// buildActions encodes the destination-side multicall bundle: approve the
// subscription contract for the bridged funds, then execute the signed
// subscribe call
func (e *Executor) buildActions(quote *types.NormalizedQuote, bundle *types.SubscriptionSignatureBundle) ([]bridge.Action, error) {
	deposit, ok := new(big.Int).SetString(quote.ExpectedOutputAmount, 10)
	if !ok {
		return nil, types.NewError(types.ErrInvalidParams, fmt.Sprintf("invalid quote amount: %q", quote.ExpectedOutputAmount), nil)
	}

	approveData, err := subscribe.ApproveCallData(e.subscription, deposit)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidParams, "failed to encode approval action", err)
	}

	bySigData, err := subscribe.BySigCallData(bundle)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidParams, "failed to encode signed call action", err)
	}

	return []bridge.Action{
		{Target: e.settlement.Address, CallData: hexEncode(approveData), Value: "0"},
		{Target: e.subscription, CallData: hexEncode(bySigData), Value: "0"},
	}, nil
}

// rollbackChain makes exactly one best-effort attempt to restore the user's
// starting chain. A rollback failure is logged, never propagated: the
// original error must reach the caller unchanged.
func (e *Executor) rollbackChain(ctx context.Context, startChain int64) {
	account, err := e.wallet.ActiveAccount(ctx)
	if err != nil || account.ChainID == startChain {
		return
	}
	if err := e.wallet.SwitchChain(ctx, startChain); err != nil {
		e.log.Warn().Err(err).Int64("chain", startChain).Msg("failed to switch back to original chain")
	}
}

// sendClassified submits a transaction and classifies raw wallet errors
func (e *Executor) sendClassified(ctx context.Context, tx types.TransactionRequest, msg string) (string, error) {
	txHash, err := e.wallet.SendTransaction(ctx, tx)
	if err != nil {
		if types.IsClassified(err) {
			return "", err
		}
		return "", types.NewError(bridge.ClassifyWalletError(err), msg, err)
	}
	return txHash, nil
}

func firstApproval(quote *types.NormalizedQuote) types.TransactionRequest {
	if len(quote.ApprovalTransactions) > 0 {
		return quote.ApprovalTransactions[0]
	}
	return types.TransactionRequest{}
}

func hexEncode(data []byte) string {
	return "0x" + fmt.Sprintf("%x", data)
}
