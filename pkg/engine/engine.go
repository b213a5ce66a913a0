// Package engine wires the donation engine together and exposes the
// operations the UI layer consumes. One Service is constructed per process
// with explicit dependencies; there is no hidden global state.
package engine

import (
	"context"
	"math/big"

	"github.com/rs/zerolog"

	"giveflow/pkg/bridge"
	"giveflow/pkg/donate"
	"giveflow/pkg/quote"
	"giveflow/pkg/subscribe"
	"giveflow/pkg/swap"
	"giveflow/pkg/types"
	"giveflow/pkg/wallet"
)

// Service is the donation engine facade
type Service struct {
	quotes   *quote.Engine
	executor *donate.Executor
	bridge   *bridge.Client
}

// Deps are the collaborators a Service is built from
type Deps struct {
	Wallet               wallet.Wallet
	Reader               *wallet.Reader
	Bridge               *bridge.Client
	Swap                 *swap.Client
	Settlement           types.Token
	SubscriptionContract string
	Log                  zerolog.Logger
}

// New builds a Service from its dependencies
func New(deps Deps) *Service {
	quotes := quote.NewEngine(deps.Settlement, deps.Bridge, deps.Swap, deps.Log)
	signer := subscribe.NewSigner(deps.Reader, deps.SubscriptionContract, deps.Settlement.ChainID, deps.Log)
	executor := donate.NewExecutor(
		deps.Wallet,
		deps.Bridge,
		deps.Swap,
		signer,
		deps.Reader,
		deps.Settlement,
		deps.SubscriptionContract,
		quotes.SlippageBps(),
		deps.Log,
	)

	return &Service{
		quotes:   quotes,
		executor: executor,
		bridge:   deps.Bridge,
	}
}

// Classify returns the donation path for a source token
func (s *Service) Classify(source types.Token) types.DonationPath {
	return s.quotes.Classify(source)
}

// CalculateQuote produces a normalized quote for the donation
func (s *Service) CalculateQuote(ctx context.Context, source types.Token, recipientAmount, depositor, recipient string) (*types.NormalizedQuote, error) {
	return s.quotes.CalculateQuote(ctx, source, recipientAmount, depositor, recipient)
}

// ExecuteDonation executes a one-time donation
func (s *Service) ExecuteDonation(ctx context.Context, q *types.NormalizedQuote, source types.Token, recipient string) (*types.ExecutionResult, error) {
	return s.executor.ExecuteDonation(ctx, q, source, recipient)
}

// ExecuteSubscription creates a monthly streaming subscription
func (s *Service) ExecuteSubscription(ctx context.Context, q *types.NormalizedQuote, source types.Token, monthlyUSD, target string, projectID *big.Int, onProgress types.ProgressFunc) (*types.SubscriptionResult, error) {
	return s.executor.ExecuteSubscription(ctx, q, source, monthlyUSD, target, projectID, onProgress)
}

// SupportedChains lists the chains the bridge provider supports
func (s *Service) SupportedChains(ctx context.Context) ([]types.ChainInfo, error) {
	return s.bridge.SupportedChains(ctx)
}
