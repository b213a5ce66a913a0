package quote

import (
	"context"
	"sync"
	"time"

	"giveflow/pkg/types"
)

// DefaultDebounce is how long the requoter waits after the last input change
const DefaultDebounce = 500 * time.Millisecond

// Requoter debounces quote recalculation driven by user input. Each new
// request resets the pending timer; every dispatched request carries a
// generation number and only the latest generation's result reaches the
// apply callback, so a slow stale response can never overwrite a fresher one.
type Requoter struct {
	engine *Engine
	delay  time.Duration
	apply  func(*types.NormalizedQuote, error)

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
}

// NewRequoter creates a requoter that delivers results to apply
func NewRequoter(engine *Engine, delay time.Duration, apply func(*types.NormalizedQuote, error)) *Requoter {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Requoter{
		engine: engine,
		delay:  delay,
		apply:  apply,
	}
}

// Request schedules a quote recalculation, superseding any pending one
func (r *Requoter) Request(ctx context.Context, source types.Token, recipientAmount, depositor, recipient string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++
	generation := r.generation

	if r.timer != nil {
		r.timer.Stop()
	}

	r.timer = time.AfterFunc(r.delay, func() {
		result, err := r.engine.CalculateQuote(ctx, source, recipientAmount, depositor, recipient)

		r.mu.Lock()
		stale := generation != r.generation
		r.mu.Unlock()
		if stale {
			return
		}

		r.apply(result, err)
	})
}

// Cancel stops any pending recalculation and invalidates in-flight results
func (r *Requoter) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
