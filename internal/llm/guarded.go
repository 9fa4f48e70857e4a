package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Guarded wraps a Client with a shared rate limit, retries for transient
// failures and latency accounting.
type Guarded struct {
	next    Client
	limiter *rate.Limiter
	stats   *Stats
	log     *zap.Logger
	backoff func(attempt int) time.Duration
}

// NewGuarded allows rps calls per second with a burst of one second's worth.
func NewGuarded(next Client, rps float64, stats *Stats, log *zap.Logger) *Guarded {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	if stats == nil {
		stats = NewStats(time.Hour)
	}
	return &Guarded{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		stats:   stats,
		log:     log,
		backoff: Backoff,
	}
}

// Stats returns the latency recorder shared by all calls.
func (g *Guarded) Stats() *Stats { return g.stats }

func (g *Guarded) Complete(ctx context.Context, model, prompt string) (string, error) {
	var lastErr error
	for attempt := range MaxRetries {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}

		start := time.Now()
		text, err := g.next.Complete(ctx, model, prompt)
		g.stats.Record(model, time.Since(start).Milliseconds(), err)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return "", err
		}

		g.log.Warn("retryable llm error",
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == MaxRetries-1 {
			break
		}
		select {
		case <-time.After(g.backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}
