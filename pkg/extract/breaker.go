package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/chronofact/chronofact/pkg/types"
)

// BreakerExtractor wraps an Extractor in a circuit breaker so a failing
// backend sheds load quickly instead of timing out every batch item.
type BreakerExtractor struct {
	inner   Extractor
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewBreakerExtractor wraps inner with a breaker that opens after five
// consecutive failures and probes again after thirty seconds.
func NewBreakerExtractor(inner Extractor, logger *slog.Logger) *BreakerExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:    "extractor-" + inner.Name(),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("extractor breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerExtractor{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

func (b *BreakerExtractor) Name() string { return b.inner.Name() }

// Extract delegates to the wrapped extractor through the breaker. While the
// breaker is open calls fail immediately with gobreaker.ErrOpenState.
func (b *BreakerExtractor) Extract(ctx context.Context, sourceID, text string, refTime time.Time) ([]types.DraftFact, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Extract(ctx, sourceID, text, refTime)
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.DraftFact), nil
}
