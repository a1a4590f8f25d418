package eventlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/sony/gobreaker"
)

var _ Log = (*BreakerLog)(nil)

// BreakerLog fails appends fast while the backing log keeps failing, so fire-and-forget
// producers do not pile up behind a dead broker.
type BreakerLog struct {
	Log
	cb *gobreaker.CircuitBreaker
}

func NewBreakerLog(next Log, maxFailures uint32, openTimeout time.Duration, logger *slog.Logger) *BreakerLog {
	if maxFailures == 0 {
		maxFailures = 5
	}
	return &BreakerLog{
		Log: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "eventlog-append",
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			// Caller mistakes and cancellations say nothing about broker health.
			IsSuccessful: func(err error) bool {
				return err == nil ||
					errors.Is(err, model.ErrInvalidArgument) ||
					errors.Is(err, context.Canceled) ||
					errors.Is(err, context.DeadlineExceeded)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("BREAKER_STATE_CHANGED", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (b *BreakerLog) Append(ctx context.Context, topic Topic, rec Record) (Position, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.Log.Append(ctx, topic, rec)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Position{}, fmt.Errorf("%w: event log circuit %v", model.ErrUnavailable, err)
	}
	if err != nil {
		return Position{}, err
	}
	return out.(Position), nil
}

func (b *BreakerLog) State() gobreaker.State { return b.cb.State() }
