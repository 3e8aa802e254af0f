package event

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"wallpaper/vipcenter/internal/config"
)

// ErrCircuitOpen is returned while the broker is considered unavailable.
var ErrCircuitOpen = errors.New("event publisher circuit open")

// BreakerPublisher stops calling a failing broker until it has had time to recover.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerPublisher(next Publisher, cfg config.BreakerConfig, logger *zap.Logger) *BreakerPublisher {
	settings := gobreaker.Settings{
		Name:        "event-publisher",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &BreakerPublisher{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

func (p *BreakerPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.next.Publish(ctx, routingKey, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func (p *BreakerPublisher) Close() error {
	return p.next.Close()
}

// NewPublisher builds the configured publisher, wrapped in a circuit breaker.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	logger = logger.Named("events")
	if cfg.Backend != "rabbitmq" {
		return NewNoopPublisher(logger), nil
	}
	rabbit, err := NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.Exchange, logger)
	if err != nil {
		return nil, err
	}
	return NewBreakerPublisher(rabbit, cfg.Breaker, logger), nil
}
