package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/pkg/logger"
)

// BreakerConfig configures the circuit breaker around a repository
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig trips after 5 consecutive infrastructure failures
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "session-store",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerRepository decorates a SessionRepository with a circuit breaker.
// Domain outcomes (not found, exists, version conflict) do not count as failures.
type BreakerRepository struct {
	next SessionRepository
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerRepository wraps next
func NewBreakerRepository(next SessionRepository, cfg BreakerConfig, log *logger.Logger) *BreakerRepository {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isDomainError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				logger.F("breaker", name),
				logger.F("from", from.String()),
				logger.F("to", to.String()))
		},
	}
	return &BreakerRepository{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State reports the breaker state for health output
func (b *BreakerRepository) State() string {
	return b.cb.State().String()
}

func (b *BreakerRepository) CreateSession(ctx context.Context, session *models.GameSession) error {
	return b.exec(func() error { return b.next.CreateSession(ctx, session) })
}

func (b *BreakerRepository) GetSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.GetSession(ctx, sessionID)
	})
	if err != nil {
		return nil, translateBreakerError(err)
	}
	return res.(*models.GameSession), nil
}

func (b *BreakerRepository) UpdateSession(ctx context.Context, session *models.GameSession, expectedVersion int64) error {
	return b.exec(func() error { return b.next.UpdateSession(ctx, session, expectedVersion) })
}

func (b *BreakerRepository) DeleteSession(ctx context.Context, sessionID string) error {
	return b.exec(func() error { return b.next.DeleteSession(ctx, sessionID) })
}

func (b *BreakerRepository) DeleteSessionIfVersion(ctx context.Context, sessionID string, expectedVersion int64) error {
	return b.exec(func() error { return b.next.DeleteSessionIfVersion(ctx, sessionID, expectedVersion) })
}

func (b *BreakerRepository) ListSessionsByStatus(ctx context.Context, status models.Status) ([]*models.GameSession, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.ListSessionsByStatus(ctx, status)
	})
	if err != nil {
		return nil, translateBreakerError(err)
	}
	return res.([]*models.GameSession), nil
}

func (b *BreakerRepository) AppendPrediction(ctx context.Context, sessionID string, prediction models.Prediction) error {
	return b.exec(func() error { return b.next.AppendPrediction(ctx, sessionID, prediction) })
}

func (b *BreakerRepository) PrunePredictions(ctx context.Context, sessionID string, beforeRound int) error {
	return b.exec(func() error { return b.next.PrunePredictions(ctx, sessionID, beforeRound) })
}

func (b *BreakerRepository) exec(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return translateBreakerError(err)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExists) ||
		errors.Is(err, ErrVersionConflict)
}

// translateBreakerError maps open-breaker rejections to ErrUnavailable
func translateBreakerError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
