// Package presence tracks which players are actually connected to a session.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/sketchduel/backend/internal/metrics"
	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/internal/storage"
	"github.com/sketchduel/backend/pkg/logger"
)

const (
	// PresenceTimeout is how long after the last heartbeat a player still counts as online
	PresenceTimeout = 30 * time.Second
	// CleanupThreshold is the heartbeat age after which a record is purged
	CleanupThreshold = 60 * time.Second
)

// Tracker manages presence records in the realtime store.
// Liveness is advisory: callers inside game operations log tracker errors and carry on.
type Tracker struct {
	store   storage.PresenceStore
	now     func() time.Time
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock overrides the clock used to judge staleness
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithMetrics records stale purges
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// NewTracker creates a presence tracker
func NewTracker(store storage.PresenceStore, log *logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		now:    time.Now,
		logger: log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetOnline marks the player connected
func (t *Tracker) SetOnline(ctx context.Context, sessionID, playerID, playerName string) error {
	if err := t.store.SetOnline(ctx, sessionID, playerID, playerName); err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

// SetOffline marks the player disconnected without removing the record
func (t *Tracker) SetOffline(ctx context.Context, sessionID, playerID string) error {
	if err := t.store.Touch(ctx, sessionID, playerID, false); err != nil {
		return fmt.Errorf("set offline: %w", err)
	}
	return nil
}

// Heartbeat refreshes lastSeen. Clients call it every 10 to 15 seconds.
func (t *Tracker) Heartbeat(ctx context.Context, sessionID, playerID string) error {
	if err := t.store.Touch(ctx, sessionID, playerID, true); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// Remove deletes the player's record
func (t *Tracker) Remove(ctx context.Context, sessionID, playerID string) error {
	if err := t.store.Remove(ctx, sessionID, playerID); err != nil {
		return fmt.Errorf("remove presence: %w", err)
	}
	return nil
}

// RemoveSession deletes every record of the session
func (t *Tracker) RemoveSession(ctx context.Context, sessionID string) error {
	if err := t.store.RemoveSession(ctx, sessionID); err != nil {
		return fmt.Errorf("remove session presence: %w", err)
	}
	return nil
}

// Records returns the raw presence records of a session
func (t *Tracker) Records(ctx context.Context, sessionID string) ([]models.PresenceRecord, error) {
	records, err := t.store.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	return records, nil
}

// OnlinePlayers returns the ids of players that are online and were seen within PresenceTimeout
func (t *Tracker) OnlinePlayers(ctx context.Context, sessionID string) ([]string, error) {
	records, err := t.Records(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := t.now()
	online := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Online && now.Sub(rec.LastSeen) < PresenceTimeout {
			online = append(online, rec.PlayerID)
		}
	}
	return online, nil
}

// CleanupStale removes records whose lastSeen is older than CleanupThreshold and
// returns the purged player ids. The caller is responsible for trimming the roster.
func (t *Tracker) CleanupStale(ctx context.Context, sessionID string) ([]string, error) {
	records, err := t.Records(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := t.now()
	var purged []string
	for _, rec := range records {
		if now.Sub(rec.LastSeen) <= CleanupThreshold {
			continue
		}
		if err := t.store.Remove(ctx, sessionID, rec.PlayerID); err != nil {
			return purged, fmt.Errorf("remove stale presence: %w", err)
		}
		purged = append(purged, rec.PlayerID)
	}

	if len(purged) > 0 {
		t.metrics.PresenceStalePurged(len(purged))
		t.logger.Info("Purged stale presence",
			logger.F("session_id", sessionID),
			logger.F("count", fmt.Sprintf("%d", len(purged))),
		)
	}
	return purged, nil
}
