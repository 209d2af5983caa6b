// Package cleanup reconciles presence data with session documents and reaps
// lobbies nobody started.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sketchduel/backend/internal/game"
	"github.com/sketchduel/backend/internal/metrics"
	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/internal/presence"
	"github.com/sketchduel/backend/internal/storage"
	"github.com/sketchduel/backend/pkg/logger"
)

// DefaultMaxAge is how long a lobby may wait before it is considered abandoned
const DefaultMaxAge = 30 * time.Minute

// AbandonedResult reports an abandoned-lobby sweep
type AbandonedResult struct {
	Status       string   `json:"status"`
	DeletedGames int      `json:"deleted_games"`
	GameIDs      []string `json:"game_ids,omitempty"`
}

// StaleResult reports a stale-player purge
type StaleResult struct {
	Status  string   `json:"status"`
	Purged  []string `json:"purged"`
	Removed []string `json:"removed"`
}

// Service runs administrative sweeps
type Service struct {
	sessions storage.SessionRepository
	engine   *game.Engine
	tracker  *presence.Tracker
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a cleanup service
func NewService(sessions storage.SessionRepository, engine *game.Engine, tracker *presence.Tracker, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		sessions: sessions,
		engine:   engine,
		tracker:  tracker,
		metrics:  m,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides time.Now for age checks
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CleanupAbandonedGames deletes waiting lobbies created more than maxAge ago,
// together with their presence data
func (s *Service) CleanupAbandonedGames(ctx context.Context, maxAge time.Duration) (*AbandonedResult, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	waiting, err := s.sessions.ListSessionsByStatus(ctx, models.StatusWaiting)
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting games: %w", err)
	}

	cutoff := s.now().Add(-maxAge)
	res := &AbandonedResult{Status: "cleanup_complete"}
	for _, session := range waiting {
		if !session.CreatedAt.Before(cutoff) {
			continue
		}
		deleted, err := s.engine.DeleteIfAbandoned(ctx, session.ID, cutoff)
		if errors.Is(err, game.ErrNotFound) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("failed to delete game %s: %w", session.ID, err)
		}
		if !deleted {
			continue
		}
		res.DeletedGames++
		res.GameIDs = append(res.GameIDs, session.ID)
		s.logger.Info("Deleted abandoned game",
			logger.F("game_id", session.ID),
			logger.F("created_at", session.CreatedAt.Format(time.RFC3339)),
		)
	}

	s.metrics.SessionsDeleted("abandoned", res.DeletedGames)
	return res, nil
}

// SyncPresence trims a waiting lobby's roster down to the players the presence
// tracker reports online
func (s *Service) SyncPresence(ctx context.Context, gameID string) (*game.SyncResult, error) {
	online, err := s.tracker.OnlinePlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}

	res, err := s.engine.TrimRoster(ctx, gameID, func(playerID string) bool {
		return slices.Contains(online, playerID)
	})
	if err != nil {
		return nil, err
	}
	if res.Status == game.StatusGameDeleted {
		s.metrics.SessionsDeleted("sync_presence", 1)
	}
	if len(res.Removed) > 0 {
		s.logger.Info("Synced roster with presence",
			logger.F("game_id", gameID),
			logger.F("removed", fmt.Sprintf("%d", len(res.Removed))),
		)
	}
	return res, nil
}

// RemoveStalePlayers purges stale presence records and removes those players
// from the session through the regular leave path
func (s *Service) RemoveStalePlayers(ctx context.Context, gameID string) (*StaleResult, error) {
	session, err := s.engine.Get(ctx, "", gameID)
	if err != nil {
		return nil, err
	}

	purged, err := s.tracker.CleanupStale(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to purge stale presence: %w", err)
	}

	res := &StaleResult{Status: "no_change", Purged: purged, Removed: []string{}}
	for _, playerID := range purged {
		left, err := s.engine.Leave(ctx, session.Mode, gameID, playerID)
		if errors.Is(err, game.ErrNotFound) {
			continue
		}
		if err != nil {
			return res, err
		}
		res.Removed = append(res.Removed, playerID)
		res.Status = game.StatusPlayerRemoved
		if left.Status == game.StatusGameDeleted {
			res.Status = game.StatusGameDeleted
			s.metrics.SessionsDeleted("stale_players", 1)
			break
		}
	}
	return res, nil
}

// ForceDelete removes a game and its presence data in any state
func (s *Service) ForceDelete(ctx context.Context, gameID string) error {
	if err := s.engine.Delete(ctx, gameID); err != nil {
		return err
	}
	s.metrics.SessionsDeleted("admin", 1)
	return nil
}
