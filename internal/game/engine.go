// Package game implements the session state machine for race and guessing matches.
//
// Every mutation runs through Engine.mutate: one writer per session id inside the
// process, and a version compare-and-set against the repository so writers in
// other processes are detected and retried.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sketchduel/backend/internal/category"
	"github.com/sketchduel/backend/internal/metrics"
	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/internal/presence"
	"github.com/sketchduel/backend/internal/storage"
	"github.com/sketchduel/backend/pkg/logger"
)

const (
	maxUpdateAttempts = 5
	roomCodeLength    = 4
	roomCodeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeAttempts  = 10
)

var (
	// errNoChange ends a mutation without writing
	errNoChange = errors.New("no change")
	// errDeleteSession ends a mutation by deleting the session
	errDeleteSession = errors.New("delete session")
)

// Notifier is told about every committed change
type Notifier interface {
	SessionChanged(session *models.GameSession)
	SessionDeleted(sessionID string)
}

type nopNotifier struct{}

func (nopNotifier) SessionChanged(*models.GameSession) {}

func (nopNotifier) SessionDeleted(string) {}

// Engine runs the game state machine
type Engine struct {
	sessions storage.SessionRepository
	presence *presence.Tracker
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *logger.Logger
	locks    *keyedMutex
	now      func() time.Time
	pool     []string

	rngMu   sync.Mutex
	rng     *rand.Rand
	sampler *category.Sampler
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand makes category, drawer and room code choices deterministic
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithNotifier registers a listener for committed changes
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithMetrics enables game metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCategories replaces the default category pool
func WithCategories(pool []string) Option {
	return func(e *Engine) {
		if len(pool) > 0 {
			e.pool = append([]string(nil), pool...)
		}
	}
}

// NewEngine creates a game engine
func NewEngine(sessions storage.SessionRepository, tracker *presence.Tracker, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		sessions: sessions,
		presence: tracker,
		notifier: nopNotifier{},
		logger:   log,
		locks:    newKeyedMutex(),
		now:      time.Now,
		pool:     category.DefaultPool,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	e.sampler = category.NewSampler(e.rng)
	return e
}

// Create opens a new lobby with the creator as its first player
func (e *Engine) Create(ctx context.Context, p CreateParams) (*models.GameSession, error) {
	r, ok := rulesFor(p.Mode)
	if !ok {
		return nil, invalidState("unknown game mode %q", p.Mode)
	}
	if p.CreatorID == "" {
		return nil, invalidState("creator_id is required")
	}

	settings, err := applyOverrides(r.defaults(e.pool), p.Mode, p.Settings)
	if err != nil {
		return nil, err
	}

	code, err := e.uniqueRoomCode(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	session := &models.GameSession{
		ID:         uuid.New().String(),
		RoomCode:   code,
		Mode:       p.Mode,
		Status:     models.StatusWaiting,
		CreatorID:  p.CreatorID,
		MaxPlayers: clampPlayers(p.MaxPlayers, r.maxPlayersCap()),
		Players: []models.Player{
			{PlayerID: p.CreatorID, PlayerName: p.CreatorName},
		},
		MaxRounds:      settings.MaxRounds,
		UsedCategories: []string{},
		Settings:       settings,
		RoundWinners:   []models.RoundResult{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.init(session)

	if err := e.sessions.CreateSession(ctx, session); err != nil {
		return nil, storageError(err)
	}

	e.markOnline(ctx, session.ID, p.CreatorID, p.CreatorName)
	e.metrics.GameCreated(string(p.Mode))
	e.logger.Info("Game created",
		logger.F("game_id", session.ID),
		logger.F("mode", string(p.Mode)),
		logger.F("room_code", code),
	)
	e.notifier.SessionChanged(session)
	return session, nil
}

// Join adds a player to a waiting lobby
func (e *Engine) Join(ctx context.Context, mode models.Mode, gameID, playerID, playerName string) (*models.GameSession, error) {
	session, err := e.mutate(ctx, mode, gameID, func(s *models.GameSession) error {
		if s.Status != models.StatusWaiting {
			return invalidState("game already started")
		}
		if s.FindPlayer(playerID) >= 0 {
			return conflict("already in this game")
		}
		if len(s.Players) >= s.MaxPlayers {
			return conflict("game is full")
		}
		s.Players = append(s.Players, models.Player{PlayerID: playerID, PlayerName: playerName})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.markOnline(ctx, gameID, playerID, playerName)
	return session, nil
}

// Start begins round one of a waiting lobby with at least two players
func (e *Engine) Start(ctx context.Context, mode models.Mode, gameID string) (*RoundInfo, error) {
	r, ok := rulesFor(mode)
	if !ok {
		return nil, invalidState("unknown game mode %q", mode)
	}

	session, err := e.mutate(ctx, mode, gameID, func(s *models.GameSession) error {
		if s.Status != models.StatusWaiting {
			return invalidState("game already started")
		}
		if len(s.Players) < minPlayers {
			return invalidState("need at least %d players", minPlayers)
		}
		s.Status = models.StatusPlaying
		s.CurrentRound = 1
		s.UsedCategories = nil
		return e.beginRound(s, r)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Game started",
		logger.F("game_id", gameID),
		logger.F("mode", string(mode)),
		logger.F("players", fmt.Sprintf("%d", len(session.Players))),
	)
	return &RoundInfo{
		Status:        "started",
		Round:         session.CurrentRound,
		Category:      session.CurrentCategory,
		RoundDuration: session.Settings.RoundDuration,
		Drawer:        session.CurrentDrawer,
	}, nil
}

// Get returns a session of the given mode
func (e *Engine) Get(ctx context.Context, mode models.Mode, gameID string) (*models.GameSession, error) {
	return e.load(ctx, mode, gameID)
}

// GetByCode finds a waiting lobby by its room code
func (e *Engine) GetByCode(ctx context.Context, mode models.Mode, code string) (*models.GameSession, error) {
	lobbies, err := e.ListLobbies(ctx, mode)
	if err != nil {
		return nil, err
	}
	for _, s := range lobbies {
		if strings.EqualFold(s.RoomCode, code) {
			return s, nil
		}
	}
	return nil, notFound("no open lobby with code %s", strings.ToUpper(code))
}

// ListLobbies returns the waiting sessions of a mode, oldest first
func (e *Engine) ListLobbies(ctx context.Context, mode models.Mode) ([]*models.GameSession, error) {
	waiting, err := e.sessions.ListSessionsByStatus(ctx, models.StatusWaiting)
	if err != nil {
		return nil, storageError(err)
	}
	lobbies := make([]*models.GameSession, 0, len(waiting))
	for _, s := range waiting {
		if s.Mode == mode {
			lobbies = append(lobbies, s)
		}
	}
	return lobbies, nil
}

// HandleTimeout settles the current round after its deadline. The round must
// match the current round, so repeated timeout calls settle a round once.
func (e *Engine) HandleTimeout(ctx context.Context, mode models.Mode, gameID string, round int) (*Outcome, error) {
	r, ok := rulesFor(mode)
	if !ok {
		return nil, invalidState("unknown game mode %q", mode)
	}
	if round < 1 {
		return nil, invalidState("round number is required")
	}

	var out *Outcome
	var settled int
	session, err := e.mutate(ctx, mode, gameID, func(s *models.GameSession) error {
		if s.Status != models.StatusPlaying {
			return invalidState("game not in playing state")
		}
		if round != s.CurrentRound {
			return invalidState("invalid round number: expected %d, got %d", s.CurrentRound, round)
		}
		settled = s.CurrentRound
		out = &Outcome{Round: s.CurrentRound}

		result := r.timeout(s)
		s.RoundWinners = append(s.RoundWinners, result)
		out.RoundWinner = &result

		finished, err := e.completeRound(s, r)
		if err != nil {
			return err
		}
		switch {
		case finished:
			out.Status = StatusGameFinished
			out.GameOver = true
			out.Champion = s.Champion
			out.Winner = s.Winner
			if mode == models.ModeRace {
				out.Standings = standings(s.Players)
			}
		case result.Winner == models.WinnerAI:
			out.Status = StatusAIWonRound
		default:
			out.Status = StatusNextRound
		}
		if !finished {
			out.NextRound = s.CurrentRound
			if mode == models.ModeRace {
				out.NextCategory = s.CurrentCategory
			}
			out.NextDrawer = s.CurrentDrawer
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if mode == models.ModeGuessing {
		e.prunePredictions(ctx, session, settled)
	}
	out.Game = session
	return out, nil
}

// Leave removes a player. The session is deleted when it empties; the creator
// role moves to the next player in roster order.
func (e *Engine) Leave(ctx context.Context, mode models.Mode, gameID, playerID string) (*LeaveResult, error) {
	r, ok := rulesFor(mode)
	if !ok {
		return nil, invalidState("unknown game mode %q", mode)
	}

	var res *LeaveResult
	_, err := e.mutate(ctx, mode, gameID, func(s *models.GameSession) error {
		res = e.removePlayer(s, r, playerID)
		if res == nil {
			return notFound("player not in game")
		}
		if res.Status == StatusGameDeleted {
			return errDeleteSession
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Status != StatusGameDeleted {
		if err := e.presence.Remove(ctx, gameID, playerID); err != nil {
			e.logger.Warn("Failed to remove presence",
				logger.F("game_id", gameID),
				logger.F("player_id", playerID),
				logger.Err(err),
			)
		}
	}
	return res, nil
}

// removePlayer drops playerID from the roster and applies hand-offs. It returns
// nil when the player is not in the session.
func (e *Engine) removePlayer(s *models.GameSession, r rules, playerID string) *LeaveResult {
	idx := s.FindPlayer(playerID)
	if idx < 0 {
		return nil
	}
	removed := s.Players[idx]
	s.Players = append(s.Players[:idx:idx], s.Players[idx+1:]...)

	res := &LeaveResult{
		Status:           StatusPlayerRemoved,
		RemainingPlayers: len(s.Players),
		WasCreator:       s.CreatorID == playerID,
	}
	if len(s.Players) == 0 {
		res.Status = StatusGameDeleted
		return res
	}
	if res.WasCreator {
		s.CreatorID = s.Players[0].PlayerID
	}
	if s.Status == models.StatusPlaying {
		r.playerRemoved(e, s, removed)
		res.GameFinished = s.Status == models.StatusFinished
	}
	return res
}

// TrimRoster keeps only the players for which keep returns true. Only waiting
// lobbies are trimmed; an emptied lobby is deleted.
func (e *Engine) TrimRoster(ctx context.Context, gameID string, keep func(playerID string) bool) (*SyncResult, error) {
	var res *SyncResult
	_, err := e.mutate(ctx, "", gameID, func(s *models.GameSession) error {
		res = &SyncResult{}
		if s.Status != models.StatusWaiting {
			res.Status = StatusSkipped
			return errNoChange
		}

		r, _ := rulesFor(s.Mode)
		for _, p := range append([]models.Player(nil), s.Players...) {
			if keep(p.PlayerID) {
				continue
			}
			e.removePlayer(s, r, p.PlayerID)
			res.Removed = append(res.Removed, p.PlayerID)
		}

		switch {
		case len(res.Removed) == 0:
			res.Status = StatusNoChange
			return errNoChange
		case len(s.Players) == 0:
			res.Status = StatusGameDeleted
			return errDeleteSession
		default:
			res.Status = StatusSynced
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Delete removes a session and its presence data regardless of state
func (e *Engine) Delete(ctx context.Context, gameID string) error {
	unlock := e.locks.lock(gameID)
	defer unlock()

	if _, err := e.sessions.GetSession(ctx, gameID); err != nil {
		return storageError(err)
	}
	return e.deleteSession(ctx, gameID)
}

// DeleteIfAbandoned deletes a lobby that is still waiting and was created
// before cutoff. It reports false when the session has moved on since it was
// listed, including a write from another process between read and delete.
func (e *Engine) DeleteIfAbandoned(ctx context.Context, gameID string, cutoff time.Time) (bool, error) {
	unlock := e.locks.lock(gameID)
	defer unlock()

	s, err := e.load(ctx, "", gameID)
	if err != nil {
		return false, err
	}
	if s.Status != models.StatusWaiting || !s.CreatedAt.Before(cutoff) {
		return false, nil
	}

	switch err := e.sessions.DeleteSessionIfVersion(ctx, gameID, s.Version); {
	case errors.Is(err, storage.ErrVersionConflict):
		return false, nil
	case err != nil:
		return false, storageError(err)
	}
	e.sessionDeleted(ctx, gameID)
	return true, nil
}

// mutate applies fn to a copy of the session and stores it with a version
// compare-and-set, retrying on concurrent writers. An empty mode skips the
// mode check.
func (e *Engine) mutate(ctx context.Context, mode models.Mode, gameID string, fn func(s *models.GameSession) error) (*models.GameSession, error) {
	unlock := e.locks.lock(gameID)
	defer unlock()

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		current, err := e.load(ctx, mode, gameID)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		switch err := fn(next); {
		case errors.Is(err, errNoChange):
			return current, nil
		case errors.Is(err, errDeleteSession):
			if err := e.deleteSession(ctx, gameID); err != nil {
				return nil, err
			}
			return nil, nil
		case err != nil:
			return nil, err
		}

		next.UpdatedAt = e.now()
		err = e.sessions.UpdateSession(ctx, next, current.Version)
		if err == nil {
			e.recordTransitions(current, next)
			e.notifier.SessionChanged(next)
			return next, nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			return nil, storageError(err)
		}

		e.metrics.ConflictRetry()
		e.logger.Debug("Session version conflict, retrying",
			logger.F("game_id", gameID),
			logger.F("attempt", fmt.Sprintf("%d", attempt)),
		)
	}
	return nil, conflict("game was modified concurrently, please retry")
}

func (e *Engine) load(ctx context.Context, mode models.Mode, gameID string) (*models.GameSession, error) {
	s, err := e.sessions.GetSession(ctx, gameID)
	if err != nil {
		return nil, storageError(err)
	}
	if mode != "" && s.Mode != mode {
		return nil, notFound("game not found")
	}
	return s, nil
}

func (e *Engine) deleteSession(ctx context.Context, gameID string) error {
	if err := e.sessions.DeleteSession(ctx, gameID); err != nil {
		return storageError(err)
	}
	e.sessionDeleted(ctx, gameID)
	return nil
}

func (e *Engine) sessionDeleted(ctx context.Context, gameID string) {
	if err := e.presence.RemoveSession(ctx, gameID); err != nil {
		e.logger.Warn("Failed to remove session presence",
			logger.F("game_id", gameID),
			logger.Err(err),
		)
	}
	e.notifier.SessionDeleted(gameID)
	e.logger.Info("Game deleted", logger.F("game_id", gameID))
}

// completeRound finishes the session after the last round, otherwise moves to
// the next round. It reports whether the session finished.
func (e *Engine) completeRound(s *models.GameSession, r rules) (bool, error) {
	if s.CurrentRound >= s.MaxRounds {
		e.finishSession(s, r)
		return true, nil
	}
	s.CurrentRound++
	return false, e.beginRound(s, r)
}

// beginRound draws the next category and resets per-round state
func (e *Engine) beginRound(s *models.GameSession, r rules) error {
	e.rngMu.Lock()
	cat, used, err := e.sampler.Next(s.Settings.Categories, s.UsedCategories)
	e.rngMu.Unlock()
	if err != nil {
		return invalidState("no categories configured")
	}

	now := e.now()
	s.CurrentCategory = cat
	s.UsedCategories = used
	s.RoundStartedAt = &now
	r.roundStarted(e, s)
	return nil
}

func (e *Engine) finishSession(s *models.GameSession, r rules) {
	now := e.now()
	s.Status = models.StatusFinished
	s.FinishedAt = &now
	r.finish(s)
}

// recordTransitions counts the rounds settled and the game finished by a
// committed write. fn may run more than once per mutate, so counting happens here.
func (e *Engine) recordTransitions(prev, next *models.GameSession) {
	for _, rw := range next.RoundWinners[min(len(prev.RoundWinners), len(next.RoundWinners)):] {
		e.metrics.RoundCompleted(string(next.Mode), rw.Reason)
	}
	if prev.Status != models.StatusFinished && next.Status == models.StatusFinished {
		outcome := next.Winner
		if next.Champion != nil {
			outcome = "champion"
		}
		e.metrics.GameFinished(string(next.Mode), outcome)
	}
}

func (e *Engine) uniqueRoomCode(ctx context.Context) (string, error) {
	waiting, err := e.sessions.ListSessionsByStatus(ctx, models.StatusWaiting)
	if err != nil {
		return "", storageError(err)
	}
	taken := make(map[string]bool, len(waiting))
	for _, s := range waiting {
		taken[s.RoomCode] = true
	}

	code := e.roomCode()
	for i := 1; i < roomCodeAttempts && taken[code]; i++ {
		code = e.roomCode()
	}
	return code, nil
}

func (e *Engine) roomCode() string {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()

	b := make([]byte, roomCodeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[e.rng.IntN(len(roomCodeAlphabet))]
	}
	return string(b)
}

func (e *Engine) intN(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}

// markOnline is advisory: failures are logged, never returned
func (e *Engine) markOnline(ctx context.Context, gameID, playerID, playerName string) {
	if err := e.presence.SetOnline(ctx, gameID, playerID, playerName); err != nil {
		e.logger.Warn("Failed to set presence",
			logger.F("game_id", gameID),
			logger.F("player_id", playerID),
			logger.Err(err),
		)
	}
}
