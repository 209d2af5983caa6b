package game

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchduel/backend/internal/metrics"
	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/internal/presence"
	"github.com/sketchduel/backend/internal/storage"
	"github.com/sketchduel/backend/pkg/logger"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	engine   *Engine
	repo     *storage.MemoryStorage
	presence *storage.MemoryPresence
	tracker  *presence.Tracker
	clock    *testClock
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, nil, opts...)
}

func newFixtureWithRepo(t *testing.T, repo storage.SessionRepository, opts ...Option) *fixture {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	mem := storage.NewMemoryStorage()
	if repo == nil {
		repo = mem
	}
	pres := storage.NewMemoryPresence(clock.Now)
	tracker := presence.NewTracker(pres, logger.Nop(), presence.WithClock(clock.Now))
	m := metrics.New(nil)

	base := []Option{
		WithClock(clock.Now),
		WithRand(rand.New(rand.NewPCG(7, 11))),
		WithMetrics(m),
	}
	engine := NewEngine(repo, tracker, logger.Nop(), append(base, opts...)...)
	return &fixture{engine: engine, repo: mem, presence: pres, tracker: tracker, clock: clock, metrics: m}
}

func (f *fixture) lobby(t *testing.T, mode models.Mode, players int, settings *models.SettingsOverrides) *models.GameSession {
	t.Helper()
	ctx := context.Background()
	s, err := f.engine.Create(ctx, CreateParams{
		Mode:        mode,
		CreatorID:   "p1",
		CreatorName: "Player 1",
		MaxPlayers:  5,
		Settings:    settings,
	})
	require.NoError(t, err)
	for i := 2; i <= players; i++ {
		id := "p" + string(rune('0'+i))
		s, err = f.engine.Join(ctx, mode, s.ID, id, "Player "+string(rune('0'+i)))
		require.NoError(t, err)
	}
	return s
}

func (f *fixture) started(t *testing.T, mode models.Mode, players int, settings *models.SettingsOverrides) *models.GameSession {
	t.Helper()
	ctx := context.Background()
	s := f.lobby(t, mode, players, settings)
	_, err := f.engine.Start(ctx, mode, s.ID)
	require.NoError(t, err)
	s, err = f.engine.Get(ctx, mode, s.ID)
	require.NoError(t, err)
	return s
}

func intPtr(v int) *int { return &v }

func TestEngine_CreateDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.engine.Create(ctx, CreateParams{Mode: models.ModeRace, CreatorID: "p1", CreatorName: "Ann"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusWaiting, s.Status)
	assert.Equal(t, "p1", s.CreatorID)
	assert.Equal(t, 4, s.MaxPlayers)
	assert.Equal(t, 0, s.CurrentRound)
	assert.Equal(t, 5, s.MaxRounds)
	assert.Equal(t, 60, s.Settings.RoundDuration)
	assert.Equal(t, 0.85, s.Settings.TargetConfidence)
	assert.Len(t, s.Settings.Categories, 14)
	assert.Empty(t, s.CurrentCategory)
	require.Len(t, s.Players, 1)
	assert.Equal(t, "Ann", s.Players[0].PlayerName)
	assert.Regexp(t, `^[A-Z0-9]{4}$`, s.RoomCode)
	assert.Nil(t, s.TeamAI)

	online, err := f.tracker.OnlinePlayers(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, online)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GamesCreated.WithLabelValues("race")))

	g, err := f.engine.Create(ctx, CreateParams{Mode: models.ModeGuessing, CreatorID: "p1", CreatorName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, 90, g.Settings.RoundDuration)
	assert.Equal(t, 0.85, g.Settings.AIConfidenceThreshold)
	assert.Equal(t, 500, g.Settings.PredictionInterval)
	assert.NotNil(t, g.TeamHumans)
	assert.NotNil(t, g.TeamAI)
}

func TestEngine_CreateClampsPlayersAndAppliesOverrides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		mode models.Mode
		max  int
		want int
	}{
		{"race above cap", models.ModeRace, 10, 4},
		{"race below minimum", models.ModeRace, 1, 2},
		{"guessing above cap", models.ModeGuessing, 10, 5},
		{"guessing default", models.ModeGuessing, 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := f.engine.Create(ctx, CreateParams{Mode: tt.mode, CreatorID: "p1", MaxPlayers: tt.max})
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.MaxPlayers)
		})
	}

	target := 0.7
	s, err := f.engine.Create(ctx, CreateParams{
		Mode:      models.ModeRace,
		CreatorID: "p1",
		Settings: &models.SettingsOverrides{
			MaxRounds:        intPtr(3),
			TargetConfidence: &target,
			Categories:       []string{"cat", "sun"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.MaxRounds)
	assert.Equal(t, 0.7, s.Settings.TargetConfidence)
	assert.Equal(t, []string{"cat", "sun"}, s.Settings.Categories)

	_, err = f.engine.Create(ctx, CreateParams{Mode: "poker", CreatorID: "p1"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestEngine_CreateRejectsUnplayableSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	zero := 0.0

	tests := []struct {
		name     string
		mode     models.Mode
		settings *models.SettingsOverrides
	}{
		{"zero rounds", models.ModeRace, &models.SettingsOverrides{MaxRounds: intPtr(0)}},
		{"negative rounds", models.ModeGuessing, &models.SettingsOverrides{MaxRounds: intPtr(-2)}},
		{"empty category pool", models.ModeRace, &models.SettingsOverrides{Categories: []string{}}},
		{"blank categories", models.ModeRace, &models.SettingsOverrides{Categories: []string{" ", ""}}},
		{"zero round duration", models.ModeRace, &models.SettingsOverrides{RoundDuration: intPtr(0)}},
		{"zero target", models.ModeRace, &models.SettingsOverrides{TargetConfidence: &zero}},
		{"zero ai threshold", models.ModeGuessing, &models.SettingsOverrides{AIConfidenceThreshold: &zero}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Create(ctx, CreateParams{Mode: tt.mode, CreatorID: "p1", Settings: tt.settings})
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}

	lobbies, err := f.engine.ListLobbies(ctx, models.ModeRace)
	require.NoError(t, err)
	assert.Empty(t, lobbies)

	s, err := f.engine.Create(ctx, CreateParams{
		Mode:      models.ModeRace,
		CreatorID: "p1",
		Settings:  &models.SettingsOverrides{Categories: []string{" kite ", "kite", "boat"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"kite", "boat"}, s.Settings.Categories)
}

func TestEngine_CustomCategoryPool(t *testing.T) {
	f := newFixture(t, WithCategories([]string{"kite", "boat"}))
	s, err := f.engine.Create(context.Background(), CreateParams{Mode: models.ModeRace, CreatorID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"kite", "boat"}, s.Settings.Categories)
}

func TestEngine_Join(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.engine.Create(ctx, CreateParams{Mode: models.ModeRace, CreatorID: "p1", CreatorName: "Ann", MaxPlayers: 2})
	require.NoError(t, err)

	s, err = f.engine.Join(ctx, models.ModeRace, s.ID, "p2", "Bob")
	require.NoError(t, err)
	require.Len(t, s.Players, 2)
	assert.Equal(t, "p2", s.Players[1].PlayerID)
	assert.Zero(t, s.Players[1].Score)

	t.Run("duplicate join is rejected", func(t *testing.T) {
		_, err := f.engine.Join(ctx, models.ModeRace, s.ID, "p2", "Bob")
		assert.ErrorIs(t, err, ErrConflict)
		got, err := f.engine.Get(ctx, models.ModeRace, s.ID)
		require.NoError(t, err)
		assert.Len(t, got.Players, 2)
	})

	t.Run("full lobby", func(t *testing.T) {
		_, err := f.engine.Join(ctx, models.ModeRace, s.ID, "p3", "Cid")
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("wrong mode", func(t *testing.T) {
		_, err := f.engine.Join(ctx, models.ModeGuessing, s.ID, "p3", "Cid")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown game", func(t *testing.T) {
		_, err := f.engine.Join(ctx, models.ModeRace, "missing", "p3", "Cid")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("already started", func(t *testing.T) {
		_, err := f.engine.Start(ctx, models.ModeRace, s.ID)
		require.NoError(t, err)
		_, err = f.engine.Join(ctx, models.ModeRace, s.ID, "p3", "Cid")
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestEngine_Start(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	solo := f.lobby(t, models.ModeRace, 1, nil)
	_, err := f.engine.Start(ctx, models.ModeRace, solo.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	s := f.lobby(t, models.ModeRace, 2, nil)
	info, err := f.engine.Start(ctx, models.ModeRace, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "started", info.Status)
	assert.Equal(t, 1, info.Round)
	assert.Equal(t, 60, info.RoundDuration)
	assert.Contains(t, s.Settings.Categories, info.Category)
	assert.Nil(t, info.Drawer)

	got, err := f.engine.Get(ctx, models.ModeRace, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaying, got.Status)
	assert.Equal(t, info.Category, got.CurrentCategory)
	assert.Equal(t, []string{info.Category}, got.UsedCategories)
	require.NotNil(t, got.RoundStartedAt)

	_, err = f.engine.Start(ctx, models.ModeRace, s.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestEngine_LobbiesAndRoomCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	race := f.lobby(t, models.ModeRace, 1, nil)
	f.clock.Advance(time.Second)
	guess := f.lobby(t, models.ModeGuessing, 1, nil)
	f.clock.Advance(time.Second)
	f.started(t, models.ModeRace, 2, nil)

	lobbies, err := f.engine.ListLobbies(ctx, models.ModeRace)
	require.NoError(t, err)
	require.Len(t, lobbies, 1)
	assert.Equal(t, race.ID, lobbies[0].ID)

	found, err := f.engine.GetByCode(ctx, models.ModeGuessing, guess.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, guess.ID, found.ID)

	found, err = f.engine.GetByCode(ctx, models.ModeRace, strings.ToLower(race.RoomCode))
	require.NoError(t, err)
	assert.Equal(t, race.ID, found.ID)

	_, err = f.engine.GetByCode(ctx, models.ModeRace, "!!!!")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_Leave(t *testing.T) {
	ctx := context.Background()

	t.Run("creator hand-off", func(t *testing.T) {
		f := newFixture(t)
		s := f.lobby(t, models.ModeRace, 3, nil)

		res, err := f.engine.Leave(ctx, models.ModeRace, s.ID, "p1")
		require.NoError(t, err)
		assert.Equal(t, StatusPlayerRemoved, res.Status)
		assert.Equal(t, 2, res.RemainingPlayers)
		assert.True(t, res.WasCreator)

		got, err := f.engine.Get(ctx, models.ModeRace, s.ID)
		require.NoError(t, err)
		assert.Len(t, got.Players, 2)
		assert.Equal(t, "p2", got.CreatorID)

		records, err := f.tracker.Records(ctx, s.ID)
		require.NoError(t, err)
		for _, r := range records {
			assert.NotEqual(t, "p1", r.PlayerID)
		}
	})

	t.Run("unknown player", func(t *testing.T) {
		f := newFixture(t)
		s := f.lobby(t, models.ModeRace, 2, nil)
		_, err := f.engine.Leave(ctx, models.ModeRace, s.ID, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("last player deletes the session", func(t *testing.T) {
		f := newFixture(t)
		s := f.lobby(t, models.ModeGuessing, 1, nil)

		res, err := f.engine.Leave(ctx, models.ModeGuessing, s.ID, "p1")
		require.NoError(t, err)
		assert.Equal(t, StatusGameDeleted, res.Status)

		_, err = f.engine.Get(ctx, models.ModeGuessing, s.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		records, err := f.tracker.Records(ctx, s.ID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("race below two players finishes with sole champion", func(t *testing.T) {
		f := newFixture(t)
		s := f.started(t, models.ModeRace, 2, nil)

		res, err := f.engine.Leave(ctx, models.ModeRace, s.ID, "p1")
		require.NoError(t, err)
		assert.True(t, res.GameFinished)

		got, err := f.engine.Get(ctx, models.ModeRace, s.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFinished, got.Status)
		require.NotNil(t, got.Champion)
		assert.Equal(t, "p2", got.Champion.PlayerID)
	})

	t.Run("guessing drawer hand-off", func(t *testing.T) {
		f := newFixture(t)
		s := f.started(t, models.ModeGuessing, 3, nil)
		drawer := s.CurrentDrawer.PlayerID
		require.NoError(t, f.engine.UpdateCanvas(ctx, s.ID, drawer, "data:image/png;base64,AAAA"))

		_, err := f.engine.Leave(ctx, models.ModeGuessing, s.ID, drawer)
		require.NoError(t, err)

		got, err := f.engine.Get(ctx, models.ModeGuessing, s.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPlaying, got.Status)
		require.NotNil(t, got.CurrentDrawer)
		assert.NotEqual(t, drawer, got.CurrentDrawer.PlayerID)
		assert.GreaterOrEqual(t, got.FindPlayer(got.CurrentDrawer.PlayerID), 0)
		assert.Empty(t, got.CanvasState)
	})

	t.Run("guessing below two players is abandoned", func(t *testing.T) {
		f := newFixture(t)
		s := f.started(t, models.ModeGuessing, 2, nil)

		res, err := f.engine.Leave(ctx, models.ModeGuessing, s.ID, "p2")
		require.NoError(t, err)
		assert.True(t, res.GameFinished)

		got, err := f.engine.Get(ctx, models.ModeGuessing, s.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFinished, got.Status)
		assert.Equal(t, models.WinnerAbandoned, got.Winner)
	})
}

func TestEngine_TrimRoster(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.lobby(t, models.ModeRace, 3, nil)

	res, err := f.engine.TrimRoster(ctx, s.ID, func(id string) bool { return id != "p1" })
	require.NoError(t, err)
	assert.Equal(t, StatusSynced, res.Status)
	assert.Equal(t, []string{"p1"}, res.Removed)

	got, err := f.engine.Get(ctx, models.ModeRace, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Players, 2)
	assert.Equal(t, "p2", got.CreatorID)

	res, err = f.engine.TrimRoster(ctx, s.ID, func(string) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, StatusNoChange, res.Status)

	res, err = f.engine.TrimRoster(ctx, s.ID, func(string) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, StatusGameDeleted, res.Status)
	_, err = f.engine.Get(ctx, models.ModeRace, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	playing := f.started(t, models.ModeRace, 2, nil)
	res, err = f.engine.TrimRoster(ctx, playing.ID, func(string) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
}

func TestEngine_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.started(t, models.ModeGuessing, 2, nil)

	require.NoError(t, f.engine.Delete(ctx, s.ID))
	_, err := f.engine.Get(ctx, models.ModeGuessing, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, f.engine.Delete(ctx, s.ID), ErrNotFound)
}

// conflictingRepo fails the next n updates as if another process wrote first
type conflictingRepo struct {
	*storage.MemoryStorage
	mu        sync.Mutex
	conflicts int
}

func (c *conflictingRepo) UpdateSession(ctx context.Context, s *models.GameSession, expected int64) error {
	c.mu.Lock()
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()
		return storage.ErrVersionConflict
	}
	c.mu.Unlock()
	return c.MemoryStorage.UpdateSession(ctx, s, expected)
}

func TestEngine_VersionConflictRetries(t *testing.T) {
	ctx := context.Background()
	repo := &conflictingRepo{MemoryStorage: storage.NewMemoryStorage()}
	f := newFixtureWithRepo(t, repo)

	s, err := f.engine.Create(ctx, CreateParams{Mode: models.ModeRace, CreatorID: "p1"})
	require.NoError(t, err)

	repo.conflicts = 2
	_, err = f.engine.Join(ctx, models.ModeRace, s.ID, "p2", "Bob")
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ConflictRetries))

	repo.conflicts = maxUpdateAttempts
	_, err = f.engine.Join(ctx, models.ModeRace, s.ID, "p3", "Cid")
	assert.ErrorIs(t, err, ErrConflict)

	got, err := repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Players, 2)
}

func TestEngine_RetriedWritesCountRoundsOnce(t *testing.T) {
	ctx := context.Background()
	repo := &conflictingRepo{MemoryStorage: storage.NewMemoryStorage()}
	f := newFixtureWithRepo(t, repo)
	s := f.started(t, models.ModeRace, 2, &models.SettingsOverrides{MaxRounds: intPtr(1)})

	repo.conflicts = 2
	out, err := f.engine.HandleTimeout(ctx, models.ModeRace, s.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusGameFinished, out.Status)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ConflictRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RoundsCompleted.WithLabelValues("race", models.ReasonTimeoutNoWinner)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GamesFinished.WithLabelValues("race", "champion")))
}

func TestEngine_ConcurrentWinningSubmissionsAwardOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.started(t, models.ModeRace, 4, nil)

	var wg sync.WaitGroup
	results := make(chan string, len(s.Players))
	for _, p := range s.Players {
		wg.Add(1)
		go func(playerID string) {
			defer wg.Done()
			out, err := f.engine.SubmitDrawing(ctx, DrawingSubmission{
				GameID:     s.ID,
				PlayerID:   playerID,
				Round:      1,
				Prediction: s.CurrentCategory,
				Confidence: 0.95,
			})
			if err != nil {
				results <- "error"
				return
			}
			results <- out.Status
		}(p.PlayerID)
	}
	wg.Wait()
	close(results)

	won := 0
	for status := range results {
		if status == StatusRoundWon {
			won++
		}
	}
	assert.Equal(t, 1, won)

	got, err := f.engine.Get(ctx, models.ModeRace, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentRound)
	total := 0
	for _, p := range got.Players {
		total += p.RoundsWon
	}
	assert.Equal(t, 1, total)
	assert.Len(t, got.RoundWinners, 1)
	assert.Zero(t, f.engine.locks.size())
}

func TestEngine_RoundNeverExceedsMax(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.started(t, models.ModeRace, 2, &models.SettingsOverrides{MaxRounds: intPtr(3)})

	last := s.CurrentRound
	for i := 0; i < 3; i++ {
		out, err := f.engine.HandleTimeout(ctx, models.ModeRace, s.ID, last)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.Game.CurrentRound, last)
		assert.LessOrEqual(t, out.Game.CurrentRound, out.Game.MaxRounds)
		last = out.Game.CurrentRound
	}

	got, err := f.engine.Get(ctx, models.ModeRace, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, got.Status)
	assert.Equal(t, 3, got.CurrentRound)

	_, err = f.engine.HandleTimeout(ctx, models.ModeRace, s.ID, 3)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.lock("a")
	unlockB := k.lock("b")
	assert.Equal(t, 2, k.size())

	acquired := make(chan struct{})
	go func() {
		unlock := k.lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same key must wait")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()
	assert.Eventually(t, func() bool { return k.size() == 0 }, time.Second, time.Millisecond)
}

func TestErrorKinds(t *testing.T) {
	err := notFound("game %s not found", "g1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "game g1 not found", err.Error())

	wrapped := storageError(storage.ErrUnavailable)
	assert.ErrorIs(t, wrapped, ErrUnavailable)
	assert.ErrorIs(t, wrapped, storage.ErrUnavailable)
	assert.ErrorIs(t, storageError(storage.ErrSessionNotFound), ErrNotFound)
	assert.Equal(t, Kind(0), KindOf(assert.AnError))
}
