package game

import (
	"slices"
	"strings"

	"github.com/sketchduel/backend/internal/models"
)

// rules is the per-mode part of the state machine
type rules interface {
	mode() models.Mode
	maxPlayersCap() int
	defaults(pool []string) models.Settings
	init(s *models.GameSession)
	// roundStarted resets per-round scratch state after a new category is drawn
	roundStarted(e *Engine, s *models.GameSession)
	// timeout settles the current round and returns the recorded result
	timeout(s *models.GameSession) models.RoundResult
	finish(s *models.GameSession)
	// playerRemoved adjusts a PLAYING session after its roster shrank
	playerRemoved(e *Engine, s *models.GameSession, removed models.Player)
}

const (
	minPlayers        = 2
	defaultMaxPlayers = 4
	defaultMaxRounds  = 5
	defaultConfidence = 0.85
	maxChatMessages   = 50

	raceWinPoints       = 100
	raceTimeoutPoints   = 50
	teamWinPoints       = 100
	guesserBonusPoints  = 50
	defaultRaceDuration = 60
	defaultGuessSeconds = 90
	defaultPredictionMS = 500
)

func rulesFor(mode models.Mode) (rules, bool) {
	switch mode {
	case models.ModeRace:
		return raceRules{}, true
	case models.ModeGuessing:
		return guessingRules{}, true
	default:
		return nil, false
	}
}

func sameLabel(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func clampPlayers(requested, ceiling int) int {
	if requested <= 0 {
		requested = defaultMaxPlayers
	}
	if requested < minPlayers {
		return minPlayers
	}
	if requested > ceiling {
		return ceiling
	}
	return requested
}

// applyOverrides merges caller settings over the mode defaults. Values that
// would leave a session unplayable are rejected.
func applyOverrides(s models.Settings, m models.Mode, o *models.SettingsOverrides) (models.Settings, error) {
	if o == nil {
		return s, nil
	}
	if o.MaxRounds != nil {
		if *o.MaxRounds < 1 {
			return s, invalidState("max_rounds must be at least 1")
		}
		s.MaxRounds = *o.MaxRounds
	}
	if o.RoundDuration != nil {
		if *o.RoundDuration < 1 {
			return s, invalidState("round_duration must be positive")
		}
		s.RoundDuration = *o.RoundDuration
	}
	if o.Categories != nil {
		pool := make([]string, 0, len(o.Categories))
		for _, c := range o.Categories {
			if c = strings.TrimSpace(c); c != "" && !slices.Contains(pool, c) {
				pool = append(pool, c)
			}
		}
		if len(pool) == 0 {
			return s, invalidState("categories must not be empty")
		}
		s.Categories = pool
	}
	switch m {
	case models.ModeRace:
		if o.TargetConfidence != nil {
			if !validConfidence(*o.TargetConfidence) {
				return s, invalidState("target_confidence must be in (0, 1]")
			}
			s.TargetConfidence = *o.TargetConfidence
		}
	case models.ModeGuessing:
		if o.AIConfidenceThreshold != nil {
			if !validConfidence(*o.AIConfidenceThreshold) {
				return s, invalidState("ai_confidence_threshold must be in (0, 1]")
			}
			s.AIConfidenceThreshold = *o.AIConfidenceThreshold
		}
		if o.PredictionInterval != nil {
			if *o.PredictionInterval < 1 {
				return s, invalidState("prediction_interval must be positive")
			}
			s.PredictionInterval = *o.PredictionInterval
		}
	}
	return s, nil
}

func validConfidence(c float64) bool { return c > 0 && c <= 1 }
