package game

import "github.com/sketchduel/backend/internal/models"

// Outcome statuses returned by submissions and timeouts
const (
	StatusRoundWon          = "round_won"
	StatusGameFinished      = "game_finished"
	StatusKeepDrawing       = "keep_drawing"
	StatusIncorrectCategory = "incorrect_category"
	StatusNextRound         = "next_round"
	StatusCorrectGuess      = "correct_guess"
	StatusIncorrectGuess    = "incorrect_guess"
	StatusAIWonRound        = "ai_won_round"
	StatusPredictionAdded   = "prediction_added"
	StatusIgnored           = "ignored"
)

// Leave and roster-sync statuses
const (
	StatusPlayerRemoved = "player_removed"
	StatusGameDeleted   = "game_deleted"
	StatusSynced        = "synced"
	StatusNoChange      = "no_change"
	StatusSkipped       = "skipped"
)

// CreateParams describes a new lobby
type CreateParams struct {
	Mode        models.Mode
	CreatorID   string
	CreatorName string
	MaxPlayers  int
	Settings    *models.SettingsOverrides
}

// DrawingSubmission is a race player's classified drawing
type DrawingSubmission struct {
	GameID     string
	PlayerID   string
	Round      int
	Prediction string
	Confidence float64
}

// GuessSubmission is a guessing-mode player's guess
type GuessSubmission struct {
	GameID   string
	PlayerID string
	Guess    string
	Round    int
}

// AIPrediction is one classifier output for the drawer's canvas
type AIPrediction struct {
	GameID     string
	Round      int
	Prediction string
	Confidence float64
}

// RoundInfo describes the round that just started
type RoundInfo struct {
	Status        string            `json:"status"`
	Round         int               `json:"current_round"`
	Category      string            `json:"category"`
	RoundDuration int               `json:"round_duration"`
	Drawer        *models.PlayerRef `json:"drawer,omitempty"`
}

// Outcome is the result of a submission or a timeout
type Outcome struct {
	Status       string              `json:"status"`
	Message      string              `json:"message,omitempty"`
	Round        int                 `json:"round"`
	Confidence   float64             `json:"confidence,omitempty"`
	Target       float64             `json:"target,omitempty"`
	RoundWinner  *models.RoundResult `json:"round_winner,omitempty"`
	NextRound    int                 `json:"next_round,omitempty"`
	NextCategory string              `json:"next_category,omitempty"`
	NextDrawer   *models.PlayerRef   `json:"new_drawer,omitempty"`
	GameOver     bool                `json:"game_over"`
	Champion     *models.Champion    `json:"champion,omitempty"`
	Winner       string              `json:"winner,omitempty"`
	Standings    []models.Player     `json:"final_standings,omitempty"`
	Game         *models.GameSession `json:"game,omitempty"`
}

// LeaveResult reports what removing a player did to the session
type LeaveResult struct {
	Status           string `json:"status"`
	RemainingPlayers int    `json:"remaining_players"`
	WasCreator       bool   `json:"was_creator"`
	GameFinished     bool   `json:"game_finished,omitempty"`
}

// SyncResult reports a roster reconciliation
type SyncResult struct {
	Status  string   `json:"status"`
	Removed []string `json:"removed,omitempty"`
}
