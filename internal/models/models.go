package models

import "time"

// Mode is the kind of match being played
type Mode string

const (
	ModeRace     Mode = "race"
	ModeGuessing Mode = "guessing"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeRace || m == ModeGuessing
}

// Status is the lifecycle state of a session. Finished is terminal.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Team winners for guessing mode, and the round marker for rounds nobody won
const (
	WinnerHumans    = "humans"
	WinnerAI        = "ai"
	WinnerDraw      = "draw"
	WinnerNone      = "none"
	WinnerAbandoned = "abandoned"
)

// Round result reasons
const (
	ReasonTargetReached   = "target_reached"
	ReasonTimeout         = "timeout"
	ReasonTimeoutNoWinner = "timeout_no_winner"
	ReasonCorrectGuess    = "correct_guess"
	ReasonAIPrediction    = "ai_prediction"
	ReasonTimeoutWithAI   = "timeout_with_prediction"
	ReasonTimeoutNoGuess  = "timeout_no_guess"
)

// GameSession represents one match
type GameSession struct {
	ID              string        `json:"game_id"`
	RoomCode        string        `json:"room_code"`
	Mode            Mode          `json:"game_type"`
	Status          Status        `json:"status"`
	CreatorID       string        `json:"creator_id"`
	MaxPlayers      int           `json:"max_players"`
	Players         []Player      `json:"players"`
	CurrentRound    int           `json:"current_round"`
	MaxRounds       int           `json:"max_rounds"`
	CurrentCategory string        `json:"current_category,omitempty"`
	UsedCategories  []string      `json:"used_categories"`
	Settings        Settings      `json:"settings"`
	RoundWinners    []RoundResult `json:"round_winners"`
	RoundStartedAt  *time.Time    `json:"round_start_time,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`

	// Race mode
	RoundSubmissions []Submission `json:"round_submissions,omitempty"`
	Champion         *Champion    `json:"champion,omitempty"`

	// Guessing mode
	CurrentDrawer *PlayerRef    `json:"current_drawer,omitempty"`
	TeamHumans    *TeamScore    `json:"team_humans,omitempty"`
	TeamAI        *AITeam       `json:"team_ai,omitempty"`
	Winner        string        `json:"winner,omitempty"`
	CanvasState   string        `json:"canvas_state,omitempty"`
	Chat          []ChatMessage `json:"chat,omitempty"`

	// Version is bumped on every successful write and used for compare-and-set
	Version int64 `json:"version"`
}

// Player is a participant owned by a GameSession
type Player struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Ready      bool   `json:"ready"`

	// Race mode
	Score     int `json:"score"`
	RoundsWon int `json:"rounds_won"`

	// Guessing mode
	TeamScore         int `json:"team_score"`
	IndividualGuesses int `json:"individual_guesses"`
}

// PlayerRef identifies a player without scores
type PlayerRef struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// Settings are fixed at creation time
type Settings struct {
	MaxRounds             int      `json:"max_rounds"`
	RoundDuration         int      `json:"round_duration"` // seconds
	TargetConfidence      float64  `json:"target_confidence,omitempty"`
	AIConfidenceThreshold float64  `json:"ai_confidence_threshold,omitempty"`
	PredictionInterval    int      `json:"prediction_interval,omitempty"` // milliseconds
	Categories            []string `json:"categories"`
}

// SettingsOverrides carries caller-supplied settings; nil fields keep mode defaults
type SettingsOverrides struct {
	MaxRounds             *int     `json:"max_rounds,omitempty" validate:"omitempty,min=1,max=20"`
	RoundDuration         *int     `json:"round_duration,omitempty" validate:"omitempty,min=10,max=600"`
	TargetConfidence      *float64 `json:"target_confidence,omitempty" validate:"omitempty,gt=0,lte=1"`
	AIConfidenceThreshold *float64 `json:"ai_confidence_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	PredictionInterval    *int     `json:"prediction_interval,omitempty" validate:"omitempty,min=100,max=10000"`
	Categories            []string `json:"categories,omitempty" validate:"omitempty,min=1,dive,required"`
}

// Submission is a player's best matching drawing in the current race round
type Submission struct {
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// RoundResult records how a round ended
type RoundResult struct {
	Round      int     `json:"round"`
	WinnerID   string  `json:"winner_id,omitempty"`
	WinnerName string  `json:"winner_name,omitempty"`
	Winner     string  `json:"winner,omitempty"` // humans, ai, none (guessing)
	Guesser    string  `json:"guesser,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Category   string  `json:"category"`
	Reason     string  `json:"reason"`
}

// Champion is the race winner
type Champion struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	RoundsWon  int    `json:"rounds_won"`
}

// TeamScore tracks the human team in guessing mode
type TeamScore struct {
	Score     int `json:"score"`
	RoundsWon int `json:"rounds_won"`
}

// AITeam tracks the classifier's team in guessing mode
type AITeam struct {
	Score       int          `json:"score"`
	RoundsWon   int          `json:"rounds_won"`
	Predictions []Prediction `json:"predictions"`
}

// Prediction is one classifier output recorded during a guessing round
type Prediction struct {
	Round      int       `json:"round"`
	Label      string    `json:"prediction"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChatMessage is a team chat line in guessing mode
type ChatMessage struct {
	ID         string    `json:"id"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"timestamp"`
}

// PresenceRecord is the liveness entry for a (session, player) pair
type PresenceRecord struct {
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"playerName"`
	Online     bool      `json:"online"`
	LastSeen   time.Time `json:"lastSeen"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// FindPlayer returns the index of the player with the given id, or -1
func (s *GameSession) FindPlayer(playerID string) int {
	for i := range s.Players {
		if s.Players[i].PlayerID == playerID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so mutations can be computed off the stored value
func (s *GameSession) Clone() *GameSession {
	c := *s
	c.Players = append([]Player(nil), s.Players...)
	c.UsedCategories = append([]string(nil), s.UsedCategories...)
	c.Settings.Categories = append([]string(nil), s.Settings.Categories...)
	c.RoundWinners = append([]RoundResult(nil), s.RoundWinners...)
	c.RoundSubmissions = append([]Submission(nil), s.RoundSubmissions...)
	c.Chat = append([]ChatMessage(nil), s.Chat...)
	if s.RoundStartedAt != nil {
		t := *s.RoundStartedAt
		c.RoundStartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	if s.Champion != nil {
		ch := *s.Champion
		c.Champion = &ch
	}
	if s.CurrentDrawer != nil {
		d := *s.CurrentDrawer
		c.CurrentDrawer = &d
	}
	if s.TeamHumans != nil {
		h := *s.TeamHumans
		c.TeamHumans = &h
	}
	if s.TeamAI != nil {
		ai := *s.TeamAI
		ai.Predictions = append([]Prediction(nil), s.TeamAI.Predictions...)
		c.TeamAI = &ai
	}
	return &c
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
