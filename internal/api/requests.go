package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/sketchduel/backend/internal/models"
)

const maxBodyBytes = 2 << 20

var validate = validator.New()

// CreateGameRequest opens a new lobby
type CreateGameRequest struct {
	CreatorID   string                    `json:"creator_id" validate:"required,max=128"`
	CreatorName string                    `json:"creator_name" validate:"required,max=64"`
	MaxPlayers  int                       `json:"max_players" validate:"min=0,max=16"`
	Settings    *models.SettingsOverrides `json:"settings"`
}

// JoinGameRequest adds a player to a lobby
type JoinGameRequest struct {
	GameID     string `json:"game_id" validate:"required"`
	PlayerID   string `json:"player_id" validate:"required,max=128"`
	PlayerName string `json:"player_name" validate:"required,max=64"`
}

// GameRequest identifies a session
type GameRequest struct {
	GameID string `json:"game_id" validate:"required"`
}

// TimeoutRequest ends the round the client's timer was running for
type TimeoutRequest struct {
	GameID      string `json:"game_id" validate:"required"`
	RoundNumber int    `json:"round_number" validate:"required,min=1"`
}

// LeaveRequest removes a player
type LeaveRequest struct {
	GameID   string `json:"game_id" validate:"required"`
	PlayerID string `json:"player_id" validate:"required"`
}

// SubmitDrawingRequest is a race player's classified drawing
type SubmitDrawingRequest struct {
	GameID      string  `json:"game_id" validate:"required"`
	PlayerID    string  `json:"player_id" validate:"required"`
	RoundNumber int     `json:"round_number" validate:"required,min=1"`
	DrawingData string  `json:"drawing_data"`
	Prediction  string  `json:"prediction" validate:"required"`
	Confidence  float64 `json:"confidence" validate:"min=0,max=1"`
}

// SubmitGuessRequest is a guessing-mode guess
type SubmitGuessRequest struct {
	GameID      string `json:"game_id" validate:"required"`
	PlayerID    string `json:"player_id" validate:"required"`
	PlayerName  string `json:"player_name"`
	Guess       string `json:"guess" validate:"required,max=64"`
	RoundNumber int    `json:"round_number" validate:"required,min=1"`
}

// AIPredictionRequest is a classifier output for the drawer's canvas
type AIPredictionRequest struct {
	GameID      string  `json:"game_id" validate:"required"`
	RoundNumber int     `json:"round_number" validate:"required,min=1"`
	Prediction  string  `json:"prediction" validate:"required"`
	Confidence  float64 `json:"confidence" validate:"min=0,max=1"`
}

// ChatRequest is a team chat line
type ChatRequest struct {
	GameID     string `json:"game_id" validate:"required"`
	PlayerID   string `json:"player_id" validate:"required"`
	PlayerName string `json:"player_name"`
	Message    string `json:"message" validate:"required,max=500"`
}

// UpdateCanvasRequest replaces the drawer's canvas
type UpdateCanvasRequest struct {
	GameID      string `json:"game_id" validate:"required"`
	PlayerID    string `json:"player_id" validate:"required"`
	CanvasState string `json:"canvas_state"`
}

// PresenceRequest updates one player's liveness
type PresenceRequest struct {
	SessionID  string `json:"session_id" validate:"required"`
	PlayerID   string `json:"player_id" validate:"required"`
	PlayerName string `json:"player_name"`
}

// PredictRequest is a drawing to classify
type PredictRequest struct {
	ImageData string `json:"image_data" validate:"required"`
}

// decodeAndValidate reads a JSON body into dst and validates it
func decodeAndValidate(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

// validationMessage flattens validator errors into one readable error
func validationMessage(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
