package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/pkg/logger"
)

type guessingRules struct{}

func (guessingRules) mode() models.Mode { return models.ModeGuessing }

func (guessingRules) maxPlayersCap() int { return 5 }

func (guessingRules) defaults(pool []string) models.Settings {
	return models.Settings{
		MaxRounds:             defaultMaxRounds,
		RoundDuration:         defaultGuessSeconds,
		AIConfidenceThreshold: defaultConfidence,
		PredictionInterval:    defaultPredictionMS,
		Categories:            append([]string(nil), pool...),
	}
}

func (guessingRules) init(s *models.GameSession) {
	s.TeamHumans = &models.TeamScore{}
	s.TeamAI = &models.AITeam{}
}

func (guessingRules) roundStarted(e *Engine, s *models.GameSession) {
	drawer := s.Players[e.intN(len(s.Players))]
	s.CurrentDrawer = &models.PlayerRef{PlayerID: drawer.PlayerID, PlayerName: drawer.PlayerName}
	s.CanvasState = ""
	if s.TeamAI != nil {
		s.TeamAI.Predictions = nil
	}
}

// timeout gives the round to the AI if any prediction this round reached the threshold
func (guessingRules) timeout(s *models.GameSession) models.RoundResult {
	result := models.RoundResult{
		Round:    s.CurrentRound,
		Category: s.CurrentCategory,
	}
	if best, ok := aiReachedThreshold(s); ok {
		s.TeamAI.Score += teamWinPoints
		s.TeamAI.RoundsWon++
		result.Winner = models.WinnerAI
		result.Confidence = best
		result.Reason = models.ReasonTimeoutWithAI
		return result
	}
	result.Winner = models.WinnerNone
	result.Reason = models.ReasonTimeoutNoGuess
	return result
}

func (guessingRules) finish(s *models.GameSession) {
	humans, ai := s.TeamHumans.RoundsWon, s.TeamAI.RoundsWon
	switch {
	case humans > ai:
		s.Winner = models.WinnerHumans
	case ai > humans:
		s.Winner = models.WinnerAI
	default:
		s.Winner = models.WinnerDraw
	}
}

func (guessingRules) playerRemoved(e *Engine, s *models.GameSession, removed models.Player) {
	if len(s.Players) < minPlayers {
		s.Status = models.StatusFinished
		s.Winner = models.WinnerAbandoned
		now := e.now()
		s.FinishedAt = &now
		return
	}
	if s.CurrentDrawer != nil && s.CurrentDrawer.PlayerID == removed.PlayerID {
		next := s.Players[e.intN(len(s.Players))]
		s.CurrentDrawer = &models.PlayerRef{PlayerID: next.PlayerID, PlayerName: next.PlayerName}
		s.CanvasState = ""
	}
}

// aiReachedThreshold reports whether a prediction of the current round met the
// AI threshold, and the highest such confidence
func aiReachedThreshold(s *models.GameSession) (float64, bool) {
	if s.TeamAI == nil {
		return 0, false
	}
	best, hit := 0.0, false
	for _, p := range s.TeamAI.Predictions {
		if p.Round != s.CurrentRound || p.Confidence < s.Settings.AIConfidenceThreshold {
			continue
		}
		hit = true
		if p.Confidence > best {
			best = p.Confidence
		}
	}
	return best, hit
}

// SubmitGuess checks a guesser's answer. Humans take the round only if the AI
// has not already reached its threshold this round.
func (e *Engine) SubmitGuess(ctx context.Context, g GuessSubmission) (*Outcome, error) {
	r := guessingRules{}
	var out *Outcome

	session, err := e.mutate(ctx, models.ModeGuessing, g.GameID, func(s *models.GameSession) error {
		out = &Outcome{Round: g.Round}

		if s.Status != models.StatusPlaying {
			return invalidState("game not in playing state")
		}
		if g.Round != s.CurrentRound {
			return invalidState("invalid round number: expected %d, got %d", s.CurrentRound, g.Round)
		}
		idx := s.FindPlayer(g.PlayerID)
		if idx < 0 {
			return notFound("player not in game")
		}
		if s.CurrentDrawer != nil && s.CurrentDrawer.PlayerID == g.PlayerID {
			return invalidState("the drawer cannot guess")
		}

		if !sameLabel(g.Guess, s.CurrentCategory) {
			out.Status = StatusIncorrectGuess
			out.Message = "Try again!"
			return errNoChange
		}
		if _, blocked := aiReachedThreshold(s); blocked {
			out.Status = StatusIncorrectGuess
			out.Message = "The AI already recognized the drawing this round"
			return errNoChange
		}

		p := &s.Players[idx]
		p.IndividualGuesses++
		p.TeamScore += guesserBonusPoints
		s.TeamHumans.Score += teamWinPoints
		s.TeamHumans.RoundsWon++

		result := models.RoundResult{
			Round:      s.CurrentRound,
			Winner:     models.WinnerHumans,
			WinnerID:   p.PlayerID,
			WinnerName: p.PlayerName,
			Guesser:    p.PlayerName,
			Category:   s.CurrentCategory,
			Reason:     models.ReasonCorrectGuess,
		}
		s.RoundWinners = append(s.RoundWinners, result)
		out.Status = StatusCorrectGuess
		out.RoundWinner = &result

		return e.settleGuessingRound(s, r, out)
	})
	if err != nil {
		return nil, err
	}

	e.prunePredictions(ctx, session, g.Round)
	out.Game = session
	return out, nil
}

// SubmitAIPrediction records one classifier output and gives the AI the round
// when it names the category at or above the threshold. Predictions for a
// round other than the current one are ignored.
func (e *Engine) SubmitAIPrediction(ctx context.Context, p AIPrediction) (*Outcome, error) {
	r := guessingRules{}

	current, err := e.load(ctx, models.ModeGuessing, p.GameID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusPlaying {
		return nil, invalidState("game not in playing state")
	}
	if p.Round != current.CurrentRound {
		e.metrics.Prediction("stale")
		return &Outcome{Status: StatusIgnored, Round: p.Round, Message: "Old round prediction"}, nil
	}

	err = e.sessions.AppendPrediction(ctx, p.GameID, models.Prediction{
		Round:      p.Round,
		Label:      p.Prediction,
		Confidence: p.Confidence,
		Timestamp:  e.now(),
	})
	if err != nil {
		return nil, storageError(err)
	}
	e.metrics.Prediction("accepted")

	if p.Confidence < current.Settings.AIConfidenceThreshold || !sameLabel(p.Prediction, current.CurrentCategory) {
		return &Outcome{Status: StatusPredictionAdded, Round: p.Round, Confidence: p.Confidence}, nil
	}

	var out *Outcome
	session, err := e.mutate(ctx, models.ModeGuessing, p.GameID, func(s *models.GameSession) error {
		out = &Outcome{Round: p.Round, Confidence: p.Confidence}
		if s.Status != models.StatusPlaying || s.CurrentRound != p.Round {
			// humans or a timeout settled the round first
			out.Status = StatusIgnored
			out.Message = "Round already settled"
			return errNoChange
		}

		s.TeamAI.Score += teamWinPoints
		s.TeamAI.RoundsWon++
		result := models.RoundResult{
			Round:      s.CurrentRound,
			Winner:     models.WinnerAI,
			Confidence: p.Confidence,
			Category:   s.CurrentCategory,
			Reason:     models.ReasonAIPrediction,
		}
		s.RoundWinners = append(s.RoundWinners, result)
		out.Status = StatusAIWonRound
		out.RoundWinner = &result

		return e.settleGuessingRound(s, r, out)
	})
	if err != nil {
		return nil, err
	}

	e.prunePredictions(ctx, session, p.Round)
	out.Game = session
	return out, nil
}

// settleGuessingRound finishes or advances after a round result was recorded
func (e *Engine) settleGuessingRound(s *models.GameSession, r rules, out *Outcome) error {
	finished, err := e.completeRound(s, r)
	if err != nil {
		return err
	}
	if finished {
		out.GameOver = true
		out.Winner = s.Winner
		return nil
	}
	out.NextRound = s.CurrentRound
	out.NextDrawer = s.CurrentDrawer
	return nil
}

// SendChat appends a message to the team chat, keeping the most recent ones
func (e *Engine) SendChat(ctx context.Context, gameID, playerID, message string) (*models.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalidState("message is empty")
	}

	var msg models.ChatMessage
	_, err := e.mutate(ctx, models.ModeGuessing, gameID, func(s *models.GameSession) error {
		idx := s.FindPlayer(playerID)
		if idx < 0 {
			return notFound("player not in game")
		}
		msg = models.ChatMessage{
			ID:         uuid.New().String(),
			PlayerID:   playerID,
			PlayerName: s.Players[idx].PlayerName,
			Message:    message,
			SentAt:     e.now(),
		}
		s.Chat = append(s.Chat, msg)
		if len(s.Chat) > maxChatMessages {
			s.Chat = append([]models.ChatMessage(nil), s.Chat[len(s.Chat)-maxChatMessages:]...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateCanvas stores the drawer's current canvas so guessers can see it
func (e *Engine) UpdateCanvas(ctx context.Context, gameID, playerID, canvas string) error {
	_, err := e.mutate(ctx, models.ModeGuessing, gameID, func(s *models.GameSession) error {
		if s.Status != models.StatusPlaying {
			return invalidState("game not in playing state")
		}
		if s.CurrentDrawer == nil || s.CurrentDrawer.PlayerID != playerID {
			return invalidState("only the drawer can update the canvas")
		}
		s.CanvasState = canvas
		return nil
	})
	return err
}

// prunePredictions drops the prediction log of rounds that are over
func (e *Engine) prunePredictions(ctx context.Context, s *models.GameSession, settledRound int) {
	if s.CurrentRound <= settledRound {
		return
	}
	if err := e.sessions.PrunePredictions(ctx, s.ID, s.CurrentRound); err != nil {
		e.logger.Warn("Failed to prune AI predictions",
			logger.F("game_id", s.ID),
			logger.F("round", fmt.Sprintf("%d", s.CurrentRound)),
			logger.Err(err),
		)
	}
}
