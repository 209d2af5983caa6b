package game

import (
	"context"
	"fmt"
	"sort"

	"github.com/sketchduel/backend/internal/models"
)

type raceRules struct{}

func (raceRules) mode() models.Mode { return models.ModeRace }

func (raceRules) maxPlayersCap() int { return 4 }

func (raceRules) defaults(pool []string) models.Settings {
	return models.Settings{
		MaxRounds:        defaultMaxRounds,
		RoundDuration:    defaultRaceDuration,
		TargetConfidence: defaultConfidence,
		Categories:       append([]string(nil), pool...),
	}
}

func (raceRules) init(s *models.GameSession) {}

func (raceRules) roundStarted(e *Engine, s *models.GameSession) {
	s.RoundSubmissions = nil
}

// timeout awards the round to the best recorded submission; ties go to the
// submission recorded first
func (raceRules) timeout(s *models.GameSession) models.RoundResult {
	result := models.RoundResult{
		Round:    s.CurrentRound,
		Winner:   models.WinnerNone,
		Category: s.CurrentCategory,
		Reason:   models.ReasonTimeoutNoWinner,
	}

	best := -1
	for i, sub := range s.RoundSubmissions {
		if sub.Confidence <= 0 || s.FindPlayer(sub.PlayerID) < 0 {
			continue
		}
		if best < 0 || sub.Confidence > s.RoundSubmissions[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return result
	}

	sub := s.RoundSubmissions[best]
	p := &s.Players[s.FindPlayer(sub.PlayerID)]
	p.RoundsWon++
	p.Score += raceTimeoutPoints

	result.WinnerID = p.PlayerID
	result.WinnerName = p.PlayerName
	result.Winner = ""
	result.Confidence = sub.Confidence
	result.Reason = models.ReasonTimeout
	return result
}

// finish crowns the player with the most rounds won, first in roster order on ties
func (raceRules) finish(s *models.GameSession) {
	if len(s.Players) == 0 {
		return
	}
	champ := s.Players[0]
	for _, p := range s.Players[1:] {
		if p.RoundsWon > champ.RoundsWon {
			champ = p
		}
	}
	s.Champion = &models.Champion{
		PlayerID:   champ.PlayerID,
		PlayerName: champ.PlayerName,
		RoundsWon:  champ.RoundsWon,
	}
}

func (r raceRules) playerRemoved(e *Engine, s *models.GameSession, removed models.Player) {
	s.RoundSubmissions = dropSubmission(s.RoundSubmissions, removed.PlayerID)
	if len(s.Players) < minPlayers {
		e.finishSession(s, r)
	}
}

// SubmitDrawing records a classified race drawing and settles the round when
// the target confidence is reached with the right label
func (e *Engine) SubmitDrawing(ctx context.Context, sub DrawingSubmission) (*Outcome, error) {
	r := raceRules{}
	var out *Outcome

	session, err := e.mutate(ctx, models.ModeRace, sub.GameID, func(s *models.GameSession) error {
		out = &Outcome{Round: sub.Round, Confidence: sub.Confidence}

		if s.Status != models.StatusPlaying {
			return invalidState("game not in playing state")
		}
		if sub.Round != s.CurrentRound {
			return invalidState("invalid round number: expected %d, got %d", s.CurrentRound, sub.Round)
		}
		idx := s.FindPlayer(sub.PlayerID)
		if idx < 0 {
			return notFound("player not in game")
		}

		if !sameLabel(sub.Prediction, s.CurrentCategory) {
			out.Status = StatusIncorrectCategory
			out.Message = fmt.Sprintf("Draw a %s!", s.CurrentCategory)
			return errNoChange
		}

		improved := recordBest(s, s.Players[idx], sub)
		target := s.Settings.TargetConfidence
		if sub.Confidence < target {
			out.Status = StatusKeepDrawing
			out.Target = target
			out.Message = fmt.Sprintf("Keep drawing! Target: %d%%", int(target*100))
			if !improved {
				return errNoChange
			}
			return nil
		}

		p := &s.Players[idx]
		p.RoundsWon++
		p.Score += raceWinPoints
		result := models.RoundResult{
			Round:      s.CurrentRound,
			WinnerID:   p.PlayerID,
			WinnerName: p.PlayerName,
			Confidence: sub.Confidence,
			Category:   s.CurrentCategory,
			Reason:     models.ReasonTargetReached,
		}
		s.RoundWinners = append(s.RoundWinners, result)
		out.RoundWinner = &result

		finished, err := e.completeRound(s, r)
		if err != nil {
			return err
		}
		if finished {
			out.Status = StatusGameFinished
			out.GameOver = true
			out.Champion = s.Champion
			out.Standings = standings(s.Players)
			return nil
		}
		out.Status = StatusRoundWon
		out.NextRound = s.CurrentRound
		out.NextCategory = s.CurrentCategory
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.Game = session
	return out, nil
}

// recordBest keeps the player's best matching confidence for the round.
// The submission slice keeps first-recorded order.
func recordBest(s *models.GameSession, p models.Player, sub DrawingSubmission) bool {
	for i := range s.RoundSubmissions {
		if s.RoundSubmissions[i].PlayerID != p.PlayerID {
			continue
		}
		if sub.Confidence <= s.RoundSubmissions[i].Confidence {
			return false
		}
		s.RoundSubmissions[i].Confidence = sub.Confidence
		s.RoundSubmissions[i].Prediction = sub.Prediction
		return true
	}
	s.RoundSubmissions = append(s.RoundSubmissions, models.Submission{
		PlayerID:   p.PlayerID,
		PlayerName: p.PlayerName,
		Prediction: sub.Prediction,
		Confidence: sub.Confidence,
	})
	return true
}

func dropSubmission(subs []models.Submission, playerID string) []models.Submission {
	out := subs[:0]
	for _, sub := range subs {
		if sub.PlayerID != playerID {
			out = append(out, sub)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// standings orders players by rounds won, keeping roster order on ties
func standings(players []models.Player) []models.Player {
	out := append([]models.Player(nil), players...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RoundsWon > out[j].RoundsWon
	})
	return out
}
