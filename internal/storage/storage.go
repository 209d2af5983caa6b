package storage

import (
	"context"

	"github.com/sketchduel/backend/internal/models"
)

// SessionRepository is the document store for game sessions.
//
// UpdateSession is a compare-and-set: it only applies when the stored version
// equals expectedVersion, and it stores the session with Version set to
// expectedVersion+1. It never touches the AI prediction log, which is written
// only through AppendPrediction and PrunePredictions and merged into
// TeamAI.Predictions on read.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.GameSession) error
	GetSession(ctx context.Context, sessionID string) (*models.GameSession, error)
	UpdateSession(ctx context.Context, session *models.GameSession, expectedVersion int64) error
	DeleteSession(ctx context.Context, sessionID string) error
	// DeleteSessionIfVersion deletes only while the stored version equals
	// expectedVersion, returning ErrVersionConflict otherwise
	DeleteSessionIfVersion(ctx context.Context, sessionID string, expectedVersion int64) error
	ListSessionsByStatus(ctx context.Context, status models.Status) ([]*models.GameSession, error)

	// AppendPrediction atomically appends to the prediction log
	AppendPrediction(ctx context.Context, sessionID string, prediction models.Prediction) error
	// PrunePredictions drops predictions recorded for rounds before beforeRound
	PrunePredictions(ctx context.Context, sessionID string, beforeRound int) error
}

// PresenceStore is the realtime key-value store holding presence/{session}/{player}.
// Timestamps are assigned by the store, never by the caller.
type PresenceStore interface {
	// SetOnline replaces the record with online=true and fresh lastSeen/joinedAt
	SetOnline(ctx context.Context, sessionID, playerID, playerName string) error
	// Touch updates online and stamps lastSeen
	Touch(ctx context.Context, sessionID, playerID string, online bool) error
	Remove(ctx context.Context, sessionID, playerID string) error
	RemoveSession(ctx context.Context, sessionID string) error
	List(ctx context.Context, sessionID string) ([]models.PresenceRecord, error)
}

// Errors
var (
	ErrSessionNotFound = &StorageError{Message: "session not found"}
	ErrSessionExists   = &StorageError{Message: "session already exists"}
	ErrVersionConflict = &StorageError{Message: "session was modified concurrently"}
	ErrUnavailable     = &StorageError{Message: "storage unavailable"}
)

// StorageError represents a storage error
type StorageError struct {
	Message string
}

func (e *StorageError) Error() string {
	return e.Message
}
