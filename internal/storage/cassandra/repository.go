package cassandra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gocql/gocql"

	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/internal/storage"
	"github.com/sketchduel/backend/pkg/logger"
)

// Repository implements storage.SessionRepository using Cassandra
type Repository struct {
	client  *Client
	logger  *logger.Logger
	timeout time.Duration
}

// NewRepository creates a new Cassandra-based session repository
func NewRepository(client *Client, log *logger.Logger, timeout time.Duration) *Repository {
	return &Repository{
		client:  client,
		logger:  log,
		timeout: timeout,
	}
}

// CreateSession inserts a new session document
func (r *Repository) CreateSession(ctx context.Context, session *models.GameSession) error {
	queryCtx, cancel := r.queryContext(ctx)
	defer cancel()
	if err := queryCtx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	doc, err := encodeDocument(session)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.game_sessions (session_id, mode, status, room_code, created_at, version, document)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		IF NOT EXISTS`, r.client.Keyspace())

	applied, err := r.client.Session().Query(query,
		session.ID,
		string(session.Mode),
		string(session.Status),
		session.RoomCode,
		session.CreatedAt,
		session.Version,
		doc,
	).WithContext(queryCtx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		r.logger.Error("Failed to create session in Cassandra",
			logger.F("session_id", session.ID),
			logger.Err(err))
		return fmt.Errorf("failed to create session: %w", err)
	}

	if !applied {
		return storage.ErrSessionExists
	}

	r.logger.Debug("Session created", logger.F("session_id", session.ID))
	return nil
}

// GetSession retrieves a session by ID with its prediction log merged in
func (r *Repository) GetSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	queryCtx, cancel := r.queryContext(ctx)
	defer cancel()
	if err := queryCtx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT document, version, predictions
		FROM %s.game_sessions
		WHERE session_id = ?`, r.client.Keyspace())

	var (
		doc         string
		version     int64
		predictions []string
	)
	err := r.client.Session().Query(query, sessionID).WithContext(queryCtx).Scan(&doc, &version, &predictions)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, storage.ErrSessionNotFound
		}
		r.logger.Error("Failed to get session from Cassandra",
			logger.F("session_id", sessionID),
			logger.Err(err))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return decodeRow(doc, version, predictions)
}

// UpdateSession writes the document if the stored version still matches
func (r *Repository) UpdateSession(ctx context.Context, session *models.GameSession, expectedVersion int64) error {
	queryCtx, cancel := r.queryContext(ctx)
	defer cancel()
	if err := queryCtx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	next := *session
	next.Version = expectedVersion + 1
	doc, err := encodeDocument(&next)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s.game_sessions
		SET document = ?, status = ?, version = ?
		WHERE session_id = ?
		IF version = ?`, r.client.Keyspace())

	existing := map[string]interface{}{}
	applied, err := r.client.Session().Query(query,
		doc,
		string(session.Status),
		next.Version,
		session.ID,
		expectedVersion,
	).WithContext(queryCtx).MapScanCAS(existing)
	if err != nil {
		r.logger.Error("Failed to update session in Cassandra",
			logger.F("session_id", session.ID),
			logger.Err(err))
		return fmt.Errorf("failed to update session: %w", err)
	}

	if !applied {
		if v, ok := existing["version"]; !ok || v == nil {
			return storage.ErrSessionNotFound
		}
		return storage.ErrVersionConflict
	}

	session.Version = next.Version
	r.logger.Debug("Session updated",
		logger.F("session_id", session.ID),
		logger.F("status", string(session.Status)),
		logger.F("version", fmt.Sprintf("%d", next.Version)))
	return nil
}

// DeleteSession removes a session row
func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	queryCtx, cancel := r.queryContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s.game_sessions WHERE session_id = ?`, r.client.Keyspace())
	if err := r.client.Session().Query(query, sessionID).WithContext(queryCtx).Exec(); err != nil {
		r.logger.Error("Failed to delete session from Cassandra",
			logger.F("session_id", sessionID),
			logger.Err(err))
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteSessionIfVersion removes the row with a lightweight transaction so a
// concurrent writer in another process wins over the delete
func (r *Repository) DeleteSessionIfVersion(ctx context.Context, sessionID string, expectedVersion int64) error {
	queryCtx, cancel := r.queryContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		DELETE FROM %s.game_sessions
		WHERE session_id = ?
		IF version = ?`, r.client.Keyspace())

	existing := map[string]interface{}{}
	applied, err := r.client.Session().Query(query, sessionID, expectedVersion).
		WithContext(queryCtx).MapScanCAS(existing)
	if err != nil {
		r.logger.Error("Failed to delete session from Cassandra",
			logger.F("session_id", sessionID),
			logger.Err(err))
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !applied {
		if v, ok := existing["version"]; !ok || v == nil {
			return storage.ErrSessionNotFound
		}
		return storage.ErrVersionConflict
	}
	return nil
}

// ListSessionsByStatus retrieves sessions using the secondary index on status
func (r *Repository) ListSessionsByStatus(ctx context.Context, status models.Status) ([]*models.GameSession, error) {
	queryCtx, cancel := r.queryContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT document, version, predictions
		FROM %s.game_sessions
		WHERE status = ?`, r.client.Keyspace())

	iter := r.client.Session().Query(query, string(status)).WithContext(queryCtx).Iter()

	var (
		sessions    []*models.GameSession
		doc         string
		version     int64
		predictions []string
	)
	for iter.Scan(&doc, &version, &predictions) {
		session, err := decodeRow(doc, version, predictions)
		if err != nil {
			r.logger.Warn("Skipping undecodable session document", logger.Err(err))
			continue
		}
		sessions = append(sessions, session)
		predictions = nil
	}

	if err := iter.Close(); err != nil {
		r.logger.Error("Failed to list sessions by status from Cassandra",
			logger.F("status", string(status)),
			logger.Err(err))
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// AppendPrediction appends to the predictions list with a native collection append
func (r *Repository) AppendPrediction(ctx context.Context, sessionID string, prediction models.Prediction) error {
	queryCtx, cancel := r.queryContext(ctx)
	defer cancel()

	entry, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s.game_sessions
		SET predictions = predictions + ?
		WHERE session_id = ?
		IF EXISTS`, r.client.Keyspace())

	applied, err := r.client.Session().Query(query, []string{string(entry)}, sessionID).
		WithContext(queryCtx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("failed to append prediction: %w", err)
	}
	if !applied {
		return storage.ErrSessionNotFound
	}
	return nil
}

// PrunePredictions removes list entries recorded before beforeRound
func (r *Repository) PrunePredictions(ctx context.Context, sessionID string, beforeRound int) error {
	queryCtx, cancel := r.queryContext(ctx)
	defer cancel()

	var raw []string
	query := fmt.Sprintf(`SELECT predictions FROM %s.game_sessions WHERE session_id = ?`, r.client.Keyspace())
	if err := r.client.Session().Query(query, sessionID).WithContext(queryCtx).Scan(&raw); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read predictions: %w", err)
	}

	var stale []string
	for _, entry := range raw {
		var p models.Prediction
		if err := json.Unmarshal([]byte(entry), &p); err != nil || p.Round < beforeRound {
			stale = append(stale, entry)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	// Removal by value leaves concurrently appended entries in place
	remove := fmt.Sprintf(`
		UPDATE %s.game_sessions
		SET predictions = predictions - ?
		WHERE session_id = ?`, r.client.Keyspace())
	if err := r.client.Session().Query(remove, stale, sessionID).WithContext(queryCtx).Exec(); err != nil {
		return fmt.Errorf("failed to prune predictions: %w", err)
	}
	return nil
}

// queryContext applies the configured timeout unless ctx already has a deadline
func (r *Repository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func encodeDocument(session *models.GameSession) (string, error) {
	doc := session
	if session.TeamAI != nil {
		doc = session.Clone()
		doc.TeamAI.Predictions = nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}
	return string(data), nil
}

func decodeRow(doc string, version int64, predictions []string) (*models.GameSession, error) {
	var session models.GameSession
	if err := json.Unmarshal([]byte(doc), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	session.Version = version

	if session.TeamAI != nil {
		session.TeamAI.Predictions = make([]models.Prediction, 0, len(predictions))
		for _, entry := range predictions {
			var p models.Prediction
			if err := json.Unmarshal([]byte(entry), &p); err != nil {
				continue
			}
			session.TeamAI.Predictions = append(session.TeamAI.Predictions, p)
		}
	}
	return &session, nil
}
