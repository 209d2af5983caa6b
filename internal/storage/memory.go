package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sketchduel/backend/internal/models"
)

// MemoryStorage provides in-memory storage for sessions
type MemoryStorage struct {
	mu          sync.RWMutex
	sessions    map[string]*models.GameSession
	predictions map[string][]models.Prediction
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions:    make(map[string]*models.GameSession),
		predictions: make(map[string][]models.Prediction),
	}
}

// CreateSession creates a new session
func (s *MemoryStorage) CreateSession(ctx context.Context, session *models.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return ErrSessionExists
	}

	stored := session.Clone()
	stored.TeamAI = stripPredictions(stored.TeamAI)
	s.sessions[session.ID] = stored
	return nil
}

// GetSession retrieves a session by ID
func (s *MemoryStorage) GetSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return s.hydrate(session), nil
}

// UpdateSession stores the session if the stored version matches
func (s *MemoryStorage) UpdateSession(ctx context.Context, session *models.GameSession, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.sessions[session.ID]
	if !exists {
		return ErrSessionNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}

	stored := session.Clone()
	stored.Version = expectedVersion + 1
	stored.TeamAI = stripPredictions(stored.TeamAI)
	s.sessions[session.ID] = stored
	session.Version = stored.Version
	return nil
}

// DeleteSession removes a session and its prediction log
func (s *MemoryStorage) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	delete(s.predictions, sessionID)
	return nil
}

// DeleteSessionIfVersion removes a session only if nobody wrote it since it was read
func (s *MemoryStorage) DeleteSessionIfVersion(ctx context.Context, sessionID string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	delete(s.sessions, sessionID)
	delete(s.predictions, sessionID)
	return nil
}

// ListSessionsByStatus returns sessions with the given status, oldest first
func (s *MemoryStorage) ListSessionsByStatus(ctx context.Context, status models.Status) ([]*models.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*models.GameSession
	for _, session := range s.sessions {
		if session.Status == status {
			sessions = append(sessions, s.hydrate(session))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// AppendPrediction appends to the session's prediction log
func (s *MemoryStorage) AppendPrediction(ctx context.Context, sessionID string, prediction models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return ErrSessionNotFound
	}
	s.predictions[sessionID] = append(s.predictions[sessionID], prediction)
	return nil
}

// PrunePredictions drops predictions from rounds before beforeRound
func (s *MemoryStorage) PrunePredictions(ctx context.Context, sessionID string, beforeRound int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.predictions[sessionID][:0]
	for _, p := range s.predictions[sessionID] {
		if p.Round >= beforeRound {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		delete(s.predictions, sessionID)
		return nil
	}
	s.predictions[sessionID] = kept
	return nil
}

// hydrate must be called with mu held
func (s *MemoryStorage) hydrate(stored *models.GameSession) *models.GameSession {
	session := stored.Clone()
	if session.TeamAI != nil {
		session.TeamAI.Predictions = append([]models.Prediction(nil), s.predictions[session.ID]...)
	}
	return session
}

func stripPredictions(team *models.AITeam) *models.AITeam {
	if team == nil {
		return nil
	}
	team.Predictions = nil
	return team
}

// MemoryPresence is an in-process PresenceStore
type MemoryPresence struct {
	mu      sync.RWMutex
	records map[string]map[string]models.PresenceRecord
	now     func() time.Time
}

// NewMemoryPresence creates an in-memory presence store. now stands in for the
// server clock; nil means time.Now.
func NewMemoryPresence(now func() time.Time) *MemoryPresence {
	if now == nil {
		now = time.Now
	}
	return &MemoryPresence{
		records: make(map[string]map[string]models.PresenceRecord),
		now:     now,
	}
}

// SetOnline marks a player online
func (p *MemoryPresence) SetOnline(ctx context.Context, sessionID, playerID, playerName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := p.now()
	p.session(sessionID)[playerID] = models.PresenceRecord{
		PlayerID:   playerID,
		PlayerName: playerName,
		Online:     true,
		LastSeen:   ts,
		JoinedAt:   ts,
	}
	return nil
}

// Touch updates the online flag and lastSeen
func (p *MemoryPresence) Touch(ctx context.Context, sessionID, playerID string, online bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	records := p.session(sessionID)
	rec := records[playerID]
	rec.PlayerID = playerID
	rec.Online = online
	rec.LastSeen = p.now()
	records[playerID] = rec
	return nil
}

// Remove deletes one presence record
func (p *MemoryPresence) Remove(ctx context.Context, sessionID, playerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if records, ok := p.records[sessionID]; ok {
		delete(records, playerID)
		if len(records) == 0 {
			delete(p.records, sessionID)
		}
	}
	return nil
}

// RemoveSession deletes every record of a session
func (p *MemoryPresence) RemoveSession(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.records, sessionID)
	return nil
}

// List returns the session's records ordered by player id
func (p *MemoryPresence) List(ctx context.Context, sessionID string) ([]models.PresenceRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	records := make([]models.PresenceRecord, 0, len(p.records[sessionID]))
	for _, rec := range p.records[sessionID] {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].PlayerID < records[j].PlayerID
	})
	return records, nil
}

// session must be called with mu held
func (p *MemoryPresence) session(sessionID string) map[string]models.PresenceRecord {
	records, ok := p.records[sessionID]
	if !ok {
		records = make(map[string]models.PresenceRecord)
		p.records[sessionID] = records
	}
	return records
}
