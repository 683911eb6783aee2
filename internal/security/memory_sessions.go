package security

import (
	"context"
	"sync"
	"time"

	"github.com/clinware/labguard/internal/models"
	"github.com/google/uuid"
)

// MemorySessionStore is an in-process SessionStore.
type MemorySessionStore struct {
	mu       sync.RWMutex
	byToken  map[string]*models.Session
	sessions []*models.Session
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byToken: make(map[string]*models.Session),
	}
}

func (s *MemorySessionStore) Create(_ context.Context, session *models.Session) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byToken[session.SessionToken]; exists {
		return nil, models.ErrConflict
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	s.byToken[session.SessionToken] = session
	s.sessions = append(s.sessions, session)
	return session, nil
}

func (s *MemorySessionStore) GetByToken(_ context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byToken[token]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *MemorySessionStore) ActiveByUser(_ context.Context, userID string) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]*models.Session, 0)
	for _, session := range s.sessions {
		if session.UserID == userID && session.Status == models.SessionActive {
			copied := *session
			active = append(active, &copied)
		}
	}
	return active, nil
}

func (s *MemorySessionStore) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	active, err := s.ActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

func (s *MemorySessionStore) HasRecentActiveFromOtherIP(_ context.Context, userID, sourceIP string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.UserID == userID &&
			session.Status == models.SessionActive &&
			session.SourceIP != sourceIP &&
			!session.LoginTime.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemorySessionStore) UpdateLastAccess(_ context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byToken[token]
	if !ok {
		return models.ErrNotFound
	}
	if session.Status != models.SessionActive && session.Status != models.SessionSuspicious {
		return models.ErrNotFound
	}
	session.LastAccessTime = at
	return nil
}

func (s *MemorySessionStore) Close(_ context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byToken[token]
	if !ok {
		return models.ErrNotFound
	}
	// Closed and expired are terminal states.
	if session.Status != models.SessionActive && session.Status != models.SessionSuspicious {
		return models.ErrNotFound
	}
	session.Status = models.SessionClosed
	session.LastAccessTime = at
	return nil
}

func (s *MemorySessionStore) MarkSuspicious(_ context.Context, sessionID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if session.ID != sessionID {
			continue
		}
		if session.Status != models.SessionActive && session.Status != models.SessionSuspicious {
			return models.ErrNotFound
		}
		session.Suspicious = true
		session.Remarks = &reason
		session.Status = models.SessionSuspicious
		return nil
	}
	return models.ErrNotFound
}

func (s *MemorySessionStore) ExpireIdleBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired int64
	for _, session := range s.sessions {
		if session.Status == models.SessionActive && session.LastAccessTime.Before(cutoff) {
			session.Status = models.SessionExpired
			expired++
		}
	}
	return expired, nil
}

func (s *MemorySessionStore) SuspiciousBetween(_ context.Context, start, end time.Time) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flagged := make([]*models.Session, 0)
	for _, session := range s.sessions {
		if session.Suspicious && !session.LoginTime.Before(start) && !session.LoginTime.After(end) {
			copied := *session
			flagged = append(flagged, &copied)
		}
	}
	return flagged, nil
}
