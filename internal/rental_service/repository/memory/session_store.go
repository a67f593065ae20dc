package memory

import (
	"fmt"
	"sync"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

// SessionStore is the in-process implementation of domain.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.ChatID]domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[domain.ChatID]domain.Session)}
}

// Get returns the stored session, or the default one without storing it.
func (s *SessionStore) Get(id domain.ChatID) domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	return domain.NewSession(id)
}

// Upsert applies mutate to the session and stores the result. The mutation
// is discarded if it leaves the session in a state outside the enumeration.
func (s *SessionStore) Upsert(id domain.ChatID, mutate func(*domain.Session)) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = domain.NewSession(id)
	}
	prev := sess
	mutate(&sess)
	sess.ID = id
	if !sess.State.Valid() {
		return prev, fmt.Errorf("session %d state %q: %w", id, sess.State, domain.ErrInvalidState)
	}
	s.sessions[id] = sess
	return sess, nil
}

// Reset puts the participant back to the initial role and state.
func (s *SessionStore) Reset(id domain.ChatID) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := domain.NewSession(id)
	s.sessions[id] = sess
	return sess
}

func (s *SessionStore) SetRole(id domain.ChatID, role domain.Role) error {
	_, err := s.Upsert(id, func(sess *domain.Session) { sess.Role = role })
	return err
}

func (s *SessionStore) SetState(id domain.ChatID, state domain.ConversationState) error {
	_, err := s.Upsert(id, func(sess *domain.Session) { sess.State = state })
	return err
}

func (s *SessionStore) SetActiveNumber(id domain.ChatID, phone string) error {
	_, err := s.Upsert(id, func(sess *domain.Session) { sess.ActiveNumber = phone })
	return err
}

func (s *SessionStore) ClearActiveNumber(id domain.ChatID) error {
	_, err := s.Upsert(id, func(sess *domain.Session) { sess.ActiveNumber = "" })
	return err
}
