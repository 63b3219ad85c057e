package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/port/collab"
)

var _ collab.Sessions = (*Sessions)(nil)

// Message is a message posted to an in-memory collaboration session.
type Message struct {
	Text  string
	Hints map[string]string
}

// Session is an in-memory collaboration session.
type Session struct {
	ID       string
	Key      string
	Kind     string
	Messages []Message
}

// Sessions records collaboration sessions in process.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions creates an empty session registry.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

func (s *Sessions) CreateSession(_ context.Context, key, kind string) (string, error) {
	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = &Session{ID: id, Key: key, Kind: kind}
	s.mu.Unlock()
	return id, nil
}

func (s *Sessions) PostMessage(_ context.Context, sessionID, text string, hints map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("post to session %s: %w", sessionID, domain.ErrNotFound)
	}
	h := make(map[string]string, len(hints))
	for k, v := range hints {
		h[k] = v
	}
	sess.Messages = append(sess.Messages, Message{Text: text, Hints: h})
	return nil
}

// Get returns a copy of the session.
func (s *Sessions) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	c := *sess
	c.Messages = append([]Message(nil), sess.Messages...)
	return c, true
}
