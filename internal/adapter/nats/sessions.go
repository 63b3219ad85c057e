package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Strob0t/devteam/internal/port/collab"
	"github.com/Strob0t/devteam/internal/port/messagequeue"
)

var _ collab.Sessions = (*Sessions)(nil)

// Sessions announces collaboration sessions and their messages on the
// collab.sessions.* subjects consumed by the agent runtime. Session ids are
// stable per key for the lifetime of the process.
type Sessions struct {
	pub publisher

	mu    sync.Mutex
	byKey map[string]string
}

// NewSessions creates a collaboration session publisher on top of q.
func NewSessions(q messagequeue.Queue) *Sessions {
	return &Sessions{pub: q, byKey: make(map[string]string)}
}

// CreateSession returns the session for key, announcing it on first use.
func (s *Sessions) CreateSession(ctx context.Context, key, kind string) (string, error) {
	s.mu.Lock()
	if id, ok := s.byKey[key]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	id := uuid.NewString()
	data, err := json.Marshal(messagequeue.CollabSessionPayload{SessionID: id, Key: key, Kind: kind})
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	if err := s.pub.Publish(ctx, messagequeue.SubjectCollabSessionCreated, data); err != nil {
		return "", fmt.Errorf("announce session %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byKey[key]; ok {
		return existing, nil
	}
	s.byKey[key] = id
	return id, nil
}

// PostMessage publishes a message into the session.
func (s *Sessions) PostMessage(ctx context.Context, sessionID, text string, hints map[string]string) error {
	data, err := json.Marshal(messagequeue.CollabMessagePayload{SessionID: sessionID, Text: text, Hints: hints})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.pub.Publish(ctx, messagequeue.SubjectCollabMessages+"."+sessionID, data); err != nil {
		return fmt.Errorf("post to session %s: %w", sessionID, err)
	}
	return nil
}
