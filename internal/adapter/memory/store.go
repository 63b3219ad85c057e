// Package memory provides in-process implementations of the persistence and
// collaboration ports. It is the default storage driver and the backing
// store for service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/domain/approval"
	"github.com/Strob0t/devteam/internal/domain/iteration"
	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/database"
)

// Compile-time interface check.
var _ database.Store = (*Store)(nil)

type stepKey struct{ exec, step string }

// Store keeps every entity in maps guarded by one mutex. Values are cloned
// on the way in and out so callers never share memory with the store.
type Store struct {
	mu            sync.Mutex
	approvals     map[string]*approval.Request
	iterations    map[string]*iteration.Session
	notifications map[string]*notification.Notification
	stepResults   map[stepKey]any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		approvals:     make(map[string]*approval.Request),
		iterations:    make(map[string]*iteration.Session),
		notifications: make(map[string]*notification.Notification),
		stepResults:   make(map[stepKey]any),
	}
}

// --- Approvals ---

func (s *Store) CreateApproval(_ context.Context, r *approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.approvals[r.ID]; ok {
		return fmt.Errorf("create approval %s: %w", r.ID, domain.ErrConflict)
	}
	s.approvals[r.ID] = r.Clone()
	return nil
}

func (s *Store) GetApproval(_ context.Context, id string) (*approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.approvals[id]
	if !ok {
		return nil, fmt.Errorf("get approval %s: %w", id, domain.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *Store) ListApprovals(_ context.Context, filter database.ApprovalFilter) ([]approval.Request, error) {
	s.mu.Lock()
	out := make([]approval.Request, 0, len(s.approvals))
	for _, r := range s.approvals {
		if filter.Matches(r) {
			out = append(out, *r.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) TransitionApproval(_ context.Context, id string, from approval.Status, fn func(*approval.Request) error) (*approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.approvals[id]
	if !ok {
		return nil, fmt.Errorf("transition approval %s: %w", id, domain.ErrNotFound)
	}
	if cur.Status != from {
		return nil, fmt.Errorf("transition approval %s: status %s: %w", id, cur.Status, domain.ErrConflict)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.approvals[id] = next
	return next.Clone(), nil
}

// --- Iterations ---

func (s *Store) CreateIteration(_ context.Context, it *iteration.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.iterations[it.ID]; ok {
		return fmt.Errorf("create iteration %s: %w", it.ID, domain.ErrConflict)
	}
	for _, existing := range s.iterations {
		if existing.WorkflowExecutionID == it.WorkflowExecutionID &&
			existing.StepID == it.StepID &&
			existing.IterationNumber == it.IterationNumber {
			return fmt.Errorf("create iteration %s:%s #%d: %w",
				it.WorkflowExecutionID, it.StepID, it.IterationNumber, domain.ErrConflict)
		}
	}
	s.iterations[it.ID] = it.Clone()
	return nil
}

func (s *Store) GetIteration(_ context.Context, id string) (*iteration.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.iterations[id]
	if !ok {
		return nil, fmt.Errorf("get iteration %s: %w", id, domain.ErrNotFound)
	}
	return it.Clone(), nil
}

func (s *Store) ListIterations(_ context.Context, workflowExecutionID, stepID string) ([]iteration.Session, error) {
	s.mu.Lock()
	var out []iteration.Session
	for _, it := range s.iterations {
		if it.WorkflowExecutionID == workflowExecutionID && it.StepID == stepID {
			out = append(out, *it.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].IterationNumber < out[j].IterationNumber })
	return out, nil
}

func (s *Store) TransitionIteration(_ context.Context, id string, from iteration.Status, fn func(*iteration.Session) error) (*iteration.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.iterations[id]
	if !ok {
		return nil, fmt.Errorf("transition iteration %s: %w", id, domain.ErrNotFound)
	}
	if cur.Status != from {
		return nil, fmt.Errorf("transition iteration %s: status %s: %w", id, cur.Status, domain.ErrConflict)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.iterations[id] = next
	return next.Clone(), nil
}

// --- Notifications ---

func (s *Store) CreateNotification(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return fmt.Errorf("create notification %s: %w", n.ID, domain.ErrConflict)
	}
	s.notifications[n.ID] = n.Clone()
	return nil
}

func (s *Store) GetNotification(_ context.Context, id string) (*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, fmt.Errorf("get notification %s: %w", id, domain.ErrNotFound)
	}
	return n.Clone(), nil
}

func (s *Store) UpdateNotification(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; !ok {
		return fmt.Errorf("update notification %s: %w", n.ID, domain.ErrNotFound)
	}
	s.notifications[n.ID] = n.Clone()
	return nil
}

// ListNotifications returns notifications with the given status, or all of
// them when status is empty, oldest first.
func (s *Store) ListNotifications(_ context.Context, status notification.Status) ([]notification.Notification, error) {
	s.mu.Lock()
	var out []notification.Notification
	for _, n := range s.notifications {
		if status == "" || n.Status == status {
			out = append(out, *n.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// --- Step results ---

func (s *Store) StepResult(_ context.Context, workflowExecutionID, stepID string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.stepResults[stepKey{workflowExecutionID, stepID}]
	return v, ok, nil
}

// RecordStepResult stores the latest output of a workflow step.
func (s *Store) RecordStepResult(_ context.Context, workflowExecutionID, stepID string, result any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepResults[stepKey{workflowExecutionID, stepID}] = result
	return nil
}
