package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	cfotel "github.com/Strob0t/devteam/internal/adapter/otel"
	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/domain/iteration"
	"github.com/Strob0t/devteam/internal/port/broadcast"
	"github.com/Strob0t/devteam/internal/port/collab"
	"github.com/Strob0t/devteam/internal/port/database"
)

// IterationEvent is broadcast when an iteration session opens or closes.
type IterationEvent struct {
	IterationID         string           `json:"iteration_id"`
	WorkflowExecutionID string           `json:"workflow_execution_id"`
	StepID              string           `json:"step_id"`
	IterationNumber     int              `json:"iteration_number"`
	MaxIterations       int              `json:"max_iterations"`
	Status              iteration.Status `json:"status"`
}

// IterationService manages bounded re-work cycles on a workflow step.
type IterationService struct {
	store      database.Iterations
	steps      database.StepResults
	sessions   collab.Sessions
	hub        broadcast.Broadcaster
	metrics    *cfotel.Metrics
	defaultMax int
	locks      *keyedLock
	now        func() time.Time
}

// NewIterationService creates an IterationService. defaultMax applies when a
// start request carries no limit; values below 1 fall back to
// iteration.DefaultMaxIterations.
func NewIterationService(
	store database.Iterations,
	steps database.StepResults,
	sessions collab.Sessions,
	hub broadcast.Broadcaster,
	defaultMax int,
) *IterationService {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	if defaultMax < 1 {
		defaultMax = iteration.DefaultMaxIterations
	}
	return &IterationService{
		store:      store,
		steps:      steps,
		sessions:   sessions,
		hub:        hub,
		defaultMax: defaultMax,
		locks:      newKeyedLock(),
		now:        time.Now,
	}
}

// SetMetrics attaches metric instruments.
func (s *IterationService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

// Start opens the next iteration for a step, or fails with
// domain.ErrMaxIterations when the step has used up its limit.
func (s *IterationService) Start(ctx context.Context, req iteration.StartRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	limit := req.Limit(s.defaultMax)

	unlock := s.locks.Lock(req.WorkflowExecutionID + "\x00" + req.StepID)
	defer unlock()

	existing, err := s.store.ListIterations(ctx, req.WorkflowExecutionID, req.StepID)
	if err != nil {
		return "", fmt.Errorf("list iterations: %w", err)
	}
	number := len(existing) + 1
	if number > limit {
		return "", fmt.Errorf("%s/%s iteration %d of %d: %w",
			req.WorkflowExecutionID, req.StepID, number, limit, domain.ErrMaxIterations)
	}

	previous, err := s.previousVersion(ctx, req.WorkflowExecutionID, req.StepID, existing)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s:%s:iteration-%d", req.WorkflowExecutionID, req.StepID, number)
	sessionID, err := s.sessions.CreateSession(ctx, key, collab.KindIteration)
	if err != nil {
		return "", fmt.Errorf("create collaboration session %s: %w: %w", key, domain.ErrUnavailable, err)
	}

	sess := &iteration.Session{
		ID:                  uuid.New().String(),
		WorkflowExecutionID: req.WorkflowExecutionID,
		StepID:              req.StepID,
		IterationNumber:     number,
		MaxIterations:       limit,
		Trigger:             req.Trigger,
		TriggerDetails:      req.TriggerDetails,
		Changes: iteration.Changes{
			PreviousVersion:  previous,
			RequestedChanges: append([]string(nil), req.RequestedChanges...),
		},
		Status:                 iteration.StatusActive,
		CollaborationSessionID: sessionID,
		CreatedAt:              s.now().UTC(),
	}
	if err := s.store.CreateIteration(ctx, sess); err != nil {
		return "", fmt.Errorf("create iteration: %w", err)
	}

	hints := map[string]string{
		"workflow_execution_id": sess.WorkflowExecutionID,
		"step_id":               sess.StepID,
		"iteration":             strconv.Itoa(number),
		"trigger":               string(sess.Trigger),
	}
	if err := s.sessions.PostMessage(ctx, sessionID, kickoffMessage(sess), hints); err != nil {
		slog.Warn("iteration kickoff message failed",
			"iteration_id", sess.ID,
			"collaboration_session_id", sessionID,
			"error", err,
		)
	}

	s.metrics.IterationStarted(ctx, string(sess.Trigger))
	s.hub.BroadcastEvent(ctx, broadcast.EventIterationStarted, iterationEvent(sess))
	slog.Info("iteration started",
		"iteration_id", sess.ID,
		"workflow_execution_id", sess.WorkflowExecutionID,
		"step_id", sess.StepID,
		"iteration", number,
		"max_iterations", limit,
	)
	return sess.ID, nil
}

// previousVersion seeds a new iteration: the latest recorded step result,
// else the previous version of the most recently completed iteration.
func (s *IterationService) previousVersion(ctx context.Context, exec, step string, existing []iteration.Session) (any, error) {
	if s.steps != nil {
		result, ok, err := s.steps.StepResult(ctx, exec, step)
		if err != nil {
			return nil, fmt.Errorf("step result %s/%s: %w: %w", exec, step, domain.ErrUnavailable, err)
		}
		if ok {
			return result, nil
		}
	}
	if latest, ok := iteration.LatestCompleted(existing); ok {
		return latest.Changes.PreviousVersion, nil
	}
	return iteration.NoPreviousVersion, nil
}

func kickoffMessage(sess *iteration.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Iteration %d of %d for step %s\n", sess.IterationNumber, sess.MaxIterations, sess.StepID)
	fmt.Fprintf(&b, "Trigger: %s\n", sess.Trigger)
	if sess.TriggerDetails != "" {
		fmt.Fprintf(&b, "Details: %s\n", sess.TriggerDetails)
	}
	if len(sess.Changes.RequestedChanges) > 0 {
		b.WriteString("Requested changes:\n")
		for i, c := range sess.Changes.RequestedChanges {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c)
		}
	}
	return b.String()
}

// Update records the implemented changes and completes an active session.
// It reports false when the session is no longer active.
func (s *IterationService) Update(ctx context.Context, id string, implemented []string, newVersion any) (bool, error) {
	updated, err := s.store.TransitionIteration(ctx, id, iteration.StatusActive, func(sess *iteration.Session) error {
		done := s.now().UTC()
		sess.Changes.ImplementedChanges = append([]string(nil), implemented...)
		sess.Changes.NewVersion = newVersion
		sess.Status = iteration.StatusCompleted
		sess.CompletedAt = &done
		return nil
	})
	if errors.Is(err, domain.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update iteration %s: %w", id, err)
	}
	s.hub.BroadcastEvent(ctx, broadcast.EventIterationClosed, iterationEvent(updated))
	return true, nil
}

// Complete closes an active session. A failed final iteration is recorded
// as max_iterations_reached. Closed sessions return domain.ErrIterationClosed.
func (s *IterationService) Complete(ctx context.Context, id string, success bool) error {
	updated, err := s.store.TransitionIteration(ctx, id, iteration.StatusActive, func(sess *iteration.Session) error {
		done := s.now().UTC()
		switch {
		case success:
			sess.Status = iteration.StatusCompleted
		case sess.IterationNumber >= sess.MaxIterations:
			sess.Status = iteration.StatusMaxIterationsReached
		default:
			sess.Status = iteration.StatusFailed
		}
		sess.CompletedAt = &done
		return nil
	})
	if errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("complete iteration %s: %w", id, domain.ErrIterationClosed)
	}
	if err != nil {
		return fmt.Errorf("complete iteration %s: %w", id, err)
	}
	s.hub.BroadcastEvent(ctx, broadcast.EventIterationClosed, iterationEvent(updated))
	return nil
}

// Get returns one iteration session.
func (s *IterationService) Get(ctx context.Context, id string) (*iteration.Session, error) {
	return s.store.GetIteration(ctx, id)
}

// ListForStep returns the sessions of a step ordered by iteration number.
func (s *IterationService) ListForStep(ctx context.Context, workflowExecutionID, stepID string) ([]iteration.Session, error) {
	return s.store.ListIterations(ctx, workflowExecutionID, stepID)
}

func iterationEvent(sess *iteration.Session) IterationEvent {
	return IterationEvent{
		IterationID:         sess.ID,
		WorkflowExecutionID: sess.WorkflowExecutionID,
		StepID:              sess.StepID,
		IterationNumber:     sess.IterationNumber,
		MaxIterations:       sess.MaxIterations,
		Status:              sess.Status,
	}
}
