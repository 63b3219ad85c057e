package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/domain/approval"
	"github.com/Strob0t/devteam/internal/port/messagequeue"
)

// Durable consumer names for the command subjects.
const (
	durableApprovalRespond   = "devteam-approval-respond"
	durableIterationComplete = "devteam-iteration-complete"
)

// ApprovalResponder resolves approval requests.
type ApprovalResponder interface {
	ProcessResponse(ctx context.Context, id string, d approval.Decision) (*approval.ProcessResult, error)
}

// IterationCompleter closes iteration sessions.
type IterationCompleter interface {
	Complete(ctx context.Context, id string, success bool) error
}

type durableSubscriber interface {
	SubscribeDurable(ctx context.Context, subject, durable string, handler messagequeue.Handler) (func(), error)
}

// Commands consumes devteam.commands.* so workflow workers can answer
// approvals and close iterations without going through the HTTP API.
type Commands struct {
	approvals  ApprovalResponder
	iterations IterationCompleter
}

// NewCommands creates a command consumer.
func NewCommands(approvals ApprovalResponder, iterations IterationCompleter) *Commands {
	return &Commands{approvals: approvals, iterations: iterations}
}

// Subscribe attaches a durable consumer per command subject. The returned
// func stops all of them.
func (c *Commands) Subscribe(ctx context.Context, q durableSubscriber) (func(), error) {
	subs := []struct {
		subject, durable string
		handler          messagequeue.Handler
	}{
		{messagequeue.SubjectApprovalRespond, durableApprovalRespond, c.handleApprovalRespond},
		{messagequeue.SubjectIterationComplete, durableIterationComplete, c.handleIterationComplete},
	}

	var stops []func()
	stopAll := func() {
		for _, stop := range stops {
			stop()
		}
	}
	for _, s := range subs {
		stop, err := q.SubscribeDurable(ctx, s.subject, s.durable, s.handler)
		if err != nil {
			stopAll()
			return nil, err
		}
		stops = append(stops, stop)
	}
	slog.Info("command consumers started", "subjects", len(subs))
	return stopAll, nil
}

func (c *Commands) handleApprovalRespond(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.ApprovalRespondPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode approval response: %w: %w", messagequeue.ErrPermanent, err)
	}

	res, err := c.approvals.ProcessResponse(ctx, p.ApprovalID, approval.Decision{
		Decision:          approval.DecisionKind(p.Decision),
		Feedback:          p.Feedback,
		SuggestedChanges:  p.SuggestedChanges,
		IterationRequired: p.IterationRequired,
		ResolvedBy:        p.ResolvedBy,
	})
	if err != nil {
		return classify(err, "approval %s", p.ApprovalID)
	}
	if !res.Accepted {
		slog.Info("approval command not applied", "approval_id", p.ApprovalID, "reason", res.Reason)
	}
	return nil
}

func (c *Commands) handleIterationComplete(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.IterationCompletePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode iteration completion: %w: %w", messagequeue.ErrPermanent, err)
	}
	if err := c.iterations.Complete(ctx, p.IterationID, p.Success); err != nil {
		return classify(err, "iteration %s", p.IterationID)
	}
	return nil
}

// classify marks errors that a redelivery cannot fix as permanent.
func classify(err error, format string, args ...any) error {
	op := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrIterationClosed):
		return fmt.Errorf("%s: %w: %w", op, messagequeue.ErrPermanent, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
