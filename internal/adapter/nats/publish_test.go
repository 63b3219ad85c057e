package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/domain/approval"
	"github.com/Strob0t/devteam/internal/port/broadcast"
	"github.com/Strob0t/devteam/internal/port/messagequeue"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return nil
}

func (p *fakePublisher) bySubject(prefix string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if strings.HasPrefix(m.subject, prefix) {
			out = append(out, m)
		}
	}
	return out
}

func TestBroadcaster_PublishesEventSubject(t *testing.T) {
	pub := &fakePublisher{}
	b := &Broadcaster{pub: pub}

	b.BroadcastEvent(context.Background(), broadcast.EventApprovalResolved, messagequeue.ApprovalEventPayload{
		ApprovalID: "a1",
		Status:     "approved",
	})

	msgs := pub.bySubject(messagequeue.SubjectApprovalResolved)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if err := messagequeue.Validate(msgs[0].subject, msgs[0].data); err != nil {
		t.Fatalf("published payload does not validate: %v", err)
	}
}

func TestBroadcaster_SwallowsErrors(t *testing.T) {
	b := &Broadcaster{pub: &fakePublisher{err: errors.New("no responders")}}
	b.BroadcastEvent(context.Background(), broadcast.EventIterationStarted, map[string]any{"iteration_id": "i1"})
	b.BroadcastEvent(context.Background(), broadcast.EventIterationStarted, make(chan int))
}

func TestSessions_CreateIsStablePerKey(t *testing.T) {
	pub := &fakePublisher{}
	s := &Sessions{pub: pub, byKey: make(map[string]string)}
	ctx := context.Background()

	id1, err := s.CreateSession(ctx, "exec-1:design:iteration-1", "iteration")
	if err != nil {
		t.Fatal(err)
	}
	id2, _ := s.CreateSession(ctx, "exec-1:design:iteration-1", "iteration")
	if id1 == "" || id1 != id2 {
		t.Fatalf("ids differ for the same key: %q %q", id1, id2)
	}
	id3, _ := s.CreateSession(ctx, "exec-1:design:iteration-2", "iteration")
	if id3 == id1 {
		t.Fatal("different keys must get different sessions")
	}

	created := pub.bySubject(messagequeue.SubjectCollabSessionCreated)
	if len(created) != 2 {
		t.Fatalf("expected 2 announcements, got %d", len(created))
	}
	var p messagequeue.CollabSessionPayload
	if err := json.Unmarshal(created[0].data, &p); err != nil {
		t.Fatal(err)
	}
	if p.SessionID != id1 || p.Kind != "iteration" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestSessions_CreateFails(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: timeout")}
	s := &Sessions{pub: pub, byKey: make(map[string]string)}

	if _, err := s.CreateSession(context.Background(), "k", "iteration"); err == nil {
		t.Fatal("expected error")
	}
	pub.err = nil
	if _, err := s.CreateSession(context.Background(), "k", "iteration"); err != nil {
		t.Fatalf("failed create must not be cached: %v", err)
	}
}

func TestSessions_PostMessage(t *testing.T) {
	pub := &fakePublisher{}
	s := &Sessions{pub: pub, byKey: make(map[string]string)}

	err := s.PostMessage(context.Background(), "c1", "please rework", map[string]string{"step_id": "design"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := pub.bySubject(messagequeue.SubjectCollabMessages + ".c1")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	var p messagequeue.CollabMessagePayload
	_ = json.Unmarshal(msgs[0].data, &p)
	if p.Text != "please rework" || p.Hints["step_id"] != "design" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

type fakeDurable struct {
	handlers map[string]messagequeue.Handler
	durables []string
	stopped  int
	failOn   string
}

func (f *fakeDurable) SubscribeDurable(_ context.Context, subject, durable string, h messagequeue.Handler) (func(), error) {
	if subject == f.failOn {
		return nil, errors.New("stream not found")
	}
	if f.handlers == nil {
		f.handlers = make(map[string]messagequeue.Handler)
	}
	f.handlers[subject] = h
	f.durables = append(f.durables, durable)
	return func() { f.stopped++ }, nil
}

type fakeApprovals struct {
	gotID string
	got   approval.Decision
	res   *approval.ProcessResult
	err   error
}

func (f *fakeApprovals) ProcessResponse(_ context.Context, id string, d approval.Decision) (*approval.ProcessResult, error) {
	f.gotID, f.got = id, d
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeIterations struct {
	gotID   string
	success bool
	err     error
}

func (f *fakeIterations) Complete(_ context.Context, id string, success bool) error {
	f.gotID, f.success = id, success
	return f.err
}

func TestCommands_ApprovalRespond(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		res           *approval.ProcessResult
		wantErr       bool
		wantPermanent bool
	}{
		{"applied", nil, &approval.ProcessResult{Accepted: true, NextAction: approval.NextContinue}, false, false},
		{"already resolved", nil, &approval.ProcessResult{Accepted: false, Reason: "not pending"}, false, false},
		{"invalid decision", fmt.Errorf("bad: %w", domain.ErrValidation), nil, true, true},
		{"store down", errors.New("connection refused"), nil, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeDurable{}
			approvals := &fakeApprovals{res: tt.res, err: tt.err}
			stop, err := NewCommands(approvals, &fakeIterations{}).Subscribe(context.Background(), q)
			if err != nil {
				t.Fatal(err)
			}
			defer stop()

			data := []byte(`{"approval_id":"a1","decision":"rejected","feedback":"split the module","iteration_required":true,"resolved_by":"lead"}`)
			if err := messagequeue.Validate(messagequeue.SubjectApprovalRespond, data); err != nil {
				t.Fatal(err)
			}
			err = q.handlers[messagequeue.SubjectApprovalRespond](context.Background(), messagequeue.SubjectApprovalRespond, data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, messagequeue.ErrPermanent); got != tt.wantPermanent {
				t.Fatalf("permanent = %v, want %v (%v)", got, tt.wantPermanent, err)
			}
			if approvals.gotID != "a1" || approvals.got.Decision != approval.DecisionRejected ||
				!approvals.got.IterationRequired || approvals.got.ResolvedBy != "lead" {
				t.Fatalf("decision not forwarded: %s %+v", approvals.gotID, approvals.got)
			}
		})
	}
}

func TestCommands_IterationComplete(t *testing.T) {
	q := &fakeDurable{}
	iterations := &fakeIterations{}
	stop, err := NewCommands(&fakeApprovals{}, iterations).Subscribe(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	h := q.handlers[messagequeue.SubjectIterationComplete]
	if err := h(context.Background(), messagequeue.SubjectIterationComplete, []byte(`{"iteration_id":"i1","success":true}`)); err != nil {
		t.Fatal(err)
	}
	if iterations.gotID != "i1" || !iterations.success {
		t.Fatalf("completion not forwarded: %+v", iterations)
	}

	iterations.err = fmt.Errorf("complete: %w", domain.ErrIterationClosed)
	err = h(context.Background(), messagequeue.SubjectIterationComplete, []byte(`{"iteration_id":"i1","success":false}`))
	if !errors.Is(err, messagequeue.ErrPermanent) {
		t.Fatalf("closed iteration must be permanent, got %v", err)
	}
}

func TestCommands_SubscribeFailureStopsEarlierConsumers(t *testing.T) {
	q := &fakeDurable{failOn: messagequeue.SubjectIterationComplete}
	if _, err := NewCommands(&fakeApprovals{}, &fakeIterations{}).Subscribe(context.Background(), q); err == nil {
		t.Fatal("expected error")
	}
	if q.stopped != 1 {
		t.Fatalf("stopped %d consumers, want 1", q.stopped)
	}
}
