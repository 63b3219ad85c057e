package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Strob0t/devteam/internal/adapter/memory"
	"github.com/Strob0t/devteam/internal/config"
	"github.com/Strob0t/devteam/internal/domain/chat"
	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/llm"
	"github.com/Strob0t/devteam/internal/port/notifier"
)

// --- scheduler ---

type mockTask struct {
	delay    time.Duration
	job      func(context.Context)
	periodic bool
	done     bool
}

// mockScheduler queues jobs instead of running them on timers. Tests drive
// time explicitly with runPending.
type mockScheduler struct {
	mu    sync.Mutex
	tasks []*mockTask
}

func (s *mockScheduler) After(d time.Duration, job func(context.Context)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &mockTask{delay: d, job: job}
	s.tasks = append(s.tasks, t)
	return func() {
		s.mu.Lock()
		t.done = true
		s.mu.Unlock()
	}
}

func (s *mockScheduler) Every(d time.Duration, job func(context.Context)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &mockTask{delay: d, job: job, periodic: true}
	s.tasks = append(s.tasks, t)
	return func() {
		s.mu.Lock()
		t.done = true
		s.mu.Unlock()
	}
}

// runPending runs queued one-shot jobs, including those they schedule,
// until none are left. It returns how many ran.
func (s *mockScheduler) runPending(ctx context.Context) int {
	ran := 0
	for {
		s.mu.Lock()
		var next *mockTask
		for _, t := range s.tasks {
			if !t.periodic && !t.done {
				next = t
				break
			}
		}
		if next != nil {
			next.done = true
		}
		s.mu.Unlock()
		if next == nil {
			return ran
		}
		next.job(ctx)
		ran++
	}
}

// delays returns the delay of every one-shot job ever scheduled, in order.
func (s *mockScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.tasks {
		if !t.periodic {
			out = append(out, t.delay)
		}
	}
	return out
}

func (s *mockScheduler) periodic() []*mockTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*mockTask
	for _, t := range s.tasks {
		if t.periodic {
			out = append(out, t)
		}
	}
	return out
}

// --- notifier ---

type mockSender struct {
	mu      sync.Mutex
	channel notification.Channel
	sendErr error
	sent    []notification.Recipient
	content []notification.Content
}

func (m *mockSender) Channel() notification.Channel { return m.channel }

func (m *mockSender) Send(_ context.Context, to notification.Recipient, c notification.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	m.content = append(m.content, c)
	return m.sendErr
}

func (m *mockSender) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var _ notifier.Sender = (*mockSender)(nil)

// --- broadcast ---

type mockEvent struct {
	eventType string
	payload   any
}

type mockBroadcaster struct {
	mu     sync.Mutex
	events []mockEvent
}

func (m *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, mockEvent{eventType: eventType, payload: payload})
}

func (m *mockBroadcaster) count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

// --- llm catalog ---

type mockProvider struct {
	id    string
	err   error
	reply string
	log   *callLog
}

func (p *mockProvider) ID() string { return p.id }

func (p *mockProvider) Chat(_ context.Context, model string, _ chat.Request) (*chat.Response, error) {
	p.log.add(p.id + "/" + model)
	if p.err != nil {
		return nil, p.err
	}
	return &chat.Response{Content: p.reply, Model: model}, nil
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type mockCatalog struct {
	providers map[string]*mockProvider
	models    []llm.ModelInfo
	getErr    error
	listErr   error
	log       *callLog
}

func newMockCatalog(ids ...string) *mockCatalog {
	c := &mockCatalog{providers: make(map[string]*mockProvider), log: &callLog{}}
	for _, id := range ids {
		c.providers[id] = &mockProvider{id: id, reply: "answer from " + id, log: c.log}
	}
	return c
}

// failAll makes every listed provider fail.
func (c *mockCatalog) failAll(ids ...string) {
	for _, id := range ids {
		c.providers[id].err = errors.New(id + " unavailable")
	}
}

func (c *mockCatalog) GetProvider(_ context.Context, id string) (llm.Provider, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	p, ok := c.providers[id]
	if !ok {
		c.log.add(id + "/<missing>")
		return nil, llm.ErrProviderNotFound
	}
	return p, nil
}

func (c *mockCatalog) ListAvailableModels(context.Context) ([]llm.ModelInfo, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.models, nil
}

// --- fixture ---

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store      *memory.Store
	sessions   *memory.Sessions
	sched      *mockScheduler
	hub        *mockBroadcaster
	email      *mockSender
	chatSender *mockSender
	notify     *NotificationDispatcher
	iterations *IterationService
	approvals  *ApprovalService
	escalation *EscalationService
	clock      *time.Time
}

func newFixture() *fixture {
	f := &fixture{
		store:      memory.NewStore(),
		sessions:   memory.NewSessions(),
		sched:      &mockScheduler{},
		hub:        &mockBroadcaster{},
		email:      &mockSender{channel: notification.ChannelEmail},
		chatSender: &mockSender{channel: notification.ChannelChat},
	}
	now := fixedNow
	f.clock = &now
	clock := func() time.Time { return *f.clock }

	cfg := config.Defaults()
	cfg.Contacts = map[string]config.Contact{
		"tech_lead":      {Email: "lead@example.com"},
		"human_reviewer": {SlackChannel: "#reviews"},
	}
	cfg.EscalationContacts = map[string]config.Contact{
		"tech_lead":           {Email: "lead@example.com", Role: "tech_lead"},
		"engineering_manager": {Email: "em@example.com", Role: "engineering_manager"},
	}
	contacts := ContactsFromConfig(&cfg)

	f.notify = NewNotificationDispatcher(f.store, []notifier.Sender{f.email, f.chatSender}, f.sched, f.hub, cfg.Notification)
	f.notify.now = clock
	f.iterations = NewIterationService(f.store, f.store, f.sessions, f.hub, cfg.Approval.DefaultMaxIterations)
	f.iterations.now = clock
	f.approvals = NewApprovalService(f.store, f.iterations, f.notify, f.hub, contacts, cfg.Approval)
	f.approvals.now = clock
	f.escalation = NewEscalationService(f.store, f.notify, f.hub, f.sched, contacts, cfg.Approval, cfg.Notification.EscalationMaxAttempts)
	f.escalation.now = clock
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func intPtr(v int) *int { return &v }
