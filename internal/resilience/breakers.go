package resilience

import (
	"sync"
	"time"
)

// Breakers lazily creates one Breaker per key, all sharing the same settings.
type Breakers struct {
	mu          sync.Mutex
	items       map[string]*Breaker
	maxFailures int
	timeout     time.Duration
	onChange    func(name string, from, to State)
}

// NewBreakers returns an empty set of breakers.
func NewBreakers(maxFailures int, timeout time.Duration) *Breakers {
	return &Breakers{
		items:       make(map[string]*Breaker),
		maxFailures: maxFailures,
		timeout:     timeout,
	}
}

// OnStateChange sets the hook attached to breakers created afterwards.
func (s *Breakers) OnStateChange(fn func(name string, from, to State)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Get returns the breaker for key, creating it on first use.
func (s *Breakers) Get(key string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.items[key]
	if !ok {
		b = NewNamedBreaker(key, s.maxFailures, s.timeout)
		if s.onChange != nil {
			b.onChange = s.onChange
		}
		s.items[key] = b
	}
	return b
}

// Snapshot reports the state of every known breaker, keyed by name.
func (s *Breakers) Snapshot() map[string]State {
	s.mu.Lock()
	items := make([]*Breaker, 0, len(s.items))
	for _, b := range s.items {
		items = append(items, b)
	}
	s.mu.Unlock()

	out := make(map[string]State, len(items))
	for _, b := range items {
		out[b.Name()] = b.State()
	}
	return out
}
