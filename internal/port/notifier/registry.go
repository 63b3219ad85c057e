package notifier

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Strob0t/devteam/internal/domain/notification"
)

// Factory is a constructor function that creates a new Sender instance.
type Factory func(config map[string]string) (Sender, error)

var (
	mu        sync.RWMutex
	factories = make(map[notification.Channel]Factory)
)

// Register makes a sender factory available for a channel.
// It is typically called from an init() function in the adapter package.
func Register(channel notification.Channel, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[channel]; exists {
		panic(fmt.Sprintf("notifier: duplicate registration for %q", channel))
	}
	factories[channel] = factory
}

// New creates a Sender for the channel using the registered factory.
func New(channel notification.Channel, config map[string]string) (Sender, error) {
	mu.RLock()
	factory, ok := factories[channel]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("notifier: unknown channel %q", channel)
	}
	return factory(config)
}

// Available returns the registered channels in sorted order.
func Available() []notification.Channel {
	mu.RLock()
	defer mu.RUnlock()

	channels := make([]notification.Channel, 0, len(factories))
	for ch := range factories {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}
