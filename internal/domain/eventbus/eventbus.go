package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Publisher is the narrow view handed to code that only emits events.
type Publisher interface {
	Publish(topic string, args ...interface{})
}

// Bus wraps an EventBus instance so it can be injected and drained on shutdown.
type Bus struct {
	bus evbus.Bus
}

var (
	instance *Bus
	once     sync.Once
)

// New creates an independent bus.
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// Get returns the process-wide bus.
func Get() *Bus {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// Publish delivers args to every subscriber of topic. Synchronous handlers
// run before Publish returns.
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// Subscribe registers a synchronous handler. fn must accept the published args.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync registers a handler that runs on its own goroutine.
func (b *Bus) SubscribeAsync(topic string, fn interface{}) error {
	return b.bus.SubscribeAsync(topic, fn, false)
}

func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

func (b *Bus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}

// Wait blocks until every async handler has returned.
func (b *Bus) Wait() {
	b.bus.WaitAsync()
}
