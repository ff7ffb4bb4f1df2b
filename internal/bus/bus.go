// Package bus delivers cross-view notifications. Publishing is synchronous
// and each subscriber is isolated from the others' failures.
package bus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"vpms_console/internal/domain"
	"vpms_console/internal/logger"
	"vpms_console/internal/metrics"
)

// Handler receives one publication. A returned error is logged and counted.
type Handler func(ctx context.Context, ch domain.Channel, payload any) error

type subscriber struct {
	key     string
	handler Handler
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[domain.Channel][]subscriber
	logger *zap.Logger
}

func New(l *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[domain.Channel][]subscriber),
		logger: logger.Named(l, "bus"),
	}
}

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default returns the lazily created process-wide bus.
func Default() *Bus {
	defaultOnce.Do(func() {
		defaultBus = New(nil)
	})
	return defaultBus
}

// Subscribe registers handler under key. Registering a key that is already
// present on the channel is a no-op.
func (b *Bus) Subscribe(ch domain.Channel, key string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs[ch] {
		if s.key == key {
			return
		}
	}
	b.subs[ch] = append(b.subs[ch], subscriber{key: key, handler: h})
}

// SubscribeAll registers handler on every channel.
func (b *Bus) SubscribeAll(key string, h Handler) {
	for _, ch := range domain.Channels() {
		b.Subscribe(ch, key, h)
	}
}

func (b *Bus) Unsubscribe(ch domain.Channel, key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[ch]
	for i, s := range list {
		if s.key == key {
			b.subs[ch] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// UnsubscribeAll removes key from every channel.
func (b *Bus) UnsubscribeAll(key string) {
	for _, ch := range domain.Channels() {
		b.Unsubscribe(ch, key)
	}
}

func (b *Bus) Subscribers(ch domain.Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[ch])
}

// Publish calls every handler of ch in registration order and returns how
// many of them failed. Handlers run without the bus lock held, so they may
// subscribe, unsubscribe or publish themselves.
func (b *Bus) Publish(ctx context.Context, ch domain.Channel, payload any) int {
	b.mu.RLock()
	list := make([]subscriber, len(b.subs[ch]))
	copy(list, b.subs[ch])
	b.mu.RUnlock()

	metrics.BusPublished.WithLabelValues(string(ch)).Inc()

	failed := 0
	for _, s := range list {
		if err := b.deliver(ctx, ch, s, payload); err != nil {
			failed++
			metrics.BusHandlerFailures.WithLabelValues(string(ch)).Inc()
			b.logger.Warn("subscriber failed",
				zap.String("channel", string(ch)),
				zap.String("subscriber", s.key),
				zap.Error(err))
		}
	}
	return failed
}

func (b *Bus) deliver(ctx context.Context, ch domain.Channel, s subscriber, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(ctx, ch, payload)
}
