package view

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/metrics"
	"vpms_console/internal/poller"
)

// Mounted is a view that is on screen: polled and subscribed to its channels.
type Mounted struct {
	View
	key    string
	bus    *bus.Bus
	poller *poller.Poller

	once sync.Once
}

// Mount starts polling v and refetches whenever one of its channels fires.
// The bus handler only nudges the poller, so publishers never wait on a fetch.
func Mount(ctx context.Context, v View, b *bus.Bus, l *zap.Logger) *Mounted {
	m := &Mounted{
		View:   v,
		key:    string(v.Name()) + ":" + uuid.NewString(),
		bus:    b,
		poller: poller.New(string(v.Name()), v.Interval(), v.Refresh, l),
	}
	for _, ch := range v.Channels() {
		b.Subscribe(ch, m.key, func(context.Context, domain.Channel, any) error {
			m.poller.Trigger()
			return nil
		})
	}
	m.poller.Start(ctx)
	metrics.MountedViews.Inc()
	return m
}

// Refetch asks for an out-of-band refresh.
func (m *Mounted) Refetch() {
	m.poller.Trigger()
}

// Unmount detaches the view and waits for its poller to exit. Any fetch in
// flight is cancelled and its result dropped. Safe to call more than once.
func (m *Mounted) Unmount() {
	m.once.Do(func() {
		m.bus.UnsubscribeAll(m.key)
		m.poller.Stop()
		metrics.MountedViews.Dec()
	})
}

func (m *Mounted) Key() string {
	return m.key
}
