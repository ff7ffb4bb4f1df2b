// Package view holds the console's screens. A view owns a snapshot of the
// data it shows and knows how to refresh it; Mount wires it to a poller and
// to the bus channels that make it stale.
package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"vpms_console/internal/domain"
	"vpms_console/internal/gateway"
)

var (
	ErrUnknownView   = errors.New("unknown view")
	ErrInvalidParams = errors.New("invalid view parameter")
)

const accessDeniedMessage = "You do not have permission to view this data."

type View interface {
	Name() domain.ViewName
	Interval() time.Duration
	Params() Params
	Channels() []domain.Channel
	Refresh(ctx context.Context) error
	Snapshot() Snapshot
}

// Snapshot is what a view currently shows. Errors stay here and never
// propagate past the view, except 401 which the gateway escalates itself.
type Snapshot struct {
	View         domain.ViewName `json:"view"`
	Loading      bool            `json:"loading"`
	Error        string          `json:"error,omitempty"`
	AccessDenied bool            `json:"accessDenied,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt,omitempty"`
	Data         any             `json:"data,omitempty"`
}

type loadFunc func(ctx context.Context) (any, error)

type view struct {
	name     domain.ViewName
	interval time.Duration
	channels []domain.Channel
	params   Params
	load     loadFunc
	now      func() time.Time

	mu   sync.RWMutex
	snap Snapshot
}

func newView(name domain.ViewName, interval time.Duration, channels []domain.Channel, load loadFunc) *view {
	return &view{
		name:     name,
		interval: interval,
		channels: channels,
		load:     load,
		now:      time.Now,
		snap:     Snapshot{View: name, Loading: true},
	}
}

func (v *view) Name() domain.ViewName      { return v.name }
func (v *view) Interval() time.Duration    { return v.interval }
func (v *view) Params() Params             { return v.params }
func (v *view) Channels() []domain.Channel { return append([]domain.Channel(nil), v.channels...) }

func (v *view) Refresh(ctx context.Context) error {
	data, err := v.load(ctx)
	return v.commit(ctx, data, err)
}

// commit stores a fetch result unless ctx was cancelled meanwhile, in which
// case the view has been unmounted and the result is dropped.
func (v *view) commit(ctx context.Context, data any, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap.Loading = false
	v.snap.UpdatedAt = v.now()
	switch {
	case err == nil:
		v.snap.Data = data
		v.snap.Error = ""
		v.snap.AccessDenied = false
	case gateway.IsStatus(err, 403):
		v.snap.Data = nil
		v.snap.Error = accessDeniedMessage
		v.snap.AccessDenied = true
	default:
		// keep the last good data on screen
		v.snap.Error = gateway.Message(err, "Failed to load data. Please try again.")
	}
	return err
}

func (v *view) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap
}
