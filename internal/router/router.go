package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/logger"
	"vpms_console/internal/session"
	"vpms_console/internal/view"
)

var (
	ErrForbidden  = errors.New("not permitted for this role")
	ErrNotMounted = errors.New("view is not open")
	ErrNotStarted = errors.New("router not started")
)

const busKey = "router"

type Factory interface {
	New(name domain.ViewName, user domain.User, p view.Params) (view.View, error)
}

type Session interface {
	Current() domain.Session
}

// Router owns the main view and any panels mounted beside it.
type Router struct {
	caps    Capabilities
	factory Factory
	session Session
	bus     *bus.Bus
	logger  *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	started bool
	current domain.ViewName
	main    *view.Mounted
	panels  map[domain.ViewName]*view.Mounted
}

func New(caps Capabilities, factory Factory, s Session, b *bus.Bus, l *zap.Logger) *Router {
	return &Router{
		caps:    caps,
		factory: factory,
		session: s,
		bus:     b,
		logger:  logger.Named(l, "router"),
		current: domain.ViewLoading,
		panels:  make(map[domain.ViewName]*view.Mounted),
	}
}

// Start picks the first screen. Call it once the session has been restored;
// until then the router reports the loading view.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.started = true
	r.mu.Unlock()

	r.bus.Subscribe(domain.ChannelSessionExpired, busKey, func(context.Context, domain.Channel, any) error {
		// the publisher may be a fetch of a view we are about to stop
		go r.ForceLogin()
		return nil
	})

	if !r.session.Current().Authenticated() {
		r.ForceLogin()
		return nil
	}
	_, err := r.Navigate(domain.ViewDashboard)
	return err
}

func (r *Router) Current() domain.ViewName {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Menu lists the caller's navigation entries; empty when logged out.
func (r *Router) Menu() []MenuItem {
	s := r.session.Current()
	if !s.Authenticated() {
		return nil
	}
	return r.caps.Menu(s.Role())
}

// Can reports whether the signed-in user may perform a.
func (r *Router) Can(a domain.Action) bool {
	s := r.session.Current()
	return s.Authenticated() && r.caps.CanDo(s.Role(), a)
}

func (r *Router) build(name domain.ViewName, p view.Params) (view.View, error) {
	s := r.session.Current()
	if !s.Authenticated() {
		return nil, session.ErrNotAuthenticated
	}
	if !r.caps.CanView(s.Role(), name) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, name)
	}
	return r.factory.New(name, *s.User, p)
}

// Navigate replaces the main view with name.
func (r *Router) Navigate(name domain.ViewName) (*view.Mounted, error) {
	return r.NavigateWith(name, view.Params{})
}

// NavigateWith replaces the main view with name narrowed by p.
func (r *Router) NavigateWith(name domain.ViewName, p view.Params) (*view.Mounted, error) {
	v, err := r.build(name, p)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil, ErrNotStarted
	}
	m := view.Mount(r.ctx, v, r.bus, r.logger)
	old := r.main
	r.main = m
	r.current = name
	r.mu.Unlock()

	if old != nil {
		old.Unmount()
	}
	r.logger.Debug("navigated", zap.String("view", string(name)))
	return m, nil
}

// Open mounts name as a panel next to the main view. Opening an open panel
// returns it unchanged.
func (r *Router) Open(name domain.ViewName) (*view.Mounted, error) {
	return r.OpenWith(name, view.Params{})
}

// OpenWith is Open narrowed by p. An open panel with other params is
// replaced.
func (r *Router) OpenWith(name domain.ViewName, p view.Params) (*view.Mounted, error) {
	v, err := r.build(name, p)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil, ErrNotStarted
	}
	old, ok := r.panels[name]
	if ok && old.Params() == p {
		r.mu.Unlock()
		return old, nil
	}
	m := view.Mount(r.ctx, v, r.bus, r.logger)
	r.panels[name] = m
	r.mu.Unlock()

	if old != nil {
		old.Unmount()
	}
	return m, nil
}

func (r *Router) Close(name domain.ViewName) error {
	r.mu.Lock()
	m, ok := r.panels[name]
	delete(r.panels, name)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotMounted, name)
	}
	m.Unmount()
	return nil
}

// Mounted finds an open view, main or panel, by name.
func (r *Router) Mounted(name domain.ViewName) (*view.Mounted, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.main != nil && r.current == name {
		return r.main, nil
	}
	if m, ok := r.panels[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotMounted, name)
}

func (r *Router) Snapshot(name domain.ViewName) (view.Snapshot, error) {
	m, err := r.Mounted(name)
	if err != nil {
		return view.Snapshot{}, err
	}
	return m.Snapshot(), nil
}

// ForceLogin unmounts everything and shows the login screen.
func (r *Router) ForceLogin() {
	for _, m := range r.detach(domain.ViewLogin) {
		m.Unmount()
	}
}

// Stop unmounts everything and leaves the bus.
func (r *Router) Stop() {
	r.bus.UnsubscribeAll(busKey)
	for _, m := range r.detach(domain.ViewLoading) {
		m.Unmount()
	}
}

func (r *Router) detach(next domain.ViewName) []*view.Mounted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*view.Mounted
	if r.main != nil {
		out = append(out, r.main)
	}
	for name, m := range r.panels {
		out = append(out, m)
		delete(r.panels, name)
	}
	r.main = nil
	r.current = next
	return out
}
