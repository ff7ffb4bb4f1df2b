package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/session"
	"vpms_console/internal/view"
)

type fakeSession struct {
	mu sync.Mutex
	s  domain.Session
}

func (f *fakeSession) Current() domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

func (f *fakeSession) login(role domain.Role) {
	f.mu.Lock()
	f.s = domain.Session{Token: "t", User: &domain.User{ID: 9, Role: role}}
	f.mu.Unlock()
}

func (f *fakeSession) logout() {
	f.mu.Lock()
	f.s = domain.Session{}
	f.mu.Unlock()
}

type stubView struct {
	name    domain.ViewName
	params  view.Params
	fetches atomic.Int32
}

func (p *stubView) Name() domain.ViewName      { return p.name }
func (p *stubView) Interval() time.Duration    { return 0 }
func (p *stubView) Params() view.Params        { return p.params }
func (p *stubView) Channels() []domain.Channel { return []domain.Channel{domain.ChannelRefreshAll} }
func (p *stubView) Snapshot() view.Snapshot    { return view.Snapshot{View: p.name} }
func (p *stubView) Refresh(context.Context) error {
	p.fetches.Add(1)
	return nil
}

type stubFactory struct {
	mu    sync.Mutex
	built []*stubView
}

func (f *stubFactory) New(name domain.ViewName, _ domain.User, p view.Params) (view.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := &stubView{name: name, params: p}
	f.built = append(f.built, v)
	return v, nil
}

func newRouter(t *testing.T, sess *fakeSession) (*Router, *bus.Bus) {
	t.Helper()
	b := bus.New(zap.NewNop())
	r := New(DefaultCapabilities(), &stubFactory{}, sess, b, zap.NewNop())
	t.Cleanup(r.Stop)
	return r, b
}

func TestStartPicksFirstScreen(t *testing.T) {
	sess := &fakeSession{}
	r, _ := newRouter(t, sess)
	if got := r.Current(); got != domain.ViewLoading {
		t.Fatalf("before start = %s", got)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := r.Current(); got != domain.ViewLogin {
		t.Errorf("logged out start = %s", got)
	}

	sess2 := &fakeSession{}
	sess2.login(domain.RoleStaff)
	r2, _ := newRouter(t, sess2)
	if err := r2.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := r2.Current(); got != domain.ViewDashboard {
		t.Errorf("logged in start = %s", got)
	}
}

func TestNavigateRespectsRoles(t *testing.T) {
	sess := &fakeSession{}
	sess.login(domain.RoleCustomer)
	r, _ := newRouter(t, sess)
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Navigate(domain.ViewUsers); !errors.Is(err, ErrForbidden) {
		t.Errorf("customer -> users err = %v", err)
	}
	if r.Current() != domain.ViewDashboard {
		t.Errorf("current changed to %s after a denied navigation", r.Current())
	}
	if _, err := r.Navigate(domain.ViewMyVehicles); err != nil {
		t.Errorf("customer -> my-vehicles: %v", err)
	}

	sess.logout()
	if _, err := r.Navigate(domain.ViewDashboard); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Errorf("logged out navigate err = %v", err)
	}
}

func TestNavigateUnmountsPrevious(t *testing.T) {
	sess := &fakeSession{}
	sess.login(domain.RoleAdmin)
	r, b := newRouter(t, sess)
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Navigate(domain.ViewBilling); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Open(domain.ViewProfile); err != nil {
		t.Fatal(err)
	}
	if n := b.Subscribers(domain.ChannelRefreshAll); n != 2 {
		t.Errorf("refresh-all subscribers = %d, want main + panel", n)
	}
	if _, err := r.Snapshot(domain.ViewDashboard); !errors.Is(err, ErrNotMounted) {
		t.Errorf("dashboard still mounted: %v", err)
	}
	if err := r.Close(domain.ViewProfile); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(domain.ViewProfile); !errors.Is(err, ErrNotMounted) {
		t.Errorf("second close err = %v", err)
	}
}

func TestPanelParams(t *testing.T) {
	sess := &fakeSession{}
	sess.login(domain.RoleCustomer)
	r, b := newRouter(t, sess)
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	all, err := r.Open(domain.ViewAvailableSlots)
	if err != nil {
		t.Fatal(err)
	}
	if again, _ := r.Open(domain.ViewAvailableSlots); again != all {
		t.Error("reopening with the same params mounted a new panel")
	}

	twoW, err := r.OpenWith(domain.ViewAvailableSlots, view.Params{SlotType: domain.SlotType2W})
	if err != nil {
		t.Fatal(err)
	}
	if twoW == all || twoW.Params().SlotType != domain.SlotType2W {
		t.Fatalf("panel params = %+v", twoW.Params())
	}
	if m, _ := r.Mounted(domain.ViewAvailableSlots); m != twoW {
		t.Error("filtered panel did not replace the unfiltered one")
	}
	if n := b.Subscribers(domain.ChannelRefreshAll); n != 2 {
		t.Errorf("refresh-all subscribers = %d, want main + one panel", n)
	}

	main, err := r.NavigateWith(domain.ViewAvailableSlots, view.Params{SlotType: domain.SlotType4W})
	if err != nil {
		t.Fatal(err)
	}
	if main.Params().SlotType != domain.SlotType4W {
		t.Errorf("main params = %+v", main.Params())
	}
}

func TestSessionExpiryForcesLogin(t *testing.T) {
	sess := &fakeSession{}
	sess.login(domain.RoleStaff)
	r, b := newRouter(t, sess)
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Open(domain.ViewVehicleEntry); err != nil {
		t.Fatal(err)
	}

	sess.logout()
	b.Publish(context.Background(), domain.ChannelSessionExpired, nil)

	deadline := time.Now().Add(2 * time.Second)
	for r.Current() != domain.ViewLogin {
		if time.Now().After(deadline) {
			t.Fatalf("current = %s", r.Current())
		}
		time.Sleep(2 * time.Millisecond)
	}
	for b.Subscribers(domain.ChannelRefreshAll) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("views still subscribed after forced login")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if len(r.Menu()) != 0 {
		t.Error("menu shown while logged out")
	}
}

func TestCapabilityTable(t *testing.T) {
	caps := DefaultCapabilities()
	cases := []struct {
		role   domain.Role
		action domain.Action
		want   bool
	}{
		{domain.RoleAdmin, domain.ActionManageUsers, true},
		{domain.RoleStaff, domain.ActionManageUsers, false},
		{domain.RoleStaff, domain.ActionRecordEntry, true},
		{domain.RoleCustomer, domain.ActionRecordEntry, false},
		{domain.RoleCustomer, domain.ActionReserve, true},
		{domain.RoleAdmin, domain.ActionReserve, false},
	}
	for _, c := range cases {
		if got := caps.CanDo(c.role, c.action); got != c.want {
			t.Errorf("%s %s = %v, want %v", c.role, c.action, got, c.want)
		}
	}
	menu := caps.Menu(domain.RoleStaff)
	if len(menu) != 7 || menu[0].View != domain.ViewDashboard || menu[4].View != domain.ViewVehicleEntry {
		t.Errorf("staff menu = %+v", menu)
	}
	for _, item := range caps.Menu(domain.RoleCustomer) {
		if item.View == domain.ViewMyVehicles {
			t.Error("my-vehicles should not be a menu entry")
		}
	}
}
