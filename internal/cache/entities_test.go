package cache

import (
	"context"
	"testing"
	"time"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
)

type countingSource struct {
	slots []domain.ParkingSlot
	calls map[string]int
}

func newSource() *countingSource {
	return &countingSource{
		slots: []domain.ParkingSlot{{SlotID: 1, Type: domain.SlotType2W}},
		calls: map[string]int{},
	}
}

func (s *countingSource) ListSlots(context.Context) ([]domain.ParkingSlot, error) {
	s.calls["slots"]++
	return append([]domain.ParkingSlot(nil), s.slots...), nil
}

func (s *countingSource) ListAvailableSlots(_ context.Context, t domain.SlotType) ([]domain.ParkingSlot, error) {
	s.calls["slots:available:"+string(t)]++
	var out []domain.ParkingSlot
	for _, sl := range s.slots {
		if !sl.Occupied && (t == "" || sl.Type == t) {
			out = append(out, sl)
		}
	}
	return out, nil
}

func (s *countingSource) ListReservations(context.Context) ([]domain.Reservation, error) {
	s.calls["reservations"]++
	return nil, nil
}

func (s *countingSource) ListUserReservations(context.Context, int64) ([]domain.Reservation, error) {
	s.calls["reservations:user"]++
	return []domain.Reservation{{ReservationID: 4}}, nil
}

func (s *countingSource) ListLogs(context.Context) ([]domain.VehicleLog, error) {
	s.calls["logs"]++
	return nil, nil
}

func (s *countingSource) ListUserLogs(context.Context, int64) ([]domain.VehicleLog, error) {
	s.calls["logs:user"]++
	return nil, nil
}

func (s *countingSource) ListInvoices(context.Context) ([]domain.Invoice, error) {
	s.calls["invoices"]++
	return nil, nil
}

func (s *countingSource) ListUserInvoices(context.Context, int64) ([]domain.Invoice, error) {
	s.calls["invoices:user"]++
	return nil, nil
}

func (s *countingSource) ListUsers(context.Context) ([]domain.User, error) {
	s.calls["users"]++
	return nil, nil
}

type fixedIdentity struct{ s domain.Session }

func (f *fixedIdentity) Current() domain.Session { return f.s }

var signedIn = &fixedIdentity{s: domain.Session{Token: "t", User: &domain.User{ID: 1, Role: domain.RoleAdmin}}}

func TestRepeatedLoadsShareOneFetch(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	e := NewEntities(src, signedIn, NewMemoryStore(), time.Minute, nil)

	for i := 0; i < 3; i++ {
		if _, err := e.Slots(ctx); err != nil {
			t.Fatalf("slots: %v", err)
		}
	}
	if src.calls["slots"] != 1 {
		t.Fatalf("expected one fetch, got %d", src.calls["slots"])
	}

	if _, err := e.UserReservations(ctx, 7); err != nil {
		t.Fatalf("user reservations: %v", err)
	}
	if _, err := e.UserReservations(ctx, 7); err != nil {
		t.Fatalf("user reservations: %v", err)
	}
	if src.calls["reservations:user"] != 1 {
		t.Fatalf("expected per-user entry to be cached, got %d", src.calls["reservations:user"])
	}
}

func TestEntriesExpire(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	e := NewEntities(src, signedIn, store, 5*time.Second, nil)

	_, _ = e.Slots(ctx)
	now = now.Add(6 * time.Second)
	_, _ = e.Slots(ctx)
	if src.calls["slots"] != 2 {
		t.Fatalf("expected refetch after TTL, got %d", src.calls["slots"])
	}
}

func TestInvalidationRunsBeforeLaterSubscribers(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	e := NewEntities(src, signedIn, NewMemoryStore(), time.Minute, nil)
	b := bus.New(nil)
	e.Attach(b)

	_, _ = e.Slots(ctx)
	_, _ = e.UserReservations(ctx, 7)
	src.slots[0].Occupied = true

	var seen []domain.ParkingSlot
	b.Subscribe(domain.ChannelReservationChanged, "view", func(ctx context.Context, _ domain.Channel, _ any) error {
		var err error
		seen, err = e.Slots(ctx)
		return err
	})

	if failed := b.Publish(ctx, domain.ChannelReservationChanged, nil); failed != 0 {
		t.Fatalf("unexpected handler failures: %d", failed)
	}
	if len(seen) != 1 || !seen[0].Occupied {
		t.Fatalf("view saw stale slots: %+v", seen)
	}
	_, _ = e.UserReservations(ctx, 7)
	if src.calls["reservations:user"] != 2 {
		t.Fatal("per-user reservations should be invalidated with the entity")
	}
}

func TestUnrelatedChannelKeepsEntries(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	e := NewEntities(src, signedIn, NewMemoryStore(), time.Minute, nil)
	b := bus.New(nil)
	e.Attach(b)

	_, _ = e.Slots(ctx)
	b.Publish(ctx, domain.ChannelUserChanged, nil)
	_, _ = e.Slots(ctx)
	if src.calls["slots"] != 1 {
		t.Fatalf("user-changed must not drop slots, got %d fetches", src.calls["slots"])
	}
}

func TestZeroTTLDisablesCaching(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	e := NewEntities(src, signedIn, NewMemoryStore(), 0, nil)
	_, _ = e.Users(ctx)
	_, _ = e.Users(ctx)
	if src.calls["users"] != 2 {
		t.Fatalf("expected no caching, got %d fetches", src.calls["users"])
	}
}

func TestEntriesAreScopedToTheSession(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	who := &fixedIdentity{s: domain.Session{Token: "admin-token", User: &domain.User{ID: 1, Role: domain.RoleAdmin}}}
	e := NewEntities(src, who, NewMemoryStore(), time.Minute, nil)

	_, _ = e.Users(ctx)
	_, _ = e.Users(ctx)
	if src.calls["users"] != 1 {
		t.Fatalf("expected one fetch for the admin, got %d", src.calls["users"])
	}

	who.s = domain.Session{Token: "customer-token", User: &domain.User{ID: 3, Role: domain.RoleCustomer}}
	_, _ = e.Users(ctx)
	if src.calls["users"] != 2 {
		t.Fatal("a different session was served the admin's cached users")
	}

	who.s = domain.Session{}
	_, _ = e.Users(ctx)
	_, _ = e.Users(ctx)
	if src.calls["users"] != 4 {
		t.Fatalf("logged-out loads must bypass the cache, got %d fetches", src.calls["users"])
	}
}

func TestSessionChangeDropsEverything(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	e := NewEntities(src, signedIn, NewMemoryStore(), time.Minute, nil)
	b := bus.New(nil)
	e.Attach(b)

	_, _ = e.Slots(ctx)
	_, _ = e.Users(ctx)
	b.Publish(ctx, domain.ChannelSessionChanged, nil)
	_, _ = e.Slots(ctx)
	_, _ = e.Users(ctx)
	if src.calls["slots"] != 2 || src.calls["users"] != 2 {
		t.Fatalf("session-changed should drop all entries, calls = %v", src.calls)
	}
}

func TestAvailableSlotsFollowSlotInvalidation(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	b := bus.New(nil)
	e := NewEntities(src, signedIn, NewMemoryStore(), time.Minute, nil)
	e.Attach(b)

	for i := 0; i < 2; i++ {
		if _, err := e.AvailableSlots(ctx, domain.SlotType2W); err != nil {
			t.Fatal(err)
		}
		if _, err := e.AvailableSlots(ctx, ""); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls["slots:available:2W"] != 1 || src.calls["slots:available:"] != 1 {
		t.Fatalf("calls = %v, want one per type", src.calls)
	}

	b.Publish(ctx, domain.ChannelSlotChanged, nil)
	if _, err := e.AvailableSlots(ctx, domain.SlotType2W); err != nil {
		t.Fatal(err)
	}
	if src.calls["slots:available:2W"] != 2 {
		t.Errorf("slot change kept the free list, calls = %v", src.calls)
	}
}
