// Package cache memoizes entity lists for a short TTL so that several views
// mounted at once share one fetch, and drops them whenever the bus reports
// a change.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/logger"
	"vpms_console/internal/metrics"
)

const (
	EntitySlots        = "slots"
	EntityReservations = "reservations"
	EntityLogs         = "logs"
	EntityInvoices     = "invoices"
	EntityUsers        = "users"
)

// Invalidations maps each bus channel to the entities it makes stale.
var Invalidations = map[domain.Channel][]string{
	domain.ChannelPaymentCompleted:   {EntityInvoices, EntityReservations, EntitySlots},
	domain.ChannelReservationChanged: {EntityReservations, EntitySlots, EntityInvoices},
	domain.ChannelVehicleLogChanged:  {EntityLogs, EntitySlots, EntityInvoices},
	domain.ChannelSlotChanged:        {EntitySlots},
	domain.ChannelUserChanged:        {EntityUsers},
	domain.ChannelRefreshAll:         {EntitySlots, EntityReservations, EntityLogs, EntityInvoices, EntityUsers},
	domain.ChannelSessionExpired:     {EntitySlots, EntityReservations, EntityLogs, EntityInvoices, EntityUsers},
	domain.ChannelSessionChanged:     {EntitySlots, EntityReservations, EntityLogs, EntityInvoices, EntityUsers},
}

// Identity reports who the cached data is fetched for.
type Identity interface {
	Current() domain.Session
}

// Source is the read side of the parking API.
type Source interface {
	ListSlots(ctx context.Context) ([]domain.ParkingSlot, error)
	ListAvailableSlots(ctx context.Context, t domain.SlotType) ([]domain.ParkingSlot, error)
	ListReservations(ctx context.Context) ([]domain.Reservation, error)
	ListUserReservations(ctx context.Context, userID int64) ([]domain.Reservation, error)
	ListLogs(ctx context.Context) ([]domain.VehicleLog, error)
	ListUserLogs(ctx context.Context, userID int64) ([]domain.VehicleLog, error)
	ListInvoices(ctx context.Context) ([]domain.Invoice, error)
	ListUserInvoices(ctx context.Context, userID int64) ([]domain.Invoice, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type Entities struct {
	src      Source
	identity Identity
	store    Store
	ttl      time.Duration
	logger   *zap.Logger

	// bumped on every invalidation; a fetch that straddles one is not stored
	epoch atomic.Uint64
}

func NewEntities(src Source, identity Identity, store Store, ttl time.Duration, l *zap.Logger) *Entities {
	return &Entities{src: src, identity: identity, store: store, ttl: ttl, logger: logger.Named(l, "cache")}
}

// Attach subscribes the cache to the bus. Call it before any view subscribes
// so invalidation runs ahead of the views' refetch.
func (e *Entities) Attach(b *bus.Bus) {
	for ch := range Invalidations {
		b.Subscribe(ch, "entity-cache", func(ctx context.Context, ch domain.Channel, _ any) error {
			return e.Invalidate(ctx, Invalidations[ch]...)
		})
	}
}

func (e *Entities) Invalidate(ctx context.Context, entities ...string) error {
	e.epoch.Add(1)
	for _, name := range entities {
		if err := e.store.DeletePrefix(ctx, name); err != nil {
			return fmt.Errorf("invalidate %s: %w", name, err)
		}
	}
	return nil
}

func userKey(entity string, id int64) string {
	return fmt.Sprintf("%s:user:%d", entity, id)
}

// scope names the session an entry belongs to: the user id plus a digest of
// the token, so a new login never reads what an earlier one fetched. The
// entity name stays first for DeletePrefix.
func (e *Entities) scope(key string) (string, bool) {
	s := e.identity.Current()
	if !s.Authenticated() {
		return "", false
	}
	sum := sha256.Sum256([]byte(s.Token))
	return fmt.Sprintf("%s@%d.%x", key, s.User.ID, sum[:8]), true
}

func (e *Entities) Slots(ctx context.Context) ([]domain.ParkingSlot, error) {
	return load(ctx, e, EntitySlots, EntitySlots, e.src.ListSlots)
}

// AvailableSlots is the API's free list, all types when t is empty. It is
// filed under slots so every slot invalidation drops it too.
func (e *Entities) AvailableSlots(ctx context.Context, t domain.SlotType) ([]domain.ParkingSlot, error) {
	key := EntitySlots + ":available"
	if t != "" {
		key += ":" + string(t)
	}
	return load(ctx, e, EntitySlots, key, func(ctx context.Context) ([]domain.ParkingSlot, error) {
		return e.src.ListAvailableSlots(ctx, t)
	})
}

func (e *Entities) Reservations(ctx context.Context) ([]domain.Reservation, error) {
	return load(ctx, e, EntityReservations, EntityReservations, e.src.ListReservations)
}

func (e *Entities) UserReservations(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	return load(ctx, e, EntityReservations, userKey(EntityReservations, userID), func(ctx context.Context) ([]domain.Reservation, error) {
		return e.src.ListUserReservations(ctx, userID)
	})
}

func (e *Entities) Logs(ctx context.Context) ([]domain.VehicleLog, error) {
	return load(ctx, e, EntityLogs, EntityLogs, e.src.ListLogs)
}

func (e *Entities) UserLogs(ctx context.Context, userID int64) ([]domain.VehicleLog, error) {
	return load(ctx, e, EntityLogs, userKey(EntityLogs, userID), func(ctx context.Context) ([]domain.VehicleLog, error) {
		return e.src.ListUserLogs(ctx, userID)
	})
}

func (e *Entities) Invoices(ctx context.Context) ([]domain.Invoice, error) {
	return load(ctx, e, EntityInvoices, EntityInvoices, e.src.ListInvoices)
}

func (e *Entities) UserInvoices(ctx context.Context, userID int64) ([]domain.Invoice, error) {
	return load(ctx, e, EntityInvoices, userKey(EntityInvoices, userID), func(ctx context.Context) ([]domain.Invoice, error) {
		return e.src.ListUserInvoices(ctx, userID)
	})
}

func (e *Entities) Users(ctx context.Context) ([]domain.User, error) {
	return load(ctx, e, EntityUsers, EntityUsers, e.src.ListUsers)
}

func load[T any](ctx context.Context, e *Entities, entity, key string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	key, cacheable := e.scope(key)
	if !cacheable || e.ttl <= 0 {
		metrics.CacheLookups.WithLabelValues(entity, "miss").Inc()
		return fetch(ctx)
	}
	raw, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var out []T
		if err := json.Unmarshal(raw, &out); err == nil {
			metrics.CacheLookups.WithLabelValues(entity, "hit").Inc()
			return out, nil
		}
	}
	metrics.CacheLookups.WithLabelValues(entity, "miss").Inc()

	epoch := e.epoch.Load()
	out, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if e.epoch.Load() != epoch {
		return out, nil
	}
	raw, err = json.Marshal(out)
	if err != nil {
		return out, nil
	}
	if err := e.store.Set(ctx, key, raw, e.ttl); err != nil {
		e.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}
