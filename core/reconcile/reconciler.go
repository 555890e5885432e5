package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/lastmile/core/events"
	"github.com/kilianp07/lastmile/core/logger"
	"github.com/kilianp07/lastmile/core/metrics"
	"github.com/kilianp07/lastmile/core/model"
	"github.com/kilianp07/lastmile/internal/eventbus"
)

// ErrUnknownOrder is returned when an operation targets an order that is not
// in the local collection.
var ErrUnknownOrder = errors.New("unknown order")

// ErrRefetch wraps a failed full collection refetch.
var ErrRefetch = errors.New("order refetch failed")

// Fetcher returns the full order collection from the backend.
type Fetcher func(ctx context.Context) ([]model.Order, error)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithFetcher sets the function used to refetch the collection when a
// new order appears on the stream.
func WithFetcher(f Fetcher) Option { return func(r *Reconciler) { r.fetch = f } }

// WithPublisher adds a destination for OrderUpdated notifications. Publishers
// are called in the order they were added.
func WithPublisher(p eventbus.Publisher[events.OrderUpdated]) Option {
	return func(r *Reconciler) { r.pubs = append(r.pubs, p) }
}

// WithMetrics sets the sink receiving merge records.
func WithMetrics(s metrics.MetricsSink) Option { return func(r *Reconciler) { r.metrics = s } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(r *Reconciler) { r.log = l } }

// Reconciler owns the local order collection. Writes are serialized by the
// mutex; reads may come from anywhere.
type Reconciler struct {
	mu     sync.RWMutex
	orders map[string]model.Order

	fetch   Fetcher
	pubs    []eventbus.Publisher[events.OrderUpdated]
	metrics metrics.MetricsSink
	log     logger.Logger
	now     func() time.Time
}

// New creates an empty Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		orders:  make(map[string]model.Order),
		metrics: metrics.NopSink{},
		log:     logger.NopLogger{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// HandleEvent applies one activity event. A new_order event for an unknown id
// triggers a full refetch; any other event for an unknown id is dropped.
func (r *Reconciler) HandleEvent(ctx context.Context, ev model.ActivityEvent) error {
	r.mu.RLock()
	_, known := r.orders[ev.OrderID]
	r.mu.RUnlock()

	if !known {
		if ev.Type == model.EventNewOrder {
			return r.Refresh(ctx)
		}
		r.log.Debugw("event for unknown order dropped", map[string]any{
			"order_id": ev.OrderID, "event_type": ev.Type,
		})
		return nil
	}

	p, ok := PatchFromEvent(ev)
	if !ok {
		r.log.Debugf("event %s for order %s carries no status change", ev.Type, ev.OrderID)
		return nil
	}

	r.mu.Lock()
	cur, known := r.orders[ev.OrderID]
	if !known {
		r.mu.Unlock()
		return nil
	}
	next, out := apply(p, cur)
	r.orders[ev.OrderID] = next
	r.mu.Unlock()

	if out.StatusRejected {
		r.log.Warnf("order %s: transition %s -> %s rejected", ev.OrderID, cur.Status, *p.Status)
	}
	if out.Stale {
		r.log.Debugf("order %s: stale %s event ignored", ev.OrderID, ev.Type)
	}
	if out.Changed {
		r.notify(next, "event", ev.Type, out, false)
	}
	return nil
}

// Refresh fetches the full collection and merges it.
// On error the local collection is left untouched.
func (r *Reconciler) Refresh(ctx context.Context) error {
	if r.fetch == nil {
		return fmt.Errorf("%w: no fetcher configured", ErrRefetch)
	}
	orders, err := r.fetch(ctx)
	if err != nil {
		r.log.Errorf("order refetch failed: %v", err)
		return fmt.Errorf("%w: %w", ErrRefetch, err)
	}
	r.merge(orders, "snapshot", true)
	return nil
}

// HandleSnapshot merges a full snapshot. New ids are inserted and orders
// missing from the snapshot are kept.
func (r *Reconciler) HandleSnapshot(_ context.Context, orders []model.Order) error {
	r.merge(orders, "snapshot", false)
	return nil
}

func (r *Reconciler) merge(orders []model.Order, source string, refetch bool) {
	type change struct {
		order model.Order
		out   Outcome
	}
	var changes []change

	r.mu.Lock()
	for _, o := range orders {
		if o.ID == "" {
			continue
		}
		cur, ok := r.orders[o.ID]
		if !ok {
			inserted := o.Clone()
			if inserted.Status == "" {
				inserted.Status = model.StatusPending
			}
			r.orders[o.ID] = inserted
			changes = append(changes, change{order: inserted, out: Outcome{Changed: true}})
			continue
		}
		next, out := apply(PatchFromOrder(o), cur)
		r.orders[o.ID] = next
		if out.Changed || out.LegsGuarded {
			changes = append(changes, change{order: next, out: out})
		}
	}
	r.mu.Unlock()

	for _, c := range changes {
		if c.out.LegsGuarded {
			r.log.Warnf("order %s: empty relay legs in %s ignored", c.order.ID, source)
		}
		if c.out.Changed {
			r.notify(c.order, source, "", c.out, refetch)
		}
	}
}

// AttachLegs sets the relay legs of a known order. UpdatedAt is left alone
// since it tracks backend freshness.
func (r *Reconciler) AttachLegs(id string, legs []model.Leg) (model.Order, error) {
	r.mu.Lock()
	cur, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return model.Order{}, fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	next, out := apply(Patch{Legs: legs, SetLegs: true}, cur)
	r.orders[id] = next
	r.mu.Unlock()

	if out.Changed {
		r.notify(next, "legs", "", out, false)
	}
	return next.Clone(), nil
}

// Get returns a copy of the order with the given id.
func (r *Reconciler) Get(id string) (model.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return model.Order{}, false
	}
	return o.Clone(), true
}

// List returns copies of all orders sorted by id.
func (r *Reconciler) List() []model.Order {
	r.mu.RLock()
	out := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of orders held.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

func (r *Reconciler) notify(o model.Order, source, eventType string, out Outcome, refetch bool) {
	if rec, ok := r.metrics.(metrics.MergeRecorder); ok {
		if err := rec.RecordMerge(metrics.MergeEvent{
			OrderID:     o.ID,
			Source:      source,
			LegsGuarded: out.LegsGuarded,
			Refetch:     refetch,
			Time:        r.now(),
		}); err != nil {
			r.log.Errorf("record merge: %v", err)
		}
	}
	for _, p := range r.pubs {
		p.Publish(events.OrderUpdated{
			Order:       o.Clone(),
			Source:      source,
			EventType:   eventType,
			LegsGuarded: out.LegsGuarded,
		})
	}
}
