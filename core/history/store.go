// Package history keeps an audit trail of the changes the reconciler applies
// to orders.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/lastmile/core/events"
	"github.com/kilianp07/lastmile/core/model"
)

// Record captures one applied order change.
type Record struct {
	Time        time.Time         `json:"time"`
	OrderID     string            `json:"order_id"`
	Source      string            `json:"source"`
	EventType   string            `json:"event_type,omitempty"`
	Status      model.OrderStatus `json:"status"`
	LegsGuarded bool              `json:"legs_guarded,omitempty"`
	Order       model.Order       `json:"order"`
}

// FromUpdate converts a bus update into a record stamped with at.
func FromUpdate(ev events.OrderUpdated, at time.Time) Record {
	return Record{
		Time:        at,
		OrderID:     ev.Order.ID,
		Source:      ev.Source,
		EventType:   ev.EventType,
		Status:      ev.Order.Status,
		LegsGuarded: ev.LegsGuarded,
		Order:       ev.Order.Clone(),
	}
}

// Query defines filters for retrieving records. Zero values match all.
type Query struct {
	Start   time.Time
	End     time.Time
	OrderID string
	Source  string
	// Limit keeps the newest Limit records when positive.
	Limit int
}

// Match reports whether r passes the time, order and source filters.
func (q Query) Match(r Record) bool {
	switch {
	case !q.Start.IsZero() && r.Time.Before(q.Start):
		return false
	case !q.End.IsZero() && r.Time.After(q.End):
		return false
	case q.OrderID != "" && r.OrderID != q.OrderID:
		return false
	case q.Source != "" && r.Source != q.Source:
		return false
	}
	return true
}

// Apply sorts records by time and enforces Limit.
func (q Query) Apply(recs []Record) []Record {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Time.Before(recs[j].Time) })
	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// MemoryStore keeps the most recent records in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	recs  []Record
	limit int
}

// NewMemoryStore returns a store holding at most limit records, 0 meaning
// unbounded.
func NewMemoryStore(limit int) *MemoryStore { return &MemoryStore{limit: limit} }

func (m *MemoryStore) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	if m.limit > 0 && len(m.recs) > m.limit {
		m.recs = append([]Record(nil), m.recs[len(m.recs)-m.limit:]...)
	}
	return nil
}

func (m *MemoryStore) Query(_ context.Context, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.recs {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	return q.Apply(out), nil
}

func (m *MemoryStore) Close() error { return nil }
