package ingest

import (
	"context"

	"github.com/kilianp07/lastmile/core/model"
)

// LinkStatus reports the health of an established transport.
type LinkStatus int

const (
	LinkUp LinkStatus = iota
	LinkDown
)

func (s LinkStatus) String() string {
	if s == LinkDown {
		return "down"
	}
	return "up"
}

// Channel opens live subscriptions to the activity stream.
type Channel interface {
	Name() string
	// Subscribe connects using a short-lived token. ctx bounds the connection
	// attempt only; the returned subscription lives until Close.
	Subscribe(ctx context.Context, token string) (Subscription, error)
}

// Subscription is an established live feed. Events is closed when the
// transport gives up; Status may be nil when the transport has no notion of
// temporary link loss.
type Subscription interface {
	Events() <-chan model.ActivityEvent
	Status() <-chan LinkStatus
	Close() error
}

// CredentialFunc exchanges the caller's session for a channel token.
type CredentialFunc func(ctx context.Context) (string, error)

// SnapshotFunc fetches the full order collection.
type SnapshotFunc func(ctx context.Context) ([]model.Order, error)

// Handler consumes what the ingest produces.
type Handler interface {
	HandleEvent(ctx context.Context, ev model.ActivityEvent) error
	HandleSnapshot(ctx context.Context, orders []model.Order) error
}
