package history

import (
	"context"
	"time"

	"github.com/kilianp07/lastmile/core/events"
	"github.com/kilianp07/lastmile/core/logger"
)

// Recorder appends order updates to a Store. It is a synchronous publisher,
// so every update handed to it reaches the store.
type Recorder struct {
	store Store
	log   logger.Logger
	now   func() time.Time
}

func NewRecorder(store Store, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Recorder{store: store, log: log, now: time.Now}
}

// Publish appends ev. Append errors are logged and the update is dropped.
func (r *Recorder) Publish(ev events.OrderUpdated) {
	if err := r.store.Append(context.Background(), FromUpdate(ev, r.now())); err != nil {
		r.log.Errorf("history append %s: %v", ev.Order.ID, err)
	}
}
