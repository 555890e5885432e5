// Package ingest keeps a live subscription to the order activity stream and
// falls back to periodic snapshot polling when the subscription cannot be
// established or is lost.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/lastmile/core/events"
	"github.com/kilianp07/lastmile/core/logger"
	"github.com/kilianp07/lastmile/core/metrics"
	"github.com/kilianp07/lastmile/core/model"
	"github.com/kilianp07/lastmile/core/monitoring"
	"github.com/kilianp07/lastmile/internal/eventbus"
)

// Option configures an Ingest.
type Option func(*Ingest)

// WithPublisher sets where state transitions are published.
func WithPublisher(p eventbus.Publisher[events.SyncStateChanged]) Option {
	return func(i *Ingest) { i.pub = p }
}

// WithMetrics sets the metrics sink.
func WithMetrics(s metrics.MetricsSink) Option { return func(i *Ingest) { i.metrics = s } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(i *Ingest) { i.log = l } }

// Ingest drives either the live subscription or the polling loop, never
// both, from a single goroutine.
type Ingest struct {
	cfg      Config
	channel  Channel
	creds    CredentialFunc
	snapshot SnapshotFunc
	handler  Handler
	dedup    *Dedup

	pub     eventbus.Publisher[events.SyncStateChanged]
	metrics metrics.MetricsSink
	log     logger.Logger

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// New builds an Ingest. channel may be nil, in which case the ingest polls
// from the start. snapshot and handler are required.
func New(cfg Config, channel Channel, creds CredentialFunc, snapshot SnapshotFunc, h Handler, opts ...Option) (*Ingest, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ingest config: %w", err)
	}
	if snapshot == nil {
		return nil, errors.New("ingest: snapshot function is required")
	}
	if h == nil {
		return nil, errors.New("ingest: handler is required")
	}
	i := &Ingest{
		cfg:      cfg,
		channel:  channel,
		creds:    creds,
		snapshot: snapshot,
		handler:  h,
		dedup:    NewDedup(cfg.DedupSize),
		metrics:  metrics.NopSink{},
		log:      logger.NopLogger{},
		state:    StateDisconnected,
	}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

// Start launches the ingest goroutine and returns immediately. Calling it
// more than once has no effect.
func (i *Ingest) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stopped {
		return ErrStopped
	}
	if i.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.done = make(chan struct{})
	go i.run(runCtx, i.done)
	return nil
}

// Stop cancels the ingest and waits for its goroutine to exit. It is safe to
// call multiple times and without Start.
func (i *Ingest) Stop() {
	i.mu.Lock()
	i.stopped = true
	cancel, done := i.cancel, i.done
	i.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the current connection state.
func (i *Ingest) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Ingest) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer monitoring.Recover()
	defer i.setState(StateDisconnected, "teardown")

	reason := "live channel disabled"
	if i.channel != nil {
		sub, err := i.connect(ctx)
		if ctx.Err() != nil {
			if sub != nil {
				_ = sub.Close()
			}
			return
		}
		if err != nil {
			i.log.Warnf("live channel unavailable, falling back to polling: %v", err)
			reason = err.Error()
		} else {
			i.setState(StateConnected, "subscribed")
			err = i.consume(ctx, sub)
			if cerr := sub.Close(); cerr != nil {
				i.log.Debugf("close subscription: %v", cerr)
			}
			if ctx.Err() != nil {
				return
			}
			i.log.Warnf("live channel lost, falling back to polling: %v", err)
			reason = err.Error()
		}
	}
	i.setState(StateFailed, reason)
	i.poll(ctx, reason)
}

func (i *Ingest) connect(ctx context.Context) (Subscription, error) {
	i.setState(StateConnecting, i.channel.Name())
	cctx, cancel := context.WithTimeout(ctx, i.cfg.ConnectTimeout)
	defer cancel()

	var token string
	if i.creds != nil {
		t, err := i.creds(cctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrChannelAuth, err)
		}
		token = t
	}
	sub, err := i.channel.Subscribe(cctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrChannelConnect, i.channel.Name(), err)
	}
	return sub, nil
}

func (i *Ingest) consume(ctx context.Context, sub Subscription) error {
	evs, status := sub.Events(), sub.Status()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-evs:
			if !ok {
				return errStreamClosed
			}
			i.deliver(ctx, ev)
		case st, ok := <-status:
			if !ok {
				status = nil
				continue
			}
			if st == LinkDown {
				i.setState(StateSuspended, "link down")
			} else {
				i.setState(StateConnected, "link up")
			}
		}
	}
}

func (i *Ingest) deliver(ctx context.Context, ev model.ActivityEvent) {
	duplicate := ev.ID != "" && !i.dedup.Add(ev.ID)
	if rec, ok := i.metrics.(metrics.IngestRecorder); ok {
		if err := rec.RecordIngestEvent(metrics.IngestEvent{
			EventType: ev.Type,
			Duplicate: duplicate,
			Source:    i.channel.Name(),
			Time:      time.Now(),
		}); err != nil {
			i.log.Warnf("ingest event metrics error: %v", err)
		}
	}
	if duplicate {
		return
	}
	if err := i.handler.HandleEvent(ctx, ev); err != nil {
		i.log.Errorf("handle event %s (%s): %v", ev.ID, ev.Type, err)
	}
}

func (i *Ingest) poll(ctx context.Context, reason string) {
	i.setState(StatePolling, reason)
	i.fetch(ctx)

	ticker := time.NewTicker(i.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.fetch(ctx)
		}
	}
}

func (i *Ingest) fetch(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, i.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	orders, err := i.snapshot(fctx)
	if ctx.Err() != nil {
		return
	}
	ev := metrics.PollEvent{OK: err == nil, Orders: len(orders), Latency: time.Since(start), Time: time.Now()}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSnapshotFetch, err)
		ev.Error = err.Error()
		i.log.Errorf("poll: %v", err)
		monitoring.CaptureException(err, map[string]string{"component": "ingest", "op": "poll"})
	}
	if rec, ok := i.metrics.(metrics.PollRecorder); ok {
		if err := rec.RecordPoll(ev); err != nil {
			i.log.Warnf("poll metrics error: %v", err)
		}
	}
	if err != nil {
		return
	}
	if err := i.handler.HandleSnapshot(ctx, orders); err != nil {
		i.log.Errorf("handle snapshot: %v", err)
		monitoring.CaptureException(err, map[string]string{"component": "ingest", "op": "snapshot"})
	}
}

func (i *Ingest) setState(to State, reason string) {
	i.mu.Lock()
	from := i.state
	if from == to {
		i.mu.Unlock()
		return
	}
	i.state = to
	i.mu.Unlock()

	now := time.Now()
	i.log.Infow("sync state changed", map[string]any{
		"from": from.String(), "to": to.String(), "reason": reason,
	})
	if rec, ok := i.metrics.(metrics.SyncStateRecorder); ok {
		if err := rec.RecordSyncState(metrics.SyncStateEvent{
			From: from.String(), To: to.String(), Reason: reason, Component: "ingest", Time: now,
		}); err != nil {
			i.log.Errorf("record sync state: %v", err)
		}
	}
	if i.pub != nil {
		i.pub.Publish(events.SyncStateChanged{From: from.String(), To: to.String(), Reason: reason, Time: now})
	}
}
