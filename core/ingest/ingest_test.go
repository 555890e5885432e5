package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/lastmile/core/events"
	"github.com/kilianp07/lastmile/core/logger"
	"github.com/kilianp07/lastmile/core/metrics"
	"github.com/kilianp07/lastmile/core/model"
	"github.com/kilianp07/lastmile/internal/eventbus"
)

type fakeSub struct {
	evs    chan model.ActivityEvent
	status chan LinkStatus
	closed atomic.Bool
}

func newFakeSub() *fakeSub {
	return &fakeSub{evs: make(chan model.ActivityEvent, 16), status: make(chan LinkStatus, 4)}
}

func (s *fakeSub) Events() <-chan model.ActivityEvent { return s.evs }
func (s *fakeSub) Status() <-chan LinkStatus          { return s.status }
func (s *fakeSub) Close() error                       { s.closed.Store(true); return nil }

type fakeChannel struct {
	sub   *fakeSub
	err   error
	block bool
	token atomic.Value
}

func (c *fakeChannel) Name() string { return "fake" }

func (c *fakeChannel) Subscribe(ctx context.Context, token string) (Subscription, error) {
	c.token.Store(token)
	if c.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.sub, nil
}

type recordingHandler struct {
	mu     sync.Mutex
	events []model.ActivityEvent
	snaps  int
}

func (h *recordingHandler) HandleEvent(_ context.Context, ev model.ActivityEvent) error {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) HandleSnapshot(context.Context, []model.Order) error {
	h.mu.Lock()
	h.snaps++
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) eventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func (h *recordingHandler) snapCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snaps
}

type countingSnapshot struct {
	calls atomic.Int32
	fail  atomic.Int32
}

func (c *countingSnapshot) fetch(context.Context) ([]model.Order, error) {
	c.calls.Add(1)
	if c.fail.Load() > 0 {
		c.fail.Add(-1)
		return nil, errors.New("backend down")
	}
	return []model.Order{{ID: "o1"}}, nil
}

type ingestSink struct {
	metrics.NopSink
	dups atomic.Int32
	bad  atomic.Int32
}

func (s *ingestSink) RecordIngestEvent(ev metrics.IngestEvent) error {
	if ev.Duplicate {
		s.dups.Add(1)
	}
	return nil
}

func (s *ingestSink) RecordPoll(ev metrics.PollEvent) error {
	if !ev.OK {
		s.bad.Add(1)
	}
	return nil
}

func token(context.Context) (string, error) { return "tok", nil }

type failingSink struct{ metrics.NopSink }

func (failingSink) RecordIngestEvent(metrics.IngestEvent) error { return errors.New("sink down") }
func (failingSink) RecordPoll(metrics.PollEvent) error          { return errors.New("sink down") }

type warnLogger struct {
	logger.NopLogger
	mu    sync.Mutex
	warns []string
}

func (l *warnLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *warnLogger) has(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.warns {
		if strings.Contains(w, sub) {
			return true
		}
	}
	return false
}

func TestDedupEvictsOldestFirst(t *testing.T) {
	d := NewDedup(3)
	assert.True(t, d.Add("a"))
	assert.True(t, d.Add("b"))
	assert.False(t, d.Add("a"))
	assert.True(t, d.Add("c"))
	assert.True(t, d.Add("d"))
	assert.Equal(t, 3, d.Len())
	assert.True(t, d.Add("a"), "a should have been evicted")
	assert.False(t, d.Add("d"))
}

func TestDedupDefaultSize(t *testing.T) {
	d := NewDedup(0)
	for i := 0; i < 150; i++ {
		d.Add(time.Duration(i).String())
	}
	assert.Equal(t, DefaultDedupSize, d.Len())
}

func TestIngestDeliversEachEventOnce(t *testing.T) {
	sub := newFakeSub()
	ch := &fakeChannel{sub: sub}
	h := &recordingHandler{}
	snap := &countingSnapshot{}
	sink := &ingestSink{}
	in, err := New(Config{}, ch, token, snap.fetch, h, WithMetrics(sink))
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	sub.evs <- model.ActivityEvent{ID: "e1", OrderID: "o1", Type: "assigned"}
	sub.evs <- model.ActivityEvent{ID: "e1", OrderID: "o1", Type: "assigned"}
	sub.evs <- model.ActivityEvent{ID: "e2", OrderID: "o1", Type: "picked_up"}
	sub.evs <- model.ActivityEvent{OrderID: "o1", Type: "note"}
	sub.evs <- model.ActivityEvent{OrderID: "o1", Type: "note"}

	require.Eventually(t, func() bool { return h.eventCount() == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), sink.dups.Load())
	assert.Equal(t, StateConnected, in.State())
	assert.Equal(t, "tok", ch.token.Load())
	assert.Equal(t, int32(0), snap.calls.Load(), "no polling while live")
}

func TestIngestAuthFailureStartsPolling(t *testing.T) {
	bus := eventbus.NewTyped[events.SyncStateChanged]()
	states := bus.Subscribe()
	h := &recordingHandler{}
	snap := &countingSnapshot{}
	badCreds := func(context.Context) (string, error) { return "", errors.New("401") }

	in, err := New(Config{PollInterval: time.Hour}, &fakeChannel{sub: newFakeSub()}, badCreds, snap.fetch, h, WithPublisher(bus))
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	// First fetch happens on entering polling, well before one interval.
	require.Eventually(t, func() bool { return h.snapCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StatePolling, in.State())

	var seq []string
	var failReason string
	for len(seq) < 3 {
		ev := <-states
		seq = append(seq, ev.To)
		if ev.To == "failed" {
			failReason = ev.Reason
		}
	}
	assert.Equal(t, []string{"connecting", "failed", "polling"}, seq)
	assert.Contains(t, failReason, ErrChannelAuth.Error())
}

func TestIngestConnectTimeoutStartsPolling(t *testing.T) {
	h := &recordingHandler{}
	snap := &countingSnapshot{}
	in, err := New(Config{ConnectTimeout: 20 * time.Millisecond, PollInterval: time.Hour}, &fakeChannel{block: true}, nil, snap.fetch, h)
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	require.Eventually(t, func() bool { return in.State() == StatePolling }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.snapCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestIngestPollingContinuesUntilStop(t *testing.T) {
	h := &recordingHandler{}
	snap := &countingSnapshot{}
	in, err := New(Config{PollInterval: 10 * time.Millisecond}, nil, nil, snap.fetch, h)
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))

	require.Eventually(t, func() bool { return snap.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	in.Stop()
	after := snap.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, snap.calls.Load(), "no fetch after teardown")
	assert.Equal(t, StateDisconnected, in.State())
}

func TestIngestFetchErrorSkipsTick(t *testing.T) {
	h := &recordingHandler{}
	snap := &countingSnapshot{}
	snap.fail.Store(2)
	sink := &ingestSink{}
	in, err := New(Config{PollInterval: 10 * time.Millisecond}, nil, nil, snap.fetch, h, WithMetrics(sink))
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	require.Eventually(t, func() bool { return h.snapCount() >= 1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, snap.calls.Load(), int32(3))
	assert.Equal(t, int32(2), sink.bad.Load())
}

func TestIngestStreamClosedFallsBack(t *testing.T) {
	sub := newFakeSub()
	h := &recordingHandler{}
	snap := &countingSnapshot{}
	in, err := New(Config{PollInterval: time.Hour}, &fakeChannel{sub: sub}, token, snap.fetch, h)
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	require.Eventually(t, func() bool { return in.State() == StateConnected }, time.Second, 5*time.Millisecond)
	close(sub.evs)
	require.Eventually(t, func() bool { return in.State() == StatePolling }, time.Second, 5*time.Millisecond)
	assert.True(t, sub.closed.Load(), "subscription closed before polling")
	require.Eventually(t, func() bool { return h.snapCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestIngestLinkDownSuspends(t *testing.T) {
	sub := newFakeSub()
	in, err := New(Config{}, &fakeChannel{sub: sub}, token, (&countingSnapshot{}).fetch, &recordingHandler{})
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	require.Eventually(t, func() bool { return in.State() == StateConnected }, time.Second, 5*time.Millisecond)
	sub.status <- LinkDown
	require.Eventually(t, func() bool { return in.State() == StateSuspended }, time.Second, 5*time.Millisecond)
	sub.status <- LinkUp
	require.Eventually(t, func() bool { return in.State() == StateConnected }, time.Second, 5*time.Millisecond)
}

func TestIngestStopIsIdempotent(t *testing.T) {
	in, err := New(Config{}, nil, nil, (&countingSnapshot{}).fetch, &recordingHandler{})
	require.NoError(t, err)
	in.Stop()
	in.Stop()
	assert.ErrorIs(t, in.Start(context.Background()), ErrStopped)

	sub := newFakeSub()
	in, err = New(Config{}, &fakeChannel{sub: sub}, token, (&countingSnapshot{}).fetch, &recordingHandler{})
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	require.NoError(t, in.Start(context.Background()))
	in.Stop()
	in.Stop()
	assert.Equal(t, StateDisconnected, in.State())
	assert.True(t, sub.closed.Load())
}

func TestIngestParentContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in, err := New(Config{PollInterval: 10 * time.Millisecond}, nil, nil, (&countingSnapshot{}).fetch, &recordingHandler{})
	require.NoError(t, err)
	require.NoError(t, in.Start(ctx))
	cancel()
	require.Eventually(t, func() bool { return in.State() == StateDisconnected }, time.Second, 5*time.Millisecond)
	in.Stop()
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil, &recordingHandler{})
	assert.Error(t, err)
	_, err = New(Config{}, nil, nil, (&countingSnapshot{}).fetch, nil)
	assert.Error(t, err)
	_, err = New(Config{PollInterval: -time.Second}, nil, nil, (&countingSnapshot{}).fetch, &recordingHandler{})
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "suspended", StateSuspended.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestIngestLogsMetricsErrors(t *testing.T) {
	sub := newFakeSub()
	log := &warnLogger{}
	in, err := New(Config{PollInterval: time.Hour}, &fakeChannel{sub: sub}, token, (&countingSnapshot{}).fetch, &recordingHandler{},
		WithMetrics(failingSink{}), WithLogger(log))
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	require.Eventually(t, func() bool { return in.State() == StateConnected }, time.Second, 5*time.Millisecond)
	sub.evs <- model.ActivityEvent{ID: "e1", OrderID: "o1", Type: model.EventAssigned}
	require.Eventually(t, func() bool { return log.has("ingest event metrics error: sink down") }, time.Second, 5*time.Millisecond)

	close(sub.evs)
	require.Eventually(t, func() bool { return log.has("poll metrics error: sink down") }, time.Second, 5*time.Millisecond)
}

func TestIngestWithoutChannelPassesThroughFailed(t *testing.T) {
	bus := eventbus.NewTyped[events.SyncStateChanged]()
	states := bus.Subscribe()
	in, err := New(Config{PollInterval: time.Hour}, nil, nil, (&countingSnapshot{}).fetch, &recordingHandler{}, WithPublisher(bus))
	require.NoError(t, err)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	first, second := <-states, <-states
	assert.Equal(t, "failed", first.To)
	assert.Equal(t, "live channel disabled", first.Reason)
	assert.Equal(t, "polling", second.To)
}
