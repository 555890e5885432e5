package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corehistory "github.com/kilianp07/lastmile/core/history"
	"github.com/kilianp07/lastmile/core/model"
)

var base = time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

func sample() []corehistory.Record {
	return []corehistory.Record{
		{Time: base, OrderID: "o1", Source: "snapshot", Status: model.StatusPending, Order: model.Order{ID: "o1", Status: model.StatusPending}},
		{Time: base.Add(time.Minute), OrderID: "o2", Source: "snapshot", Status: model.StatusPending},
		{Time: base.Add(2 * time.Minute), OrderID: "o1", Source: "event", EventType: "assigned", Status: model.StatusAssigned},
	}
}

func exerciseStore(t *testing.T, s corehistory.Store) {
	t.Helper()
	ctx := context.Background()
	for _, r := range sample() {
		require.NoError(t, s.Append(ctx, r))
	}

	all, err := s.Query(ctx, corehistory.Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Time.Equal(base))

	o1, err := s.Query(ctx, corehistory.Query{OrderID: "o1"})
	require.NoError(t, err)
	require.Len(t, o1, 2)
	assert.Equal(t, model.StatusAssigned, o1[1].Status)
	assert.Equal(t, "o1", o1[0].Order.ID)

	events, err := s.Query(ctx, corehistory.Query{Source: "event"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "assigned", events[0].EventType)

	window, err := s.Query(ctx, corehistory.Query{Start: base.Add(30 * time.Second), End: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "o2", window[0].OrderID)

	last, err := s.Query(ctx, corehistory.Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "event", last[0].Source)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), sample()[0]))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Query(context.Background(), corehistory.Query{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "history.jsonl"), 1, 1, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRotatingJSONLSkipsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not json\n"), 0o644))
	s, err := NewRotatingJSONLStore(path, 1, 1, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, s.Append(context.Background(), sample()[0]))

	got, err := s.Query(context.Background(), corehistory.Query{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNewFromConfig(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{name: "none", cfg: Config{Type: TypeNone}, wantNil: true},
		{name: "memory", cfg: Config{Type: TypeMemory, MaxRecords: 10}},
		{name: "sqlite", cfg: Config{Type: TypeSQLite, Path: filepath.Join(dir, "h.db")}},
		{name: "jsonl", cfg: Config{Type: TypeJSONL, Path: filepath.Join(dir, "h.jsonl"), MaxSizeMB: 1}},
		{name: "unknown", cfg: Config{Type: "redis"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.wantNil {
				assert.Nil(t, s)
				return
			}
			require.NotNil(t, s)
			assert.NoError(t, s.Close())
		})
	}
}

func TestConfigValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, TypeMemory, c.Type)
	assert.NoError(t, c.Validate())

	assert.Error(t, Config{Type: TypeSQLite}.Validate())
	assert.Error(t, Config{Type: "redis"}.Validate())
}
