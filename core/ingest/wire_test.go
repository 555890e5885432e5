package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"id":"e1","order_id":"o1","event_type":"Assigned","metadata":{"rider_id":"r1"},"timestamp":"2024-05-01T09:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "e1", ev.ID)
	assert.Equal(t, "assigned", ev.Type)
	rider, ok := ev.MetaString("rider_id")
	assert.True(t, ok)
	assert.Equal(t, "r1", rider)
	assert.True(t, ev.Timestamp.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)))
}

func TestDecodeEventTimestamps(t *testing.T) {
	want := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"seconds": `{"order_id":"o","event_type":"x","timestamp":1714554000}`,
		"millis":  `{"order_id":"o","event_type":"x","timestamp":1714554000000}`,
	}
	for name, raw := range cases {
		ev, err := DecodeEvent([]byte(raw))
		require.NoError(t, err, name)
		assert.True(t, ev.Timestamp.Equal(want), name)
	}

	ev, err := DecodeEvent([]byte(`{"order_id":"o","event_type":"x"}`))
	require.NoError(t, err)
	assert.True(t, ev.Timestamp.IsZero())
}

func TestDecodeEventErrors(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"id":"e1","event_type":"assigned"}`,
		`{"id":"e1","order_id":"o1"}`,
		`{"order_id":"o","event_type":"x","timestamp":"yesterday"}`,
		`{"order_id":"o","event_type":"x","timestamp":true}`,
	} {
		_, err := DecodeEvent([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedEvent, raw)
	}
}
