package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/lastmile/core/model"
)

func TestCredentialClientToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"access_token":"abc","expires_in":60}`))
	}))
	defer srv.Close()

	tok, err := NewCredentialClient(Config{CredentialsURL: srv.URL, APIKey: "key"}).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func TestCredentialClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewCredentialClient(Config{CredentialsURL: srv.URL}).Token(context.Background())
	require.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "denied")

	_, err = NewCredentialClient(Config{CredentialsURL: srv.URL + "/empty"}).Token(context.Background())
	assert.Error(t, err)
}

func TestSnapshotClientFetch(t *testing.T) {
	bodies := map[string]string{
		"/plain":   `[{"id":"o1","status":"assigned","rider_id":"r1","price":{"total":2750}}]`,
		"/wrapped": `{"orders":[{"id":"o1","status":"assigned","relay_legs":[{"sequence_number":1,"start_node":"A","end_node":"B"}]}]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bodies[r.URL.Path]))
	}))
	defer srv.Close()

	orders, err := NewSnapshotClient(Config{SnapshotURL: srv.URL + "/plain"}).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, model.StatusAssigned, orders[0].Status)
	assert.Equal(t, int64(2750), orders[0].Price.Total)

	orders, err = NewSnapshotClient(Config{SnapshotURL: srv.URL + "/wrapped"}).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, orders[0].RelayLegs, 1)
	assert.Equal(t, 1, orders[0].RelayLegs[0].Sequence)
}

func TestSnapshotClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewSnapshotClient(Config{SnapshotURL: srv.URL}).Fetch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
