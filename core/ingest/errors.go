package ingest

import "errors"

var (
	// ErrChannelAuth is returned when the short-lived channel credential
	// cannot be obtained. The ingest falls back to polling.
	ErrChannelAuth = errors.New("channel credential exchange failed")
	// ErrChannelConnect is returned when the live subscription cannot be
	// established in time. The ingest falls back to polling.
	ErrChannelConnect = errors.New("channel subscribe failed")
	// ErrSnapshotFetch wraps a failed polling fetch. The tick is skipped.
	ErrSnapshotFetch = errors.New("snapshot fetch failed")
	// ErrMalformedEvent is returned when a wire message cannot be decoded.
	ErrMalformedEvent = errors.New("malformed activity event")
	// ErrStopped is returned by Start after Stop has been called.
	ErrStopped = errors.New("ingest stopped")

	errStreamClosed = errors.New("event stream closed")
)
