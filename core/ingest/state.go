package ingest

// State is the connection state of the ingest.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
	StatePolling
	StateSuspended
)

var stateNames = [...]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateFailed:       "failed",
	StatePolling:      "polling",
	StateSuspended:    "suspended",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
