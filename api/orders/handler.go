// Package orders exposes the reconciled order view over HTTP.
package orders

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kilianp07/lastmile/core/events"
	"github.com/kilianp07/lastmile/core/ingest"
	"github.com/kilianp07/lastmile/core/model"
	"github.com/kilianp07/lastmile/internal/httpjson"
)

// Store is the read side of the reconciler.
type Store interface {
	Get(id string) (model.Order, bool)
	List() []model.Order
}

// StateReader reports the current ingest state.
type StateReader interface {
	State() ingest.State
}

// Updates is the subscription side of the order update bus.
type Updates interface {
	Subscribe() <-chan events.OrderUpdated
	Unsubscribe(<-chan events.OrderUpdated)
}

// Handler serves the /api/orders endpoints.
type Handler struct {
	store   Store
	state   StateReader
	updates Updates
}

// New returns a Handler. state and updates may be nil.
func New(store Store, state StateReader, updates Updates) *Handler {
	return &Handler{store: store, state: state, updates: updates}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/orders", h.list)
	mux.HandleFunc("GET /api/orders/{id}", h.get)
	if h.updates != nil {
		mux.HandleFunc("GET /api/orders/events", h.stream)
	}
}

type listResponse struct {
	SyncState string        `json:"sync_state"`
	Count     int           `json:"count"`
	Orders    []model.Order `json:"orders"`
}

func (h *Handler) syncState() string {
	if h.state == nil {
		return ingest.StateDisconnected.String()
	}
	return h.state.State().String()
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orders := h.store.List()
	if s := r.URL.Query().Get("status"); s != "" {
		want, err := model.ParseOrderStatus(s)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, httpjson.ErrorBody{Error: "bad_request", Field: "status", Message: err.Error()})
			return
		}
		filtered := orders[:0]
		for _, o := range orders {
			if o.Status == want {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	if orders == nil {
		orders = []model.Order{}
	}
	httpjson.Write(w, http.StatusOK, listResponse{SyncState: h.syncState(), Count: len(orders), Orders: orders})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	o, ok := h.store.Get(id)
	if !ok {
		httpjson.Error(w, http.StatusNotFound, httpjson.ErrorBody{Error: "unknown_order", Message: fmt.Sprintf("order %q not found", id)})
		return
	}
	httpjson.Write(w, http.StatusOK, o)
}

// stream writes every order update as a server-sent event until the client
// goes away.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch := h.updates.Subscribe()
	defer h.updates.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: order\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
