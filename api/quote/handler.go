// Package quote exposes trip and relay pricing over HTTP.
package quote

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/lastmile/core/fare"
	"github.com/kilianp07/lastmile/core/logger"
	"github.com/kilianp07/lastmile/core/model"
	"github.com/kilianp07/lastmile/core/reconcile"
	"github.com/kilianp07/lastmile/core/relay"
	"github.com/kilianp07/lastmile/internal/httpjson"
)

// Quoter prices a single trip.
type Quoter interface {
	Compute(req fare.TripRequest) (fare.Breakdown, error)
}

// Planner prices a relay hop list.
type Planner interface {
	Price(req relay.Request) (relay.Plan, error)
}

// LegAttacher stores priced legs on a known order.
type LegAttacher interface {
	AttachLegs(id string, legs []model.Leg) (model.Order, error)
}

// Handler serves POST /api/fare/quote and POST /api/fare/relay.
type Handler struct {
	quoter  Quoter
	planner Planner
	orders  LegAttacher
	log     logger.Logger
	now     func() time.Time
}

// New returns a Handler. orders may be nil, in which case relay plans are
// only returned and never attached.
func New(q Quoter, p Planner, orders LegAttacher, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Handler{quoter: q, planner: p, orders: orders, log: log, now: time.Now}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/fare/quote", h.quote)
	mux.HandleFunc("POST /api/fare/relay", h.relay)
}

type quoteResponse struct {
	RequestID string            `json:"request_id"`
	Breakdown fare.Breakdown    `json:"breakdown"`
	Price     model.PriceFields `json:"price"`
}

type relayRequest struct {
	relay.Request
	OrderID string `json:"order_id,omitempty"`
}

type relayResponse struct {
	RequestID string       `json:"request_id"`
	Plan      relay.Plan   `json:"plan"`
	Order     *model.Order `json:"order,omitempty"`
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var req fare.TripRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, httpjson.ErrorBody{Error: "bad_request", Message: err.Error()})
		return
	}
	if req.Now.IsZero() {
		req.Now = h.now()
	}
	id := uuid.NewString()
	b, err := h.quoter.Compute(req)
	if err != nil {
		h.fail(w, id, err)
		return
	}
	h.log.Infow("fare quoted", map[string]any{
		"request_id":    id,
		"vehicle_class": req.VehicleClass.String(),
		"total":         b.Total,
	})
	httpjson.Write(w, http.StatusOK, quoteResponse{RequestID: id, Breakdown: b, Price: b.PriceFields(req.CODAmount)})
}

func (h *Handler) relay(w http.ResponseWriter, r *http.Request) {
	var req relayRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, httpjson.ErrorBody{Error: "bad_request", Message: err.Error()})
		return
	}
	if req.Now.IsZero() {
		req.Now = h.now()
	}
	id := uuid.NewString()
	plan, err := h.planner.Price(req.Request)
	if err != nil {
		h.fail(w, id, err)
		return
	}
	resp := relayResponse{RequestID: id, Plan: plan}
	if req.OrderID != "" && h.orders != nil {
		o, err := h.orders.AttachLegs(req.OrderID, plan.Legs)
		if err != nil {
			h.fail(w, id, err)
			return
		}
		resp.Order = &o
	}
	h.log.Infow("relay priced", map[string]any{
		"request_id":   id,
		"legs":         len(plan.Legs),
		"total_payout": plan.TotalPayout,
		"order_id":     req.OrderID,
	})
	httpjson.Write(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, id string, err error) {
	h.log.Debugw("pricing rejected", map[string]any{"request_id": id, "error": err.Error()})
	switch {
	case errors.Is(err, fare.ErrUnknownVehicleClass):
		httpjson.Error(w, http.StatusUnprocessableEntity, httpjson.ErrorBody{Error: "unknown_vehicle_class", Message: err.Error()})
	case errors.Is(err, fare.ErrInvalidInput):
		httpjson.Error(w, http.StatusUnprocessableEntity, httpjson.ErrorBody{Error: "invalid_input", Message: err.Error()})
	case errors.Is(err, reconcile.ErrUnknownOrder):
		httpjson.Error(w, http.StatusNotFound, httpjson.ErrorBody{Error: "unknown_order", Message: err.Error()})
	default:
		h.log.Errorf("pricing request %s: %v", id, err)
		httpjson.Error(w, http.StatusInternalServerError, httpjson.ErrorBody{Error: "internal", Message: err.Error()})
	}
}
