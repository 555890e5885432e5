// Package schedule exposes the fare settings over HTTP.
package schedule

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/lastmile/core/fare"
	"github.com/kilianp07/lastmile/core/logger"
	"github.com/kilianp07/lastmile/core/model"
	"github.com/kilianp07/lastmile/internal/httpjson"
)

// Handler serves the schedule and surcharge endpoints backed by a SettingsStore.
type Handler struct {
	store fare.SettingsStore
	log   logger.Logger
}

// New returns a Handler. A nil logger discards output.
func New(store fare.SettingsStore, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Handler{store: store, log: log}
}

// Register mounts the endpoints on mux. Writes require token when it is set.
func (h *Handler) Register(mux *http.ServeMux, token string) {
	mux.HandleFunc("GET /api/fare/schedules", h.list)
	mux.HandleFunc("GET /api/fare/schedules/{class}", h.get)
	mux.Handle("POST /api/fare/schedules/{class}", httpjson.RequireBearer(token, http.HandlerFunc(h.replace)))
	mux.Handle("PATCH /api/fare/schedules/{class}", httpjson.RequireBearer(token, http.HandlerFunc(h.patch)))
	mux.HandleFunc("GET /api/fare/surcharges", h.surcharges)
	mux.Handle("POST /api/fare/surcharges", httpjson.RequireBearer(token, http.HandlerFunc(h.updateSurcharges)))
}

func (h *Handler) list(w http.ResponseWriter, _ *http.Request) {
	httpjson.Write(w, http.StatusOK, h.store.Settings())
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	class, ok := h.class(w, r)
	if !ok {
		return
	}
	s, err := h.store.GetSchedule(class)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, s)
}

func (h *Handler) replace(w http.ResponseWriter, r *http.Request) {
	class, ok := h.class(w, r)
	if !ok {
		return
	}
	var s fare.TieredRateSchedule
	if err := httpjson.Decode(r, &s); err != nil {
		badRequest(w, err)
		return
	}
	h.save(w, class, s)
}

// patch decodes the body over the current schedule, so only the fields
// present in the request change. A tiers array replaces the whole list.
func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	class, ok := h.class(w, r)
	if !ok {
		return
	}
	current, err := h.store.GetSchedule(class)
	if err != nil {
		h.fail(w, err)
		return
	}
	var raw json.RawMessage
	if err := httpjson.Decode(r, &raw); err != nil {
		badRequest(w, err)
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		badRequest(w, err)
		return
	}
	if _, ok := fields["tiers"]; ok {
		current.Tiers = nil
	}
	if err := json.Unmarshal(raw, &current); err != nil {
		badRequest(w, err)
		return
	}
	h.save(w, class, current)
}

func (h *Handler) save(w http.ResponseWriter, class model.VehicleClass, s fare.TieredRateSchedule) {
	if err := h.store.UpdateSchedule(class, s); err != nil {
		h.fail(w, err)
		return
	}
	h.log.Infof("fare schedule for %s updated", class)
	stored, err := h.store.GetSchedule(class)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, stored)
}

func (h *Handler) surcharges(w http.ResponseWriter, _ *http.Request) {
	httpjson.Write(w, http.StatusOK, h.store.Surcharges())
}

func (h *Handler) updateSurcharges(w http.ResponseWriter, r *http.Request) {
	var p fare.SurchargeParams
	if err := httpjson.Decode(r, &p); err != nil {
		badRequest(w, err)
		return
	}
	if err := h.store.UpdateSurcharges(p); err != nil {
		h.fail(w, err)
		return
	}
	h.log.Infof("fare surcharges updated")
	httpjson.Write(w, http.StatusOK, h.store.Surcharges())
}

func (h *Handler) class(w http.ResponseWriter, r *http.Request) (model.VehicleClass, bool) {
	class, err := model.ParseVehicleClass(r.PathValue("class"))
	if err != nil {
		httpjson.Error(w, http.StatusNotFound, httpjson.ErrorBody{Error: "unknown_vehicle_class", Message: err.Error()})
		return "", false
	}
	return class, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var se *fare.ScheduleError
	switch {
	case errors.As(err, &se):
		httpjson.Error(w, http.StatusUnprocessableEntity, httpjson.ErrorBody{Error: "invalid_schedule", Field: se.Field, Message: se.Reason})
	case errors.Is(err, fare.ErrInvalidSchedule):
		httpjson.Error(w, http.StatusUnprocessableEntity, httpjson.ErrorBody{Error: "invalid_schedule", Message: err.Error()})
	case errors.Is(err, fare.ErrUnknownVehicleClass):
		httpjson.Error(w, http.StatusNotFound, httpjson.ErrorBody{Error: "unknown_vehicle_class", Message: err.Error()})
	default:
		h.log.Errorf("fare settings update: %v", err)
		httpjson.Error(w, http.StatusInternalServerError, httpjson.ErrorBody{Error: "internal", Message: err.Error()})
	}
}

func badRequest(w http.ResponseWriter, err error) {
	httpjson.Error(w, http.StatusBadRequest, httpjson.ErrorBody{Error: "bad_request", Message: err.Error()})
}
