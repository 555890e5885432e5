// Package history exposes the order audit trail over HTTP.
package history

import (
	"net/http"
	"strconv"
	"time"

	corehistory "github.com/kilianp07/lastmile/core/history"
	"github.com/kilianp07/lastmile/internal/httpjson"
)

// NewLogHandler returns an HTTP handler exposing order history via
// GET /api/history. Requests must include "Authorization: Bearer <token>"
// when token is non-empty.
func NewLogHandler(store corehistory.Store, token string) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q, field, err := parseQuery(r)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, httpjson.ErrorBody{Error: "bad_request", Field: field, Message: err.Error()})
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []corehistory.Record{}
		}
		httpjson.Write(w, http.StatusOK, records)
	})
	return httpjson.RequireBearer(token, h)
}

func parseQuery(r *http.Request) (corehistory.Query, string, error) {
	v := r.URL.Query()
	q := corehistory.Query{OrderID: v.Get("order_id"), Source: v.Get("source")}
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, "start", err
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, "end", err
		}
		q.End = t
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, "limit", strconv.ErrSyntax
		}
		q.Limit = n
	}
	return q, "", nil
}
