package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"finanzen/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the shared error taxonomy onto HTTP statuses. Anything
// unclassified is a plain 500 with a generic body so internals stay inside.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrTransient):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ErrBadRequest
	}
	return id, nil
}

// queryPeriod reads the from/to query window; both absent means now's
// calendar month.
func queryPeriod(r *http.Request, now time.Time) (core.Period, error) {
	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")
	if fromRaw == "" && toRaw == "" {
		return core.CurrentMonth(now), nil
	}
	from, err := time.Parse(time.DateOnly, fromRaw)
	if err != nil {
		return core.Period{}, core.ErrInvalidPeriod
	}
	to, err := time.Parse(time.DateOnly, toRaw)
	if err != nil {
		return core.Period{}, core.ErrInvalidPeriod
	}
	p := core.Period{From: from, To: to}
	if err := p.Validate(); err != nil {
		return core.Period{}, err
	}
	return p, nil
}
