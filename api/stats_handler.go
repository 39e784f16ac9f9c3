package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/jobstore/monitor"
)

// readyTimeout bounds the store check behind /readyz.
const readyTimeout = 2 * time.Second

func (a *API) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	if a.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := a.pinger.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	s, err := a.mon.Statistics(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) queues(w http.ResponseWriter, r *http.Request) {
	q, err := a.mon.Queues(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) servers(w http.ResponseWriter, r *http.Request) {
	s, err := a.mon.Servers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) dailyHistory(w http.ResponseWriter, r *http.Request) {
	a.history(w, r, a.mon.SucceededByDatesCount, a.mon.FailedByDatesCount)
}

func (a *API) hourlyHistory(w http.ResponseWriter, r *http.Request) {
	a.history(w, r, a.mon.HourlySucceededJobs, a.mon.HourlyFailedJobs)
}

type timelineFunc func(ctx context.Context) ([]monitor.TimelinePoint, error)

func (a *API) history(w http.ResponseWriter, r *http.Request, succeeded, failed timelineFunc) {
	var fn timelineFunc
	switch chi.URLParam(r, "type") {
	case monitor.TypeSucceeded:
		fn = succeeded
	case monitor.TypeFailed:
		fn = failed
	default:
		writeError(w, http.StatusNotFound, "history type must be succeeded or failed")
		return
	}
	points, err := fn(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}
