package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/jobstore"
)

// Paging defaults and bounds for the list routes.
const (
	defaultCount = 20
	maxCount     = 500
)

func (a *API) jobDetails(w http.ResponseWriter, r *http.Request) {
	d, err := a.mon.JobDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) enqueuedJobs(w http.ResponseWriter, r *http.Request) {
	from, count, ok := paging(w, r)
	if !ok {
		return
	}
	jobs, err := a.mon.EnqueuedJobs(r.Context(), chi.URLParam(r, "queue"), from, count)
	respond(a, w, r, jobs, err)
}

func (a *API) fetchedJobs(w http.ResponseWriter, r *http.Request) {
	from, count, ok := paging(w, r)
	if !ok {
		return
	}
	jobs, err := a.mon.FetchedJobs(r.Context(), chi.URLParam(r, "queue"), from, count)
	respond(a, w, r, jobs, err)
}

func (a *API) processingJobs(w http.ResponseWriter, r *http.Request) {
	listJobs(a, w, r, a.mon.ProcessingJobs)
}

func (a *API) scheduledJobs(w http.ResponseWriter, r *http.Request) {
	listJobs(a, w, r, a.mon.ScheduledJobs)
}

func (a *API) succeededJobs(w http.ResponseWriter, r *http.Request) {
	listJobs(a, w, r, a.mon.SucceededJobs)
}

func (a *API) failedJobs(w http.ResponseWriter, r *http.Request) {
	listJobs(a, w, r, a.mon.FailedJobs)
}

func (a *API) deletedJobs(w http.ResponseWriter, r *http.Request) {
	listJobs(a, w, r, a.mon.DeletedJobs)
}

func listJobs[T any](a *API, w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, from, count int) ([]T, error)) {
	from, count, ok := paging(w, r)
	if !ok {
		return
	}
	jobs, err := fn(r.Context(), from, count)
	respond(a, w, r, jobs, err)
}

func respond[T any](a *API, w http.ResponseWriter, r *http.Request, v []T, err error) {
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if v == nil {
		v = []T{}
	}
	writeJSON(w, http.StatusOK, v)
}

// paging reads the from and count query parameters.
func paging(w http.ResponseWriter, r *http.Request) (from, count int, ok bool) {
	from, count = 0, defaultCount
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "from must be a non-negative integer")
			return 0, 0, false
		}
		from = n
	}
	if s := q.Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "count must be a positive integer")
			return 0, 0, false
		}
		count = min(n, maxCount)
	}
	return from, count, true
}

// fail maps store errors to HTTP status codes.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobstore.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobstore.ErrInvalidArgument), errors.Is(err, jobstore.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		a.logger.Error("monitoring request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
