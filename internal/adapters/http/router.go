package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/ports"
)

type Router struct {
	scheduler ports.DigestScheduler
	reader    ports.DigestReader
	options   Options
}

type Options struct {
	// RateLimitRPS <= 0 disables request rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	// MaxInFlight <= 0 disables the backpressure limit.
	MaxInFlight int
}

func NewRouter(scheduler ports.DigestScheduler, reader ports.DigestReader, options Options) *Router {
	return &Router{
		scheduler: scheduler,
		reader:    reader,
		options:   options,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/runs", rt.scheduleRun)
	mux.HandleFunc("/v1/runs/", rt.getRunByID)
	mux.HandleFunc("/v1/digest/latest", rt.latestDigest)

	var handler http.Handler = mux
	handler = backpressureMiddleware(rt.options.MaxInFlight, handler)
	handler = rateLimitMiddleware(rt.options.RateLimitRPS, rt.options.RateLimitBurst, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) scheduleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	run, err := rt.scheduler.Schedule(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) getRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "run id is required"})
		return
	}

	run, err := rt.reader.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// latestDigest serves the most recent exported document verbatim; it
// is already JSON.
func (rt *Router) latestDigest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	document, err := rt.reader.LatestDocument(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(document)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Do not leak internals on unexpected failures.
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

var errNotFoundKinds = []error{domain.ErrRunNotFound, domain.ErrDigestNotFound}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case isNotFound(err):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isNotFound(err error) bool {
	for _, kind := range errNotFoundKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
