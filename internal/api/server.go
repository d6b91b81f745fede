// Package api serves the latest navigation outputs and source controls over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/tracking.source/internal/navigation"
	"github.com/banshee-data/tracking.source/internal/pipeline"
	"github.com/banshee-data/tracking.source/internal/source"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultTimeout bounds how long a handler waits for the runner goroutine.
const DefaultTimeout = 2 * time.Second

// Server exposes a DeviceSource driven by a pipeline.Runner. The source is
// only touched through Runner.Do; reads of outputs come from the Latest
// cache.
type Server struct {
	runner  *pipeline.Runner
	src     *source.DeviceSource
	latest  *pipeline.Latest
	timeout time.Duration
}

func NewServer(runner *pipeline.Runner, src *source.DeviceSource, latest *pipeline.Latest) *Server {
	return &Server{
		runner:  runner,
		src:     src,
		latest:  latest,
		timeout: DefaultTimeout,
	}
}

// Datum is the JSON form of a navigation.Datum.
type Datum struct {
	Name     string     `json:"name"`
	Valid    bool       `json:"valid"`
	Position [3]float64 `json:"position"`
	// Orientation is a unit quaternion ordered w, x, y, z.
	Orientation         [4]float64 `json:"orientation"`
	PositionAccuracy    float64    `json:"position_accuracy"`
	OrientationAccuracy float64    `json:"orientation_accuracy"`
	TimestampMS         float64    `json:"timestamp_ms"`
}

func datumToAPI(d navigation.Datum) Datum {
	q := d.NormalizedOrientation()
	return Datum{
		Name:                d.Name,
		Valid:               d.DataValid,
		Position:            [3]float64{d.Position.X, d.Position.Y, d.Position.Z},
		Orientation:         [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag},
		PositionAccuracy:    d.PositionAccuracy,
		OrientationAccuracy: d.OrientationAccuracy,
		TimestampMS:         d.Timestamp,
	}
}

// Navigation is the body of GET /api/navigation.
type Navigation struct {
	Updated *time.Time `json:"updated,omitempty"`
	Outputs []Datum    `json:"outputs"`
}

// Status is the body of GET /api/status and POST /api/freeze.
type Status struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	Tracking  bool   `json:"tracking"`
	Frozen    bool   `json:"frozen"`
	Outputs   int    `json:"outputs"`
	Updates   uint64 `json:"updates"`
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/navigation", s.listNavigation)
	mux.HandleFunc("/api/navigation/{name}", s.showNavigation)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/freeze", s.freeze)
	return mux
}

// AttachAdminRoutes adds a plain-text view of the cached outputs to the
// debug handler.
func (s *Server) AttachAdminRoutes(debug *tsweb.DebugHandler) {
	debug.HandleFunc("outputs", "latest navigation outputs", func(w http.ResponseWriter, r *http.Request) {
		data, updated := s.latest.Snapshot()
		w.Header().Set("Content-Type", "text/plain")
		if updated.IsZero() {
			fmt.Fprintln(w, "no update yet")
			return
		}
		fmt.Fprintf(w, "updated %s (%d cycles)\n", updated.Format(time.RFC3339Nano), s.latest.Updates())
		for i := range data {
			fmt.Fprintln(w, data[i].String())
		}
	})
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any, what string) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write "+what)
	}
}

func (s *Server) listNavigation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	data, updated := s.latest.Snapshot()
	resp := Navigation{Outputs: make([]Datum, len(data))}
	if !updated.IsZero() {
		resp.Updated = &updated
	}
	for i, d := range data {
		resp.Outputs[i] = datumToAPI(d)
	}
	s.writeJSON(w, resp, "navigation")
}

func (s *Server) showNavigation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	name := r.PathValue("name")
	d, ok := s.latest.ByName(name)
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No output named %q", name))
		return
	}
	s.writeJSON(w, datumToAPI(d), "navigation")
}

// status reads the source on the runner goroutine.
func (s *Server) status(ctx context.Context) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var st Status
	err := s.runner.Do(ctx, func() {
		st = Status{
			Name:      s.src.Name(),
			Connected: s.src.IsConnected(),
			Tracking:  s.src.IsTracking(),
			Frozen:    s.src.IsFrozen(),
			Outputs:   s.src.NumberOfOutputs(),
			State:     "none",
		}
		if d := s.src.Device(); d != nil {
			st.Model = d.Model()
			st.State = d.State().String()
		}
	})
	st.Updates = s.latest.Updates()
	return st, err
}

func (s *Server) writeRunnerError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrNotRunning) || errors.Is(err, context.DeadlineExceeded) {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Tracking pipeline unavailable")
		return
	}
	s.writeJSONError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	st, err := s.status(r.Context())
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}
	s.writeJSON(w, st, "status")
}

func (s *Server) freeze(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	frozen, err := strconv.ParseBool(r.FormValue("frozen"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'frozen' parameter")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if err := s.runner.Do(ctx, func() { s.src.Freeze(frozen) }); err != nil {
		s.writeRunnerError(w, err)
		return
	}

	st, err := s.status(r.Context())
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}
	s.writeJSON(w, st, "status")
}
