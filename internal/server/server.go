package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/copyleftdev/pigeon/internal/config"
	apierrors "github.com/copyleftdev/pigeon/internal/errors"
	"github.com/copyleftdev/pigeon/internal/logging"
	"github.com/copyleftdev/pigeon/internal/optimization/objectives"
	"github.com/copyleftdev/pigeon/internal/optimization/pio"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server implements the HTTP and JSON-RPC driver of the optimizer. Clients
// create runs, step them, inspect them and discard them; the server never
// steps a run on its own.
type Server struct {
	cfg          *config.Config
	logger       Logger
	engineLogger *zap.Logger
	metrics      *Metrics
	runs         *RunManager
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	registerer prometheus.Registerer
}

// WithRegisterer registers the server metrics with reg instead of the
// default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *serverOptions) {
		o.registerer = reg
	}
}

// NewServer creates a new server instance with the given config and logger
// The logger parameter accepts any type that implements the Logger interface
func NewServer(cfg *config.Config, logger Logger, opts ...Option) *Server {
	o := serverOptions{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	metrics := NewMetrics(o.registerer)
	return &Server{
		cfg:          cfg,
		logger:       logger,
		engineLogger: logging.NewZapLogger(logger.WithFields(map[string]interface{}{"component": "engine"})),
		metrics:      metrics,
		runs:         NewRunManager(cfg.Optimization.MaxRuns, metrics),
	}
}

// RegisterRoutes mounts the REST and JSON-RPC endpoints on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/objectives", s.handleObjectives)
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Delete("/", s.handleDelete)
				r.Get("/history", s.handleHistory)
				r.Post("/step", s.handleStep)
				r.Post("/complete", s.handleComplete)
				r.Post("/reset", s.handleReset)
			})
		})
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Close discards every run.
func (s *Server) Close() error {
	s.runs.Clear()
	return nil
}

// ObjectiveView describes one registered objective.
type ObjectiveView struct {
	Name          string     `json:"name"`
	Domain        [2]float64 `json:"domain"`
	MinimumAt     float64    `json:"minimum_at"`
	MinimumCost   float64    `json:"minimum_cost"`
	MinDimensions int        `json:"min_dimensions"`
}

func listObjectives() []ObjectiveView {
	names := objectives.Names()
	out := make([]ObjectiveView, 0, len(names))
	for _, name := range names {
		fn := objectives.MustGet(name)
		out = append(out, ObjectiveView{
			Name:          fn.Name,
			Domain:        fn.Domain,
			MinimumAt:     fn.MinimumAt,
			MinimumCost:   fn.MinimumCost,
			MinDimensions: fn.MinDimensions,
		})
	}
	return out
}

type createRequest struct {
	pio.Config
	// Seed 0 or absent falls back to PIO_SEED, then to the clock.
	Seed *int64 `json:"seed,omitempty"`
}

// createRun decodes body over the PIO_* defaults and starts a run.
func (s *Server) createRun(body []byte) (*Run, error) {
	req := createRequest{Config: s.cfg.RunDefaults()}
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return nil, fmt.Errorf("%w: %v", apierrors.ErrBadRequest, err)
		}

		// Bounds without dimensions imply the dimensions.
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(body, &keys); err == nil {
			_, hasBounds := keys["bounds"]
			_, hasDims := keys["dimensions"]
			if hasBounds && !hasDims {
				req.Dimensions = 0
			}
		}
	}

	seed := s.cfg.Optimization.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	run, err := s.runs.Create(req.Config, seed, s.engineLogger)
	if err != nil {
		return nil, err
	}
	s.logger.Info("run created", map[string]interface{}{
		"run_id":    run.ID,
		"objective": req.Objective,
		"seed":      run.Seed,
	})
	return run, nil
}

func parseCount(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: count must be an integer, got %q", apierrors.ErrBadRequest, raw)
	}
	return n, validCount(n)
}

func validCount(n int) error {
	if n < 1 || n > pio.MaxIterationLimit {
		return fmt.Errorf("%w: count must be in [1, %d], got %d", apierrors.ErrBadRequest, pio.MaxIterationLimit, n)
	}
	return nil
}

func (s *Server) countError(err error) {
	if err != nil {
		s.metrics.Errors.WithLabelValues(string(apierrors.KindOf(err))).Inc()
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	s.countError(err)
	apierrors.Write(w, err)
}

// respondView answers with view; a failed operation keeps the view as the
// body so clients see the state the run was left in.
func (s *Server) respondView(w http.ResponseWriter, ok int, view RunView, err error) {
	if err != nil {
		s.countError(err)
		s.respondJSON(w, apierrors.HTTPStatus(err), view)
		return
	}
	s.respondJSON(w, ok, view)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Run, bool) {
	run, err := s.runs.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return nil, false
	}
	return run, true
}

func (s *Server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"objectives": listObjectives()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: %v", apierrors.ErrBadRequest, err))
		return
	}
	run, err := s.createRun(body)
	if err != nil {
		s.respondError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/runs/"+run.ID)
	s.respondJSON(w, http.StatusCreated, run.View())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if run, ok := s.lookup(w, r); ok {
		s.respondJSON(w, http.StatusOK, run.View())
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if run, ok := s.lookup(w, r); ok {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"id":      run.ID,
			"history": run.History(),
		})
	}
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	count, err := parseCount(r.URL.Query().Get("count"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	view, err := run.Step(count)
	s.respondView(w, http.StatusOK, view, err)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	polish := false
	if raw := r.URL.Query().Get("refine"); raw != "" {
		var err error
		if polish, err = strconv.ParseBool(raw); err != nil {
			s.respondError(w, fmt.Errorf("%w: refine must be a boolean, got %q", apierrors.ErrBadRequest, raw))
			return
		}
	}
	view, err := run.Complete(polish)
	if err == nil {
		s.logger.Info("run completed", map[string]interface{}{
			"run_id":    run.ID,
			"best_cost": view.Snapshot.GlobalBestCost,
		})
	}
	s.respondView(w, http.StatusOK, view, err)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if run, ok := s.lookup(w, r); ok {
		view, err := run.Reset()
		s.respondView(w, http.StatusOK, view, err)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.runs.Delete(id); err != nil {
		s.respondError(w, err)
		return
	}
	s.logger.Info("run deleted", map[string]interface{}{"run_id": id})
	w.WriteHeader(http.StatusNoContent)
}
