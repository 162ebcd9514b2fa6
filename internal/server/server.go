// Package server exposes the ask/tell optimization loop over HTTP so
// objective evaluations can live in another process. The core loop
// stays in-process and network-free; this layer only brokers sessions
// around it.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MechCoder/BlackBox/internal/config"
	"github.com/MechCoder/BlackBox/internal/logging"
	"github.com/MechCoder/BlackBox/internal/optimization"
	"github.com/MechCoder/BlackBox/internal/optimization/smbo"
)

// session is one live ask/tell controller. The mutex serializes all
// access; controllers are not safe for concurrent use.
type session struct {
	mu         sync.Mutex
	id         string
	controller *smbo.Controller
	createdAt  time.Time
}

// Server manages optimization sessions over a JSON API.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *Metrics

	mu       sync.RWMutex
	sessions map[string]*session
	nextID   int64
}

// NewServer creates a server. metrics may be nil when the caller does
// not scrape.
func NewServer(cfg *config.Config, logger *logging.Logger, metrics *Metrics) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[string]*session),
	}
}

// RegisterRoutes mounts the session API under /api/v1.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleStatus)
		r.Post("/{id}/ask", s.handleAsk)
		r.Post("/{id}/tell", s.handleTell)
		r.Get("/{id}/result", s.handleResult)
		r.Delete("/{id}", s.handleDelete)
	})
}

// dimensionRequest mirrors the persisted dimension encoding, so a
// space definition copied out of a result file creates the same
// session.
type dimensionRequest struct {
	Type   string   `json:"type"`
	Low    float64  `json:"low,omitempty"`
	High   float64  `json:"high,omitempty"`
	Prior  string   `json:"prior,omitempty"`
	Values []string `json:"values,omitempty"`
	Name   string   `json:"name,omitempty"`
}

type createRequest struct {
	Space     []dimensionRequest `json:"space"`
	Surrogate struct {
		Family   string  `json:"family,omitempty"`
		NoiseVar float64 `json:"noise_var,omitempty"`
	} `json:"surrogate"`
	// Xi and Kappa are pointers so an explicit zero (pure
	// exploitation for LCB) is not mistaken for an absent field.
	Acquisition struct {
		Name  string   `json:"name,omitempty"`
		Xi    *float64 `json:"xi,omitempty"`
		Kappa *float64 `json:"kappa,omitempty"`
	} `json:"acquisition"`
	WarmupPoints int   `json:"warmup_points,omitempty"`
	Candidates   int   `json:"candidates,omitempty"`
	Seed         int64 `json:"seed,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, optimization.WrapError(err, optimization.KindConfiguration, "decoding session request"))
		return
	}

	space, err := buildSpace(req.Space)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	warmup := req.WarmupPoints
	if warmup == 0 {
		warmup = s.cfg.Optimization.DefaultWarmup
	}
	candidates := req.Candidates
	if candidates == 0 {
		candidates = s.cfg.Optimization.DefaultCandidates
	}

	ctrl, err := smbo.New(smbo.Config{
		Space: space,
		Surrogate: smbo.SurrogateConfig{
			Family:   req.Surrogate.Family,
			NoiseVar: req.Surrogate.NoiseVar,
		},
		Acquisition: smbo.AcquisitionConfig{
			Name:  req.Acquisition.Name,
			Xi:    req.Acquisition.Xi,
			Kappa: req.Acquisition.Kappa,
		},
		WarmupPoints: warmup,
		Candidates:   candidates,
		Workers:      s.cfg.Optimization.Workers,
		Seed:         req.Seed,
		Logger:       logging.NewZapLogger(s.logger),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.mu.Lock()
	if max := s.cfg.Optimization.MaxSessions; max > 0 && len(s.sessions) >= max {
		s.mu.Unlock()
		s.respondError(w, r, optimization.Ef(optimization.KindConfiguration, "session limit of %d reached", max))
		return
	}
	s.nextID++
	id := fmt.Sprintf("ses_%d_%d", time.Now().UnixNano(), s.nextID)
	ses := &session{id: id, controller: ctrl, createdAt: time.Now()}
	s.sessions[id] = ses
	live := len(s.sessions)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
		s.metrics.SessionsLive.Set(float64(live))
	}
	s.logger.Info("session created", logging.Fields{
		"session_id": id,
		"dimensions": space.Len(),
	})

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": id,
		"state":      ctrl.State().String(),
	})
}

func buildSpace(dims []dimensionRequest) (*optimization.Space, error) {
	out := make([]optimization.Dimension, 0, len(dims))
	for _, d := range dims {
		switch d.Type {
		case "real":
			out = append(out, optimization.Real{Low: d.Low, High: d.High, Prior: optimization.Prior(d.Prior), Label: d.Name})
		case "integer":
			out = append(out, optimization.Integer{Low: int(d.Low), High: int(d.High), Label: d.Name})
		case "categorical":
			out = append(out, optimization.Categorical{Values: d.Values, Label: d.Name})
		default:
			return nil, optimization.Ef(optimization.KindConfiguration, "unknown dimension type %q", d.Type)
		}
	}
	return optimization.NewSpace(out...)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *session {
	id := chi.URLParam(r, "id")
	s.mu.RLock()
	ses := s.sessions[id]
	s.mu.RUnlock()
	if ses == nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil
	}
	return ses
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ses := s.lookup(w, r)
	if ses == nil {
		return
	}
	ses.mu.Lock()
	res := ses.controller.Result()
	state := ses.controller.State().String()
	ses.mu.Unlock()

	body := map[string]interface{}{
		"session_id":   ses.id,
		"state":        state,
		"observations": res.Iterations,
		"failures":     len(res.Failures),
		"created_at":   ses.createdAt.Format(time.RFC3339),
	}
	if res.Best != nil {
		body["best"] = res.Best
	}
	s.respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ses := s.lookup(w, r)
	if ses == nil {
		return
	}

	var req struct {
		Batch int `json:"batch,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, r, optimization.WrapError(err, optimization.KindConfiguration, "decoding ask request"))
			return
		}
	}

	start := time.Now()
	ses.mu.Lock()
	var points []optimization.Point
	var err error
	if req.Batch > 1 {
		points, err = ses.controller.AskBatch(req.Batch)
	} else {
		var p optimization.Point
		p, err = ses.controller.Ask()
		if err == nil {
			points = []optimization.Point{p}
		}
	}
	state := ses.controller.State()
	ses.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.Asks.WithLabelValues(state.String()).Add(float64(len(points)))
		s.metrics.AskDuration.Observe(time.Since(start).Seconds())
	}

	body := map[string]interface{}{
		"state":  state.String(),
		"points": points,
	}
	if req.Batch <= 1 {
		body["point"] = points[0]
	}
	s.respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleTell(w http.ResponseWriter, r *http.Request) {
	ses := s.lookup(w, r)
	if ses == nil {
		return
	}

	var req struct {
		Point []interface{} `json:"point"`
		Value float64       `json:"value"`
		Noise float64       `json:"noise,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, optimization.WrapError(err, optimization.KindConfiguration, "decoding tell request"))
		return
	}

	ses.mu.Lock()
	var res *optimization.Result
	point, err := ses.controller.Result().Space.CoercePoint(req.Point)
	if err == nil {
		err = ses.controller.TellObservation(optimization.Observation{
			Point: point,
			Value: req.Value,
			Noise: req.Noise,
		})
	}
	if err == nil {
		res = ses.controller.Result()
	}
	state := ses.controller.State()
	ses.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.Tells.Inc()
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"state":        state.String(),
		"observations": res.Iterations,
		"best":         res.Best,
	})
}

// handleResult streams the session history in the persistence format,
// so the payload loads back with the result reader.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	ses := s.lookup(w, r)
	if ses == nil {
		return
	}
	ses.mu.Lock()
	res := ses.controller.Result()
	ses.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := optimization.Dump(res, w); err != nil {
		s.logger.WithError(err).Error("streaming result", logging.Fields{"session_id": ses.id})
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	live := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if s.metrics != nil {
		s.metrics.SessionsLive.Set(float64(live))
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Close drops all sessions.
func (s *Server) Close() error {
	s.mu.Lock()
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SessionsLive.Set(0)
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("encoding response")
	}
}

// respondError maps the error taxonomy onto HTTP statuses: caller
// mistakes are 4xx, everything else is a 500.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	kind := "internal"
	switch {
	case optimization.IsKind(err, optimization.KindOutOfBounds):
		status, kind = http.StatusUnprocessableEntity, "out_of_bounds"
	case optimization.IsKind(err, optimization.KindConfiguration):
		status, kind = http.StatusBadRequest, "configuration"
	case optimization.IsKind(err, optimization.KindUnsupportedAcquisition):
		status, kind = http.StatusBadRequest, "unsupported_acquisition"
	case optimization.IsKind(err, optimization.KindPersistence):
		status, kind = http.StatusBadRequest, "persistence"
	case optimization.IsKind(err, optimization.KindEvaluation):
		kind = "evaluation"
	}

	if s.metrics != nil {
		s.metrics.RequestErrors.WithLabelValues(kind).Inc()
	}
	logging.FromContext(r.Context()).WithError(err).Warn("request failed", logging.Fields{
		"kind":   kind,
		"status": status,
	})
	s.respondJSON(w, status, map[string]string{"error": err.Error(), "kind": kind})
}
