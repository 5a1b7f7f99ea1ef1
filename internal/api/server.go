package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/credit-scorer/internal/model"
	"github.com/sells-group/credit-scorer/internal/monitoring"
	"github.com/sells-group/credit-scorer/internal/resilience"
	"github.com/sells-group/credit-scorer/internal/scoring"
	"github.com/sells-group/credit-scorer/internal/store"
)

// maxBodyBytes bounds a POST /score request body.
const maxBodyBytes = 1 << 20

// ServerOptions configures the HTTP surface.
type ServerOptions struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// ScoreResponse is the body of a successful POST /score.
type ScoreResponse struct {
	ID string `json:"id,omitempty"`
	model.ScoreResult
	Explanation string     `json:"explanation"`
	Cached      bool       `json:"cached"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// ModelHealth describes the loaded model.
type ModelHealth struct {
	Loaded   bool   `json:"loaded"`
	ID       string `json:"id,omitempty"`
	Version  string `json:"version,omitempty"`
	Breaker  string `json:"breaker"`
	Failures int    `json:"failures"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string      `json:"status"`
	Model  ModelHealth `json:"model"`
	Store  bool        `json:"store"`
	Cache  bool        `json:"cache"`
}

type errorResponse struct {
	Error  string               `json:"error"`
	Fields []scoring.FieldError `json:"fields,omitempty"`
}

type handler struct {
	svc *Service
}

// NewRouter builds the HTTP handler for svc.
func NewRouter(svc *Service, opts ServerOptions) http.Handler {
	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		if opts.RateLimitRPS > 0 {
			r.Use(newClientLimiter(opts.RateLimitRPS, opts.RateLimitBurst).middleware)
		}
		r.Post("/score", h.score)
		r.Get("/applications", h.listApplications)
		r.Get("/applications/{id}", h.getApplication)
		r.Get("/stats", h.stats)
	})

	if svc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", svc.Metrics.Handler())
	}
	return r
}

func (h *handler) score(w http.ResponseWriter, r *http.Request) {
	var profile model.ApplicantProfile
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.svc.Score(r.Context(), profile)
	if err != nil {
		var ve *scoring.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: ve.Fields})
			return
		}
		zap.L().Error("api: score failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	app := out.Application
	resp := ScoreResponse{
		ID:          app.ID,
		ScoreResult: app.Result,
		Explanation: scoring.RenderExplanation(app.Result),
		Cached:      out.Cached,
	}
	if out.Persisted {
		resp.CreatedAt = &app.CreatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Store:  h.svc.Store != nil,
		Cache:  h.svc.Cache != nil,
	}
	resp.Model.Breaker = resilience.CircuitClosed.String()
	if m := h.svc.Model; m != nil {
		state := m.BreakerState()
		resp.Model.Breaker = state.String()
		resp.Model.Failures = m.BreakerFailures()
		if a := m.Artifact(); a != nil {
			resp.Model.Loaded = true
			resp.Model.ID = a.ID
			resp.Model.Version = a.Version
		}
		if state == resilience.CircuitOpen {
			resp.Status = "degraded"
		}
	}
	if !resp.Model.Loaded {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) listApplications(w http.ResponseWriter, r *http.Request) {
	if h.svc.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store disabled")
		return
	}

	q := r.URL.Query()
	var filter store.ListFilter
	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}
	if tier := q.Get("tier"); tier != "" {
		switch model.RiskTier(tier) {
		case model.RiskLow, model.RiskMedium, model.RiskHigh:
			filter.Tier = model.RiskTier(tier)
		default:
			writeError(w, http.StatusBadRequest, "tier must be low, medium or high")
			return
		}
	}
	if d := q.Get("degraded"); d != "" {
		v, err := strconv.ParseBool(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "degraded must be true or false")
			return
		}
		filter.Degraded = &v
	}

	apps, err := h.svc.Store.ListApplications(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list applications failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if apps == nil {
		apps = []model.ApplicationSummary{}
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *handler) getApplication(w http.ResponseWriter, r *http.Request) {
	if h.svc.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store disabled")
		return
	}

	app, err := h.svc.Store.GetApplication(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "application not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get application failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	if h.svc.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store disabled")
		return
	}

	hours, ok := intParam(w, r.URL.Query().Get("hours"), "hours")
	if !ok {
		return
	}
	if hours == 0 {
		hours = 24
	}
	if hours > monitoring.MaxLookbackHours {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("hours must be <= %d", monitoring.MaxLookbackHours))
		return
	}

	snap, err := monitoring.NewCollector(h.svc.Store).Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("api: collect stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// intParam parses an optional non-negative query parameter. On failure it
// writes a 400 and returns false.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
