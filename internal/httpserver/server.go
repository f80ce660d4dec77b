package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/radiusdt/sponsor-engine/internal/config"
	"github.com/radiusdt/sponsor-engine/internal/database"
	"github.com/radiusdt/sponsor-engine/internal/engine"
	"github.com/radiusdt/sponsor-engine/internal/geo"
	"github.com/radiusdt/sponsor-engine/internal/metrics"
	"github.com/radiusdt/sponsor-engine/internal/models"
	"github.com/radiusdt/sponsor-engine/internal/storage"
	"go.uber.org/zap"
)

// OperatorHeaderName carries the operator identity recorded in audit entries.
const OperatorHeaderName = "X-Operator-ID"

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB         *database.PostgresDB
	Redis      *database.RedisDB
	ClickHouse *database.ClickHouseDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Server wraps HTTP handlers and the serving engine.
type Server struct {
	selection *engine.SelectionEngine
	admin     *engine.AdminService
	resolver  geo.Resolver
	logger    *zap.Logger
	config    *config.Config
	metrics   *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
// Missing backends degrade: no Postgres means the in-memory store, no
// Redis means no cache, no ClickHouse means no event trail.
func NewServer(ctx context.Context, deps *Dependencies) (http.Handler, error) {
	var store storage.CampaignStore
	if deps.DB != nil {
		pgStore := storage.NewPostgresCampaignStore(deps.DB.Pool, deps.Config.Store.OpTimeout)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store = pgStore
	} else {
		store = storage.NewInMemoryCampaignStore()
	}

	if deps.Redis != nil && deps.Config.Cache.Enabled {
		cache := storage.NewCampaignCache(deps.Redis.Client, deps.Config.Cache.TTL, deps.Config.Cache.ListTTL, deps.Logger, deps.Metrics)
		store = storage.NewCachedCampaignStore(store, cache)
	}

	var trail storage.EventTrail = storage.NopEventTrail{}
	if deps.ClickHouse != nil {
		chTrail, err := storage.NewClickHouseEventTrail(ctx, deps.ClickHouse.Conn, deps.Logger)
		if err != nil {
			deps.Logger.Warn("failed to initialize event trail, events will be dropped", zap.Error(err))
		} else {
			trail = chTrail
		}
	}

	var resolver geo.Resolver = geo.NopResolver{}
	if deps.Config.Geo.Enabled {
		r, err := geo.NewMaxMindResolver(deps.Config.Geo.DatabasePath, deps.Config.Geo.CacheSize, deps.Config.Geo.CacheTTL)
		if err != nil {
			deps.Logger.Warn("failed to open geo database, country resolution disabled", zap.Error(err))
		} else {
			resolver = r
		}
	}

	var sink engine.Sink
	if deps.Metrics != nil {
		sink = deps.Metrics
	}

	filters := engine.NewFilterRegistry(deps.Logger)
	budget := engine.NewBudgetAccountant(store, deps.Metrics)
	stats := engine.NewStatisticsTracker(store, sink, deps.Logger)
	audit := engine.NewAuditLog(store)

	s := &Server{
		selection: engine.NewSelectionEngine(store, budget, filters, stats, trail, deps.Metrics, deps.Logger),
		admin:     engine.NewAdminService(store, audit, stats, deps.Metrics, deps.Logger),
		resolver:  resolver,
		logger:    deps.Logger,
		config:    deps.Config,
		metrics:   deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Serving endpoints
	mux.HandleFunc("/serve", s.handleServe)
	mux.HandleFunc("/click/", s.handleClick)
	mux.HandleFunc("/preview/", s.handlePreview)

	// Campaign management
	mux.HandleFunc("/campaigns", s.handleCampaigns)
	mux.HandleFunc("/campaigns/", s.handleCampaignByID)

	return mux, nil
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Serving ----

// viewerFromRequest assembles the filter context from query parameters and
// the client address. Country comes from the geo resolver unless the caller
// supplied it explicitly.
func (s *Server) viewerFromRequest(r *http.Request) *models.Viewer {
	q := r.URL.Query()
	v := &models.Viewer{
		ID:       q.Get("viewer_id"),
		IP:       s.clientIP(r),
		Country:  q.Get("country"),
		Language: q.Get("language"),
	}
	if tags := q.Get("tags"); tags != "" {
		v.GuildTags = strings.Split(tags, ",")
	}
	if v.Country == "" {
		start := time.Now()
		v.Country = s.resolver.Country(v.IP)
		s.metrics.RecordGeoLookup(false, time.Since(start))
	}
	return v
}

func (s *Server) handleServe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	viewer := s.viewerFromRequest(r)
	c, err := s.selection.Serve(r.Context(), viewer)
	if err != nil {
		s.logger.Error("serve error", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	if c == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.jsonResponse(w, engine.PreviewRender(c))
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/click/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	viewer := s.viewerFromRequest(r)
	c, err := s.selection.RegisterClickThrough(r.Context(), id, viewer)
	if err != nil {
		s.logger.Error("click error", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	if c == nil {
		http.NotFound(w, r)
		return
	}

	s.logger.Info("click registered",
		zap.String("campaign_id", c.ID),
		zap.String("country", viewer.Country),
	)
	http.Redirect(w, r, c.Link, http.StatusFound)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/preview/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	c, err := s.admin.GetCampaign(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get campaign", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	if c == nil {
		http.NotFound(w, r)
		return
	}

	s.jsonResponse(w, engine.PreviewRender(c))
}

// ---- Campaigns CRUD ----

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.admin.ListCampaigns(r.Context())
		if err != nil {
			s.logger.Error("failed to list campaigns", zap.Error(err))
			s.errorResponse(w, "failed to list", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, list)

	case http.MethodPost:
		var c models.Campaign
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		created, err := s.admin.CreateCampaign(r.Context(), &c)
		if err != nil {
			s.errorResponse(w, "failed to save: "+err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(created)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCampaignByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/campaigns/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	// Sub-resources: /campaigns/{id}/active|budget|stats/reset
	if id, action, found := strings.Cut(rest, "/"); found {
		s.handleCampaignAction(w, r, id, action)
		return
	}
	id := rest

	switch r.Method {
	case http.MethodGet:
		c, err := s.admin.GetCampaign(r.Context(), id)
		if err != nil {
			s.logger.Error("failed to get campaign", zap.Error(err))
			s.errorResponse(w, "internal error", http.StatusInternalServerError)
			return
		}
		if c == nil {
			http.NotFound(w, r)
			return
		}
		s.jsonResponse(w, c)

	case http.MethodPatch:
		var patch models.CampaignPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		updated, err := s.admin.UpdateCampaign(r.Context(), id, patch, s.operator(r))
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.jsonResponse(w, updated)

	case http.MethodDelete:
		if err := s.admin.DeleteCampaign(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCampaignAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	operator := s.operator(r)

	switch action {
	case "active":
		var body struct {
			Active bool `json:"active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		updated, err := s.admin.SetActive(r.Context(), id, body.Active, operator)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.jsonResponse(w, updated)

	case "budget":
		var body struct {
			Amount float64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		updated, err := s.admin.AddBudget(r.Context(), id, body.Amount, operator)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.jsonResponse(w, updated)

	case "stats/reset":
		updated, err := s.admin.ResetStatistics(r.Context(), id, operator)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.jsonResponse(w, updated)

	default:
		http.NotFound(w, r)
	}
}

// ---- Helper Methods ----

func (s *Server) operator(r *http.Request) string {
	if op := r.Header.Get(OperatorHeaderName); op != "" {
		return op
	}
	return "unknown"
}

func (s *Server) clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.errorResponse(w, "campaign not found", http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidBudget):
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrUnavailable):
		s.errorResponse(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
