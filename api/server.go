package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wricardo/gsp-board/game/config"
	"github.com/wricardo/gsp-board/game/economy"
	"github.com/wricardo/gsp-board/game/engine"
	"github.com/wricardo/gsp-board/game/resolver"
	"github.com/wricardo/gsp-board/game/scene"
	"github.com/wricardo/gsp-board/game/service"
	"github.com/wricardo/gsp-board/game/session"
	"github.com/wricardo/gsp-board/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	logger  *slog.Logger
}

// NewServer creates a new API server. hub may be nil, which disables /ws.
func NewServer(gameService service.GameService, hub *websocket.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logger.With("component", "api"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Match management
	api.HandleFunc("/matches", s.handleCreateMatch).Methods("POST")
	api.HandleFunc("/matches", s.handleListMatches).Methods("GET")
	api.HandleFunc("/matches/{id}", s.handleGetMatch).Methods("GET")
	api.HandleFunc("/matches/{id}", s.handleDeleteMatch).Methods("DELETE")

	// Turn signals
	api.HandleFunc("/matches/{id}/confirm", s.turnHandler(s.service.Confirm)).Methods("POST")
	api.HandleFunc("/matches/{id}/action", s.turnHandler(s.service.RequestAction)).Methods("POST")
	api.HandleFunc("/matches/{id}/trigger", s.handleTrigger).Methods("POST")
	api.HandleFunc("/matches/{id}/acknowledge", s.turnHandler(s.service.Acknowledge)).Methods("POST")
	api.HandleFunc("/matches/{id}/end-turn", s.turnHandler(s.service.EndTurn)).Methods("POST")
	api.HandleFunc("/matches/{id}/advance", s.turnHandler(s.service.Advance)).Methods("POST")
	api.HandleFunc("/matches/{id}/tick", s.turnHandler(s.service.Tick)).Methods("POST")

	// History
	api.HandleFunc("/matches/{id}/history", s.handleGetHistory).Methods("GET")
	api.HandleFunc("/matches/{id}/events", s.handleGetEvents).Methods("GET")

	// Economy
	api.HandleFunc("/matches/{id}/entities/{eid}", s.handleGetEntity).Methods("GET")
	api.HandleFunc("/matches/{id}/entities/{eid}/pickup", s.handlePickup).Methods("POST")
	api.HandleFunc("/matches/{id}/entities/{eid}/sell", s.handleSell).Methods("POST")
	api.HandleFunc("/matches/{id}/entities/{eid}/currency", s.handleCurrency).Methods("POST")
	api.HandleFunc("/matches/{id}/entities/{eid}/max-weight", s.handleMaxWeight).Methods("PUT")

	// Allies
	api.HandleFunc("/matches/{id}/entities/{eid}/allies", s.handleSpawnAlly).Methods("POST")
	api.HandleFunc("/matches/{id}/entities/{eid}/allies", s.handleRemoveAllAllies).Methods("DELETE")
	api.HandleFunc("/matches/{id}/entities/{eid}/allies/{aid}", s.handleRemoveAlly).Methods("DELETE")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			// the upgrader needs the raw writer
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"error": message, "code": status})
}

// respondErr maps a service error to its HTTP status
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case service.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotAwaitingInput),
		errors.Is(err, engine.ErrAlreadyConfirmed),
		errors.Is(err, resolver.ErrBusy),
		errors.Is(err, resolver.ErrNotRunning),
		errors.Is(err, economy.ErrOverweight),
		errors.Is(err, economy.ErrAllyOwned),
		errors.Is(err, session.ErrSessionAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, economy.ErrNegativeAmount),
		errors.Is(err, economy.ErrNotAlly),
		errors.Is(err, economy.ErrSelfAlly),
		errors.Is(err, economy.ErrNilAlly),
		errors.Is(err, engine.ErrUnknownEvent),
		errors.Is(err, resolver.ErrUnknownResource),
		errors.Is(err, scene.ErrUnknownPrefab),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, config.ErrInvalidConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// decodeBody reads an optional JSON body into v
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: request body: %v", service.ErrInvalidInput, err)
	}
	return nil
}

// Match Handlers

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}

	match, err := s.service.CreateMatch(r.Context(), req.ConfigID)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, match)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.service.ListMatches(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}

	// Parse query parameters
	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of matches to return
	configID := query.Get("config")

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	if configID != "" {
		filtered := matches[:0]
		for _, m := range matches {
			if m.ConfigName == configID {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}
	total := len(matches)

	sort.SliceStable(matches, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = matches[i].CreatedAt, matches[j].CreatedAt
		} else {
			ti, tj = matches[i].LastAccessedAt, matches[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	limit := len(matches)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(matches) {
			limit = l
		}
	}
	matches = matches[:limit]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(matches),
		"total":   total,
		"matches": matches,
		"sort":    sortBy,
		"order":   order,
	})
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	match, err := s.service.GetMatch(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, match)
}

func (s *Server) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["id"]

	if err := s.service.DeleteMatch(r.Context(), matchID); err != nil {
		s.respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Match %s deleted", matchID),
	})
}

// Turn Handlers

type turnFunc func(ctx context.Context, matchID string) (*service.TurnResult, error)

func (s *Server) turnHandler(fn turnFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := fn(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action   string `json:"action"`
		Resource string `json:"resource,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	if req.Action == "" {
		respondError(w, http.StatusBadRequest, "action is required")
		return
	}

	result, err := s.service.TriggerAction(r.Context(), mux.Vars(r)["id"], req.Action, req.Resource)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// History Handlers

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}
	if order := query.Get("order"); order != "" {
		opts.Order = order
	}

	history, err := s.service.GetHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.service.GetEvents(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(events),
		"events": events,
	})
}

// Economy Handlers

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entity, err := s.service.GetEntity(r.Context(), vars["id"], vars["eid"])
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entity)
}

func (s *Server) handlePickup(w http.ResponseWriter, r *http.Request) {
	var req service.PickupRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}

	vars := mux.Vars(r)
	entity, err := s.service.Pickup(r.Context(), vars["id"], vars["eid"], req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entity)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sale, err := s.service.Sell(r.Context(), vars["id"], vars["eid"])
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sale)
}

func (s *Server) handleCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta *int `json:"delta"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	if req.Delta == nil {
		respondError(w, http.StatusBadRequest, "delta is required")
		return
	}

	vars := mux.Vars(r)
	result, err := s.service.AdjustCurrency(r.Context(), vars["id"], vars["eid"], *req.Delta)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleMaxWeight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxWeight *int `json:"max_weight"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	if req.MaxWeight == nil {
		respondError(w, http.StatusBadRequest, "max_weight is required")
		return
	}

	vars := mux.Vars(r)
	entity, err := s.service.SetMaxWeight(r.Context(), vars["id"], vars["eid"], *req.MaxWeight)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entity)
}

// Ally Handlers

func (s *Server) handleSpawnAlly(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ally, err := s.service.SpawnAlly(r.Context(), vars["id"], vars["eid"])
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ally)
}

func (s *Server) handleRemoveAlly(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, err := s.service.RemoveAlly(r.Context(), vars["id"], vars["eid"], vars["aid"], destroyParam(r))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, owner)
}

func (s *Server) handleRemoveAllAllies(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := s.service.RemoveAllAllies(r.Context(), vars["id"], vars["eid"], destroyParam(r))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// destroyParam reads ?destroy=; allies are destroyed unless it says otherwise
func destroyParam(r *http.Request) bool {
	v := r.URL.Query().Get("destroy")
	if v == "" {
		return true
	}
	destroy, err := strconv.ParseBool(v)
	return err != nil || destroy
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.LoadConfig(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string             `json:"config_id"`
		Config   engine.MatchConfig `json:"config"`
	}
	req.Config = engine.NewMatchConfig()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	configID := req.ConfigID
	if configID == "" {
		configID = slug(req.Config.Name)
	}
	if configID == "" {
		respondError(w, http.StatusBadRequest, "config_id or config.name is required")
		return
	}

	if err := s.service.SaveConfig(r.Context(), configID, &req.Config); err != nil {
		s.respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Configuration saved successfully",
		"config_id": configID,
	})
}

// slug turns a display name into a file-safe config ID
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "websocket hub not configured")
		return
	}

	matchID := r.URL.Query().Get("match")
	if matchID != websocket.AllMatches {
		if _, err := s.service.GetMatch(r.Context(), matchID); err != nil {
			s.respondErr(w, err)
			return
		}
	}

	s.hub.ServeWS(w, r, matchID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
