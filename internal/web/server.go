package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/commonprotocol/vault/internal/logger"
	"github.com/commonprotocol/vault/internal/state"
	"github.com/commonprotocol/vault/internal/types"
)

// VaultReader is the read-only query surface of a vault.
type VaultReader interface {
	Snapshot() types.Snapshot
	StrategyAllocation(name string) (amount sdkmath.Int, rationale string, ok bool)
	Strategies() []types.StrategyAllocation
	ShareBalanceOf(p types.Participant) sdkmath.Int
	ConvertToAssets(shares sdkmath.Int) sdkmath.Int
	MaxWithdraw(owner types.Participant) sdkmath.Int
	Events() []types.Event
	CheckInvariants() error
}

// JournalReader is the part of the SQL store the dashboard reads.
type JournalReader interface {
	Ping(ctx context.Context) error
	GetRecentEvents(ctx context.Context, limit int) ([]state.JournalEntry, error)
	GetJournalSummary(ctx context.Context) (*state.JournalSummary, error)
	GetLatestSnapshot(ctx context.Context) (*types.Snapshot, error)
	GetRecentRuns(ctx context.Context, limit int) ([]types.ScenarioRun, error)
}

// AddressValidator rejects participant addresses that are not well formed.
type AddressValidator interface {
	Validate(p types.Participant) error
}

// Options configures a WebServer. Journal, Metrics and Addresses are optional.
type Options struct {
	Port      string
	Vault     VaultReader
	Journal   JournalReader
	Metrics   http.Handler
	Addresses AddressValidator
}

// WebServer handles HTTP requests for vault data visualization
type WebServer struct {
	router    *mux.Router
	port      string
	vault     VaultReader
	journal   JournalReader
	metrics   http.Handler
	addresses AddressValidator
	started   time.Time
	logger    zerolog.Logger
}

// NewWebServer creates a new web server instance
func NewWebServer(opts Options) (*WebServer, error) {
	if opts.Vault == nil {
		return nil, errors.New("web server requires a vault")
	}
	if opts.Port == "" {
		opts.Port = "8080"
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		port:      opts.Port,
		vault:     opts.Vault,
		journal:   opts.Journal,
		metrics:   opts.Metrics,
		addresses: opts.Addresses,
		started:   time.Now(),
		logger:    logger.GetForComponent("web_server"),
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if ws.metrics != nil {
		ws.router.Handle("/metrics", ws.metrics).Methods("GET")
	}

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/strategies", ws.handleGetStrategies).Methods("GET")
	api.HandleFunc("/strategies/{name}", ws.handleGetStrategy).Methods("GET")
	api.HandleFunc("/participants/{address}", ws.handleGetParticipant).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/snapshots/latest", ws.handleGetLatestSnapshot).Methods("GET")
	api.HandleFunc("/runs", ws.handleGetRuns).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the router, for embedding or tests.
func (ws *WebServer) Handler() http.Handler { return ws.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	ws.logger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		ws.logger.Info().Msg("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// handleHealth reports the ledger invariants, the journal connection and runtime stats
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	invariantsOK := true
	invariantMsg := ""
	if err := ws.vault.CheckInvariants(); err != nil {
		invariantsOK = false
		invariantMsg = err.Error()
		hasErrors = true
		ws.logger.Error().Err(err).Msg("Vault invariant check failed")
	}

	journalStatus := "disabled"
	if ws.journal != nil {
		journalStatus = "healthy"
		if err := ws.journal.Ping(r.Context()); err != nil {
			journalStatus = "unreachable"
			hasErrors = true
		}
	}

	// Determine overall status
	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"vault_status": map[string]interface{}{
			"invariants_ok":    invariantsOK,
			"invariant_error":  invariantMsg,
			"journal":          journalStatus,
			"events_committed": len(ws.vault.Events()),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetVaultSummary returns the live ledger totals, plus journal statistics when a
// journal is attached
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	snap := ws.vault.Snapshot()

	response := map[string]interface{}{
		"vault": snap,
	}

	if ws.journal != nil {
		summary, err := ws.journal.GetJournalSummary(r.Context())
		if err != nil {
			ws.logger.Error().Err(err).Msg("Failed to get journal summary")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve journal summary")
			return
		}
		response["journal"] = summary
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetStrategies returns every allocation record
func (ws *WebServer) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	strategies := ws.vault.Strategies()

	response := map[string]interface{}{
		"strategies": strategies,
		"count":      len(strategies),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetStrategy returns one allocation record by name
func (ws *WebServer) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	amount, rationale, ok := ws.vault.StrategyAllocation(name)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Strategy not found")
		return
	}

	response := map[string]interface{}{
		"name":      strings.TrimSpace(name),
		"amount":    amount,
		"rationale": rationale,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetParticipant returns a holder's position
func (ws *WebServer) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	p := types.Participant(mux.Vars(r)["address"])
	if p.IsZero() {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid participant address")
		return
	}
	if ws.addresses != nil {
		if err := ws.addresses.Validate(p); err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid participant address")
			return
		}
	}

	shares := ws.vault.ShareBalanceOf(p)
	response := map[string]interface{}{
		"address":      p,
		"shares":       shares,
		"assets":       ws.vault.ConvertToAssets(shares),
		"max_withdraw": ws.vault.MaxWithdraw(p),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetEvents returns recent events, newest first. The journal is the source when
// attached; otherwise the vault's in-memory log.
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 || parsedLimit > 500 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsedLimit
	}

	var (
		events interface{}
		count  int
		source string
	)
	if ws.journal != nil {
		entries, err := ws.journal.GetRecentEvents(r.Context(), limit)
		if err != nil {
			ws.logger.Error().Err(err).Msg("Failed to get recent events")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
			return
		}
		events, count, source = entries, len(entries), "journal"
	} else {
		all := ws.vault.Events()
		recent := make([]types.Event, 0, limit)
		for i := len(all) - 1; i >= 0 && len(recent) < limit; i-- {
			recent = append(recent, all[i])
		}
		events, count, source = recent, len(recent), "memory"
	}

	response := map[string]interface{}{
		"events": events,
		"count":  count,
		"limit":  limit,
		"source": source,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLatestSnapshot returns the most recently persisted snapshot
func (ws *WebServer) handleGetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if ws.journal == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Journal not configured")
		return
	}

	snap, err := ws.journal.GetLatestSnapshot(r.Context())
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No snapshots found")
			return
		}
		ws.logger.Error().Err(err).Msg("Failed to get latest snapshot")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshot")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, snap)
}

// handleGetRuns returns recent scenario runs
func (ws *WebServer) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	if ws.journal == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Journal not configured")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	runs, err := ws.journal.GetRecentRuns(r.Context(), limit)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get recent runs")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	response := map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
		"limit": limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers. The API is read-only.
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		ws.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
