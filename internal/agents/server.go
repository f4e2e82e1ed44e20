package agents

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/maint"
	"github.com/calebmcnary/pharmline/internal/sched"
	"github.com/calebmcnary/pharmline/internal/yield"
)

// Server exposes the maintenance and yield services over HTTP.
//
// Every data endpoint requires the API key, passed either as X-API-Key or as
// an Authorization bearer token. Responses use a {success, data, count?}
// envelope; errors use {success: false, error}.
type Server struct {
	maintSvc maint.Service
	yieldSvc yield.Service
	apiKey   string
	addr     string
	log      *slog.Logger
	server   *http.Server
}

// NewServer creates an HTTP server over the given service implementations.
func NewServer(maintSvc maint.Service, yieldSvc yield.Service, apiKey, addr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		maintSvc: maintSvc,
		yieldSvc: yieldSvc,
		apiKey:   apiKey,
		addr:     addr,
		log:      log,
	}
}

// Handler builds the route table. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/api/maintenance/analyze-component", s.authed(s.handleAnalyzeComponent))
	mux.HandleFunc("/api/maintenance/predict-rul", s.authed(s.handlePredictRUL))
	mux.HandleFunc("/api/maintenance/detect-anomalies", s.authed(s.handleDetectAnomalies))
	mux.HandleFunc("/api/maintenance/find-idle-window", s.authed(s.handleFindIdleWindow))

	mux.HandleFunc("/api/yield/detect-drift", s.authed(s.handleDetectDrift))
	mux.HandleFunc("/api/yield/predict", s.authed(s.handlePredictYield))
	mux.HandleFunc("/api/yield/recommendations", s.authed(s.handleRecommendations))
	mux.HandleFunc("/api/yield/validate-recommendation", s.authed(s.handleValidateRecommendation))
	mux.HandleFunc("/api/yield/sop-limits", s.authed(s.handleSOPLimits))

	mux.HandleFunc("/api/scheduling/optimize", s.authed(s.handleOptimizeSchedule))
	mux.HandleFunc("/api/scheduling/validate", s.authed(s.handleValidateSchedule))

	return mux
}

// Start runs the server until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.log.Info("agents server listening", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// authed wraps a handler with API-key verification.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if key == "" || key != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// --- maintenance handlers ---

type analyzeComponentRequest struct {
	Component domain.ComponentHealth  `json:"component"`
	Spare     *domain.SparePart       `json:"spare,omitempty"`
	Schedule  []domain.ScheduledBatch `json:"schedule"`
}

func (s *Server) handleAnalyzeComponent(w http.ResponseWriter, r *http.Request) {
	var req analyzeComponentRequest
	if !decodePost(w, r, &req) {
		return
	}
	decision, err := s.maintSvc.AnalyzeComponent(req.Component, req.Spare, req.Schedule)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, decision, nil)
}

func (s *Server) handlePredictRUL(w http.ResponseWriter, r *http.Request) {
	var req maint.RULInput
	if !decodePost(w, r, &req) {
		return
	}
	prediction, err := s.maintSvc.PredictRUL(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, prediction, nil)
}

type detectAnomaliesRequest struct {
	Samples    []domain.SensorSample `json:"samples"`
	Thresholds maint.Thresholds      `json:"thresholds"`
}

func (s *Server) handleDetectAnomalies(w http.ResponseWriter, r *http.Request) {
	var req detectAnomaliesRequest
	if !decodePost(w, r, &req) {
		return
	}
	anomalies, err := s.maintSvc.DetectAnomalies(req.Samples, req.Thresholds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if anomalies == nil {
		anomalies = []domain.Anomaly{}
	}
	n := len(anomalies)
	writeData(w, anomalies, &n)
}

type findIdleWindowRequest struct {
	Schedule      []domain.ScheduledBatch `json:"schedule"`
	DurationHours float64                 `json:"durationHours"`
}

func (s *Server) handleFindIdleWindow(w http.ResponseWriter, r *http.Request) {
	var req findIdleWindowRequest
	if !decodePost(w, r, &req) {
		return
	}
	window, err := s.maintSvc.FindIdleWindow(req.Schedule, req.DurationHours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, window, nil)
}

// --- yield handlers ---

type detectDriftRequest struct {
	Window     []domain.TabletPressSignals `json:"window"`
	WindowSize int                         `json:"windowSize"`
}

func (s *Server) handleDetectDrift(w http.ResponseWriter, r *http.Request) {
	var req detectDriftRequest
	if !decodePost(w, r, &req) {
		return
	}
	detections, err := s.yieldSvc.DetectDrift(req.Window, req.WindowSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if detections == nil {
		detections = []domain.DriftDetection{}
	}
	n := len(detections)
	writeData(w, detections, &n)
}

type predictYieldRequest struct {
	Profile               domain.BatchProfile `json:"profile"`
	HistoricalYields      []float64           `json:"historicalYields"`
	ActiveRecommendations int                 `json:"activeRecommendations"`
}

func (s *Server) handlePredictYield(w http.ResponseWriter, r *http.Request) {
	var req predictYieldRequest
	if !decodePost(w, r, &req) {
		return
	}
	prediction, err := s.yieldSvc.PredictYield(req.Profile, req.HistoricalYields, req.ActiveRecommendations)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, prediction, nil)
}

type recommendationsRequest struct {
	Signals      domain.TabletPressSignals `json:"signals"`
	Profile      domain.BatchProfile       `json:"profile"`
	SOPLimits    domain.SOPLimits          `json:"sopLimits,omitempty"`
	ProductSpecs domain.ProductSpecs       `json:"productSpecs,omitempty"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if !decodePost(w, r, &req) {
		return
	}
	recs, err := s.yieldSvc.GenerateRecommendations(req.Signals, req.Profile, req.SOPLimits, req.ProductSpecs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []domain.YieldRecommendation{}
	}
	n := len(recs)
	writeData(w, recs, &n)
}

type validateRecommendationRequest struct {
	Recommendation domain.YieldRecommendation `json:"recommendation"`
	SOPLimits      domain.SOPLimits           `json:"sopLimits,omitempty"`
}

func (s *Server) handleValidateRecommendation(w http.ResponseWriter, r *http.Request) {
	var req validateRecommendationRequest
	if !decodePost(w, r, &req) {
		return
	}
	valid, err := s.yieldSvc.ValidateRecommendation(req.Recommendation, req.SOPLimits)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, map[string]bool{"isValid": valid}, nil)
}

func (s *Server) handleSOPLimits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sop, specs, err := s.yieldSvc.SOPLimits()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, map[string]any{"sopLimits": sop, "productSpecs": specs}, nil)
}

// --- scheduling handlers ---

type optimizeScheduleRequest struct {
	Now          time.Time           `json:"now"`
	Orders       []domain.BatchOrder `json:"orders"`
	Resources    []domain.Resource   `json:"resources"`
	HorizonHours float64             `json:"horizonHours"`
}

func (s *Server) handleOptimizeSchedule(w http.ResponseWriter, r *http.Request) {
	var req optimizeScheduleRequest
	if !decodePost(w, r, &req) {
		return
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	schedule := sched.New(req.HorizonHours, domain.UUIDGenerator{}).Schedule(now, req.Orders, req.Resources)
	n := len(schedule)
	writeData(w, schedule, &n)
}

type validateScheduleRequest struct {
	Schedule []domain.ScheduledBatch `json:"schedule"`
}

func (s *Server) handleValidateSchedule(w http.ResponseWriter, r *http.Request) {
	var req validateScheduleRequest
	if !decodePost(w, r, &req) {
		return
	}
	conflicts := sched.FindConflicts(req.Schedule)
	if conflicts == nil {
		conflicts = []sched.Conflict{}
	}
	writeData(w, map[string]any{
		"isValid":   len(conflicts) == 0,
		"conflicts": conflicts,
	}, nil)
}

// --- envelope helpers ---

// envelope is the wire format of every data response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

func decodePost(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeData(w http.ResponseWriter, data any, count *int) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Count: count})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
