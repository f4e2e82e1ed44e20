package agents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/maint"
	"github.com/calebmcnary/pharmline/internal/sched"
)

// DefaultClientTimeout bounds every service request.
const DefaultClientTimeout = 10 * time.Second

// Client reaches a remote agents server. It implements both maint.Service and
// yield.Service, so the engines cannot tell it apart from Local.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a client for the server at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultClientTimeout},
	}
}

// --- maint.Service ---

func (c *Client) AnalyzeComponent(component domain.ComponentHealth, spare *domain.SparePart, schedule []domain.ScheduledBatch) (domain.MaintenanceDecision, error) {
	var out domain.MaintenanceDecision
	err := c.post("/api/maintenance/analyze-component", analyzeComponentRequest{
		Component: component, Spare: spare, Schedule: schedule,
	}, &out)
	return out, err
}

func (c *Client) PredictRUL(in maint.RULInput) (domain.RULPrediction, error) {
	var out domain.RULPrediction
	err := c.post("/api/maintenance/predict-rul", in, &out)
	return out, err
}

func (c *Client) DetectAnomalies(samples []domain.SensorSample, th maint.Thresholds) ([]domain.Anomaly, error) {
	var out []domain.Anomaly
	err := c.post("/api/maintenance/detect-anomalies", detectAnomaliesRequest{
		Samples: samples, Thresholds: th,
	}, &out)
	return out, err
}

func (c *Client) FindIdleWindow(schedule []domain.ScheduledBatch, durationHours float64) (*domain.Window, error) {
	var out *domain.Window
	err := c.post("/api/maintenance/find-idle-window", findIdleWindowRequest{
		Schedule: schedule, DurationHours: durationHours,
	}, &out)
	return out, err
}

// --- yield.Service ---

func (c *Client) DetectDrift(window []domain.TabletPressSignals, windowSize int) ([]domain.DriftDetection, error) {
	var out []domain.DriftDetection
	err := c.post("/api/yield/detect-drift", detectDriftRequest{
		Window: window, WindowSize: windowSize,
	}, &out)
	return out, err
}

func (c *Client) PredictYield(profile domain.BatchProfile, historicalYields []float64, activeRecommendations int) (domain.OutcomePrediction, error) {
	var out domain.OutcomePrediction
	err := c.post("/api/yield/predict", predictYieldRequest{
		Profile: profile, HistoricalYields: historicalYields, ActiveRecommendations: activeRecommendations,
	}, &out)
	return out, err
}

func (c *Client) GenerateRecommendations(signals domain.TabletPressSignals, profile domain.BatchProfile, sop domain.SOPLimits, specs domain.ProductSpecs) ([]domain.YieldRecommendation, error) {
	var out []domain.YieldRecommendation
	err := c.post("/api/yield/recommendations", recommendationsRequest{
		Signals: signals, Profile: profile, SOPLimits: sop, ProductSpecs: specs,
	}, &out)
	return out, err
}

func (c *Client) ValidateRecommendation(rec domain.YieldRecommendation, sop domain.SOPLimits) (bool, error) {
	var out struct {
		IsValid bool `json:"isValid"`
	}
	err := c.post("/api/yield/validate-recommendation", validateRecommendationRequest{
		Recommendation: rec, SOPLimits: sop,
	}, &out)
	return out.IsValid, err
}

func (c *Client) SOPLimits() (domain.SOPLimits, domain.ProductSpecs, error) {
	var out struct {
		SOPLimits    domain.SOPLimits    `json:"sopLimits"`
		ProductSpecs domain.ProductSpecs `json:"productSpecs"`
	}
	if err := c.get("/api/yield/sop-limits", &out); err != nil {
		return nil, domain.ProductSpecs{}, err
	}
	return out.SOPLimits, out.ProductSpecs, nil
}

// --- scheduling ---

// OptimizeSchedule asks the server to place orders on the timeline.
func (c *Client) OptimizeSchedule(now time.Time, orders []domain.BatchOrder, resources []domain.Resource, horizonHours float64) ([]domain.ScheduledBatch, error) {
	var out []domain.ScheduledBatch
	err := c.post("/api/scheduling/optimize", optimizeScheduleRequest{
		Now: now, Orders: orders, Resources: resources, HorizonHours: horizonHours,
	}, &out)
	return out, err
}

// ValidateSchedule checks a schedule for resource and line conflicts.
func (c *Client) ValidateSchedule(schedule []domain.ScheduledBatch) (bool, []sched.Conflict, error) {
	var out struct {
		IsValid   bool             `json:"isValid"`
		Conflicts []sched.Conflict `json:"conflicts"`
	}
	err := c.post("/api/scheduling/validate", validateScheduleRequest{Schedule: schedule}, &out)
	return out.IsValid, out.Conflicts, err
}

// --- transport ---

func (c *Client) post(path string, body, data any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, data)
}

func (c *Client) get(path string, data any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, data)
}

func (c *Client) do(req *http.Request, data any) error {
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("service error (%d): %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = string(body)
		}
		return fmt.Errorf("service error (%d): %s", resp.StatusCode, msg)
	}
	if data == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, data)
}
