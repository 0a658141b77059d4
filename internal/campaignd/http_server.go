// Package campaignd exposes a running campaign over HTTP and gRPC and
// notifies a callback URL when it stops.
package campaignd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/internal/exploration"
	"github.com/GoSim-25-26J-441/exploration-core/internal/history"
	"github.com/GoSim-25-26J-441/exploration-core/internal/metrics"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/logger"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// Campaign is the read and control surface the servers need. It is
// implemented by *exploration.Orchestrator.
type Campaign interface {
	CampaignID() string
	Snapshot() *exploration.Snapshot
	Reader() *history.Reader
	Metrics() *models.CampaignMetrics
	Collector() *metrics.Collector
	Bus() *exploration.Bus
	Stop()
}

type HTTPServer struct {
	mux      *http.ServeMux
	campaign Campaign
}

func NewHTTPServer(campaign Campaign) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		campaign: campaign,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/campaign", s.handleCampaign)
	s.mux.HandleFunc("/v1/campaign:stop", s.handleStop)
	s.mux.HandleFunc("/v1/trials", s.handleTrials)
	s.mux.HandleFunc("/v1/trials/", s.handleTrialByID)
	s.mux.HandleFunc("/v1/best", s.handleBest)
	s.mux.HandleFunc("/v1/trace", s.handleTrace)
	s.mux.HandleFunc("/v1/pareto", s.handlePareto)
	s.mux.HandleFunc("/v1/timeline", s.handleTimeline)
	s.mux.HandleFunc("/v1/metrics", s.handleMetrics)
	s.mux.HandleFunc("/v1/metrics/timeseries", s.handleTimeSeries)
	s.mux.Handle("/v1/events", &EventsHandler{Campaign: campaign})

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCampaign returns the latest campaign snapshot
func (s *HTTPServer) handleCampaign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, statusJSON(s.campaign.Snapshot()))
}

// handleStop requests a graceful stop; outstanding trials drain
func (s *HTTPServer) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.campaign.Stop()
	logger.Info("campaign stop requested over HTTP", "campaign_id", s.campaign.CampaignID())
	s.writeJSON(w, http.StatusAccepted, statusJSON(s.campaign.Snapshot()))
}

// handleTrials lists trials, optionally filtered by ?status= and ?task=
func (s *HTTPServer) handleTrials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	reader := s.campaign.Reader()
	if task := r.URL.Query().Get("task"); task != "" {
		reader = reader.ForTask(task)
	}
	trials, err := listTrials(reader, r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"campaign_id": s.campaign.CampaignID(),
		"count":       len(trials),
		"trials":      trials,
	})
}

// handleTrialByID handles /v1/trials/{id}
func (s *HTTPServer) handleTrialByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/v1/trials/")
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "trial ID is required")
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		s.writeError(w, http.StatusBadRequest, "trial ID must be a non-negative integer")
		return
	}
	tr, ok := s.campaign.Reader().Trial(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "trial not found")
		return
	}
	s.writeJSON(w, http.StatusOK, tr)
}

func (s *HTTPServer) handleBest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	reader := s.campaign.Reader()
	if raw := r.URL.Query().Get("target_fidelity"); raw != "" {
		only, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "target_fidelity must be a boolean")
			return
		}
		if only {
			reader = reader.AtTargetFidelity()
		}
	}
	best, err := reader.Best(r.URL.Query().Get("objective"))
	if err != nil {
		s.writeError(w, queryErrorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, best)
}

func (s *HTTPServer) handleTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	objective := r.URL.Query().Get("objective")
	trace, err := s.campaign.Reader().Trace(objective)
	if err != nil {
		s.writeError(w, queryErrorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"objective": objective,
		"points":    trace,
	})
}

// handlePareto returns the non-dominated trials for ?objectives=a,b
func (s *HTTPServer) handlePareto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var objectives []string
	for _, name := range strings.Split(r.URL.Query().Get("objectives"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			objectives = append(objectives, name)
		}
	}
	front, err := s.campaign.Reader().ParetoFront(objectives...)
	if err != nil {
		s.writeError(w, queryErrorStatus(err), err.Error())
		return
	}
	if front == nil {
		front = []models.Trial{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"objectives": objectives,
		"trials":     front,
	})
}

func (s *HTTPServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	spans := s.campaign.Reader().WorkerTimeline()
	if spans == nil {
		spans = []history.WorkerSpan{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"spans": spans})
}

func (s *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.campaign.Metrics())
}

// handleTimeSeries handles GET /v1/metrics/timeseries?metric=&status=&start_time=&end_time=
func (s *HTTPServer) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	collector := s.campaign.Collector()
	if collector == nil {
		s.writeError(w, http.StatusPreconditionFailed, "time-series metrics not available")
		return
	}

	q := r.URL.Query()
	metricName := q.Get("metric")
	status := q.Get("status")
	var startTime, endTime time.Time
	var err error
	if v := q.Get("start_time"); v != "" {
		if startTime, err = time.Parse(time.RFC3339Nano, v); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid start_time format: "+err.Error())
			return
		}
	}
	if v := q.Get("end_time"); v != "" {
		if endTime, err = time.Parse(time.RFC3339Nano, v); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid end_time format: "+err.Error())
			return
		}
	}

	known := collector.GetMetricNames()
	metricNames := known
	if metricName != "" {
		found := false
		for _, name := range known {
			if name == metricName {
				found = true
				break
			}
		}
		if !found {
			s.writeError(w, http.StatusNotFound, "metric not found")
			return
		}
		metricNames = []string{metricName}
	}

	var points []*models.MetricPoint
	for _, name := range metricNames {
		combos := collector.GetLabelsForMetric(name)
		if len(combos) == 0 {
			if status == "" {
				points = append(points, collector.GetTimeSeries(name, nil)...)
			}
			continue
		}
		for _, labels := range combos {
			if status != "" && labels["status"] != status {
				continue
			}
			points = append(points, collector.GetTimeSeries(name, labels)...)
		}
	}

	pointsJSON := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if !startTime.IsZero() && p.Timestamp.Before(startTime) {
			continue
		}
		if !endTime.IsZero() && p.Timestamp.After(endTime) {
			continue
		}
		pointsJSON = append(pointsJSON, map[string]any{
			"timestamp": p.Timestamp.UTC().Format(time.RFC3339Nano),
			"metric":    p.Name,
			"value":     p.Value,
			"labels":    p.Labels,
		})
	}

	resp := map[string]any{
		"campaign_id": s.campaign.CampaignID(),
		"metrics":     metricNames,
		"points":      pointsJSON,
	}
	if metricName != "" {
		var agg *models.Aggregation
		if status != "" {
			agg = collector.GetAggregation(metricName, metrics.CreateStatusLabels(models.TrialStatus(status)))
		} else {
			agg = collector.GetAggregationAll(metricName)
		}
		if agg != nil {
			resp["aggregation"] = agg
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

// statusJSON flattens a snapshot into the status document served by both
// /v1/campaign and the gRPC GetStatus call.
func statusJSON(snap *exploration.Snapshot) map[string]any {
	counts := make(map[string]int, len(snap.Counts))
	for status, n := range snap.Counts {
		counts[string(status)] = n
	}
	out := map[string]any{
		"campaign_id": snap.CampaignID,
		"state":       string(snap.State),
		"run_mode":    string(snap.RunMode),
		"iteration":   snap.Iteration,
		"dispatched":  snap.Dispatched,
		"max_evals":   snap.MaxEvals,
		"workers":     len(snap.Slots),
		"busy":        snap.Busy(),
		"counts":      counts,
		"slots":       snap.Slots,
		"updated_at":  snap.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !snap.StartedAt.IsZero() {
		out["started_at"] = snap.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	if snap.StopReason != "" {
		out["stop_reason"] = string(snap.StopReason)
	}
	if snap.Error != "" {
		out["error"] = snap.Error
	}
	return out
}

// listTrials returns every trial, or those with the given status.
func listTrials(r *history.Reader, status string) ([]models.Trial, error) {
	if status == "" {
		return r.Trials(), nil
	}
	st := models.TrialStatus(status)
	if !st.Valid() {
		return nil, fmt.Errorf("invalid status filter: %q", status)
	}
	trials := r.Filter(st)
	if trials == nil {
		trials = []models.Trial{}
	}
	return trials, nil
}

func queryErrorStatus(err error) int {
	switch {
	case errors.Is(err, history.ErrUnknownObjective):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrNoCompletedTrials):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
