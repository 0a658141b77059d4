package campaignd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

func doRequest(t *testing.T, srv *HTTPServer, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
}

func TestHTTPHealthz(t *testing.T) {
	srv := NewHTTPServer(newFakeCampaign(t))
	rr := doRequest(t, srv, http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	decodeBody(t, rr, &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestHTTPCampaignStatus(t *testing.T) {
	srv := NewHTTPServer(newFakeCampaign(t))
	rr := doRequest(t, srv, http.MethodGet, "/v1/campaign")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		CampaignID string         `json:"campaign_id"`
		State      string         `json:"state"`
		Busy       int            `json:"busy"`
		Workers    int            `json:"workers"`
		Dispatched int            `json:"dispatched"`
		Counts     map[string]int `json:"counts"`
	}
	decodeBody(t, rr, &body)
	if body.CampaignID != "campaign-test" || body.State != "running" {
		t.Fatalf("unexpected status %+v", body)
	}
	if body.Busy != 1 || body.Workers != 2 || body.Dispatched != 5 {
		t.Fatalf("unexpected slot accounting %+v", body)
	}
	if body.Counts["completed"] != 3 {
		t.Fatalf("expected 3 completed, got %v", body.Counts)
	}

	rr = doRequest(t, srv, http.MethodDelete, "/v1/campaign")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestHTTPStopCampaign(t *testing.T) {
	camp := newFakeCampaign(t)
	srv := NewHTTPServer(camp)

	rr := doRequest(t, srv, http.MethodGet, "/v1/campaign:stop")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rr.Code)
	}
	if camp.stops.Load() != 0 {
		t.Fatalf("GET must not stop the campaign")
	}

	rr = doRequest(t, srv, http.MethodPost, "/v1/campaign:stop")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if camp.stops.Load() != 1 {
		t.Fatalf("expected one stop request, got %d", camp.stops.Load())
	}
}

func TestHTTPListTrials(t *testing.T) {
	srv := NewHTTPServer(newFakeCampaign(t))

	var all struct {
		Count  int            `json:"count"`
		Trials []models.Trial `json:"trials"`
	}
	rr := doRequest(t, srv, http.MethodGet, "/v1/trials")
	decodeBody(t, rr, &all)
	if all.Count != 5 || len(all.Trials) != 5 {
		t.Fatalf("expected 5 trials, got %d", all.Count)
	}
	for i, tr := range all.Trials {
		if tr.ID != i {
			t.Fatalf("trials out of id order: %d at %d", tr.ID, i)
		}
	}

	var completed struct {
		Count  int            `json:"count"`
		Trials []models.Trial `json:"trials"`
	}
	rr = doRequest(t, srv, http.MethodGet, "/v1/trials?status=completed")
	decodeBody(t, rr, &completed)
	if completed.Count != 3 {
		t.Fatalf("expected 3 completed trials, got %d", completed.Count)
	}

	rr = doRequest(t, srv, http.MethodGet, "/v1/trials?status=cancelled")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty filter, got %d", rr.Code)
	}

	rr = doRequest(t, srv, http.MethodGet, "/v1/trials?status=bogus")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
}

func TestHTTPTrialByID(t *testing.T) {
	srv := NewHTTPServer(newFakeCampaign(t))

	rr := doRequest(t, srv, http.MethodGet, "/v1/trials/2")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var tr models.Trial
	decodeBody(t, rr, &tr)
	if tr.ID != 2 || tr.Status != models.TrialStatusFailed || tr.Error == "" {
		t.Fatalf("unexpected trial %+v", tr)
	}

	cases := map[string]int{
		"/v1/trials/99":  http.StatusNotFound,
		"/v1/trials/abc": http.StatusBadRequest,
		"/v1/trials/-1":  http.StatusBadRequest,
	}
	for path, want := range cases {
		if rr := doRequest(t, srv, http.MethodGet, path); rr.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, rr.Code)
		}
	}
}

func TestHTTPBest(t *testing.T) {
	srv := NewHTTPServer(newFakeCampaign(t))

	var best models.Trial
	rr := doRequest(t, srv, http.MethodGet, "/v1/best")
	decodeBody(t, rr, &best)
	if best.ID != 1 {
		t.Fatalf("expected trial 1 to minimize f, got %d", best.ID)
	}

	rr = doRequest(t, srv, http.MethodGet, "/v1/best?objective=g")
	decodeBody(t, rr, &best)
	if best.ID != 4 {
		t.Fatalf("expected trial 4 to maximize g, got %d", best.ID)
	}

	rr = doRequest(t, srv, http.MethodGet, "/v1/best?objective=nope")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown objective, got %d", rr.Code)
	}
}

func TestHTTPBestAtTargetFidelity(t *testing.T) {
	camp := newFakeCampaign(t)
	target := 4.0
	camp.space.Varying[0].IsFidelity = true
	camp.space.Varying[0].TargetValue = &target
	srv := NewHTTPServer(camp)

	var best models.Trial
	rr := doRequest(t, srv, http.MethodGet, "/v1/best?target_fidelity=true")
	decodeBody(t, rr, &best)
	if best.ID != 4 {
		t.Fatalf("expected trial 4 as the only one at target fidelity, got %d", best.ID)
	}
	rr = doRequest(t, srv, http.MethodGet, "/v1/best?target_fidelity=false")
	decodeBody(t, rr, &best)
	if best.ID != 1 {
		t.Fatalf("expected trial 1 over all fidelities, got %d", best.ID)
	}
	if rr := doRequest(t, srv, http.MethodGet, "/v1/best?target_fidelity=maybe"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-boolean filter, got %d", rr.Code)
	}
}

func TestHTTPListTrialsByTask(t *testing.T) {
	camp := newFakeCampaign(t)
	for i := range camp.trials {
		camp.trials[i].Task = "cheap"
	}
	camp.trials[3].Task = "expensive"
	srv := NewHTTPServer(camp)

	var resp struct {
		Count  int            `json:"count"`
		Trials []models.Trial `json:"trials"`
	}
	rr := doRequest(t, srv, http.MethodGet, "/v1/trials?task=expensive")
	decodeBody(t, rr, &resp)
	if resp.Count != 1 || resp.Trials[0].ID != 3 {
		t.Fatalf("expected only trial 3, got %+v", resp)
	}
	rr = doRequest(t, srv, http.MethodGet, "/v1/trials?task=cheap&status=completed")
	decodeBody(t, rr, &resp)
	if resp.Count != 3 {
		t.Fatalf("expected 3 completed cheap trials, got %d", resp.Count)
	}
}

func TestHTTPBestWithoutCompletedTrials(t *testing.T) {
	camp := newFakeCampaign(t)
	camp.trials = camp.trials[2:4]
	srv := NewHTTPServer(camp)
	rr := doRequest(t, srv, http.MethodGet, "/v1/best")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHTTPTraceParetoTimeline(t *testing.T) {
	srv := NewHTTPServer(newFakeCampaign(t))

	var trace struct {
		Points []struct {
			TrialID int     `json:"trial_id"`
			Value   float64 `json:"value"`
			Best    float64 `json:"best"`
		} `json:"points"`
	}
	decodeBody(t, doRequest(t, srv, http.MethodGet, "/v1/trace?objective=f"), &trace)
	wantIDs := []int{0, 1, 4}
	wantBest := []float64{3, 1, 1}
	if len(trace.Points) != 3 {
		t.Fatalf("expected 3 trace points, got %d", len(trace.Points))
	}
	for i, p := range trace.Points {
		if p.TrialID != wantIDs[i] || p.Best != wantBest[i] {
			t.Fatalf("trace point %d: got %+v", i, p)
		}
	}

	var pareto struct {
		Trials []models.Trial `json:"trials"`
	}
	decodeBody(t, doRequest(t, srv, http.MethodGet, "/v1/pareto?objectives=f,g"), &pareto)
	if len(pareto.Trials) != 2 || pareto.Trials[0].ID != 1 || pareto.Trials[1].ID != 4 {
		t.Fatalf("expected pareto front [1 4], got %+v", pareto.Trials)
	}
	if rr := doRequest(t, srv, http.MethodGet, "/v1/pareto?objectives=f,zzz"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown pareto objective, got %d", rr.Code)
	}

	var timeline struct {
		Spans []struct {
			Worker  int `json:"worker"`
			TrialID int `json:"trial_id"`
		} `json:"spans"`
	}
	decodeBody(t, doRequest(t, srv, http.MethodGet, "/v1/timeline"), &timeline)
	if len(timeline.Spans) != 5 {
		t.Fatalf("expected 5 spans, got %d", len(timeline.Spans))
	}
	for i := 1; i < len(timeline.Spans); i++ {
		if timeline.Spans[i].Worker < timeline.Spans[i-1].Worker {
			t.Fatalf("timeline not grouped by worker: %+v", timeline.Spans)
		}
	}
}

func TestHTTPMetrics(t *testing.T) {
	srv := NewHTTPServer(newFakeCampaign(t))
	var m models.CampaignMetrics
	rr := doRequest(t, srv, http.MethodGet, "/v1/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	decodeBody(t, rr, &m)
	if m.Dispatched != 5 || m.Workers != 2 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestHTTPTimeSeries(t *testing.T) {
	srv := NewHTTPServer(newFakeCampaign(t))

	type seriesBody struct {
		Metrics     []string            `json:"metrics"`
		Points      []map[string]any    `json:"points"`
		Aggregation *models.Aggregation `json:"aggregation"`
	}

	var all seriesBody
	rr := doRequest(t, srv, http.MethodGet, "/v1/metrics/timeseries")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	decodeBody(t, rr, &all)
	if len(all.Metrics) != 2 || all.Metrics[0] != "busy_slots" || all.Metrics[1] != "trial_duration_seconds" {
		t.Fatalf("unexpected metric names %v", all.Metrics)
	}
	// three completed durations, one failed duration and one busy-slot sample
	if len(all.Points) != 5 || all.Aggregation != nil {
		t.Fatalf("expected 5 points and no aggregation, got %d %+v", len(all.Points), all.Aggregation)
	}

	var completed seriesBody
	rr = doRequest(t, srv, http.MethodGet, "/v1/metrics/timeseries?metric=trial_duration_seconds&status=completed")
	decodeBody(t, rr, &completed)
	if len(completed.Points) != 3 || completed.Aggregation == nil || completed.Aggregation.Mean != 2 {
		t.Fatalf("unexpected completed series %+v", completed)
	}

	var durations seriesBody
	rr = doRequest(t, srv, http.MethodGet, "/v1/metrics/timeseries?metric=trial_duration_seconds")
	decodeBody(t, rr, &durations)
	if len(durations.Points) != 4 || durations.Aggregation == nil || durations.Aggregation.Count != 4 {
		t.Fatalf("unexpected duration series %+v", durations)
	}

	var early seriesBody
	rr = doRequest(t, srv, http.MethodGet, "/v1/metrics/timeseries?metric=trial_duration_seconds&end_time=2026-01-01T00:00:01Z")
	decodeBody(t, rr, &early)
	if len(early.Points) != 2 {
		t.Fatalf("expected the two trials finished by 1s, got %d", len(early.Points))
	}

	if rr := doRequest(t, srv, http.MethodGet, "/v1/metrics/timeseries?metric=nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown metric, got %d", rr.Code)
	}
	if rr := doRequest(t, srv, http.MethodGet, "/v1/metrics/timeseries?start_time=yesterday"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad start_time, got %d", rr.Code)
	}
}
