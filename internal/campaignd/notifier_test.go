package campaignd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/internal/exploration"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/config"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

func testResult() *exploration.Result {
	best := models.Trial{ID: 1, Status: models.TrialStatusCompleted, Objectives: map[string]float64{"f": 1}}
	return &exploration.Result{
		CampaignID: "campaign-abc",
		State:      exploration.StateStopped,
		StopReason: exploration.StopMaxEvals,
		Counts:     map[models.TrialStatus]int{models.TrialStatusCompleted: 10},
		Best:       &best,
		Elapsed:    1500 * time.Millisecond,
	}
}

func TestNotifierRetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	type delivery struct {
		path    string
		payload NotificationPayload
	}
	received := make(chan delivery, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var p NotificationPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		received <- delivery{path: r.URL.Path, payload: p}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewNotifier(&config.Notify{
		CallbackURL: server.URL + "/hooks/{campaign_id}",
		MaxRetries:  3,
		Backoff:     "constant",
		BaseMs:      1,
	})
	if err := n.Send(context.Background(), PayloadFromResult(testResult(), nil)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts.Load())
	}
	d := <-received
	if d.path != "/hooks/campaign-abc" {
		t.Fatalf("campaign id not substituted, got path %q", d.path)
	}
	got := d.payload
	if got.StopReason != exploration.StopMaxEvals || got.ElapsedMs != 1500 || got.Best == nil || got.Best.ID != 1 {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.Timestamp == 0 {
		t.Fatalf("timestamp not set")
	}
}

func TestNotifierGivesUp(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewNotifier(&config.Notify{CallbackURL: server.URL, MaxRetries: 2, Backoff: "constant", BaseMs: 1})
	err := n.Send(context.Background(), PayloadFromResult(testResult(), errors.New("evaluator failure")))
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if attempts.Load() != 3 {
		t.Fatalf("expected 1 attempt plus 2 retries, got %d", attempts.Load())
	}
}

func TestNotifierStopsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewNotifier(&config.Notify{CallbackURL: server.URL, MaxRetries: 5, Backoff: "constant", BaseMs: 60_000})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := n.Send(ctx, PayloadFromResult(testResult(), nil))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("send did not honour cancellation")
	}
}

func TestPayloadFromResultCarriesError(t *testing.T) {
	p := PayloadFromResult(testResult(), errors.New("generator failure: boom"))
	if p.Error != "generator failure: boom" || p.CampaignID != "campaign-abc" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestNotifierWithoutURLIsNoop(t *testing.T) {
	n := NewNotifier(&config.Notify{})
	if err := n.Send(context.Background(), NotificationPayload{CampaignID: "x"}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
