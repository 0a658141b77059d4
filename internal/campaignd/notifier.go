package campaignd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/internal/exploration"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/config"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/logger"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/utils"
)

const defaultNotifyRetries = 3

// NotificationPayload represents the JSON payload sent to the callback URL
type NotificationPayload struct {
	CampaignID string                     `json:"campaign_id"`
	State      exploration.State          `json:"state"`
	StopReason exploration.StopReason     `json:"stop_reason,omitempty"`
	Error      string                     `json:"error,omitempty"`
	Counts     map[models.TrialStatus]int `json:"counts"`
	Best       *models.Trial              `json:"best,omitempty"`
	ElapsedMs  int64                      `json:"elapsed_ms"`
	Metrics    *models.CampaignMetrics    `json:"metrics,omitempty"`
	Timestamp  int64                      `json:"timestamp"` // When notification was sent
}

// PayloadFromResult builds the notification for a finished campaign. runErr
// is the fatal error Run returned, if any.
func PayloadFromResult(res *exploration.Result, runErr error) NotificationPayload {
	p := NotificationPayload{
		CampaignID: res.CampaignID,
		State:      res.State,
		StopReason: res.StopReason,
		Counts:     res.Counts,
		Best:       res.Best,
		ElapsedMs:  res.Elapsed.Milliseconds(),
		Metrics:    res.Metrics,
	}
	if runErr != nil {
		p.Error = runErr.Error()
	}
	return p
}

// Notifier posts campaign summaries to a callback URL
type Notifier struct {
	httpClient  *http.Client
	callbackURL string
	maxRetries  int
	backoff     utils.BackoffStrategy
}

// NewNotifier creates a notifier from the campaign's notify section
func NewNotifier(cfg *config.Notify) *Notifier {
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = defaultNotifyRetries
	}
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		callbackURL: cfg.CallbackURL,
		maxRetries:  retries,
		backoff:     utils.BackoffFromConfig(cfg.Backoff, cfg.BaseMs, 0),
	}
}

// Send posts the payload, retrying failed attempts with backoff until
// maxRetries is exhausted or ctx is done. "{campaign_id}" in the callback URL
// is replaced with the campaign id.
func (n *Notifier) Send(ctx context.Context, payload NotificationPayload) error {
	if n.callbackURL == "" {
		return nil
	}
	callbackURL := strings.ReplaceAll(n.callbackURL, "{campaign_id}", payload.CampaignID)

	payload.Timestamp = time.Now().UTC().UnixMilli()
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			logger.Debug("retrying notification",
				"callback_url", callbackURL,
				"campaign_id", payload.CampaignID,
				"attempt", attempt,
				"delay", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("notification aborted: %w (last error: %v)", ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		lastErr = n.post(ctx, callbackURL, payloadJSON)
		if lastErr == nil {
			logger.Info("notification sent successfully",
				"campaign_id", payload.CampaignID,
				"state", payload.State,
				"stop_reason", payload.StopReason)
			return nil
		}
		logger.Warn("notification attempt failed",
			"callback_url", callbackURL,
			"campaign_id", payload.CampaignID,
			"attempt", attempt+1,
			"error", lastErr)
	}
	return fmt.Errorf("notification failed after %d attempts: %w", n.maxRetries+1, lastErr)
}

func (n *Notifier) post(ctx context.Context, callbackURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "exploration-core/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	responseBody := string(bodyBytes)
	if len(responseBody) > 200 {
		responseBody = responseBody[:200] + "..."
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, responseBody)
}
