package campaignd

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/logger"
)

const eventWriteTimeout = 10 * time.Second

// EventsHandler streams campaign events to a websocket client as JSON
// messages. The connection is closed once the campaign's bus closes.
type EventsHandler struct {
	Campaign Campaign
	// CheckOrigin overrides the upgrader's same-origin check when set.
	CheckOrigin func(r *http.Request) bool
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bus := h.Campaign.Bus()
	if bus == nil {
		http.Error(w, "campaign events unavailable", http.StatusServiceUnavailable)
		return
	}
	output, cancel := bus.Subscribe()
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.CheckOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case event, ok := <-output:
				if !ok {
					deadline := time.Now().Add(eventWriteTimeout)
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "campaign finished"), deadline)
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
					return
				}
				if err := conn.WriteJSON(event); err != nil {
					logger.Debug("event stream write failed", "campaign_id", event.CampaignID, "error", err)
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Reading drives control frames and notices client disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
