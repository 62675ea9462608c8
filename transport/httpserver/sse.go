package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonwraymond/toolexec/health"
)

// healthEvent is one SSE payload on the /events stream.
type healthEvent struct {
	Type string          `json:"type"`
	Data healthEventData `json:"data"`
}

type healthEventData struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// handleEvents streams health status as Server-Sent Events, one event per
// tick, until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// First event immediately, so a client sees state without waiting a full
	// tick.
	s.writeHealthEvent(r.Context(), w)
	flusher.Flush()

	ticker := time.NewTicker(s.cfg.EventInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			s.writeHealthEvent(r.Context(), w)
			flusher.Flush()
		}
	}
}

func (s *Server) writeHealthEvent(ctx context.Context, w http.ResponseWriter) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	results := s.agg.CheckAll(checkCtx)
	cancel()

	status := s.agg.OverallStatus(results)
	payload, err := json.Marshal(healthEvent{
		Type: "health",
		Data: healthEventData{
			Status:    status.String(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return
	}

	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))

	if status == health.StatusUnhealthy {
		s.logger.Warn(ctx, "health stream reporting unhealthy")
	}
}
