package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/me/gocoro/pkg/coro"
	"github.com/me/gocoro/pkg/model"
)

type schedulerResponse struct {
	RunID string `json:"run_id,omitempty"`
	coro.Snapshot
}

func (s *Server) handleScheduler(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.source == nil {
		respondError(w, reqID, http.StatusServiceUnavailable, model.NewUnavailableError("scheduler"))
		return
	}
	respondOK(w, reqID, schedulerResponse{RunID: s.runID, Snapshot: s.source.Snapshot()})
}

// handleSSEScheduler streams scheduler snapshots via Server-Sent Events.
// GET /api/v1/sse/scheduler
func (s *Server) handleSSEScheduler(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.source == nil {
		respondError(w, reqID, http.StatusServiceUnavailable, model.NewUnavailableError("scheduler"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	snap := s.source.Snapshot()
	if err := sendSSEEvent(w, flusher, "init", schedulerResponse{RunID: s.runID, Snapshot: snap}); err != nil {
		s.logger.Debug("sse client disconnected", "error", err)
		return
	}
	if !snap.Active {
		sendSSEEvent(w, flusher, "complete", schedulerResponse{RunID: s.runID, Snapshot: snap})
		return
	}

	ticker := time.NewTicker(s.sseInterval)
	defer ticker.Stop()
	lastPass := snap.Passes

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap = s.source.Snapshot()
			event := "update"
			switch {
			case !snap.Active:
				event = "complete"
			case snap.Passes == lastPass:
				fmt.Fprintf(w, ": heartbeat\n\n")
				flusher.Flush()
				continue
			}
			if err := sendSSEEvent(w, flusher, event, schedulerResponse{RunID: s.runID, Snapshot: snap}); err != nil {
				s.logger.Debug("sse client disconnected", "error", err)
				return
			}
			if event == "complete" {
				return
			}
			lastPass = snap.Passes
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
