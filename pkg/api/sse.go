package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/psaab/relayd/pkg/logging"
)

// setSSEHeaders configures the response for Server-Sent Events
// streaming.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeSSEEvent writes a single SSE event to the response.
func writeSSEEvent(w http.ResponseWriter, id string, event string, data string) {
	fmt.Fprintf(w, "id: %s\n", id)
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// auditStreamHandler streams audit records via SSE. Supports
// ?source= and ?result= filters matching the audit query endpoint.
func (s *Server) auditStreamHandler(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit buffer not available")
		return
	}

	q := r.URL.Query()
	filter := logging.Filter{
		Source: q.Get("source"),
		Result: q.Get("result"),
	}

	setSSEHeaders(w)

	sub := s.audit.Subscribe(128)
	defer sub.Close()

	var seq uint64
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-sub.C:
			if !filter.Matches(&rec) {
				continue
			}
			seq++
			data, err := json.Marshal(auditEntryFromRecord(rec))
			if err != nil {
				continue
			}
			writeSSEEvent(w, fmt.Sprintf("%d", seq), "command", string(data))
		}
	}
}
