package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/psaab/relayd/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

// apiSource captures command replies for the HTTP response.
type apiSource struct {
	name string

	mu     sync.Mutex
	output []string
}

func (s *apiSource) Name() string { return s.name }

func (s *apiSource) Reply(msg string) {
	s.mu.Lock()
	s.output = append(s.output, msg)
	s.mu.Unlock()
}

func (s *apiSource) Output() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.output...)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Version:           s.version,
		Uptime:            time.Since(s.startTime).Truncate(time.Second).String(),
		RegisteredAliases: s.manager.Stats().RegisteredAliases,
	}
	if s.bus != nil {
		resp.Observers = s.bus.Observers()
	}
	if s.audit != nil {
		resp.AuditRecords = s.audit.Len()
	}
	writeOK(w, resp)
}

func (s *Server) commandsHandler(w http.ResponseWriter, _ *http.Request) {
	var out []CommandInfo
	for _, alias := range s.manager.Aliases() {
		info := CommandInfo{Alias: alias}
		if primary, ok := s.manager.Primary(alias); ok {
			info.Primary = primary
		}
		if meta, ok := s.manager.Meta(alias); ok && meta.Plugin != nil {
			info.Plugin = meta.Plugin.ID()
		}
		out = append(out, info)
	}
	writeOK(w, out)
}

func (s *Server) unregisterHandler(w http.ResponseWriter, r *http.Request) {
	var req UnregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Alias == "" {
		writeError(w, http.StatusBadRequest, "alias is required")
		return
	}
	if !s.manager.Unregister(req.Alias) {
		writeError(w, http.StatusNotFound, "alias not registered")
		return
	}
	writeOK(w, map[string]string{"unregistered": req.Alias})
}

func (s *Server) executeHandler(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}
	name := req.Source
	if name == "" {
		name = principalFrom(r)
	}
	if name == "" {
		name = "api"
	}

	src := &apiSource{name: name}
	res := <-s.manager.Execute(src, req.Command)

	resp := ExecuteResponse{
		Handled: res.Handled,
		Output:  src.Output(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeOK(w, resp)
}

func (s *Server) completeHandler(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := req.Source
	if name == "" {
		name = principalFrom(r)
	}
	if name == "" {
		name = "api"
	}

	src := &apiSource{name: name}
	sugs := <-s.manager.OfferSuggestions(src, req.Line)
	writeOK(w, CompleteResponse{Suggestions: sugs})
}

func (s *Server) auditHandler(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit buffer not available")
		return
	}

	q := r.URL.Query()
	count := 50
	if c := q.Get("count"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid count")
			return
		}
		count = n
	}
	filter := logging.Filter{
		Source: q.Get("source"),
		Result: q.Get("result"),
	}

	recs := s.audit.LatestFiltered(count, filter)
	out := make([]AuditEntry, len(recs))
	for i, rec := range recs {
		out[i] = auditEntryFromRecord(rec)
	}
	writeOK(w, out)
}

func auditEntryFromRecord(rec logging.CommandRecord) AuditEntry {
	return AuditEntry{
		Time:       rec.Time.Format(time.RFC3339),
		ID:         rec.ID.String(),
		Source:     rec.Source,
		Line:       rec.Line,
		Result:     rec.Result,
		Detail:     rec.Detail,
		DurationMS: rec.Duration.Milliseconds(),
	}
}
