// Package api implements the HTTP REST API and Prometheus metrics
// endpoint.
package api

// Response is the standard JSON response envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse holds daemon status information.
type StatusResponse struct {
	Version           string   `json:"version"`
	Uptime            string   `json:"uptime"`
	RegisteredAliases int      `json:"registered_aliases"`
	Observers         []string `json:"observers,omitempty"`
	AuditRecords      int      `json:"audit_records"`
}

// CommandInfo describes one registered alias.
type CommandInfo struct {
	Alias   string `json:"alias"`
	Primary string `json:"primary"`
	Plugin  string `json:"plugin,omitempty"`
}

// ExecuteRequest dispatches a command line on behalf of a source.
type ExecuteRequest struct {
	Source  string `json:"source,omitempty"`
	Command string `json:"command"`
}

// ExecuteResponse reports the dispatch outcome. Output carries the
// replies the command sent back to its source.
type ExecuteResponse struct {
	Handled bool     `json:"handled"`
	Error   string   `json:"error,omitempty"`
	Output  []string `json:"output,omitempty"`
}

// CompleteRequest asks for completion candidates on a partial line.
type CompleteRequest struct {
	Source string `json:"source,omitempty"`
	Line   string `json:"line"`
}

// CompleteResponse carries completion candidates, sorted.
type CompleteResponse struct {
	Suggestions []string `json:"suggestions"`
}

// AuditEntry is one audit record as exposed over the API.
type AuditEntry struct {
	Time       string `json:"time"`
	ID         string `json:"id"`
	Source     string `json:"source"`
	Line       string `json:"line"`
	Result     string `json:"result"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// UnregisterRequest removes a registered alias.
type UnregisterRequest struct {
	Alias string `json:"alias"`
}
