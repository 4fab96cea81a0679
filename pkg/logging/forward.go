package logging

import (
	"context"
	"fmt"
	"log/slog"
)

// Forwarder streams audit records from a buffer to remote syslog
// servers.
type Forwarder struct {
	buf     *AuditBuffer
	clients []*SyslogClient
}

// NewForwarder creates a forwarder from buf to the given clients. The
// clients are retagged "relayd-audit" so the audit trail is
// distinguishable from daemon logs on the receiving end.
func NewForwarder(buf *AuditBuffer, clients []*SyslogClient) *Forwarder {
	for _, c := range clients {
		c.Tag = "relayd-audit"
	}
	return &Forwarder{buf: buf, clients: clients}
}

// Run subscribes to the buffer and forwards records until ctx is
// cancelled. Clients are closed on return.
func (f *Forwarder) Run(ctx context.Context) {
	sub := f.buf.Subscribe(256)
	defer sub.Close()
	defer func() {
		for _, c := range f.clients {
			c.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-sub.C:
			f.forward(rec)
		}
	}
}

func (f *Forwarder) forward(rec CommandRecord) {
	severity := severityFor(rec.Result)
	msg := formatAuditRecord(rec)
	for _, c := range f.clients {
		if !c.ShouldSend(severity) {
			continue
		}
		if err := c.Send(severity, msg); err != nil {
			slog.Warn("syslog forward failed", "error", err)
		}
	}
}

func severityFor(result string) int {
	switch result {
	case ResultError:
		return SyslogError
	case ResultDenied, ResultSyntaxError:
		return SyslogWarning
	default:
		return SyslogInfo
	}
}

func formatAuditRecord(rec CommandRecord) string {
	msg := fmt.Sprintf("COMMAND id=%s source=%s result=%s line=%q",
		rec.ID, rec.Source, rec.Result, rec.Line)
	if rec.Detail != "" {
		msg += fmt.Sprintf(" detail=%q", rec.Detail)
	}
	return msg
}
