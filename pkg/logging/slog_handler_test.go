package logging

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSyslogSlogHandlerQuotesValues(t *testing.T) {
	conn, port := udpListener(t)

	c, err := NewSyslogClient("127.0.0.1", port)
	if err != nil {
		t.Fatalf("NewSyslogClient: %v", err)
	}

	h := NewSyslogSlogHandler(slog.NewTextHandler(io.Discard,
		&slog.HandlerOptions{Level: slog.LevelDebug}))
	h.SetClients([]*SyslogClient{c})
	defer h.Close()
	logger := slog.New(h)

	logger.Error("command failed", "line", "time set 5", "source", "console")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg := string(buf[:n])
	if !strings.HasPrefix(msg, "<131>") { // local0.error
		t.Errorf("priority prefix: %q", msg)
	}
	if !strings.Contains(msg, `line="time set 5"`) {
		t.Errorf("space-bearing value not quoted: %q", msg)
	}
	if !strings.Contains(msg, "source=console") {
		t.Errorf("plain value mangled: %q", msg)
	}
}

func TestSyslogSlogHandlerKeepsDebugLocal(t *testing.T) {
	conn, port := udpListener(t)

	c, err := NewSyslogClient("127.0.0.1", port)
	if err != nil {
		t.Fatalf("NewSyslogClient: %v", err)
	}

	h := NewSyslogSlogHandler(slog.NewTextHandler(io.Discard,
		&slog.HandlerOptions{Level: slog.LevelDebug}))
	h.SetClients([]*SyslogClient{c})
	defer h.Close()
	logger := slog.New(h)

	logger.Debug("tree walk", "depth", 3)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 2048)
	if n, _, err := conn.ReadFromUDP(buf); err == nil {
		t.Errorf("debug record reached syslog: %q", string(buf[:n]))
	}
}
