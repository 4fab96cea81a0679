package logging

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

func udpListener(t *testing.T) (*net.UDPConn, int) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

func TestSyslogSend(t *testing.T) {
	conn, port := udpListener(t)

	c, err := NewSyslogClient("127.0.0.1", port)
	if err != nil {
		t.Fatalf("NewSyslogClient: %v", err)
	}
	defer c.Close()

	if err := c.Send(SyslogInfo, "COMMAND source=console result=ok"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg := string(buf[:n])
	if !strings.HasPrefix(msg, "<134>") { // local0.info = 16*8+6
		t.Errorf("priority prefix missing: %q", msg)
	}
	if !strings.Contains(msg, "relayd: COMMAND source=console result=ok") {
		t.Errorf("unexpected payload: %q", msg)
	}
}

func TestSyslogSeverityFilter(t *testing.T) {
	c := &SyslogClient{MinSeverity: SyslogWarning}
	if !c.ShouldSend(SyslogError) {
		t.Error("error should pass a warning filter")
	}
	if !c.ShouldSend(SyslogWarning) {
		t.Error("warning should pass a warning filter")
	}
	if c.ShouldSend(SyslogInfo) {
		t.Error("info should not pass a warning filter")
	}

	c.MinSeverity = 0
	if !c.ShouldSend(SyslogInfo) {
		t.Error("no filter should pass everything")
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"error", SyslogError},
		{"warning", SyslogWarning},
		{"info", SyslogInfo},
		{"bogus", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := ParseSeverity(tt.name); got != tt.want {
			t.Errorf("ParseSeverity(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestForwarderSendsAuditRecords(t *testing.T) {
	conn, port := udpListener(t)

	c, err := NewSyslogClient("127.0.0.1", port)
	if err != nil {
		t.Fatalf("NewSyslogClient: %v", err)
	}

	ab := NewAuditBuffer(16)
	fwd := NewForwarder(ab, []*SyslogClient{c})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fwd.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the forwarder time to subscribe before adding.
	time.Sleep(50 * time.Millisecond)
	ab.Add(record("alice", "op alice", ResultDenied))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg := string(buf[:n])
	if !strings.HasPrefix(msg, "<132>") { // local0.warning
		t.Errorf("priority prefix: %q", msg)
	}
	if !strings.Contains(msg, "source=alice") || !strings.Contains(msg, "result=denied") {
		t.Errorf("payload: %q", msg)
	}
	// Forwarded audit records carry their own tag.
	if !strings.Contains(msg, " relayd-audit: ") {
		t.Errorf("audit tag missing: %q", msg)
	}
}
