package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// relaydCollector implements prometheus.Collector, reading dispatch
// counters on each scrape.
type relaydCollector struct {
	srv *Server

	commandsTotal     *prometheus.Desc
	registeredAliases *prometheus.Desc
	auditRecords      *prometheus.Desc
	observers         *prometheus.Desc
}

func newCollector(srv *Server) *relaydCollector {
	return &relaydCollector{
		srv: srv,

		commandsTotal: prometheus.NewDesc(
			"relayd_commands_total",
			"Commands dispatched, by outcome.",
			[]string{"result"}, nil,
		),
		registeredAliases: prometheus.NewDesc(
			"relayd_registered_aliases",
			"Currently registered command aliases.",
			nil, nil,
		),
		auditRecords: prometheus.NewDesc(
			"relayd_audit_records",
			"Audit records currently buffered.",
			nil, nil,
		),
		observers: prometheus.NewDesc(
			"relayd_command_observers",
			"Registered command interception observers.",
			nil, nil,
		),
	}
}

func (c *relaydCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.commandsTotal
	ch <- c.registeredAliases
	ch <- c.auditRecords
	ch <- c.observers
}

func (c *relaydCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.srv.manager.Stats()

	counters := []struct {
		result string
		value  uint64
	}{
		{"ok", stats.OK},
		{"error", stats.Errors},
		{"denied", stats.Denied},
		{"forwarded", stats.Forwarded},
		{"syntax_error", stats.SyntaxErrors},
		{"unknown", stats.Unknown},
	}
	for _, c2 := range counters {
		ch <- prometheus.MustNewConstMetric(
			c.commandsTotal, prometheus.CounterValue, float64(c2.value), c2.result)
	}

	ch <- prometheus.MustNewConstMetric(
		c.registeredAliases, prometheus.GaugeValue, float64(stats.RegisteredAliases))

	if c.srv.audit != nil {
		ch <- prometheus.MustNewConstMetric(
			c.auditRecords, prometheus.GaugeValue, float64(c.srv.audit.Len()))
	}
	if c.srv.bus != nil {
		ch <- prometheus.MustNewConstMetric(
			c.observers, prometheus.GaugeValue, float64(len(c.srv.bus.Observers())))
	}
}

var _ prometheus.Collector = (*relaydCollector)(nil)
