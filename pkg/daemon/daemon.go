// Package daemon implements the relayd daemon lifecycle.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/psaab/relayd/pkg/api"
	"github.com/psaab/relayd/pkg/cli"
	"github.com/psaab/relayd/pkg/command"
	"github.com/psaab/relayd/pkg/config"
	"github.com/psaab/relayd/pkg/event"
	"github.com/psaab/relayd/pkg/logging"
	"github.com/psaab/relayd/pkg/task"
)

// Options configures the daemon.
type Options struct {
	ConfigFile string
	APIAddr    string // overrides the config file when non-empty
	NoConsole  bool
	Version    string
}

// Daemon is the main relayd daemon.
type Daemon struct {
	opts  Options
	cfg   *config.Config
	pool  *task.Pool
	bus   *event.Bus
	audit *logging.AuditBuffer
	mgr   *command.Manager

	stopOnce sync.Once
	stopped  chan struct{} // closed by the shutdown command
}

// New creates a new Daemon.
func New(opts Options) *Daemon {
	if opts.ConfigFile == "" {
		opts.ConfigFile = config.DefaultPath
	}
	return &Daemon{
		opts:    opts,
		stopped: make(chan struct{}),
	}
}

// Manager exposes the command manager, for embedding relayd in a
// larger proxy.
func (d *Daemon) Manager() *command.Manager { return d.mgr }

// Bus exposes the interception bus.
func (d *Daemon) Bus() *event.Bus { return d.bus }

// requestStop triggers daemon shutdown; used by the shutdown command.
func (d *Daemon) requestStop() {
	d.stopOnce.Do(func() { close(d.stopped) })
}

// Run starts the daemon and blocks until shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("starting relayd",
		"version", d.opts.Version,
		"config", d.opts.ConfigFile,
		"pid", os.Getpid())

	cfg, err := config.Load(d.opts.ConfigFile)
	if err != nil {
		slog.Warn("failed to load config, using defaults", "err", err)
		cfg = config.Default()
	} else {
		slog.Info("configuration loaded", "file", d.opts.ConfigFile)
	}
	if d.opts.APIAddr != "" {
		cfg.API.Addr = d.opts.APIAddr
	}
	if d.opts.NoConsole {
		cfg.Console.Disabled = true
	}
	d.cfg = cfg

	// Handle signals for clean shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Forward daemon logs to any configured syslog targets.
	logHandler := logging.NewSyslogSlogHandler(slog.Default().Handler())
	logHandler.SetClients(d.syslogClients())
	slog.SetDefault(slog.New(logHandler))
	defer logHandler.Close()

	d.pool = task.NewPool(cfg.Executor.Workers, cfg.Executor.QueueSize)
	d.bus = event.NewBus(task.Goroutines{})
	d.audit = logging.NewAuditBuffer(cfg.Audit.BufferSize)
	d.mgr = command.NewManager(d.pool, d.bus, d.audit)

	if err := d.registerBuiltins(); err != nil {
		return fmt.Errorf("register builtin commands: %w", err)
	}

	// WaitGroup for coordinated shutdown of background goroutines
	var wg sync.WaitGroup

	// Audit records stream to their own syslog connections so a slow
	// collector cannot stall daemon logging.
	if clients := d.syslogClients(); len(clients) > 0 {
		fwd := logging.NewForwarder(d.audit, clients)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fwd.Run(ctx)
		}()
	}

	errCh := make(chan error, 2)

	if cfg.API.Addr != "" {
		srv := api.NewServer(api.Config{
			Addr:      cfg.API.Addr,
			HTTPSAddr: cfg.API.HTTPSAddr,
			TLS:       cfg.API.TLS,
			TLSDir:    cfg.API.TLSDir,
			Auth:      authConfig(cfg),
			Manager:   d.mgr,
			Bus:       d.bus,
			Audit:     d.audit,
			Version:   d.opts.Version,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				errCh <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	consoleDone := make(chan struct{})
	if !cfg.Console.Disabled {
		console := cli.New(d.mgr, cfg.Console.HistoryFile, d.opts.Version)
		go func() {
			defer close(consoleDone)
			if err := console.Run(ctx); err != nil {
				errCh <- fmt.Errorf("console: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("signal received, shutting down")
	case <-d.stopped:
		slog.Info("shutdown requested")
	case <-consoleDone:
		// Console exit (EOF or "exit") stops the daemon.
	case runErr = <-errCh:
	}

	stop()
	wg.Wait()
	d.pool.Stop()

	slog.Info("shutdown complete")
	return runErr
}

// syslogClients dials the configured audit syslog targets. Failures
// are logged and skipped.
func (d *Daemon) syslogClients() []*logging.SyslogClient {
	var clients []*logging.SyslogClient
	for _, target := range d.cfg.Audit.Syslog {
		c, err := logging.NewSyslogClient(target.Host, target.Port)
		if err != nil {
			slog.Warn("syslog target unavailable",
				"host", target.Host, "port", target.Port, "err", err)
			continue
		}
		c.MinSeverity = logging.ParseSeverity(target.Severity)
		clients = append(clients, c)
	}
	return clients
}

func authConfig(cfg *config.Config) *api.AuthConfig {
	if len(cfg.API.Users) == 0 && len(cfg.API.APIKeys) == 0 {
		return nil
	}
	keys := make(map[string]bool, len(cfg.API.APIKeys))
	for _, k := range cfg.API.APIKeys {
		keys[k] = true
	}
	return &api.AuthConfig{Users: cfg.API.Users, APIKeys: keys}
}
