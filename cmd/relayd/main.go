// relayd is the command dispatch daemon.
//
// It hosts a hierarchical command tree with alias routing, tab
// completion, and an interception pipeline, exposed over a local
// console and an HTTP management API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/psaab/relayd/pkg/config"
	"github.com/psaab/relayd/pkg/daemon"
)

var version = "dev"

func main() {
	configFile := flag.String("config", config.DefaultPath, "configuration file path")
	apiAddr := flag.String("api-addr", "", "HTTP API listen address (overrides config)")
	noConsole := flag.Bool("no-console", false, "disable the interactive console")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// Set up structured logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	d := daemon.New(daemon.Options{
		ConfigFile: *configFile,
		APIAddr:    *apiAddr,
		NoConsole:  *noConsole,
		Version:    version,
	})

	if err := d.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "relayd: %v\n", err)
		os.Exit(1)
	}
}
