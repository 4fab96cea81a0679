// Package cli implements the interactive relayd console.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/psaab/relayd/pkg/command"
)

// Console is the interactive local console. It dispatches lines
// through the command manager as the "console" source.
type Console struct {
	mgr         *command.Manager
	rl          *readline.Instance
	hostname    string
	username    string
	historyFile string
	version     string
}

// New creates a console over mgr. historyFile may start with "~/".
func New(mgr *command.Manager, historyFile, version string) *Console {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "relayd"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = "root"
	}

	return &Console{
		mgr:         mgr,
		hostname:    hostname,
		username:    username,
		historyFile: expandHome(historyFile),
		version:     version,
	}
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func (c *Console) prompt() string {
	return fmt.Sprintf("%s@%s> ", c.username, c.hostname)
}

// consoleSource replies to stdout.
type consoleSource struct{}

func (consoleSource) Name() string     { return "console" }
func (consoleSource) Reply(msg string) { fmt.Println(msg) }

// Run starts the interactive loop and blocks until exit or ctx
// cancellation.
func (c *Console) Run(ctx context.Context) error {
	src := consoleSource{}
	comp := &completer{mgr: c.mgr, src: src, out: os.Stdout}

	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		HistoryFile:     c.historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    comp,
		Listener: readline.FuncListener(func(line []rune, pos int, key rune) ([]rune, int, bool) {
			if key != '?' || pos < 1 {
				return line, pos, false
			}
			// Strip the '?' that readline already inserted.
			cleanLine := append(append([]rune{}, line[:pos-1]...), line[pos:]...)
			c.showHelp(string(cleanLine[:pos-1]))
			return cleanLine, pos - 1, true
		}),
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer c.rl.Close()

	// Readline has no context support; unblock it on cancellation.
	stop := context.AfterFunc(ctx, func() { c.rl.Close() })
	defer stop()

	fmt.Printf("relayd %s - command dispatch daemon\n", c.version)
	fmt.Println("Type '?' for help")
	fmt.Println()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		res := <-c.mgr.Execute(src, line)
		if !res.Handled {
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", line)
		}
	}
}

// showHelp prints completion candidates for the line typed so far.
func (c *Console) showHelp(text string) {
	fmt.Fprintln(c.rl.Stdout())
	candidates := <-c.mgr.OfferSuggestions(consoleSource{}, text)
	if len(candidates) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "  (no help available)")
		return
	}
	writeCompletionHelp(c.rl.Stdout(), c.describe(candidates, text))
}

// describe attaches owner info to root-level candidates.
func (c *Console) describe(names []string, text string) []completionCandidate {
	atRoot := !strings.Contains(strings.TrimPrefix(text, "/"), " ")
	out := make([]completionCandidate, len(names))
	for i, name := range names {
		cand := completionCandidate{name: name}
		if atRoot {
			if meta, ok := c.mgr.Meta(name); ok && meta.Plugin != nil {
				cand.desc = meta.Plugin.DisplayName()
			}
		}
		out[i] = cand
	}
	return out
}
