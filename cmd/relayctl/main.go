// relayctl is a remote console for relayd, speaking the HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/psaab/relayd/pkg/api"
	"github.com/psaab/relayd/pkg/cmdtree"
)

type ctl struct {
	base     string
	client   *http.Client
	token    string
	user     string
	password string
	source   string

	rl       *readline.Instance
	hostname string
	username string
}

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8444", "relayd API base URL")
	token := flag.String("token", "", "bearer token for API authentication")
	user := flag.String("user", "", "username for HTTP basic auth")
	password := flag.String("password", "", "password for HTTP basic auth")
	source := flag.String("source", "", "source name to execute as (default: user@host)")
	flag.Parse()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "relayd"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = "root"
	}

	c := &ctl{
		base:     strings.TrimRight(*addr, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		token:    *token,
		user:     *user,
		password: *password,
		source:   *source,
		hostname: hostname,
		username: username,
	}
	if c.source == "" {
		c.source = username + "@" + hostname
	}

	// Single-shot mode: execute the remaining arguments and exit.
	if flag.NArg() > 0 {
		line := strings.Join(flag.Args(), " ")
		if err := c.executeOnce(line); err != nil {
			fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := c.run(); err != nil {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
		os.Exit(1)
	}
}

func (c *ctl) post(path string, reqBody, out any) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var envelope api.Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%s: unexpected response (%d)", path, resp.StatusCode)
	}
	if !envelope.Success {
		return fmt.Errorf("%s: %s", path, envelope.Error)
	}
	if out != nil {
		raw, err := json.Marshal(envelope.Data)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, out)
	}
	return nil
}

func (c *ctl) execute(line string) (api.ExecuteResponse, error) {
	var out api.ExecuteResponse
	err := c.post("/api/v1/execute", api.ExecuteRequest{
		Source:  c.source,
		Command: line,
	}, &out)
	return out, err
}

func (c *ctl) complete(line string) []string {
	var out api.CompleteResponse
	if err := c.post("/api/v1/complete", api.CompleteRequest{
		Source: c.source,
		Line:   line,
	}, &out); err != nil {
		return nil
	}
	return out.Suggestions
}

func (c *ctl) executeOnce(line string) error {
	resp, err := c.execute(line)
	if err != nil {
		return err
	}
	for _, msg := range resp.Output {
		fmt.Println(msg)
	}
	if !resp.Handled {
		return fmt.Errorf("unknown command: %s", line)
	}
	if resp.Error != "" {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

func (c *ctl) prompt() string {
	return fmt.Sprintf("%s@%s> ", c.username, c.hostname)
}

func (c *ctl) run() error {
	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		HistoryFile:     "/tmp/relayctl_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    &remoteCompleter{ctl: c},
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

	fmt.Printf("Connected to %s as %s\n", c.base, c.source)
	fmt.Println("Type '?' for help")
	fmt.Println()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
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

		resp, err := c.execute(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		for _, msg := range resp.Output {
			fmt.Println(msg)
		}
		if !resp.Handled {
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", line)
		}
	}
}

func (c *ctl) showHelp(text string) {
	out := c.rl.Stdout()
	fmt.Fprintln(out)
	candidates := c.complete(text)
	if len(candidates) == 0 {
		fmt.Fprintln(out, "  (no help available)")
		return
	}
	sort.Strings(candidates)
	fmt.Fprintln(out, "Possible completions:")
	for _, name := range candidates {
		fmt.Fprintln(out, "  "+name)
	}
}

type remoteCompleter struct {
	ctl *ctl
}

func (rc *remoteCompleter) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])
	candidates := rc.ctl.complete(text)
	if len(candidates) == 0 {
		return nil, 0
	}
	sort.Strings(candidates)

	partial := ""
	trailingSpace := len(text) > 0 && text[len(text)-1] == ' '
	if !trailingSpace {
		words := strings.Fields(text)
		if len(words) > 0 {
			partial = strings.TrimPrefix(words[len(words)-1], "/")
		}
	}

	if len(candidates) == 1 && strings.HasPrefix(candidates[0], partial) {
		return [][]rune{[]rune(candidates[0][len(partial):] + " ")}, len(partial)
	}

	fmt.Fprintln(rc.ctl.rl.Stdout())
	fmt.Fprintln(rc.ctl.rl.Stdout(), "Possible completions:")
	for _, name := range candidates {
		fmt.Fprintln(rc.ctl.rl.Stdout(), "  "+name)
	}

	// Fuzzy matches are display-only; extend in place only past a
	// shared true prefix.
	common := cmdtree.CommonPrefix(candidates)
	if strings.HasPrefix(common, partial) && len(common) > len(partial) {
		return [][]rune{[]rune(common[len(partial):])}, len(partial)
	}
	return nil, len(partial)
}
