package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/psaab/relayd/pkg/cmdtree"
	"github.com/psaab/relayd/pkg/command"
)

// completionCandidate holds a candidate name and an optional
// description shown in the help column.
type completionCandidate struct {
	name string
	desc string
}

// completer implements readline.AutoCompleter over the command tree.
type completer struct {
	mgr *command.Manager
	src cmdtree.Source
	out io.Writer
}

// Do computes tab-completion for the line up to pos. A single
// candidate is completed in place with a trailing space; multiple
// candidates print an aligned help block and extend the line by
// their common prefix.
func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])
	candidates := <-c.mgr.OfferSuggestions(c.src, text)
	if len(candidates) == 0 {
		return nil, 0
	}

	partial := partialToken(text)

	if len(candidates) == 1 && strings.HasPrefix(candidates[0], partial) {
		return [][]rune{[]rune(candidates[0][len(partial):] + " ")}, len(partial)
	}

	fmt.Fprintln(c.out)
	help := make([]completionCandidate, len(candidates))
	for i, name := range candidates {
		help[i] = completionCandidate{name: name}
	}
	writeCompletionHelp(c.out, help)

	// Only extend in place when every candidate really starts with
	// what was typed; fuzzy matches are display-only.
	common := cmdtree.CommonPrefix(candidates)
	if strings.HasPrefix(common, partial) && len(common) > len(partial) {
		return [][]rune{[]rune(common[len(partial):])}, len(partial)
	}
	return nil, len(partial)
}

// partialToken extracts the trailing partial token the candidates
// would replace.
func partialToken(text string) string {
	if text == "" || strings.HasSuffix(text, " ") {
		return ""
	}
	if i := strings.LastIndexByte(text, ' '); i >= 0 {
		return text[i+1:]
	}
	return strings.TrimPrefix(text, "/")
}

// writeCompletionHelp prints aligned completion candidates to w.
func writeCompletionHelp(w io.Writer, candidates []completionCandidate) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].name < candidates[j].name })
	maxWidth := 20
	for _, c := range candidates {
		if len(c.name)+2 > maxWidth {
			maxWidth = len(c.name) + 2
		}
	}
	fmt.Fprintln(w, "Possible completions:")
	for _, c := range candidates {
		if c.desc != "" {
			fmt.Fprintf(w, "  %-*s %s\n", maxWidth, c.name, c.desc)
		} else {
			fmt.Fprintf(w, "  %s\n", c.name)
		}
	}
}
