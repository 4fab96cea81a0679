package cmdtree

import (
	"sort"
	"strings"
)

// Suggestion is a single completion candidate. Start is the byte
// offset in the normalized input where the candidate would replace
// the partial token.
type Suggestion struct {
	Text  string
	Start int
}

// Suggest parses line in non-strict mode and returns completion
// candidates for the trailing partial token, sorted lexicographically.
func Suggest(root *Node, line string, src Source) []Suggestion {
	res := Parse(root, line, src, false)
	return res.Suggestions(src)
}

// Suggestions computes candidates at the result's anchor: the deepest
// node reached before the trailing partial token. Literal and redirect
// children match when they complete the partial (see matchesPartial);
// argument children contribute their own dynamic candidates. Hint
// nodes participate like any other.
func (r *Result) Suggestions(src Source) []Suggestion {
	partial := r.input[r.anchorPos:]
	if r.Err != nil && strings.Contains(partial, " ") {
		// An earlier token already failed; nothing sensible to offer.
		return nil
	}
	lower := strings.ToLower(partial)

	seen := make(map[string]struct{})
	var texts []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		texts = append(texts, s)
	}

	children, _ := r.anchor.snapshot()
	for name, child := range children {
		if !child.allowed(src) {
			continue
		}
		if child.kind == KindArgument {
			for _, s := range child.arg.Suggestions(src, partial) {
				add(s)
			}
			continue
		}
		if matchesPartial(name, lower) {
			add(name)
		}
	}

	sort.Strings(texts)
	out := make([]Suggestion, len(texts))
	for i, t := range texts {
		out[i] = Suggestion{Text: t, Start: r.anchorPos}
	}
	return out
}

// matchesPartial reports whether name is a plausible completion of the
// lowercased partial token: the first runes must agree and the rest of
// the partial must appear in name in order. "te" completes to both
// "teleport" and "time" but not "tp"; a plain prefix always matches.
func matchesPartial(name, partial string) bool {
	if partial == "" {
		return true
	}
	nr := []rune(name)
	pr := []rune(partial)
	if len(nr) == 0 || nr[0] != pr[0] {
		return false
	}
	i := 1
	for _, r := range nr[1:] {
		if i == len(pr) {
			break
		}
		if r == pr[i] {
			i++
		}
	}
	return i == len(pr)
}
