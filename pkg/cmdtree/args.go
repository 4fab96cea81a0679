package cmdtree

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgType is the pluggable consumption and validation rule of an
// argument node. Parse consumes a token from the head of input (the
// unparsed remainder of the command line) and reports how many bytes
// it consumed. Parse errors are surfaced to the user as syntax errors
// at the token's offset.
type ArgType interface {
	Parse(input string) (value any, consumed int, err error)
	// Suggestions returns completion candidates for a partial token.
	// Implementations may return nil.
	Suggestions(src Source, partial string) []string
}

// Word consumes a single space-delimited token.
type Word struct{}

func (Word) Parse(input string) (any, int, error) {
	tok := input
	if i := strings.IndexByte(input, ' '); i >= 0 {
		tok = input[:i]
	}
	if tok == "" {
		return nil, 0, fmt.Errorf("expected a value")
	}
	return tok, len(tok), nil
}

func (Word) Suggestions(Source, string) []string { return nil }

// Phrase consumes a single token, or a double-quoted phrase that may
// contain spaces and backslash-escaped quotes.
type Phrase struct{}

func (Phrase) Parse(input string) (any, int, error) {
	if input == "" {
		return nil, 0, fmt.Errorf("expected a value")
	}
	if input[0] != '"' {
		return Word{}.Parse(input)
	}
	var sb strings.Builder
	escaped := false
	for i := 1; i < len(input); i++ {
		c := input[i]
		switch {
		case escaped:
			sb.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(c)
		}
	}
	return nil, 0, fmt.Errorf("unterminated quoted phrase")
}

func (Phrase) Suggestions(Source, string) []string { return nil }

// Greedy consumes the entire unparsed remainder of the line.
type Greedy struct{}

func (Greedy) Parse(input string) (any, int, error) {
	if input == "" {
		return nil, 0, fmt.Errorf("expected a value")
	}
	return input, len(input), nil
}

func (Greedy) Suggestions(Source, string) []string { return nil }

// Int consumes a single token and parses it as a bounded integer.
type Int struct {
	Min, Max int64
}

// BoundedInt creates an Int argument accepting values in [min, max].
func BoundedInt(min, max int64) Int {
	return Int{Min: min, Max: max}
}

func (a Int) Parse(input string) (any, int, error) {
	tok := input
	if i := strings.IndexByte(input, ' '); i >= 0 {
		tok = input[:i]
	}
	if tok == "" {
		return nil, 0, fmt.Errorf("expected an integer")
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid integer %q", tok)
	}
	if a.Min != 0 || a.Max != 0 {
		if v < a.Min || v > a.Max {
			return nil, 0, fmt.Errorf("integer %d out of range [%d, %d]", v, a.Min, a.Max)
		}
	}
	return v, len(tok), nil
}

func (Int) Suggestions(Source, string) []string { return nil }

// Words consumes a single token and suggests from a dynamic candidate
// set, e.g. names known to the surrounding proxy at completion time.
type Words struct {
	Fn func(src Source) []string
}

func (Words) Parse(input string) (any, int, error) {
	return Word{}.Parse(input)
}

func (w Words) Suggestions(src Source, partial string) []string {
	if w.Fn == nil {
		return nil
	}
	var out []string
	for _, c := range w.Fn(src) {
		if strings.HasPrefix(c, partial) {
			out = append(out, c)
		}
	}
	return out
}
