// Package labels merges a label into Prometheus exposition-format text
// without parsing it into a metric model. The scan is quote and brace
// aware; any line it cannot confidently interpret passes through
// unchanged.
//
// Known limitation: a double quote always toggles the in-quote state,
// backslash-escaped quotes inside label values are not recognized.
package labels

import "strings"

// Label is a name/value pair applied uniformly to every metric line of
// one aggregation pass.
type Label struct {
	Name  string
	Value string
}

// Inject rewrites every non-comment, non-blank line of text so that it
// carries the label. Lines already holding the label name as a
// top-level key are left alone, which makes Inject idempotent. A zero
// label returns text unchanged.
func Inject(text string, label Label) string {
	if label.Name == "" {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = injectLine(line, label)
	}
	return strings.Join(lines, "\n")
}

func injectLine(line string, label Label) string {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return line
	}

	// A sample line separates value from name with unquoted whitespace
	// somewhere; a line without any is not parseable as one. Leading
	// indentation is not a separator, the scan starts past it.
	if !hasUnquotedSpace(trimmed) {
		return line
	}
	indent := len(line) - len(trimmed)

	// Find whichever comes first outside quotes: a '{' opening a label
	// set, or the whitespace separating metric name from value.
	open, space := -1, -1
	inQuote := false
scan:
	for i := indent; i < len(line); i++ {
		switch c := line[i]; {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '{':
			open = i
			break scan
		case c == ' ' || c == '\t':
			space = i
			break scan
		}
	}

	assignment := label.Name + `="` + label.Value + `"`

	if open < 0 {
		// hasUnquotedSpace held, so the scan stopped on whitespace.
		return line[:space] + "{" + assignment + "}" + line[space:]
	}

	closing := matchBrace(line, open)
	if closing < 0 {
		// Unterminated label set, do not guess.
		return line
	}

	interior := line[open+1 : closing]
	if hasTopLevelKey(interior, label.Name) {
		return line
	}

	switch {
	case interior == "":
	case strings.HasSuffix(interior, ","):
		assignment = interior + assignment
	default:
		assignment = interior + "," + assignment
	}
	return line[:open+1] + assignment + "}" + line[closing+1:]
}

func hasUnquotedSpace(line string) bool {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == ' ' || c == '\t':
			return true
		}
	}
	return false
}

// matchBrace returns the index of the unquoted '}' closing the '{' at
// open, or -1. Depth is tracked so stray braces inside quoted values
// cannot end the label set early.
func matchBrace(line string, open int) int {
	depth := 1
	inQuote := false
	for i := open + 1; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case '{':
			if !inQuote {
				depth++
			}
		case '}':
			if !inQuote {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

// hasTopLevelKey reports whether the label-set interior contains an
// assignment to name outside quotes, i.e. at the start or right after
// an unquoted comma.
func hasTopLevelKey(interior, name string) bool {
	key := name + "="
	inQuote := false
	start := 0
	for i := 0; i <= len(interior); i++ {
		if i < len(interior) {
			c := interior[i]
			if c == '"' {
				inQuote = !inQuote
				continue
			}
			if c != ',' || inQuote {
				continue
			}
		}
		segment := strings.TrimLeft(interior[start:i], " \t")
		if strings.HasPrefix(segment, key) {
			return true
		}
		start = i + 1
	}
	return false
}
