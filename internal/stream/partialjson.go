package stream

import (
	"encoding/json"
	"strings"
)

// RepairJSON completes a truncated JSON document: trailing whitespace is
// trimmed, then the minimum closing brackets and braces are appended to
// balance what was opened. If the completed text still does not parse, an
// empty object is returned. Used when a tool call must be force-closed
// because its stream ended (or was canceled) before the arguments finished.
func RepairJSON(s string) json.RawMessage {
	s = strings.TrimRight(s, " \t\r\n")
	if s == "" {
		return json.RawMessage("{}")
	}

	var closers []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			closers = append(closers, '}')
		case '[':
			closers = append(closers, ']')
		case '}', ']':
			if len(closers) > 0 && closers[len(closers)-1] == c {
				closers = closers[:len(closers)-1]
			}
		}
	}

	var b strings.Builder
	b.Grow(len(s) + len(closers))
	b.WriteString(s)
	for i := len(closers) - 1; i >= 0; i-- {
		b.WriteByte(closers[i])
	}

	if out := b.String(); json.Valid([]byte(out)) {
		return json.RawMessage(out)
	}
	return json.RawMessage("{}")
}
