package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnrecoverable is returned when a response cannot be coerced into valid
// JSON even after repair. Callers log and skip rather than fail the batch.
var ErrUnrecoverable = errors.New("unrecoverable llm json output")

// DecodeJSON unmarshals an LLM response into v, tolerating the usual model
// misbehavior: markdown code fences, prose around the payload, trailing
// commas, and truncation mid-object. Repair proceeds in stages, each stage
// retried with encoding/json:
//
//  1. the raw payload with fences and surrounding prose stripped
//  2. the payload truncated at the last balanced position, dropping a
//     partial final element
//  3. the payload with trailing commas removed, the last string terminated,
//     and open braces closed
func DecodeJSON(raw string, v any) error {
	payload := extractPayload(raw)
	if payload == "" {
		return fmt.Errorf("%w: no JSON value found", ErrUnrecoverable)
	}

	if err := json.Unmarshal([]byte(payload), v); err == nil {
		return nil
	}

	if truncated, ok := truncateAtLastBalanced(payload); ok {
		if err := json.Unmarshal([]byte(stripTrailingCommas(truncated)), v); err == nil {
			return nil
		}
	}

	repaired := closeOpenDelimiters(stripTrailingCommas(payload))
	if err := json.Unmarshal([]byte(repaired), v); err == nil {
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnrecoverable, clip(raw, 120))
}

// extractPayload strips markdown fences and prose around the first JSON
// value, returning everything from the first '{' or '[' onward.
func extractPayload(raw string) string {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	objAt := strings.IndexByte(text, '{')
	arrAt := strings.IndexByte(text, '[')
	start := objAt
	if start == -1 || (arrAt != -1 && arrAt < start) {
		start = arrAt
	}
	if start == -1 {
		return ""
	}
	return text[start:]
}

// stripTrailingCommas removes commas that directly precede a closing brace
// or bracket, outside of strings.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	pendingComma := -1 // index in b of a comma awaiting its follower

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			pendingComma = -1
			b.WriteByte(c)
		case ',':
			pendingComma = b.Len()
			b.WriteByte(c)
		case '}', ']':
			if pendingComma >= 0 {
				out := b.String()
				b.Reset()
				b.WriteString(out[:pendingComma] + strings.TrimRight(out[pendingComma+1:], " \t\r\n"))
			}
			pendingComma = -1
			b.WriteByte(c)
		case ' ', '\t', '\r', '\n':
			b.WriteByte(c)
		default:
			pendingComma = -1
			b.WriteByte(c)
		}
	}
	return b.String()
}

// closeOpenDelimiters terminates an unterminated final string and appends
// the closers for any braces or brackets still open at end of input.
func closeOpenDelimiters(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := s
	if escaped {
		out = out[:len(out)-1]
	}
	if inString {
		out += `"`
	}
	out = strings.TrimRight(out, " \t\r\n")
	out = strings.TrimSuffix(out, ",")
	out = strings.TrimSuffix(out, ":")
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out
}

// truncateAtLastBalanced cuts the input after the last position where a
// complete element closed cleanly, then re-closes whatever remains open. For
// a truncated array this drops the partial final element and keeps the
// complete ones. A string closing directly inside a top-level array counts
// as a cut point too, so flat string arrays truncated mid-string lose only
// the partial string.
func truncateAtLastBalanced(s string) (string, bool) {
	var stack []byte
	inString := false
	escaped := false
	lastBalanced := -1

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
				if len(stack) == 1 && stack[0] == '[' {
					lastBalanced = i
				}
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
				lastBalanced = i
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
				lastBalanced = i
			}
		}
	}

	if lastBalanced < 0 {
		return "", false
	}
	return closeOpenDelimiters(s[:lastBalanced+1]), true
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
