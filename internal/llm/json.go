package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	codeFence     = regexp.MustCompile("```(?:json)?\\s*")
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	danglingKey   = regexp.MustCompile(`,?\s*"[^"]*":\s*("[^"]*)?$`)
)

var responsePreambles = []string{
	"here is the json:", "here's the json:", "json:", "output:",
	"result:", "response:",
}

// ExtractJSON pulls a JSON object or array out of a raw model response.
// Handles markdown code fences, leading prose, trailing commas, and
// truncated output (bracket-closure repair).
func ExtractJSON(response string) (any, error) {
	text := strings.TrimSpace(response)
	if text == "" {
		return nil, errors.New("empty response")
	}

	text = codeFence.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "`", "")
	text = strings.TrimSpace(text)

	for _, prefix := range responsePreambles {
		if strings.HasPrefix(strings.ToLower(text), prefix) {
			text = strings.TrimSpace(text[len(prefix):])
		}
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, nil
	}

	// Try whichever bracket opens first, so a truncated array is not
	// collapsed to its first complete object.
	pairs := [][2]byte{{'{', '}'}, {'[', ']'}}
	if i := strings.IndexByte(text, '['); i != -1 {
		if j := strings.IndexByte(text, '{'); j == -1 || i < j {
			pairs[0], pairs[1] = pairs[1], pairs[0]
		}
	}
	for _, pair := range pairs {
		start := strings.IndexByte(text, pair[0])
		if start == -1 {
			continue
		}
		end := strings.LastIndexByte(text, pair[1])
		if end <= start {
			// Opened but never closed: truncated output.
			if repaired := repairTruncated(text[start:]); repaired != "" {
				if err := json.Unmarshal([]byte(repaired), &parsed); err == nil {
					return parsed, nil
				}
			}
			continue
		}
		candidate := text[start : end+1]
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return parsed, nil
		}
		fixed := trailingComma.ReplaceAllString(candidate, "$1")
		if err := json.Unmarshal([]byte(fixed), &parsed); err == nil {
			return parsed, nil
		}
		if repaired := repairTruncated(text[start:]); repaired != "" {
			if err := json.Unmarshal([]byte(repaired), &parsed); err == nil {
				return parsed, nil
			}
		}
	}

	return nil, fmt.Errorf("no parseable JSON in response (%d chars)", len(response))
}

// repairTruncated closes unclosed brackets and braces so truncated model
// output can still be parsed.
func repairTruncated(fragment string) string {
	openBraces := strings.Count(fragment, "{") - strings.Count(fragment, "}")
	openBrackets := strings.Count(fragment, "[") - strings.Count(fragment, "]")
	if openBraces <= 0 && openBrackets <= 0 {
		return ""
	}

	repaired := strings.TrimRight(fragment, " \t\n")
	repaired = strings.TrimSuffix(repaired, ",")
	repaired = danglingKey.ReplaceAllString(repaired, "")
	repaired = strings.TrimRight(strings.TrimRight(repaired, " \t\n"), ",")

	// Objects nest inside arrays in every response shape we ask for, so
	// braces close first.
	if openBraces > 0 {
		repaired += strings.Repeat("}", openBraces)
	}
	if openBrackets > 0 {
		repaired += strings.Repeat("]", openBrackets)
	}
	return repaired
}

// ToString coerces a dynamically-shaped response field to a string. Objects
// fall back to a known value key, then to stringification.
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any:
		for _, key := range []string{"value", "amount", "text"} {
			if inner, ok := val[key]; ok {
				if s := ToString(inner); s != "" {
					return s
				}
			}
		}
		return fmt.Sprintf("%v", val)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}

// ToStringList coerces a field that may be a string, a list, or an object
// into a flat list of strings. Nil and blank items are dropped.
func ToStringList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
		return nil
	case []any:
		var out []string
		for _, item := range val {
			if s := ToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := ToString(val); s != "" {
			return []string{s}
		}
		return nil
	}
}

// ItemList digs a list of objects out of a parsed response: either the value
// under one of the given keys, or the response itself when it is a bare
// array. A single object is wrapped as a one-item list.
func ItemList(parsed any, keys ...string) []map[string]any {
	switch val := parsed.(type) {
	case []any:
		return objectsOf(val)
	case map[string]any:
		for _, key := range keys {
			if inner, ok := val[key]; ok {
				switch iv := inner.(type) {
				case []any:
					return objectsOf(iv)
				case map[string]any:
					return []map[string]any{iv}
				}
			}
		}
	}
	return nil
}

func objectsOf(items []any) []map[string]any {
	var out []map[string]any
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
