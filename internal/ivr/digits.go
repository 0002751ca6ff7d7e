package ivr

import (
	"strconv"
	"strings"
)

// Providers report the recognized digit under several alternative payload
// shapes. Extraction is an ordered list of named strategies; the first
// non-empty match wins.

type digitStrategy struct {
	name    string
	extract func(payload map[string]any) string
}

var digitStrategies = []digitStrategy{
	{"top-level digit", fromKey("digit")},
	{"top-level digits", fromKey("digits")},
	{"result object", fromObject("result")},
	{"dtmf object", fromObject("dtmf")},
}

// ExtractDigits normalizes the gather payload into a single trimmed digit
// string, or "" when no strategy matches.
func ExtractDigits(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	for _, s := range digitStrategies {
		if d := s.extract(payload); d != "" {
			return d
		}
	}
	return ""
}

func fromKey(key string) func(map[string]any) string {
	return func(payload map[string]any) string {
		return stringify(payload[key])
	}
}

func fromObject(key string) func(map[string]any) string {
	return func(payload map[string]any) string {
		obj, ok := payload[key].(map[string]any)
		if !ok {
			return ""
		}
		if d := stringify(obj["digits"]); d != "" {
			return d
		}
		return stringify(obj["digit"])
	}
}

// stringify renders scalar JSON values the way the provider means them:
// numbers without a trailing ".0", everything trimmed.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
