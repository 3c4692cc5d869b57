package chatexport

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// normalizeMessage converts a loosely-typed message record into a Message.
// It never fails: missing or oddly typed fields degrade to defaults.
// fallback is used as the timestamp when the record carries none; nil leaves
// the timestamp unset.
func normalizeMessage(rec gjson.Result, fallback *float64) Message {
	return Message{
		Role:      resolveRole(rec),
		Content:   resolveContent(rec),
		Timestamp: resolveTimestamp(rec, fallback),
	}
}

func resolveRole(rec gjson.Result) Role {
	for _, path := range []string{"role", "author.role"} {
		switch strings.ToLower(strings.TrimSpace(rec.Get(path).String())) {
		case "user", "human":
			return RoleUser
		case "assistant":
			return RoleAssistant
		}
	}

	// Sender labels: "human" is the user, anything else is the model
	if sender := rec.Get("sender"); sender.Exists() {
		if strings.EqualFold(strings.TrimSpace(sender.String()), "human") {
			return RoleUser
		}
		return RoleAssistant
	}

	return RoleAssistant
}

func resolveContent(rec gjson.Result) string {
	if text := contentText(rec.Get("content")); text != "" {
		return text
	}
	if text := rec.Get("text"); text.Exists() && text.Type != gjson.Null {
		return text.String()
	}
	return ""
}

// contentText flattens the shapes vendors use for message bodies: a plain
// string, an object holding text parts, or an array of content blocks.
func contentText(v gjson.Result) string {
	switch {
	case !v.Exists(), v.Type == gjson.Null:
		return ""
	case v.Type == gjson.String:
		return v.Str
	case v.IsObject():
		if parts := v.Get("parts"); parts.IsArray() {
			return joinParts(parts)
		}
		return v.Get("text").String()
	case v.IsArray():
		var texts []string
		for _, block := range v.Array() {
			if block.Type == gjson.String {
				texts = append(texts, block.Str)
				continue
			}
			if t := block.Get("text"); t.Exists() {
				texts = append(texts, t.String())
			}
		}
		return strings.Join(texts, "\n")
	default:
		return v.String()
	}
}

// joinParts joins a list of text parts with newlines. Non-text parts
// (image pointers and the like) contribute an empty line.
func joinParts(parts gjson.Result) string {
	items := parts.Array()
	out := make([]string, 0, len(items))
	for _, p := range items {
		switch {
		case p.Type == gjson.String:
			out = append(out, p.Str)
		case p.Type == gjson.Number:
			out = append(out, p.Raw)
		case p.IsObject() && p.Get("text").Exists():
			out = append(out, p.Get("text").String())
		default:
			out = append(out, "")
		}
	}
	return strings.Join(out, "\n")
}

func resolveTimestamp(rec gjson.Result, fallback *float64) *float64 {
	for _, path := range []string{"timestamp", "created_at", "create_time"} {
		if ts, ok := numericInstant(rec.Get(path)); ok {
			return &ts
		}
	}
	if fallback == nil {
		return nil
	}
	ts := *fallback
	return &ts
}

// numericInstant recovers a numeric instant from a JSON value. Numbers are
// kept as-is whatever their unit; numeric strings are parsed; RFC 3339
// strings become Unix milliseconds. Zero counts as absent.
func numericInstant(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, v.Num != 0
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, f != 0
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return float64(t.UnixMilli()), true
			}
		}
	}
	return 0, false
}

// firstString returns the first non-empty string found at paths, or def
func firstString(rec gjson.Result, def string, paths ...string) string {
	for _, path := range paths {
		v := rec.Get(path)
		if v.Type != gjson.String && v.Type != gjson.Number {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return def
}
