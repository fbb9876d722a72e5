package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record sources.
const (
	SourceOverpass = "overpass"
	SourceSerpAPI  = "serpapi"
)

// RawPoiRecord is an upstream record with no fixed schema. Accessors never
// fail: absent or mistyped fields yield the zero value.
type RawPoiRecord struct {
	Source string
	Fields map[string]any
}

// DecodeRecords turns a JSON array of objects into records. Non-object
// entries are skipped.
func DecodeRecords(source string, items []json.RawMessage) []RawPoiRecord {
	out := make([]RawPoiRecord, 0, len(items))
	for _, item := range items {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			continue
		}
		out = append(out, RawPoiRecord{Source: source, Fields: fields})
	}
	return out
}

// String returns the field as trimmed text. Numbers are formatted; other types yield "".
func (r RawPoiRecord) String(key string) string {
	switch v := r.Fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Float returns the field as a number. Numeric strings are parsed.
func (r RawPoiRecord) Float(key string) (float64, bool) {
	switch v := r.Fields[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns a boolean field. "yes"/"no" strings are accepted.
func (r RawPoiRecord) Bool(key string) (bool, bool) {
	switch v := r.Fields[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true":
			return true, true
		case "no", "false":
			return false, true
		}
	}
	return false, false
}

// Strings returns a string list field. A bare string becomes a one-element list.
func (r RawPoiRecord) Strings(key string) []string {
	switch v := r.Fields[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{strings.TrimSpace(v)}
	default:
		return nil
	}
}

// Object returns a nested object field as a record of the same source.
func (r RawPoiRecord) Object(key string) RawPoiRecord {
	m, _ := r.Fields[key].(map[string]any)
	return RawPoiRecord{Source: r.Source, Fields: m}
}

// Has reports whether the field is present and non-null.
func (r RawPoiRecord) Has(key string) bool {
	v, ok := r.Fields[key]
	return ok && v != nil
}

// Tags returns the string-valued entries of the "tags" mapping.
func (r RawPoiRecord) Tags() map[string]string {
	raw, _ := r.Fields["tags"].(map[string]any)
	tags := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			tags[k] = strings.TrimSpace(s)
		}
	}
	return tags
}
