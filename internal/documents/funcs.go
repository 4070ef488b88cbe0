package documents

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/angelmondragon/printshop-backend/pkg/db/models"
)

func funcMap() template.FuncMap {
	return template.FuncMap{
		"field":      field,
		"first":      first,
		"items":      items,
		"strs":       strs,
		"paragraphs": paragraphs,
		"pair": func(a, b string) struct{ First, Second string } {
			return struct{ First, Second string }{a, b}
		},
	}
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case models.FormData:
		return m
	case map[string]any:
		return m
	default:
		return nil
	}
}

// field renders a scalar form value as text. Missing keys render empty.
func field(v any, key string) string {
	m := asMap(v)
	if m == nil {
		return ""
	}
	switch val := m[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.2f", val)
	case fmt.Stringer:
		return val.String()
	case bool, int, int64:
		return fmt.Sprint(val)
	default:
		return ""
	}
}

func first(v any, keys ...string) string {
	for _, key := range keys {
		if s := field(v, key); s != "" {
			return s
		}
	}
	return ""
}

func items(v any, key string) []map[string]any {
	m := asMap(v)
	if m == nil {
		return nil
	}
	switch list := m[key].(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if entry, ok := item.(map[string]any); ok {
				out = append(out, entry)
			}
		}
		return out
	default:
		return nil
	}
}

// strs accepts a list or a comma separated string under the first non-empty key.
func strs(v any, keys ...string) []string {
	m := asMap(v)
	if m == nil {
		return nil
	}
	for _, key := range keys {
		var out []string
		switch val := m[key].(type) {
		case []string:
			out = val
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
		case string:
			for _, part := range strings.Split(val, ",") {
				if s := strings.TrimSpace(part); s != "" {
					out = append(out, s)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func paragraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p := strings.TrimSpace(block); p != "" {
			out = append(out, p)
		}
	}
	return out
}
