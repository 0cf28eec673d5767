package frontmatter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultOrder places pages without an explicit order after ordered ones.
const DefaultOrder = 999

// PageMeta holds the front matter keys the site engine understands.
type PageMeta struct {
	Title       string
	Description string
	Icon        string
	Badge       string
	Order       float64
	HasOrder    bool
}

// ParseMeta extracts PageMeta from decoded front matter. Unknown keys are ignored.
func ParseMeta(fields map[string]any) PageMeta {
	m := PageMeta{
		Title:       stringField(fields, "title"),
		Description: stringField(fields, "description"),
		Icon:        stringField(fields, "icon"),
		Badge:       stringField(fields, "badge"),
		Order:       DefaultOrder,
	}
	if v, ok := numberField(fields, "order"); ok {
		m.Order = v
		m.HasOrder = true
	}
	return m
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

func numberField(fields map[string]any, key string) (float64, bool) {
	switch v := fields[key].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float64:
		if math.IsNaN(v) {
			return 0, false
		}
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
