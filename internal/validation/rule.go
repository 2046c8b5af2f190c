package validation

import (
	"strconv"
	"strings"

	"github.com/yeoul-labs/alimguard-backend/internal/platform/chroma"
	"github.com/yeoul-labs/alimguard-backend/internal/retrieval"
)

// Rule is a policy document lifted out of its vector-store metadata into
// typed fields. Zero values mean the field was absent.
type Rule struct {
	ID          string
	Content     string
	Type        string
	Category    string
	Priority    string
	Enforcement string

	MaxLength      int
	Field          string
	ForbiddenWords []string
	MaxButtons     int
	RequiredFields []string
}

func ruleFromDocument(doc chroma.Document) Rule {
	meta := doc.Metadata
	return Rule{
		ID:             doc.ID,
		Content:        doc.Text,
		Type:           metaString(meta, "type"),
		Category:       metaString(meta, "category"),
		Priority:       metaString(meta, "priority"),
		Enforcement:    metaString(meta, "enforcement"),
		MaxLength:      metaInt(meta, "max_length"),
		Field:          metaString(meta, "field"),
		ForbiddenWords: metaList(meta, "forbidden_words"),
		MaxButtons:     metaInt(meta, "max_buttons"),
		RequiredFields: metaList(meta, "required_fields"),
	}
}

func candidateDocument(c retrieval.Candidate) chroma.Document {
	return chroma.Document{ID: c.ID, Text: c.Text, Metadata: c.Metadata}
}

// IsError implements the severity rule: a violation is an error only when
// the rule is both high-stakes and strictly enforced.
func (r Rule) IsError() bool {
	p := strings.ToLower(r.Priority)
	return (p == "critical" || p == "high") && strings.ToLower(r.Enforcement) == "strict"
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// metaInt tolerates the numeric shapes JSON decoding produces.
func metaInt(meta map[string]any, key string) int {
	if meta == nil {
		return 0
	}
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// metaList accepts both a JSON array and a comma-separated string.
func metaList(meta map[string]any, key string) []string {
	if meta == nil {
		return nil
	}
	switch v := meta[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}
