package index

import (
	"strconv"
	"strings"
	"time"
)

// Filter narrows a search to matching documents. The zero value matches all
// active documents. Backends interpret the struct directly; String renders
// the canonical OData-style form used for cache keys and request logging.
type Filter struct {
	UserID   string
	TenantID string
	Domain   string
	Category string
	Source   string

	MinAIConfidence float64
	MinImportance   float64
	Since           *time.Time

	// Tags match when the document carries any of them (OR semantics).
	Tags []string
}

// String renders the filter as a conjunction. Every filter starts with the
// active-record clause; tag alternatives are grouped in parentheses.
func (f Filter) String() string {
	var b strings.Builder
	b.WriteString("is_active eq true")

	writeEq := func(field, value string) {
		if value == "" {
			return
		}
		b.WriteString(" and ")
		b.WriteString(field)
		b.WriteString(" eq '")
		b.WriteString(escapeQuotes(value))
		b.WriteString("'")
	}
	writeGe := func(field string, value float64) {
		if value <= 0 {
			return
		}
		b.WriteString(" and ")
		b.WriteString(field)
		b.WriteString(" ge ")
		b.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
	}

	writeEq("user_id", f.UserID)
	writeEq("tenant_id", f.TenantID)
	writeEq("ontology_domain", f.Domain)
	writeEq("ontology_category", f.Category)
	writeEq("source", f.Source)
	writeGe("ai_confidence", f.MinAIConfidence)
	writeGe("importance_score", f.MinImportance)

	if f.Since != nil {
		b.WriteString(" and timestamp ge ")
		b.WriteString(f.Since.UTC().Format(time.RFC3339))
	}

	if len(f.Tags) > 0 {
		b.WriteString(" and (")
		for i, tag := range f.Tags {
			if i > 0 {
				b.WriteString(" or ")
			}
			b.WriteString("search.in('")
			b.WriteString(escapeQuotes(tag))
			b.WriteString("', ai_semantic_tags, ',')")
		}
		b.WriteString(")")
	}

	return b.String()
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
