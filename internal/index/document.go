package index

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mindloom/mindloom/pkg/types"
)

// Document is the flat, index-ready projection of a MemoryRecord. Nested
// record structures travel as JSON blobs; tag lists are stored CSV so the
// backends can match them with plain string operators.
type Document struct {
	ID        string
	UserID    string
	TenantID  string
	SessionID string
	Source    string
	Timestamp time.Time
	Version   int
	IsActive  bool
	Expiry    *time.Time

	Content           string
	SearchableContent string
	SemanticSummary   string

	OntologyDomain     string
	OntologyCategory   string
	OntologyConceptID  string
	OntologyConfidence float64

	AIConfidence     float64
	HybridConfidence float64
	ImportanceScore  float64

	SemanticTags []string
	AllTags      []string

	EntitiesJSON   string
	RelationsJSON  string
	ContextJSON    string
	HybridJSON     string
	PropertiesJSON string

	Vector []float32
}

// FromRecord projects a record into a document. The record's derived search
// fields must already be current (DeriveSearchFields is the caller's job; the
// adapter does it on every upsert).
func FromRecord(r *types.MemoryRecord) (*Document, error) {
	doc := &Document{
		ID:                 r.ID,
		UserID:             r.UserID,
		TenantID:           r.TenantID,
		SessionID:          r.SessionID,
		Source:             r.Source,
		Timestamp:          r.Timestamp,
		Version:            r.Version,
		IsActive:           r.IsActive,
		Expiry:             r.Expiry,
		Content:            r.Content,
		SearchableContent:  r.SearchableContent,
		SemanticSummary:    r.SemanticSummary,
		OntologyDomain:     r.OntologyDomain,
		OntologyCategory:   r.OntologyCategory,
		OntologyConceptID:  r.OntologyConceptID,
		OntologyConfidence: r.OntologyConfidence,
		AIConfidence:       r.AIConfidence,
		HybridConfidence:   r.Hybrid.SynthesisConfidence,
		ImportanceScore:    r.ImportanceScore,
		SemanticTags:       r.AISemanticTags,
		AllTags:            r.AllTags,
		Vector:             r.ContentVector,
	}

	var err error
	if doc.EntitiesJSON, err = marshalBlob(r.AIExtractedEntities); err != nil {
		return nil, fmt.Errorf("index: marshal entities for %s: %w", r.ID, err)
	}
	if doc.RelationsJSON, err = marshalBlob(r.AIRelationships); err != nil {
		return nil, fmt.Errorf("index: marshal relations for %s: %w", r.ID, err)
	}
	if doc.ContextJSON, err = marshalBlob(contextBlob{
		Context:          r.AIContext,
		SemanticConcepts: r.AISemanticConcepts,
		Reasoning:        r.AIReasoning,
	}); err != nil {
		return nil, fmt.Errorf("index: marshal context for %s: %w", r.ID, err)
	}
	if doc.HybridJSON, err = marshalBlob(r.Hybrid); err != nil {
		return nil, fmt.Errorf("index: marshal hybrid for %s: %w", r.ID, err)
	}
	if doc.PropertiesJSON, err = marshalBlob(r.OntologyProperties); err != nil {
		return nil, fmt.Errorf("index: marshal properties for %s: %w", r.ID, err)
	}

	return doc, nil
}

// contextBlob bundles the analysis context, concepts, and reasoning into one
// JSON column instead of three.
type contextBlob struct {
	Context          types.ContextUnderstanding `json:"context"`
	SemanticConcepts []string                   `json:"semantic_concepts,omitempty"`
	Reasoning        string                     `json:"reasoning,omitempty"`
}

// ToRecord rebuilds the full record from a stored document. It is the exact
// inverse of FromRecord for every field the document carries.
func (d *Document) ToRecord() (*types.MemoryRecord, error) {
	r := &types.MemoryRecord{
		ID:                 d.ID,
		UserID:             d.UserID,
		TenantID:           d.TenantID,
		SessionID:          d.SessionID,
		Source:             d.Source,
		Timestamp:          d.Timestamp,
		Version:            d.Version,
		IsActive:           d.IsActive,
		Expiry:             d.Expiry,
		Content:            d.Content,
		SearchableContent:  d.SearchableContent,
		SemanticSummary:    d.SemanticSummary,
		OntologyDomain:     d.OntologyDomain,
		OntologyCategory:   d.OntologyCategory,
		OntologyConceptID:  d.OntologyConceptID,
		OntologyConfidence: d.OntologyConfidence,
		AIConfidence:       d.AIConfidence,
		ImportanceScore:    d.ImportanceScore,
		AISemanticTags:     d.SemanticTags,
		AllTags:            d.AllTags,
		ContentVector:      d.Vector,
	}

	if err := unmarshalBlob(d.EntitiesJSON, &r.AIExtractedEntities); err != nil {
		return nil, fmt.Errorf("index: unmarshal entities for %s: %w", d.ID, err)
	}
	if err := unmarshalBlob(d.RelationsJSON, &r.AIRelationships); err != nil {
		return nil, fmt.Errorf("index: unmarshal relations for %s: %w", d.ID, err)
	}
	var cb contextBlob
	if err := unmarshalBlob(d.ContextJSON, &cb); err != nil {
		return nil, fmt.Errorf("index: unmarshal context for %s: %w", d.ID, err)
	}
	r.AIContext = cb.Context
	r.AISemanticConcepts = cb.SemanticConcepts
	r.AIReasoning = cb.Reasoning

	if err := unmarshalBlob(d.HybridJSON, &r.Hybrid); err != nil {
		return nil, fmt.Errorf("index: unmarshal hybrid for %s: %w", d.ID, err)
	}
	if err := unmarshalBlob(d.PropertiesJSON, &r.OntologyProperties); err != nil {
		return nil, fmt.Errorf("index: unmarshal properties for %s: %w", d.ID, err)
	}

	return r, nil
}

func marshalBlob(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalBlob(s string, v any) error {
	if strings.TrimSpace(s) == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

// JoinTags serializes a tag list to the stored CSV form. Commas inside tags
// are dropped to keep the format unambiguous.
func JoinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ReplaceAll(t, ",", " "))
		if t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}

// SplitTags parses the stored CSV form back to a tag list.
func SplitTags(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
