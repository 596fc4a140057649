// Package types defines the canonical record model shared by every component
// of the Mindloom pipeline. The MemoryRecord is the single source of truth:
// index documents are serialized from it, never the other way around.
package types

import (
	"sort"
	"strings"
	"time"
)

// Source values distinguish how a memory entered the pipeline. Behavioral
// events and chat statements flow through the same ingestion path; downstream
// filters separate them by this field.
const (
	SourceChat  = "chat"
	SourceEvent = "behavioral_event"
	SourceChunk = "document_chunk"
)

// Entity is a named entity extracted from memory content.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"` // person, organization, time, date, location, other
}

// Relation is a directed relation between two extracted entities.
type Relation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// DomainClassification is the LLM's view of which domain a memory belongs to.
type DomainClassification struct {
	PrimaryDomain string  `json:"primary_domain"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning,omitempty"`
}

// ContextUnderstanding captures the LLM's structured reading of a memory:
// intent, urgency, tone, and how the content relates to the user personally.
type ContextUnderstanding struct {
	PrimaryIntent    string               `json:"primary_intent,omitempty"`
	ImplicitMeaning  string               `json:"implicit_meaning,omitempty"`
	UrgencyLevel     string               `json:"urgency_level,omitempty"`     // low, medium, high, critical
	ImportanceLevel  string               `json:"importance_level,omitempty"`  // low, medium, high, critical
	EmotionalTone    string               `json:"emotional_tone,omitempty"`
	TemporalScope    string               `json:"temporal_scope,omitempty"`
	PersonalInfoType string               `json:"personal_information_type,omitempty"`
	Domain           DomainClassification `json:"domain_classification"`
}

// HybridClassification is the fused outcome of ontology scoring and LLM
// analysis carried on every record.
type HybridClassification struct {
	PrimaryDomain       string  `json:"primary_domain"`
	PrimaryCategory     string  `json:"primary_category"`
	SynthesisConfidence float64 `json:"synthesis_confidence"`
	OntologyAgreement   bool    `json:"ontology_agreement"`
	DecisionReasoning   string  `json:"decision_reasoning,omitempty"`
}

// MemoryRecord is a single atomic unit of stored knowledge produced by the
// ingestion pipeline. It carries the raw content, both classification sides
// (rule-based ontology and LLM analysis), the fused synthesis, and the
// derived search auxiliaries.
type MemoryRecord struct {
	// Provenance
	ID        string     `json:"id"` // format: mem:<uuid>
	UserID    string     `json:"user_id"`
	TenantID  string     `json:"tenant_id,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	Source    string     `json:"source"`
	Timestamp time.Time  `json:"timestamp"`
	Version   int        `json:"version"`
	IsActive  bool       `json:"is_active"`
	Expiry    *time.Time `json:"expiry,omitempty"`

	Content string `json:"content"`

	// Ontology side (rule-based classifier)
	OntologyDomain     string         `json:"ontology_domain,omitempty"`
	OntologyCategory   string         `json:"ontology_category,omitempty"`
	OntologyConceptID  string         `json:"ontology_concept_id,omitempty"`
	OntologyProperties map[string]any `json:"ontology_properties,omitempty"`
	OntologyConfidence float64        `json:"ontology_confidence"`

	// AI side (LLM semantic analyzer)
	AISemanticConcepts  []string             `json:"ai_semantic_concepts,omitempty"`
	AIExtractedEntities []Entity             `json:"ai_extracted_entities,omitempty"`
	AIRelationships     []Relation           `json:"ai_relationships,omitempty"`
	AIContext           ContextUnderstanding `json:"ai_context_understanding"`
	AISemanticTags      []string             `json:"ai_semantic_tags,omitempty"`
	AIConfidence        float64              `json:"ai_confidence"`
	AIReasoning         string               `json:"ai_reasoning,omitempty"`

	// Synthesis
	Hybrid          HybridClassification `json:"hybrid_classification"`
	SemanticSummary string               `json:"semantic_summary,omitempty"`
	ImportanceScore float64              `json:"importance_score"`

	// Search auxiliaries, recomputed on every write via DeriveSearchFields.
	SearchableContent string    `json:"searchable_content,omitempty"`
	AllTags           []string  `json:"all_tags,omitempty"`
	ContentVector     []float32 `json:"content_vector,omitempty"`
}

// DeriveSearchFields recomputes SearchableContent and AllTags from the other
// record fields. It must be called before every write; the stored copies are
// never used to regenerate these fields.
func (r *MemoryRecord) DeriveSearchFields() {
	r.SearchableContent = r.buildSearchableContent()
	r.AllTags = r.buildAllTags()
}

// buildSearchableContent concatenates the content, semantic concepts, entity
// names, summary, and ontology labels into a single lexical search target.
func (r *MemoryRecord) buildSearchableContent() string {
	parts := make([]string, 0, 8)
	appendPart := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	appendPart(r.Content)
	for _, c := range r.AISemanticConcepts {
		appendPart(c)
	}
	for _, e := range r.AIExtractedEntities {
		appendPart(e.Name)
	}
	appendPart(r.OntologyDomain)
	appendPart(r.OntologyCategory)
	appendPart(r.SemanticSummary)

	return strings.Join(parts, " ")
}

// buildAllTags returns the lowercase, deduplicated union of the semantic
// tags, the ontology domain and category, and the urgency/importance markers.
// Missing components are omitted.
func (r *MemoryRecord) buildAllTags() []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, t := range r.AISemanticTags {
		add(t)
	}
	add(r.OntologyDomain)
	add(r.OntologyCategory)
	if u := r.AIContext.UrgencyLevel; u != "" {
		add("urgency:" + u)
	}
	if i := r.AIContext.ImportanceLevel; i != "" {
		add("importance:" + i)
	}

	sort.Strings(tags)
	return tags
}

// EntityNames returns the names of all extracted entities, in order.
func (r *MemoryRecord) EntityNames() []string {
	names := make([]string, len(r.AIExtractedEntities))
	for i, e := range r.AIExtractedEntities {
		names[i] = e.Name
	}
	return names
}

// HasTag reports whether the given tag is present in AllTags.
// The comparison is case-insensitive, matching the AllTags normalization.
func (r *MemoryRecord) HasTag(tag string) bool {
	tag = strings.ToLower(tag)
	for _, t := range r.AllTags {
		if t == tag {
			return true
		}
	}
	return false
}
