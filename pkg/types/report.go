package types

// IngestReport summarizes a single ingestion for the caller. ProcessingTime
// is wall-clock seconds from validation to upsert (or queue handoff when
// async upserts are enabled).
type IngestReport struct {
	Success          bool    `json:"success"`
	MemoryID         string  `json:"memory_id"`
	ProcessingTime   float64 `json:"processing_time_s"`
	OntologyDomain   string  `json:"ontology_domain,omitempty"`
	AIConfidence     float64 `json:"ai_confidence"`
	HybridConfidence float64 `json:"hybrid_confidence"`
	ImportanceScore  float64 `json:"importance_score"`
	SemanticSummary  string  `json:"semantic_summary,omitempty"`

	// Degraded is true when LLM analysis failed and the record was written
	// from the ontology-only fallback path.
	Degraded bool `json:"degraded,omitempty"`
}
