package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mindloom/mindloom/internal/llm"
	"github.com/mindloom/mindloom/internal/ontology"
	"github.com/mindloom/mindloom/pkg/types"
)

func analysisWithDomain(domain string, conf float64) *llm.Analysis {
	return &llm.Analysis{
		DomainClassification: types.DomainClassification{PrimaryDomain: domain, Confidence: conf},
		Confidence:           conf,
	}
}

func classification(domain, category string, score float64) *ontology.Classification {
	return &ontology.Classification{
		ConceptID: domain + "." + category, ConceptName: category,
		Domain: domain, Category: category, Score: score,
	}
}

func TestSynthesize_Agreement(t *testing.T) {
	// avg(0.8, 0.5) * 1.2 = 0.78.
	h := Synthesize(classification("personal", "identity", 0.8), analysisWithDomain("personal", 0.5))

	assert.Equal(t, "personal", h.PrimaryDomain)
	assert.Equal(t, "identity", h.PrimaryCategory)
	assert.True(t, h.OntologyAgreement)
	assert.InDelta(t, 0.78, h.SynthesisConfidence, 1e-9)
}

func TestSynthesize_AgreementClamps(t *testing.T) {
	// avg(2.0, 0.9) * 1.2 = 1.74 clamps to 1.
	h := Synthesize(classification("work", "meeting", 2.0), analysisWithDomain("work", 0.9))
	assert.True(t, h.OntologyAgreement)
	assert.InDelta(t, 1.0, h.SynthesisConfidence, 1e-9)
}

func TestSynthesize_LLMDominates(t *testing.T) {
	// llm 0.9 > 1.5 * ontology 0.5.
	h := Synthesize(classification("work", "meeting", 0.5), analysisWithDomain("personal", 0.9))

	assert.Equal(t, "personal", h.PrimaryDomain)
	assert.Equal(t, "ai_derived", h.PrimaryCategory)
	assert.False(t, h.OntologyAgreement)
	assert.InDelta(t, 0.9, h.SynthesisConfidence, 1e-9)
}

func TestSynthesize_OntologyDominates(t *testing.T) {
	// ontology 0.9 > 1.5 * llm 0.3.
	h := Synthesize(classification("personal", "identity", 0.9), analysisWithDomain("work", 0.3))

	assert.Equal(t, "personal", h.PrimaryDomain)
	assert.Equal(t, "identity", h.PrimaryCategory)
	assert.InDelta(t, 0.9, h.SynthesisConfidence, 1e-9)
}

func TestSynthesize_DisagreementWithoutDominance(t *testing.T) {
	// ontology 0.6 vs llm 0.7: neither exceeds 1.5x, llm is higher,
	// confidence is the average.
	h := Synthesize(classification("work", "meeting", 0.6), analysisWithDomain("personal", 0.7))

	assert.Equal(t, "personal", h.PrimaryDomain)
	assert.Equal(t, "ai_derived", h.PrimaryCategory)
	assert.False(t, h.OntologyAgreement)
	assert.InDelta(t, 0.65, h.SynthesisConfidence, 1e-9)

	h = Synthesize(classification("work", "meeting", 0.7), analysisWithDomain("personal", 0.6))
	assert.Equal(t, "work", h.PrimaryDomain)
	assert.Equal(t, "meeting", h.PrimaryCategory)
	assert.InDelta(t, 0.65, h.SynthesisConfidence, 1e-9)
}

func TestSynthesize_SingleSides(t *testing.T) {
	h := Synthesize(classification("personal", "identity", 0.8), nil)
	assert.Equal(t, "personal", h.PrimaryDomain)
	assert.Equal(t, "identity", h.PrimaryCategory)
	assert.InDelta(t, 0.8, h.SynthesisConfidence, 1e-9)

	h = Synthesize(nil, analysisWithDomain("work", 0.85))
	assert.Equal(t, "work", h.PrimaryDomain)
	assert.Equal(t, "ai_derived", h.PrimaryCategory)
	assert.InDelta(t, 0.85, h.SynthesisConfidence, 1e-9)

	h = Synthesize(nil, nil)
	assert.Equal(t, "general", h.PrimaryDomain)
	assert.Equal(t, "unclassified", h.PrimaryCategory)
	assert.InDelta(t, 0.3, h.SynthesisConfidence, 1e-9)
}

func TestOntologyConfidence(t *testing.T) {
	assert.InDelta(t, 0.4, OntologyConfidence(1.0), 1e-9)
	assert.InDelta(t, 1.0, OntologyConfidence(3.0), 1e-9, "scores above the scale clamp")
	assert.Zero(t, OntologyConfidence(0))
}

func TestImportanceScore(t *testing.T) {
	r := &types.MemoryRecord{
		AIConfidence: 0.9,
		Hybrid:       types.HybridClassification{SynthesisConfidence: 0.8},
		AIContext: types.ContextUnderstanding{
			UrgencyLevel:    "critical",
			ImportanceLevel: "high",
		},
		AIExtractedEntities: []types.Entity{{Name: "a"}, {Name: "b"}},
		AIRelationships:     []types.Relation{{From: "a", To: "b"}},
	}

	// 0.3*0.9 + 0.2*0.8 + 0.25*1.0 + 0.25*0.8 + 0.2 + 0.1 = 1.18 clamps to 1.
	assert.InDelta(t, 1.0, ImportanceScore(r), 1e-9)
}

func TestImportanceScore_LowSignal(t *testing.T) {
	r := &types.MemoryRecord{
		AIConfidence: 0.5,
		Hybrid:       types.HybridClassification{SynthesisConfidence: 0.4},
		AIContext: types.ContextUnderstanding{
			UrgencyLevel:    "low",
			ImportanceLevel: "low",
		},
	}

	// 0.3*0.5 + 0.2*0.4 + 0.25*0.2 + 0.25*0.2 = 0.33.
	assert.InDelta(t, 0.33, ImportanceScore(r), 1e-9)
}

func TestImportanceScore_EntityBonusCaps(t *testing.T) {
	entities := make([]types.Entity, 10)
	relations := make([]types.Relation, 10)
	r := &types.MemoryRecord{
		AIExtractedEntities: entities,
		AIRelationships:     relations,
		AIContext:           types.ContextUnderstanding{UrgencyLevel: "low", ImportanceLevel: "low"},
	}

	// 0.25*0.2*2 + 0.5 + 0.3 = 0.9: both bonuses hit their caps.
	assert.InDelta(t, 0.9, ImportanceScore(r), 1e-9)
}

func TestLevelWeight(t *testing.T) {
	assert.Equal(t, 0.2, levelWeight("low"))
	assert.Equal(t, 0.5, levelWeight("medium"))
	assert.Equal(t, 0.8, levelWeight("high"))
	assert.Equal(t, 1.0, levelWeight("critical"))
	assert.Equal(t, 0.5, levelWeight(""), "unknown levels count as medium")
}
