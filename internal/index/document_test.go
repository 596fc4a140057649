package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindloom/mindloom/pkg/types"
)

func testRecord(t *testing.T) *types.MemoryRecord {
	t.Helper()
	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &types.MemoryRecord{
		ID:        "mem:0c9d7f3e",
		UserID:    "u-1",
		TenantID:  "acme",
		SessionID: "s-9",
		Source:    types.SourceChat,
		Timestamp: time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC),
		Version:   2,
		IsActive:  true,
		Expiry:    &expiry,
		Content:   "My name is Priya and I work at Helios Labs.",

		OntologyDomain:     "personal",
		OntologyCategory:   "identity",
		OntologyConceptID:  "personal.identity",
		OntologyProperties: map[string]any{"name": "Priya"},
		OntologyConfidence: 0.9,

		AISemanticConcepts:  []string{"self-introduction"},
		AIExtractedEntities: []types.Entity{{Name: "Priya", Type: "person"}},
		AIRelationships:     []types.Relation{{From: "Priya", To: "Helios Labs", Type: "works_at"}},
		AIContext: types.ContextUnderstanding{
			PrimaryIntent:    "introduce self",
			UrgencyLevel:     "low",
			ImportanceLevel:  "high",
			PersonalInfoType: "identity",
		},
		AISemanticTags: []string{"identity", "employment"},
		AIConfidence:   0.88,
		AIReasoning:    "user states their name and employer",

		Hybrid: types.HybridClassification{
			PrimaryDomain:       "personal",
			PrimaryCategory:     "identity",
			SynthesisConfidence: 0.91,
			OntologyAgreement:   true,
		},
		SemanticSummary: "User introduces herself and her employer",
		ImportanceScore: 0.74,
		ContentVector:   []float32{0.1, 0.2, 0.3},
	}
	r.DeriveSearchFields()
	return r
}

func TestDocumentRoundTrip(t *testing.T) {
	r := testRecord(t)

	doc, err := FromRecord(r)
	require.NoError(t, err)
	assert.Equal(t, r.Hybrid.SynthesisConfidence, doc.HybridConfidence)
	assert.NotEmpty(t, doc.EntitiesJSON)

	got, err := doc.ToRecord()
	require.NoError(t, err)

	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.Expiry, got.Expiry)
	assert.Equal(t, r.AIExtractedEntities, got.AIExtractedEntities)
	assert.Equal(t, r.AIRelationships, got.AIRelationships)
	assert.Equal(t, r.AIContext, got.AIContext)
	assert.Equal(t, r.AISemanticConcepts, got.AISemanticConcepts)
	assert.Equal(t, r.AIReasoning, got.AIReasoning)
	assert.Equal(t, r.Hybrid, got.Hybrid)
	assert.Equal(t, r.AllTags, got.AllTags)
	assert.Equal(t, r.SearchableContent, got.SearchableContent)
	assert.Equal(t, r.ContentVector, got.ContentVector)
	assert.Equal(t, "Priya", got.OntologyProperties["name"])
}

func TestDocumentRoundTrip_EmptyBlobs(t *testing.T) {
	r := &types.MemoryRecord{
		ID: "mem:empty", UserID: "u-1", Source: types.SourceChat,
		Timestamp: time.Now().UTC(), Version: 1, IsActive: true,
		Content: "hello",
	}
	r.DeriveSearchFields()

	doc, err := FromRecord(r)
	require.NoError(t, err)

	got, err := doc.ToRecord()
	require.NoError(t, err)
	assert.Empty(t, got.AIExtractedEntities)
	assert.Nil(t, got.OntologyProperties)
}

func TestJoinSplitTags(t *testing.T) {
	tags := []string{"work", "urgency:high", " spaced "}
	csv := JoinTags(tags)
	assert.Equal(t, "work,urgency:high,spaced", csv)
	assert.Equal(t, []string{"work", "urgency:high", "spaced"}, SplitTags(csv))

	assert.Equal(t, "", JoinTags(nil))
	assert.Nil(t, SplitTags(" "))

	// Embedded commas cannot corrupt the format.
	assert.Equal(t, "a b,c", JoinTags([]string{"a,b", "c"}))
}
