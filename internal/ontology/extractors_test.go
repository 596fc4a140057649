package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func concept(t *testing.T, id string) *Concept {
	t.Helper()
	c, ok := DefaultCatalog().Concept(id)
	require.True(t, ok, "concept %s missing from default catalog", id)
	return c
}

func TestExtractProperties_Identity(t *testing.T) {
	props := ExtractProperties("My name is Priya and I work at Helios Labs.", concept(t, "personal.identity"))
	assert.Equal(t, "Priya", props["name"])
}

func TestExtractProperties_Employment(t *testing.T) {
	props := ExtractProperties(
		"My name is Priya and I work at Helios Labs as a staff engineer.",
		concept(t, "work.employment"))

	assert.Equal(t, "Helios Labs", props["company"])
	assert.Equal(t, "staff engineer", props["role"])
}

func TestExtractProperties_EmploymentDomain(t *testing.T) {
	props := ExtractProperties("I work for Acme Inc, our site is acme.com", concept(t, "work.employment"))
	assert.Equal(t, "acme.com", props["domain"])
	assert.Equal(t, "Acme Inc", props["company"])
}

func TestExtractProperties_Urgency(t *testing.T) {
	meeting := concept(t, "work.meeting")

	props := ExtractProperties("urgent meeting about the deck", meeting)
	assert.Equal(t, "high", props["urgency"])

	props = ExtractProperties("need the numbers ASAP before the call", meeting)
	assert.Equal(t, "critical", props["urgency"])

	props = ExtractProperties("meeting tomorrow morning", meeting)
	_, ok := props["urgency"]
	assert.False(t, ok, "no urgency keyword means no urgency property")
}

func TestExtractProperties_Preference(t *testing.T) {
	props := ExtractProperties("I don't like spicy food.", concept(t, "personal.preference"))

	assert.Equal(t, "dislike", props["preference_type"])
	assert.Equal(t, "spicy food", props["subject"])
}

func TestExtractProperties_DurationNormalizedToMinutes(t *testing.T) {
	tt := concept(t, "work.time_tracking")

	props := ExtractProperties("Spent 2 hours on the report", tt)
	assert.Equal(t, float64(120), props["duration_minutes"])

	props = ExtractProperties("logged 45 minutes of review", tt)
	assert.Equal(t, float64(45), props["duration_minutes"])
}

func TestExtractProperties_MeetingTime(t *testing.T) {
	props := ExtractProperties("standup moved to 2pm today", concept(t, "work.meeting"))
	assert.Equal(t, "2pm", props["time"])
}

func TestExtractProperties_Location(t *testing.T) {
	props := ExtractProperties("I moved to Berlin last spring", concept(t, "personal.location"))
	assert.Equal(t, "Berlin", props["location"])
}

func TestExtractEntities_MeetingScenario(t *testing.T) {
	entities := ExtractEntities("URGENT: meeting with Sam and Dee about the Q3 board deck moved to 2pm today.")

	byName := make(map[string]string)
	for _, e := range entities {
		byName[e.Name] = e.Type
	}

	assert.Equal(t, "person", byName["Sam"])
	assert.Equal(t, "person", byName["Dee"])
	assert.Equal(t, "time", byName["2pm"])
	assert.GreaterOrEqual(t, len(entities), 2)
}

func TestExtractEntities_Organization(t *testing.T) {
	entities := ExtractEntities("My name is Priya and I work at Helios Labs as a staff engineer.")

	byName := make(map[string]string)
	for _, e := range entities {
		byName[e.Name] = e.Type
	}

	assert.Equal(t, "person", byName["Priya"])
	assert.Equal(t, "organization", byName["Helios Labs"])
}

func TestExtractEntities_DatesAndDedup(t *testing.T) {
	entities := ExtractEntities("Dinner with Maria on 12/05/2026. Maria confirmed.")

	var names []string
	for _, e := range entities {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "Maria")
	assert.Contains(t, names, "12/05/2026")

	count := 0
	for _, n := range names {
		if n == "Maria" {
			count++
		}
	}
	assert.Equal(t, 1, count, "repeated mentions collapse to one entity")
}

func TestExtractEntities_SkipsSentenceOpeners(t *testing.T) {
	entities := ExtractEntities("Today I slept badly. Remember to rest.")
	assert.Empty(t, entities)
}
