package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fullProfile() *Profile {
	return &Profile{
		UserID:   "u-1",
		Name:     "Priya",
		Employer: "Initech",
		Role:     "engineer",
		Location: "Berlin",
		Likes:    []string{"tennis", "sushi"},
		Dislikes: []string{"spicy food"},
		Sports:   []string{"tennis"},
		Foods:    []string{"sushi"},
		Domain:   "priya.dev",

		AssistantName: "Nova",
	}
}

func TestTemplateAnswer(t *testing.T) {
	p := fullProfile()

	tests := []struct {
		question string
		want     string
	}{
		{"What is my name?", "Your name is Priya."},
		{"what's my name", "Your name is Priya."},
		{"Where do I work?", "You work at Initech as an engineer."},
		{"What is my job?", "You work as an engineer at Initech."},
		{"Where do I live?", "You live in Berlin."},
		{"What do I like?", "You like tennis and sushi."},
		{"What do I dislike?", "You don't like spicy food."},
		{"What sports do I play?", "You like tennis."},
		{"What foods do I like?", "You like sushi."},
		{"What is my website?", "Your website is priya.dev."},
		{"What is your name?", "My name is Nova."},
		{"Who are you?", "My name is Nova."},
	}
	for _, tt := range tests {
		got, ok := TemplateAnswer(tt.question, p)
		assert.True(t, ok, "question: %q", tt.question)
		assert.Equal(t, tt.want, got, "question: %q", tt.question)
	}
}

func TestTemplateAnswer_NonCanonicalFallsThrough(t *testing.T) {
	p := fullProfile()

	for _, q := range []string{
		"What did I say about the budget meeting?",
		"Do I have anything on Friday?",
		"Tell me about my week",
	} {
		_, ok := TemplateAnswer(q, p)
		assert.False(t, ok, "question: %q", q)
	}
}

func TestTemplateAnswer_MissingFactFallsThrough(t *testing.T) {
	_, ok := TemplateAnswer("What is my name?", &Profile{UserID: "u-1"})
	assert.False(t, ok, "no stored name means the full pipeline runs")

	_, ok = TemplateAnswer("What is my name?", nil)
	assert.False(t, ok)
}

func TestTemplateAnswer_AssistantNameUnset(t *testing.T) {
	_, ok := TemplateAnswer("What is your name?", &Profile{UserID: "u-1", Name: "Priya"})
	assert.False(t, ok, "the user's own name never answers for the assistant")
}

func TestTemplateAnswer_EmployerWithoutRole(t *testing.T) {
	p := &Profile{UserID: "u-1", Employer: "Initech"}
	got, ok := TemplateAnswer("where do I work", p)
	assert.True(t, ok)
	assert.Equal(t, "You work at Initech.", got)
}

func TestNormalizeQuestion(t *testing.T) {
	assert.Equal(t, "whats my name", normalizeQuestion("  What's   my NAME?! "))
	assert.Equal(t, "where do i work", normalizeQuestion("Where do I work?"))
}

func TestJoinList(t *testing.T) {
	assert.Equal(t, "", joinList(nil))
	assert.Equal(t, "tennis", joinList([]string{"tennis"}))
	assert.Equal(t, "tennis and sushi", joinList([]string{"tennis", "sushi"}))
	assert.Equal(t, "a, b, and c", joinList([]string{"a", "b", "c"}))
}
