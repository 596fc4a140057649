package llm

import (
	"fmt"
	"strings"

	"github.com/mindloom/mindloom/internal/ontology"
)

// NoAnswerSentinel is the exact phrase the answer prompt instructs the model
// to return when the provided memories cannot answer the question. Callers
// compare against it to distinguish "no answer" from an answer.
const NoAnswerSentinel = "I don't have that in your memories yet."

// maxOntologyHints caps how many classifier results are embedded in the
// analysis prompt.
const maxOntologyHints = 3

// BuildAnalysisPrompt builds the semantic analysis prompt for a piece of
// content. Ontology hints ground the model's domain choice in the same
// catalog the rule-based classifier uses; userContext carries known profile
// facts so the model resolves pronouns and references correctly.
func BuildAnalysisPrompt(content string, hints []ontology.Classification, userContext string) string {
	var b strings.Builder

	b.WriteString("You are a memory analyst for a personal digital twin. ")
	b.WriteString("Analyze the message below and respond with ONLY a JSON object, no other text.\n\n")

	if userContext != "" {
		b.WriteString("Known facts about the user:\n")
		b.WriteString(userContext)
		b.WriteString("\n\n")
	}

	if len(hints) > 0 {
		b.WriteString("A rule-based classifier matched these concepts (strongest first):\n")
		for i, h := range hints {
			if i >= maxOntologyHints {
				break
			}
			fmt.Fprintf(&b, "- %s (domain %s, category %s, score %.2f)\n", h.ConceptName, h.Domain, h.Category, h.Score)
		}
		b.WriteString("Use them as hints, not ground truth.\n\n")
	}

	b.WriteString("Message:\n\"\"\"\n")
	b.WriteString(content)
	b.WriteString("\n\"\"\"\n\n")

	b.WriteString(`Respond with this JSON structure:
{
  "entities": [{"name": "...", "type": "person|organization|location|time|date|object|other"}],
  "relationships": [{"from": "...", "to": "...", "type": "..."}],
  "context": {
    "primary_intent": "...",
    "implicit_meaning": "...",
    "urgency_level": "low|medium|high|critical",
    "importance_level": "low|medium|high|critical",
    "emotional_tone": "...",
    "temporal_scope": "past|present|future|ongoing",
    "personal_information_type": "..."
  },
  "semantic_tags": ["..."],
  "semantic_concepts": ["..."],
  "domain_classification": {"primary_domain": "...", "confidence": 0.0, "reasoning": "..."},
  "confidence": 0.0
}`)

	return b.String()
}

// BuildQuestionAnalysisPrompt builds the retrieval-planning prompt for a
// user question.
func BuildQuestionAnalysisPrompt(question string) string {
	var b strings.Builder

	b.WriteString("Analyze this question about a user's stored memories. ")
	b.WriteString("Respond with ONLY a JSON object, no other text.\n\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(`Respond with this JSON structure:
{
  "question_type": "personal_info|preference|event|factual|other",
  "key_entities": ["..."],
  "search_terms": ["..."],
  "expected_answer_type": "name|place|time|fact|list|other",
  "domain": "..."
}`)

	return b.String()
}

// BuildAnswerPrompt builds the answer-synthesis prompt from the question and
// the retrieved memory texts. The no-invented-facts rule is enforced in the
// prompt and double-checked by the caller via NoAnswerSentinel.
func BuildAnswerPrompt(question string, memories []string) string {
	var b strings.Builder

	b.WriteString("You answer questions about a user using ONLY their stored memories below. ")
	b.WriteString("Never invent facts. If the memories do not contain the answer, reply with exactly: ")
	b.WriteString(NoAnswerSentinel)
	b.WriteString("\n\nMemories:\n")
	for i, m := range memories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer in one or two sentences, directly, without preamble:")

	return b.String()
}

// BuildRelevancePrompt asks the model to rate how relevant one memory is to
// a question, as a bare number in [0,1].
func BuildRelevancePrompt(question, memory string) string {
	var b strings.Builder

	b.WriteString("Rate how relevant this memory is to the question on a scale from 0.0 to 1.0. ")
	b.WriteString("Respond with ONLY the number.\n\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nMemory: ")
	b.WriteString(memory)

	return b.String()
}
