package session

import "strings"

// Canonical personal questions get answered straight from the profile,
// skipping retrieval and the LLM entirely. The match is deliberately strict:
// anything that does not normalize to one of these forms falls through to
// the full pipeline.

type templateKind int

const (
	templateNone templateKind = iota
	templateName
	templateEmployer
	templateRole
	templateLocation
	templateLikes
	templateDislikes
	templateSports
	templateFoods
	templateDomain
	templateAssistantName
)

var canonicalQuestions = map[string]templateKind{
	"what is my name":      templateName,
	"whats my name":        templateName,
	"who am i":             templateName,
	"where do i work":      templateEmployer,
	"who do i work for":    templateEmployer,
	"what is my job":       templateRole,
	"whats my job":         templateRole,
	"what is my role":      templateRole,
	"what do i do":         templateRole,
	"where do i live":      templateLocation,
	"what is my location":  templateLocation,
	"what do i like":       templateLikes,
	"what are my hobbies":  templateLikes,
	"what do i enjoy":      templateLikes,
	"what do i dislike":    templateDislikes,
	"what dont i like":     templateDislikes,
	"what do i not like":   templateDislikes,
	"what foods do i hate": templateDislikes,

	"what sports do i like":    templateSports,
	"what sports do i play":    templateSports,
	"what sport do i play":     templateSports,
	"what foods do i like":     templateFoods,
	"what food do i like":      templateFoods,
	"what is my favorite food": templateFoods,
	"what is my domain":        templateDomain,
	"what is my website":       templateDomain,
	"what is your name":        templateAssistantName,
	"whats your name":          templateAssistantName,
	"who are you":              templateAssistantName,
}

// normalizeQuestion lowercases, strips punctuation and apostrophes, and
// collapses whitespace so "What's my name?" and "what is my name" compare
// equal.
func normalizeQuestion(q string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(q) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TemplateAnswer answers a canonical question from the profile. The second
// return is false when the question is not canonical or the profile lacks
// the fact, in which case the caller runs the full pipeline.
func TemplateAnswer(question string, p *Profile) (string, bool) {
	if p == nil {
		return "", false
	}
	kind, ok := canonicalQuestions[normalizeQuestion(question)]
	if !ok {
		return "", false
	}

	switch kind {
	case templateName:
		if p.Name != "" {
			return "Your name is " + p.Name + ".", true
		}
	case templateEmployer:
		if p.Employer != "" {
			if p.Role != "" {
				return "You work at " + p.Employer + " as " + withArticle(p.Role) + ".", true
			}
			return "You work at " + p.Employer + ".", true
		}
	case templateRole:
		if p.Role != "" {
			if p.Employer != "" {
				return "You work as " + withArticle(p.Role) + " at " + p.Employer + ".", true
			}
			return "You work as " + withArticle(p.Role) + ".", true
		}
	case templateLocation:
		if p.Location != "" {
			return "You live in " + p.Location + ".", true
		}
	case templateLikes:
		if len(p.Likes) > 0 {
			return "You like " + joinList(p.Likes) + ".", true
		}
	case templateDislikes:
		if len(p.Dislikes) > 0 {
			return "You don't like " + joinList(p.Dislikes) + ".", true
		}
	case templateSports:
		if len(p.Sports) > 0 {
			return "You like " + joinList(p.Sports) + ".", true
		}
	case templateFoods:
		if len(p.Foods) > 0 {
			return "You like " + joinList(p.Foods) + ".", true
		}
	case templateDomain:
		if p.Domain != "" {
			return "Your website is " + p.Domain + ".", true
		}
	case templateAssistantName:
		if p.AssistantName != "" {
			return "My name is " + p.AssistantName + ".", true
		}
	}
	return "", false
}

func withArticle(noun string) string {
	if noun == "" {
		return noun
	}
	switch noun[0] {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return "an " + noun
	}
	return "a " + noun
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
