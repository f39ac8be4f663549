package prompt

import (
	"strings"

	"github.com/ashureev/askd/internal/domain"
)

// Prompt is the fully composed model input for one question.
type Prompt struct {
	System   string
	Question string
	Persona  Persona
	Type     QuestionType
}

// Composer builds prompts from a catalog. It holds no per-request state.
type Composer struct {
	catalog *Catalog
}

// NewComposer creates a composer over catalog.
func NewComposer(catalog *Catalog) *Composer {
	return &Composer{catalog: catalog}
}

// Catalog returns the composer's catalog.
func (c *Composer) Catalog() *Catalog {
	return c.catalog
}

// Compose classifies the question, attaches persona instructions and any
// examples for its category, and prefixes prior turns oldest first.
func (c *Composer) Compose(persona Persona, question string, history []domain.Turn) Prompt {
	qtype := Classify(question)

	var system strings.Builder
	system.WriteString(c.catalog.Instructions(persona))
	if examples := c.catalog.Examples(qtype); len(examples) > 0 {
		system.WriteString("\n\nHere are some examples of how to respond:\n")
		for _, ex := range examples {
			system.WriteString("\nQ: ")
			system.WriteString(ex.Question)
			system.WriteString("\nA: ")
			system.WriteString(ex.Answer)
			system.WriteString("\n")
		}
	}

	return Prompt{
		System:   system.String(),
		Question: withHistory(question, history),
		Persona:  persona,
		Type:     qtype,
	}
}

func withHistory(question string, history []domain.Turn) string {
	if len(history) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, t := range history {
		b.WriteString("Human: ")
		b.WriteString(t.Question)
		b.WriteString("\nAI: ")
		b.WriteString(t.Answer)
		b.WriteString("\n")
	}
	b.WriteString("\nHuman: ")
	b.WriteString(question)
	return b.String()
}
