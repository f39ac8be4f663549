package prompt

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultCatalog []byte

// Example is a few-shot question/answer pair.
type Example struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Catalog holds persona instructions and per-category examples.
type Catalog struct {
	personas map[Persona]string
	examples map[QuestionType][]Example
}

type catalogFile struct {
	Personas map[string]string    `yaml:"personas"`
	Examples map[string][]Example `yaml:"examples"`
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file, or the built-in catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes YAML and checks that every persona has instructions.
// Unknown persona or category names are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	c := &Catalog{
		personas: make(map[Persona]string, len(f.Personas)),
		examples: make(map[QuestionType][]Example, len(f.Examples)),
	}
	for name, text := range f.Personas {
		p, ok := ParsePersona(name)
		if !ok {
			return nil, fmt.Errorf("unknown persona %q in prompts", name)
		}
		c.personas[p] = text
	}
	for _, p := range Personas() {
		if c.personas[p] == "" {
			return nil, fmt.Errorf("persona %q has no instructions", p)
		}
	}

	for name, examples := range f.Examples {
		qt, ok := parseQuestionType(name)
		if !ok {
			return nil, fmt.Errorf("unknown question type %q in prompts", name)
		}
		c.examples[qt] = examples
	}
	return c, nil
}

// Instructions returns the persona's system text.
func (c *Catalog) Instructions(p Persona) string {
	if text, ok := c.personas[p]; ok {
		return text
	}
	return c.personas[PersonaDefault]
}

// Examples returns the few-shot pairs for a question type.
func (c *Catalog) Examples(q QuestionType) []Example {
	return c.examples[q]
}

func parseQuestionType(name string) (QuestionType, bool) {
	for _, q := range []QuestionType{TypeFactual, TypeOpinion, TypeInstruction} {
		if q.String() == name {
			return q, true
		}
	}
	return TypeNone, false
}
