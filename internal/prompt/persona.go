// Package prompt composes the instruction and question text sent to the model.
package prompt

// Persona is a named system-instruction preset.
type Persona int

// Known personas. Unknown names resolve to PersonaDefault.
const (
	PersonaDefault Persona = iota
	PersonaTeacher
	PersonaTechnical
	PersonaFriendly
	PersonaConcise
)

var personaNames = [...]string{
	PersonaDefault:   "default",
	PersonaTeacher:   "teacher",
	PersonaTechnical: "technical",
	PersonaFriendly:  "friendly",
	PersonaConcise:   "concise",
}

// Personas lists every persona in declaration order.
func Personas() []Persona {
	out := make([]Persona, len(personaNames))
	for i := range personaNames {
		out[i] = Persona(i)
	}
	return out
}

// String returns the persona's wire name.
func (p Persona) String() string {
	if p < 0 || int(p) >= len(personaNames) {
		return personaNames[PersonaDefault]
	}
	return personaNames[p]
}

// ParsePersona maps a name to its persona. Matching is exact; anything
// unknown, including the empty string, falls back to PersonaDefault.
func ParsePersona(name string) (Persona, bool) {
	for i, n := range personaNames {
		if n == name {
			return Persona(i), true
		}
	}
	return PersonaDefault, false
}

// QuestionType is the coarse category a question is classified into.
type QuestionType int

// Question categories, in the order they are checked.
const (
	TypeNone QuestionType = iota
	TypeFactual
	TypeOpinion
	TypeInstruction
)

func (q QuestionType) String() string {
	switch q {
	case TypeFactual:
		return "factual"
	case TypeOpinion:
		return "opinion"
	case TypeInstruction:
		return "instruction"
	default:
		return "none"
	}
}
