// Package domain contains core domain types for askd.
package domain

import "time"

// AnonymousContributor tags turns recorded without a logged-in identity.
const AnonymousContributor = "anonymous"

// Turn is one question/answer exchange recorded in a session's ledger.
type Turn struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Timestamp   string `json:"timestamp"`
	Contributor string `json:"user"`
	Persona     string `json:"persona"`
}

// NewTurn builds a turn stamped with the current time in ISO-8601 form.
func NewTurn(question, answer, contributor, persona string) Turn {
	if contributor == "" {
		contributor = AnonymousContributor
	}
	return Turn{
		Question:    question,
		Answer:      answer,
		Timestamp:   time.Now().Format(time.RFC3339Nano),
		Contributor: contributor,
		Persona:     persona,
	}
}
