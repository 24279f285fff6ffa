// Package rag answers tenant questions from the vector index, with a
// fixed-response table consulted before any retrieval work.
package rag

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// FixedResponses maps normalized questions to canned answers, letting
// operators pin exact replies for greetings and other high-traffic queries
// without spending an embedding call.
type FixedResponses struct {
	answers map[string]string
}

// LoadFixedResponses reads the table from a JSON file. Values may be plain
// strings or objects with an "answer" field. A missing file yields an empty
// table, not an error.
func LoadFixedResponses(path string) (*FixedResponses, error) {
	fr := &FixedResponses{answers: map[string]string{}}
	if path == "" {
		return fr, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fr, nil
		}
		return nil, fmt.Errorf("read fixed responses: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fixed responses: %w", err)
	}

	for question, value := range raw {
		var answer string
		if err := json.Unmarshal(value, &answer); err == nil {
			fr.answers[NormalizeQuery(question)] = answer
			continue
		}
		var obj struct {
			Answer string `json:"answer"`
		}
		if err := json.Unmarshal(value, &obj); err != nil {
			return nil, fmt.Errorf("fixed response %q: %w", question, err)
		}
		fr.answers[NormalizeQuery(question)] = obj.Answer
	}
	return fr, nil
}

// Lookup matches the query against the table after normalization.
func (fr *FixedResponses) Lookup(query string) (string, bool) {
	answer, ok := fr.answers[NormalizeQuery(query)]
	return answer, ok
}

func (fr *FixedResponses) Len() int { return len(fr.answers) }

// NormalizeQuery lowercases, strips punctuation and collapses whitespace,
// so "Hello!!" and "hello" hit the same table entry.
func NormalizeQuery(query string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(query) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
