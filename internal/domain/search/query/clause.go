package query

import (
	"encoding/json"
	"fmt"
)

// Clause is a node of the backend query DSL.
type Clause interface {
	json.Marshaler
	// Kind names the clause type as it appears on the wire.
	Kind() string
}

// MatchAll matches every document.
type MatchAll struct{}

// Kind implements Clause.
func (MatchAll) Kind() string { return "match_all" }

// MarshalJSON renders {"match_all":{}}.
func (MatchAll) MarshalJSON() ([]byte, error) {
	return []byte(`{"match_all":{}}`), nil
}

// Match is a tokenized full-text match on a single field.
type Match struct {
	Field string
	Query string
	Boost float64
}

// Kind implements Clause.
func (Match) Kind() string { return "match" }

// MarshalJSON renders {"match":{field:{"query":..,"boost":..}}}.
func (m Match) MarshalJSON() ([]byte, error) {
	type body struct {
		Query string  `json:"query"`
		Boost float64 `json:"boost,omitempty"`
	}
	return marshalFieldClause("match", m.Field, body{Query: m.Query, Boost: m.Boost})
}

// Fuzzy is an edit-distance tolerant term match on a single field.
type Fuzzy struct {
	Field     string
	Value     string
	Fuzziness string
}

// Kind implements Clause.
func (Fuzzy) Kind() string { return "fuzzy" }

// MarshalJSON renders {"fuzzy":{field:{"value":..,"fuzziness":..}}}.
func (f Fuzzy) MarshalJSON() ([]byte, error) {
	type body struct {
		Value     string `json:"value"`
		Fuzziness string `json:"fuzziness,omitempty"`
	}
	return marshalFieldClause("fuzzy", f.Field, body{Value: f.Value, Fuzziness: f.Fuzziness})
}

// Bool is a disjunction satisfied when at least MinimumShouldMatch clauses match.
type Bool struct {
	Should             []Clause
	MinimumShouldMatch int
}

// Kind implements Clause.
func (Bool) Kind() string { return "bool" }

// MarshalJSON renders {"bool":{"should":[..],"minimum_should_match":n}}.
func (b Bool) MarshalJSON() ([]byte, error) {
	type body struct {
		Should             []Clause `json:"should"`
		MinimumShouldMatch int      `json:"minimum_should_match,omitempty"`
	}
	data, err := json.Marshal(map[string]body{
		"bool": {Should: b.Should, MinimumShouldMatch: b.MinimumShouldMatch},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal bool clause: %w", err)
	}
	return data, nil
}

// ScriptScore re-scores every document matched by Query with a script.
type ScriptScore struct {
	Query  Clause
	Script Script
}

// Kind implements Clause.
func (ScriptScore) Kind() string { return "script_score" }

// MarshalJSON renders {"script_score":{"query":..,"script":..}}.
func (s ScriptScore) MarshalJSON() ([]byte, error) {
	type body struct {
		Query  Clause `json:"query"`
		Script Script `json:"script"`
	}
	data, err := json.Marshal(map[string]body{
		"script_score": {Query: s.Query, Script: s.Script},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal script_score clause: %w", err)
	}
	return data, nil
}

// Script is a rendered scoring script. Source is produced from a ScoreFunction,
// never from caller input; the query vector travels in Params.
type Script struct {
	Source string       `json:"source"`
	Params ScriptParams `json:"params"`
}

// ScriptParams carries the per-request script arguments.
type ScriptParams struct {
	QueryVector []float32 `json:"query_vector"`
}

func marshalFieldClause(kind, field string, body any) ([]byte, error) {
	data, err := json.Marshal(map[string]map[string]any{kind: {field: body}})
	if err != nil {
		return nil, fmt.Errorf("marshal %s clause: %w", kind, err)
	}
	return data, nil
}
