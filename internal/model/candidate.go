package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
)

// CandidateKind distinguishes the two embedding spaces served by the
// candidate pool
type CandidateKind string

const (
	CandidateProperty CandidateKind = "property"
	CandidateAgent    CandidateKind = "agent"
)

// CandidateEmbedding is one entry of the candidate pool. Rows are supplied by
// the pool provider and are read-only to this subsystem.
type CandidateEmbedding struct {
	CandidateID string          `json:"candidate_id" db:"candidate_id"`
	Kind        CandidateKind   `json:"kind" db:"kind"`
	Name        string          `json:"name" db:"name"`
	Metadata    JSONMap         `json:"metadata,omitempty" db:"metadata"`
	Embedding   pgvector.Vector `json:"-" db:"embedding"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// MatchResult is one ranked candidate. Score is cosine similarity in [-1,1];
// Rank starts at 0 and scores never increase across ranks.
type MatchResult struct {
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
}

// CandidateFilter narrows the pool before ranking
type CandidateFilter struct {
	Province     *string `json:"province,omitempty"`
	PropertyType *string `json:"property_type,omitempty"`
	Intent       *Intent `json:"intent,omitempty"`
	Limit        int     `json:"limit,omitempty"`
}

// JSONMap represents a JSONB object field
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}
