package service

import (
	"errors"
	"testing"
	"time"

	"matchcore/internal/model"
)

func TestRank_ThresholdAndOrder(t *testing.T) {
	now := time.Now()
	query := []float32{1, 0, 0}
	candidates := []model.CandidateEmbedding{
		candidate("p-low", model.CandidateProperty, "Low", []float32{0, 1, 0}, now),          // sim 0
		candidate("p-exact", model.CandidateProperty, "Exact", []float32{1, 0, 0}, now),      // sim 1
		candidate("p-close", model.CandidateProperty, "Close", []float32{0.9, 0.1, 0}, now),  // sim ~0.99
		candidate("p-border", model.CandidateProperty, "Border", []float32{0.7, 0.7, 0}, now), // sim ~0.71
	}

	results, err := Rank(query, candidates, 5, 0.75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(results))
	}
	if results[0].CandidateID != "p-exact" || results[1].CandidateID != "p-close" {
		t.Errorf("unexpected order: %s, %s", results[0].CandidateID, results[1].CandidateID)
	}
	for i, r := range results {
		if r.Rank != i {
			t.Errorf("result %d has rank %d", i, r.Rank)
		}
		if r.Score < 0.75 {
			t.Errorf("result %s below threshold: %v", r.CandidateID, r.Score)
		}
		if i > 0 && results[i-1].Score < r.Score {
			t.Errorf("scores not non-increasing at rank %d", i)
		}
	}
}

func TestRank_Truncation(t *testing.T) {
	now := time.Now()
	query := []float32{1, 0, 0}
	var candidates []model.CandidateEmbedding
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		candidates = append(candidates, candidate(id, model.CandidateProperty, id, []float32{1, 0, 0}, now))
	}

	results, err := Rank(query, candidates, 5, 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("expected output capped at k=5, got %d", len(results))
	}
}

func TestRank_EmptyAndNoMatch(t *testing.T) {
	query := []float32{1, 0, 0}

	results, err := Rank(query, nil, 5, 0.75)
	if err != nil {
		t.Fatalf("empty candidate list must not error, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d", len(results))
	}

	// All candidates below threshold: empty list is the no-match signal
	now := time.Now()
	candidates := []model.CandidateEmbedding{
		candidate("p1", model.CandidateProperty, "P1", []float32{0, 1, 0}, now),
	}
	results, err = Rank(query, candidates, 5, 0.75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no matches, got %d", len(results))
	}
}

func TestRank_TieBreakRecencyThenID(t *testing.T) {
	query := []float32{1, 0, 0}
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// Identical vectors, so identical scores
	candidates := []model.CandidateEmbedding{
		candidate("b-old", model.CandidateProperty, "B", []float32{1, 0, 0}, older),
		candidate("a-old", model.CandidateProperty, "A", []float32{1, 0, 0}, older),
		candidate("c-new", model.CandidateProperty, "C", []float32{1, 0, 0}, newer),
	}

	results, err := Rank(query, candidates, 5, 0.75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	// Newer first, then lexical id among equal timestamps
	want := []string{"c-new", "a-old", "b-old"}
	for i, id := range want {
		if results[i].CandidateID != id {
			t.Errorf("rank %d: expected %s, got %s", i, id, results[i].CandidateID)
		}
	}

	// Determinism: same inputs, same ordering
	again, err := Rank(query, candidates, 5, 0.75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range results {
		if results[i] != again[i] {
			t.Errorf("ordering not deterministic at rank %d", i)
		}
	}
}

func TestRank_DimensionMismatchFails(t *testing.T) {
	query := []float32{1, 0, 0}
	candidates := []model.CandidateEmbedding{
		candidate("good", model.CandidateProperty, "Good", []float32{1, 0, 0}, time.Now()),
		candidate("bad", model.CandidateProperty, "Bad", []float32{1, 0}, time.Now()),
	}

	_, err := Rank(query, candidates, 5, 0.75)
	if err == nil {
		t.Fatal("expected error for mismatched candidate dimension")
	}
	var dimErr *DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected *DimensionMismatchError, got %T", err)
	}
}
