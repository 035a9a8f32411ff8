package service

import (
	"sort"

	"matchcore/internal/model"
)

// Default ranking parameters
const (
	DefaultMinScore = 0.75
	DefaultTopK     = 5
)

// Ranker orders candidate embeddings by cosine similarity to a query vector.
// It holds only configuration; ranking itself is a pure function of its
// inputs with no I/O and no hidden state.
type Ranker struct {
	minScore float64
	topK     int
}

// NewRanker creates a new ranker with the given threshold and cutoff
func NewRanker(minScore float64, topK int) *Ranker {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Ranker{
		minScore: minScore,
		topK:     topK,
	}
}

// Rank ranks candidates with the configured threshold and cutoff
func (r *Ranker) Rank(query []float32, candidates []model.CandidateEmbedding) ([]model.MatchResult, error) {
	return Rank(query, candidates, r.topK, r.minScore)
}

// Rank computes cosine similarity between the query vector and every
// candidate, discards scores below minScore, sorts the rest descending and
// truncates to k. An empty result is the explicit no-match signal, not an
// error. A candidate whose vector dimension differs from the query is bad
// pool data and fails the whole call.
//
// Ordering is fully deterministic: ties on score break by candidate recency
// (newer wins), then by candidate id ascending.
func Rank(query []float32, candidates []model.CandidateEmbedding, k int, minScore float64) ([]model.MatchResult, error) {
	type scored struct {
		candidate *model.CandidateEmbedding
		score     float64
	}

	kept := make([]scored, 0, len(candidates))
	for i := range candidates {
		score, err := CosineSimilarity(query, candidates[i].Embedding.Slice())
		if err != nil {
			return nil, err
		}
		if score < minScore {
			continue
		}
		kept = append(kept, scored{candidate: &candidates[i], score: score})
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		if !kept[i].candidate.CreatedAt.Equal(kept[j].candidate.CreatedAt) {
			return kept[i].candidate.CreatedAt.After(kept[j].candidate.CreatedAt)
		}
		return kept[i].candidate.CandidateID < kept[j].candidate.CandidateID
	})

	if k > 0 && len(kept) > k {
		kept = kept[:k]
	}

	results := make([]model.MatchResult, len(kept))
	for i, s := range kept {
		results[i] = model.MatchResult{
			CandidateID: s.candidate.CandidateID,
			Score:       s.score,
			Rank:        i,
		}
	}

	return results, nil
}
