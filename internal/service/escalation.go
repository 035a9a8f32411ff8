package service

import (
	"matchcore/internal/model"
)

// DefaultAgentLimit is the maximum number of agents proposed per turn
const DefaultAgentLimit = 3

// EscalationSelector decides which agents to propose for human handoff.
// It guarantees no agent is ever proposed twice within one session and the
// output never exceeds the configured limit.
type EscalationSelector struct {
	limit int
}

// NewEscalationSelector creates a new escalation selector
func NewEscalationSelector(limit int) *EscalationSelector {
	if limit <= 0 {
		limit = DefaultAgentLimit
	}
	return &EscalationSelector{
		limit: limit,
	}
}

// SelectAgents walks the ranked agent candidates in order, skips any id
// already proposed this session, and returns up to the configured limit.
// candidates resolves ids to display names; a ranked id missing from it is
// skipped rather than proposed nameless. Returns an empty slice when nothing
// new remains.
func (s *EscalationSelector) SelectAgents(ranked []model.MatchResult, candidates []model.CandidateEmbedding, alreadyProposed map[string]struct{}) []model.AgentRef {
	names := make(map[string]string, len(candidates))
	for _, c := range candidates {
		names[c.CandidateID] = c.Name
	}

	selected := make([]model.AgentRef, 0, s.limit)
	for _, match := range ranked {
		if len(selected) == s.limit {
			break
		}
		if _, proposed := alreadyProposed[match.CandidateID]; proposed {
			continue
		}
		name, ok := names[match.CandidateID]
		if !ok {
			continue
		}
		selected = append(selected, model.AgentRef{
			AgentID: match.CandidateID,
			Name:    name,
		})
	}

	return selected
}
