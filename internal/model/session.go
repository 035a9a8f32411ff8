package model

import "time"

// SessionState is the per-session state machine position
type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateAwaitingModel SessionState = "awaiting_model_response"
	StateAgentProposed SessionState = "agent_proposed"
	StateEscalated     SessionState = "escalated"
	StateClosed        SessionState = "closed"
)

// Role is the author of a history turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one history entry. History is append-only and strictly ordered by
// TurnSeq.
type Turn struct {
	TurnSeq   int       `json:"turn_seq"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSession is the durable view of one conversation: what gets
// archived when the session closes. Live turn processing owns a richer
// in-memory wrapper around this.
type ConversationSession struct {
	SessionID        string       `json:"session_id"`
	UserID           string       `json:"user_id"`
	State            SessionState `json:"state"`
	History          []Turn       `json:"history"`
	ProposedAgentIDs []string     `json:"proposed_agent_ids,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	ClosedAt         *time.Time   `json:"closed_at,omitempty"`
}

// AgentRef identifies an agent proposed for human handoff
type AgentRef struct {
	AgentID string `json:"id"`
	Name    string `json:"name"`
}

// TurnReply is the composed response handed to the transport layer
type TurnReply struct {
	SessionID    string     `json:"session_id"`
	Reply        string     `json:"reply"`
	SuggestAgent bool       `json:"suggest_agent"`
	Agents       []AgentRef `json:"agents,omitempty"`
}
