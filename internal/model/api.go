package model

// ChatMessageRequest is one inbound user message. SessionID may be empty on
// the first message; the reply carries the assigned id.
type ChatMessageRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// AcceptAgentRequest records that the user accepted a proposed agent
type AcceptAgentRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	AgentID   string `json:"agent_id" binding:"required"`
}

// CloseSessionRequest terminates a session
type CloseSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}
