package handler

import (
	"errors"
	"net/http"

	"matchcore/internal/model"
	"matchcore/internal/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler exposes the turn-processing contract over HTTP
type ChatHandler struct {
	conversations *service.ConversationManager
}

// NewChatHandler creates a new chat handler
func NewChatHandler(conversations *service.ConversationManager) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
	}
}

// Message handles POST /api/v1/chat/message
func (h *ChatHandler) Message(c *gin.Context) {
	var req model.ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	reply, err := h.conversations.ProcessTurn(c.Request.Context(), req.SessionID, req.UserID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "Session is closed"})
		case errors.Is(err, service.ErrSessionEscalated):
			c.JSON(http.StatusConflict, gin.H{"error": "Session is escalated to a human agent"})
		case errors.Is(err, service.ErrEmptyInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message must not be empty"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, reply)
}

// Accept handles POST /api/v1/chat/accept
func (h *ChatHandler) Accept(c *gin.Context) {
	var req model.AcceptAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.conversations.AcceptAgent(req.SessionID, req.AgentID); err != nil {
		if errors.Is(err, service.ErrSessionClosed) {
			c.JSON(http.StatusConflict, gin.H{"error": "Session is closed"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Close handles POST /api/v1/chat/close
func (h *ChatHandler) Close(c *gin.Context) {
	var req model.CloseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.conversations.Close(c.Request.Context(), req.SessionID); err != nil {
		if errors.Is(err, service.ErrSessionClosed) {
			c.JSON(http.StatusConflict, gin.H{"error": "Session is already closed"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetSession handles GET /api/v1/chat/sessions/:id
func (h *ChatHandler) GetSession(c *gin.Context) {
	sess, err := h.conversations.Session(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sess)
}
