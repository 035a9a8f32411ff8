package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"matchcore/internal/config"
	"matchcore/internal/model"
)

// CandidatePool is the read-only candidate provider collaborator. The pool
// may be stale; this subsystem never writes to it and takes no lock on it.
type CandidatePool interface {
	GetCandidates(ctx context.Context, kind model.CandidateKind, filter *model.CandidateFilter) ([]model.CandidateEmbedding, error)
}

// SessionArchive receives closed sessions for long-term storage
type SessionArchive interface {
	ArchiveSession(ctx context.Context, sess *model.ConversationSession) error
}

// HandoffPredicate decides whether this turn should suggest a human agent.
// Deliberately pluggable: the default is keyword matching, which is known to
// be fragile, and a future replacement should come from an extractor
// confidence score instead.
type HandoffPredicate func(userText, replyText string, emptyMatchTurns int) bool

// Fallback replies sent when upstream models are unavailable. The
// conversation never surfaces a raw error to the transport layer.
const (
	fallbackApologyReply   = "ขออภัยค่ะ ระบบขัดข้องชั่วคราว กรุณาลองส่งข้อความอีกครั้งนะคะ"
	fallbackRateLimitReply = "ขออภัยค่ะ ขณะนี้มีผู้ใช้งานจำนวนมาก กรุณารอสักครู่แล้วลองใหม่อีกครั้งนะคะ"
)

const replySystemPrompt = `You are a friendly real estate assistant for the Thai housing market. You help users find properties to buy or rent and answer questions about listings, neighborhoods, and the buying/renting process.

Rules:
- Reply in the language the user writes in (Thai or English)
- Be concise and concrete; never invent listings or prices
- When matched properties are provided in context, ground your reply in them
- If you cannot help with the request, say so honestly and suggest speaking with one of our agents`

// ConversationManager owns per-session state and orchestrates the extractor,
// embedder, ranker and escalation selector to produce one reply per turn.
//
// Each session accepts one in-flight turn at a time: turns are queued per
// session and processed strictly in arrival order by a dedicated worker
// goroutine. Sessions are independent and run fully concurrently.
type ConversationManager struct {
	client    AIClient
	extractor *IntentExtractor
	embedder  *Embedder
	ranker    *Ranker
	selector  *EscalationSelector
	pool      CandidatePool
	archive   SessionArchive // optional
	handoff   HandoffPredicate
	convCfg   config.ConversationConfig
	feedLimit int

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

// liveSession wraps the durable session view with the turn queue and
// escalation bookkeeping. Session fields are mutated only under mu; the
// worker is the sole history writer.
type liveSession struct {
	mu   sync.Mutex
	data model.ConversationSession

	proposed        map[string]struct{}
	emptyMatchTurns int // consecutive ranked turns with zero matches
	nextSeq         int

	queue  chan *turnJob
	closed bool
}

type turnJob struct {
	userID string
	text   string
	result chan turnOutcome
}

type turnOutcome struct {
	reply *model.TurnReply
	err   error
}

// NewConversationManager wires the conversation core. archive may be nil.
func NewConversationManager(
	client AIClient,
	extractor *IntentExtractor,
	embedder *Embedder,
	ranker *Ranker,
	selector *EscalationSelector,
	pool CandidatePool,
	archive SessionArchive,
	convCfg config.ConversationConfig,
	feedLimit int,
) *ConversationManager {
	if convCfg.HistoryWindow <= 0 {
		convCfg.HistoryWindow = 10
	}
	if convCfg.EmptyMatchStreak <= 0 {
		convCfg.EmptyMatchStreak = 2
	}
	if convCfg.QueueDepth <= 0 {
		convCfg.QueueDepth = 16
	}
	if feedLimit <= 0 {
		feedLimit = 200
	}
	return &ConversationManager{
		client:    client,
		extractor: extractor,
		embedder:  embedder,
		ranker:    ranker,
		selector:  selector,
		pool:      pool,
		archive:   archive,
		handoff:   KeywordHandoffPredicate(convCfg.EmptyMatchStreak),
		convCfg:   convCfg,
		feedLimit: feedLimit,
		sessions:  make(map[string]*liveSession),
	}
}

// SetHandoffPredicate replaces the suggest-agent heuristic
func (m *ConversationManager) SetHandoffPredicate(p HandoffPredicate) {
	if p != nil {
		m.handoff = p
	}
}

// ProcessTurn handles one inbound user message. The first message of an
// unknown session creates it; an empty sessionID mints one. Blocks until the
// turn (and every turn queued ahead of it) has completed.
func (m *ConversationManager) ProcessTurn(ctx context.Context, sessionID, userID, text string) (*model.TurnReply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	sess := m.ensureSession(sessionID, userID)

	job := &turnJob{
		userID: userID,
		text:   text,
		result: make(chan turnOutcome, 1),
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	queue := sess.queue
	sess.mu.Unlock()

	// Blocking send keeps arrival order and never drops a turn
	select {
	case queue <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	outcome := <-job.result
	return outcome.reply, outcome.err
}

// AcceptAgent records the external escalation action: the user accepted one
// of the proposed agents. Only valid from AgentProposed and only for an agent
// actually proposed this session.
func (m *ConversationManager) AcceptAgent(sessionID, agentID string) error {
	sess := m.lookup(sessionID)
	if sess == nil {
		return fmt.Errorf("unknown session %s", sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return ErrSessionClosed
	}
	if sess.data.State != model.StateAgentProposed {
		return fmt.Errorf("session %s is in state %s, cannot accept an agent", sessionID, sess.data.State)
	}
	if _, ok := sess.proposed[agentID]; !ok {
		return fmt.Errorf("agent %s was not proposed in session %s", agentID, sessionID)
	}

	sess.data.State = model.StateEscalated
	return nil
}

// Close terminates the session. Closing is the caller's decision; any turn
// still in flight has its eventual upstream result discarded, and every
// queued turn is rejected. Archival is best-effort.
func (m *ConversationManager) Close(ctx context.Context, sessionID string) error {
	sess := m.lookup(sessionID)
	if sess == nil {
		return fmt.Errorf("unknown session %s", sessionID)
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return ErrSessionClosed
	}
	sess.closed = true
	sess.data.State = model.StateClosed
	now := time.Now()
	sess.data.ClosedAt = &now
	snapshot := sess.snapshotLocked()
	sess.mu.Unlock()

	if m.archive != nil {
		if err := m.archive.ArchiveSession(ctx, snapshot); err != nil {
			log.Printf("Failed to archive session %s: %v", sessionID, err)
		}
	}
	return nil
}

// Session returns a point-in-time copy of the session's durable state
func (m *ConversationManager) Session(sessionID string) (*model.ConversationSession, error) {
	sess := m.lookup(sessionID)
	if sess == nil {
		return nil, fmt.Errorf("unknown session %s", sessionID)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshotLocked(), nil
}

func (m *ConversationManager) lookup(sessionID string) *liveSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

func (m *ConversationManager) ensureSession(sessionID, userID string) *liveSession {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionID]; ok {
		return sess
	}

	sess := &liveSession{
		data: model.ConversationSession{
			SessionID: sessionID,
			UserID:    userID,
			State:     model.StateIdle,
			CreatedAt: time.Now(),
		},
		proposed: make(map[string]struct{}),
		nextSeq:  1,
		queue:    make(chan *turnJob, m.convCfg.QueueDepth),
	}
	m.sessions[sessionID] = sess

	go m.runSession(sess)
	return sess
}

// runSession is the per-session worker: one turn at a time, arrival order.
// The queue channel is never closed; it outlives Close so that a sender racing
// the close can never panic. After Close the worker keeps draining and every
// job is rejected by the closed check in processTurn.
func (m *ConversationManager) runSession(sess *liveSession) {
	for job := range sess.queue {
		reply, err := m.processTurn(sess, job)
		job.result <- turnOutcome{reply: reply, err: err}
	}
}

// processTurn runs the per-turn algorithm. Leaf-component failures degrade
// per policy; the only error returned to the caller is ErrSessionClosed.
func (m *ConversationManager) processTurn(sess *liveSession, job *turnJob) (*model.TurnReply, error) {
	ctx := context.Background()

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	// Only Idle and AgentProposed accept a new user message
	if sess.data.State == model.StateEscalated {
		sess.mu.Unlock()
		return nil, ErrSessionEscalated
	}
	sess.data.State = model.StateAwaitingModel
	sess.appendLocked(model.RoleUser, job.text)
	// Context window excludes the message being processed
	window := sess.windowLocked(m.convCfg.HistoryWindow, 1)
	sessionID := sess.data.SessionID
	sess.mu.Unlock()

	// Extraction failure of any kind degrades to the raw-text demand
	demand := m.buildDemand(ctx, job.text, window)

	matches, agentCandidates, agentMatches, ranked := m.matchCandidates(ctx, demand)

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if ranked {
		if len(matches) > 0 {
			sess.emptyMatchTurns = 0
		} else {
			sess.emptyMatchTurns++
		}
	}
	emptyTurns := sess.emptyMatchTurns
	sess.mu.Unlock()

	replyText, genErr := m.generateReply(ctx, job.text, window, matches)
	if genErr != nil {
		return m.degradeTurn(sess, sessionID, genErr)
	}

	suggest := m.handoff(job.text, replyText, emptyTurns)

	var agents []model.AgentRef
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if suggest {
		agents = m.selector.SelectAgents(agentMatches, agentCandidates, sess.proposed)
		for _, a := range agents {
			sess.proposed[a.AgentID] = struct{}{}
		}
	}
	sess.appendLocked(model.RoleAssistant, replyText)
	if len(agents) > 0 {
		sess.data.State = model.StateAgentProposed
	} else {
		sess.data.State = model.StateIdle
	}
	sess.mu.Unlock()

	return &model.TurnReply{
		SessionID:    sessionID,
		Reply:        replyText,
		SuggestAgent: suggest,
		Agents:       agents,
	}, nil
}

// degradeTurn turns a failed generation call into the fixed fallback reply.
// The user's message stays in history; no assistant turn is appended for the
// failed attempt, and the session returns to Idle.
func (m *ConversationManager) degradeTurn(sess *liveSession, sessionID string, genErr error) (*model.TurnReply, error) {
	log.Printf("Reply generation failed for session %s, degrading: %v", sessionID, genErr)

	reply := fallbackApologyReply
	if errors.Is(genErr, ErrRateLimited) {
		reply = fallbackRateLimitReply
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	sess.data.State = model.StateIdle
	sess.mu.Unlock()

	return &model.TurnReply{
		SessionID:    sessionID,
		Reply:        reply,
		SuggestAgent: false,
	}, nil
}

// buildDemand runs intent extraction and falls back to the unstructured
// variant on any failure
func (m *ConversationManager) buildDemand(ctx context.Context, text string, window []model.Turn) *model.Demand {
	draft, err := m.extractor.Extract(ctx, text, window)
	if err != nil {
		log.Printf("Intent extraction upstream failure, continuing unstructured: %v", err)
		return model.NewUnstructuredDemand(text)
	}
	if draft == nil {
		return model.NewUnstructuredDemand(text)
	}
	return model.NewStructuredDemand(text, draft)
}

// matchCandidates embeds the demand and ranks it against the property and
// agent pools. ranked reports whether ranking actually ran this turn; a turn
// where embedding or the pool failed skips ranking and leaves the empty-match
// streak untouched.
func (m *ConversationManager) matchCandidates(ctx context.Context, demand *model.Demand) (matches []model.MatchResult, agentCandidates []model.CandidateEmbedding, agentMatches []model.MatchResult, ranked bool) {
	vec, err := m.embedder.Embed(ctx, demand.SearchText())
	if err != nil {
		log.Printf("Demand embedding failed, skipping ranking this turn: %v", err)
		return nil, nil, nil, false
	}
	demand.Embedding = vec

	filter := demandFilter(demand, m.feedLimit)

	properties, err := m.pool.GetCandidates(ctx, model.CandidateProperty, filter)
	if err != nil {
		log.Printf("Candidate pool unavailable, skipping ranking this turn: %v", err)
		return nil, nil, nil, false
	}
	matches, err = m.ranker.Rank(vec, properties)
	if err != nil {
		// Bad pool data is a bug upstream of this subsystem; be loud
		log.Printf("ERROR: property ranking failed on pool data: %v", err)
		return nil, nil, nil, false
	}

	agentCandidates, err = m.pool.GetCandidates(ctx, model.CandidateAgent, filter)
	if err != nil {
		log.Printf("Agent pool unavailable, escalation will propose no one: %v", err)
		return matches, nil, nil, true
	}
	agentMatches, err = m.ranker.Rank(vec, agentCandidates)
	if err != nil {
		log.Printf("ERROR: agent ranking failed on pool data: %v", err)
		return matches, nil, nil, true
	}

	return matches, agentCandidates, agentMatches, true
}

// generateReply calls the generation model with the bounded history window
// and matched-property context
func (m *ConversationManager) generateReply(ctx context.Context, text string, window []model.Turn, matches []model.MatchResult) (string, error) {
	system := replySystemPrompt
	if len(matches) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\nMatched properties this turn (id, similarity):")
		for _, match := range matches {
			fmt.Fprintf(&sb, "\n- %s (%.2f)", match.CandidateID, match.Score)
		}
		system += sb.String()
	}

	messages := make([]ChatMessage, 0, len(window)+2)
	messages = append(messages, ChatMessage{Role: "system", Content: system})
	for _, turn := range window {
		messages = append(messages, ChatMessage{Role: string(turn.Role), Content: turn.Text})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: text})

	resp, err := m.client.ChatCompletion(ctx, ChatCompletionRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Op: "chat_completion", Err: fmt.Errorf("no choices in response")}
	}

	return resp.Choices[0].Message.Content, nil
}

// demandFilter narrows the pool query using extracted fields when available
func demandFilter(demand *model.Demand, limit int) *model.CandidateFilter {
	filter := &model.CandidateFilter{Limit: limit}
	if demand.Structured && demand.Draft != nil {
		filter.Province = demand.Draft.Province
		filter.PropertyType = demand.Draft.PropertyType
		filter.Intent = demand.Draft.Intent
	}
	return filter
}

// appendLocked appends a history turn with the next sequence number.
// History is append-only and strictly ordered; callers hold sess.mu.
func (s *liveSession) appendLocked(role model.Role, text string) {
	s.data.History = append(s.data.History, model.Turn{
		TurnSeq:   s.nextSeq,
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})
	s.nextSeq++
}

// windowLocked returns the last n history turns, excluding the trailing skip
// entries
func (s *liveSession) windowLocked(n, skip int) []model.Turn {
	end := len(s.data.History) - skip
	if end < 0 {
		end = 0
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	window := make([]model.Turn, end-start)
	copy(window, s.data.History[start:end])
	return window
}

func (s *liveSession) snapshotLocked() *model.ConversationSession {
	snapshot := s.data
	snapshot.History = make([]model.Turn, len(s.data.History))
	copy(snapshot.History, s.data.History)
	snapshot.ProposedAgentIDs = make([]string, 0, len(s.proposed))
	for id := range s.proposed {
		snapshot.ProposedAgentIDs = append(snapshot.ProposedAgentIDs, id)
	}
	return &snapshot
}
