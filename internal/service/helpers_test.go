package service

import (
	"context"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"

	"matchcore/internal/model"
)

// fakeAIClient substitutes the upstream model client in tests
type fakeAIClient struct {
	mu         sync.Mutex
	chatFn     func(req ChatCompletionRequest) (*ChatCompletionResponse, error)
	embedFn    func(texts []string) ([][]float32, error)
	chatCalls  int
	embedCalls int
}

func (f *fakeAIClient) ChatCompletion(_ context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	f.mu.Lock()
	f.chatCalls++
	fn := f.chatFn
	f.mu.Unlock()
	return fn(req)
}

func (f *fakeAIClient) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.embedCalls++
	fn := f.embedFn
	f.mu.Unlock()
	return fn(texts)
}

func (f *fakeAIClient) IsEnabled() bool {
	return true
}

// chatText builds a single-choice completion response
func chatText(content string) *ChatCompletionResponse {
	resp := &ChatCompletionResponse{}
	resp.Choices = make([]struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	}, 1)
	resp.Choices[0].Message = ChatMessage{Role: "assistant", Content: content}
	resp.Choices[0].FinishReason = "stop"
	return resp
}

// constantEmbedder returns the same vector for every input
func constantEmbedder(vec []float32) func(texts []string) ([][]float32, error) {
	return func(texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = vec
		}
		return out, nil
	}
}

// fakePool serves in-memory candidates and records the last filter it saw
type fakePool struct {
	mu         sync.Mutex
	properties []model.CandidateEmbedding
	agents     []model.CandidateEmbedding
	err        error
	lastFilter *model.CandidateFilter
}

func (p *fakePool) GetCandidates(_ context.Context, kind model.CandidateKind, filter *model.CandidateFilter) ([]model.CandidateEmbedding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastFilter = filter
	if p.err != nil {
		return nil, p.err
	}
	if kind == model.CandidateAgent {
		return p.agents, nil
	}
	return p.properties, nil
}

func (p *fakePool) filter() *model.CandidateFilter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFilter
}

func candidate(id string, kind model.CandidateKind, name string, vec []float32, createdAt time.Time) model.CandidateEmbedding {
	return model.CandidateEmbedding{
		CandidateID: id,
		Kind:        kind,
		Name:        name,
		Embedding:   pgvector.NewVector(vec),
		CreatedAt:   createdAt,
	}
}
