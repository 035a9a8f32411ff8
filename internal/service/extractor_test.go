package service

import (
	"context"
	"errors"
	"testing"

	"matchcore/internal/model"
)

func TestIntentExtractor_StructuredDraft(t *testing.T) {
	client := &fakeAIClient{
		chatFn: func(req ChatCompletionRequest) (*ChatCompletionResponse, error) {
			if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
				t.Error("extraction must request a JSON object response")
			}
			return chatText(`{"intent": "buy", "property_type": "condo", "budget_max": 5000000, "province": "Bangkok", "district": "Pathum Wan", "keywords": ["condo", "Siam"]}`), nil
		},
	}
	extractor := NewIntentExtractor(client)

	draft, err := extractor.Extract(context.Background(), "หาคอนโดแถวสยาม งบ 5 ล้าน", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft == nil {
		t.Fatal("expected a draft")
	}
	if draft.Intent == nil || *draft.Intent != model.IntentBuy {
		t.Errorf("expected intent buy, got %v", draft.Intent)
	}
	if draft.PropertyType == nil || *draft.PropertyType != "condo" {
		t.Errorf("expected property_type condo, got %v", draft.PropertyType)
	}
	if draft.BudgetMax == nil || *draft.BudgetMax != 5000000 {
		t.Errorf("expected budget_max 5000000, got %v", draft.BudgetMax)
	}
	if draft.Province == nil || *draft.Province != "Bangkok" {
		t.Errorf("expected province Bangkok, got %v", draft.Province)
	}
}

func TestIntentExtractor_MarkdownWrappedJSON(t *testing.T) {
	client := &fakeAIClient{
		chatFn: func(req ChatCompletionRequest) (*ChatCompletionResponse, error) {
			return chatText("Here is the demand:\n```json\n{\"intent\": \"rent\", \"bedrooms_min\": 2}\n```"), nil
		},
	}
	extractor := NewIntentExtractor(client)

	draft, err := extractor.Extract(context.Background(), "rent 2 bedrooms", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft == nil {
		t.Fatal("expected a draft from fenced JSON")
	}
	if draft.Intent == nil || *draft.Intent != model.IntentRent {
		t.Errorf("expected intent rent, got %v", draft.Intent)
	}
	if draft.BedroomsMin == nil || *draft.BedroomsMin != 2 {
		t.Errorf("expected bedrooms_min 2, got %v", draft.BedroomsMin)
	}
}

func TestIntentExtractor_ParseFailureReturnsNil(t *testing.T) {
	client := &fakeAIClient{
		chatFn: func(req ChatCompletionRequest) (*ChatCompletionResponse, error) {
			return chatText("Sorry, I'm not sure what you're looking for. Could you tell me more?"), nil
		},
	}
	extractor := NewIntentExtractor(client)

	draft, err := extractor.Extract(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("parse failure must not error, got %v", err)
	}
	if draft != nil {
		t.Errorf("expected nil draft on unparseable output, got %+v", draft)
	}
}

func TestIntentExtractor_SanitizesInvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, draft *model.DemandDraft)
	}{
		{
			name:    "invalid intent dropped",
			payload: `{"intent": "lease", "property_type": "condo"}`,
			check: func(t *testing.T, draft *model.DemandDraft) {
				if draft.Intent != nil {
					t.Errorf("expected invalid intent dropped, got %v", *draft.Intent)
				}
				if draft.PropertyType == nil {
					t.Error("valid sibling field must survive")
				}
			},
		},
		{
			name:    "invalid urgency dropped",
			payload: `{"urgency": "yesterday"}`,
			check: func(t *testing.T, draft *model.DemandDraft) {
				if draft.Urgency != nil {
					t.Errorf("expected invalid urgency dropped, got %v", *draft.Urgency)
				}
			},
		},
		{
			name:    "inverted budget range dropped",
			payload: `{"budget_min": 9000000, "budget_max": 5000000}`,
			check: func(t *testing.T, draft *model.DemandDraft) {
				if draft.BudgetMin != nil || draft.BudgetMax != nil {
					t.Error("expected inverted budget range dropped")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeAIClient{
				chatFn: func(req ChatCompletionRequest) (*ChatCompletionResponse, error) {
					return chatText(tt.payload), nil
				},
			}
			extractor := NewIntentExtractor(client)

			draft, err := extractor.Extract(context.Background(), "some message", nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if draft == nil {
				t.Fatal("expected a draft")
			}
			tt.check(t, draft)
		})
	}
}

func TestIntentExtractor_EmptyMessage(t *testing.T) {
	client := &fakeAIClient{
		chatFn: func(req ChatCompletionRequest) (*ChatCompletionResponse, error) {
			t.Error("empty message must not reach the model")
			return chatText("{}"), nil
		},
	}
	extractor := NewIntentExtractor(client)

	draft, err := extractor.Extract(context.Background(), "   ", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft != nil {
		t.Errorf("expected nil draft for empty message, got %+v", draft)
	}
}

func TestIntentExtractor_UpstreamErrorPropagates(t *testing.T) {
	upstreamErr := &UpstreamError{Op: "chat_completion", Transient: true, Err: errors.New("timeout")}
	client := &fakeAIClient{
		chatFn: func(req ChatCompletionRequest) (*ChatCompletionResponse, error) {
			return nil, upstreamErr
		},
	}
	extractor := NewIntentExtractor(client)

	_, err := extractor.Extract(context.Background(), "condo in Bangkok", nil)
	if !IsTransientUpstream(err) {
		t.Errorf("expected transient upstream error, got %v", err)
	}
}

func TestIntentExtractor_HistoryInContext(t *testing.T) {
	var gotMessages []ChatMessage
	client := &fakeAIClient{
		chatFn: func(req ChatCompletionRequest) (*ChatCompletionResponse, error) {
			gotMessages = req.Messages
			return chatText(`{"intent": "rent"}`), nil
		},
	}
	extractor := NewIntentExtractor(client)

	history := []model.Turn{
		{TurnSeq: 1, Role: model.RoleUser, Text: "looking for a condo"},
		{TurnSeq: 2, Role: model.RoleAssistant, Text: "buy or rent?"},
	}
	if _, err := extractor.Extract(context.Background(), "rent", history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// system + 2 history turns + current message
	if len(gotMessages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(gotMessages))
	}
	if gotMessages[1].Content != "looking for a condo" || gotMessages[2].Content != "buy or rent?" {
		t.Error("history turns missing from extraction context")
	}
	if gotMessages[3].Content != "rent" {
		t.Errorf("current message must come last, got %q", gotMessages[3].Content)
	}
}
