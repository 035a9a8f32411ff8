package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"matchcore/internal/model"
	"matchcore/internal/utils"
)

// IntentExtractor turns a free-text user message plus recent conversation
// context into a structured DemandDraft using the generation model.
//
// Extraction is best-effort and non-deterministic: the same input may yield
// different drafts across calls. Callers must not assume stability of
// extracted fields between turns.
type IntentExtractor struct {
	client AIClient
}

// NewIntentExtractor creates a new intent extractor
func NewIntentExtractor(client AIClient) *IntentExtractor {
	return &IntentExtractor{
		client: client,
	}
}

const extractionSystemPrompt = `You are a real estate assistant for the Thai housing market. Parse the user's latest message, using the conversation context, into a structured housing demand.

Extract the following information if present:
- intent: "buy" or "rent" (string)
- property_type: property type, e.g. "condo", "house", "townhouse", "land", "apartment" (string)
- budget_min: minimum budget in THB (number)
- budget_max: maximum budget in THB (number)
- province: Thai province, e.g. "Bangkok", "Chiang Mai" (string)
- district: district/khet, e.g. "Pathum Wan", "Watthana" (string)
- sub_district: sub-district/khwaeng (string)
- bedrooms_min: minimum number of bedrooms (integer)
- urgency: "urgent", "normal", or "not_rush" (string)
- keywords: array of keywords useful for semantic matching (e.g. ["near BTS", "pet friendly", "city view"])

Important rules:
- The user may write in Thai or English; output values in English, except proper names
- Respond ONLY with valid JSON
- If a field is not mentioned, omit it
- For budgets: "5 ล้าน" = 5000000, "15k" = 15000, "สองหมื่น" = 20000
- Landmark areas map to districts: "สยาม"/"Siam" is in Pathum Wan, Bangkok; "ทองหล่อ"/"Thonglor" is in Watthana, Bangkok
- "ด่วน"/"asap" means urgent; "ไม่รีบ" means not_rush

Examples:
Message: "หาคอนโดแถวสยาม งบ 5 ล้าน"
Response: {"intent": "buy", "property_type": "condo", "budget_max": 5000000, "province": "Bangkok", "district": "Pathum Wan", "keywords": ["condo", "Siam"]}

Message: "looking to rent a 2-bedroom near BTS Thonglor, max 30k/month, need it asap"
Response: {"intent": "rent", "property_type": "condo", "budget_max": 30000, "province": "Bangkok", "district": "Watthana", "bedrooms_min": 2, "urgency": "urgent", "keywords": ["near BTS", "Thonglor"]}

Message: "อยากได้บ้านเดี่ยวที่เชียงใหม่ ไม่รีบ"
Response: {"intent": "buy", "property_type": "house", "province": "Chiang Mai", "urgency": "not_rush", "keywords": ["detached house", "Chiang Mai"]}`

// Extract parses the message into a demand draft. On parse failure it returns
// (nil, nil): the caller falls back to treating the raw message as
// unstructured search text. A non-nil error means the upstream call itself
// failed.
func (x *IntentExtractor) Extract(ctx context.Context, message string, history []model.Turn) (*model.DemandDraft, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, nil
	}

	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: "system", Content: extractionSystemPrompt})
	for _, turn := range history {
		messages = append(messages, ChatMessage{Role: string(turn.Role), Content: turn.Text})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: message})

	resp, err := x.client.ChatCompletion(ctx, ChatCompletionRequest{
		Messages:       messages,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, &UpstreamError{Op: "chat_completion", Err: fmt.Errorf("no choices in response")}
	}

	content := resp.Choices[0].Message.Content
	var draft model.DemandDraft
	if err := utils.ParseModelJSON(content, &draft); err != nil {
		// Degrade, don't fail: a draft we cannot parse is the same as no draft
		log.Printf("Intent extraction produced unparseable output, falling back to unstructured: %v", err)
		return nil, nil
	}

	sanitizeDraft(&draft)
	return &draft, nil
}

// sanitizeDraft drops field values the model invented outside the schema.
// A dropped field is not a failed extraction; the rest of the draft stands.
func sanitizeDraft(draft *model.DemandDraft) {
	if draft.Intent != nil && !draft.Intent.Valid() {
		log.Printf("Dropping invalid extracted intent %q", *draft.Intent)
		draft.Intent = nil
	}
	if draft.Urgency != nil && !draft.Urgency.Valid() {
		log.Printf("Dropping invalid extracted urgency %q", *draft.Urgency)
		draft.Urgency = nil
	}
	if draft.BudgetMin != nil && *draft.BudgetMin < 0 {
		draft.BudgetMin = nil
	}
	if draft.BudgetMax != nil && *draft.BudgetMax < 0 {
		draft.BudgetMax = nil
	}
	if draft.BudgetMin != nil && draft.BudgetMax != nil && *draft.BudgetMin > *draft.BudgetMax {
		log.Printf("Dropping inverted extracted budget range [%f, %f]", *draft.BudgetMin, *draft.BudgetMax)
		draft.BudgetMin = nil
		draft.BudgetMax = nil
	}
	if draft.BedroomsMin != nil && (*draft.BedroomsMin < 0 || *draft.BedroomsMin > 20) {
		draft.BedroomsMin = nil
	}
}
