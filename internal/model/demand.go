package model

// Intent is the transaction intent of a housing request
type Intent string

const (
	IntentBuy  Intent = "buy"
	IntentRent Intent = "rent"
)

// Valid reports whether the intent is one of the known values
func (i Intent) Valid() bool {
	return i == IntentBuy || i == IntentRent
}

// Urgency represents how soon the user wants to move
type Urgency string

const (
	UrgencyUrgent  Urgency = "urgent"
	UrgencyNormal  Urgency = "normal"
	UrgencyNotRush Urgency = "not_rush"
)

// Valid reports whether the urgency is one of the known values
func (u Urgency) Valid() bool {
	return u == UrgencyUrgent || u == UrgencyNormal || u == UrgencyNotRush
}

// DemandDraft represents structured conditions extracted from a user message.
// Every field is optional; an empty draft is still a valid draft.
type DemandDraft struct {
	Intent       *Intent  `json:"intent,omitempty"`
	PropertyType *string  `json:"property_type,omitempty"`
	BudgetMin    *float64 `json:"budget_min,omitempty"`
	BudgetMax    *float64 `json:"budget_max,omitempty"`
	Province     *string  `json:"province,omitempty"`
	District     *string  `json:"district,omitempty"`
	SubDistrict  *string  `json:"sub_district,omitempty"`
	BedroomsMin  *int     `json:"bedrooms_min,omitempty"`
	Urgency      *Urgency `json:"urgency,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// Demand is one turn's housing request. It is either structured (extraction
// produced a draft) or unstructured (raw text only); consumers switch on
// Structured instead of type-asserting loose JSON. A Demand is immutable once
// built for a turn.
type Demand struct {
	RawText    string       `json:"raw_text"`
	Structured bool         `json:"structured"`
	Draft      *DemandDraft `json:"draft,omitempty"`
	Embedding  []float32    `json:"-"`
}

// NewStructuredDemand builds a Demand from an extracted draft
func NewStructuredDemand(rawText string, draft *DemandDraft) *Demand {
	return &Demand{RawText: rawText, Structured: true, Draft: draft}
}

// NewUnstructuredDemand builds the raw-text fallback Demand used when
// extraction failed
func NewUnstructuredDemand(rawText string) *Demand {
	return &Demand{RawText: rawText, Structured: false}
}

// SearchText returns the text fed to the embedding model. Structured demands
// embed the extracted keywords alongside the raw message so similar wording
// across languages still lands nearby in vector space.
func (d *Demand) SearchText() string {
	if !d.Structured || d.Draft == nil || len(d.Draft.Keywords) == 0 {
		return d.RawText
	}
	text := d.RawText
	for _, kw := range d.Draft.Keywords {
		text += " " + kw
	}
	return text
}
