package utils

import (
	"testing"
)

func TestParseModelJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]interface{}
		wantErr bool
	}{
		{
			name:  "Pure JSON",
			input: `{"intent": "buy", "budget_max": 5000000}`,
			want: map[string]interface{}{
				"intent":     "buy",
				"budget_max": float64(5000000),
			},
			wantErr: false,
		},
		{
			name: "JSON in markdown code block",
			input: "```json\n" +
				`{"intent": "rent", "province": "Bangkok"}` + "\n```",
			want: map[string]interface{}{
				"intent":   "rent",
				"province": "Bangkok",
			},
			wantErr: false,
		},
		{
			name: "JSON in untagged code block",
			input: "```\n" +
				`{"property_type": "condo"}` + "\n```",
			want: map[string]interface{}{
				"property_type": "condo",
			},
			wantErr: false,
		},
		{
			name:  "JSON with surrounding text",
			input: `Here is the extracted demand: {"intent": "buy", "bedrooms": 2} hope that helps!`,
			want: map[string]interface{}{
				"intent":   "buy",
				"bedrooms": float64(2),
			},
			wantErr: false,
		},
		{
			name:  "JSON with trailing comma",
			input: `{"intent": "buy", "province": "Phuket",}`,
			want: map[string]interface{}{
				"intent":   "buy",
				"province": "Phuket",
			},
			wantErr: false,
		},
		{
			name:    "Empty string",
			input:   "",
			want:    nil,
			wantErr: true,
		},
		{
			name:    "No JSON at all",
			input:   "I could not determine the user's intent from that message.",
			want:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]interface{}
			err := ParseModelJSON(tt.input, &got)

			if (err != nil) != tt.wantErr {
				t.Errorf("ParseModelJSON() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if len(got) != len(tt.want) {
					t.Errorf("ParseModelJSON() got = %v, want %v", got, tt.want)
				}
				for k, v := range tt.want {
					if got[k] != v {
						t.Errorf("ParseModelJSON() got[%q] = %v, want %v", k, got[k], v)
					}
				}
			}
		})
	}
}

func TestExtractFromMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "JSON code block with json tag",
			input: "```json\n{\"test\": true}\n```",
			want:  `{"test": true}`,
		},
		{
			name:  "JSON code block without tag",
			input: "```\n{\"test\": true}\n```",
			want:  `{"test": true}`,
		},
		{
			name:  "Code block without JSON",
			input: "```\nplain text\n```",
			want:  "",
		},
		{
			name:  "No code block",
			input: `{"test": true}`,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractFromMarkdown(tt.input)
			if got != tt.want {
				t.Errorf("extractFromMarkdown() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractBalanced(t *testing.T) {
	tests := []struct {
		name  string
		input string
		open  rune
		close rune
		want  string
	}{
		{
			name:  "Simple object",
			input: `{"a": 1}`,
			open:  '{',
			close: '}',
			want:  `{"a": 1}`,
		},
		{
			name:  "Nested objects",
			input: `{"a": {"b": 2}}`,
			open:  '{',
			close: '}',
			want:  `{"a": {"b": 2}}`,
		},
		{
			name:  "Object with string containing braces",
			input: `{"text": "Hello {world}"}`,
			open:  '{',
			close: '}',
			want:  `{"text": "Hello {world}"}`,
		},
		{
			name:  "Array",
			input: `[1, 2, 3]`,
			open:  '[',
			close: ']',
			want:  `[1, 2, 3]`,
		},
		{
			name:  "Unterminated object",
			input: `{"a": 1`,
			open:  '{',
			close: '}',
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractBalanced(tt.input, tt.open, tt.close)
			if got != tt.want {
				t.Errorf("extractBalanced() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Trailing comma in object",
			input: `{"a": 1,}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "Trailing comma in array",
			input: `[1, 2, 3,]`,
			want:  `[1, 2, 3]`,
		},
		{
			name:  "Leading byte order mark",
			input: "\ufeff" + `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "Already clean",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanJSON(tt.input)
			if got != tt.want {
				t.Errorf("cleanJSON() = %v, want %v", got, tt.want)
			}
		})
	}
}
