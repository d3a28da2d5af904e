package extraction

import "testing"

func TestValidateAgainstSchema(t *testing.T) {
	schema := BuildExtractionSchema()

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "valid document",
			data: `{"extractions": [{"extraction_class": "results_body", "extraction_text": "x", "attributes": {"section": "Chest"}, "char_interval": {"start_pos": 0, "end_pos": 1}}]}`,
		},
		{
			name: "spanless extraction allowed",
			data: `{"extractions": [{"extraction_class": "conclusions_suffix", "extraction_text": "x"}]}`,
		},
		{
			name: "empty extractions allowed",
			data: `{"extractions": []}`,
		},
		{
			name:    "missing extractions field",
			data:    `{"results": []}`,
			wantErr: true,
		},
		{
			name:    "unknown class rejected",
			data:    `{"extractions": [{"extraction_class": "diagnosis", "extraction_text": "x"}]}`,
			wantErr: true,
		},
		{
			name:    "missing text rejected",
			data:    `{"extractions": [{"extraction_class": "results_body"}]}`,
			wantErr: true,
		},
		{
			name:    "non-integer offset rejected",
			data:    `{"extractions": [{"extraction_class": "results_body", "extraction_text": "x", "char_interval": {"start_pos": "0", "end_pos": 1}}]}`,
			wantErr: true,
		},
		{
			name:    "negative offset rejected",
			data:    `{"extractions": [{"extraction_class": "results_body", "extraction_text": "x", "char_interval": {"start_pos": -2, "end_pos": 1}}]}`,
			wantErr: true,
		},
		{
			name:    "incomplete interval rejected",
			data:    `{"extractions": [{"extraction_class": "results_body", "extraction_text": "x", "char_interval": {"start_pos": 0}}]}`,
			wantErr: true,
		},
		{
			name:    "non-string attribute rejected",
			data:    `{"extractions": [{"extraction_class": "results_body", "extraction_text": "x", "attributes": {"section": 5}}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAgainstSchema(schema, []byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAgainstSchema() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPromptExamplesSatisfySchema(t *testing.T) {
	schema := BuildExtractionSchema()
	for i, ex := range promptExamples {
		data := `{"extractions": ` + ex.extractions + `}`
		if err := ValidateAgainstSchema(schema, []byte(data)); err != nil {
			t.Errorf("example %d violates its own schema: %v", i+1, err)
		}
	}
}
