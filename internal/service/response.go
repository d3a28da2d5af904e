package service

import "github.com/pharmextract/backend/internal/report"

// PredictResponse is the JSON envelope returned by the predict endpoint.
// SanitizedInput is present only when sanitization changed the raw text.
type PredictResponse struct {
	SanitizedInput    string                   `json:"sanitized_input,omitempty"`
	Text              string                   `json:"text"`
	Segments          []report.Segment         `json:"segments"`
	AnnotatedDocument report.AnnotatedDocument `json:"annotated_document_json"`
	FromCache         bool                     `json:"from_cache"`
	RawPrompt         string                   `json:"raw_prompt,omitempty"`
}

// ErrorResponse is the JSON envelope for client and server errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	MaxLength int    `json:"max_length,omitempty"`
}
