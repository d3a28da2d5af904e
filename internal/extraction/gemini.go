package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pharmextract/backend/internal/report"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient implements Structurer against the Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient creates a Gemini-backed structurer.
func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: defaultGeminiBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Structure sends the canonical text with the structuring prompt and decodes
// the returned extractions. The raw model text is validated against the
// extraction schema before decoding; anything that fails validation is a
// malformed (non-retryable) response.
func (c *GeminiClient) Structure(ctx context.Context, canonicalText, modelID string) (*report.AnnotatedDocument, error) {
	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": BuildPrompt(canonicalText)},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.0,
			"maxOutputTokens": 8192,
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, modelID, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyModelError(modelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, classifyModelHTTPError(modelID, resp.StatusCode, string(body))
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, &ExtractionError{
			Code:      ErrMalformedResponse,
			Message:   "undecodable model response",
			ModelID:   modelID,
			Retryable: false,
			Cause:     err,
		}
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return nil, &ExtractionError{
			Code:      ErrMalformedResponse,
			Message:   "empty model response",
			ModelID:   modelID,
			Retryable: false,
		}
	}

	text := geminiResp.Candidates[0].Content.Parts[0].Text
	return decodeAnnotatedDocument(modelID, text)
}

// decodeAnnotatedDocument extracts the JSON object from model text,
// validates it against the extraction schema, and decodes it.
func decodeAnnotatedDocument(modelID, text string) (*report.AnnotatedDocument, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, &ExtractionError{
			Code:      ErrMalformedResponse,
			Message:   "no JSON object in model response",
			ModelID:   modelID,
			Retryable: false,
			Cause:     err,
		}
	}
	if err := ValidateAgainstSchema(BuildExtractionSchema(), raw); err != nil {
		return nil, &ExtractionError{
			Code:      ErrMalformedResponse,
			Message:   "model response does not match extraction schema",
			ModelID:   modelID,
			Retryable: false,
			Cause:     err,
		}
	}
	var doc report.AnnotatedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ExtractionError{
			Code:      ErrMalformedResponse,
			Message:   "undecodable extractions",
			ModelID:   modelID,
			Retryable: false,
			Cause:     err,
		}
	}
	return &doc, nil
}

// extractJSON returns the first balanced JSON object in a text response.
// Models wrap their JSON in prose or markdown fences often enough that a
// strict Unmarshal of the whole text is useless. Braces inside string
// values do not count toward balance, so extraction text containing "{"
// or "}" survives.
func extractJSON(text string) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, c := range text {
		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(text[start : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("no JSON object found in response")
}

// classifyModelError converts network errors to ExtractionErrors.
func classifyModelError(modelID string, err error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrModelUnavailable,
		Message:   "model API request failed",
		ModelID:   modelID,
		Retryable: true,
		Cause:     err,
	}
}

// classifyModelHTTPError converts HTTP errors to ExtractionErrors.
func classifyModelHTTPError(modelID string, statusCode int, body string) *ExtractionError {
	if statusCode == http.StatusTooManyRequests {
		return &ExtractionError{
			Code:      ErrModelRateLimited,
			Message:   "model API rate limited",
			ModelID:   modelID,
			Retryable: true,
		}
	}
	return &ExtractionError{
		Code:      ErrModelUnavailable,
		Message:   fmt.Sprintf("model API error (HTTP %d): %s", statusCode, body),
		ModelID:   modelID,
		Retryable: statusCode >= 500,
	}
}
