// Package extraction invokes the external report-structuring capability and
// validates its output against the canonical text.
package extraction

import (
	"context"

	"github.com/pharmextract/backend/internal/report"
)

//go:generate mockgen -source=structurer.go -destination=structurer_mock.go -package=extraction

// Structurer is the external structuring capability: given canonical text
// and a model identifier, it returns typed, offset-annotated spans.
type Structurer interface {
	Structure(ctx context.Context, canonicalText, modelID string) (*report.AnnotatedDocument, error)
}

// DefaultModelID is used when the request does not name a model.
const DefaultModelID = "gemini-2.5-flash"

// supportedModels is the enumerated set of model identifiers accepted on the
// request. The model ID participates in the cache fingerprint.
var supportedModels = map[string]bool{
	"gemini-2.5-flash": true,
	"gemini-2.5-pro":   true,
	"gemini-2.0-flash": true,
}

// IsSupportedModel reports whether modelID is one of the accepted models.
func IsSupportedModel(modelID string) bool {
	return supportedModels[modelID]
}
