package extraction

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/pharmextract/backend/internal/report"
)

// DefaultInvokeTimeout caps one invocation including retries. It must be
// strictly smaller than the request-level timeout so sanitization, segment
// building, and serialization still fit inside the outer budget.
const DefaultInvokeTimeout = 30 * time.Second

// Invoker wraps a Structurer with a hard timeout, bounded retries, and span
// validation against the canonical text.
type Invoker struct {
	structurer Structurer
	retry      RetryConfig
	timeout    time.Duration
}

// NewInvoker creates an invoker with the default retry policy and timeout.
func NewInvoker(structurer Structurer) *Invoker {
	return &Invoker{
		structurer: structurer,
		retry:      DefaultStructuringRetryConfig,
		timeout:    DefaultInvokeTimeout,
	}
}

// WithTimeout overrides the hard invocation timeout.
func (inv *Invoker) WithTimeout(d time.Duration) *Invoker {
	inv.timeout = d
	return inv
}

// WithRetryConfig overrides the retry policy.
func (inv *Invoker) WithRetryConfig(cfg RetryConfig) *Invoker {
	inv.retry = cfg
	return inv
}

// Invoke calls the structuring capability and validates the result. Spans
// outside [0, len(canonicalText)] are dropped with a data-quality warning
// rather than failing the request. Exhausted retries surface as a terminal
// ErrExtractionFailed.
func (inv *Invoker) Invoke(ctx context.Context, canonicalText, modelID string) (*report.AnnotatedDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	doc, err := WithRetry(ctx, inv.retry, func(ctx context.Context) (*report.AnnotatedDocument, error) {
		return inv.structurer.Structure(ctx, canonicalText, modelID)
	})
	if err != nil {
		return nil, terminalError(modelID, err)
	}

	doc.Extractions = dropInvalidSpans(doc.Extractions, len(canonicalText), modelID)
	return doc, nil
}

// dropInvalidSpans removes extractions whose offsets fall outside the
// canonical text. Extractions without a char interval are kept; they simply
// render without highlights.
func dropInvalidSpans(extractions []report.Extraction, canonicalLen int, modelID string) []report.Extraction {
	valid := extractions[:0]
	for _, e := range extractions {
		iv := e.CharInterval
		if iv != nil && (iv.StartPos < 0 || iv.EndPos < iv.StartPos || iv.EndPos > canonicalLen) {
			log.Printf("extraction: dropping out-of-bounds span [%d,%d] (text len %d, model %s, class %s)",
				iv.StartPos, iv.EndPos, canonicalLen, modelID, e.Class)
			continue
		}
		valid = append(valid, e)
	}
	return valid
}

// terminalError maps an exhausted or cancelled invocation to the terminal
// ExtractionError surfaced to the caller.
func terminalError(modelID string, err error) *ExtractionError {
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		if !extErr.Retryable {
			return extErr
		}
		return &ExtractionError{
			Code:      ErrExtractionFailed,
			Message:   "extraction failed after retries",
			ModelID:   modelID,
			Retryable: false,
			Cause:     extErr,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ExtractionError{
			Code:      ErrModelTimeout,
			Message:   "extraction timed out",
			ModelID:   modelID,
			Retryable: false,
			Cause:     err,
		}
	}
	return &ExtractionError{
		Code:      ErrExtractionFailed,
		Message:   "extraction failed",
		ModelID:   modelID,
		Retryable: false,
		Cause:     err,
	}
}
