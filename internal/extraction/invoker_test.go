package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/pharmextract/backend/internal/report"
)

func TestInvokeReturnsDocument(t *testing.T) {
	ctrl := gomock.NewController(t)
	structurer := NewMockStructurer(ctrl)

	text := "FINDINGS: Normal heart and lungs. IMPRESSION: Normal study."
	doc := &report.AnnotatedDocument{
		Extractions: []report.Extraction{
			{
				Text:         "Normal heart and lungs.",
				Class:        "results_body",
				CharInterval: &report.CharInterval{StartPos: 10, EndPos: 33},
			},
		},
	}
	structurer.EXPECT().
		Structure(gomock.Any(), text, DefaultModelID).
		Return(doc, nil)

	got, err := NewInvoker(structurer).Invoke(context.Background(), text, DefaultModelID)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(got.Extractions) != 1 {
		t.Fatalf("got %d extractions, want 1", len(got.Extractions))
	}
}

func TestInvokeDropsOutOfBoundsSpans(t *testing.T) {
	ctrl := gomock.NewController(t)
	structurer := NewMockStructurer(ctrl)

	text := "short text"
	doc := &report.AnnotatedDocument{
		Extractions: []report.Extraction{
			{Text: "in bounds", Class: "results_body", CharInterval: &report.CharInterval{StartPos: 0, EndPos: 5}},
			{Text: "past the end", Class: "results_body", CharInterval: &report.CharInterval{StartPos: 0, EndPos: 500}},
			{Text: "negative start", Class: "results_body", CharInterval: &report.CharInterval{StartPos: -1, EndPos: 5}},
			{Text: "inverted", Class: "results_body", CharInterval: &report.CharInterval{StartPos: 8, EndPos: 3}},
			{Text: "no span", Class: "conclusions_suffix"},
		},
	}
	structurer.EXPECT().
		Structure(gomock.Any(), text, DefaultModelID).
		Return(doc, nil)

	got, err := NewInvoker(structurer).Invoke(context.Background(), text, DefaultModelID)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(got.Extractions) != 2 {
		t.Fatalf("got %d extractions, want 2 (valid span + spanless)", len(got.Extractions))
	}
	if got.Extractions[0].Text != "in bounds" || got.Extractions[1].Text != "no span" {
		t.Errorf("kept wrong extractions: %+v", got.Extractions)
	}
}

func TestInvokePassesThroughNonRetryableError(t *testing.T) {
	ctrl := gomock.NewController(t)
	structurer := NewMockStructurer(ctrl)

	want := &ExtractionError{Code: ErrMalformedResponse, Message: "bad json", ModelID: DefaultModelID, Retryable: false}
	structurer.EXPECT().
		Structure(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, want).
		Times(1)

	_, err := NewInvoker(structurer).WithRetryConfig(fastRetry).Invoke(context.Background(), "text", DefaultModelID)
	var extErr *ExtractionError
	if !errors.As(err, &extErr) || extErr.Code != ErrMalformedResponse {
		t.Fatalf("err = %v, want malformed response passthrough", err)
	}
}

func TestInvokeWrapsExhaustedRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	structurer := NewMockStructurer(ctrl)

	structurer.EXPECT().
		Structure(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &ExtractionError{Code: ErrModelUnavailable, Message: "down", Retryable: true}).
		Times(fastRetry.MaxRetries + 1)

	_, err := NewInvoker(structurer).WithRetryConfig(fastRetry).Invoke(context.Background(), "text", DefaultModelID)
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
	if extErr.Code != ErrExtractionFailed || extErr.Retryable {
		t.Errorf("terminal error = %+v, want non-retryable EXTRACTION_FAILED", extErr)
	}

	var cause *ExtractionError
	if !errors.As(extErr.Cause, &cause) || cause.Code != ErrModelUnavailable {
		t.Errorf("cause = %v, want wrapped MODEL_UNAVAILABLE", extErr.Cause)
	}
}

func TestInvokeTimesOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	structurer := NewMockStructurer(ctrl)

	structurer.EXPECT().
		Structure(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string) (*report.AnnotatedDocument, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).
		AnyTimes()

	inv := NewInvoker(structurer).WithTimeout(20 * time.Millisecond).WithRetryConfig(fastRetry)
	_, err := inv.Invoke(context.Background(), "text", DefaultModelID)

	var extErr *ExtractionError
	if !errors.As(err, &extErr) || extErr.Code != ErrModelTimeout {
		t.Fatalf("err = %v, want MODEL_TIMEOUT", err)
	}
}
