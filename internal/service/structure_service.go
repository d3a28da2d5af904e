// Package service composes the structuring pipeline and exposes it over
// HTTP: sanitize, fingerprint, cache lookup, single-flight extraction,
// segment building, and response assembly.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pharmextract/backend/internal/cache"
	"github.com/pharmextract/backend/internal/extraction"
	"github.com/pharmextract/backend/internal/report"
	"github.com/pharmextract/backend/internal/sanitize"
	"github.com/pharmextract/backend/internal/segment"
)

// StructureService orchestrates the report-structuring pipeline.
type StructureService struct {
	store          cache.Store
	coord          *cache.Coordinator
	invoker        *extraction.Invoker
	maxInputLength int
	defaultModelID string
}

// NewStructureService wires the pipeline over a shared cache store and an
// extraction invoker. maxInputLength <= 0 selects the default bound.
func NewStructureService(store cache.Store, invoker *extraction.Invoker, maxInputLength int) *StructureService {
	if maxInputLength <= 0 {
		maxInputLength = sanitize.DefaultMaxInputLength
	}
	return &StructureService{
		store:          store,
		coord:          cache.NewCoordinator(store, 0, 0),
		invoker:        invoker,
		maxInputLength: maxInputLength,
		defaultModelID: extraction.DefaultModelID,
	}
}

// WithDefaultModel overrides the model used when requests name none. The
// caller must pass a supported model ID.
func (s *StructureService) WithDefaultModel(modelID string) *StructureService {
	s.defaultModelID = modelID
	return s
}

// MaxInputLength returns the configured raw-input bound.
func (s *StructureService) MaxInputLength() int { return s.maxInputLength }

// DefaultModelID returns the model used when the request names none.
func (s *StructureService) DefaultModelID() string { return s.defaultModelID }

// PredictRequest is one structuring request.
type PredictRequest struct {
	RawText   string
	ModelID   string
	SampleID  string
	UseCache  bool
	RequestID string // for log correlation only
}

// Predict runs the pipeline for one request.
func (s *StructureService) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	modelID := req.ModelID
	if modelID == "" {
		modelID = s.defaultModelID
	}

	canonical, err := sanitize.Preprocess(req.RawText, s.maxInputLength)
	if err != nil {
		return nil, err
	}

	build := func(context.Context) (*cache.Entry, error) {
		// The build deliberately ignores request cancellation: the model call
		// is far more expensive than letting it finish, and waiters on the
		// same key want the entry populated.
		return s.buildEntry(context.WithoutCancel(ctx), canonical, modelID, req.SampleID)
	}

	if !req.UseCache {
		entry, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return s.assemble(req, canonical, entry, false)
	}

	key := cache.Fingerprint(canonical, modelID, extraction.SchemaVersion)
	if req.SampleID != "" {
		key = cache.SampleKey(req.SampleID)
	}

	entry, fromCache, err := s.coord.Do(ctx, key, build)
	if err != nil {
		return nil, err
	}

	if fromCache {
		log.Printf("cache hit [req %s] [worker %d] key=%s (no model call)", req.RequestID, os.Getpid(), shortKey(key))
		if err := s.store.RecordHit(ctx, key); err != nil {
			log.Printf("cache: hit counter update failed: %v", err)
		}
	} else {
		log.Printf("model call [req %s] [worker %d] key=%s model=%s", req.RequestID, os.Getpid(), shortKey(key), modelID)
		if err := s.store.RecordMiss(ctx); err != nil {
			log.Printf("cache: miss counter update failed: %v", err)
		}
	}

	return s.assemble(req, canonical, entry, fromCache)
}

// buildEntry performs one fresh extraction and packages it as a cache entry.
func (s *StructureService) buildEntry(ctx context.Context, canonical, modelID, sampleID string) (*cache.Entry, error) {
	doc, err := s.invoker.Invoke(ctx, canonical, modelID)
	if err != nil {
		return nil, err
	}

	segments := segment.Build(doc)
	result := report.StructuredReport{
		Segments:          segments,
		AnnotatedDocument: *doc,
		Text:              segment.FormatText(segments),
		RawPrompt:         extraction.RenderPrompt(canonical),
	}
	if err := result.Validate(len(canonical)); err != nil {
		// Builder bug, not model data quality. Surface it.
		return nil, fmt.Errorf("segment invariant violated: %w", err)
	}

	payload, err := json.Marshal(&result)
	if err != nil {
		return nil, fmt.Errorf("marshal structured report: %w", err)
	}

	key := cache.Fingerprint(canonical, modelID, extraction.SchemaVersion)
	if sampleID != "" {
		key = cache.SampleKey(sampleID)
	}
	return &cache.Entry{
		Key:       string(key),
		SampleID:  sampleID,
		Result:    payload,
		CreatedAt: time.Now(),
	}, nil
}

// assemble unpacks the cached payload into the response envelope.
func (s *StructureService) assemble(req PredictRequest, canonical string, entry *cache.Entry, fromCache bool) (*PredictResponse, error) {
	var result report.StructuredReport
	if err := json.Unmarshal(entry.Result, &result); err != nil {
		return nil, fmt.Errorf("unmarshal cached result: %w", err)
	}

	resp := &PredictResponse{
		Text:              result.Text,
		Segments:          result.Segments,
		AnnotatedDocument: result.AnnotatedDocument,
		FromCache:         fromCache,
		RawPrompt:         result.RawPrompt,
	}
	if canonical != req.RawText {
		resp.SanitizedInput = canonical
	}
	if resp.Segments == nil {
		resp.Segments = []report.Segment{}
	}
	return resp, nil
}

// Stats returns cache statistics for the auxiliary endpoint.
func (s *StructureService) Stats(ctx context.Context) (cache.Stats, error) {
	return s.store.Stats(ctx)
}

func shortKey(key cache.Key) string {
	if len(key) > 12 {
		return string(key[:12])
	}
	return string(key)
}
