// Package report defines the shared data model for structured clinical
// reports: model extractions, character intervals, and display segments.
// All offsets are in the coordinate space of the sanitized (canonical) text.
package report

import "fmt"

// SectionType classifies a segment into one of the three report sections.
type SectionType string

const (
	SectionPrefix SectionType = "prefix"
	SectionBody   SectionType = "body"
	SectionSuffix SectionType = "suffix"
)

func (t SectionType) String() string { return string(t) }

// Valid reports whether t is one of the three known section types.
func (t SectionType) Valid() bool {
	switch t {
	case SectionPrefix, SectionBody, SectionSuffix:
		return true
	}
	return false
}

// CharInterval is a half-open-ish character span [StartPos, EndPos] as
// returned by the structuring model, serialized in the raw annotated
// document with snake_case keys.
type CharInterval struct {
	StartPos int `json:"start_pos"`
	EndPos   int `json:"end_pos"`
}

// Interval is the frontend-facing form of a character span.
type Interval struct {
	StartPos int `json:"startPos"`
	EndPos   int `json:"endPos"`
}

// Overlaps reports whether two intervals share at least one position.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.StartPos < other.EndPos && other.StartPos < iv.EndPos
}

// Extraction is a single typed span produced by the structuring model.
type Extraction struct {
	Text            string            `json:"extraction_text"`
	Class           string            `json:"extraction_class"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	CharInterval    *CharInterval     `json:"char_interval,omitempty"`
	AlignmentStatus string            `json:"alignment_status,omitempty"`
}

// AnnotatedDocument is the raw output of one model invocation.
type AnnotatedDocument struct {
	Extractions []Extraction `json:"extractions"`
}

// Segment is a labeled, position-anchored unit of structured output
// consumed by the presentation layer.
type Segment struct {
	Type         SectionType `json:"type"`
	Label        string      `json:"label"`
	Content      string      `json:"content"`
	Intervals    []Interval  `json:"intervals"`
	Significance string      `json:"significance,omitempty"`
}

// StructuredReport is the cacheable result of structuring one report.
type StructuredReport struct {
	Segments          []Segment         `json:"segments"`
	AnnotatedDocument AnnotatedDocument `json:"annotated_document_json"`
	Text              string            `json:"text"`
	RawPrompt         string            `json:"raw_prompt,omitempty"`
}

// Validate checks the interval soundness invariant: every interval lies
// within [0, canonicalLen] and no two intervals overlap.
func (r *StructuredReport) Validate(canonicalLen int) error {
	var all []Interval
	for _, seg := range r.Segments {
		if !seg.Type.Valid() {
			return fmt.Errorf("segment %q has unknown type %q", seg.Label, seg.Type)
		}
		for _, iv := range seg.Intervals {
			if iv.StartPos < 0 || iv.EndPos < iv.StartPos || iv.EndPos > canonicalLen {
				return fmt.Errorf("interval [%d,%d) outside [0,%d]", iv.StartPos, iv.EndPos, canonicalLen)
			}
			for _, prev := range all {
				if iv.Overlaps(prev) {
					return fmt.Errorf("interval [%d,%d) overlaps [%d,%d)", iv.StartPos, iv.EndPos, prev.StartPos, prev.EndPos)
				}
			}
			all = append(all, iv)
		}
	}
	return nil
}
