package segment

import (
	"strings"

	"github.com/pharmextract/backend/internal/report"
)

const (
	findingsHeader    = "FINDINGS:"
	impressionHeader  = "IMPRESSION:"
	examinationHeader = "EXAMINATION:"

	examinationLabel = "examination"
)

var examPrefixes = []string{"EXAMINATION:", "EXAM:", "STUDY:"}

// FormatText renders segments into a flat plain-text representation:
// prefix sections first, then a FINDINGS block with one bulleted group per
// label, then an IMPRESSION trailer.
func FormatText(segments []report.Segment) string {
	var parts []string

	renderPrefix(segments, &parts)
	renderBody(segments, &parts)
	renderSuffix(segments, &parts)

	return strings.TrimRight(strings.Join(parts, "\n"), "\n ")
}

func renderPrefix(segments []report.Segment, parts *[]string) {
	for _, seg := range segments {
		if seg.Type != report.SectionPrefix {
			continue
		}
		label := strings.ToLower(seg.Label)
		if label == examinationLabel {
			*parts = append(*parts, examinationHeader, "")
			for _, line := range contentLines(seg) {
				if stripped := stripExamPrefix(line); stripped != "" {
					*parts = append(*parts, stripped)
				}
			}
			*parts = append(*parts, "")
			continue
		}
		// Plain or custom-labeled prefix content renders as-is.
		for _, line := range contentLines(seg) {
			*parts = append(*parts, line)
		}
		*parts = append(*parts, "")
	}
}

func renderBody(segments []report.Segment, parts *[]string) {
	wroteHeader := false
	for _, seg := range segments {
		if seg.Type != report.SectionBody {
			continue
		}
		if !wroteHeader {
			if len(*parts) > 0 {
				*parts = append(*parts, "")
			}
			*parts = append(*parts, findingsHeader, "")
			wroteHeader = true
		}
		*parts = append(*parts, seg.Label+":")
		for _, line := range contentLines(seg) {
			*parts = append(*parts, "- "+line)
		}
		*parts = append(*parts, "")
	}
}

func renderSuffix(segments []report.Segment, parts *[]string) {
	wroteHeader := false
	for _, seg := range segments {
		if seg.Type != report.SectionSuffix {
			continue
		}
		if !wroteHeader {
			if len(*parts) > 0 && strings.TrimSpace((*parts)[len(*parts)-1]) != "" {
				*parts = append(*parts, "")
			}
			*parts = append(*parts, impressionHeader, "")
			wroteHeader = true
		}
		for _, line := range contentLines(seg) {
			*parts = append(*parts, line)
		}
	}
}

// contentLines splits a (possibly merged) segment into its display
// sub-items, skipping empty lines.
func contentLines(seg report.Segment) []string {
	var lines []string
	for _, line := range strings.Split(seg.Content, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

// stripExamPrefix removes common examination prefixes from a line.
func stripExamPrefix(text string) string {
	upper := strings.ToUpper(text)
	for _, prefix := range examPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return strings.TrimSpace(text[len(prefix):])
		}
	}
	return strings.TrimSpace(text)
}
