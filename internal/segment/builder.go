// Package segment converts raw model extractions into ordered,
// non-overlapping display segments. Everything here is pure and
// deterministic: cache-returned responses must be byte-for-byte
// reproducible from the same annotated document.
package segment

import (
	"sort"
	"strings"

	"github.com/pharmextract/backend/internal/report"
)

const (
	sectionAttribute      = "section"
	significanceAttribute = "clinical_significance"
)

// classToSection maps extraction classes to section types. The legacy
// radiology classes survive in prebuilt sample caches.
var classToSection = map[string]report.SectionType{
	"document_header":    report.SectionPrefix,
	"methodology_body":   report.SectionBody,
	"results_body":       report.SectionBody,
	"conclusions_suffix": report.SectionSuffix,

	"findings_prefix": report.SectionPrefix,
	"findings_body":   report.SectionBody,
	"findings_suffix": report.SectionSuffix,

	"prefix": report.SectionPrefix,
	"body":   report.SectionBody,
	"suffix": report.SectionSuffix,
}

// item is one classified extraction during building. order is the discovery
// index in the annotated document, used for all tie-breaks.
type item struct {
	typ          report.SectionType
	label        string
	content      string
	significance string
	interval     *report.Interval
	order        int
}

// Build transforms an annotated document into ordered display segments:
// extractions are sorted by span position, overlaps are resolved in favor of
// the longest span, and adjacent extractions sharing a label merge into one
// grouped segment.
func Build(doc *report.AnnotatedDocument) []report.Segment {
	items := classify(doc)
	items = resolveOverlaps(items)
	sortBySpan(items)

	prefix, body, suffix := splitSections(items)
	body = groupBodyByLabel(body)

	ordered := make([]item, 0, len(items))
	ordered = append(ordered, prefix...)
	ordered = append(ordered, body...)
	ordered = append(ordered, suffix...)

	return mergeAdjacent(ordered)
}

func classify(doc *report.AnnotatedDocument) []item {
	var items []item
	for i, ext := range doc.Extractions {
		typ, ok := classToSection[strings.ToLower(strings.TrimSpace(ext.Class))]
		if !ok {
			continue
		}

		label := typ.String()
		if v := ext.Attributes[sectionAttribute]; v != "" {
			label = v
		}
		significance := strings.ToLower(ext.Attributes[significanceAttribute])

		var iv *report.Interval
		if ci := ext.CharInterval; ci != nil {
			iv = &report.Interval{StartPos: ci.StartPos, EndPos: ci.EndPos}
		}

		items = append(items, item{
			typ:          typ,
			label:        label,
			content:      strings.TrimSpace(ext.Text),
			significance: significance,
			interval:     iv,
			order:        i,
		})
	}
	return items
}

// resolveOverlaps drops spans in favor of longer overlapping ones. Candidates
// are considered longest-first (ties broken by discovery order), and each is
// kept only if it does not overlap an already-kept span. This discards fully
// subsumed spans and resolves partial overlaps the same way, keeping the
// final interval set pairwise disjoint.
func resolveOverlaps(items []item) []item {
	spanned := make([]int, 0, len(items))
	for i := range items {
		if items[i].interval != nil {
			spanned = append(spanned, i)
		}
	}
	sort.SliceStable(spanned, func(a, b int) bool {
		la := length(items[spanned[a]])
		lb := length(items[spanned[b]])
		if la != lb {
			return la > lb
		}
		return items[spanned[a]].order < items[spanned[b]].order
	})

	dropped := make(map[int]bool)
	var kept []report.Interval
	for _, idx := range spanned {
		iv := *items[idx].interval
		conflict := false
		for _, k := range kept {
			if iv.Overlaps(k) {
				conflict = true
				break
			}
		}
		if conflict {
			dropped[idx] = true
			continue
		}
		kept = append(kept, iv)
	}

	out := items[:0]
	for i := range items {
		if !dropped[i] {
			out = append(out, items[i])
		}
	}
	return out
}

func length(it item) int {
	return it.interval.EndPos - it.interval.StartPos
}

// sortBySpan orders items by (start, end, discovery order). Items without a
// span sort after all spanned items, in discovery order.
func sortBySpan(items []item) {
	sort.SliceStable(items, func(a, b int) bool {
		ia, ib := items[a], items[b]
		if (ia.interval == nil) != (ib.interval == nil) {
			return ib.interval == nil
		}
		if ia.interval != nil {
			if ia.interval.StartPos != ib.interval.StartPos {
				return ia.interval.StartPos < ib.interval.StartPos
			}
			if ia.interval.EndPos != ib.interval.EndPos {
				return ia.interval.EndPos < ib.interval.EndPos
			}
		}
		return ia.order < ib.order
	})
}

func splitSections(items []item) (prefix, body, suffix []item) {
	for _, it := range items {
		switch it.typ {
		case report.SectionPrefix:
			prefix = append(prefix, it)
		case report.SectionBody:
			body = append(body, it)
		case report.SectionSuffix:
			suffix = append(suffix, it)
		}
	}
	return prefix, body, suffix
}

// groupBodyByLabel reorders body items so all items sharing a label are
// adjacent, preserving the order in which labels first appear.
func groupBodyByLabel(body []item) []item {
	byLabel := make(map[string][]item)
	var labels []string
	for _, it := range body {
		if _, seen := byLabel[it.label]; !seen {
			labels = append(labels, it.label)
		}
		byLabel[it.label] = append(byLabel[it.label], it)
	}

	out := make([]item, 0, len(body))
	for _, label := range labels {
		out = append(out, byLabel[label]...)
	}
	return out
}

// mergeAdjacent folds consecutive items with the same (type, label) into one
// grouped segment: contents become display sub-items (one per line) and the
// interval sets are concatenated.
func mergeAdjacent(items []item) []report.Segment {
	var segments []report.Segment
	for _, it := range items {
		if n := len(segments); n > 0 {
			last := &segments[n-1]
			if last.Type == it.typ && last.Label == it.label {
				if it.content != "" && !containsLine(last.Content, it.content) {
					if last.Content == "" {
						last.Content = it.content
					} else {
						last.Content += "\n" + it.content
					}
				}
				if it.interval != nil {
					last.Intervals = append(last.Intervals, *it.interval)
				}
				if last.Significance == "" {
					last.Significance = it.significance
				}
				continue
			}
		}

		seg := report.Segment{
			Type:         it.typ,
			Label:        it.label,
			Content:      it.content,
			Intervals:    []report.Interval{},
			Significance: it.significance,
		}
		if it.interval != nil {
			seg.Intervals = append(seg.Intervals, *it.interval)
		}
		segments = append(segments, seg)
	}
	return segments
}

// containsLine reports whether content already holds line as a sub-item.
func containsLine(content, line string) bool {
	for _, l := range strings.Split(content, "\n") {
		if l == line {
			return true
		}
	}
	return false
}
