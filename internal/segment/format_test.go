package segment

import (
	"strings"
	"testing"

	"github.com/pharmextract/backend/internal/report"
)

func TestFormatTextBodyAndSuffix(t *testing.T) {
	segments := []report.Segment{
		{Type: report.SectionBody, Label: "Chest", Content: "Normal heart and lungs."},
		{Type: report.SectionSuffix, Label: "suffix", Content: "Normal study."},
	}

	got := FormatText(segments)

	if !strings.Contains(got, "FINDINGS:") {
		t.Errorf("output missing FINDINGS header:\n%s", got)
	}
	if !strings.Contains(got, "Chest:\n- Normal heart and lungs.") {
		t.Errorf("output missing bulleted Chest group:\n%s", got)
	}
	if !strings.Contains(got, "IMPRESSION:\n\nNormal study.") {
		t.Errorf("output missing IMPRESSION block:\n%s", got)
	}
	if strings.Index(got, "FINDINGS:") > strings.Index(got, "IMPRESSION:") {
		t.Errorf("IMPRESSION before FINDINGS:\n%s", got)
	}
}

func TestFormatTextMultipleBodyGroups(t *testing.T) {
	segments := []report.Segment{
		{Type: report.SectionBody, Label: "Safety", Content: "Grade 2 nausea on day 3.\nHeadache resolved."},
		{Type: report.SectionBody, Label: "Efficacy", Content: "Complete response at week 12."},
	}

	got := FormatText(segments)

	if strings.Count(got, "FINDINGS:") != 1 {
		t.Errorf("FINDINGS header should appear exactly once:\n%s", got)
	}
	wantLines := []string{
		"Safety:",
		"- Grade 2 nausea on day 3.",
		"- Headache resolved.",
		"Efficacy:",
		"- Complete response at week 12.",
	}
	for _, line := range wantLines {
		if !strings.Contains(got, line) {
			t.Errorf("output missing %q:\n%s", line, got)
		}
	}
	if strings.Index(got, "Safety:") > strings.Index(got, "Efficacy:") {
		t.Errorf("groups out of order:\n%s", got)
	}
}

func TestFormatTextExaminationPrefix(t *testing.T) {
	segments := []report.Segment{
		{Type: report.SectionPrefix, Label: "examination", Content: "EXAMINATION: Chest X-ray, PA and lateral."},
		{Type: report.SectionBody, Label: "Chest", Content: "Clear lungs."},
	}

	got := FormatText(segments)

	if !strings.HasPrefix(got, "EXAMINATION:") {
		t.Errorf("output does not start with EXAMINATION header:\n%s", got)
	}
	if !strings.Contains(got, "Chest X-ray, PA and lateral.") {
		t.Errorf("examination content missing:\n%s", got)
	}
	if strings.Count(got, "EXAMINATION:") != 1 {
		t.Errorf("redundant exam prefix should be stripped from content:\n%s", got)
	}
}

func TestFormatTextGenericPrefixRendersVerbatim(t *testing.T) {
	segments := []report.Segment{
		{Type: report.SectionPrefix, Label: "study", Content: "Study PX-204 evaluated 12 mg daily dosing."},
	}

	got := FormatText(segments)
	if got != "Study PX-204 evaluated 12 mg daily dosing." {
		t.Errorf("got %q", got)
	}
}

func TestFormatTextEmpty(t *testing.T) {
	if got := FormatText(nil); got != "" {
		t.Errorf("FormatText(nil) = %q, want empty", got)
	}
}

func TestFormatTextDeterministic(t *testing.T) {
	segments := []report.Segment{
		{Type: report.SectionPrefix, Label: "examination", Content: "EXAM: CT abdomen."},
		{Type: report.SectionBody, Label: "Liver", Content: "No focal lesion."},
		{Type: report.SectionSuffix, Label: "suffix", Content: "Unremarkable study."},
	}

	first := FormatText(segments)
	for i := 0; i < 10; i++ {
		if got := FormatText(segments); got != first {
			t.Fatalf("render %d differs:\n%s\nvs\n%s", i, got, first)
		}
	}
}
