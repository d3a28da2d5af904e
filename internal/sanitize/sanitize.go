// Package sanitize produces the canonical text for a raw clinical report.
// The canonical text is both the display text and the fingerprint input, so
// every transformation here must be a pure function of content alone.
package sanitize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxInputLength bounds raw input size unless overridden via config.
const DefaultMaxInputLength = 3000

// symbolReplacer maps Unicode symbols that trip up downstream processing to
// ASCII equivalents. Reports pasted out of PDFs are full of these.
var symbolReplacer = strings.NewReplacer(
	"•", "*", // bullet
	"●", "*", // black circle
	"➡", "->",
	"\uF0E0", "->", // Wingdings arrow
	"→", "->",
	"←", "<-",
	"×", "x",
	"↑", "up",
	"♂", "male",
	"♀", "female",
	"‐", "-",
	"–", "-",
	"—", "-",
	"\u00a0", " ", // NBSP
)

var (
	wsRun     = regexp.MustCompile(`[ \t]+`)
	blankRuns = regexp.MustCompile(`\n\s*\n\s*\n+`)

	beginWrapper = regexp.MustCompile(`(?i)---\s*BEGIN [^-]+---\n*`)
	endWrapper   = regexp.MustCompile(`(?i)\n*---\s*END [^-]+---\s*`)
	starHeader   = regexp.MustCompile(`(?i)\*{3}\s*([^*]+?)\s*\*{3}`)
	bulletHdr    = regexp.MustCompile(`(?m)^[ \t]*(?:[*\x{2022}\x{25CF}-]+[ \t]*)+`)
	enumeration  = regexp.MustCompile(`(?m)^[ \t]*(\d+)[).][ \t]+`)
)

// SanitizeText normalizes Unicode and whitespace: NFC normalization, symbol
// translation, collapse of space/tab runs, line-ending normalization, and
// removal of excessive blank lines.
func SanitizeText(text string) string {
	out := norm.NFC.String(text)
	out = stripControlChars(out)
	out = symbolReplacer.Replace(out)
	out = wsRun.ReplaceAllString(out, " ")
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// stripControlChars removes control characters other than tab and newline.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, s)
}

// NormalizeStructure rewrites structural noise common in report dumps:
// BEGIN/END wrappers, ***Header*** markers, bullet prefixes, and
// enumerations like "1)" or "1." at line start.
func NormalizeStructure(text string) string {
	text = beginWrapper.ReplaceAllString(text, "")
	text = endWrapper.ReplaceAllString(text, "")
	text = starHeader.ReplaceAllString(text, "${1}:")
	text = bulletHdr.ReplaceAllString(text, "")
	text = enumeration.ReplaceAllString(text, "${1}. ")
	// Stripping marker-only lines leaves blank runs behind; collapse them
	// here so the output is already in canonical form.
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Preprocess validates raw input and returns the canonical text.
// It is idempotent: Preprocess(Preprocess(x)) == Preprocess(x).
func Preprocess(raw string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyInput(maxLength)
	}
	if len(raw) > maxLength {
		return "", ErrInputTooLong(len(raw), maxLength)
	}
	canonical := NormalizeStructure(SanitizeText(raw))
	if canonical == "" {
		return "", ErrEmptyInput(maxLength)
	}
	return canonical, nil
}
