package ocr

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reOInDigits  = regexp.MustCompile(`(\d)[oO](\d)`) // "12O4" -> "1204"
)

var reBoxNoise = regexp.MustCompile(`(?m)^\s*[_\-|=]{3,}\s*$`)

// Normalize collapses noisy whitespace and fixes common OCR artifacts.
// Conservative: keeps line breaks; collapses >2 newlines into a single blank line.
// NFKC folds full-width digits and compatibility forms to their plain
// equivalents; the rupee sign is unaffected.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKC.String(s)
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	s = strings.Join(lines, "\n")
	// adjacent matches need a second pass ("1O2O3")
	for i := 0; i < 2; i++ {
		s = reOInDigits.ReplaceAllString(s, "${1}0${2}")
	}
	return strings.TrimSpace(s)
}
