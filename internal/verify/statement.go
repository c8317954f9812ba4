package verify

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reStatementRef = regexp.MustCompile(`\d{12,}`)
	// 1,23,456.78, 12,345.67 or 500.00Dr; statements rarely print a currency sign
	reStatementAmount = regexp.MustCompile(`\b(?:\d{1,3}(?:,\d{2,3})+|\d+)\.\d{2}`)
)

// StatementIndex maps the references printed in a bank statement to the
// amounts found next to them.
type StatementIndex map[string][]float64

// ParseStatement indexes every 12+ digit run in text. Amounts are read from
// the same line, or from the next line when the reference line has none.
func ParseStatement(text string) StatementIndex {
	idx := StatementIndex{}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, ln := range lines {
		refs := reStatementRef.FindAllString(ln, -1)
		if len(refs) == 0 {
			continue
		}
		amounts := statementAmounts(ln)
		if len(amounts) == 0 && i+1 < len(lines) {
			amounts = statementAmounts(lines[i+1])
		}
		for _, ref := range refs {
			idx[ref] = append(idx[ref], amounts...)
		}
	}
	return idx
}

// Lookup returns the amounts recorded for ref and whether ref appears at all.
func (s StatementIndex) Lookup(ref string) ([]float64, bool) {
	amounts, ok := s[NormalizeReference(ref)]
	return amounts, ok
}

func statementAmounts(line string) []float64 {
	var out []float64
	for _, loc := range reStatementAmount.FindAllStringIndex(line, -1) {
		// 15.03.2026 is a date, not 15.03
		if loc[1] < len(line) && strings.IndexByte(".,0123456789", line[loc[1]]) >= 0 {
			continue
		}
		if loc[0] > 0 && line[loc[0]-1] == '.' {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(line[loc[0]:loc[1]], ",", ""), 64)
		if err != nil || v <= 0 || v >= maxPlausibleAmount {
			continue
		}
		out = append(out, v)
	}
	for _, h := range amountHits(line) {
		out = append(out, h.value)
	}
	return out
}
