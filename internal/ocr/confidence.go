package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\d{1,2} (jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)`)
	reCurr   = regexp.MustCompile(`₹|\b(rs|inr)\b`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{2,3})*(\.\d{2})?\b`)
	reUTR    = regexp.MustCompile(`\b\d{12}\b`)
)

// heuristicConfidence scores decoded text on how much it looks like a UPI
// confirmation screen, 0..100. Used when the engine gives no score of its own.
func heuristicConfidence(txt string) float64 {
	txtL := strings.ToLower(txt)
	score := 20.0 // base
	if reDate.MatchString(txtL) {
		score += 15
	}
	if reCurr.MatchString(txtL) {
		score += 20
	}
	if reAmount.MatchString(txtL) {
		score += 10
	}
	if reUTR.MatchString(txtL) {
		score += 25
	}
	if len(txt) > 80 {
		score += 10
	} // enough content
	if score > 100 {
		score = 100
	}
	return score
}
