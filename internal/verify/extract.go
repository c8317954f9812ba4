package verify

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ReferenceLength is the number of digits in a UPI transaction reference (UTR).
const ReferenceLength = 12

// Amounts at or above this are treated as OCR garbage.
const maxPlausibleAmount = 1_000_000

var (
	reRefLabeledLong = regexp.MustCompile(`(?i)(?:UPI\s*transaction\s*ID|Transaction\s*ID|UPI\s*Ref)[:\s]*(\d{12,})`)
	reRefLabeled     = regexp.MustCompile(`(?i)(?:Ref|Reference|UTR|ID)[:\s#]*(\d{12})(?:\D|$)`)
	reRefBare        = regexp.MustCompile(`(?:^|\D)(\d{12})(?:\D|$)`)
)

var referenceChain = []matcher[string]{
	{
		name: "labeled_long",
		match: func(text string) (string, bool) {
			m := reRefLabeledLong.FindStringSubmatch(text)
			if m == nil {
				return "", false
			}
			return m[1][:ReferenceLength], true
		},
	},
	submatch("labeled", reRefLabeled, 1),
	submatch("bare_12_digits", reRefBare, 1),
}

// ExtractReference finds the transaction reference. A found value is always
// exactly 12 ASCII digits.
func ExtractReference(text string) Candidate[string] {
	c := firstMatch(text, referenceChain)
	if v, ok := c.Get(); !ok || !isReference(v) {
		return NotFound[string]()
	}
	return c
}

func isReference(s string) bool {
	if len(s) != ReferenceLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

const amountNumber = `(\d+(?:,\d{3})*(?:\.\d{1,2})?)`

// amountPatterns are scanned in this order; hits from all of them are merged
// by position before the first plausible value is chosen.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`₹\s*` + amountNumber),
	regexp.MustCompile(`(?i)\brs\.?\s*` + amountNumber),
	regexp.MustCompile(`(?i)\binr\s*` + amountNumber),
}

type amountHit struct {
	pos   int
	value float64
}

// ExtractAmount returns the first plausible currency figure in document order.
func ExtractAmount(text string) Candidate[float64] {
	hits := amountHits(text)
	if len(hits) == 0 {
		return NotFound[float64]()
	}
	return Found(hits[0].value)
}

// amountHits collects every accepted currency figure, ordered by position.
func amountHits(text string) []amountHit {
	var hits []amountHit
	for _, re := range amountPatterns {
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			raw := strings.ReplaceAll(text[idx[2]:idx[3]], ",", "")
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v <= 0 || v >= maxPlausibleAmount {
				continue
			}
			hits = append(hits, amountHit{pos: idx[0], value: v})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	return hits
}

const monthNames = `(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)`

var dateChain = []matcher[string]{
	submatch("d_mon_yyyy", regexp.MustCompile(`(?i)\d{1,2}\s+`+monthNames+`[a-z]*[,\s]+\d{4}`), 0),
	submatch("mon_d_yyyy", regexp.MustCompile(`(?i)`+monthNames+`[a-z]*\s+\d{1,2}[,\s]+\d{4}`), 0),
	submatch("d_m_y", regexp.MustCompile(`(?:^|\D)(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})(?:\D|$)`), 1),
	submatch("y_m_d", regexp.MustCompile(`(?:^|\D)(\d{4}[/-]\d{1,2}[/-]\d{1,2})(?:\D|$)`), 1),
}

// ExtractDate returns the first date-shaped substring. It is not validated
// against a calendar.
func ExtractDate(text string) Candidate[string] {
	return firstMatch(text, dateChain)
}

var payeeChain = []matcher[string]{
	trimmed(submatch("to_label", regexp.MustCompile(`(?i)To[:\s]+([a-z][a-z\s]+?)(?:\n|$|google|@)`), 1)),
	trimmed(submatch("paid_to", regexp.MustCompile(`(?i)(?:paid\s*to|sent\s*to|beneficiary)[:\s]+([a-z][a-z \t]*)`), 1)),
}

func trimmed(m matcher[string]) matcher[string] {
	inner := m.match
	m.match = func(text string) (string, bool) {
		v, ok := inner(text)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	return m
}

// ExtractPayee returns the recipient name shown on the confirmation, if any.
func ExtractPayee(text string) Candidate[string] {
	return firstMatch(text, payeeChain)
}

// App is a known UPI payment application.
type App struct {
	Name    string
	Aliases []string
}

// KnownApps in detection priority. The bare "upi" alias of BHIM appears on
// almost every confirmation, so anything listed before it takes precedence.
var KnownApps = []App{
	{Name: "Google Pay", Aliases: []string{"google pay", "gpay", "g pay"}},
	{Name: "PhonePe", Aliases: []string{"phonepe", "phone pe"}},
	{Name: "Paytm", Aliases: []string{"paytm"}},
	{Name: "BHIM UPI", Aliases: []string{"bhim", "upi"}},
	{Name: "Amazon Pay", Aliases: []string{"amazon pay"}},
	{Name: "CRED", Aliases: []string{"cred"}},
}

// DetectApp returns the first known application named in text, or "".
func DetectApp(text string) string {
	lower := strings.ToLower(text)
	for _, app := range KnownApps {
		if containsAny(lower, app.Aliases) {
			return app.Name
		}
	}
	return ""
}

// Explain reports which matcher produced each found field. Useful in review
// tooling and debug logs; Verify does not depend on it.
func Explain(text string) map[string]string {
	out := map[string]string{}
	if _, name, ok := firstMatchNamed(text, referenceChain); ok {
		out["transaction_reference"] = name
	}
	if _, name, ok := firstMatchNamed(text, dateChain); ok {
		out["transaction_date"] = name
	}
	if _, name, ok := firstMatchNamed(text, payeeChain); ok {
		out["payee_name"] = name
	}
	if hits := amountHits(text); len(hits) > 0 {
		out["amount"] = "first_in_document"
	}
	return out
}
