package verify

import (
	"regexp"
	"strings"
)

const rupeeSign = "₹"

// paymentKeywords indicate a completed transaction screen.
var paymentKeywords = []string{
	"completed", "successful", "paid", "sent", "transaction", "upi", "reference",
}

// loose currency hints, substring match on lower-cased text
var currencyHints = []string{rupeeSign, "rs", "rs.", "inr"}

// reCurrencyToken matches RS / RS. / INR as a token: a word boundary before
// and no letter after, so "version" and "rsvp" do not count but "Rs250" does.
var reCurrencyToken = regexp.MustCompile(`(?i)\b(?:rs|inr)(?:[^a-z]|$)`)

// Classify reports whether text looks like a payment confirmation at all.
// It requires a payment keyword or loose currency hint, and additionally a
// strict currency token.
func Classify(text string) bool {
	lower := strings.ToLower(text)
	return (containsAny(lower, paymentKeywords) || containsAny(lower, currencyHints)) &&
		HasCurrencyToken(text)
}

// HasCurrencyToken is the strict currency check: a literal rupee sign, or
// RS / RS. / INR as a standalone token.
func HasCurrencyToken(text string) bool {
	return strings.Contains(text, rupeeSign) || reCurrencyToken.MatchString(text)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
