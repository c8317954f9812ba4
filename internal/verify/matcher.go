package verify

import "regexp"

// matcher is one link in a per-field chain. Chains are evaluated in order and
// the first matcher that reports ok wins; there is no scoring across links.
type matcher[T any] struct {
	name  string
	match func(text string) (T, bool)
}

func firstMatch[T any](text string, chain []matcher[T]) Candidate[T] {
	v, _, ok := firstMatchNamed(text, chain)
	if !ok {
		return NotFound[T]()
	}
	return Found(v)
}

// firstMatchNamed also reports which link produced the value.
func firstMatchNamed[T any](text string, chain []matcher[T]) (T, string, bool) {
	for _, m := range chain {
		if v, ok := m.match(text); ok {
			return v, m.name, true
		}
	}
	var zero T
	return zero, "", false
}

// submatch returns a matcher yielding capture group idx of the first match of re.
func submatch(name string, re *regexp.Regexp, idx int) matcher[string] {
	return matcher[string]{
		name: name,
		match: func(text string) (string, bool) {
			m := re.FindStringSubmatch(text)
			if m == nil || idx >= len(m) || m[idx] == "" {
				return "", false
			}
			return m[idx], true
		},
	}
}
