package verify

import (
	"bytes"
	"encoding/json"
)

// Candidate is the outcome of a single field extraction: either a found value
// or nothing. A not-found candidate never exposes its zero value as real data.
type Candidate[T any] struct {
	value T
	found bool
}

// Found wraps an extracted value.
func Found[T any](v T) Candidate[T] {
	return Candidate[T]{value: v, found: true}
}

// NotFound is the empty candidate.
func NotFound[T any]() Candidate[T] {
	return Candidate[T]{}
}

// Get returns the value and whether it was found.
func (c Candidate[T]) Get() (T, bool) {
	return c.value, c.found
}

// OK reports whether a value was extracted.
func (c Candidate[T]) OK() bool { return c.found }

// OrZero returns the value, or T's zero value when nothing was found.
func (c Candidate[T]) OrZero() T { return c.value }

type candidateJSON[T any] struct {
	Value T    `json:"value"`
	Found bool `json:"found"`
}

func (c Candidate[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(candidateJSON[T]{Value: c.value, Found: c.found})
}

func (c *Candidate[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*c = NotFound[T]()
		return nil
	}
	var raw candidateJSON[T]
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if !raw.Found {
		*c = NotFound[T]()
		return nil
	}
	*c = Found(raw.Value)
	return nil
}
