// Package scoring implements the candidate ranking engine: extract raw
// features through a probe, min-max normalize each feature across the
// pool, combine them with fixed weights, drop everything at or below the
// threshold or not visible, and stable-sort by score.
//
// The engine is configured once and holds no state between passes, so
// one Engine may rank several pages concurrently.
package scoring

import (
	"cmp"
	"errors"
	"slices"

	"github.com/hazyhaar/cartfinder/probe"
)

// DefaultThreshold is the exclusive score cutoff: a candidate must score
// strictly above it to be kept.
const DefaultThreshold = 0.5

// ErrEmptyFeature is returned by Normalize for an empty value sequence.
var ErrEmptyFeature = errors.New("scoring: empty feature values")

// Candidate is an element under consideration paired with its score.
type Candidate struct {
	Element probe.Handle `json:"element"`
	Score   float64      `json:"score"`
	// Features holds the normalized value of every feature, keyed by name.
	Features map[string]float64 `json:"features,omitempty"`
}

// FeatureSpec is one feature's weight and its per-candidate values,
// aligned by position with the candidate pool.
type FeatureSpec struct {
	Name   string
	Weight float64
	Values []float64
}

// Result is a ranked candidate list, best first. An empty Result means no
// element qualified; it is not an error.
type Result []Candidate

// Top returns the best candidate, if any.
func (r Result) Top() (Candidate, bool) {
	if len(r) == 0 {
		return Candidate{}, false
	}
	return r[0], true
}

// Normalize rescales values in place so that the minimum becomes 0 and the
// maximum becomes 1. When every value is equal the result is all zeros.
func Normalize(values []float64) error {
	if len(values) == 0 {
		return ErrEmptyFeature
	}

	lo := values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
	}

	var hi float64
	for i := range values {
		values[i] -= lo
		if values[i] > hi {
			hi = values[i]
		}
	}
	if hi == 0 {
		return nil
	}
	for i := range values {
		values[i] /= hi
	}
	return nil
}

// Score sets every candidate's score to the weighted sum of its already
// normalized feature values.
func Score(pool []Candidate, features []FeatureSpec) {
	for i := range pool {
		pool[i].Score = 0
		pool[i].Features = make(map[string]float64, len(features))
		for _, f := range features {
			pool[i].Score += f.Weight * f.Values[i]
			pool[i].Features[f.Name] = f.Values[i]
		}
	}
}

// Select keeps candidates scoring strictly above threshold whose element
// is visible, then sorts them by descending score. Equal scores keep their
// pool order.
func Select(pool []Candidate, threshold float64, visible func(probe.Handle) bool) Result {
	out := make(Result, 0, len(pool))
	for _, c := range pool {
		if c.Score > threshold {
			out = append(out, c)
		}
	}

	out = slices.DeleteFunc(out, func(c Candidate) bool {
		return !visible(c.Element)
	})

	slices.SortStableFunc(out, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}
