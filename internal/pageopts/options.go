// Package pageopts defines the per-request options threaded through the
// cleaner, markdown converter, cache and pipeline packages.
package pageopts

import "encoding/json"

// ConversionOptions controls a single conversion (spec.md §4.5-§4.7).
type ConversionOptions struct {
	TargetSelectors    []string
	RemoveSelectors    []string
	AggressiveCleaning bool
	RemoveImages       bool
	MinContentLength   int
	ScrollWaitMs       int
	NoCache            bool
}

// CanonicalSelectors JSON-encodes a selector list preserving insertion
// order, matching the fingerprint canonicalization rule in spec.md §4.1.
func CanonicalSelectors(selectors []string) string {
	if selectors == nil {
		selectors = []string{}
	}
	blob, err := json.Marshal(selectors)
	if err != nil {
		return "[]"
	}
	return string(blob)
}
