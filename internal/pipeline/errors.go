package pipeline

import "strings"

// InvalidInputError is returned for malformed URLs (spec.md §4.7 step 1).
type InvalidInputError struct {
	URL    string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.URL + ": " + e.Reason
}

var transientSubstrings = []string{"net::", "Navigation timeout", "Protocol error"}

// isTransient matches the retry policy's error classification (spec.md §4.7).
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, needle := range transientSubstrings {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
