// Package browser defines the Browser Pool collaborator (spec.md §4.3):
// cheap page acquisition backed by a single long-lived browser instance.
// Pages are exclusively-owned, scoped resources that must be released on
// every exit path.
package browser

import (
	"context"
	"time"
)

// Page is an opaque handle to a single browser tab. It is exclusively
// owned by the pipeline invocation that acquired it.
type Page interface {
	// id is unexported so external packages cannot fabricate a Page.
	id() string
}

// Browser is the collaborator interface consumed by the core (spec.md §4.3).
// Implementations must make ReleasePage idempotent.
type Browser interface {
	// AcquirePage returns a fresh page handle. It may block briefly under
	// load but must be cheap once the browser has warmed up.
	AcquirePage(ctx context.Context) (Page, error)
	// Navigate loads url in page, failing with a NavigationError-class
	// error on network or timeout failure.
	Navigate(ctx context.Context, page Page, url string, timeout time.Duration) error
	// Evaluate executes script in page and returns its JS return value.
	Evaluate(ctx context.Context, page Page, script string) (any, error)
	// ReleasePage returns page's resources. Calling it more than once, or
	// with a page from a different Browser, is a safe no-op.
	ReleasePage(page Page)
}

// NavigationError wraps a navigation failure so callers can pattern-match
// it against the transient-error substrings in spec.md §4.7.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return "navigation to " + e.URL + ": " + e.Err.Error()
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}
