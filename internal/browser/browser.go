// Package browser drives the authenticated Bitbucket pull-request flow in a
// real browser and opens plain URLs in the system browser.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSignInTimeout means the user did not finish signing in before the
	// sign-in wait expired.
	ErrSignInTimeout error = &timeoutError{msg: "sign-in timeout", code: "sign_in_timeout"}
	// ErrSubmitTimeout means the create button never appeared.
	ErrSubmitTimeout error = &timeoutError{msg: "submit control timeout", code: "submit_timeout"}
	// ErrWaitTimeout is returned by Page.WaitFor when the selector did not
	// appear in time.
	ErrWaitTimeout = errors.New("wait for selector timed out")
)

// timeoutError carries the error code reported for an expired wait.
type timeoutError struct {
	msg  string
	code string
}

func (e *timeoutError) Error() string     { return e.msg }
func (e *timeoutError) ErrorCode() string { return e.code }

// Page is the subset of browser automation the session driver needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches an element or timeout elapses,
	// in which case it returns an error wrapping ErrWaitTimeout.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Count returns the number of elements matching selector without waiting.
	Count(ctx context.Context, selector string) (int, error)
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Close() error
}

// Launcher starts a browser and returns its first page.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// Opener opens a URL in the user's default browser.
type Opener interface {
	Open(url string) error
}
