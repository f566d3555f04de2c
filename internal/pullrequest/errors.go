package pullrequest

import (
	"errors"
	"fmt"

	"github.com/gitpr/gitpr/internal/remote"
)

var (
	ErrCurrentBranch      = errors.New("current branch unavailable")
	ErrNoRemote           = errors.New("remote not found")
	ErrRemoteUnrecognized = errors.New("remote not recognized")
	ErrPushFailed         = errors.New("push failed")
)

// RemoteError reports a remote URL that matches none of the grammars the flow
// accepts. Provider is empty when any supported provider would have done.
type RemoteError struct {
	Provider remote.Provider
	URL      string
}

func (e *RemoteError) Error() string {
	switch e.Provider {
	case remote.ProviderGitHub:
		return "Not a recognized GitHub repository: " + e.URL
	case remote.ProviderBitbucket:
		return "Not a recognized Bitbucket repository: " + e.URL
	default:
		return "Not a recognized GitHub or Bitbucket repository: " + e.URL
	}
}

func (e *RemoteError) Unwrap() error     { return ErrRemoteUnrecognized }
func (e *RemoteError) ErrorCode() string { return "remote_unrecognized" }

// PushError carries the runner's failure text for a rejected push.
type PushError struct {
	Branch string
	Output string
}

func (e *PushError) Error() string {
	return fmt.Sprintf("Push failed: %s", e.Output)
}

func (e *PushError) Unwrap() error     { return ErrPushFailed }
func (e *PushError) ErrorCode() string { return "push_failed" }

// PreflightError is a failure to read local repository state before any
// remote action was attempted.
type PreflightError struct {
	Err    error
	Remote string
	Detail string
}

func (e *PreflightError) Error() string {
	if errors.Is(e.Err, ErrNoRemote) {
		return fmt.Sprintf("No remote %s found", e.Remote)
	}
	return "Error getting current branch"
}

func (e *PreflightError) Unwrap() error     { return e.Err }
func (e *PreflightError) ErrorCode() string { return "command_failed" }
