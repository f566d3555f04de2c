package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gitpr/gitpr/internal/prlink"
	"github.com/gitpr/gitpr/internal/remote"
	"github.com/gitpr/gitpr/internal/telemetry"
)

// State is a step of the authenticated pull-request flow.
type State string

const (
	StateStart          State = "Start"
	StateAwaitingSignIn State = "AwaitingSignIn"
	StateAuthenticated  State = "Authenticated"
	StateOnPRPage       State = "OnPRPage"
	StateFormFilled     State = "FormFilled"
	StateSubmitted      State = "Submitted"
)

const (
	SignInURL = "https://bitbucket.org/account/signin/"

	SignedInSelector     = `[data-ds--page-layout--slot="top-navigation"]`
	TitleSelector        = `input[name="title"], textarea[name="title"]`
	DescriptionSelector  = `textarea[name="description"], div[contenteditable="true"]`
	CreateButtonSelector = `[data-testid="create-PR-button"]`

	DefaultSignInTimeout = 2 * time.Minute
	DefaultSubmitTimeout = time.Minute
)

// SubmitPolicy decides whether clicking the create button is part of success.
type SubmitPolicy int

const (
	// SubmitRequired fails the flow when the create button never appears.
	SubmitRequired SubmitPolicy = iota
	// SubmitOptional leaves the opened page to the operator when the create
	// button never appears.
	SubmitOptional
)

// FieldPolicy decides whether missing form fields are reported.
type FieldPolicy int

const (
	FieldsSilent FieldPolicy = iota
	FieldsWarn
)

type DriverConfig struct {
	SignInTimeout time.Duration
	SubmitTimeout time.Duration
}

// Driver runs the sign-in, navigate, fill and submit sequence.
type Driver struct {
	launcher Launcher
	cfg      DriverConfig
	logger   *slog.Logger
}

func NewDriver(launcher Launcher, cfg DriverConfig, logger *slog.Logger) *Driver {
	if cfg.SignInTimeout <= 0 {
		cfg.SignInTimeout = DefaultSignInTimeout
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{launcher: launcher, cfg: cfg, logger: logger}
}

type Request struct {
	Repo        remote.BitbucketRepo
	Source      string
	Dest        string
	Title       string
	Description string
	Submit      SubmitPolicy
	Fields      FieldPolicy
}

// Session is an open browser left for the operator. The browser outlives the
// call that created it; Close ends it.
type Session struct {
	ID       string
	URL      string
	State    State
	Warnings []string
	Opened   time.Time

	page      Page
	closeOnce sync.Once
	closeErr  error
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.page != nil {
			s.closeErr = s.page.Close()
		}
	})
	return s.closeErr
}

func (s *Session) warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// CreatePullRequest runs the flow from Start. The returned session is non-nil
// whenever a browser was launched, including on error, and is never closed
// here.
func (d *Driver) CreatePullRequest(ctx context.Context, req Request) (*Session, error) {
	prURL := prlink.NewPullRequestURL(req.Repo, req.Source, req.Dest)

	page, err := d.launcher.Launch(ctx)
	if err != nil {
		telemetry.IncBrowserSession(string(StateStart))
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	sess := &Session{
		ID:     uuid.New().String(),
		URL:    prURL,
		State:  StateStart,
		Opened: time.Now().UTC(),
		page:   page,
	}
	err = d.run(ctx, sess, req)
	telemetry.IncBrowserSession(string(sess.State))
	if err != nil {
		d.logger.Error("bitbucket pr session failed",
			"session_id", sess.ID,
			"state", string(sess.State),
			"err", err,
		)
		return sess, err
	}
	d.logger.Info("bitbucket pr session finished",
		"session_id", sess.ID,
		"state", string(sess.State),
		"url", prURL,
		"warnings", len(sess.Warnings),
	)
	return sess, nil
}

func (d *Driver) run(ctx context.Context, sess *Session, req Request) error {
	page := sess.page

	if err := page.Navigate(ctx, SignInURL); err != nil {
		return fmt.Errorf("open sign-in page: %w", err)
	}
	sess.State = StateAwaitingSignIn
	d.logger.Info("waiting for bitbucket sign-in", "session_id", sess.ID, "timeout", d.cfg.SignInTimeout.String())

	if err := page.WaitFor(ctx, SignedInSelector, d.cfg.SignInTimeout); err != nil {
		if errors.Is(err, ErrWaitTimeout) {
			telemetry.IncSignInTimeout()
			return fmt.Errorf("%w: timed out after %s waiting for Bitbucket sign-in", ErrSignInTimeout, d.cfg.SignInTimeout)
		}
		return fmt.Errorf("wait for sign-in: %w", err)
	}
	sess.State = StateAuthenticated

	if err := page.Navigate(ctx, sess.URL); err != nil {
		return fmt.Errorf("open pull request page: %w", err)
	}
	sess.State = StateOnPRPage

	d.fill(ctx, sess, req, "title", TitleSelector, req.Title)
	if req.Description != "" {
		d.fill(ctx, sess, req, "description", DescriptionSelector, req.Description)
	}
	sess.State = StateFormFilled

	if err := page.WaitFor(ctx, CreateButtonSelector, d.cfg.SubmitTimeout); err != nil {
		if !errors.Is(err, ErrWaitTimeout) {
			return fmt.Errorf("wait for create button: %w", err)
		}
		if req.Submit == SubmitRequired {
			return fmt.Errorf("%w: create button did not appear within %s", ErrSubmitTimeout, d.cfg.SubmitTimeout)
		}
		sess.warn("create button did not appear; finish the pull request in the open browser")
		return nil
	}
	if err := page.Click(ctx, CreateButtonSelector); err != nil {
		if req.Submit == SubmitRequired {
			return fmt.Errorf("click create button: %w", err)
		}
		sess.warn("could not click the create button: " + err.Error())
		return nil
	}
	sess.State = StateSubmitted
	return nil
}

// fill populates a form field when present. Missing or unfillable fields are
// never fatal.
func (d *Driver) fill(ctx context.Context, sess *Session, req Request, field, selector, value string) {
	n, err := sess.page.Count(ctx, selector)
	if err == nil && n > 0 {
		err = sess.page.Fill(ctx, selector, value)
		if err == nil {
			return
		}
	}
	if err == nil {
		err = errors.New("field not found")
	}
	d.logger.Warn("pull request form field not filled", "session_id", sess.ID, "field", field, "err", err)
	if req.Fields == FieldsWarn {
		sess.warn(fmt.Sprintf("%s field not filled: %v", field, err))
	}
}
