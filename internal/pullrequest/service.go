// Package pullrequest turns the current branch of a working copy into a pull
// request, either as a prefilled GitHub compare page or through an
// authenticated Bitbucket browser session.
package pullrequest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gitpr/gitpr/internal/browser"
	"github.com/gitpr/gitpr/internal/gitops"
	"github.com/gitpr/gitpr/internal/prlink"
	"github.com/gitpr/gitpr/internal/remote"
)

const DefaultRemote = "origin"

// Mode selects how a pull request is created.
type Mode int

const (
	// ModeQuickLink pushes and opens a prefilled GitHub compare page.
	ModeQuickLink Mode = iota
	// ModeAuthenticatedInteractive pushes and drives a Bitbucket browser
	// session through sign-in and the creation form.
	ModeAuthenticatedInteractive
)

func (m Mode) String() string {
	switch m {
	case ModeQuickLink:
		return "quick_link"
	case ModeAuthenticatedInteractive:
		return "authenticated_interactive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

type Request struct {
	Title        string
	Body         string
	SourceBranch string
	TargetBranch string
}

// SessionOptions tune the interactive flow. They are ignored in
// ModeQuickLink.
type SessionOptions struct {
	Submit browser.SubmitPolicy
	Fields browser.FieldPolicy
}

// Outcome describes a finished flow. Session is set for interactive flows and
// stays open after the call.
type Outcome struct {
	Mode    Mode
	URL     string
	Branch  string
	Session *browser.Session
}

// Warnings returns the warnings the browser session collected, if any.
func (o *Outcome) Warnings() []string {
	if o == nil || o.Session == nil {
		return nil
	}
	return o.Session.Warnings
}

type Runner interface {
	Run(ctx context.Context, dir string, args ...string) gitops.Result
	WorkDir() string
}

type SessionDriver interface {
	CreatePullRequest(ctx context.Context, req browser.Request) (*browser.Session, error)
}

// RepoChecker gates which repositories may receive pull requests.
type RepoChecker interface {
	CheckRepo(repo string) error
}

type Config struct {
	// Remote is the git remote read and pushed to. Defaults to origin.
	Remote string
}

type Service struct {
	runner  Runner
	opener  browser.Opener
	driver  SessionDriver
	tracker *browser.Tracker
	repos   RepoChecker
	cfg     Config
	logger  *slog.Logger
	locks   keyedMutex
}

func NewService(runner Runner, opener browser.Opener, driver SessionDriver, tracker *browser.Tracker, repos RepoChecker, cfg Config, logger *slog.Logger) *Service {
	if strings.TrimSpace(cfg.Remote) == "" {
		cfg.Remote = DefaultRemote
	}
	if tracker == nil {
		tracker = browser.NewTracker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:  runner,
		opener:  opener,
		driver:  driver,
		tracker: tracker,
		repos:   repos,
		cfg:     cfg,
		logger:  logger,
		locks:   keyedMutex{locks: make(map[string]*sync.Mutex)},
	}
}

// Sessions returns the tracker holding browser sessions opened by this
// service.
func (s *Service) Sessions() *browser.Tracker {
	return s.tracker
}

// Create pushes the current branch of dir and opens a pull request for it.
// Calls for the same working directory are serialized. Nothing is pushed or
// opened when the branch or remote cannot be read or the remote does not
// belong to the provider mode expects.
func (s *Service) Create(ctx context.Context, dir string, mode Mode, req Request, opts SessionOptions) (*Outcome, error) {
	key := dir
	if key == "" {
		key = s.runner.WorkDir()
	}
	unlock := s.locks.Lock(key)
	defer unlock()

	ctx, span := otel.Tracer("gitpr/pullrequest").Start(ctx, "pullrequest.create")
	defer span.End()
	span.SetAttributes(attribute.String("pr.mode", mode.String()), attribute.String("pr.workdir", key))

	out, err := s.create(ctx, dir, mode, req, opts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (s *Service) create(ctx context.Context, dir string, mode Mode, req Request, opts SessionOptions) (*Outcome, error) {
	branch, remoteURL, err := s.readState(ctx, dir)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeQuickLink:
		repo, ok := remote.ParseGitHub(remoteURL)
		if !ok {
			return nil, &RemoteError{Provider: remote.ProviderGitHub, URL: remoteURL}
		}
		if err := s.checkRepo(repo.FullName()); err != nil {
			return nil, err
		}
		if err := s.push(ctx, dir, branch); err != nil {
			return nil, err
		}
		prURL := prlink.CompareURL(repo, req.TargetBranch, branch, req.Title, req.Body)
		if err := s.opener.Open(prURL); err != nil {
			return nil, fmt.Errorf("open browser: %w", err)
		}
		s.logger.Info("pull request page opened", "mode", mode.String(), "repo", repo.FullName(), "branch", branch, "url", prURL)
		return &Outcome{Mode: mode, URL: prURL, Branch: branch}, nil

	case ModeAuthenticatedInteractive:
		repo, ok := remote.ParseBitbucket(remoteURL)
		if !ok {
			return nil, &RemoteError{Provider: remote.ProviderBitbucket, URL: remoteURL}
		}
		if err := s.checkRepo(repo.FullName()); err != nil {
			return nil, err
		}
		if err := s.push(ctx, dir, branch); err != nil {
			return nil, err
		}
		title := req.Title
		if strings.TrimSpace(title) == "" {
			title = "PR from " + branch
		}
		return s.drive(ctx, repo, Request{Title: title, Body: req.Body, SourceBranch: branch, TargetBranch: req.TargetBranch}, opts)

	default:
		return nil, fmt.Errorf("unsupported pull request mode %s", mode)
	}
}

// CreateFor drives the interactive flow for an explicitly named Bitbucket
// repository and source branch. No local git state is read and nothing is
// pushed.
func (s *Service) CreateFor(ctx context.Context, repo remote.BitbucketRepo, req Request, opts SessionOptions) (*Outcome, error) {
	ctx, span := otel.Tracer("gitpr/pullrequest").Start(ctx, "pullrequest.create")
	defer span.End()
	span.SetAttributes(attribute.String("pr.mode", ModeAuthenticatedInteractive.String()), attribute.String("pr.repo", repo.FullName()))

	if err := s.checkRepo(repo.FullName()); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	out, err := s.drive(ctx, repo, req, opts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

// OpenRepository opens the hosting page of dir's remote in the system
// browser and returns its URL.
func (s *Service) OpenRepository(ctx context.Context, dir string) (string, error) {
	res := s.runner.Run(ctx, dir, "remote", "get-url", s.cfg.Remote)
	if !res.Success || res.Output == "" {
		return "", &PreflightError{Err: ErrNoRemote, Remote: s.cfg.Remote, Detail: res.Err}
	}

	var pageURL string
	provider, _ := remote.Detect(res.Output)
	switch provider {
	case remote.ProviderGitHub:
		repo, _ := remote.ParseGitHub(res.Output)
		pageURL = prlink.GitHubRepositoryURL(repo)
	case remote.ProviderBitbucket:
		repo, _ := remote.ParseBitbucket(res.Output)
		pageURL = prlink.BitbucketRepositoryURL(repo)
	default:
		return "", &RemoteError{URL: res.Output}
	}
	if err := s.opener.Open(pageURL); err != nil {
		return "", fmt.Errorf("open browser: %w", err)
	}
	s.logger.Info("repository page opened", "provider", string(provider), "url", pageURL)
	return pageURL, nil
}

func (s *Service) drive(ctx context.Context, repo remote.BitbucketRepo, req Request, opts SessionOptions) (*Outcome, error) {
	if s.driver == nil {
		return nil, fmt.Errorf("browser automation is not configured")
	}
	sess, err := s.driver.CreatePullRequest(ctx, browser.Request{
		Repo:        repo,
		Source:      req.SourceBranch,
		Dest:        req.TargetBranch,
		Title:       req.Title,
		Description: req.Body,
		Submit:      opts.Submit,
		Fields:      opts.Fields,
	})
	// The browser stays open for the operator whether or not the flow
	// finished.
	s.tracker.Add(sess)

	out := &Outcome{
		Mode:    ModeAuthenticatedInteractive,
		URL:     prlink.NewPullRequestURL(repo, req.SourceBranch, req.TargetBranch),
		Branch:  req.SourceBranch,
		Session: sess,
	}
	return out, err
}

func (s *Service) readState(ctx context.Context, dir string) (branch, remoteURL string, err error) {
	res := s.runner.Run(ctx, dir, "branch", "--show-current")
	if !res.Success || res.Output == "" {
		return "", "", &PreflightError{Err: ErrCurrentBranch, Remote: s.cfg.Remote, Detail: res.Err}
	}
	branch = res.Output

	res = s.runner.Run(ctx, dir, "remote", "get-url", s.cfg.Remote)
	if !res.Success || res.Output == "" {
		return "", "", &PreflightError{Err: ErrNoRemote, Remote: s.cfg.Remote, Detail: res.Err}
	}
	return branch, res.Output, nil
}

func (s *Service) push(ctx context.Context, dir, branch string) error {
	res := s.runner.Run(ctx, dir, "push", "-u", s.cfg.Remote, branch)
	if !res.Success {
		s.logger.Warn("push before pull request failed", "branch", branch, "remote", s.cfg.Remote)
		return &PushError{Branch: branch, Output: res.Err}
	}
	return nil
}

func (s *Service) checkRepo(fullName string) error {
	if s.repos == nil {
		return nil
	}
	return s.repos.CheckRepo(fullName)
}

// keyedMutex hands out one lock per key. Locks are never evicted.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
