// Package browsertest provides scripted browser fakes for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gitpr/gitpr/internal/browser"
)

// Page records every call and answers from its configuration. Selectors in
// Present exist immediately; any other selector makes WaitFor time out.
type Page struct {
	mu sync.Mutex

	Present     map[string]bool
	NavigateErr map[string]error
	FillErr     error
	ClickErr    error

	Navigations []string
	Waits       []Wait
	Fills       map[string]string
	Clicks      []string
	Closed      bool
}

type Wait struct {
	Selector string
	Timeout  time.Duration
}

func NewPage(present ...string) *Page {
	p := &Page{
		Present:     make(map[string]bool),
		NavigateErr: make(map[string]error),
		Fills:       make(map[string]string),
	}
	for _, s := range present {
		p.Present[s] = true
	}
	return p
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	return p.NavigateErr[url]
}

func (p *Page) WaitFor(_ context.Context, selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Waits = append(p.Waits, Wait{Selector: selector, Timeout: timeout})
	if !p.Present[selector] {
		return fmt.Errorf("%w: %s", browser.ErrWaitTimeout, selector)
	}
	return nil
}

func (p *Page) Count(_ context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Present[selector] {
		return 1, nil
	}
	return 0, nil
}

func (p *Page) Fill(_ context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FillErr != nil {
		return p.FillErr
	}
	p.Fills[selector] = value
	return nil
}

func (p *Page) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ClickErr != nil {
		return p.ClickErr
	}
	p.Clicks = append(p.Clicks, selector)
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Closed
}

// Launcher hands out Page, or fails with Err.
type Launcher struct {
	Page     *Page
	Err      error
	Launches int
}

func (l *Launcher) Launch(context.Context) (browser.Page, error) {
	l.Launches++
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Page, nil
}

// Opener records opened URLs.
type Opener struct {
	Err    error
	Opened []string
}

func (o *Opener) Open(url string) error {
	o.Opened = append(o.Opened, url)
	return o.Err
}
