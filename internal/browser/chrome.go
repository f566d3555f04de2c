package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// ChromeLauncher starts a local Chrome through the DevTools protocol.
type ChromeLauncher struct {
	Headless bool
	ExecPath string
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", l.Headless))
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}

	// The browser is detached from ctx so it survives the tool call.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	page := &chromePage{ctx: tabCtx, cancel: func() { tabCancel(); allocCancel() }}

	// The first Run allocates the browser and ties the process to the context
	// it is given, so it must get tabCtx itself and never a derived context.
	started := make(chan error, 1)
	go func() { started <- startBrowser(tabCtx) }()
	select {
	case err := <-started:
		if err != nil {
			page.Close()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-ctx.Done():
		page.Close()
		return nil, fmt.Errorf("start chrome: %w", ctx.Err())
	}
	return page, nil
}

var startBrowser = func(ctx context.Context) error {
	return chromedp.Run(ctx)
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// run executes actions on an already started tab. Cancelling ctx aborts the
// actions without closing the tab.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, 0, chromedp.Navigate(url))
}

func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s", ErrWaitTimeout, selector)
	}
	return err
}

func (p *chromePage) Count(ctx context.Context, selector string) (int, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, 0, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	reset := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		if ("value" in el) { el.value = ""; } else { el.textContent = ""; }
		return true;
	})()`, selector)
	var found bool
	return p.run(ctx, 0,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.Evaluate(reset, &found),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) Close() error {
	p.once.Do(p.cancel)
	return nil
}
