// Package pdf turns resolved HTML documents into A4 PDF bytes with a headless Chrome.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/angelmondragon/printshop-backend/pkg/config"
)

const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69

	defaultTimeout = 60 * time.Second
	// settleWindow bounds how long we wait for network idle after the load event.
	settleWindow = 3 * time.Second
)

// Renderer converts HTML to PDF.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// RenderError wraps every failure surfaced by ChromeRenderer.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("pdf render %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Timeout reports whether the render ran out of time.
func (e *RenderError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// ChromeRenderer launches a dedicated browser per Render call.
type ChromeRenderer struct {
	timeout    time.Duration
	chromePath string
	noSandbox  bool
}

func NewChromeRenderer(cfg config.RenderConfig) *ChromeRenderer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ChromeRenderer{
		timeout:    timeout,
		chromePath: strings.TrimSpace(cfg.ChromePath),
		noSandbox:  cfg.NoSandbox,
	}
}

func (r *ChromeRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.DisableGPU,
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	if r.noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

func (r *ChromeRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, &RenderError{Stage: "input", Err: errors.New("empty document")}
	}

	ctx, cancelTimeout := context.WithTimeout(ctx, r.timeout)
	defer cancelTimeout()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	loaded := make(chan struct{}, 1)
	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		switch e := ev.(type) {
		case *page.EventLoadEventFired:
			signal(loaded)
		case *page.EventLifecycleEvent:
			if e.Name == "networkIdle" {
				signal(idle)
			}
		}
	})

	if err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		page.SetLifecycleEventsEnabled(true),
	); err != nil {
		return nil, &RenderError{Stage: "launch", Err: err}
	}
	drain(loaded, idle)

	if err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})); err != nil {
		return nil, &RenderError{Stage: "content", Err: err}
	}

	if err := waitSettled(browserCtx, loaded, idle); err != nil {
		return nil, &RenderError{Stage: "load", Err: err}
	}

	var out []byte
	if err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().
			WithPaperWidth(a4WidthInches).
			WithPaperHeight(a4HeightInches).
			WithMarginTop(0).
			WithMarginBottom(0).
			WithMarginLeft(0).
			WithMarginRight(0).
			WithPrintBackground(true).
			WithPreferCSSPageSize(true).
			Do(ctx)
		if err != nil {
			return err
		}
		out = buf
		return nil
	})); err != nil {
		return nil, &RenderError{Stage: "print", Err: err}
	}
	if len(out) == 0 {
		return nil, &RenderError{Stage: "print", Err: errors.New("empty pdf output")}
	}
	return out, nil
}

// waitSettled blocks until the document has loaded, then gives in-flight fonts and images
// up to settleWindow to reach network idle.
func waitSettled(ctx context.Context, loaded, idle <-chan struct{}) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for ready := false; !ready; {
		select {
		case <-loaded:
			ready = true
		case <-ticker.C:
			var state string
			if err := chromedp.Run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
				return err
			}
			ready = state == "complete"
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	timer := time.NewTimer(settleWindow)
	defer timer.Stop()
	select {
	case <-idle:
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drain(chs ...chan struct{}) {
	for _, ch := range chs {
		select {
		case <-ch:
		default:
		}
	}
}
