package diagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const shellTemplate = `<!DOCTYPE html>
<html><head></head><body>
<div id="container"></div>
<script type="module">
import mermaid from %q;
window.__mermaid = mermaid;
window.__mermaidReady = true;
</script>
</body></html>`

// ChromeOptions configures the headless browser backend.
type ChromeOptions struct {
	ScriptURL string
	ExecPath  string
	Timeout   time.Duration
}

// ChromeBackend renders mermaid definitions in one headless Chrome tab that
// loads the mermaid module once and is reused for every render.
type ChromeBackend struct {
	opts ChromeOptions

	mu          sync.Mutex
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// NewChromeBackend returns an unstarted backend.
func NewChromeBackend(opts ChromeOptions) *ChromeBackend {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &ChromeBackend{opts: opts}
}

// Start launches the browser and waits until mermaid is loaded.
func (b *ChromeBackend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		return nil
	}
	if b.opts.ScriptURL == "" {
		return errors.New("mermaid script url is empty")
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.NoSandbox)
	if b.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	shell := fmt.Sprintf(shellTemplate, b.opts.ScriptURL)
	// The first Run allocates the browser and must use the tab context itself;
	// a derived timeout context would tie the browser lifetime to it.
	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		cancelTab()
		cancelAlloc()
		return fmt.Errorf("launch browser: %w", err)
	}

	waitCtx, cancelWait := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancelWait()
	var ready bool
	err := chromedp.Run(waitCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, shell).Do(ctx)
		}),
		chromedp.Poll("window.__mermaidReady === true", &ready, chromedp.WithPollingTimeout(b.opts.Timeout)),
	)
	if err != nil {
		cancelTab()
		cancelAlloc()
		return fmt.Errorf("load mermaid: %w", err)
	}

	b.ctx = tabCtx
	b.cancelAlloc = cancelAlloc
	b.cancelTab = cancelTab
	return nil
}

// Render draws one definition with the given theme and returns the SVG markup.
func (b *ChromeBackend) Render(ctx context.Context, definition string, theme Theme, id string) (string, error) {
	b.mu.Lock()
	tab := b.ctx
	b.mu.Unlock()
	if tab == nil {
		return "", ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	args, err := json.Marshal([]string{definition, string(theme), id})
	if err != nil {
		return "", err
	}
	script := fmt.Sprintf(`(async (args) => {
  const [def, thm, diagId] = args;
  const mermaid = window.__mermaid;
  mermaid.initialize({ startOnLoad: false, theme: thm, securityLevel: 'loose' });
  const { svg } = await mermaid.render(diagId, def);
  return svg;
})(%s)`, args)

	renderCtx, cancel := context.WithTimeout(tab, b.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var svg string
	err = chromedp.Run(renderCtx, chromedp.Evaluate(script, &svg, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return "", err
	}
	return svg, nil
}

// Close shuts the browser down.
func (b *ChromeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil
	}
	b.cancelTab()
	b.cancelAlloc()
	b.ctx = nil
	return nil
}
