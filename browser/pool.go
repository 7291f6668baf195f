// Package browser keeps a small pool of headless Chrome tabs for chart
// snapshots.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"epschart/logger"
)

// Options size the pool and the snapshot viewport.
type Options struct {
	Size    int
	Timeout time.Duration
	Width   int
	Height  int
}

// Pool manages a fixed set of browser contexts for reuse
type Pool struct {
	opts        Options
	contexts    chan context.Context
	cancelFuncs map[context.Context]context.CancelFunc
	initOnce    sync.Once
	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	initialized bool
}

func New(opts Options) *Pool {
	if opts.Size <= 0 {
		opts.Size = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &Pool{
		opts:        opts,
		contexts:    make(chan context.Context, opts.Size),
		cancelFuncs: make(map[context.Context]context.CancelFunc),
	}
}

// Initialize starts the allocator and opens the tabs. It is called lazily by
// the first snapshot.
func (pool *Pool) Initialize() {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if pool.initialized {
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(pool.opts.Width, pool.opts.Height),
	)
	pool.allocCtx, pool.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)

	for i := 0; i < pool.opts.Size; i++ {
		ctx, cancel := chromedp.NewContext(pool.allocCtx, chromedp.WithLogf(logger.Debugf))
		if err := chromedp.Run(ctx, chromedp.Navigate("about:blank")); err != nil {
			logger.Errorf("browser init failed: %v", err)
			cancel()
			continue
		}
		pool.contexts <- ctx
		pool.cancelFuncs[ctx] = cancel
	}

	pool.initialized = true
	logger.Infof("browser pool initialized with %d of %d tabs", len(pool.cancelFuncs), pool.opts.Size)
}

// GetContext waits for a free tab. The returned func puts it back after
// clearing its state.
func (pool *Pool) GetContext(ctx context.Context) (context.Context, func(), error) {
	pool.initOnce.Do(pool.Initialize)

	pool.mu.Lock()
	empty := len(pool.cancelFuncs) == 0
	pool.mu.Unlock()
	if empty {
		return nil, nil, fmt.Errorf("no browser available")
	}

	select {
	case tab := <-pool.contexts:
		returnCtx := func() {
			refreshCtx, cancel := context.WithTimeout(tab, 3*time.Second)
			defer cancel()
			_ = chromedp.Run(refreshCtx,
				network.ClearBrowserCookies(),
				chromedp.Navigate("about:blank"),
			)
			pool.contexts <- tab
		}
		return tab, returnCtx, nil
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("waiting for browser: %w", ctx.Err())
	}
}

// Snapshot loads html into a tab and returns a PNG of the full page.
func (pool *Pool) Snapshot(ctx context.Context, html []byte) ([]byte, error) {
	tab, returnCtx, err := pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer returnCtx()

	timeoutCtx, cancel := context.WithTimeout(tab, pool.opts.Timeout)
	defer cancel()
	// stop early if the caller goes away
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var screenshot []byte
	err = chromedp.Run(timeoutCtx,
		chromedp.EmulateViewport(int64(pool.opts.Width), int64(pool.opts.Height)),
		chromedp.Navigate(dataURI(html)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot failed: %w", err)
	}
	return screenshot, nil
}

func dataURI(html []byte) string {
	return "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
}

// Shutdown closes all browser instances
func (pool *Pool) Shutdown() {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if !pool.initialized {
		return
	}

	for ctx, cancel := range pool.cancelFuncs {
		cancel()
		delete(pool.cancelFuncs, ctx)
	}
	if pool.allocCancel != nil {
		pool.allocCancel()
	}
	for len(pool.contexts) > 0 {
		<-pool.contexts
	}

	pool.initialized = false
	logger.Infof("browser pool shut down")
}
