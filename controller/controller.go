// Package controller owns the per-browser application state: the live chart,
// its line toggle, the rendered table and the fetch in flight.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"epschart/credential"
	"epschart/earnings"
	"epschart/logger"
	"epschart/render"
)

// ErrSuperseded is returned by a fetch that finished after a newer one
// started. Its result is dropped.
var ErrSuperseded = errors.New("superseded by a newer fetch")

// Lookup is the part of earnings.Service the controller drives.
type Lookup interface {
	Lookup(ctx context.Context, cred credential.Credential, ticker string) (earnings.Series, error)
}

type Controller struct {
	lookup    Lookup
	chartOpts render.ChartOptions

	mu        sync.Mutex
	ticker    string
	chart     *render.Chart
	rows      []render.Row
	showLines bool
	visible   bool
	alert     string
	gen       uint64
	cancel    context.CancelFunc
	lastSeen  time.Time
}

func New(lookup Lookup, o render.ChartOptions) *Controller {
	return &Controller{
		lookup:    lookup,
		chartOpts: o,
		showLines: true,
		lastSeen:  time.Now(),
	}
}

// Fetch looks up ticker with cred and, on success, replaces the chart and the
// table wholesale. Any fetch still running for this controller is cancelled;
// if it completes anyway it gets ErrSuperseded and leaves the state alone.
// A failure keeps the previous chart and sets the one-shot alert.
func (c *Controller) Fetch(ctx context.Context, ticker string, cred credential.Credential) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.ticker = ticker
	c.lastSeen = time.Now()
	c.mu.Unlock()

	series, err := c.lookup.Lookup(ctx, cred, ticker)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		logger.Debugf("fetch %q dropped, superseded", ticker)
		return ErrSuperseded
	}
	c.cancel = nil
	if err != nil {
		logger.Warnf("fetch %q via %s failed: %v", ticker, cred.Mode, err)
		c.alert = AlertText(err)
		return err
	}

	c.chart = render.NewChart(series, c.showLines, c.chartOpts)
	c.rows = render.Rows(series)
	c.visible = true
	c.alert = ""
	logger.Infof("rendered %d quarters for %q via %s", series.Len(), ticker, cred.Mode)
	return nil
}

// AlertText is the single message shown for any failed fetch.
func AlertText(err error) string {
	return "Error: " + err.Error()
}

// ToggleLines flips line visibility, restyles the live chart in place if
// there is one, and returns the patch for the browser-side instance.
func (c *Controller) ToggleLines() render.LinePatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()

	c.showLines = !c.showLines
	if c.chart == nil {
		return render.NewLinePatch(c.showLines)
	}
	c.chart.SetShowLines(c.showLines)
	return c.chart.LinePatch()
}

// View returns what the page should show now. The alert is handed out once.
func (c *Controller) View() render.PageData {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()

	data := render.PageData{
		Ticker:     c.ticker,
		AssetsHost: c.chartOpts.AssetsHost,
		ShowLines:  c.showLines,
		Visible:    c.visible,
		Rows:       c.rows,
		Alert:      c.alert,
	}
	if c.chart != nil {
		s := c.chart.Snippet()
		data.Chart = &s
	}
	c.alert = ""
	return data
}

// Standalone is the current chart as a self-contained document, or false if
// nothing has been rendered yet.
func (c *Controller) Standalone() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chart == nil {
		return nil, false
	}
	return c.chart.Standalone(), true
}

func (c *Controller) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Close cancels a fetch in flight, if any.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
}
