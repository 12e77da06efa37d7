// Package browser drives a headless Chrome through the DevTools protocol for
// the browser_interact action. One Chrome process is shared across all runs
// and restarted transparently if it dies.
package browser

import (
	"context"
	"errors"
	"sync"

	"github.com/chromedp/chromedp"

	"otto/internal/shared/logging"
)

// Manager owns the shared Chrome process and its single tab. Actions execute
// serially under the mutex; the page state is deliberately persistent so a
// navigate followed by a click in a later call sees the same page.
type Manager struct {
	headless bool
	logger   logging.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

func NewManager(headless bool, logger logging.Logger) *Manager {
	return &Manager{headless: headless, logger: logging.OrNop(logger)}
}

// run executes chromedp actions against the shared tab, starting Chrome on
// first use. A dead tab (Chrome crashed, context expired) is recreated once.
func (m *Manager) run(ctx context.Context, actions ...chromedp.Action) error {
	if m == nil {
		return errors.New("browser manager not configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureTab(); err != nil {
		return err
	}
	err := m.runOnTab(ctx, actions...)
	if err != nil && m.tabCtx.Err() != nil {
		m.logger.Warn("browser tab died, restarting chrome: %v", err)
		m.reset()
		if err = m.ensureTab(); err != nil {
			return err
		}
		err = m.runOnTab(ctx, actions...)
	}
	return err
}

func (m *Manager) runOnTab(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(m.tabCtx)
	defer cancel()
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	defer close(stop)
	return chromedp.Run(runCtx, actions...)
}

// ensureTab lazily starts Chrome and opens the shared tab. Caller holds m.mu.
func (m *Manager) ensureTab() error {
	if m.tabCtx != nil && m.tabCtx.Err() == nil {
		return nil
	}
	m.reset()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.headless),
		chromedp.Flag("disable-gpu", m.headless),
	)
	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	m.tabCtx, m.tabCancel = chromedp.NewContext(m.allocCtx)
	if err := chromedp.Run(m.tabCtx, chromedp.Navigate("about:blank")); err != nil {
		m.reset()
		return err
	}
	return nil
}

// reset tears everything down so the next run starts fresh. Caller holds m.mu.
func (m *Manager) reset() {
	if m.tabCancel != nil {
		m.tabCancel()
		m.tabCtx, m.tabCancel = nil, nil
	}
	if m.allocCancel != nil {
		m.allocCancel()
		m.allocCtx, m.allocCancel = nil, nil
	}
}

// Close terminates the Chrome process. Safe to call without prior use.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}
