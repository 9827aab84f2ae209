// Package browser adapts the input-synthesis layer onto a real Chromium tab
// via the Chrome DevTools Protocol.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mimic/internal/config"
)

// Session owns one browser tab and its allocator. Close releases both.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	logger      *zap.Logger
}

// NewSession launches a browser and opens a fresh tab.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	startCtx := tabCtx
	if cfg.StartupTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(tabCtx, cfg.StartupTimeout)
		defer cancel()
	}
	// An empty Run forces the browser process to start so startup failures
	// surface here instead of on the first input event.
	if err := chromedp.Run(startCtx, chromedp.Tasks{}); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: failed to start: %w", err)
	}

	logger.Info("browser session started", zap.Bool("headless", cfg.Headless))
	return &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		logger:      logger.Named("browser"),
	}, nil
}

// Navigate loads a URL in the session tab and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.runActions(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("browser: navigation to %s failed: %w", url, err)
	}
	s.logger.Debug("navigated", zap.String("url", url))
	return nil
}

// Executor returns a humanoid executor bound to this session's tab.
func (s *Session) Executor(cfg config.InputConfig) *CDPExecutor {
	return NewCDPExecutor(s.runActions, cfg, s.logger)
}

// runActions executes CDP actions on the tab, honoring the caller's context
// in addition to the tab's own lifetime.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.tabCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
	s.logger.Debug("browser session closed")
}
