package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/playwright-community/playwright-go"

	"github.com/nomadsam6/bls2/internal/config"
	"github.com/nomadsam6/bls2/internal/domain"
)

func TestNewSession_DriverFailureWrapsBrowserInit(t *testing.T) {
	orig := startPlaywright
	startPlaywright = func(options ...*playwright.RunOptions) (*playwright.Playwright, error) {
		return nil, errors.New("driver not installed")
	}
	defer func() { startPlaywright = orig }()

	launcher := NewLauncher(config.MonitorConfig{Headless: true})
	_, err := launcher.NewSession(context.Background())
	if !errors.Is(err, domain.ErrBrowserInit) {
		t.Errorf("expected ErrBrowserInit, got %v", err)
	}
}

func TestNewSession_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	launcher := NewLauncher(config.MonitorConfig{Headless: true})
	_, err := launcher.NewSession(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation, got %v", err)
	}
	if errors.Is(err, domain.ErrBrowserInit) {
		t.Error("cancellation must not report a browser failure")
	}
}
