package browser

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Browser owns one browser process and the single controlled page the
// bridge drives. Created once, torn down once.
type Browser struct {
	cfg         Config
	launcher    *launcher.Launcher
	browser     *rod.Browser
	page        *RodPage
	fallbackDir string
	logger      zerolog.Logger
}

// Launch starts the browser on the configured persistent profile and
// opens the controlled page. When the primary profile cannot be used
// (typically locked by another instance), the profile is copied to a
// fresh directory and the launch retried there; the copy is removed on
// Close.
func Launch(cfg Config, logger zerolog.Logger) (*Browser, error) {
	b := &Browser{
		cfg:    cfg,
		logger: logger.With().Str("component", "browser").Logger(),
	}

	dataDir := cfg.UserDataDir
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "chatbridge-profile")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeConfiguration,
			Message: fmt.Sprintf("Failed to create user data directory: %v", err),
		}
	}

	url, err := b.launch(dataDir)
	if err != nil {
		fallback := filepath.Join(os.TempDir(), "chatbridge-"+uuid.NewString())
		b.logger.Warn().Err(err).Str("dir", fallback).Msg("Failed to launch on primary profile, copying to fresh directory")
		if copyErr := os.CopyFS(fallback, os.DirFS(dataDir)); copyErr != nil {
			return nil, &BrowserError{
				Code:    ErrCodeLaunch,
				Message: fmt.Sprintf("Failed to copy profile to %s: %v", fallback, copyErr),
			}
		}
		b.fallbackDir = fallback
		url, err = b.launch(fallback)
		if err != nil {
			return nil, &BrowserError{
				Code:    ErrCodeLaunch,
				Message: fmt.Sprintf("Failed to launch browser: %v", err),
			}
		}
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeLaunch,
			Message: fmt.Sprintf("Failed to connect to browser: %v", err),
		}
	}
	b.browser = browser

	page, err := browser.Page(emptyTarget())
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeLaunch,
			Message: fmt.Sprintf("Failed to open page: %v", err),
		}
	}
	b.page = newRodPage(page, b.logger)

	return b, nil
}

func (b *Browser) launch(dataDir string) (string, error) {
	l := launcher.New().
		Headless(b.cfg.Headless).
		UserDataDir(dataDir)

	if b.cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	if b.cfg.ChromePath != "" {
		l = l.Bin(b.cfg.ChromePath)
	}
	if b.cfg.ProxyServer != "" {
		l = l.Proxy(b.cfg.ProxyServer)
	}

	url, err := l.Launch()
	if err != nil {
		return "", err
	}
	b.launcher = l
	return url, nil
}

// Page returns the controlled page.
func (b *Browser) Page() *RodPage {
	return b.page
}

// Close tears down the page, the browser process, and any fallback
// profile directory.
func (b *Browser) Close() error {
	var firstErr error
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			firstErr = err
		}
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	if b.fallbackDir != "" {
		if err := os.RemoveAll(b.fallbackDir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
