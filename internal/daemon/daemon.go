// Package daemon wires the serve mode: one browser, one runtime, a
// gateway serving the bridge, the local conversation record, and a
// keep-alive job that refreshes the session on a schedule.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/saran/chatbridge/internal/config"
	"github.com/saran/chatbridge/pkg/browser"
	"github.com/saran/chatbridge/pkg/chatgpt"
	"github.com/saran/chatbridge/pkg/gateway"
	"github.com/saran/chatbridge/pkg/store"
)

// Daemon is the serve-mode process.
type Daemon struct {
	cfg    *config.Config
	logger zerolog.Logger

	browser *browser.Browser
	runtime *chatgpt.Runtime
	client  *chatgpt.Client
	record  *store.Store
	gateway *gateway.Server
	cron    *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon from configuration.
func New(cfg *config.Config, logger zerolog.Logger) *Daemon {
	return &Daemon{
		cfg:    cfg,
		logger: logger.With().Str("component", "daemon").Logger(),
	}
}

// Start brings up every component and serves until the context is
// cancelled or a termination signal arrives.
func (d *Daemon) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)
	defer d.cancel()

	b, err := browser.Launch(d.cfg.Browser, d.logger)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	d.browser = b
	defer d.browser.Close()

	d.runtime = chatgpt.NewRuntime(b.Page(), chatgpt.RuntimeConfig{
		BaseURL:        d.cfg.BaseURL,
		SessionTimeout: d.cfg.SessionTimeout(),
		CooldownPeriod: d.cfg.Cooldown(),
		Logger:         d.logger,
	})

	if err := d.runtime.Sessions().LoadChat(d.ctx); err != nil {
		return fmt.Errorf("failed to load chat page: %w", err)
	}

	d.client = chatgpt.NewClient(d.runtime, chatgpt.ClientConfig{
		Model:        d.cfg.Model,
		Timeout:      d.cfg.AskTimeout(),
		StallTimeout: d.cfg.StallTimeout(),
		RetryBudget:  d.cfg.RetryBudget,
	})

	rec, err := store.Open(d.cfg.StorePath(), d.logger)
	if err != nil {
		return fmt.Errorf("failed to open conversation record: %w", err)
	}
	d.record = rec
	defer d.record.Close()

	gw, err := gateway.NewServer(gateway.Config{
		Port:     d.cfg.Gateway.Port,
		Client:   &recordingClient{client: d.client, record: d.record, logger: d.logger},
		Disabled: d.runtime.Disabled,
		Logger:   d.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	d.gateway = gw

	if err := d.startKeepAlive(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		errCh <- d.gateway.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	d.logger.Info().Int("port", d.cfg.Gateway.Port).Msg("Daemon started")

	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-d.ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway failed: %w", err)
		}
	}

	return d.stop()
}

// startKeepAlive schedules the periodic session refresh so the bearer
// token stays warm between requests.
func (d *Daemon) startKeepAlive() error {
	if d.cfg.KeepAlive == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(d.cfg.KeepAlive, func() {
		d.logger.Debug().Msg("Keep-alive session refresh")
		ctx, cancel := context.WithTimeout(d.ctx, 2*d.cfg.SessionTimeout())
		defer cancel()
		if err := d.runtime.Sessions().Refresh(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("Keep-alive refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid keep-alive schedule %q: %w", d.cfg.KeepAlive, err)
	}

	c.Start()
	d.cron = c
	return nil
}

func (d *Daemon) stop() error {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.gateway.Shutdown(shutdownCtx); err != nil {
		d.logger.Error().Err(err).Msg("Gateway shutdown failed")
	}

	d.cancel()
	d.wg.Wait()
	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// recordingClient records successful turns into the local conversation
// record on their way out of the gateway.
type recordingClient struct {
	client gateway.Asker
	record *store.Store
	logger zerolog.Logger
}

func (r *recordingClient) Ask(ctx context.Context, prompt string) (string, error) {
	reply, err := r.client.Ask(ctx, prompt)
	if err == nil {
		r.recordTurn(ctx)
	}
	return reply, err
}

func (r *recordingClient) AskStream(ctx context.Context, prompt string, onDelta func(string)) (string, error) {
	reply, err := r.client.AskStream(ctx, prompt, onDelta)
	if err == nil {
		r.recordTurn(ctx)
	}
	return reply, err
}

func (r *recordingClient) Conversation() chatgpt.ConversationState {
	return r.client.Conversation()
}

func (r *recordingClient) recordTurn(ctx context.Context) {
	conv := r.client.Conversation()
	if conv.ConversationID == "" {
		return
	}
	if err := r.record.RecordTurn(ctx, conv.ConversationID, conv.ParentMessageID); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to record turn")
	}
}
