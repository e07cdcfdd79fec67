package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saran/chatbridge/pkg/browser"
	"github.com/saran/chatbridge/pkg/chatgpt"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Refresh the session and report login state",
	RunE:  runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}

func runSession(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lg, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer lg.Close()

	b, err := browser.Launch(cfg.Browser, lg.GetZerolog())
	if err != nil {
		return err
	}
	defer b.Close()

	rt := chatgpt.NewRuntime(b.Page(), chatgpt.RuntimeConfig{
		BaseURL:        cfg.BaseURL,
		SessionTimeout: cfg.SessionTimeout(),
		CooldownPeriod: cfg.Cooldown(),
		Logger:         lg.GetZerolog(),
	})

	if err := rt.Sessions().Refresh(cmd.Context()); err != nil {
		return err
	}

	if rt.Sessions().Current().Usable() {
		fmt.Fprintln(cmd.OutOrStdout(), "session is usable, you are logged in")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "session is not usable, run `chatbridge install` to log in")
	return nil
}
