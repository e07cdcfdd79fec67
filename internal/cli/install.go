package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saran/chatbridge/pkg/browser"
	"github.com/saran/chatbridge/pkg/chatgpt"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Log in interactively through a visible browser",
	Long: `Open a visible browser window on the chat site so you can log in.
The login lands in the persistent browser profile; afterwards the bridge
can run headless. Press Enter once you are logged in.`,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lg, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer lg.Close()

	// The whole point of install is a window the user can type into.
	browserCfg := cfg.Browser
	browserCfg.Headless = false

	b, err := browser.Launch(browserCfg, lg.GetZerolog())
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
	if err := rt.Sessions().LoadChat(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Log in through the browser window, then press Enter here...")
	bufio.NewScanner(os.Stdin).Scan()

	if err := rt.Sessions().Refresh(cmd.Context()); err != nil {
		return err
	}
	if !rt.Sessions().Current().Usable() {
		return fmt.Errorf("session is still not usable, login did not complete")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Login verified, you can now run chatbridge headless.")
	return nil
}
