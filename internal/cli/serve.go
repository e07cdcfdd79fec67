package cli

import (
	"github.com/spf13/cobra"

	"github.com/saran/chatbridge/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway daemon",
	Long: `Run the bridge as a daemon serving a local HTTP and websocket API:
POST /v1/ask for full replies, /v1/stream for incremental deltas.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lg, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer lg.Close()

	return daemon.New(cfg, lg.GetZerolog()).Start(cmd.Context())
}
