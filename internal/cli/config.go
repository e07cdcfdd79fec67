package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/saran/chatbridge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Print the configuration the bridge would run with: the config file
merged over the built-in defaults.`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the resolved configuration to the config file",
	Long: `Write the resolved configuration out as a config file, so defaults
become explicit and editable. An existing file is overwritten with its
own resolved values.`,
	RunE: runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.NewLoader(cfgFile).Save(cfg); err != nil {
		return err
	}

	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".chatbridge", "chatbridge.json")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", path)
	return nil
}
