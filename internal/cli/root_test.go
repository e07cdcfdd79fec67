package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"--version"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		assert.Contains(t, output.String(), "chatbridge version")
		assert.Contains(t, output.String(), version)
	})

	t.Run("help flag", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		helpText := output.String()
		assert.Contains(t, helpText, "Chatbridge")
		assert.Contains(t, helpText, "streaming API")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
	})
}

func TestLoadConfig(t *testing.T) {
	restore := func() {
		cfgFile = ""
		logLevel = ""
	}

	t.Run("reads the config file", func(t *testing.T) {
		defer restore()

		path := filepath.Join(t.TempDir(), "chatbridge.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"base_url": "https://chat.example.com",
			"retry_budget": 3
		}`), 0o644))

		cfgFile = path
		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, "https://chat.example.com", cfg.BaseURL)
		assert.Equal(t, 3, cfg.RetryBudget)
	})

	t.Run("log-level flag overrides the file", func(t *testing.T) {
		defer restore()

		path := filepath.Join(t.TempDir(), "chatbridge.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"logging": {"level": "info"}
		}`), 0o644))

		cfgFile = path
		logLevel = "debug"
		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("rejects an invalid config", func(t *testing.T) {
		defer restore()

		path := filepath.Join(t.TempDir(), "chatbridge.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"base_url": "not a url"
		}`), 0o644))

		cfgFile = path
		_, err := loadConfig()
		assert.Error(t, err)
	})
}
