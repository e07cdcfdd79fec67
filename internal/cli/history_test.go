package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCommand(t *testing.T, name string) bool {
	t.Helper()
	for _, c := range GetRootCmd().Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}

func TestHistoryCommand(t *testing.T) {
	t.Run("command exists", func(t *testing.T) {
		assert.True(t, findCommand(t, "history"))
	})

	t.Run("subcommands exist", func(t *testing.T) {
		var names []string
		for _, c := range historyCmd.Commands() {
			names = append(names, c.Name())
		}
		assert.Contains(t, names, "title")
		assert.Contains(t, names, "delete")
	})

	t.Run("flags and defaults", func(t *testing.T) {
		offset := historyCmd.Flags().Lookup("offset")
		require.NotNil(t, offset)
		assert.Equal(t, "0", offset.DefValue)

		limit := historyCmd.Flags().Lookup("limit")
		require.NotNil(t, limit)
		assert.Equal(t, "20", limit.DefValue)

		local := historyCmd.Flags().Lookup("local")
		require.NotNil(t, local)
		assert.Equal(t, "false", local.DefValue)
	})

	t.Run("title requires id and title", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"history", "title", "conv-1"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)
		cmd.SetErr(output)

		err := cmd.Execute()
		assert.Error(t, err)
	})

	t.Run("delete requires exactly one id", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"history", "delete"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)
		cmd.SetErr(output)

		err := cmd.Execute()
		assert.Error(t, err)
	})
}
