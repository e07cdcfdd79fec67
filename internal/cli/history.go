package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saran/chatbridge/internal/config"
	"github.com/saran/chatbridge/pkg/browser"
	"github.com/saran/chatbridge/pkg/chatgpt"
	"github.com/saran/chatbridge/pkg/store"
)

var (
	historyOffset int
	historyLimit  int
	historyLocal  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and manage conversations",
	RunE:  runHistoryList,
}

var historyTitleCmd = &cobra.Command{
	Use:   "title <conversation-id> <title>",
	Short: "Set a conversation's title",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runHistoryTitle,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete (hide) a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "listing offset")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "listing page size")
	historyCmd.Flags().BoolVar(&historyLocal, "local", false, "list the local record instead of the remote service")
	historyCmd.AddCommand(historyTitleCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if historyLocal {
		return listLocal(cmd, cfg)
	}

	client, cleanup, err := historyClient(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	items, err := client.GetHistory(cmd.Context(), historyOffset, historyLimit)
	if err != nil {
		return err
	}
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", item.ID, title)
	}
	return nil
}

func listLocal(cmd *cobra.Command, cfg *config.Config) error {
	lg, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer lg.Close()

	rec, err := store.Open(cfg.StorePath(), lg.GetZerolog())
	if err != nil {
		return err
	}
	defer rec.Close()

	items, err := rec.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  (%d turns)\n", item.ID, title, item.Turns)
	}
	return nil
}

func runHistoryTitle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, cleanup, err := historyClient(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return client.SetTitle(cmd.Context(), strings.Join(args[1:], " "), args[0])
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, cleanup, err := historyClient(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return client.DeleteConversation(cmd.Context(), args[0])
}

// historyClient spins up a browser-backed client for the request/response
// endpoints. The returned cleanup must be deferred.
func historyClient(cmd *cobra.Command, cfg *config.Config) (*chatgpt.Client, func(), error) {
	lg, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	b, err := browser.Launch(cfg.Browser, lg.GetZerolog())
	if err != nil {
		lg.Close()
		return nil, nil, err
	}

	rt := chatgpt.NewRuntime(b.Page(), chatgpt.RuntimeConfig{
		BaseURL:        cfg.BaseURL,
		SessionTimeout: cfg.SessionTimeout(),
		CooldownPeriod: cfg.Cooldown(),
		Logger:         lg.GetZerolog(),
	})
	if err := rt.Sessions().LoadChat(cmd.Context()); err != nil {
		b.Close()
		lg.Close()
		return nil, nil, err
	}

	client := chatgpt.NewClient(rt, chatgpt.ClientConfig{
		Model:        cfg.Model,
		Timeout:      cfg.AskTimeout(),
		StallTimeout: cfg.StallTimeout(),
		RetryBudget:  cfg.RetryBudget,
	})
	cleanup := func() {
		b.Close()
		lg.Close()
	}
	return client, cleanup, nil
}
