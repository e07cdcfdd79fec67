package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saran/chatbridge/pkg/browser"
	"github.com/saran/chatbridge/pkg/chatgpt"
)

var askNew bool

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send a prompt and stream the reply",
	Long: `Send a prompt and print the reply as it streams in. With no prompt
argument, an interactive prompt loop is started; type "exit" to leave.`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askNew, "new", false, "start a new conversation")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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
	if err := rt.Sessions().LoadChat(cmd.Context()); err != nil {
		return err
	}

	client := chatgpt.NewClient(rt, chatgpt.ClientConfig{
		Model:        cfg.Model,
		Timeout:      cfg.AskTimeout(),
		StallTimeout: cfg.StallTimeout(),
		RetryBudget:  cfg.RetryBudget,
	})
	if askNew {
		client.NewConversation()
	}

	if len(args) > 0 {
		return streamOnce(cmd, client, strings.Join(args, " "))
	}
	return promptLoop(cmd, client)
}

func streamOnce(cmd *cobra.Command, client *chatgpt.Client, prompt string) error {
	_, err := client.AskStream(cmd.Context(), prompt, func(delta string) {
		fmt.Fprint(cmd.OutOrStdout(), delta)
	})
	fmt.Fprintln(cmd.OutOrStdout())
	return err
}

func promptLoop(cmd *cobra.Command, client *chatgpt.Client) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(cmd.OutOrStdout(), "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		prompt := strings.TrimSpace(scanner.Text())
		switch prompt {
		case "":
			continue
		case "exit":
			return nil
		case "new":
			client.NewConversation()
			fmt.Fprintln(cmd.OutOrStdout(), "started a new conversation")
			continue
		}

		fmt.Fprint(cmd.OutOrStdout(), "< ")
		if err := streamOnce(cmd, client, prompt); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
}
