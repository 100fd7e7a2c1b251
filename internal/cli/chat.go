package cli

import (
	"errors"
	"fmt"

	"github.com/KafClaw/monitor/internal/chatlog"
	"github.com/KafClaw/monitor/internal/config"
	"github.com/spf13/cobra"
)

var chatTailLimit int

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Inspect chat channel logs",
}

var chatTailCmd = &cobra.Command{
	Use:   "tail <channel>",
	Short: "Print the most recent messages of a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := chatStore()
		if err != nil {
			return err
		}
		page, err := store.Read(args[0], chatTailLimit, 0)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range page.Messages {
			fmt.Fprintf(out, "%s  %-16s %s\n", m.TS, m.Agent, m.Message)
		}
		fmt.Fprintf(out, "(%d of %d in %s)\n", len(page.Messages), page.Total, page.Channel)
		return nil
	},
}

var chatClearCmd = &cobra.Command{
	Use:   "clear <channel>",
	Short: "Empty a channel log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := chatStore()
		if err != nil {
			return err
		}
		n, err := store.Clear(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d messages\n", n)
		return nil
	},
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List channels with a log",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := chatStore()
		if err != nil {
			return err
		}
		names, err := store.Channels()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

func init() {
	chatTailCmd.Flags().IntVarP(&chatTailLimit, "lines", "n", 25, "Number of messages")
	chatCmd.AddCommand(chatTailCmd)
	chatCmd.AddCommand(chatClearCmd)
	chatCmd.AddCommand(chatListCmd)
}

func chatStore() (*chatlog.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	layout := cfg.Resolve()
	if layout.MementoRoot == "" {
		return nil, errors.New("memento root not resolved: set MEMENTO_ROOT or paths.mementoRoot")
	}
	return chatlog.NewStore(layout.ChatDir), nil
}
