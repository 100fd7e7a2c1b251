package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/KafClaw/monitor/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  __  __             _ _\n" +
		" |  \\/  | ___  _ __ (_) |_ ___  _ __\n" +
		" | |\\/| |/ _ \\| '_ \\| | __/ _ \\| '__|\n" +
		" | |  | | (_) | | | | | || (_) | |\n" +
		" |_|  |_|\\___/|_| |_|_|\\__\\___/|_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Memento Monitor - agent status and chat hub",
	Long:  color.CyanString(logo) + "\nStatus, chat and escalation hub for memento agents.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
}
