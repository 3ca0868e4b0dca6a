package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mychat/ui"
)

var (
	transportFlag string
	langFlag      string
)

// Version is set by main.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "mychat",
	Short: "mychat - terminal chat client for OpenAI-compatible endpoints",
	Long: `mychat is a terminal chat client for OpenAI-compatible endpoints such as
a local Ollama server. Replies are streamed as they are generated and
conversations are kept on disk between runs.

Run without a subcommand to open the interactive interface.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute runs the root command
func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&transportFlag, "transport", "t", "", `completion transport: "stream" or "buffered" (overrides settings)`)
	flags.StringVar(&langFlag, "lang", "", `interface language: "zh" or "en" (overrides settings)`)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.chat.EnsureConversation()

	if err := ui.Run(a.chat, a.text, a.log); err != nil {
		return fmt.Errorf("failed to run interface: %w", err)
	}
	return nil
}
