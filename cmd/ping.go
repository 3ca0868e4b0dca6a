package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mychat/ollama"
	"mychat/provider"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the connection to the configured endpoint",
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.chat.State().APIConfig
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "endpoint: %s\n", provider.ModelsURL(cfg.BaseURL))

	if !a.chat.TestConnection(ctx) {
		return fmt.Errorf("connection to %s failed", cfg.BaseURL)
	}
	fmt.Fprintln(out, "status:   ok")

	// Extra detail when the endpoint is an Ollama server.
	client, err := ollama.NewClient(cfg.BaseURL, nil)
	if err != nil || client.Ping(ctx) != nil {
		return nil
	}
	if v, err := client.Version(ctx); err == nil {
		fmt.Fprintf(out, "ollama:   %s\n", v)
	}
	return nil
}
