package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mychat/chat"
	"mychat/model"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the API configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the API configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

type configSetOptions struct {
	baseURL      string
	apiKey       string
	model        string
	temperature  float64
	maxTokens    int
	systemPrompt string
}

func newConfigSetCmd() (*cobra.Command, *configSetOptions) {
	opts := &configSetOptions{}
	c := &cobra.Command{
		Use:   "set",
		Short: "Change API settings; only the flags given are updated",
		Example: `  mychat config set --base-url http://localhost:11434/v1 --model qwen3:0.6b
  mychat config set --api-key "" --temperature 0.2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, opts)
		},
	}
	f := c.Flags()
	f.StringVar(&opts.baseURL, "base-url", "", "OpenAI-compatible endpoint")
	f.StringVar(&opts.apiKey, "api-key", "", `bearer token ("" sends no Authorization header)`)
	f.StringVar(&opts.model, "model", "", "model name")
	f.Float64Var(&opts.temperature, "temperature", model.DefaultTemperature, "sampling temperature, 0.0 - 2.0")
	f.IntVar(&opts.maxTokens, "max-tokens", model.DefaultMaxTokens, "reply length limit")
	f.StringVar(&opts.systemPrompt, "system-prompt", "", `prompt sent before every conversation ("" for none)`)
	return c, opts
}

func init() {
	setCmd, _ := newConfigSetCmd()
	configCmd.AddCommand(configShowCmd, setCmd)
	rootCmd.AddCommand(configCmd)
}

// apply copies the flags that were given onto cfg.
func (o *configSetOptions) apply(cfg model.APIConfig, changed func(string) bool) (model.APIConfig, error) {
	n := 0
	set := func(name string, fn func()) {
		if changed(name) {
			fn()
			n++
		}
	}
	set("base-url", func() { cfg.BaseURL = o.baseURL })
	set("api-key", func() { cfg.APIKey = o.apiKey })
	set("model", func() { cfg.Model = o.model })
	set("temperature", func() { cfg.Temperature = o.temperature })
	set("max-tokens", func() { cfg.MaxTokens = o.maxTokens })
	set("system-prompt", func() { cfg.SystemPrompt = o.systemPrompt })
	if n == 0 {
		return cfg, errors.New("nothing to change: pass at least one flag")
	}
	return cfg, nil
}

// setAPIConfig applies the given flags to the current configuration and
// saves the normalized result.
func setAPIConfig(ctx context.Context, orch *chat.Orchestrator, opts *configSetOptions, changed func(string) bool) (model.APIConfig, error) {
	cfg, err := opts.apply(orch.State().APIConfig, changed)
	if err != nil {
		return model.APIConfig{}, err
	}
	if err := orch.UpdateConfig(ctx, cfg); err != nil {
		return model.APIConfig{}, err
	}
	return orch.State().APIConfig, nil
}

func runConfigSet(cmd *cobra.Command, opts *configSetOptions) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, err := setAPIConfig(ctx, a.chat, opts, cmd.Flags().Changed)
	if err != nil {
		return err
	}
	a.log.Info().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("api config updated")
	return printAPIConfig(cmd.OutOrStdout(), cfg)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return printAPIConfig(cmd.OutOrStdout(), a.chat.State().APIConfig)
}

func printAPIConfig(out io.Writer, cfg model.APIConfig) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "base_url:\t%s\n", cfg.BaseURL)
	fmt.Fprintf(w, "api_key:\t%s\n", maskKey(cfg.APIKey))
	fmt.Fprintf(w, "model:\t%s\n", cfg.Model)
	fmt.Fprintf(w, "temperature:\t%.2f\n", cfg.Temperature)
	fmt.Fprintf(w, "max_tokens:\t%d\n", cfg.MaxTokens)
	fmt.Fprintf(w, "system_prompt:\t%s\n", cfg.SystemPrompt)
	return w.Flush()
}

// maskKey keeps the last four characters of key visible.
func maskKey(key string) string {
	switch r := []rune(key); {
	case len(r) == 0:
		return "(none)"
	case len(r) <= 4:
		return strings.Repeat("*", len(r))
	default:
		return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
	}
}
