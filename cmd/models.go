package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mychat/provider"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the endpoint offers",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.chat.State().APIConfig
	models, err := provider.ListModels(ctx, cfg, a.providerOpts...)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSIZE\t")
	for _, m := range models {
		size := "-"
		if m.Size > 0 {
			size = humanize.Bytes(uint64(m.Size))
		}
		marker := ""
		if m.Name == cfg.Model {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, size, marker)
	}
	return w.Flush()
}
