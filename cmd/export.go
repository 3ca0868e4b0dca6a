package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mychat/config"
	"mychat/storage"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <id> [path]",
	Short: "Export a conversation to JSON or Markdown",
	Long: `Export a conversation. The id may be shortened to any unique prefix of at
least four characters. Without a path the file is written to the exports
directory inside the data directory.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "", `"json" or "md" (default: from the file extension, else json)`)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := findConversation(a.chat.State(), args[0])
	if err != nil {
		return err
	}

	format := storage.ExportFormat(exportFormat)
	var path string
	if len(args) == 2 {
		path = config.ExpandPath(args[1])
		if format == "" {
			format = storage.FormatFromPath(path)
		}
	} else {
		if format == "" {
			format = storage.FormatJSON
		}
		path = storage.GenerateExportPath(config.GetExportDir(a.cfg.DataDir()), conv.Title, format, time.Now())
	}
	if format != storage.FormatJSON && format != storage.FormatMarkdown {
		return fmt.Errorf("unknown export format %q", format)
	}

	if err := storage.ExportConversation(conv, path, format); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
