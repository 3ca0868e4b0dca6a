package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mychat/model"
)

var historyFilter string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved conversations",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVarP(&historyFilter, "filter", "f", "", "fuzzy-match conversation titles")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	state := a.chat.State()
	convs := model.FilterConversations(state.Conversations, historyFilter)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, " \tID\tMESSAGES\tUPDATED\tTITLE")
	for _, c := range convs {
		marker := " "
		if c.ID == state.CurrentConversationID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", marker, shortID(c.ID), len(c.Messages), humanize.Time(c.UpdatedAt), c.Title)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
