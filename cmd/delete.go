package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteAll bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Long: `Delete a conversation by id or unique id prefix. With --all every
conversation and the saved API settings are removed.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if deleteAll {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVar(&deleteAll, "all", false, "delete all conversations and settings")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if deleteAll {
		// Stop autosave first so the cleared state is not written back.
		a.saver.Close()
		if err := a.storage.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "all conversations deleted")
		return nil
	}

	conv, err := findConversation(a.chat.State(), args[0])
	if err != nil {
		return err
	}
	a.chat.DeleteConversation(conv.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s)\n", shortID(conv.ID), conv.Title)
	return nil
}
