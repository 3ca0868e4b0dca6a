package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mychat/chat"
	"mychat/model"
)

var askNew bool

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and print the reply",
	Long: `Send a message in the current conversation and stream the reply to stdout.
With --new the message starts a new conversation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVarP(&askNew, "new", "n", false, "start a new conversation")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	convID := a.chat.EnsureConversation()
	if askNew {
		convID = a.chat.CreateConversation()
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	var shown, replyID string
	stop := a.chat.Subscribe(func(s model.State) {
		c, ok := s.Conversation(convID)
		if !ok || len(c.Messages) == 0 {
			return
		}
		last := c.Messages[len(c.Messages)-1]
		if last.Role != model.RoleAssistant {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if last.ID != replyID {
			replyID, shown = last.ID, ""
		}
		if strings.HasPrefix(last.Content, shown) {
			fmt.Fprint(out, last.Content[len(shown):])
		} else {
			// An error text replaces the partial reply.
			fmt.Fprint(out, "\n"+last.Content)
		}
		shown = last.Content
	})
	defer stop()

	err = a.chat.SendMessage(ctx, strings.Join(args, " "))
	fmt.Fprintln(out)

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		c, _ := a.chat.State().Conversation(convID)
		if n := len(c.Messages); n > 0 {
			a.chat.FinalizeMessage(convID, c.Messages[n-1].ID)
		}
		return nil
	case chat.IsValidationError(err):
		return err
	default:
		return fmt.Errorf("request failed: %w", err)
	}
}
