package inboxcli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/inbox"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show a conversation with its full message history",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	rt, err := ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	id := strings.TrimSpace(args[0])
	jsonOutput, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	cached := false
	conv, err := rt.client.GetConversation(ctx, id, false)
	switch {
	case err == nil:
		if rt.snapshots != nil {
			_ = rt.snapshots.SaveConversation(ctx, conv)
		}
	case errors.Is(err, api.ErrNotFound):
		// Gone server-side: the cache must not resurrect it.
		if rt.snapshots != nil {
			_ = rt.snapshots.DeleteConversation(ctx, id)
		}
		return Exitf(ExitCodeFailure, "conversation %s not found", id)
	default:
		if rt.snapshots == nil {
			return Exitf(ExitCodeFailure, "fetch conversation: %v", err)
		}
		snap, snapErr := rt.snapshots.LoadConversation(ctx, id)
		if snapErr != nil {
			return Exitf(ExitCodeFailure, "fetch conversation: %v", err)
		}
		conv = snap
		cached = true
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: server unreachable, showing cached conversation")
	}

	if jsonOutput {
		payload, err := json.MarshalIndent(conv, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode conversation: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}

	printConversation(cmd, conv, cached)
	return nil
}

func printConversation(cmd *cobra.Command, conv *inbox.Conversation, cached bool) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s\n", conv.Subject)
	fmt.Fprintf(out, "Contact:  %s%s\n", conv.ContactName(), contactAddress(conv.Contact))
	fmt.Fprintf(out, "Status:   %s\n", conv.Status)
	fmt.Fprintf(out, "Assigned: %s\n", assigneeName(conv.AssignedTo))
	if inbox.AutomationPaused(conv.Messages) {
		fmt.Fprintln(out, "Automation: paused (manual reply sent)")
	}
	if cached {
		fmt.Fprintln(out, "Source:   cached")
	}
	fmt.Fprintln(out)

	now := time.Now()
	for _, group := range inbox.GroupMessagesByDay(conv.Messages) {
		fmt.Fprintf(out, "-- %s --\n", inbox.DayLabel(group.Day, now))
		for _, msg := range group.Messages {
			fmt.Fprintf(out, "%s %s %s\n", msg.CreatedAt.Local().Format("15:04"), directionMark(msg), msg.Content)
		}
	}
}

func contactAddress(c *inbox.Contact) string {
	if c == nil {
		return ""
	}
	if addr := c.Recipient(); addr != "" {
		return " <" + addr + ">"
	}
	return ""
}

// directionMark renders who sent a message: "<" inbound, ">" outbound,
// ">a" for automated outbound.
func directionMark(msg inbox.Message) string {
	if msg.Direction == inbox.DirectionInbound {
		return "<"
	}
	if msg.Automated {
		return ">a"
	}
	return ">"
}
