package inboxcli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsdeskhq/opsdesk/internal/api"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <conversation-id>",
		Short: "Mark a conversation resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ensureRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			id := strings.TrimSpace(args[0])
			conv, err := rt.client.ResolveConversation(cmd.Context(), id)
			if err != nil {
				if errors.Is(err, api.ErrNotFound) {
					return Exitf(ExitCodeFailure, "conversation %s not found", id)
				}
				return Exitf(ExitCodeFailure, "resolve conversation: %v", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Resolved %s\n", shortID(conv.ID))
			return nil
		},
	}
}

func newAssignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign <conversation-id>",
		Short: "Assign a conversation to a team member",
		Args:  cobra.ExactArgs(1),
		RunE:  runAssign,
	}
	cmd.Flags().String("to", "", "User ID to assign to")
	cmd.Flags().Bool("me", false, "Assign to the logged-in user")
	return cmd
}

func runAssign(cmd *cobra.Command, args []string) error {
	rt, err := ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	id := strings.TrimSpace(args[0])
	to, _ := cmd.Flags().GetString("to")
	me, _ := cmd.Flags().GetBool("me")

	switch {
	case me && to != "":
		return Exitf(ExitCodeFailure, "pass either --me or --to, not both")
	case me:
		to = rt.sess.UserID
		if to == "" {
			// Older sessions may predate the stored user ID.
			user, err := rt.client.Me(cmd.Context())
			if err != nil {
				return Exitf(ExitCodeFailure, "fetch profile: %v", err)
			}
			to = user.ID
		}
	case to == "":
		return Exitf(ExitCodeFailure, "pass --me or --to <user-id>")
	}

	conv, err := rt.client.AssignConversation(cmd.Context(), id, to)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return Exitf(ExitCodeFailure, "conversation or user not found")
		}
		return Exitf(ExitCodeFailure, "assign conversation: %v", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to %s\n", shortID(conv.ID), assigneeName(conv.AssignedTo))
	return nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show inbox statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ensureRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			stats, err := rt.client.Stats(cmd.Context())
			if err != nil {
				return Exitf(ExitCodeFailure, "fetch stats: %v", err)
			}

			rows := [][]string{
				{"Total conversations", fmt.Sprintf("%d", stats.TotalConversations)},
				{"Active", fmt.Sprintf("%d", stats.ActiveConversations)},
				{"Awaiting reply", fmt.Sprintf("%d", stats.AwaitingReply)},
				{"Unassigned", fmt.Sprintf("%d", stats.Unassigned)},
				{"Messages today", fmt.Sprintf("%d", stats.MessagesToday)},
			}
			return writeTable(cmd.OutOrStdout(), []string{"METRIC", "VALUE"}, rows)
		},
	}
}
