package inboxcli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/inbox"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	cmd.Flags().String("filter", inbox.FilterAll, "Filter: all, unanswered, mine, unassigned")
	cmd.Flags().String("status", "", "Status: active, resolved")
	cmd.Flags().String("search", "", "Match contact name, email, or subject")
	cmd.Flags().Int("limit", 0, "Page size (default from config)")
	cmd.Flags().Int("offset", 0, "Page offset")
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	rt, err := ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	filter, _ := cmd.Flags().GetString("filter")
	status, _ := cmd.Flags().GetString("status")
	search, _ := cmd.Flags().GetString("search")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if limit <= 0 {
		limit = rt.cfg.Sync.PageSize
	}

	ctx := cmd.Context()
	cached := false
	page, err := rt.client.ListConversations(ctx, api.ListOptions{
		Search: search,
		Filter: filter,
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		// Fall back to the last cached page so the inbox stays usable
		// offline. Search and pagination are server-side, so only plain
		// first-page listings have a cache to fall back to.
		if search != "" || offset != 0 || rt.snapshots == nil {
			return Exitf(ExitCodeFailure, "list conversations: %v", err)
		}
		snap, snapErr := rt.snapshots.LoadListPage(ctx, listCacheKey(filter, status))
		if snapErr != nil {
			return Exitf(ExitCodeFailure, "list conversations: %v", err)
		}
		page = &api.ConversationPage{Total: snap.Total, Conversations: snap.Conversations}
		cached = true
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: server unreachable, showing cached list from %s\n",
			snap.SavedAt.Local().Format("2006-01-02 15:04"))
	} else if search == "" && offset == 0 && rt.snapshots != nil {
		if err := rt.snapshots.SaveListPage(ctx, listCacheKey(filter, status), page.Total, page.Conversations); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to update cache: %v\n", err)
		}
	}

	if jsonOutput {
		payload, err := json.MarshalIndent(page, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode conversations: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}

	if len(page.Conversations) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No conversations")
		return nil
	}

	rows := make([][]string, 0, len(page.Conversations))
	for _, conv := range page.Conversations {
		rows = append(rows, []string{
			shortID(conv.ID),
			conv.ContactName(),
			truncate(conv.Subject, 40),
			conv.Status,
			assigneeName(conv.AssignedTo),
			awaitingMark(conv.AwaitingReply),
			lastActivity(conv),
		})
	}

	if err := writeTable(cmd.OutOrStdout(), []string{"ID", "CONTACT", "SUBJECT", "STATUS", "ASSIGNED", "AWAITING", "LAST"}, rows); err != nil {
		return Exitf(ExitCodeFailure, "write table: %v", err)
	}

	suffix := ""
	if cached {
		suffix = " (cached)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d conversations%s\n", len(page.Conversations), page.Total, suffix)
	return nil
}

func listCacheKey(filter, status string) string {
	if filter == "" {
		filter = inbox.FilterAll
	}
	return filter + "|" + status
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}

func assigneeName(a *inbox.Assignee) string {
	if a == nil {
		return "-"
	}
	return a.Name
}

func awaitingMark(awaiting bool) string {
	if awaiting {
		return "yes"
	}
	return ""
}

func lastActivity(conv inbox.Conversation) string {
	at := conv.UpdatedAt
	if conv.LastMessage != nil {
		at = conv.LastMessage.CreatedAt
	}
	if at.IsZero() {
		return "-"
	}
	return relativeTime(at, time.Now())
}

// relativeTime renders a compact age like the dashboard list column.
func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}
