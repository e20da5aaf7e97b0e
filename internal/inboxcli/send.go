package inboxcli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/inbox"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <content>",
		Short: "Send a message to a new or existing contact",
		Args:  cobra.ExactArgs(1),
		RunE:  runSendMessage,
	}
	cmd.Flags().String("channel", string(inbox.ChannelSMS), "Channel: email or sms")
	cmd.Flags().String("name", "", "Contact name")
	cmd.Flags().String("email", "", "Contact email (email channel)")
	cmd.Flags().String("phone", "", "Contact phone in E.164 (sms channel)")
	cmd.Flags().String("subject", "", "Email subject (email channel)")
	return cmd
}

func runSendMessage(cmd *cobra.Command, args []string) error {
	rt, err := ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	channel, _ := cmd.Flags().GetString("channel")
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	phone, _ := cmd.Flags().GetString("phone")
	subject, _ := cmd.Flags().GetString("subject")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	draft := inbox.Compose{
		Channel:     inbox.Channel(strings.ToLower(strings.TrimSpace(channel))),
		ContactName: name,
		Email:       email,
		Phone:       phone,
		Subject:     subject,
		Content:     args[0],
	}

	if errs := draft.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
		}
		return &ExitError{Code: ExitCodeFailure, Err: errors.New("invalid message"), Printed: true}
	}

	result, err := rt.client.SendMessage(cmd.Context(), draft.Request())
	if err != nil {
		return Exitf(ExitCodeFailure, "send message: %v", err)
	}

	if jsonOutput {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode result: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sent. Conversation %s\n", shortID(result.ConversationID))
	return nil
}

func newReplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reply <conversation-id> <content>",
		Short: "Reply within an existing conversation",
		Args:  cobra.ExactArgs(2),
		RunE:  runReply,
	}
	cmd.Flags().String("channel", "", "Channel: email or sms (default: contact's preferred)")
	return cmd
}

func runReply(cmd *cobra.Command, args []string) error {
	rt, err := ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	id := strings.TrimSpace(args[0])
	content := args[1]
	if strings.TrimSpace(content) == "" {
		return Exitf(ExitCodeFailure, "message content is required")
	}

	ctx := cmd.Context()
	channelFlag, _ := cmd.Flags().GetString("channel")
	channel := inbox.Channel(strings.ToLower(strings.TrimSpace(channelFlag)))

	if channel == "" {
		// Pick the channel from the contact record.
		conv, err := rt.client.GetConversation(ctx, id, false)
		if err != nil {
			if errors.Is(err, api.ErrNotFound) {
				return Exitf(ExitCodeFailure, "conversation %s not found", id)
			}
			return Exitf(ExitCodeFailure, "fetch conversation: %v", err)
		}
		if conv.Resolved() {
			return Exitf(ExitCodeFailure, "conversation is resolved")
		}
		if conv.Contact == nil {
			return Exitf(ExitCodeFailure, "conversation has no contact; pass --channel explicitly")
		}
		channel = conv.Contact.PreferredChannel()
	} else if channel != inbox.ChannelEmail && channel != inbox.ChannelSMS {
		return Exitf(ExitCodeFailure, "unknown channel %q", channelFlag)
	}

	result, err := rt.client.Reply(ctx, id, content, channel)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return Exitf(ExitCodeFailure, "conversation %s not found", id)
		}
		return Exitf(ExitCodeFailure, "send reply: %v", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s reply %s\n", channel, shortID(result.MessageID))
	return nil
}
