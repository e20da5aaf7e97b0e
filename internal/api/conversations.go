package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/opsdeskhq/opsdesk/internal/inbox"
)

// ListOptions narrow a conversation list request. Zero values mean "no
// constraint"; the server then returns everything ordered by most recent
// message first.
type ListOptions struct {
	Search string
	Filter string
	Status string
	Limit  int
	Offset int
	// Poll marks the request as a background refresh (no client timeout).
	Poll bool
}

// ConversationPage is one page of the conversation list.
type ConversationPage struct {
	Total         int                  `json:"total"`
	Conversations []inbox.Conversation `json:"conversations"`
}

// ListConversations fetches a page of conversations matching opts.
func (c *Client) ListConversations(ctx context.Context, opts ListOptions) (*ConversationPage, error) {
	query := url.Values{}
	if opts.Search != "" {
		query.Set("search", opts.Search)
	}
	if opts.Filter != "" && opts.Filter != inbox.FilterAll {
		query.Set("filter", opts.Filter)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	var page ConversationPage
	err := c.doRequest(ctx, http.MethodGet, "/api/inbox/conversations", query, nil, &page, requestOpts{poll: opts.Poll})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// GetConversation fetches one conversation with its full message history,
// ordered oldest first. Returns an error wrapping ErrNotFound when the
// conversation no longer exists.
func (c *Client) GetConversation(ctx context.Context, id string, poll bool) (*inbox.Conversation, error) {
	var conv inbox.Conversation
	err := c.doRequest(ctx, http.MethodGet, "/api/inbox/conversations/"+id, nil, nil, &conv, requestOpts{poll: poll})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// SearchContacts looks up contacts by name, email, or subject fragment. The
// server matches through conversations, so the same person can come back
// several times; results are deduped by contact ID before returning.
func (c *Client) SearchContacts(ctx context.Context, query string, limit int) ([]inbox.Contact, error) {
	page, err := c.ListConversations(ctx, ListOptions{Search: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	contacts := make([]inbox.Contact, 0, len(page.Conversations))
	for _, conv := range page.Conversations {
		if conv.Contact != nil {
			contacts = append(contacts, *conv.Contact)
		}
	}
	return inbox.DedupeContacts(contacts), nil
}

// replyRequest is the JSON body for replying within a conversation.
type replyRequest struct {
	Content string        `json:"content"`
	Channel inbox.Channel `json:"channel"`
}

// ReplyResult is the server's confirmation of a sent reply.
type ReplyResult struct {
	Status    string        `json:"status"`
	MessageID string        `json:"message_id"`
	Message   inbox.Message `json:"message"`
}

// Reply sends an outbound message within an existing conversation. The
// request carries an idempotency key so a retry after an ambiguous failure
// cannot double-send.
func (c *Client) Reply(ctx context.Context, conversationID, content string, channel inbox.Channel) (*ReplyResult, error) {
	var result ReplyResult
	err := c.doRequest(ctx, http.MethodPost, "/api/inbox/conversations/"+conversationID+"/reply",
		nil, replyRequest{Content: content, Channel: channel}, &result, requestOpts{header: idempotencyKey()})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SendResult is the server's confirmation of a new outbound message. The
// conversation may be freshly created or an existing active one the contact
// matched into.
type SendResult struct {
	Status         string        `json:"status"`
	MessageID      string        `json:"message_id"`
	ConversationID string        `json:"conversation_id"`
	ContactID      string        `json:"contact_id"`
	Message        inbox.Message `json:"message"`
}

// SendMessage creates an outbound message to a new or existing contact,
// creating the conversation when needed.
func (c *Client) SendMessage(ctx context.Context, req inbox.ComposeRequest) (*SendResult, error) {
	var result SendResult
	err := c.doRequest(ctx, http.MethodPost, "/api/inbox/messages", nil, req, &result, requestOpts{header: idempotencyKey()})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ConversationUpdate is a partial update. Nil fields are left untouched;
// a non-nil empty AssignedToID unassigns.
type ConversationUpdate struct {
	Status       *string `json:"status,omitempty"`
	AssignedToID *string `json:"assigned_to_id,omitempty"`
}

// updateResult wraps the PATCH confirmation.
type updateResult struct {
	Status       string             `json:"status"`
	Conversation inbox.Conversation `json:"conversation"`
}

// UpdateConversation applies a partial update and returns the updated
// conversation as confirmed by the server.
func (c *Client) UpdateConversation(ctx context.Context, id string, update ConversationUpdate) (*inbox.Conversation, error) {
	var result updateResult
	err := c.doRequest(ctx, http.MethodPatch, "/api/inbox/conversations/"+id, nil, update, &result, requestOpts{})
	if err != nil {
		return nil, err
	}
	return &result.Conversation, nil
}

// ResolveConversation marks a conversation resolved. Resolution is terminal;
// there is no reopen.
func (c *Client) ResolveConversation(ctx context.Context, id string) (*inbox.Conversation, error) {
	status := inbox.StatusResolved
	return c.UpdateConversation(ctx, id, ConversationUpdate{Status: &status})
}

// AssignConversation assigns a conversation to a team member.
func (c *Client) AssignConversation(ctx context.Context, id, userID string) (*inbox.Conversation, error) {
	return c.UpdateConversation(ctx, id, ConversationUpdate{AssignedToID: &userID})
}

// Stats fetches inbox-wide counters.
func (c *Client) Stats(ctx context.Context) (*inbox.Stats, error) {
	var stats inbox.Stats
	if err := c.doRequest(ctx, http.MethodGet, "/api/inbox/stats", nil, nil, &stats, requestOpts{}); err != nil {
		return nil, err
	}
	return &stats, nil
}

// idempotencyKey returns a header carrying a fresh idempotency key for a
// write request.
func idempotencyKey() http.Header {
	h := http.Header{}
	h.Set("Idempotency-Key", uuid.NewString())
	return h
}
