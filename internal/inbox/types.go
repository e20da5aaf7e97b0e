// Package inbox holds the conversation and message domain model shared by the
// API client, the CLI, and the TUI.
package inbox

import (
	"strings"
	"time"
)

// Channel is the medium a message was or will be sent over.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Direction distinguishes messages from the contact vs. from the business.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Conversation status values. Resolved is terminal; there is no reopen.
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
)

// List filter values accepted by the conversations endpoint.
const (
	FilterAll        = "all"
	FilterUnanswered = "unanswered"
	FilterMine       = "mine"
	FilterUnassigned = "unassigned"
)

// Contact is a person the business talks to. Identity is the server-assigned
// ID: two records with the same ID are the same contact no matter how they
// were matched. At least one of Email/Phone is expected to be set.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PreferredChannel returns email when the contact has an email address, sms
// otherwise.
func (c Contact) PreferredChannel() Channel {
	if strings.TrimSpace(c.Email) != "" {
		return ChannelEmail
	}
	return ChannelSMS
}

// Recipient returns the address matching the contact's preferred channel.
func (c Contact) Recipient() string {
	if strings.TrimSpace(c.Email) != "" {
		return c.Email
	}
	return c.Phone
}

// Assignee identifies the team member a conversation is assigned to.
type Assignee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is one unit of communication within a conversation. Messages are
// immutable once created; history only grows by appending.
type Message struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Channel   Channel        `json:"channel"`
	Direction Direction      `json:"direction"`
	Automated bool           `json:"automated"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Conversation is a thread of messages tied to one contact (or none, for
// system/unknown senders) with a status and an optional assignee. Contact may
// be nil; that is a valid state, not an error.
type Conversation struct {
	ID            string    `json:"id"`
	Contact       *Contact  `json:"contact"`
	Subject       string    `json:"subject"`
	Status        string    `json:"status"`
	AssignedTo    *Assignee `json:"assigned_to,omitempty"`
	AwaitingReply bool      `json:"awaiting_reply"`
	MessageCount  int       `json:"message_count"`
	LastMessage   *Message  `json:"last_message,omitempty"`
	Messages      []Message `json:"messages,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ContactName returns the contact's display name, or a placeholder when the
// conversation has no contact record.
func (c Conversation) ContactName() string {
	if c.Contact == nil || strings.TrimSpace(c.Contact.Name) == "" {
		return "Unknown"
	}
	return c.Contact.Name
}

// Resolved reports whether the conversation has reached its terminal status.
func (c Conversation) Resolved() bool {
	return c.Status == StatusResolved
}

// Stats are the inbox-wide counters reported by the server.
type Stats struct {
	TotalConversations  int `json:"total_conversations"`
	ActiveConversations int `json:"active_conversations"`
	AwaitingReply       int `json:"awaiting_reply"`
	Unassigned          int `json:"unassigned"`
	MessagesToday       int `json:"messages_today"`
}
