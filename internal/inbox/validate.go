package inbox

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)
	// E.164: leading +, non-zero first digit, up to 15 digits total.
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

// ValidEmail reports whether s looks like a deliverable email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ValidPhone reports whether s is an E.164 phone number.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

// Compose is a draft outbound message to a new or existing contact. Exactly
// one of Email/Phone is used, chosen by Channel.
type Compose struct {
	Channel     Channel
	ContactName string
	Email       string
	Phone       string
	Subject     string
	Content     string
}

// ValidationError describes a single compose field failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the draft against the rules of its channel. All failures
// are returned, not just the first, so a form can surface every problem at
// once. A nil return means the draft is sendable.
func (c Compose) Validate() []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(c.ContactName) == "" {
		errs = append(errs, ValidationError{Field: "contact_name", Message: "contact name is required"})
	}
	if strings.TrimSpace(c.Content) == "" {
		errs = append(errs, ValidationError{Field: "content", Message: "message content is required"})
	}
	switch c.Channel {
	case ChannelEmail:
		if strings.TrimSpace(c.Email) == "" {
			errs = append(errs, ValidationError{Field: "email", Message: "email address is required"})
		} else if !ValidEmail(c.Email) {
			errs = append(errs, ValidationError{Field: "email", Message: "invalid email address"})
		}
	case ChannelSMS:
		if strings.TrimSpace(c.Phone) == "" {
			errs = append(errs, ValidationError{Field: "phone", Message: "phone number is required"})
		} else if !ValidPhone(c.Phone) {
			errs = append(errs, ValidationError{Field: "phone", Message: "phone number must be E.164, e.g. +15551234567"})
		}
	default:
		errs = append(errs, ValidationError{Field: "channel", Message: fmt.Sprintf("unknown channel %q", c.Channel)})
	}
	return errs
}

// Request builds the wire payload for the draft. Only the recipient field
// matching the channel is included; the other is dropped even if filled in,
// so switching channels on a form never leaks the unused address.
func (c Compose) Request() ComposeRequest {
	req := ComposeRequest{
		Channel:     c.Channel,
		ContactName: strings.TrimSpace(c.ContactName),
		Content:     c.Content,
	}
	switch c.Channel {
	case ChannelEmail:
		req.ContactEmail = strings.TrimSpace(c.Email)
		req.Subject = strings.TrimSpace(c.Subject)
	case ChannelSMS:
		req.ContactPhone = strings.TrimSpace(c.Phone)
	}
	return req
}

// ComposeRequest is the JSON body for creating a new outbound message.
type ComposeRequest struct {
	Channel      Channel `json:"channel"`
	Content      string  `json:"content"`
	ContactName  string  `json:"contact_name"`
	ContactEmail string  `json:"contact_email,omitempty"`
	ContactPhone string  `json:"contact_phone,omitempty"`
	Subject      string  `json:"subject,omitempty"`
}
