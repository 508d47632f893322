// Package platform defines the chat-host primitives the delivery pipeline
// consumes. Implementations live with the bot frontend.
package platform

import (
	"context"

	"github.com/iconidentify/linkgrab/internal/domain"
)

// Message identifies a message sent on the host platform.
type Message struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Channel is a messageable conversation.
type Channel interface {
	// ID returns the host's channel identifier.
	ID() string

	// MaxAttachmentBytes reports the per-file upload limit for this channel.
	MaxAttachmentBytes() int64

	// Send posts payload, as a reply to replyTo when it is non-nil.
	Send(ctx context.Context, payload domain.Payload, replyTo *Message) (Message, error)

	// Edit replaces the text and control of a sent message. Attachments already
	// on the message are kept; payload.Attachments is ignored.
	Edit(ctx context.Context, msg Message, payload domain.Payload) error

	// Delete removes a sent message.
	Delete(ctx context.Context, msg Message) error
}
