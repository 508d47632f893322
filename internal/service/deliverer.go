package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iconidentify/linkgrab/internal/control"
	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/internal/platform"
)

const expireEditTimeout = 30 * time.Second

// Embedder produces responses for chat text.
type Embedder interface {
	Embed(ctx context.Context, req EmbedRequest) ([]EmbedResult, error)
}

// Deliverer sends assembled responses to a channel and keeps their interactive
// controls bound to every message they govern.
type Deliverer struct {
	embedder Embedder
	registry *control.Registry
	logger   *slog.Logger
}

// NewDeliverer creates a deliverer. embedder is only needed by Handle.
func NewDeliverer(embedder Embedder, registry *control.Registry, logger *slog.Logger) *Deliverer {
	return &Deliverer{embedder: embedder, registry: registry, logger: logger}
}

// Handle embeds every link in a chat message and replies in channel. Failures
// are replied as user-facing warnings.
func (d *Deliverer) Handle(ctx context.Context, channel platform.Channel, source platform.Message, text, requesterID string, spoiler bool) error {
	results, err := d.embedder.Embed(ctx, EmbedRequest{
		Text:        text,
		MaxBytes:    channel.MaxAttachmentBytes(),
		Spoiler:     spoiler,
		RequesterID: requesterID,
	})
	if err != nil {
		return d.warn(ctx, channel, source, err)
	}

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, d.warn(ctx, channel, source, r.Err))
			continue
		}
		if _, err := d.Deliver(ctx, channel, &source, *r.Response); err != nil {
			errs = append(errs, fmt.Errorf("deliver %s: %w", r.Reference, err))
		}
	}
	return errors.Join(errs...)
}

// Deliver sends the primary payload as a reply to replyTo, then the follow-ups
// in order. The response's control is registered once every message is sent
// and governs all of them. When the control times out the message carrying it
// is edited to drop the delete action.
func (d *Deliverer) Deliver(ctx context.Context, channel platform.Channel, replyTo *platform.Message, resp domain.Response) ([]platform.Message, error) {
	payloads := resp.Payloads()
	sent := make([]platform.Message, 0, len(payloads))
	carrier := -1

	for i, p := range payloads {
		var reply *platform.Message
		if i == 0 {
			reply = replyTo
		}
		msg, err := channel.Send(ctx, p, reply)
		if err != nil {
			return sent, fmt.Errorf("send payload %d: %w", i+1, err)
		}
		sent = append(sent, msg)
		if p.Control != nil {
			carrier = i
		}
	}

	if resp.Control == nil {
		return sent, nil
	}

	var onTimeout control.TimeoutFunc
	if carrier >= 0 {
		payload, msg := payloads[carrier], sent[carrier]
		onTimeout = func(desc domain.ControlDescriptor, _ []platform.Message) {
			d.expire(channel, msg, payload, desc)
		}
	}
	if err := d.registry.Register(*resp.Control, onTimeout); err != nil {
		return sent, fmt.Errorf("register control: %w", err)
	}
	for _, msg := range sent {
		if err := d.registry.Bind(resp.Control.ID, msg); err != nil {
			return sent, fmt.Errorf("bind control: %w", err)
		}
	}
	return sent, nil
}

// HandleDelete removes every message governed by the control when requesterID
// pressed the delete action.
func (d *Deliverer) HandleDelete(ctx context.Context, channel platform.Channel, id domain.ControlID, requesterID string) error {
	msgs, err := d.registry.Delete(id, requesterID)
	if err != nil {
		return err
	}

	var errs []error
	for _, msg := range msgs {
		if err := channel.Delete(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("delete message %s: %w", msg.MessageID, err))
		}
	}
	d.logger.Info("embed deleted by requester", "control_id", id, "messages", len(msgs))
	return errors.Join(errs...)
}

func (d *Deliverer) expire(channel platform.Channel, msg platform.Message, payload domain.Payload, desc domain.ControlDescriptor) {
	ctx, cancel := context.WithTimeout(context.Background(), expireEditTimeout)
	defer cancel()

	payload.Attachments = nil
	payload.Control = &desc
	if err := channel.Edit(ctx, msg, payload); err != nil {
		d.logger.Warn("failed to expire control", "control_id", desc.ID, "message_id", msg.MessageID, "error", err)
	}
}

func (d *Deliverer) warn(ctx context.Context, channel platform.Channel, source platform.Message, cause error) error {
	_, err := channel.Send(ctx, domain.Payload{Text: domain.UserMessage(cause), SuppressLinkPreview: true}, &source)
	if err != nil {
		return fmt.Errorf("send warning: %w", err)
	}
	return nil
}
