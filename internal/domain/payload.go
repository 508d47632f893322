package domain

import "time"

// Attachment is an in-memory file ready to upload.
type Attachment struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
	Spoiler  bool   `json:"spoiler,omitempty"`
}

// FetchResult is the outcome of fetching one MediaItem: either an in-memory
// attachment or a link-only fallback.
type FetchResult struct {
	Attachment *Attachment `json:"attachment,omitempty"`
	// Link holds the (possibly shortened, possibly spoiler-wrapped) URL for link-only results.
	Link    string `json:"link,omitempty"`
	Spoiler bool   `json:"spoiler,omitempty"`
}

// IsLink reports whether the result is link-only.
func (r FetchResult) IsLink() bool {
	return r.Attachment == nil
}

// AttachmentResult builds an in-memory attachment result.
func AttachmentResult(data []byte, filename string, spoiler bool) FetchResult {
	return FetchResult{
		Attachment: &Attachment{Filename: filename, Data: data, Spoiler: spoiler},
		Spoiler:    spoiler,
	}
}

// LinkResult builds a link-only result.
func LinkResult(link string, spoiler bool) FetchResult {
	return FetchResult{Link: link, Spoiler: spoiler}
}

// ControlID is a unique identifier for an interactive control.
type ControlID string

// String returns the string representation of the ControlID.
func (id ControlID) String() string {
	return string(id)
}

// ControlDescriptor describes the link-button plus delete-button control a host
// platform renders under the message that carries it.
type ControlDescriptor struct {
	ID          ControlID     `json:"id"`
	LinkURL     string        `json:"link_url"`
	LinkLabel   string        `json:"link_label"`
	RequesterID string        `json:"requester_id"`
	Timeout     time.Duration `json:"timeout"`
	// Expired controls render the link button only.
	Expired bool `json:"expired,omitempty"`
}

// Payload is one outgoing chat message.
type Payload struct {
	Text                string             `json:"text"`
	Attachments         []Attachment       `json:"attachments,omitempty"`
	Control             *ControlDescriptor `json:"control,omitempty"`
	SuppressLinkPreview bool               `json:"suppress_link_preview"`
}

// Response is the full set of payloads produced for one post. Primary is sent
// as a reply; FollowUps are sent after it in order.
type Response struct {
	Primary   Payload            `json:"primary"`
	FollowUps []Payload          `json:"follow_ups,omitempty"`
	Control   *ControlDescriptor `json:"control"`
}

// Payloads returns primary and follow-ups in send order.
func (r *Response) Payloads() []Payload {
	out := make([]Payload, 0, 1+len(r.FollowUps))
	out = append(out, r.Primary)
	return append(out, r.FollowUps...)
}
