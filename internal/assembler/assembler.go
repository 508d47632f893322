// Package assembler turns resolved posts and fetch results into outgoing chat
// payloads that fit the host platform's per-message limits.
package assembler

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/domain"
)

const ellipsis = "..."

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`_`, `\_`,
	`~`, `\~`,
	"`", "\\`",
	`|`, `\|`,
	`>`, `\>`,
)

// Assembler builds responses for resolved posts.
type Assembler struct {
	showCaption    bool
	maxAttachments int
	maxTextLength  int
	controlTimeout time.Duration
	newID          func() string
}

// New creates an assembler from the embed configuration.
func New(cfg config.EmbedConfig) *Assembler {
	maxAttachments := cfg.MaxAttachments
	if maxAttachments < 1 {
		maxAttachments = 10
	}
	maxText := cfg.MaxTextLength
	if maxText < 1 {
		maxText = 1997
	}
	return &Assembler{
		showCaption:    cfg.ShowCaption,
		maxAttachments: maxAttachments,
		maxTextLength:  maxText,
		controlTimeout: cfg.ControlTimeout,
		newID:          uuid.NewString,
	}
}

// Assemble builds the response for post. results must be in the post's media
// order. The control is attached to the last payload sent.
func (a *Assembler) Assemble(post *domain.Post, results []domain.FetchResult, requesterID string) domain.Response {
	var (
		attachments []domain.Attachment
		links       []string
	)
	for _, r := range results {
		if r.IsLink() {
			links = append(links, r.Link)
			continue
		}
		attachments = append(attachments, *r.Attachment)
	}

	control := &domain.ControlDescriptor{
		ID:          domain.ControlID(a.newID()),
		LinkURL:     post.CanonicalURL,
		LinkLabel:   post.Provider.DisplayName(),
		RequesterID: requesterID,
		Timeout:     a.controlTimeout,
	}
	suppress := len(links) == 0

	chunks := chunkAttachments(attachments, a.maxAttachments)
	payloads := make([]domain.Payload, len(chunks))
	for i, chunk := range chunks {
		payloads[i] = domain.Payload{
			Attachments:         chunk,
			SuppressLinkPreview: suppress,
		}
	}
	payloads[0].Text = a.Caption(post, links)
	payloads[len(payloads)-1].Control = control

	return domain.Response{
		Primary:   payloads[0],
		FollowUps: payloads[1:],
		Control:   control,
	}
}

// Caption builds the message text: identity line, timestamp, quoted caption,
// then one line per link-only result. Only the quoted caption is truncated,
// so link lines always survive.
func (a *Assembler) Caption(post *domain.Post, links []string) string {
	prefix := identity(post)
	if ts := post.UnixTimestamp(); ts > 0 {
		prefix += fmt.Sprintf(" <t:%d:f>", ts)
	}

	var tail strings.Builder
	for _, link := range links {
		tail.WriteString("\n")
		tail.WriteString(link)
	}

	var body string
	if a.showCaption && strings.TrimSpace(post.Caption) != "" {
		var b strings.Builder
		for _, line := range strings.Split(strings.TrimSpace(post.Caption), "\n") {
			b.WriteString("\n> ")
			b.WriteString(line)
		}
		budget := a.maxTextLength - utf8.RuneCountInString(prefix) - utf8.RuneCountInString(tail.String())
		if budget > 0 {
			body = Truncate(b.String(), budget)
		}
	}

	return prefix + body + tail.String()
}

func identity(post *domain.Post) string {
	name := EscapeMarkdown(post.Author.Username)
	if post.Author.DisplayName != "" {
		name = "**" + EscapeMarkdown(post.Author.DisplayName) + "**"
	}
	if post.Subreddit != "" {
		return "r/" + EscapeMarkdown(post.Subreddit) + " - " + name
	}
	return name
}

// EscapeMarkdown escapes characters the host platform treats as formatting.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Truncate shortens text to at most limit runes, cutting at the last
// whitespace at or before the limit and appending an ellipsis.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	cut := limit
	for i := limit; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + ellipsis
}

// chunkAttachments splits attachments into groups of at most size. It always
// returns at least one (possibly empty) group.
func chunkAttachments(attachments []domain.Attachment, size int) [][]domain.Attachment {
	if len(attachments) == 0 {
		return [][]domain.Attachment{nil}
	}
	var chunks [][]domain.Attachment
	for start := 0; start < len(attachments); start += size {
		end := min(start+size, len(attachments))
		chunks = append(chunks, attachments[start:end])
	}
	return chunks
}
