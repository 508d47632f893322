package domain

import "fmt"

// ReferenceKind distinguishes the identifier shapes a link can carry.
type ReferenceKind string

const (
	// ReferencePost is an Instagram post/reel shortcode.
	ReferencePost ReferenceKind = "post"
	// ReferenceStory is an Instagram story (username + story media ID).
	ReferenceStory ReferenceKind = "story"
	// ReferenceShare is an Instagram share link that must be expanded by redirect.
	ReferenceShare ReferenceKind = "share"
	// ReferenceURL is a normalized URL handed to a scraper verbatim (TikTok).
	ReferenceURL ReferenceKind = "url"
	// ReferenceID is a bare numeric or alphanumeric post ID (tweet, reddit post).
	ReferenceID ReferenceKind = "id"
)

// Reference identifies one post on one provider. Exactly the fields relevant to
// Kind are populated.
type Reference struct {
	Provider Provider      `json:"provider"`
	Kind     ReferenceKind `json:"kind"`
	ID       string        `json:"id,omitempty"`
	Username string        `json:"username,omitempty"`
	URL      string        `json:"url,omitempty"`
	// Offset is the byte position of the match in the source text.
	Offset int `json:"-"`
}

// String returns a compact description used in logs and events.
func (r Reference) String() string {
	switch r.Kind {
	case ReferenceStory:
		return fmt.Sprintf("%s:story:%s/%s", r.Provider, r.Username, r.ID)
	case ReferenceShare, ReferenceURL:
		return fmt.Sprintf("%s:%s:%s", r.Provider, r.Kind, r.URL)
	default:
		return fmt.Sprintf("%s:%s:%s", r.Provider, r.Kind, r.ID)
	}
}

// NewPostReference creates an Instagram post reference from a shortcode.
func NewPostReference(shortcode string) Reference {
	return Reference{Provider: ProviderInstagram, Kind: ReferencePost, ID: shortcode}
}

// NewStoryReference creates an Instagram story reference.
func NewStoryReference(username, storyID string) Reference {
	return Reference{Provider: ProviderInstagram, Kind: ReferenceStory, Username: username, ID: storyID}
}

// NewTweetReference creates a Twitter/X reference from a tweet ID.
func NewTweetReference(id string) Reference {
	return Reference{Provider: ProviderTwitter, Kind: ReferenceID, ID: id}
}
