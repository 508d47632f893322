package extractor

import (
	"errors"
	"regexp"

	"github.com/iconidentify/linkgrab/internal/domain"
)

const instagramShare = "https://www.instagram.com/share/"

var (
	instagramURL  = regexp.MustCompile(`instagram\.com/([\w-]+)/([\w.-]+)(?:/([\w.-]+))?`)
	bareShortcode = regexp.MustCompile(`^[A-Za-z0-9_.-]{10,}$`)
)

// Instagram extracts post, reel, story and share references.
type Instagram struct {
	bareShortcodes bool
}

// NewInstagram creates an Instagram extractor. bareShortcodes enables treating
// standalone 10+ character tokens as shortcodes.
func NewInstagram(bareShortcodes bool) *Instagram {
	return &Instagram{bareShortcodes: bareShortcodes}
}

func (e *Instagram) Provider() domain.Provider {
	return domain.ProviderInstagram
}

func (e *Instagram) Extract(text string) ([]domain.Reference, error) {
	text = Normalize(text)
	refs, err := parseInstagramURLs(text)

	if e.bareShortcodes {
		for _, tok := range tokens(text) {
			if tok.text[0] == '-' || !bareShortcode.MatchString(tok.text) {
				continue
			}
			ref := domain.NewPostReference(tok.text)
			ref.Offset = tok.offset
			refs = append(refs, ref)
		}
		sortByOffset(refs)
	}
	return refs, err
}

func parseInstagramURLs(text string) ([]domain.Reference, error) {
	var (
		refs []domain.Reference
		errs []error
	)
	for _, m := range instagramURL.FindAllStringSubmatchIndex(text, -1) {
		kind := text[m[2]:m[3]]
		id := text[m[4]:m[5]]
		extra := ""
		if m[6] >= 0 {
			extra = text[m[6]:m[7]]
		}

		var ref domain.Reference
		switch kind {
		case "p", "reel", "reels":
			ref = domain.NewPostReference(id)
		case "stories":
			if extra == "" {
				errs = append(errs, domain.NewUnsupportedError(domain.ProviderInstagram, "path /stories/"+id))
				continue
			}
			ref = domain.NewStoryReference(id, extra)
		case "share":
			u := instagramShare + id
			if extra != "" {
				u += "/" + extra
			}
			ref = domain.Reference{Provider: domain.ProviderInstagram, Kind: domain.ReferenceShare, URL: u}
		default:
			errs = append(errs, domain.NewUnsupportedError(domain.ProviderInstagram, "path /"+kind+"/"))
			continue
		}
		ref.Offset = m[0]
		refs = append(refs, ref)
	}
	return refs, errors.Join(errs...)
}
