package extractor

import (
	"regexp"

	"github.com/iconidentify/linkgrab/internal/domain"
)

var redditPatterns = []*regexp.Regexp{
	regexp.MustCompile(`reddit\.com/r/\w+/comments/(\w+)`),
	regexp.MustCompile(`reddit\.com/gallery/(\w+)`),
}

// Reddit extracts post IDs from subreddit comment links and gallery links.
type Reddit struct{}

// NewReddit creates a Reddit extractor.
func NewReddit() *Reddit {
	return &Reddit{}
}

func (e *Reddit) Provider() domain.Provider {
	return domain.ProviderReddit
}

func (e *Reddit) Extract(text string) ([]domain.Reference, error) {
	text = Normalize(text)
	var refs []domain.Reference
	for _, re := range redditPatterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			refs = append(refs, domain.Reference{
				Provider: domain.ProviderReddit,
				Kind:     domain.ReferenceID,
				ID:       text[m[2]:m[3]],
				Offset:   m[0],
			})
		}
	}
	sortByOffset(refs)
	return refs, nil
}
