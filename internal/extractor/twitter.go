package extractor

import (
	"regexp"
	"strconv"

	"github.com/iconidentify/linkgrab/internal/domain"
)

var tweetURL = regexp.MustCompile(`(?:twitter|x)\.com/\w+/status/(\d+)`)

// Twitter extracts tweet IDs from twitter.com and x.com status links.
type Twitter struct {
	bareIDs bool
}

// NewTwitter creates a Twitter extractor. bareIDs enables treating standalone
// integers as tweet IDs.
func NewTwitter(bareIDs bool) *Twitter {
	return &Twitter{bareIDs: bareIDs}
}

func (e *Twitter) Provider() domain.Provider {
	return domain.ProviderTwitter
}

func (e *Twitter) Extract(text string) ([]domain.Reference, error) {
	text = Normalize(text)
	var refs []domain.Reference

	for _, m := range tweetURL.FindAllStringSubmatchIndex(text, -1) {
		ref := domain.NewTweetReference(text[m[2]:m[3]])
		ref.Offset = m[0]
		refs = append(refs, ref)
	}

	if e.bareIDs {
		for _, tok := range tokens(text) {
			if _, err := strconv.ParseInt(tok.text, 10, 64); err != nil {
				continue
			}
			ref := domain.NewTweetReference(tok.text)
			ref.Offset = tok.offset
			refs = append(refs, ref)
		}
		sortByOffset(refs)
	}
	return refs, nil
}
