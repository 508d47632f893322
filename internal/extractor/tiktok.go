package extractor

import (
	"regexp"

	"github.com/iconidentify/linkgrab/internal/domain"
)

var (
	tiktokVideoID = regexp.MustCompile(`tiktok\.com\S*?(?:/(?:video|v|embed|photo)/|[?&](?:item_id|share_item_id|aweme_id)=)(\d+)`)
	tiktokShort   = regexp.MustCompile(`(?:vm|vt|www)\.tiktok\.com/([A-Za-z0-9]+)/?(?:[\s?]|$)`)
)

// TikTok extracts TikTok video references, normalized to canonical URLs.
type TikTok struct{}

// NewTikTok creates a TikTok extractor.
func NewTikTok() *TikTok {
	return &TikTok{}
}

func (e *TikTok) Provider() domain.Provider {
	return domain.ProviderTikTok
}

func (e *TikTok) Extract(text string) ([]domain.Reference, error) {
	text = Normalize(text)
	var refs []domain.Reference

	for _, m := range tiktokVideoID.FindAllStringSubmatchIndex(text, -1) {
		id := text[m[2]:m[3]]
		refs = append(refs, domain.Reference{
			Provider: domain.ProviderTikTok,
			Kind:     domain.ReferenceURL,
			ID:       id,
			URL:      "https://m.tiktok.com/v/" + id,
			Offset:   m[0],
		})
	}
	for _, m := range tiktokShort.FindAllStringSubmatchIndex(text, -1) {
		code := text[m[2]:m[3]]
		refs = append(refs, domain.Reference{
			Provider: domain.ProviderTikTok,
			Kind:     domain.ReferenceURL,
			ID:       code,
			URL:      "https://vm.tiktok.com/" + code,
			Offset:   m[0],
		})
	}

	sortByOffset(refs)
	return refs, nil
}
