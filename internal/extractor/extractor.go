// Package extractor finds provider post references in free-form chat text.
package extractor

import (
	"errors"
	"regexp"
	"sort"

	"github.com/iconidentify/linkgrab/internal/domain"
)

// Extractor turns text into the post references of one provider, in order of
// appearance. Text without links yields an empty slice and a nil error.
type Extractor interface {
	Provider() domain.Provider
	// Extract returns every supported reference. Recognized links that cannot be
	// handled are reported in the error alongside the references that can.
	Extract(text string) ([]domain.Reference, error)
}

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// Normalize collapses line breaks into single spaces so links split across
// pasted lines still match.
func Normalize(text string) string {
	return lineBreaks.ReplaceAllString(text, " ")
}

// ExtractAll runs every extractor over text and merges the references by
// position. Extraction errors are joined.
func ExtractAll(text string, extractors ...Extractor) ([]domain.Reference, error) {
	var (
		refs []domain.Reference
		errs []error
	)
	for _, e := range extractors {
		found, err := e.Extract(text)
		refs = append(refs, found...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	sortByOffset(refs)
	return refs, errors.Join(errs...)
}

func sortByOffset(refs []domain.Reference) {
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Offset < refs[j].Offset
	})
}

type token struct {
	text   string
	offset int
}

// tokens splits text on whitespace, keeping byte offsets.
func tokens(text string) []token {
	var out []token
	start := -1
	for i, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if start >= 0 {
				out = append(out, token{text: text[start:i], offset: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, token{text: text[start:], offset: start})
	}
	return out
}
