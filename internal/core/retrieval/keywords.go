package retrieval

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Keyword extraction limits.
const (
	MaxKeywords    = 50
	minTokenLen    = 2
	maxTokenLen    = 10
	minNameLen     = 2
	maxNameLen     = 4
	keywordDelimit = ' '
)

// ExtractKeywords derives lexical search keys from text.
//
// Punctuation, symbols and whitespace of any script are normalised to one
// delimiter and the text is tokenised on it; tokens of 2 to 10 characters
// are kept. Runs of Han ideographs are additionally cut greedily into
// pieces of up to 4 characters and every piece of at least 2 characters is
// kept as a name candidate, since names are not delimited in CJK prose.
// The result is deduplicated in first-seen order and capped at MaxKeywords.
func ExtractKeywords(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})
	keywords := make([]string, 0, 16)
	add := func(k string) bool {
		if _, ok := seen[k]; ok {
			return true
		}
		seen[k] = struct{}{}
		keywords = append(keywords, k)
		return len(keywords) < MaxKeywords
	}

	normalised := strings.Map(func(r rune) rune {
		if isDelimiter(r) {
			return keywordDelimit
		}
		return r
	}, text)

	for _, token := range strings.Fields(normalised) {
		n := utf8.RuneCountInString(token)
		if n < minTokenLen || n > maxTokenLen {
			continue
		}
		if !add(token) {
			return keywords
		}
	}

	for _, name := range hanNameCandidates(text) {
		if !add(name) {
			return keywords
		}
	}

	return keywords
}

// isDelimiter reports punctuation, symbols and whitespace, including the
// CJK and full-width forms.
func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// hanNameCandidates returns greedy 2-4 character slices of every run of
// Han ideographs, left to right.
func hanNameCandidates(text string) []string {
	var out []string
	var run []rune

	flush := func() {
		for len(run) >= minNameLen {
			n := maxNameLen
			if len(run) < n {
				n = len(run)
			}
			out = append(out, string(run[:n]))
			run = run[n:]
		}
		run = run[:0]
	}

	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()

	return out
}
