// Package plaintext normalises plain text manuscript files.
package plaintext

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/loom/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var (
	// chapterHeading matches headings such as "第十二章 雪夜" or "Chapter 3".
	chapterHeading = regexp.MustCompile(`^(第[0-9零〇一二三四五六七八九十百千两]+[章回节卷]|(?i:chapter)\s+\d+)`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

// Normaliser handles plain text files.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".txt", ".text"}
}

// Normalise strips the byte order mark, unifies line endings and trims
// trailing whitespace. A leading chapter heading becomes the title and is
// removed from the text.
func (n *Normaliser) Normalise(content []byte) (title, text string) {
	text = Clean(string(content))

	first, rest, _ := strings.Cut(text, "\n")
	if chapterHeading.MatchString(strings.TrimSpace(first)) {
		return strings.TrimSpace(first), strings.TrimLeft(rest, "\n")
	}
	return "", text
}

// Clean applies the whitespace normalisation shared by every format.
func Clean(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\u3000")
	}
	s = strings.Join(lines, "\n")

	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.Trim(s, "\n")
}
