// Package markdown normalises Markdown manuscript files.
package markdown

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/loom/internal/core/ports/driven"
	"github.com/custodia-labs/loom/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var (
	frontMatter = regexp.MustCompile(`(?s)\A---\n(.*?)\n---\n?`)
	codeBlock   = regexp.MustCompile("(?s)```.*?```")
	inlineCode  = regexp.MustCompile("`([^`]+)`")
	images      = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	heading     = regexp.MustCompile(`(?m)^#{1,6}\s+(.*)$`)
	blockquote  = regexp.MustCompile(`(?m)^>\s?`)
	sceneBreak  = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	htmlComment = regexp.MustCompile(`(?s)<!--.*?-->`)
	emphasis    = regexp.MustCompile(`(\*{1,3}|_{2,3})([^*_\n]+)(\*{1,3}|_{2,3})`)
)

// Normaliser handles Markdown files.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Normalise removes Markdown syntax and returns the prose. The title comes
// from a front matter "title" field, else from the first H1 heading, which
// is then dropped from the text.
func (n *Normaliser) Normalise(content []byte) (title, text string) {
	text = plaintext.Clean(string(content))

	if m := frontMatter.FindStringSubmatch(text + "\n"); m != nil {
		var meta struct {
			Title string `yaml:"title"`
		}
		if err := yaml.Unmarshal([]byte(m[1]), &meta); err == nil {
			title = strings.TrimSpace(meta.Title)
			text = strings.TrimPrefix(text+"\n", m[0])
		}
	}

	if title == "" {
		title, text = firstH1(text)
	}
	return title, strip(text)
}

func firstH1(text string) (title, rest string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "# ") {
			title = strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
			return title, strings.Join(append(lines[:i:i], lines[i+1:]...), "\n")
		}
		break
	}
	return "", text
}

// strip removes Markdown formatting while keeping paragraph structure.
// Scene breaks collapse into a blank line.
func strip(text string) string {
	text = htmlComment.ReplaceAllString(text, "")
	text = codeBlock.ReplaceAllString(text, "")
	text = images.ReplaceAllString(text, "")
	text = links.ReplaceAllString(text, "$1")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = sceneBreak.ReplaceAllString(text, "")
	text = heading.ReplaceAllString(text, "$1")
	text = blockquote.ReplaceAllString(text, "")
	text = emphasis.ReplaceAllString(text, "$2")
	return plaintext.Clean(text)
}
