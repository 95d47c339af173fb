// Package chunker provides a sentence-aligned, overlapping text chunker.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/loom/internal/core/domain"
)

// DefaultMaxSize is the default maximum number of characters per chunk.
const DefaultMaxSize = 1500

// DefaultOverlap is the default number of characters carried into the next chunk.
const DefaultOverlap = 200

// Chunker splits long text into overlapping chunks on sentence boundaries.
// Sizes are measured in characters (runes), not bytes.
type Chunker struct {
	maxSize int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithMaxSize sets the maximum chunk size in characters.
func WithMaxSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a new chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxSize: DefaultMaxSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.maxSize {
		c.overlap = c.maxSize / 4
	}

	return c
}

// Name returns the chunker name.
func (c *Chunker) Name() string {
	return "sentence-chunker"
}

// MaxSize returns the configured maximum chunk size.
func (c *Chunker) MaxSize() int {
	return c.maxSize
}

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk splits text into chunk strings. See ChunkWithOffsets.
func (c *Chunker) Chunk(text string) []string {
	chunks := c.ChunkWithOffsets(text)
	if len(chunks) == 0 {
		return nil
	}
	out := make([]string, len(chunks))
	for i := range chunks {
		out[i] = chunks[i].Text
	}
	return out
}

// ChunkWithOffsets splits text into chunks.
//
// Text that fits in one chunk is returned unchanged. Longer text is split
// into sentences which are packed greedily; when the next sentence would
// overflow a non-empty buffer, the buffer is emitted and the next one is
// seeded with the last overlap characters of the emitted chunk. A sentence
// is never split, so a single sentence longer than the maximum becomes an
// oversized chunk. Blank text yields no chunks.
func (c *Chunker) ChunkWithOffsets(text string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= c.maxSize {
		return []domain.Chunk{{Text: text}}
	}

	sentences := splitSentences(text)
	chunks := make([]domain.Chunk, 0, len(sentences)/4+1)

	var buf strings.Builder
	bufLen := 0
	start := 0
	// hasNew is false while the buffer holds only overlap carried over.
	hasNew := false

	for _, s := range sentences {
		if hasNew && bufLen+s.length > c.maxSize {
			emitted := buf.String()
			chunks = append(chunks, domain.Chunk{Text: emitted, StartOffsetHint: start})

			tail := lastRunes(emitted, c.overlap)
			buf.Reset()
			buf.WriteString(tail)
			bufLen = utf8.RuneCountInString(tail)
			hasNew = false
		}

		if !hasNew {
			start = s.offset
		}
		buf.WriteString(s.text)
		bufLen += s.length
		hasNew = true
	}

	if hasNew && strings.TrimSpace(buf.String()) != "" {
		chunks = append(chunks, domain.Chunk{Text: buf.String(), StartOffsetHint: start})
	}

	return chunks
}

// sentence is a verbatim slice of the source text.
type sentence struct {
	text   string
	offset int // rune offset in the source
	length int // rune length
}

// isTerminator reports sentence-final punctuation and line breaks.
func isTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?', '\n':
		return true
	default:
		return false
	}
}

// isCloser reports closing quotes and brackets that belong to the sentence
// they follow.
func isCloser(r rune) bool {
	switch r {
	case '”', '’', '」', '』', '"', '\'', ')', '）', '》', '】':
		return true
	default:
		return false
	}
}

// splitSentences cuts text after each terminator, keeping the punctuation,
// any closing quotes and trailing whitespace with the sentence. The
// concatenation of the result equals text.
func splitSentences(text string) []sentence {
	runes := []rune(text)
	var out []sentence

	begin := 0
	i := 0
	for i < len(runes) {
		if !isTerminator(runes[i]) {
			i++
			continue
		}

		end := i + 1
		for end < len(runes) && (isTerminator(runes[end]) || isCloser(runes[end])) {
			end++
		}
		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}

		out = append(out, sentence{
			text:   string(runes[begin:end]),
			offset: begin,
			length: end - begin,
		})
		begin = end
		i = end
	}

	if begin < len(runes) {
		out = append(out, sentence{
			text:   string(runes[begin:]),
			offset: begin,
			length: len(runes) - begin,
		})
	}

	return out
}

// lastRunes returns the last n runes of s.
func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	skip := count - n
	for i := range s {
		if skip == 0 {
			return s[i:]
		}
		skip--
	}
	return ""
}
