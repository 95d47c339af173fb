// Package normalisers turns manuscript files into plain prose before they
// are chunked. Each normaliser handles a set of file extensions; files with
// an unknown extension are treated as plain text.
package normalisers

import (
	"path/filepath"
	"strings"

	"github.com/custodia-labs/loom/internal/core/ports/driven"
	"github.com/custodia-labs/loom/internal/normalisers/markdown"
	"github.com/custodia-labs/loom/internal/normalisers/plaintext"
)

// Registry selects a normaliser by file extension.
type Registry struct {
	byExt    map[string]driven.Normaliser
	fallback driven.Normaliser
}

// NewRegistry creates a registry. Later normalisers win on shared extensions.
func NewRegistry(fallback driven.Normaliser, normalisers ...driven.Normaliser) *Registry {
	r := &Registry{byExt: make(map[string]driven.Normaliser), fallback: fallback}
	for _, n := range normalisers {
		for _, ext := range n.Extensions() {
			r.byExt[strings.ToLower(ext)] = n
		}
	}
	return r
}

// Default returns the registry used for manuscript projects.
func Default() *Registry {
	return NewRegistry(plaintext.New(), markdown.New())
}

// For returns the normaliser for path.
func (r *Registry) For(path string) driven.Normaliser {
	if n, ok := r.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return n
	}
	return r.fallback
}

// Normalise normalises content read from path.
func (r *Registry) Normalise(path string, content []byte) (title, text string) {
	return r.For(path).Normalise(content)
}
