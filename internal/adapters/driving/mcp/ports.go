package mcp

import (
	"github.com/custodia-labs/loom/internal/core/ports/driven"
	"github.com/custodia-labs/loom/internal/core/ports/driving"
)

// Ports aggregates the services exposed by the MCP server.
type Ports struct {
	// Context builds retrieval context. Required.
	Context driving.ContextBuilder

	// Index writes entities into the index. Optional.
	Index driving.IndexService

	// Generation streams context-grounded text. Optional.
	Generation driving.GenerationService

	// Prompts exposes prompt templates as resources. Optional.
	Prompts driven.PromptStore
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Context == nil {
		return ErrMissingContextBuilder
	}
	return nil
}
