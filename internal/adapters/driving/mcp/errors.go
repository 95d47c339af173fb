// Package mcp provides an MCP (Model Context Protocol) server adapter for loom.
// It lets AI writing assistants pull retrieval context and keep the index
// current while a manuscript is being edited.
package mcp

import "errors"

var (
	// ErrMissingContextBuilder is returned when the context builder is not provided.
	ErrMissingContextBuilder = errors.New("mcp: context builder is required")

	// ErrIndexingDisabled is returned by indexing tools when no index service is wired.
	ErrIndexingDisabled = errors.New("mcp: indexing is not enabled")

	// ErrGenerationDisabled is returned by the generate tool when no generation service is wired.
	ErrGenerationDisabled = errors.New("mcp: generation is not enabled")
)
