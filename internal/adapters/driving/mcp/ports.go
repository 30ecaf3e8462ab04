package mcp

import (
	"github.com/custodia-labs/context-search/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query answers questions.
	Query driving.QueryService

	// Retrieval finds passages without generating an answer.
	Retrieval driving.RetrievalService

	// Index lists indexed sources. Optional.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
