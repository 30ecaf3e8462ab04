// Package mcp provides an MCP (Model Context Protocol) server adapter for
// context-search. It lets AI assistants ask questions and retrieve passages
// from the indexed content.
package mcp

import "errors"

// Errors returned when required services are not provided.
var (
	ErrMissingQueryService     = errors.New("mcp: query service is required")
	ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
)
