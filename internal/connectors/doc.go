// Package connectors provides sources of host content. Each connector turns
// an external location into domain.SourceDocument values and, where it can,
// reports publish and unpublish changes so the index stays current.
package connectors
