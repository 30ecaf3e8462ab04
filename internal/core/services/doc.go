// Package services implements the driving port interfaces.
// Services contain the retrieval and generation pipeline and orchestrate
// calls to driven ports (adapters).
//
// Services depend only on domain, the ports and golang.org/x/sync.
package services
