// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
//
// Every message about an answer carries the Turn it belongs to, so late
// messages from a cancelled stream can be told apart from the current one.
package messages

import (
	"github.com/custodia-labs/context-search/internal/core/domain"
)

// StreamStarted carries an open answer stream and its sources.
type StreamStarted struct {
	Turn    int
	Stream  <-chan domain.Fragment
	Sources []domain.Source
}

// FragmentReceived carries one piece of the answer.
type FragmentReceived struct {
	Turn     int
	Fragment domain.Fragment
}

// StreamClosed is sent when the fragment channel closes.
type StreamClosed struct {
	Turn int
}

// AnswerFailed is sent when the question could not be answered.
type AnswerFailed struct {
	Turn int
	Err  error
}
