// Package stream turns line-oriented HTTP response bodies into fragment
// channels for the language model adapters.
package stream

import (
	"bufio"
	"context"
	"io"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// maxLineSize bounds a single streamed line.
const maxLineSize = 1 << 20

// LineFunc parses one non-empty line. It returns the text to emit (may be
// empty), whether the stream is complete, or an error that ends the stream.
type LineFunc func(line []byte) (text string, done bool, err error)

// Lines reads body line by line in a new goroutine and sends a fragment per
// non-empty text. The channel ends with a Done fragment, or an Err fragment
// on failure, and is then closed. The body is closed when the goroutine
// exits. Cancelling ctx stops the goroutine; the caller's HTTP request
// should use the same ctx so the read unblocks.
func Lines(ctx context.Context, body io.ReadCloser, parse LineFunc) <-chan domain.Fragment {
	out := make(chan domain.Fragment)

	go func() {
		defer close(out)
		defer body.Close()

		send := func(f domain.Fragment) bool {
			select {
			case out <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			text, done, err := parse(line)
			if err != nil {
				send(domain.Fragment{Err: err})
				return
			}
			if text != "" && !send(domain.Fragment{Text: text}) {
				return
			}
			if done {
				send(domain.Fragment{Done: true})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			send(domain.Fragment{Err: err})
			return
		}
		// Body ended without an explicit terminator.
		send(domain.Fragment{Done: true})
	}()

	return out
}

// Collect drains a fragment channel into a single string.
func Collect(ch <-chan domain.Fragment) (string, error) {
	var text []byte
	for f := range ch {
		if f.Err != nil {
			return string(text), f.Err
		}
		text = append(text, f.Text...)
	}
	return string(text), nil
}
