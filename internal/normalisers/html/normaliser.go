package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise strips markup, scripts and styles. The title comes from the
// <title> element, falling back to the first <h1>.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := string(raw.Content)
	return &driven.NormaliseResult{
		Title: extractHTMLTitle(content),
		Text:  stripHTML(content),
	}, nil
}

var (
	titleTag = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	h1Tag    = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	comments = regexp.MustCompile(`(?s)<!--.*?-->`)
	lineTags = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|ul|ol|dt|dd|tr|table|blockquote|pre|section|article|header|footer|main|nav|aside)\b[^>]*>`)
	cellTags = regexp.MustCompile(`(?i)</t[dh]\s*>`)
	anyTag   = regexp.MustCompile(`<[^>]+>`)

	// dropped elements never carry readable text. Go regexps have no
	// backreferences, so each element needs its own expression.
	dropped = func() []*regexp.Regexp {
		var res []*regexp.Regexp
		for _, tag := range []string{"head", "title", "script", "style", "noscript", "svg", "template"} {
			res = append(res, regexp.MustCompile(`(?is)<`+tag+`\b[^>]*>.*?</`+tag+`\s*>`))
		}
		return res
	}()
)

// extractHTMLTitle returns the <title> text, else the first <h1> text.
func extractHTMLTitle(content string) string {
	for _, re := range []*regexp.Regexp{titleTag, h1Tag} {
		m := re.FindStringSubmatch(content)
		if len(m) < 2 {
			continue
		}
		title := anyTag.ReplaceAllString(m[1], "")
		title = strings.Join(strings.Fields(html.UnescapeString(title)), " ")
		if title != "" {
			return title
		}
	}
	return ""
}

// stripHTML reduces a page to its readable text, one block per line,
// with whitespace inside each line collapsed.
func stripHTML(content string) string {
	content = comments.ReplaceAllString(content, "")
	for _, re := range dropped {
		content = re.ReplaceAllString(content, "")
	}
	content = lineTags.ReplaceAllString(content, "\n")
	content = cellTags.ReplaceAllString(content, " ")
	content = anyTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
