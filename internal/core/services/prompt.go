package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = `You are a helpful assistant for {site_name}. Your role is to answer questions based on the provided context from the website's content.

Guidelines:
- Answer questions accurately based on the provided context
- If the context doesn't contain enough information, say so
- Cite specific pages or sources when relevant
- Be concise but thorough
- Use a friendly and professional tone`

// DefaultUserTemplate is used when no PROMPT_TEMPLATE is configured.
const DefaultUserTemplate = `Context from website:

{context}

Question: {question}

Please provide a helpful answer based on the context above.`

// NoContextMarker replaces the context block when nothing was retrieved.
const NoContextMarker = "No relevant context was found."

const defaultSiteName = "this website"

// Template placeholders.
const (
	placeholderContext  = "{context}"
	placeholderQuestion = "{question}"
	placeholderSiteName = "{site_name}"
)

// PromptBuilder renders the system prompt and user prompt for a question.
type PromptBuilder struct {
	systemPrompt string
	userTemplate string
	siteName     string
}

// NewPromptBuilder validates the templates. Empty values select the
// defaults. A user template missing {context} or {question} fails with
// domain.ErrInvalidConfiguration.
func NewPromptBuilder(systemPrompt, userTemplate, siteName string) (*PromptBuilder, error) {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if userTemplate == "" {
		userTemplate = DefaultUserTemplate
	}
	for _, p := range []string{placeholderContext, placeholderQuestion} {
		if !strings.Contains(userTemplate, p) {
			return nil, fmt.Errorf("%w: prompt template is missing %s", domain.ErrInvalidConfiguration, p)
		}
	}
	if siteName == "" {
		siteName = defaultSiteName
	}
	return &PromptBuilder{
		systemPrompt: systemPrompt,
		userTemplate: userTemplate,
		siteName:     siteName,
	}, nil
}

// Build returns the system prompt and user prompt. Placeholders are
// substituted in a single pass, so text inside the question or the
// documents is never expanded.
func (b *PromptBuilder) Build(question string, docs []domain.RetrievedDocument) (system, user string) {
	r := strings.NewReplacer(
		placeholderContext, FormatContext(docs),
		placeholderQuestion, question,
		placeholderSiteName, b.siteName,
	)
	system = strings.NewReplacer(placeholderSiteName, b.siteName).Replace(b.systemPrompt)
	return system, r.Replace(b.userTemplate)
}

// FormatContext renders documents as numbered blocks in rank order:
//
//	[Source 1: Title]
//	URL: /page
//	Content: text
//
// Documents without a title are labelled Untitled; the URL line is omitted
// when there is no URL.
func FormatContext(docs []domain.RetrievedDocument) string {
	if len(docs) == 0 {
		return NoContextMarker
	}

	var b strings.Builder
	for i, doc := range docs {
		title, ok := doc.MetadataString(domain.MetaTitle)
		if !ok {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "[Source %d: %s]\n", i+1, title)
		if url, ok := doc.MetadataString(domain.MetaURL); ok {
			fmt.Fprintf(&b, "URL: %s\n", url)
		}
		fmt.Fprintf(&b, "Content: %s\n\n", doc.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
