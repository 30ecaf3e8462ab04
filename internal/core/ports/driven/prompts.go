package driven

// PromptStore provides access to prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt for the given name. An empty string with a
	// nil error means no override exists and the built-in default applies.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptSystem is the system prompt. It has no placeholders.
	PromptSystem = "system"

	// PromptUser is the user template. It requires {context} and
	// {question} and may use {site_name}.
	PromptUser = "user"
)
