// Package file provides file-based implementations of driven port interfaces.
// These adapters read user-editable files from the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML or YAML configuration, resolved against the defaults
//   - PromptStore: prompt overrides stored as text files
package file
