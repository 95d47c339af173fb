// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the loom home directory (~/.loom).
//
// Adapters:
//   - ConfigStore: TOML configuration, exposed as flattened dot keys
//   - PromptStore: user-editable generation prompts
package file
