package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Unknown or unreadable prompts fall back to DefaultPrompt.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptGenerationSystem frames every generation request.
	// This prompt has no format placeholders.
	PromptGenerationSystem = "generation_system"

	// PromptGenerationTask wraps the writer's instruction.
	// The template expects one %s placeholder for the instruction.
	PromptGenerationTask = "generation_task"
)

var defaultPrompts = map[string]string{
	PromptGenerationSystem: "你是一位长篇小说写作助手。请严格依据提供的参考资料保持人物、设定与文风的一致，" +
		"不要编造与参考资料矛盾的内容。",
	PromptGenerationTask: "任务：\n%s",
}

// DefaultPrompt returns the built-in template for name, or "" if unknown.
func DefaultPrompt(name string) string {
	return defaultPrompts[name]
}

// PromptNames returns every well-known prompt name.
func PromptNames() []string {
	return []string{PromptGenerationSystem, PromptGenerationTask}
}

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service uses DefaultPrompt.
	SetPromptStore(store PromptStore)
}
