package ai

// SystemPrompt instructs every backend to answer with a bare description.
const SystemPrompt = `You write the description part of conventional commit messages.
Reply with one short imperative phrase in lowercase, at most 60 characters.
Do not include a type or scope prefix, quotes, a trailing period, or any explanation.`

// combinedPrompt joins the system and user prompts for backends that take a
// single prompt.
func combinedPrompt(prompt string) string {
	return SystemPrompt + "\n\n" + prompt
}
