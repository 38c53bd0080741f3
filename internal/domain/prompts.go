package domain

import "fmt"

// Action is the UI quick-action a request was issued for.
type Action string

const (
	ActionComplete Action = "complete"
	ActionDebug    Action = "debug"
	ActionRefactor Action = "refactor"
	ActionExplain  Action = "explain"
	ActionCustom   Action = "custom"
)

//nolint:gochecknoglobals // fixed prompt table
var systemPrompts = map[Action]string{
	ActionComplete: "You are a TypeScript code completion assistant. " +
		"Provide only the completion for the given code context.",
	ActionDebug: "You are a debugging expert. " +
		"Analyze the error and provide step-by-step fix suggestions with code patches.",
	ActionRefactor: "You are a code refactoring expert. " +
		"Improve the code following best practices and explain changes.",
	ActionExplain: "You are a code explanation expert. " +
		"Explain the code in simple, clear terms.",
}

// SystemPrompt returns the template for action. Actions without a template,
// including custom, get the completion template.
func SystemPrompt(action Action) string {
	if prompt, ok := systemPrompts[action]; ok {
		return prompt
	}
	return systemPrompts[ActionComplete]
}

// IsKnownAction reports whether action has its own template.
func IsKnownAction(action Action) bool {
	_, ok := systemPrompts[action]
	return ok
}

// BuildMessages returns the system/user pair sent for a UI action.
func BuildMessages(action Action, userPrompt string, code string) []Message {
	return []Message{
		{Role: RoleSystem, Content: SystemPrompt(action)},
		{Role: RoleUser, Content: fmt.Sprintf("Code:\n```typescript\n%s\n```\n\nRequest: %s", code, userPrompt)},
	}
}
