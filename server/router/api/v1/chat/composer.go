package chat

import (
	"time"

	"github.com/apsa-ai/nexus/ai/llm"
	"github.com/apsa-ai/nexus/store"
)

// ComposeInput carries everything the composer needs for one turn.
type ComposeInput struct {
	Mode             Mode
	WebSearchEnabled bool
	Training         []*store.TrainingInstruction
	History          []*store.Message
	Content          string
	// Parts replaces Content as the current user message when media
	// attachments were resolved.
	Parts []llm.ContentPart
	Now   time.Time
}

// Compose builds the ordered message list for a chat turn: one system
// message, prior messages in chronological order, then the current user
// message.
func Compose(in ComposeInput) []llm.Message {
	system := SystemPrompt(in)

	messages := make([]llm.Message, 0, len(in.History)+2)
	messages = append(messages, llm.SystemPrompt(system))

	// Exclude prior user messages that exactly match the current content.
	// The caller's history snapshot may already contain the in-flight
	// message; including it would echo the turn twice.
	for _, m := range in.History {
		if m.Role == store.RoleUser && m.Content == in.Content {
			continue
		}
		messages = append(messages, llm.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	current := llm.Message{Role: "user", Content: in.Content}
	if len(in.Parts) > 0 {
		current = llm.Message{Role: "user", Parts: in.Parts}
	}
	messages = append(messages, current)

	return messages
}

// SystemPrompt builds the system message for a turn: mode template, spacing
// directive, optional training block, optional web-search block.
func SystemPrompt(in ComposeInput) string {
	prompt := modePrompts[in.Mode]
	if prompt == "" {
		prompt = modePrompts[ModeDefault]
	}
	prompt += spacingDirective

	if len(in.Training) > 0 {
		instructions := make([]string, 0, len(in.Training))
		for _, t := range in.Training {
			instructions = append(instructions, t.Instruction)
		}
		prompt += trainingBlock(instructions)
	}

	if in.WebSearchEnabled {
		now := in.Now
		if now.IsZero() {
			now = time.Now()
		}
		prompt += webSearchBlock(now)
	}

	return prompt
}
