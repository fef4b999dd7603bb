package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apsa-ai/nexus/ai/llm"
)

const (
	suggestionTimeout  = 15 * time.Second
	maxSuggestions     = 5
	maxSuggestionWords = 8
)

// suggestionSystemPrompt asks for follow-up prompts as a JSON object.
const suggestionSystemPrompt = `Generate 5 short follow-up suggestions (max 8 words each) as a JSON object: {"suggestions": []}`

// SuggestionGenerator produces follow-up suggestions for a completed turn.
type SuggestionGenerator struct {
	llm   llm.Service
	model string
}

// NewSuggestionGenerator creates a new suggestion generator instance.
func NewSuggestionGenerator(svc llm.Service, model string) *SuggestionGenerator {
	return &SuggestionGenerator{llm: svc, model: model}
}

// Generate requests follow-up suggestions for the given exchange. Any
// failure degrades to an empty list; the caller never fails a turn on it.
func (sg *SuggestionGenerator) Generate(ctx context.Context, userContent, assistantResponse string) []string {
	ctx, cancel := context.WithTimeout(ctx, suggestionTimeout)
	defer cancel()

	prompt := fmt.Sprintf("User: %s\nAI: %s", userContent, assistantResponse)

	content, _, err := sg.llm.ChatJSON(ctx, sg.model, []llm.Message{
		llm.SystemPrompt(suggestionSystemPrompt),
		llm.UserMessage(prompt),
	}, 0)
	if err != nil {
		slog.Warn("suggestion_generation_failed", "model", sg.model, "error", err)
		return []string{}
	}

	var result struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		slog.Warn("suggestion_generation_parse_failed",
			"model", sg.model,
			"content", content,
			"error", err)
		return []string{}
	}

	return clampSuggestions(result.Suggestions)
}

// clampSuggestions enforces the contract the model is asked to follow: at
// most 5 suggestions of at most 8 words each.
func clampSuggestions(suggestions []string) []string {
	clamped := make([]string, 0, maxSuggestions)
	for _, s := range suggestions {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		words := strings.Fields(s)
		if len(words) > maxSuggestionWords {
			s = strings.Join(words[:maxSuggestionWords], " ")
		}
		clamped = append(clamped, s)
		if len(clamped) == maxSuggestions {
			break
		}
	}
	return clamped
}
