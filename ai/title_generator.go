package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apsa-ai/nexus/ai/llm"
)

// LLM parameters for title generation
const (
	titleTimeout      = 15 * time.Second
	titleMaxInputLen  = 500
	titleMaxRuneCount = 50
)

// titleSystemPrompt asks for a short, presentable conversation title.
const titleSystemPrompt = "Generate a creative and smart title (max 3 words) for a conversation. Make it interesting and memorable without being too funny. Keep it balanced and professional. Return only the title, nothing else."

// TitleGenerator generates meaningful titles for conversations.
type TitleGenerator struct {
	llm   llm.Service
	model string
}

// NewTitleGenerator creates a new title generator instance.
func NewTitleGenerator(svc llm.Service, model string) *TitleGenerator {
	return &TitleGenerator{llm: svc, model: model}
}

// Generate generates a title from the first user message of a conversation.
func (tg *TitleGenerator) Generate(ctx context.Context, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	if runes := []rune(userMessage); len(runes) > titleMaxInputLen {
		userMessage = string(runes[:titleMaxInputLen]) + "..."
	}

	start := time.Now()
	content, stats, err := tg.llm.Chat(ctx, tg.model, []llm.Message{
		llm.SystemPrompt(titleSystemPrompt),
		llm.UserMessage(userMessage),
	})
	latency := time.Since(start)

	if err != nil {
		slog.Error("title_generation_failed",
			"model", tg.model,
			"error", err,
			"latency_ms", latency.Milliseconds())
		return "", fmt.Errorf("LLM request failed: %w", err)
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(content), `"`))
	if title == "" {
		return "", fmt.Errorf("empty title in response")
	}

	// Truncate to max length (rune-aware for UTF-8)
	runes := []rune(title)
	if len(runes) > titleMaxRuneCount {
		title = string(runes[:titleMaxRuneCount])
	}

	var tokens int
	if stats != nil {
		tokens = stats.TotalTokens
	}
	slog.Debug("title_generation_success",
		"model", tg.model,
		"title", title,
		"latency_ms", latency.Milliseconds(),
		"tokens_total", tokens)

	return title, nil
}

// FallbackTitle derives a deterministic title by truncating the user message
// to 40 characters, marking truncation with an ellipsis.
func FallbackTitle(userMessage string) string {
	trimmed := strings.TrimSpace(userMessage)
	if trimmed == "" {
		return "New Chat"
	}
	runes := []rune(trimmed)
	if len(runes) > 40 {
		return string(runes[:40]) + "..."
	}
	return trimmed
}
