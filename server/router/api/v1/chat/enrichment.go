package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/apsa-ai/nexus/ai"
	"github.com/apsa-ai/nexus/store"
)

const titleGenerationTimeout = 30 * time.Second

// generateTitleAsync produces a smart title for a conversation's first turn.
// It runs detached from the request: the parent context's cancellation is
// stripped so a client disconnect does not abort the call, and any panic is
// contained here.
func (o *Orchestrator) generateTitleAsync(parent context.Context, conversationID int32, userMessage string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("title generation panicked", "conversation_id", conversationID, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), titleGenerationTimeout)
	defer cancel()

	if err := o.titleSem.Acquire(ctx, 1); err != nil {
		slog.Warn("title generation skipped, semaphore wait timed out", "conversation_id", conversationID, "error", err)
		return
	}
	defer o.titleSem.Release(1)

	// Re-check under the fresh context: a concurrent turn or a manual
	// rename may have settled the title already.
	conversation, err := o.store.GetConversation(ctx, &store.FindConversation{ID: &conversationID})
	if err != nil {
		slog.Warn("title generation skipped, failed to load conversation", "conversation_id", conversationID, "error", err)
		return
	}
	if conversation == nil || conversation.TitleSource != store.TitleSourceDefault {
		return
	}

	title, err := o.titles.Generate(ctx, userMessage)
	if err != nil {
		o.metrics.IncEnrichmentError("title")
		title = ai.FallbackTitle(userMessage)
	}

	titleSource := store.TitleSourceAuto
	now := time.Now().Unix()
	if _, err := o.store.UpdateConversation(ctx, &store.UpdateConversation{
		ID:          conversationID,
		Title:       &title,
		TitleSource: &titleSource,
		UpdatedTs:   &now,
	}); err != nil {
		slog.Warn("failed to update conversation title", "conversation_id", conversationID, "error", err)
	}
}
