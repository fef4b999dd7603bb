package chat

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/apsa-ai/nexus/ai"
	"github.com/apsa-ai/nexus/ai/llm"
	"github.com/apsa-ai/nexus/internal/metrics"
	"github.com/apsa-ai/nexus/store"
)

const (
	// searchQueryEchoLen caps the query text echoed in the first search
	// status event.
	searchQueryEchoLen = 100

	// fetchingStatusDelay is how long after dispatch the generic
	// "fetching" status is pushed.
	fetchingStatusDelay = 500 * time.Millisecond

	// maxConcurrentTitleGenerations caps detached title calls across all
	// in-flight turns.
	maxConcurrentTitleGenerations = 4
)

// TurnRequest is one submitted chat turn.
type TurnRequest struct {
	Conversation     *store.Conversation // nil when the conversation does not exist
	User             *store.User         // nil for anonymous callers
	Content          string
	Mode             Mode
	WebSearchEnabled bool
	Attachments      []Attachment
}

// Orchestrator runs a full chat turn: prompt composition, attachment
// resolution, dispatch with failover, stream relay, and post-turn
// enrichment.
type Orchestrator struct {
	store       *store.Store
	llm         llm.Service
	fetcher     ObjectFetcher
	dispatcher  *Dispatcher
	models      ModelRoster
	titles      *ai.TitleGenerator
	suggestions *ai.SuggestionGenerator
	metrics     *metrics.Metrics
	titleSem    *semaphore.Weighted
}

func NewOrchestrator(st *store.Store, svc llm.Service, fetcher ObjectFetcher, models ModelRoster, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		store:       st,
		llm:         svc,
		fetcher:     fetcher,
		dispatcher:  NewDispatcher(svc),
		models:      models,
		titles:      ai.NewTitleGenerator(svc, models.Aux),
		suggestions: ai.NewSuggestionGenerator(svc, models.Aux),
		metrics:     m,
		titleSem:    semaphore.NewWeighted(maxConcurrentTitleGenerations),
	}
}

// Run executes one turn against the given relay. Returning an error means
// the turn terminated with an {error} event; recoverable failures inside the
// turn are logged and absorbed.
func (o *Orchestrator) Run(ctx context.Context, req *TurnRequest, relay *Relay) error {
	start := time.Now()

	// Persist only for an authenticated caller who owns the conversation.
	// Anonymous turns are answered but never stored.
	shouldSave := req.User != nil && req.Conversation != nil &&
		req.Conversation.CreatorID != nil && *req.Conversation.CreatorID == req.User.ID

	if shouldSave {
		if _, err := o.store.CreateMessage(ctx, &store.Message{
			ConversationID: req.Conversation.ID,
			Role:           store.RoleUser,
			Content:        req.Content,
			CreatedTs:      time.Now().Unix(),
		}); err != nil {
			slog.Error("failed to persist user message", "conversation_id", req.Conversation.ID, "error", err)
		}
	}

	var history []*store.Message
	if shouldSave {
		var err error
		history, err = o.store.ListMessages(ctx, &store.FindMessage{ConversationID: &req.Conversation.ID})
		if err != nil {
			slog.Error("failed to load conversation history", "conversation_id", req.Conversation.ID, "error", err)
			history = nil
		}
	}

	training, err := o.store.ListTrainingInstructions(ctx)
	if err != nil {
		slog.Error("failed to load training instructions", "error", err)
		training = nil
	}

	hasMedia := len(req.Attachments) > 0
	// Media takes precedence: web search is forced off for multimodal turns.
	webSearchActive := req.WebSearchEnabled && !hasMedia

	var parts []llm.ContentPart
	if hasMedia {
		parts = ResolveAttachments(ctx, o.fetcher, req.Content, req.Attachments)
	}

	messages := Compose(ComposeInput{
		Mode:             req.Mode,
		WebSearchEnabled: webSearchActive,
		Training:         training,
		History:          history,
		Content:          req.Content,
		Parts:            parts,
		Now:              time.Now(),
	})

	relay.MarkDispatched()

	if webSearchActive {
		query := req.Content
		if runes := []rune(query); len(runes) > searchQueryEchoLen {
			query = string(runes[:searchQueryEchoLen])
		}
		if err := relay.WriteSearchStatus("🔍 Searching: " + query); err != nil {
			return err
		}
		timer := time.AfterFunc(fetchingStatusDelay, func() {
			// Best effort; the stream may have advanced past dispatch.
			_ = relay.WriteSearchStatus("📡 Fetching latest information...")
		})
		defer timer.Stop()
	}

	attempts := o.models.Attempts(hasMedia, webSearchActive, req.Attachments)

	firstChunk := true
	result, err := o.dispatcher.Run(ctx, attempts, messages, func(chunk string) error {
		if firstChunk {
			firstChunk = false
			if webSearchActive {
				if err := relay.WriteSearchStatus("✅ Found results!"); err != nil {
					return err
				}
			}
		}
		return relay.WriteContent(chunk)
	})
	if result != nil && result.AttemptsUsed > 1 {
		o.metrics.IncFailover()
	}
	if err != nil {
		o.metrics.IncStreamError()
		o.metrics.ObserveTurn(o.models.Fallback, time.Since(start), "error")
		slog.Error("chat turn failed", "error", err)
		if werr := relay.WriteError("Failed to send message"); werr != nil {
			slog.Warn("failed to write error event", "error", werr)
		}
		return err
	}

	relay.MarkEnriching()

	if shouldSave {
		if _, err := o.store.CreateMessage(ctx, &store.Message{
			ConversationID: req.Conversation.ID,
			Role:           store.RoleAssistant,
			Content:        result.Content,
			CreatedTs:      time.Now().Unix(),
		}); err != nil {
			slog.Error("failed to persist assistant message", "conversation_id", req.Conversation.ID, "error", err)
		}
	}

	suggestions := o.suggestions.Generate(ctx, req.Content, result.Content)

	// Title generation is fire-and-forget: the done event does not wait
	// for it.
	if shouldSave && req.Conversation.TitleSource == store.TitleSourceDefault {
		go o.generateTitleAsync(ctx, req.Conversation.ID, req.Content)
	}

	if err := relay.WriteDone(suggestions); err != nil {
		return err
	}

	o.metrics.ObserveTurn(result.Model, time.Since(start), "ok")
	return nil
}
