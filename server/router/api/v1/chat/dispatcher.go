package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/apsa-ai/nexus/ai/llm"
)

// ModelRoster names the models used for the different request shapes.
type ModelRoster struct {
	Default    string // lightweight text model
	Multimodal string // used when media attachments are present
	Search     string // used when web search is requested
	Fallback   string // substitute after a primary failure
	Aux        string // suggestions and titles
}

// Attempt is one entry of the ordered provider attempt list. Extra messages
// are appended to the composed list for this attempt only.
type Attempt struct {
	Model string
	Extra []llm.Message
}

// SelectModel picks the primary model for a turn. Media takes precedence
// over web search: when media is present the multimodal model is used and
// web search is forced off.
func (r ModelRoster) SelectModel(hasMedia, webSearchEnabled bool) (model string, webSearchActive bool) {
	switch {
	case hasMedia:
		return r.Multimodal, false
	case webSearchEnabled:
		return r.Search, true
	default:
		return r.Default, false
	}
}

// Attempts builds the ordered attempt list for a turn: the primary model
// followed by the fallback. When media is present the fallback attempt
// carries a note that multimodal input could not be processed.
func (r ModelRoster) Attempts(hasMedia, webSearchEnabled bool, attachments []Attachment) []Attempt {
	primary, _ := r.SelectModel(hasMedia, webSearchEnabled)

	attempts := []Attempt{{Model: primary}}

	fallback := Attempt{Model: r.Fallback}
	if hasMedia {
		notes := make([]string, 0, len(attachments))
		for _, a := range attachments {
			notes = append(notes, fmt.Sprintf("[User attached: %s (%s)]", a.Name, a.MimeType))
		}
		fallback.Extra = []llm.Message{{
			Role:    "user",
			Content: strings.Join(notes, "\n") + "\n\nNote: Multimodal requires credits. Using text-based fallback.",
		}}
	}
	attempts = append(attempts, fallback)

	return attempts
}

// Dispatcher issues streaming completion calls, trying each attempt in order
// until one succeeds or the list is exhausted.
type Dispatcher struct {
	llm llm.Service
}

func NewDispatcher(svc llm.Service) *Dispatcher {
	return &Dispatcher{llm: svc}
}

// RunResult reports how a dispatched turn completed.
type RunResult struct {
	Content      string // full concatenated response, across all attempts
	Model        string // model of the attempt that completed the stream
	AttemptsUsed int
	Stats        *llm.CallStats
}

// Run streams each attempt in order, forwarding chunks to onChunk as they
// arrive. A failed attempt's already-forwarded chunks are not retracted; the
// next attempt's output is appended after them. The error from the final
// attempt is returned when all attempts fail. An onChunk error aborts the
// turn immediately (the client connection is gone).
func (d *Dispatcher) Run(ctx context.Context, attempts []Attempt, messages []llm.Message, onChunk func(string) error) (*RunResult, error) {
	result := &RunResult{}
	var lastErr error

	for i, attempt := range attempts {
		msgs := messages
		if len(attempt.Extra) > 0 {
			msgs = append(append([]llm.Message{}, messages...), attempt.Extra...)
		}

		if i > 0 {
			slog.Warn("primary model failed, attempting fallback",
				"fallback_model", attempt.Model,
				"error", lastErr)
		}

		contentChan, statsChan, errChan := d.llm.ChatStream(ctx, attempt.Model, msgs)

		for chunk := range contentChan {
			result.Content += chunk
			if err := onChunk(chunk); err != nil {
				return result, fmt.Errorf("failed to forward chunk: %w", err)
			}
		}

		// The stream goroutine closes errChan on exit; a zero read means
		// the stream completed cleanly.
		if err := <-errChan; err != nil {
			lastErr = err
			continue
		}

		result.Model = attempt.Model
		result.AttemptsUsed = i + 1
		result.Stats = <-statsChan
		return result, nil
	}

	result.AttemptsUsed = len(attempts)
	return result, fmt.Errorf("all model attempts failed: %w", lastErr)
}
