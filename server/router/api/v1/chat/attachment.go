package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/apsa-ai/nexus/ai/llm"
)

// Attachment is a transient reference to an uploaded object. It is resolved
// to inline content at dispatch time and discarded after the call.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"type"`
	URL      string `json:"url"`
}

// ObjectFetcher fetches a stored object as an inline data URL.
type ObjectFetcher interface {
	FetchAsDataURL(ctx context.Context, locator, mimeType string) (string, error)
}

// ResolveAttachments converts attachment references into multimodal content
// parts. The text content leads, followed by one part per attachment. A
// failed fetch substitutes a textual placeholder instead of aborting the
// turn.
func ResolveAttachments(ctx context.Context, fetcher ObjectFetcher, content string, attachments []Attachment) []llm.ContentPart {
	parts := make([]llm.ContentPart, 0, len(attachments)+1)

	if content != "" {
		parts = append(parts, llm.ContentPart{Type: "text", Text: content})
	}

	for _, a := range attachments {
		if !strings.HasPrefix(a.MimeType, "image/") && !strings.HasPrefix(a.MimeType, "video/") {
			continue
		}

		dataURL, err := fetcher.FetchAsDataURL(ctx, a.URL, a.MimeType)
		if err != nil {
			slog.Warn("failed to resolve attachment", "name", a.Name, "error", err)
			parts = append(parts, llm.ContentPart{
				Type: "text",
				Text: fmt.Sprintf("[Could not load attachment: %s]", a.Name),
			})
			continue
		}

		parts = append(parts, llm.ContentPart{Type: "image_url", ImageURL: dataURL})
	}

	return parts
}
