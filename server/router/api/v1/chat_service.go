package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/apsa-ai/nexus/server/router/api/v1/chat"
)

type sendMessageRequest struct {
	Content          string            `json:"content"`
	Mode             string            `json:"mode"`
	WebSearchEnabled bool              `json:"webSearchEnabled"`
	Attachments      []chat.Attachment `json:"attachments"`
}

// SendMessage runs one streaming chat turn. The response is a server-sent
// event stream; configuration problems are reported before streaming starts,
// everything after the first event arrives as stream events.
func (s *APIV1Service) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()

	if s.Orchestrator == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "AI service is not configured"})
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Content) == "" && len(req.Attachments) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Message content is required"})
	}

	// A missing or foreign conversation still gets a full streamed answer;
	// the orchestrator skips persistence for any turn the caller does not
	// own. Only a store failure stops the turn.
	conversation, err := s.findConversationByUID(c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load conversation"})
	}
	user := s.currentUser(c)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	relay := chat.NewRelay(resp)
	turn := &chat.TurnRequest{
		Conversation:     conversation,
		User:             user,
		Content:          req.Content,
		Mode:             chat.ParseMode(req.Mode),
		WebSearchEnabled: req.WebSearchEnabled,
		Attachments:      req.Attachments,
	}

	// The relay has already reported any turn failure as an {error} event;
	// nothing useful can be added to the response at this point.
	_ = s.Orchestrator.Run(ctx, turn, relay)
	return nil
}
