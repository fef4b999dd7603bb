package v1

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/apsa-ai/nexus/store"
)

type conversationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedTs int64  `json:"createdTs"`
	UpdatedTs int64  `json:"updatedTs"`
}

type messageResponse struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedTs int64  `json:"createdTs"`
}

func convertConversation(conversation *store.Conversation) conversationResponse {
	return conversationResponse{
		ID:        conversation.UID,
		Title:     conversation.Title,
		CreatedTs: conversation.CreatedTs,
		UpdatedTs: conversation.UpdatedTs,
	}
}

// findConversationByUID loads the conversation addressed by the :id route
// param, or nil when absent.
func (s *APIV1Service) findConversationByUID(c echo.Context) (*store.Conversation, error) {
	uid := c.Param("id")
	return s.Store.GetConversation(c.Request().Context(), &store.FindConversation{UID: &uid})
}

// canAccess reports whether the caller may touch the conversation. An owned
// conversation is off limits to any caller other than its owner.
func canAccess(conversation *store.Conversation, user *store.User) bool {
	if user == nil || conversation.CreatorID == nil {
		return true
	}
	return *conversation.CreatorID == user.ID
}

// ListConversations returns the caller's conversations, newest first.
// Anonymous callers get an empty list.
func (s *APIV1Service) ListConversations(c echo.Context) error {
	user := s.currentUser(c)
	if user == nil {
		return c.JSON(http.StatusOK, []conversationResponse{})
	}

	list, err := s.Store.ListConversations(c.Request().Context(), &store.FindConversation{CreatorID: &user.ID})
	if err != nil {
		slog.Error("failed to list conversations", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch conversations"})
	}

	response := make([]conversationResponse, 0, len(list))
	for _, conversation := range list {
		response = append(response, convertConversation(conversation))
	}
	return c.JSON(http.StatusOK, response)
}

type createConversationRequest struct {
	Title string `json:"title"`
}

// CreateConversation creates a conversation. Authenticated callers own the
// new conversation; anonymous conversations have no owner and are never
// persisted past their rows.
func (s *APIV1Service) CreateConversation(c echo.Context) error {
	ctx := c.Request().Context()
	user := s.currentUser(c)

	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	title := strings.TrimSpace(req.Title)
	titleSource := store.TitleSourceUser
	if title == "" {
		title = "New Chat"
		titleSource = store.TitleSourceDefault
	}

	create := &store.Conversation{
		UID:         shortuuid.New(),
		Title:       title,
		TitleSource: titleSource,
		CreatedTs:   time.Now().Unix(),
		UpdatedTs:   time.Now().Unix(),
	}
	if user != nil {
		create.CreatorID = &user.ID
	}

	conversation, err := s.Store.CreateConversation(ctx, create)
	if err != nil {
		slog.Error("failed to create conversation", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create conversation"})
	}

	return c.JSON(http.StatusCreated, convertConversation(conversation))
}

// GetConversation returns a conversation and its messages.
func (s *APIV1Service) GetConversation(c echo.Context) error {
	ctx := c.Request().Context()

	conversation, err := s.findConversationByUID(c)
	if err != nil {
		slog.Error("failed to load conversation", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch conversation"})
	}
	if conversation == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Conversation not found"})
	}
	if !canAccess(conversation, s.currentUser(c)) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Access denied"})
	}

	messages, err := s.Store.ListMessages(ctx, &store.FindMessage{ConversationID: &conversation.ID})
	if err != nil {
		slog.Error("failed to list messages", "conversation_id", conversation.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch conversation"})
	}

	messageList := make([]messageResponse, 0, len(messages))
	for _, message := range messages {
		messageList = append(messageList, messageResponse{
			ID:        message.ID,
			Role:      string(message.Role),
			Content:   message.Content,
			CreatedTs: message.CreatedTs,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"id":        conversation.UID,
		"title":     conversation.Title,
		"createdTs": conversation.CreatedTs,
		"updatedTs": conversation.UpdatedTs,
		"messages":  messageList,
	})
}

type updateConversationRequest struct {
	Title string `json:"title"`
}

// UpdateConversation renames a conversation. A manual rename pins the title
// so automatic generation never overwrites it.
func (s *APIV1Service) UpdateConversation(c echo.Context) error {
	ctx := c.Request().Context()

	conversation, err := s.findConversationByUID(c)
	if err != nil {
		slog.Error("failed to load conversation", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update conversation"})
	}
	if conversation == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Conversation not found"})
	}
	if !canAccess(conversation, s.currentUser(c)) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Access denied"})
	}

	var req updateConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Title is required"})
	}

	titleSource := store.TitleSourceUser
	now := time.Now().Unix()
	if _, err := s.Store.UpdateConversation(ctx, &store.UpdateConversation{
		ID:          conversation.ID,
		Title:       &title,
		TitleSource: &titleSource,
		UpdatedTs:   &now,
	}); err != nil {
		slog.Error("failed to update conversation", "conversation_id", conversation.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update conversation"})
	}

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// DeleteConversation removes a conversation and its messages.
func (s *APIV1Service) DeleteConversation(c echo.Context) error {
	ctx := c.Request().Context()

	conversation, err := s.findConversationByUID(c)
	if err != nil {
		slog.Error("failed to load conversation", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete conversation"})
	}
	if conversation == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Conversation not found"})
	}
	if !canAccess(conversation, s.currentUser(c)) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Access denied"})
	}

	if err := s.Store.DeleteConversation(ctx, &store.DeleteConversation{ID: conversation.ID}); err != nil {
		slog.Error("failed to delete conversation", "conversation_id", conversation.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete conversation"})
	}

	return c.NoContent(http.StatusNoContent)
}

type generateTitleRequest struct {
	UserMessage string `json:"userMessage"`
}

// GenerateTitle produces a smart title for a conversation on demand.
func (s *APIV1Service) GenerateTitle(c echo.Context) error {
	ctx := c.Request().Context()

	conversation, err := s.findConversationByUID(c)
	if err != nil {
		slog.Error("failed to load conversation", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate title"})
	}
	if conversation == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Conversation not found"})
	}
	if !canAccess(conversation, s.currentUser(c)) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Access denied"})
	}

	var req generateTitleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "userMessage is required"})
	}
	if s.Titles == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "AI service is not configured"})
	}

	title, err := s.Titles.Generate(ctx, req.UserMessage)
	if err != nil {
		slog.Error("failed to generate title", "conversation_id", conversation.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate title"})
	}

	titleSource := store.TitleSourceAuto
	now := time.Now().Unix()
	if _, err := s.Store.UpdateConversation(ctx, &store.UpdateConversation{
		ID:          conversation.ID,
		Title:       &title,
		TitleSource: &titleSource,
		UpdatedTs:   &now,
	}); err != nil {
		slog.Error("failed to store generated title", "conversation_id", conversation.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate title"})
	}

	return c.JSON(http.StatusOK, map[string]string{"title": title})
}
