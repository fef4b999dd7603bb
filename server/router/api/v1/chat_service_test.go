package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/apsa-ai/nexus/ai/llm"
	"github.com/apsa-ai/nexus/internal/metrics"
	"github.com/apsa-ai/nexus/internal/profile"
	"github.com/apsa-ai/nexus/server/auth"
	"github.com/apsa-ai/nexus/server/router/api/v1/chat"
	"github.com/apsa-ai/nexus/store"
)

// chatTestDriver is an in-memory store.Driver for handler tests.
type chatTestDriver struct {
	mu            sync.Mutex
	conversations []*store.Conversation
	messages      []*store.Message
	users         []*store.User
}

func (d *chatTestDriver) GetDB() *sql.DB                  { return nil }
func (d *chatTestDriver) Close() error                    { return nil }
func (d *chatTestDriver) Migrate(_ context.Context) error { return nil }

func (d *chatTestDriver) CreateConversation(_ context.Context, create *store.Conversation) (*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conversations = append(d.conversations, create)
	return create, nil
}

func (d *chatTestDriver) ListConversations(_ context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var list []*store.Conversation
	for _, c := range d.conversations {
		if find.ID != nil && c.ID != *find.ID {
			continue
		}
		if find.UID != nil && c.UID != *find.UID {
			continue
		}
		list = append(list, c)
	}
	return list, nil
}

func (d *chatTestDriver) UpdateConversation(_ context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conversations {
		if c.ID == update.ID {
			return c, nil
		}
	}
	return nil, nil
}

func (d *chatTestDriver) DeleteConversation(_ context.Context, _ *store.DeleteConversation) error {
	return nil
}

func (d *chatTestDriver) CreateMessage(_ context.Context, create *store.Message) (*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, create)
	return create, nil
}

func (d *chatTestDriver) ListMessages(_ context.Context, find *store.FindMessage) ([]*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var list []*store.Message
	for _, m := range d.messages {
		if find.ConversationID != nil && m.ConversationID != *find.ConversationID {
			continue
		}
		list = append(list, m)
	}
	return list, nil
}

func (d *chatTestDriver) DeleteMessage(_ context.Context, _ *store.DeleteMessage) error { return nil }

func (d *chatTestDriver) CreateTrainingInstruction(_ context.Context, create *store.TrainingInstruction) (*store.TrainingInstruction, error) {
	return create, nil
}

func (d *chatTestDriver) ListTrainingInstructions(_ context.Context) ([]*store.TrainingInstruction, error) {
	return nil, nil
}

func (d *chatTestDriver) DeleteTrainingInstruction(_ context.Context, _ *store.DeleteTrainingInstruction) error {
	return nil
}

func (d *chatTestDriver) CreateUser(_ context.Context, create *store.User) (*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = append(d.users, create)
	return create, nil
}

func (d *chatTestDriver) ListUsers(_ context.Context, find *store.FindUser) ([]*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var list []*store.User
	for _, u := range d.users {
		if find.ID != nil && u.ID != *find.ID {
			continue
		}
		if find.Username != nil && u.Username != *find.Username {
			continue
		}
		list = append(list, u)
	}
	return list, nil
}

func (d *chatTestDriver) messageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

// scriptedLLM streams a fixed reply for any model.
type scriptedLLM struct {
	chunks []string
}

func (s *scriptedLLM) Chat(_ context.Context, _ string, _ []llm.Message) (string, *llm.CallStats, error) {
	return "Reply", &llm.CallStats{}, nil
}

func (s *scriptedLLM) ChatStream(_ context.Context, _ string, _ []llm.Message) (<-chan string, <-chan *llm.CallStats, <-chan error) {
	contentChan := make(chan string, len(s.chunks))
	statsChan := make(chan *llm.CallStats, 1)
	errChan := make(chan error, 1)
	for _, chunk := range s.chunks {
		contentChan <- chunk
	}
	close(contentChan)
	statsChan <- &llm.CallStats{}
	close(statsChan)
	close(errChan)
	return contentChan, statsChan, errChan
}

func (s *scriptedLLM) ChatJSON(_ context.Context, _ string, _ []llm.Message, _ int) (string, *llm.CallStats, error) {
	return `{"suggestions": []}`, &llm.CallStats{}, nil
}

func (s *scriptedLLM) Warmup(_ context.Context, _ string) {}

type noopFetcher struct{}

func (noopFetcher) FetchAsDataURL(_ context.Context, locator, _ string) (string, error) {
	return "data:image/png;base64,", nil
}

const chatTestSecret = "test-secret"

func newChatTestService(t *testing.T, driver *chatTestDriver) *APIV1Service {
	t.Helper()
	st := store.New(driver, &profile.Profile{Mode: "dev"})
	roster := chat.ModelRoster{
		Default:    "text-model",
		Multimodal: "vision-model",
		Search:     "search-model",
		Fallback:   "fallback-model",
		Aux:        "aux-model",
	}
	svc := &scriptedLLM{chunks: []string{"hi ", "there"}}
	return &APIV1Service{
		Profile:       &profile.Profile{Mode: "dev"},
		Store:         st,
		Metrics:       metrics.New(),
		Orchestrator:  chat.NewOrchestrator(st, svc, noopFetcher{}, roster, metrics.New()),
		authenticator: auth.NewAuthenticator(st, chatTestSecret),
	}
}

func postChatMessage(t *testing.T, s *APIV1Service, uid, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/"+uid+"/messages",
		strings.NewReader(`{"content":"hello"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uid)
	require.NoError(t, s.SendMessage(c))
	return rec
}

// decodeStreamEvents parses "data: {json}\n\n" frames into raw payloads.
func decodeStreamEvents(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, frame := range strings.Split(raw, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), "unexpected frame %q", frame)
		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &payload))
		events = append(events, payload)
	}
	return events
}

func TestSendMessageWithoutLLMConfigured(t *testing.T) {
	s := &APIV1Service{Profile: &profile.Profile{}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/conversations/abc/messages",
		strings.NewReader(`{"content":"hello"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.SendMessage(c))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "AI service is not configured")
}

func TestSendMessageStreamsWithoutSaving(t *testing.T) {
	owner := int32(7)

	t.Run("authenticated non-owner", func(t *testing.T) {
		driver := &chatTestDriver{
			conversations: []*store.Conversation{{ID: 1, UID: "abc", CreatorID: &owner}},
			users:         []*store.User{{ID: 9, Username: "casey"}},
		}
		s := newChatTestService(t, driver)

		token, err := auth.GenerateAccessToken("casey", 9, time.Now().Add(time.Hour), []byte(chatTestSecret))
		require.NoError(t, err)

		rec := postChatMessage(t, s, "abc", "Bearer "+token)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

		events := decodeStreamEvents(t, rec.Body.String())
		require.Equal(t, "hi ", events[0]["content"])
		require.Equal(t, "there", events[1]["content"])
		require.Equal(t, true, events[len(events)-1]["done"])
		require.Zero(t, driver.messageCount(), "foreign conversation must not be written to")
	})

	t.Run("unknown conversation", func(t *testing.T) {
		driver := &chatTestDriver{}
		s := newChatTestService(t, driver)

		rec := postChatMessage(t, s, "missing", "")
		require.Equal(t, http.StatusOK, rec.Code)

		events := decodeStreamEvents(t, rec.Body.String())
		require.Equal(t, true, events[len(events)-1]["done"])
		require.Zero(t, driver.messageCount())
	})
}

func TestCanAccess(t *testing.T) {
	owner := int32(7)
	owned := &store.Conversation{CreatorID: &owner}
	orphan := &store.Conversation{}

	require.True(t, canAccess(orphan, nil))
	require.True(t, canAccess(orphan, &store.User{ID: 9}))
	require.True(t, canAccess(owned, nil))
	require.True(t, canAccess(owned, &store.User{ID: 7}))
	require.False(t, canAccess(owned, &store.User{ID: 9}))
}
