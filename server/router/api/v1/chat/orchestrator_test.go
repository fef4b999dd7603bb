package chat

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apsa-ai/nexus/internal/metrics"
	"github.com/apsa-ai/nexus/internal/profile"
	"github.com/apsa-ai/nexus/store"
)

// memDriver is an in-memory store.Driver for orchestrator tests.
type memDriver struct {
	mu            sync.Mutex
	conversations []*store.Conversation
	messages      []*store.Message
	training      []*store.TrainingInstruction
	nextMessageID int64
}

func (d *memDriver) GetDB() *sql.DB                  { return nil }
func (d *memDriver) Close() error                    { return nil }
func (d *memDriver) Migrate(_ context.Context) error { return nil }

func (d *memDriver) CreateConversation(_ context.Context, create *store.Conversation) (*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conversations = append(d.conversations, create)
	return create, nil
}

func (d *memDriver) ListConversations(_ context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
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

func (d *memDriver) UpdateConversation(_ context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conversations {
		if c.ID == update.ID {
			if update.Title != nil {
				c.Title = *update.Title
			}
			if update.TitleSource != nil {
				c.TitleSource = *update.TitleSource
			}
			if update.UpdatedTs != nil {
				c.UpdatedTs = *update.UpdatedTs
			}
			return c, nil
		}
	}
	return nil, errors.New("conversation not found")
}

func (d *memDriver) DeleteConversation(_ context.Context, _ *store.DeleteConversation) error {
	return nil
}

func (d *memDriver) CreateMessage(_ context.Context, create *store.Message) (*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextMessageID++
	create.ID = d.nextMessageID
	d.messages = append(d.messages, create)
	return create, nil
}

func (d *memDriver) ListMessages(_ context.Context, find *store.FindMessage) ([]*store.Message, error) {
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

func (d *memDriver) DeleteMessage(_ context.Context, _ *store.DeleteMessage) error { return nil }

func (d *memDriver) CreateTrainingInstruction(_ context.Context, create *store.TrainingInstruction) (*store.TrainingInstruction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.training = append(d.training, create)
	return create, nil
}

func (d *memDriver) ListTrainingInstructions(_ context.Context) ([]*store.TrainingInstruction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*store.TrainingInstruction{}, d.training...), nil
}

func (d *memDriver) DeleteTrainingInstruction(_ context.Context, _ *store.DeleteTrainingInstruction) error {
	return nil
}

func (d *memDriver) CreateUser(_ context.Context, create *store.User) (*store.User, error) {
	return create, nil
}

func (d *memDriver) ListUsers(_ context.Context, _ *store.FindUser) ([]*store.User, error) {
	return nil, nil
}

func (d *memDriver) messageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

func (d *memDriver) conversationTitle(id int32) (string, store.TitleSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conversations {
		if c.ID == id {
			return c.Title, c.TitleSource
		}
	}
	return "", ""
}

func newTestOrchestrator(t *testing.T, mock *mockLLM, driver *memDriver) *Orchestrator {
	t.Helper()
	st := store.New(driver, &profile.Profile{Mode: "dev"})
	return NewOrchestrator(st, mock, &mockFetcher{}, testRoster, metrics.New())
}

func TestOrchestratorAnonymousTurn(t *testing.T) {
	driver := &memDriver{}
	mock := &mockLLM{
		streams:  map[string]mockStream{"text-model": {chunks: []string{"hi ", "there"}}},
		jsonResp: `{"suggestions": ["Tell me more"]}`,
	}
	o := newTestOrchestrator(t, mock, driver)

	var buf bytes.Buffer
	relay := NewRelay(&buf)
	conversation := &store.Conversation{ID: 1, UID: "abc", TitleSource: store.TitleSourceDefault}
	driver.conversations = []*store.Conversation{conversation}

	err := o.Run(context.Background(), &TurnRequest{
		Conversation: conversation,
		User:         nil,
		Content:      "hello",
	}, relay)

	require.NoError(t, err)
	require.Equal(t, StateDone, relay.State())

	events := decodeEvents(t, buf.String())
	require.Equal(t, "hi ", events[0]["content"])
	require.Equal(t, "there", events[1]["content"])
	require.Equal(t, true, events[2]["done"])
	require.Equal(t, []any{"Tell me more"}, events[2]["suggestions"])

	// Anonymous turns leave no rows behind.
	require.Zero(t, driver.messageCount())
}

func TestOrchestratorOwnedTurnPersistsMessages(t *testing.T) {
	driver := &memDriver{}
	mock := &mockLLM{
		streams:  map[string]mockStream{"text-model": {chunks: []string{"answer"}}},
		jsonResp: `{"suggestions": []}`,
		chatResp: "Clever Title",
	}
	o := newTestOrchestrator(t, mock, driver)

	creatorID := int32(7)
	conversation := &store.Conversation{ID: 1, UID: "abc", CreatorID: &creatorID, TitleSource: store.TitleSourceDefault}
	driver.conversations = []*store.Conversation{conversation}

	var buf bytes.Buffer
	err := o.Run(context.Background(), &TurnRequest{
		Conversation: conversation,
		User:         &store.User{ID: 7, Username: "alice"},
		Content:      "hello",
	}, NewRelay(&buf))

	require.NoError(t, err)
	require.Equal(t, 2, driver.messageCount())

	messages, _ := driver.ListMessages(context.Background(), &store.FindMessage{ConversationID: &conversation.ID})
	require.Equal(t, store.RoleUser, messages[0].Role)
	require.Equal(t, "hello", messages[0].Content)
	require.Equal(t, store.RoleAssistant, messages[1].Role)
	require.Equal(t, "answer", messages[1].Content)

	// Title generation is detached; wait for it to land.
	require.Eventually(t, func() bool {
		title, source := driver.conversationTitle(1)
		return title == "Clever Title" && source == store.TitleSourceAuto
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOrchestratorNonOwnerDoesNotPersist(t *testing.T) {
	driver := &memDriver{}
	mock := &mockLLM{
		streams:  map[string]mockStream{"text-model": {chunks: []string{"answer"}}},
		jsonResp: `{"suggestions": []}`,
	}
	o := newTestOrchestrator(t, mock, driver)

	creatorID := int32(7)
	conversation := &store.Conversation{ID: 1, UID: "abc", CreatorID: &creatorID, TitleSource: store.TitleSourceDefault}
	driver.conversations = []*store.Conversation{conversation}

	var buf bytes.Buffer
	err := o.Run(context.Background(), &TurnRequest{
		Conversation: conversation,
		User:         &store.User{ID: 9, Username: "mallory"},
		Content:      "hello",
	}, NewRelay(&buf))

	require.NoError(t, err)
	require.Zero(t, driver.messageCount())
}

func TestOrchestratorWebSearchStatusOrdering(t *testing.T) {
	driver := &memDriver{}
	mock := &mockLLM{
		streams:  map[string]mockStream{"search-model": {chunks: []string{"the news"}}},
		jsonResp: `{"suggestions": []}`,
	}
	o := newTestOrchestrator(t, mock, driver)

	var buf bytes.Buffer
	err := o.Run(context.Background(), &TurnRequest{
		Content:          "latest headlines",
		WebSearchEnabled: true,
	}, NewRelay(&buf))

	require.NoError(t, err)
	events := decodeEvents(t, buf.String())

	require.Equal(t, "🔍 Searching: latest headlines", events[0]["searchStatus"])
	require.Equal(t, "✅ Found results!", events[1]["searchStatus"])
	require.Equal(t, "the news", events[2]["content"])
	require.Equal(t, true, events[3]["done"])
	require.Equal(t, []string{"search-model"}, mock.streamCalls)
}

func TestOrchestratorSearchQueryEchoKeepsRunesWhole(t *testing.T) {
	driver := &memDriver{}
	mock := &mockLLM{
		streams:  map[string]mockStream{"search-model": {chunks: []string{"ok"}}},
		jsonResp: `{"suggestions": []}`,
	}
	o := newTestOrchestrator(t, mock, driver)

	var buf bytes.Buffer
	err := o.Run(context.Background(), &TurnRequest{
		Content:          strings.Repeat("আ", 150),
		WebSearchEnabled: true,
	}, NewRelay(&buf))

	require.NoError(t, err)
	events := decodeEvents(t, buf.String())
	require.Equal(t, "🔍 Searching: "+strings.Repeat("আ", 100), events[0]["searchStatus"])
}

func TestOrchestratorMediaForcesWebSearchOff(t *testing.T) {
	driver := &memDriver{}
	mock := &mockLLM{
		streams:  map[string]mockStream{"vision-model": {chunks: []string{"a cat"}}},
		jsonResp: `{"suggestions": []}`,
	}
	o := newTestOrchestrator(t, mock, driver)

	var buf bytes.Buffer
	err := o.Run(context.Background(), &TurnRequest{
		Content:          "what is this?",
		WebSearchEnabled: true,
		Attachments:      []Attachment{{Name: "cat.png", MimeType: "image/png", URL: "missing"}},
	}, NewRelay(&buf))

	require.NoError(t, err)
	events := decodeEvents(t, buf.String())
	for _, event := range events {
		_, hasSearchStatus := event["searchStatus"]
		require.False(t, hasSearchStatus, "media turn must not emit search status")
	}
	require.Equal(t, []string{"vision-model"}, mock.streamCalls)
}

func TestOrchestratorAllModelsFail(t *testing.T) {
	driver := &memDriver{}
	mock := &mockLLM{
		streams: map[string]mockStream{
			"text-model":     {err: errors.New("down")},
			"fallback-model": {err: errors.New("also down")},
		},
	}
	o := newTestOrchestrator(t, mock, driver)

	var buf bytes.Buffer
	relay := NewRelay(&buf)
	err := o.Run(context.Background(), &TurnRequest{Content: "hello"}, relay)

	require.Error(t, err)
	require.Equal(t, StateFailed, relay.State())

	events := decodeEvents(t, buf.String())
	last := events[len(events)-1]
	require.Equal(t, "Failed to send message", last["error"])
}

func TestOrchestratorFailoverStream(t *testing.T) {
	driver := &memDriver{}
	mock := &mockLLM{
		streams: map[string]mockStream{
			"text-model":     {chunks: []string{"half "}, err: errors.New("mid-stream failure")},
			"fallback-model": {chunks: []string{"whole answer"}},
		},
		jsonResp: `{"suggestions": []}`,
	}
	o := newTestOrchestrator(t, mock, driver)

	var buf bytes.Buffer
	relay := NewRelay(&buf)
	err := o.Run(context.Background(), &TurnRequest{Content: "hello"}, relay)

	require.NoError(t, err)
	require.Equal(t, StateDone, relay.State())

	var streamed string
	for _, event := range decodeEvents(t, buf.String()) {
		if content, ok := event["content"].(string); ok {
			streamed += content
		}
	}
	require.Equal(t, "half whole answer", streamed)
}

func TestOrchestratorSuggestionFailureDegrades(t *testing.T) {
	driver := &memDriver{}
	mock := &mockLLM{
		streams: map[string]mockStream{"text-model": {chunks: []string{"ok"}}},
		jsonErr: errors.New("aux model down"),
	}
	o := newTestOrchestrator(t, mock, driver)

	var buf bytes.Buffer
	err := o.Run(context.Background(), &TurnRequest{Content: "hello"}, NewRelay(&buf))

	require.NoError(t, err)
	events := decodeEvents(t, buf.String())
	last := events[len(events)-1]
	require.Equal(t, true, last["done"])
	require.Equal(t, []any{}, last["suggestions"])
}

func TestOrchestratorManualTitleNotOverwritten(t *testing.T) {
	driver := &memDriver{}
	mock := &mockLLM{
		streams:  map[string]mockStream{"text-model": {chunks: []string{"ok"}}},
		jsonResp: `{"suggestions": []}`,
		chatResp: "Should Not Land",
	}
	o := newTestOrchestrator(t, mock, driver)

	creatorID := int32(7)
	conversation := &store.Conversation{ID: 1, UID: "abc", Title: "My Pinned Title", CreatorID: &creatorID, TitleSource: store.TitleSourceUser}
	driver.conversations = []*store.Conversation{conversation}

	var buf bytes.Buffer
	err := o.Run(context.Background(), &TurnRequest{
		Conversation: conversation,
		User:         &store.User{ID: 7},
		Content:      "hello",
	}, NewRelay(&buf))

	require.NoError(t, err)

	// Give any stray goroutine a moment, then confirm the title is intact.
	time.Sleep(50 * time.Millisecond)
	title, source := driver.conversationTitle(1)
	require.Equal(t, "My Pinned Title", title)
	require.Equal(t, store.TitleSourceUser, source)
}
