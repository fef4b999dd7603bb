package store

// Role is the author role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Content        string
	Role           Role
	CreatedTs      int64
	ID             int64
	ConversationID int32
}

// FindMessage lists messages for a conversation in ascending creation order.
type FindMessage struct {
	ConversationID *int32
}

type DeleteMessage struct {
	ID int64
}
