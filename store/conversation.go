package store

// TitleSource indicates how the conversation title was created.
// - "default": System default ("New Chat" or truncated first message)
// - "auto": AI-generated title based on conversation content
// - "user": User-provided title (manual edit)
type TitleSource string

const (
	TitleSourceDefault TitleSource = "default"
	TitleSourceAuto    TitleSource = "auto"
	TitleSourceUser    TitleSource = "user"
)

type Conversation struct {
	UID         string
	Title       string
	TitleSource TitleSource
	CreatedTs   int64
	UpdatedTs   int64
	ID          int32
	CreatorID   *int32 // nil for anonymous conversations
}

type FindConversation struct {
	ID        *int32
	UID       *string
	CreatorID *int32
}

type UpdateConversation struct {
	Title       *string
	TitleSource *TitleSource
	UpdatedTs   *int64
	ID          int32
}

type DeleteConversation struct {
	ID int32
}
