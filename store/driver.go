package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for database driver.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error)
	DeleteConversation(ctx context.Context, delete *DeleteConversation) error

	CreateMessage(ctx context.Context, create *Message) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
	DeleteMessage(ctx context.Context, delete *DeleteMessage) error

	CreateTrainingInstruction(ctx context.Context, create *TrainingInstruction) (*TrainingInstruction, error)
	ListTrainingInstructions(ctx context.Context) ([]*TrainingInstruction, error)
	DeleteTrainingInstruction(ctx context.Context, delete *DeleteTrainingInstruction) error

	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)
}
