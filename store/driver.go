package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates every table the store needs if it does not exist.
	Migrate(ctx context.Context) error

	// Conversation model related methods.
	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error)
	DeleteConversation(ctx context.Context, id int32) error

	// Message model related methods.
	CreateMessage(ctx context.Context, create *CreateMessage) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
	CountMessages(ctx context.Context, conversationID int32) (int, error)

	// Action model related methods.
	CreateAction(ctx context.Context, create *CreateAction) (*Action, error)
	ListActions(ctx context.Context, find *FindAction) ([]*Action, error)

	// Item model related methods.
	CreateItem(ctx context.Context, create *Item) (*Item, error)
	ListItems(ctx context.Context, find *FindItem) ([]*Item, error)
	UpdateItem(ctx context.Context, update *UpdateItem) (*Item, error)

	// Cart model related methods.
	GetCart(ctx context.Context, userID string) (*Cart, error)
	SaveCart(ctx context.Context, cart *Cart) (*Cart, error)

	// PurchaseRequest model related methods.
	CheckoutCart(ctx context.Context, checkout *CheckoutCart) (*PurchaseRequest, error)
	ListPurchaseRequests(ctx context.Context, find *FindPurchaseRequest) ([]*PurchaseRequest, error)
}
