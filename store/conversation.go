package store

import (
	"strings"
	"unicode/utf8"

	"github.com/procura/procura/internal/apperr"
)

const (
	// MaxMessagesPerConversation caps the transcript length.
	MaxMessagesPerConversation = 500
	// MaxMessageLength caps a single message, in characters.
	MaxMessageLength = 10_000
	// MaxTitleLength caps the title and last-message preview, in characters.
	MaxTitleLength = 120
)

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationInProgress ConversationStatus = "IN_PROGRESS"
	ConversationCompleted  ConversationStatus = "COMPLETED"
	ConversationAborted    ConversationStatus = "ABORTED"
)

// IsTerminal reports whether no further transition is allowed.
func (s ConversationStatus) IsTerminal() bool {
	return s == ConversationCompleted || s == ConversationAborted
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to ConversationStatus) bool {
	if from == to {
		return false
	}
	return from == ConversationInProgress && to.IsTerminal()
}

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// Conversation is a single assistant thread. UserID is empty for anonymous
// (demo) conversations.
type Conversation struct {
	ID                 int32
	UID                string
	UserID             string
	Title              string
	LastMessagePreview string
	Status             ConversationStatus
	CreatedTs          int64
	UpdatedTs          int64
}

// Message is a single transcript entry. Metadata is an opaque JSON payload for
// client rendering.
type Message struct {
	ID             int32
	ConversationID int32
	Sender         Sender
	Content        string
	Metadata       string
	CreatedTs      int64
}

// Action is an audit record of a tool invocation attempt. Exactly one of
// Result and Error is set.
type Action struct {
	ID             int32
	ConversationID int32
	ActionType     string
	Parameters     string
	Result         string
	Error          string
	CreatedTs      int64
}

// FindConversation filters for ListConversations.
type FindConversation struct {
	ID     *int32
	UID    *string
	UserID *string
	Status *ConversationStatus
	Limit  *int
}

// UpdateConversation carries fields accepted by UpdateConversation. A nil
// field is left untouched; UpdatedTs is always bumped.
type UpdateConversation struct {
	ID                 int32
	Title              *string
	LastMessagePreview *string
	Status             *ConversationStatus
}

// CreateMessage is the payload for CreateMessage.
type CreateMessage struct {
	ConversationID int32
	Sender         Sender
	Content        string
	Metadata       string
}

// FindMessage filters for ListMessages.
type FindMessage struct {
	ConversationID int32
}

// CreateAction is the payload for CreateAction.
type CreateAction struct {
	ConversationID int32
	ActionType     string
	Parameters     string
	Result         string
	Error          string
}

// FindAction filters for ListActions.
type FindAction struct {
	ConversationID int32
}

// Truncate shortens s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// NormalizeMessageContent trims content and enforces the per-message cap.
func NormalizeMessageContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Validation("message cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", apperr.Validation("message exceeds %d characters", MaxMessageLength)
	}
	return content, nil
}

// Preview collapses whitespace and trims s to MaxTitleLength characters.
func Preview(s string) string {
	return Truncate(strings.Join(strings.Fields(s), " "), MaxTitleLength)
}
