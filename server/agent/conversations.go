package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/procura/procura/internal/apperr"
	"github.com/procura/procura/plugin/archive"
	"github.com/procura/procura/store"
)

const (
	defaultConversationTitle = "New conversation"
	defaultListLimit         = 50
	maxListLimit             = 200
)

// ConversationDetail is a conversation with its transcript and action log.
type ConversationDetail struct {
	Conversation *store.Conversation
	Messages     []*store.Message
	Actions      []*store.Action
}

// ListConversations returns the caller's conversations, most recent first.
func (a *Agent) ListConversations(ctx context.Context, userID string, limit int) ([]*store.Conversation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	return a.store.ListConversations(ctx, &store.FindConversation{UserID: &userID, Limit: &limit})
}

// CreateConversation starts an empty conversation.
func (a *Agent) CreateConversation(ctx context.Context, userID, title string) (*store.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultConversationTitle
	}
	return a.store.CreateConversation(ctx, &store.Conversation{
		UID:    newConversationUID(),
		UserID: userID,
		Title:  title,
		Status: store.ConversationInProgress,
	})
}

// GetConversation returns a conversation with messages and actions. A
// conversation owned by someone else is reported as not found.
func (a *Agent) GetConversation(ctx context.Context, userID, uid string) (*ConversationDetail, error) {
	conv, err := a.ownedConversation(ctx, userID, uid)
	if err != nil {
		return nil, err
	}
	return a.detail(ctx, conv)
}

// TouchConversation bumps the conversation's last activity time.
func (a *Agent) TouchConversation(ctx context.Context, userID, uid string) (*store.Conversation, error) {
	conv, err := a.ownedConversation(ctx, userID, uid)
	if err != nil {
		return nil, err
	}
	return a.store.UpdateConversation(ctx, &store.UpdateConversation{ID: conv.ID})
}

// CloseConversation marks a conversation completed and archives it.
func (a *Agent) CloseConversation(ctx context.Context, userID, uid string) (*store.Conversation, error) {
	return a.transition(ctx, userID, uid, store.ConversationCompleted)
}

// AbortConversation marks a conversation aborted and archives it.
func (a *Agent) AbortConversation(ctx context.Context, userID, uid string) (*store.Conversation, error) {
	return a.transition(ctx, userID, uid, store.ConversationAborted)
}

func (a *Agent) transition(ctx context.Context, userID, uid string, to store.ConversationStatus) (*store.Conversation, error) {
	conv, err := a.ownedConversation(ctx, userID, uid)
	if err != nil {
		return nil, err
	}
	if !store.CanTransition(conv.Status, to) {
		return nil, apperr.Validation("conversation is already %s", strings.ToLower(string(conv.Status)))
	}
	updated, err := a.store.UpdateConversation(ctx, &store.UpdateConversation{ID: conv.ID, Status: &to})
	if err != nil {
		return nil, errors.Wrap(err, "failed to update conversation status")
	}
	a.archive(ctx, updated)
	return updated, nil
}

// archive uploads the finished transcript. Failures are logged and do not
// undo the transition.
func (a *Agent) archive(ctx context.Context, conv *store.Conversation) {
	if a.archiver == nil {
		return
	}
	detail, err := a.detail(ctx, conv)
	if err != nil {
		slog.Error("failed to load transcript for archiving", "conversation", conv.UID, "error", err)
		return
	}
	location, err := a.archiver.Archive(ctx, &archive.Transcript{
		Conversation: detail.Conversation,
		Messages:     detail.Messages,
		Actions:      detail.Actions,
		ArchivedTs:   a.now().Unix(),
	})
	if err != nil {
		slog.Error("failed to archive conversation", "conversation", conv.UID, "error", err)
		return
	}
	slog.Info("conversation archived", "conversation", conv.UID, "location", location)
}

func (a *Agent) detail(ctx context.Context, conv *store.Conversation) (*ConversationDetail, error) {
	messages, err := a.store.ListMessages(ctx, &store.FindMessage{ConversationID: conv.ID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	actions, err := a.store.ListActions(ctx, &store.FindAction{ConversationID: conv.ID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list actions")
	}
	return &ConversationDetail{Conversation: conv, Messages: messages, Actions: actions}, nil
}

func (a *Agent) ownedConversation(ctx context.Context, userID, uid string) (*store.Conversation, error) {
	conv, err := a.store.GetConversation(ctx, &store.FindConversation{UID: &uid})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get conversation")
	}
	if conv == nil || conv.UserID != userID {
		return nil, apperr.NotFound("conversation %s not found", uid)
	}
	return conv, nil
}
