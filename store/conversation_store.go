package store

import "context"

// CreateConversation creates a new conversation.
func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	if create.Status == "" {
		create.Status = ConversationInProgress
	}
	create.Title = Truncate(create.Title, MaxTitleLength)
	create.LastMessagePreview = Truncate(create.LastMessagePreview, MaxTitleLength)
	return s.driver.CreateConversation(ctx, create)
}

// ListConversations lists conversations matching the given filter, most
// recently updated first.
func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

// GetConversation returns the first conversation matching the given filter,
// or nil when there is none.
func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	list, err := s.driver.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateConversation updates a conversation's mutable fields.
func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error) {
	if update.Title != nil {
		title := Truncate(*update.Title, MaxTitleLength)
		update.Title = &title
	}
	if update.LastMessagePreview != nil {
		preview := Truncate(*update.LastMessagePreview, MaxTitleLength)
		update.LastMessagePreview = &preview
	}
	return s.driver.UpdateConversation(ctx, update)
}

// DeleteConversation deletes a conversation with its messages and actions.
func (s *Store) DeleteConversation(ctx context.Context, id int32) error {
	return s.driver.DeleteConversation(ctx, id)
}

// CreateMessage appends a message to a conversation.
func (s *Store) CreateMessage(ctx context.Context, create *CreateMessage) (*Message, error) {
	return s.driver.CreateMessage(ctx, create)
}

// ListMessages returns all messages of a conversation, oldest first.
func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	return s.driver.ListMessages(ctx, find)
}

// CountMessages returns the number of messages in a conversation.
func (s *Store) CountMessages(ctx context.Context, conversationID int32) (int, error) {
	return s.driver.CountMessages(ctx, conversationID)
}

// CreateAction appends an audit record to a conversation's action log.
func (s *Store) CreateAction(ctx context.Context, create *CreateAction) (*Action, error) {
	return s.driver.CreateAction(ctx, create)
}

// ListActions returns the action log of a conversation, oldest first.
func (s *Store) ListActions(ctx context.Context, find *FindAction) ([]*Action, error) {
	return s.driver.ListActions(ctx, find)
}
