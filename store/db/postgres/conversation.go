package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/procura/procura/store"
)

func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	now := time.Now().Unix()
	stmt := `INSERT INTO conversation (uid, user_id, title, last_message_preview, status, created_ts, updated_ts)
	         VALUES ($1, $2, $3, $4, $5, $6, $7)
	         RETURNING id, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID, create.UserID, create.Title, create.LastMessagePreview, create.Status, now, now,
	).Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	query := fmt.Sprintf(
		`SELECT id, uid, user_id, title, last_message_preview, status, created_ts, updated_ts
		 FROM conversation WHERE %s ORDER BY updated_ts DESC, id DESC`,
		strings.Join(where, " AND "),
	)
	if v := find.Limit; v != nil {
		query += fmt.Sprintf(" LIMIT %d", *v)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.Conversation
	for rows.Next() {
		c := &store.Conversation{}
		if err := rows.Scan(&c.ID, &c.UID, &c.UserID, &c.Title, &c.LastMessagePreview, &c.Status, &c.CreatedTs, &c.UpdatedTs); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (d *DB) UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	set, args := []string{"updated_ts = $1"}, []any{time.Now().Unix()}
	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.LastMessagePreview; v != nil {
		set, args = append(set, "last_message_preview = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	args = append(args, update.ID)
	stmt := fmt.Sprintf(
		`UPDATE conversation SET %s WHERE id = %s
		 RETURNING id, uid, user_id, title, last_message_preview, status, created_ts, updated_ts`,
		strings.Join(set, ", "), placeholder(len(args)),
	)
	c := &store.Conversation{}
	if err := d.db.QueryRowContext(ctx, stmt, args...).
		Scan(&c.ID, &c.UID, &c.UserID, &c.Title, &c.LastMessagePreview, &c.Status, &c.CreatedTs, &c.UpdatedTs); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *DB) DeleteConversation(ctx context.Context, id int32) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM conversation WHERE id = $1`, id)
	return err
}

func (d *DB) CreateMessage(ctx context.Context, create *store.CreateMessage) (*store.Message, error) {
	stmt := `INSERT INTO conversation_message (conversation_id, sender, content, metadata, created_ts)
	         VALUES ($1, $2, $3, $4, $5)
	         RETURNING id, created_ts`
	m := &store.Message{
		ConversationID: create.ConversationID,
		Sender:         create.Sender,
		Content:        create.Content,
		Metadata:       create.Metadata,
	}
	if err := d.db.QueryRowContext(ctx, stmt,
		create.ConversationID, create.Sender, create.Content, create.Metadata, time.Now().Unix(),
	).Scan(&m.ID, &m.CreatedTs); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	query := `SELECT id, conversation_id, sender, content, metadata, created_ts
	          FROM conversation_message WHERE conversation_id = $1 ORDER BY id ASC`
	rows, err := d.db.QueryContext(ctx, query, find.ConversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.Message
	for rows.Next() {
		m := &store.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Content, &m.Metadata, &m.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (d *DB) CountMessages(ctx context.Context, conversationID int32) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_message WHERE conversation_id = $1`, conversationID,
	).Scan(&n)
	return n, err
}

func (d *DB) CreateAction(ctx context.Context, create *store.CreateAction) (*store.Action, error) {
	stmt := `INSERT INTO conversation_action (conversation_id, action_type, parameters, result, error, created_ts)
	         VALUES ($1, $2, $3, $4, $5, $6)
	         RETURNING id, created_ts`
	a := &store.Action{
		ConversationID: create.ConversationID,
		ActionType:     create.ActionType,
		Parameters:     create.Parameters,
		Result:         create.Result,
		Error:          create.Error,
	}
	if err := d.db.QueryRowContext(ctx, stmt,
		create.ConversationID, create.ActionType, create.Parameters, create.Result, create.Error, time.Now().Unix(),
	).Scan(&a.ID, &a.CreatedTs); err != nil {
		return nil, err
	}
	return a, nil
}

func (d *DB) ListActions(ctx context.Context, find *store.FindAction) ([]*store.Action, error) {
	query := `SELECT id, conversation_id, action_type, parameters, result, error, created_ts
	          FROM conversation_action WHERE conversation_id = $1 ORDER BY id ASC`
	rows, err := d.db.QueryContext(ctx, query, find.ConversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.Action
	for rows.Next() {
		a := &store.Action{}
		if err := rows.Scan(&a.ID, &a.ConversationID, &a.ActionType, &a.Parameters, &a.Result, &a.Error, &a.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
