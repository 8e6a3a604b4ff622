package postgres

import (
	"context"

	"github.com/pkg/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS conversation (
		id                   SERIAL PRIMARY KEY,
		uid                  TEXT   NOT NULL UNIQUE,
		user_id              TEXT   NOT NULL DEFAULT '',
		title                TEXT   NOT NULL DEFAULT '',
		last_message_preview TEXT   NOT NULL DEFAULT '',
		status               TEXT   NOT NULL DEFAULT 'IN_PROGRESS',
		created_ts           BIGINT NOT NULL,
		updated_ts           BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_user ON conversation(user_id)`,
	`CREATE TABLE IF NOT EXISTS conversation_message (
		id              SERIAL PRIMARY KEY,
		conversation_id INTEGER NOT NULL REFERENCES conversation(id) ON DELETE CASCADE,
		sender          TEXT    NOT NULL,
		content         TEXT    NOT NULL,
		metadata        TEXT    NOT NULL DEFAULT '',
		created_ts      BIGINT  NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_message_conversation ON conversation_message(conversation_id)`,
	`CREATE TABLE IF NOT EXISTS conversation_action (
		id              SERIAL PRIMARY KEY,
		conversation_id INTEGER NOT NULL REFERENCES conversation(id) ON DELETE CASCADE,
		action_type     TEXT    NOT NULL,
		parameters      TEXT    NOT NULL DEFAULT '',
		result          TEXT    NOT NULL DEFAULT '',
		error           TEXT    NOT NULL DEFAULT '',
		created_ts      BIGINT  NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_action_conversation ON conversation_action(conversation_id)`,
	`CREATE TABLE IF NOT EXISTS item (
		id          TEXT             NOT NULL PRIMARY KEY,
		name        TEXT             NOT NULL,
		category    TEXT             NOT NULL,
		description TEXT             NOT NULL DEFAULT '',
		price       DOUBLE PRECISION NOT NULL,
		status      TEXT             NOT NULL DEFAULT 'ACTIVE',
		created_ts  BIGINT           NOT NULL,
		updated_ts  BIGINT           NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cart (
		id         SERIAL PRIMARY KEY,
		user_id    TEXT   NOT NULL UNIQUE,
		version    BIGINT NOT NULL DEFAULT 1,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cart_item (
		cart_id    INTEGER          NOT NULL REFERENCES cart(id) ON DELETE CASCADE,
		position   INTEGER          NOT NULL,
		item_id    TEXT             NOT NULL,
		name       TEXT             NOT NULL,
		unit_price DOUBLE PRECISION NOT NULL,
		quantity   INTEGER          NOT NULL,
		subtotal   DOUBLE PRECISION NOT NULL,
		added_ts   BIGINT           NOT NULL,
		PRIMARY KEY (cart_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_request (
		id               SERIAL PRIMARY KEY,
		uid              TEXT             NOT NULL UNIQUE,
		request_number   TEXT             NOT NULL UNIQUE,
		user_id          TEXT             NOT NULL,
		status           TEXT             NOT NULL,
		total_cost       DOUBLE PRECISION NOT NULL,
		shipping_address TEXT             NOT NULL DEFAULT '',
		payment_method   TEXT             NOT NULL DEFAULT '',
		created_ts       BIGINT           NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchase_request_user ON purchase_request(user_id)`,
	`CREATE TABLE IF NOT EXISTS purchase_request_item (
		purchase_request_id INTEGER          NOT NULL REFERENCES purchase_request(id) ON DELETE CASCADE,
		position            INTEGER          NOT NULL,
		item_id             TEXT             NOT NULL,
		name                TEXT             NOT NULL,
		unit_price          DOUBLE PRECISION NOT NULL,
		quantity            INTEGER          NOT NULL,
		subtotal            DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (purchase_request_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS request_sequence (
		year       INTEGER NOT NULL PRIMARY KEY,
		last_value INTEGER NOT NULL
	)`,
}

func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate postgres schema")
		}
	}
	return nil
}
