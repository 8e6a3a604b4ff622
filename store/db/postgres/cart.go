package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/procura/procura/store"
)

func (d *DB) GetCart(ctx context.Context, userID string) (*store.Cart, error) {
	cart := &store.Cart{}
	err := d.db.QueryRowContext(ctx,
		`SELECT id, user_id, version, updated_ts FROM cart WHERE user_id = $1`, userID,
	).Scan(&cart.ID, &cart.UserID, &cart.Version, &cart.UpdatedTs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT item_id, name, unit_price, quantity, subtotal, added_ts
		 FROM cart_item WHERE cart_id = $1 ORDER BY position ASC`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		line := &store.CartItem{}
		if err := rows.Scan(&line.ItemID, &line.Name, &line.UnitPrice, &line.Quantity, &line.Subtotal, &line.AddedTs); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, line)
	}
	return cart, rows.Err()
}

func (d *DB) SaveCart(ctx context.Context, cart *store.Cart) (*store.Cart, error) {
	now := time.Now().Unix()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	saved := cart.Clone()
	if cart.Version == 0 {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO cart (user_id, version, updated_ts) VALUES ($1, 1, $2)
			 ON CONFLICT (user_id) DO NOTHING RETURNING id`,
			cart.UserID, now,
		).Scan(&saved.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrVersionConflict
		}
		if err != nil {
			return nil, err
		}
	} else {
		result, err := tx.ExecContext(ctx,
			`UPDATE cart SET version = version + 1, updated_ts = $1 WHERE id = $2 AND version = $3`,
			now, cart.ID, cart.Version)
		if err != nil {
			return nil, err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil, store.ErrVersionConflict
		}
	}
	saved.Version = cart.Version + 1
	saved.UpdatedTs = now

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_item WHERE cart_id = $1`, saved.ID); err != nil {
		return nil, err
	}
	for i, line := range saved.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cart_item (cart_id, position, item_id, name, unit_price, quantity, subtotal, added_ts)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			saved.ID, i, line.ItemID, line.Name, line.UnitPrice, line.Quantity, line.Subtotal, line.AddedTs,
		); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}
