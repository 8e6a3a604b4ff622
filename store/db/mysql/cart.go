package mysql

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
		"SELECT `id`, `user_id`, `version`, `updated_ts` FROM `cart` WHERE `user_id` = ?", userID,
	).Scan(&cart.ID, &cart.UserID, &cart.Version, &cart.UpdatedTs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT `item_id`, `name`, `unit_price`, `quantity`, `subtotal`, `added_ts` "+
			"FROM `cart_item` WHERE `cart_id` = ? ORDER BY `position` ASC", cart.ID)
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
		result, err := tx.ExecContext(ctx,
			"INSERT IGNORE INTO `cart` (`user_id`, `version`, `updated_ts`) VALUES (?, 1, ?)", cart.UserID, now)
		if err != nil {
			return nil, err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil, store.ErrVersionConflict
		}
		rawID, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		saved.ID = int32(rawID)
	} else {
		result, err := tx.ExecContext(ctx,
			"UPDATE `cart` SET `version` = `version` + 1, `updated_ts` = ? WHERE `id` = ? AND `version` = ?",
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM `cart_item` WHERE `cart_id` = ?", saved.ID); err != nil {
		return nil, err
	}
	for i, line := range saved.Items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO `cart_item` (`cart_id`, `position`, `item_id`, `name`, `unit_price`, `quantity`, `subtotal`, `added_ts`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
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
