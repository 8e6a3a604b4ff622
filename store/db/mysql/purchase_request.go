package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/procura/procura/store"
)

func (d *DB) CheckoutCart(ctx context.Context, checkout *store.CheckoutCart) (*store.PurchaseRequest, error) {
	now := time.Now().Unix()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var cartID int32
	err = tx.QueryRowContext(ctx,
		"SELECT `id` FROM `cart` WHERE `user_id` = ? AND `version` = ? FOR UPDATE",
		checkout.UserID, checkout.CartVersion,
	).Scan(&cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrVersionConflict
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE `cart` SET `version` = `version` + 1, `updated_ts` = ? WHERE `id` = ?", now, cartID,
	); err != nil {
		return nil, err
	}

	// LAST_INSERT_ID(expr) makes the allocated value readable on this connection.
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO `request_sequence` (`year`, `last_value`) VALUES (?, LAST_INSERT_ID(1)) "+
			"ON DUPLICATE KEY UPDATE `last_value` = LAST_INSERT_ID(`last_value` + 1)", checkout.Year,
	); err != nil {
		return nil, errors.Wrap(err, "failed to allocate request number")
	}
	var seq int
	if err := tx.QueryRowContext(ctx, "SELECT LAST_INSERT_ID()").Scan(&seq); err != nil {
		return nil, errors.Wrap(err, "failed to read request number")
	}

	pr := &store.PurchaseRequest{
		UID:             checkout.UID,
		RequestNumber:   store.FormatRequestNumber(checkout.Year, seq),
		UserID:          checkout.UserID,
		Status:          store.PurchaseRequestSubmitted,
		Items:           checkout.Items,
		TotalCost:       checkout.TotalCost,
		ShippingAddress: checkout.ShippingAddress,
		PaymentMethod:   checkout.PaymentMethod,
		CreatedTs:       now,
	}
	result, err := tx.ExecContext(ctx,
		"INSERT INTO `purchase_request` (`uid`, `request_number`, `user_id`, `status`, `total_cost`, `shipping_address`, `payment_method`, `created_ts`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		pr.UID, pr.RequestNumber, pr.UserID, pr.Status, pr.TotalCost, pr.ShippingAddress, pr.PaymentMethod, pr.CreatedTs,
	)
	if err != nil {
		return nil, err
	}
	rawID, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	pr.ID = int32(rawID)
	for i, item := range pr.Items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO `purchase_request_item` (`purchase_request_id`, `position`, `item_id`, `name`, `unit_price`, `quantity`, `subtotal`) VALUES (?, ?, ?, ?, ?, ?, ?)",
			pr.ID, i, item.ItemID, item.Name, item.UnitPrice, item.Quantity, item.Subtotal,
		); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM `cart_item` WHERE `cart_id` = ?", cartID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return pr, nil
}

func (d *DB) ListPurchaseRequests(ctx context.Context, find *store.FindPurchaseRequest) ([]*store.PurchaseRequest, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UID; v != nil {
		where, args = append(where, "`uid` = ?"), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "`user_id` = ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		"SELECT `id`, `uid`, `request_number`, `user_id`, `status`, `total_cost`, `shipping_address`, `payment_method`, `created_ts` "+
			"FROM `purchase_request` WHERE %s ORDER BY `created_ts` DESC, `id` DESC",
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

	var list []*store.PurchaseRequest
	for rows.Next() {
		pr := &store.PurchaseRequest{}
		if err := rows.Scan(&pr.ID, &pr.UID, &pr.RequestNumber, &pr.UserID, &pr.Status, &pr.TotalCost,
			&pr.ShippingAddress, &pr.PaymentMethod, &pr.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, pr := range list {
		if pr.Items, err = d.listPurchaseRequestItems(ctx, pr.ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (d *DB) listPurchaseRequestItems(ctx context.Context, purchaseRequestID int32) ([]*store.PurchaseRequestItem, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT `item_id`, `name`, `unit_price`, `quantity`, `subtotal` "+
			"FROM `purchase_request_item` WHERE `purchase_request_id` = ? ORDER BY `position` ASC", purchaseRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*store.PurchaseRequestItem
	for rows.Next() {
		item := &store.PurchaseRequestItem{}
		if err := rows.Scan(&item.ItemID, &item.Name, &item.UnitPrice, &item.Quantity, &item.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
