package mysql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/procura/procura/store"
)

func (d *DB) CreateItem(ctx context.Context, create *store.Item) (*store.Item, error) {
	now := time.Now().Unix()
	stmt := "INSERT INTO `item` (`id`, `name`, `category`, `description`, `price`, `status`, `created_ts`, `updated_ts`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID, create.Name, create.Category, create.Description, create.Price, create.Status, now, now,
	); err != nil {
		return nil, err
	}
	create.CreatedTs, create.UpdatedTs = now, now
	return create, nil
}

func (d *DB) ListItems(ctx context.Context, find *store.FindItem) ([]*store.Item, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "`id` = ?"), append(args, *v)
	}
	if len(find.IDs) > 0 {
		where = append(where, fmt.Sprintf("`id` IN (%s)", placeholders(len(find.IDs))))
		for _, id := range find.IDs {
			args = append(args, id)
		}
	}
	if v := find.Status; v != nil {
		where, args = append(where, "`status` = ?"), append(args, *v)
	}
	if v := find.Category; v != nil {
		where, args = append(where, "LOWER(`category`) = LOWER(?)"), append(args, *v)
	}
	if len(find.Words) > 0 {
		ors := make([]string, 0, len(find.Words))
		for _, w := range find.Words {
			like := "%" + strings.ToLower(w) + "%"
			ors = append(ors, "(LOWER(`name`) LIKE ? OR LOWER(`description`) LIKE ? OR LOWER(`category`) LIKE ?)")
			args = append(args, like, like, like)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	query := fmt.Sprintf(
		"SELECT `id`, `name`, `category`, `description`, `price`, `status`, `created_ts`, `updated_ts` "+
			"FROM `item` WHERE %s ORDER BY `name` ASC, `id` ASC",
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

	var list []*store.Item
	for rows.Next() {
		i := &store.Item{}
		if err := rows.Scan(&i.ID, &i.Name, &i.Category, &i.Description, &i.Price, &i.Status, &i.CreatedTs, &i.UpdatedTs); err != nil {
			return nil, err
		}
		list = append(list, i)
	}
	return list, rows.Err()
}

func (d *DB) UpdateItem(ctx context.Context, update *store.UpdateItem) (*store.Item, error) {
	set, args := []string{"`updated_ts` = ?"}, []any{time.Now().Unix()}
	if v := update.Name; v != nil {
		set, args = append(set, "`name` = ?"), append(args, *v)
	}
	if v := update.Category; v != nil {
		set, args = append(set, "`category` = ?"), append(args, *v)
	}
	if v := update.Description; v != nil {
		set, args = append(set, "`description` = ?"), append(args, *v)
	}
	if v := update.Price; v != nil {
		set, args = append(set, "`price` = ?"), append(args, *v)
	}
	if v := update.Status; v != nil {
		set, args = append(set, "`status` = ?"), append(args, *v)
	}
	args = append(args, update.ID)
	stmt := "UPDATE `item` SET " + strings.Join(set, ", ") + " WHERE `id` = ?"
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, err
	}
	list, err := d.ListItems(ctx, &store.FindItem{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Errorf("item %s not found", update.ID)
	}
	return list[0], nil
}
