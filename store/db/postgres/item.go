package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/procura/procura/store"
)

func (d *DB) CreateItem(ctx context.Context, create *store.Item) (*store.Item, error) {
	now := time.Now().Unix()
	stmt := `INSERT INTO item (id, name, category, description, price, status, created_ts, updated_ts)
	         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
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
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.IDs) > 0 {
		holders := make([]string, 0, len(find.IDs))
		for _, id := range find.IDs {
			args = append(args, id)
			holders = append(holders, placeholder(len(args)))
		}
		where = append(where, fmt.Sprintf("id IN (%s)", strings.Join(holders, ", ")))
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Category; v != nil {
		where, args = append(where, "LOWER(category) = LOWER("+placeholder(len(args)+1)+")"), append(args, *v)
	}
	if len(find.Words) > 0 {
		ors := make([]string, 0, len(find.Words))
		for _, w := range find.Words {
			args = append(args, "%"+w+"%")
			p := placeholder(len(args))
			ors = append(ors, fmt.Sprintf("(name ILIKE %s OR description ILIKE %s OR category ILIKE %s)", p, p, p))
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	query := fmt.Sprintf(
		`SELECT id, name, category, description, price, status, created_ts, updated_ts
		 FROM item WHERE %s ORDER BY name ASC, id ASC`,
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
	set, args := []string{"updated_ts = $1"}, []any{time.Now().Unix()}
	if v := update.Name; v != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Category; v != nil {
		set, args = append(set, "category = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Description; v != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Price; v != nil {
		set, args = append(set, "price = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	args = append(args, update.ID)
	stmt := fmt.Sprintf(
		`UPDATE item SET %s WHERE id = %s
		 RETURNING id, name, category, description, price, status, created_ts, updated_ts`,
		strings.Join(set, ", "), placeholder(len(args)),
	)
	i := &store.Item{}
	if err := d.db.QueryRowContext(ctx, stmt, args...).
		Scan(&i.ID, &i.Name, &i.Category, &i.Description, &i.Price, &i.Status, &i.CreatedTs, &i.UpdatedTs); err != nil {
		return nil, err
	}
	return i, nil
}
