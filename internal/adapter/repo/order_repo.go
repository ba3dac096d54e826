package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
)

type OrderRepo struct{ q querier }

const orderSelect = `
SELECT o.id, o.user_id, u.username, o.address, o.number, o.floor, o.postal_code,
       o.status, o.total, o.created_at
FROM orders o
JOIN users u ON u.id = o.user_id`

func scanOrder(sc interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := sc.Scan(&o.ID, &o.UserID, &o.Username,
		&o.Delivery.Address, &o.Delivery.Number, &o.Delivery.Floor, &o.Delivery.PostalCode,
		&status, &o.Total, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

// Create writes the order header and its items; ids are filled in place.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	return runInTx(ctx, r.q, func(q querier) error {
		res, err := q.ExecContext(ctx, `
INSERT INTO orders (user_id, address, number, floor, postal_code, status, total, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			o.UserID, o.Delivery.Address, o.Delivery.Number, o.Delivery.Floor, o.Delivery.PostalCode,
			string(o.Status), o.Total, o.CreatedAt.UTC())
		if err != nil {
			return err
		}
		if o.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		for i := range o.Items {
			it := &o.Items[i]
			it.OrderID = o.ID
			res, err := q.ExecContext(ctx, `
INSERT INTO order_items (order_id, product_id, quantity, subtotal)
VALUES (?, ?, ?, ?)`, o.ID, it.ProductID, it.Quantity, it.Subtotal)
			if err != nil {
				return err
			}
			if it.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *OrderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.q.QueryRowContext(ctx, orderSelect+` WHERE o.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("order", id)
	}
	if err != nil {
		return nil, err
	}
	byOrder, err := r.loadItems(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = byOrder[o.ID]
	return o, nil
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, to domain.Status) error {
	res, err := r.q.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(to), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	ok, err := exists(ctx, r.q, "orders", id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("order", id)
	}
	return nil
}

// UpdateStatusIf applies the change only while the row still holds from.
// false means nothing matched: the order is gone or its status moved.
func (r *OrderRepo) UpdateStatusIf(ctx context.Context, id int64, from, to domain.Status) (bool, error) {
	if from == to {
		var cur string
		err := r.q.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, id).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil && cur == string(from), err
	}
	res, err := r.q.ExecContext(ctx, `
UPDATE orders SET status = ?
WHERE id = ? AND status = ?`, string(to), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the order; order_items go with it by cascade.
func (r *OrderRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("order", id)
	}
	return nil
}

// Find returns one page of matching orders, newest first, with their items.
func (r *OrderRepo) Find(ctx context.Context, f usecase.OrderFilter, pr usecase.PageRequest) ([]domain.Order, int64, error) {
	where, args, err := orderWhere(f)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders o JOIN users u ON u.id = o.user_id`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}

	rows, err := r.q.QueryContext(ctx,
		orderSelect+where+` ORDER BY o.created_at DESC, o.id DESC LIMIT ? OFFSET ?`,
		append(args, pr.Size, pr.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	ids := make([]int64, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	byOrder, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Items = byOrder[out[i].ID]
	}
	return out, total, nil
}

func (r *OrderRepo) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	out := make(map[int64][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	rows, err := r.q.QueryContext(ctx, `
SELECT i.id, i.order_id, i.product_id, COALESCE(p.name, ''), i.quantity, i.subtotal
FROM order_items i
LEFT JOIN products p ON p.id = i.product_id
WHERE i.order_id IN (`+placeholders(len(orderIDs))+`)
ORDER BY i.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Subtotal); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (r *OrderRepo) TopCustomers(ctx context.Context, limit int) ([]domain.CustomerOrders, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT u.username, COUNT(o.id) AS cnt
FROM orders o
JOIN users u ON u.id = o.user_id
GROUP BY u.id, u.username
ORDER BY cnt DESC, u.username ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CustomerOrders
	for rows.Next() {
		var c domain.CustomerOrders
		if err := rows.Scan(&c.Username, &c.OrdersCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ usecase.OrderRepo = (*OrderRepo)(nil)
