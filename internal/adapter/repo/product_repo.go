package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
)

type ProductRepo struct{ q querier }

const productCols = `id, name, description, price, stock, brand, category, active`

func scanProduct(sc interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	if err := sc.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Brand, &p.Category, &p.Active); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+productCols+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("product", id)
	}
	return p, err
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	res, err := r.q.ExecContext(ctx, `
INSERT INTO products (name, description, price, stock, brand, category, active)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Price, p.Stock, p.Brand, p.Category, p.Active)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	res, err := r.q.ExecContext(ctx, `
UPDATE products
SET name = ?, description = ?, price = ?, stock = ?, brand = ?, category = ?, active = ?
WHERE id = ?`,
		p.Name, p.Description, p.Price, p.Stock, p.Brand, p.Category, p.Active, p.ID)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, p.ID)
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("product", id)
	}
	return nil
}

// DecrementStock is the conditional write that keeps stock non-negative:
// zero rows affected means another writer took the units first.
func (r *ProductRepo) DecrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
UPDATE products SET stock = stock - ?
WHERE id = ? AND stock >= ?`, qty, id, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ProductRepo) Search(ctx context.Context, f usecase.ProductFilter, pr usecase.PageRequest) ([]domain.Product, int64, error) {
	where, args := productWhere(f)

	var total int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+productCols+` FROM products`+where+` ORDER BY id LIMIT ? OFFSET ?`,
		append(args, pr.Size, pr.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

func productWhere(f usecase.ProductFilter) (string, []any) {
	var conds []string
	var args []any
	if f.NameContains != "" {
		conds = append(conds, `LOWER(name) LIKE ? ESCAPE '!'`)
		args = append(args, likePattern(f.NameContains))
	}
	if f.Category != "" {
		conds = append(conds, `LOWER(category) = ?`)
		args = append(args, strings.ToLower(f.Category))
	}
	if f.Brand != "" {
		conds = append(conds, `brand = ?`)
		args = append(args, f.Brand)
	}
	if f.ActiveOnly {
		conds = append(conds, `active = ?`)
		args = append(args, true)
	}
	if f.MinPrice != nil {
		conds = append(conds, `price >= ?`)
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, `price <= ?`)
		args = append(args, *f.MaxPrice)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *ProductRepo) IsReferenced(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx, `SELECT 1 FROM order_items WHERE product_id = ? LIMIT 1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *ProductRepo) TopSelling(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT p.id, p.name, SUM(i.quantity) AS qty
FROM order_items i
JOIN products p ON p.id = i.product_id
GROUP BY p.id, p.name
ORDER BY qty DESC, p.id ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProductSales
	for rows.Next() {
		var s domain.ProductSales
		if err := rows.Scan(&s.ProductID, &s.Name, &s.Quantity); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ProductRepo) checkAffected(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	ok, err := exists(ctx, r.q, "products", id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("product", id)
	}
	return nil
}

var _ usecase.ProductRepo = (*ProductRepo)(nil)
