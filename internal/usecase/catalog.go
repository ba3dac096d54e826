package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
)

// Catalog is the pass-through product surface. Writes are admin-only;
// non-admins only ever see active products.
type Catalog struct {
	products    ProductRepo
	maxPageSize int
}

func NewCatalog(products ProductRepo, maxPageSize int) *Catalog {
	return &Catalog{products: products, maxPageSize: maxPageSize}
}

func (c *Catalog) Get(ctx context.Context, p domain.Principal, id int64) (*domain.Product, error) {
	prod, err := c.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !prod.Active && !p.IsAdmin() {
		return nil, domain.ErrNotFound
	}
	return prod, nil
}

func (c *Catalog) Search(ctx context.Context, p domain.Principal, f ProductFilter, pr PageRequest) (Page[domain.Product], error) {
	pr, err := pr.validate(c.maxPageSize)
	if err != nil {
		return Page[domain.Product]{}, err
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return Page[domain.Product]{}, domain.InvalidArgument("minPrice", "must not exceed maxPrice")
	}
	if !p.IsAdmin() {
		f.ActiveOnly = true
	}
	f.NameContains = strings.TrimSpace(f.NameContains)
	items, total, err := c.products.Search(ctx, f, pr)
	if err != nil {
		return Page[domain.Product]{}, err
	}
	return newPage(items, pr, total), nil
}

func (c *Catalog) Create(ctx context.Context, p domain.Principal, prod *domain.Product) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	if err := prod.Validate(); err != nil {
		return err
	}
	if err := c.products.Create(ctx, prod); err != nil {
		return err
	}
	logging.FromCtx(ctx).Info("product created", "product_id", prod.ID, "by", p.Username)
	return nil
}

func (c *Catalog) Update(ctx context.Context, p domain.Principal, prod *domain.Product) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	if err := prod.Validate(); err != nil {
		return err
	}
	return c.products.Update(ctx, prod)
}

// Delete refuses to remove a product that order items still reference.
func (c *Catalog) Delete(ctx context.Context, p domain.Principal, id int64) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	if _, err := c.products.GetByID(ctx, id); err != nil {
		return err
	}
	used, err := c.products.IsReferenced(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("product %d is referenced by orders: %w", id, domain.ErrConflict)
	}
	return c.products.Delete(ctx, id)
}

// DefaultRandomCount is how many products Random returns when asked for none.
const DefaultRandomCount = 4

// Random returns up to n distinct active products in random order, for the
// storefront's featured strip. Offsets are sampled so only the chosen rows
// are read.
func (c *Catalog) Random(ctx context.Context, n int) ([]domain.Product, error) {
	if n <= 0 {
		n = DefaultRandomCount
	}
	if c.maxPageSize > 0 && n > c.maxPageSize {
		n = c.maxPageSize
	}
	active := ProductFilter{ActiveOnly: true}
	_, total, err := c.products.Search(ctx, active, PageRequest{Size: 1})
	if err != nil {
		return nil, err
	}

	if total <= int64(n) {
		items, _, err := c.products.Search(ctx, active, PageRequest{Size: n})
		if err != nil {
			return nil, err
		}
		rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		return items, nil
	}

	picked := make(map[int64]bool, n)
	out := make([]domain.Product, 0, n)
	for len(picked) < n {
		off := rand.Int64N(total)
		if picked[off] {
			continue
		}
		picked[off] = true
		items, _, err := c.products.Search(ctx, active, PageRequest{Page: int(off), Size: 1})
		if err != nil {
			return nil, err
		}
		// rows deleted since the count just shorten the result
		out = append(out, items...)
	}
	return out, nil
}
