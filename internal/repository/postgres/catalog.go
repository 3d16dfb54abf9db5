package postgresrepo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/mesa-go/internal/domain"
)

type CatalogRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CatalogRepo) With(db DB) *CatalogRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CatalogRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// ListMenu loads the full menu with variants and toppings. Three queries,
// assembled in memory; the result feeds the cached catalog snapshot.
func (r *CatalogRepo) ListMenu(ctx context.Context) ([]domain.MenuItem, error) {
	const op = "postgresrepo.CatalogRepo.ListMenu"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, name, base_price, kitchen_area, available
		 FROM menu_items ORDER BY id`)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var items []domain.MenuItem
	idx := make(map[string]int)
	for rows.Next() {
		var it domain.MenuItem
		if err := rows.Scan(&it.ID, &it.Name, &it.BasePrice, &it.Area, &it.Available); err != nil {
			return nil, wrapDBErr(op, err)
		}
		idx[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	vrows, err := db.Query(ctx,
		`SELECT id, menu_item_id, name, price
		 FROM menu_item_variants ORDER BY menu_item_id, id`)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var v domain.Variant
		var itemID string
		if err := vrows.Scan(&v.ID, &itemID, &v.Name, &v.Price); err != nil {
			return nil, wrapDBErr(op, err)
		}
		if i, ok := idx[itemID]; ok {
			items[i].Variants = append(items[i].Variants, v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	trows, err := db.Query(ctx,
		`SELECT id, menu_item_id, name, price
		 FROM menu_item_toppings ORDER BY menu_item_id, id`)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer trows.Close()

	for trows.Next() {
		var t domain.Topping
		var itemID string
		if err := trows.Scan(&t.ID, &itemID, &t.Name, &t.Price); err != nil {
			return nil, wrapDBErr(op, err)
		}
		if i, ok := idx[itemID]; ok {
			items[i].Toppings = append(items[i].Toppings, t)
		}
	}
	if err := trows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return items, nil
}
