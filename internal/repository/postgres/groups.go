package postgresrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/mesa-go/internal/domain"
)

// GroupRepo persists the append-only group ledger: the initial group (id 0)
// and every later batch, with per-item statuses.
type GroupRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *GroupRepo) With(db DB) *GroupRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *GroupRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *GroupRepo) Insert(ctx context.Context, orderID uuid.UUID, b domain.Batch) error {
	const op = "postgresrepo.GroupRepo.Insert"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO order_groups (order_id, group_id, subtotal, submitted_at)
		 VALUES ($1, $2, $3, $4)`,
		orderID, b.ID, b.Subtotal, b.SubmittedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	batch := &pgx.Batch{}
	for i, li := range b.Items {
		batch.Queue(
			`INSERT INTO order_group_items
			   (order_id, group_id, position, menu_item_id, name, quantity,
			    variant_id, topping_ids, kitchen_area, unit_price, topping_sum, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			orderID, b.ID, i, li.MenuItemID, li.Name, li.Quantity,
			li.VariantID, li.ToppingIDs, li.Area, li.UnitPrice, li.ToppingSum, li.Status,
		)
	}

	res := db.SendBatch(ctx, batch)
	defer res.Close()
	for range b.Items {
		if _, err := res.Exec(); err != nil {
			return wrapDBErr(op, err)
		}
	}

	return nil
}

// CancelActive voids every not-yet-cancelled group of an order. Used when a
// rollback to draft rejects the submitted work; the rows stay for audit.
func (r *GroupRepo) CancelActive(ctx context.Context, orderID uuid.UUID) error {
	const op = "postgresrepo.GroupRepo.CancelActive"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`UPDATE order_groups SET cancelled = TRUE
		 WHERE order_id = $1 AND NOT cancelled`,
		orderID,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *GroupRepo) UpdateItemStatus(
	ctx context.Context,
	orderID uuid.UUID,
	groupID int,
	menuItemID string,
	status domain.ItemStatus,
) error {
	const op = "postgresrepo.GroupRepo.UpdateItemStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE order_group_items
		 SET status = $4,
		     started_at = CASE WHEN started_at IS NULL AND $4 <> 'initial' THEN now() ELSE started_at END
		 WHERE order_id = $1 AND group_id = $2 AND menu_item_id = $3`,
		orderID, groupID, menuItemID, status,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, pgx.ErrNoRows)
	}

	return nil
}
