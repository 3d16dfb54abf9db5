package postgresrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/mesa-go/internal/domain"
)

type OrderRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *OrderRepo) With(db DB) *OrderRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OrderRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *OrderRepo) Insert(ctx context.Context, o domain.Order, roomKey string) error {
	const op = "postgresrepo.OrderRepo.Insert"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO orders (id, room_key, table_number, customer_id, status, total_price, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, roomKey, o.Owner.TableNumber, o.Owner.CustomerID, o.Status, o.TotalPrice, o.CreatedAt,
	)
	return wrapDBErr(op, err)
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Order, string, error) {
	const op = "postgresrepo.OrderRepo.Get"

	db := r.handle()

	var o domain.Order
	var roomKey string
	err := db.QueryRow(ctx,
		`SELECT id, room_key, table_number, customer_id, status, total_price, created_at
		 FROM orders WHERE id = $1`,
		id,
	).Scan(&o.ID, &roomKey, &o.Owner.TableNumber, &o.Owner.CustomerID, &o.Status, &o.TotalPrice, &o.CreatedAt)
	if err != nil {
		return nil, "", wrapDBErr(op, err)
	}

	return &o, roomKey, nil
}

// RecordTransition updates the order status and appends one row to the
// status log, keeping the initiating actor and reason.
func (r *OrderRepo) RecordTransition(ctx context.Context, id uuid.UUID, t domain.Transition, total int64) error {
	const op = "postgresrepo.OrderRepo.RecordTransition"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`UPDATE orders SET status = $2, total_price = $3 WHERE id = $1`,
		id, t.To, total,
	); err != nil {
		return wrapDBErr(op, err)
	}

	_, err := db.Exec(ctx,
		`INSERT INTO order_status_log (order_id, from_status, to_status, actor, reason, changed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, t.From, t.To, t.Actor, t.Reason, t.At,
	)
	return wrapDBErr(op, err)
}

// Archive marks a completed order as closed out after payment.
func (r *OrderRepo) Archive(ctx context.Context, id uuid.UUID) error {
	const op = "postgresrepo.OrderRepo.Archive"

	db := r.handle()

	_, err := db.Exec(ctx,
		`UPDATE orders SET archived_at = now() WHERE id = $1`,
		id,
	)
	return wrapDBErr(op, err)
}
