// Package postgres implements the order gateway directly against the
// kitchen_orders table over a pgx connection pool. It is an alternative to
// the PostgREST client for deployments that expose the database itself.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/five82/galley/internal/gateway"
	"github.com/five82/galley/internal/logging"
	"github.com/five82/galley/internal/order"
)

// DB is the subset of *pgxpool.Pool the gateway uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	_ DB              = (*pgxpool.Pool)(nil)
	_ gateway.Gateway = (*Gateway)(nil)
)

// Gateway reads and acknowledges kitchen orders with SQL.
type Gateway struct {
	db    DB
	table string
	log   *slog.Logger
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// New returns a Gateway over db for table (default kitchen_orders). A nil
// logger discards the dropped-row warnings.
func New(db DB, table string, logger *slog.Logger) *Gateway {
	table = strings.TrimSpace(table)
	if table == "" {
		table = gateway.DefaultTable
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Gateway{db: db, table: table, log: logger.With("component", "gateway")}
}

func (g *Gateway) selectSQL() string {
	return `SELECT id::text, COALESCE(order_number, 0), COALESCE(transaction_key, ''), COALESCE(store_code, ''),
		COALESCE(pos_code, ''), COALESCE(items, '[]'::jsonb), COALESCE(total_amount, 0)::text,
		COALESCE(transaction_date::text, ''), COALESCE(transaction_remarks, ''), created_at
	FROM ` + g.ident() + `
	WHERE device_id = $1 AND sent_to_device = false AND created_at > $2
	ORDER BY created_at DESC`
}

func (g *Gateway) updateSQL() string {
	return `UPDATE ` + g.ident() + ` SET sent_to_device = true WHERE id::text = ANY($1)`
}

func (g *Gateway) ident() string {
	return pgx.Identifier(strings.Split(g.table, ".")).Sanitize()
}

// FetchPending implements gateway.Gateway. A row whose items or total do
// not decode is logged and skipped.
func (g *Gateway) FetchPending(ctx context.Context, token string, since time.Time) ([]gateway.Row, error) {
	rows, err := g.db.Query(ctx, g.selectSQL(), token, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query pending orders: %w", err)
	}
	defer rows.Close()

	var out []gateway.Row
	for rows.Next() {
		var (
			r         gateway.Row
			id        string
			itemsJSON []byte
			total     string
		)
		if err := rows.Scan(&id, &r.OrderNumber, &r.TransactionKey, &r.StoreCode, &r.POSCode,
			&itemsJSON, &total, &r.TransactionDate, &r.TransactionRemarks, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		r.ID = gateway.RowID(id)
		if err := json.Unmarshal(itemsJSON, &r.Items); err != nil {
			g.log.Warn("dropping order row with undecodable items", "event", "row_invalid", "id", id, "error", err)
			continue
		}
		amount, err := order.NewMoney(total)
		if err != nil {
			g.log.Warn("dropping order row with unparsable total", "event", "row_invalid", "id", id, "error", err)
			continue
		}
		r.TotalAmount = amount
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return out, nil
}

// MarkDelivered implements gateway.Gateway. An empty id list is a no-op.
func (g *Gateway) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := g.db.Exec(ctx, g.updateSQL(), ids); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}
