package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createHistoryEntry = `-- name: CreateHistoryEntry :one
INSERT INTO history_entries (order_id, entry_date, text)
VALUES ($1, $2, $3)
RETURNING id, order_id, entry_date, text, created_at
`

type CreateHistoryEntryParams struct {
	OrderID   int64
	EntryDate pgtype.Date
	Text      string
}

func (q *Queries) CreateHistoryEntry(ctx context.Context, arg CreateHistoryEntryParams) (HistoryEntry, error) {
	row := q.db.QueryRow(ctx, createHistoryEntry, arg.OrderID, arg.EntryDate, arg.Text)
	var h HistoryEntry
	err := row.Scan(&h.ID, &h.OrderID, &h.EntryDate, &h.Text, &h.CreatedAt)
	return h, err
}

const listHistoryByOrder = `-- name: ListHistoryByOrder :many
SELECT id, order_id, entry_date, text, created_at
FROM history_entries
WHERE order_id = $1
ORDER BY entry_date DESC, id DESC
`

func (q *Queries) ListHistoryByOrder(ctx context.Context, orderID int64) ([]HistoryEntry, error) {
	rows, err := q.db.Query(ctx, listHistoryByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.OrderID, &h.EntryDate, &h.Text, &h.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}
