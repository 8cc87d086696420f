package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceColumns = `id, order_id, version, kind, invoice_date, amount, remark,
	status, document_key, sent_date, created_at`

func scanInvoice(row rowScanner) (Invoice, error) {
	var i Invoice
	err := row.Scan(&i.ID, &i.OrderID, &i.Version, &i.Kind, &i.InvoiceDate, &i.Amount,
		&i.Remark, &i.Status, &i.DocumentKey, &i.SentDate, &i.CreatedAt)
	return i, err
}

const createInvoice = `-- name: CreateInvoice :one
INSERT INTO invoices (order_id, version, kind, invoice_date, amount, remark, status, document_key)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + invoiceColumns

type CreateInvoiceParams struct {
	OrderID     int64
	Version     int32
	Kind        string
	InvoiceDate pgtype.Date
	Amount      pgtype.Numeric
	Remark      pgtype.Text
	Status      string
	DocumentKey pgtype.Text
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	row := q.db.QueryRow(ctx, createInvoice, arg.OrderID, arg.Version, arg.Kind,
		arg.InvoiceDate, arg.Amount, arg.Remark, arg.Status, arg.DocumentKey)
	return scanInvoice(row)
}

const getInvoice = `-- name: GetInvoice :one
SELECT ` + invoiceColumns + `
FROM invoices
WHERE id = $1
`

func (q *Queries) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoice, id))
}

const getLatestInvoice = `-- name: GetLatestInvoice :one
SELECT ` + invoiceColumns + `
FROM invoices
WHERE order_id = $1
ORDER BY version DESC
LIMIT 1
`

func (q *Queries) GetLatestInvoice(ctx context.Context, orderID int64) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getLatestInvoice, orderID))
}

const getLatestCreatedInvoice = `-- name: GetLatestCreatedInvoice :one
SELECT ` + invoiceColumns + `
FROM invoices
WHERE order_id = $1 AND status = 'CREATED'
ORDER BY version DESC
LIMIT 1
`

// GetLatestCreatedInvoice is used by postal batch confirmation, which marks
// the most recent still-open invoice as sent.
func (q *Queries) GetLatestCreatedInvoice(ctx context.Context, orderID int64) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getLatestCreatedInvoice, orderID))
}

const listInvoicesByOrder = `-- name: ListInvoicesByOrder :many
SELECT ` + invoiceColumns + `
FROM invoices
WHERE order_id = $1
ORDER BY version
`

func (q *Queries) ListInvoicesByOrder(ctx context.Context, orderID int64) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoicesByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

const updateInvoiceStatus = `-- name: UpdateInvoiceStatus :exec
UPDATE invoices
SET status = $2
WHERE id = $1
`

type UpdateInvoiceStatusParams struct {
	ID     int64
	Status string
}

func (q *Queries) UpdateInvoiceStatus(ctx context.Context, arg UpdateInvoiceStatusParams) error {
	_, err := q.db.Exec(ctx, updateInvoiceStatus, arg.ID, arg.Status)
	return err
}

const markInvoiceSent = `-- name: MarkInvoiceSent :exec
UPDATE invoices
SET status = 'SENT', sent_date = $2
WHERE id = $1
`

type MarkInvoiceSentParams struct {
	ID       int64
	SentDate pgtype.Date
}

func (q *Queries) MarkInvoiceSent(ctx context.Context, arg MarkInvoiceSentParams) error {
	_, err := q.db.Exec(ctx, markInvoiceSent, arg.ID, arg.SentDate)
	return err
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	var items []Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
