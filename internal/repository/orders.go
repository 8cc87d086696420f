package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, order_date, order_time, cost_bearer, extra_effort,
	remark, status, wait_until, inquiry_sent, patient_id, address_id, funeral_home_id, created_at`

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.OrderDate, &o.OrderTime, &o.CostBearer,
		&o.ExtraEffort, &o.Remark, &o.Status, &o.WaitUntil, &o.InquirySent,
		&o.PatientID, &o.AddressID, &o.FuneralHomeID, &o.CreatedAt)
	return o, err
}

// rowScanner is the scan target shared by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const nextOrderNumber = `-- name: NextOrderNumber :one
SELECT COALESCE(MAX(order_number), 0) + 1
FROM orders
`

// NextOrderNumber returns the next sequential order number. The unique
// constraint on order_number turns a creation race into a reported error.
func (q *Queries) NextOrderNumber(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, nextOrderNumber).Scan(&n)
	return n, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (order_number, order_date, order_time, cost_bearer, extra_effort,
	remark, status, patient_id, address_id, funeral_home_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber   int64
	OrderDate     pgtype.Date
	OrderTime     pgtype.Time
	CostBearer    string
	ExtraEffort   bool
	Remark        pgtype.Text
	Status        string
	PatientID     int64
	AddressID     int64
	FuneralHomeID pgtype.Int8
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.OrderNumber, arg.OrderDate, arg.OrderTime,
		arg.CostBearer, arg.ExtraEffort, arg.Remark, arg.Status,
		arg.PatientID, arg.AddressID, arg.FuneralHomeID)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderByNumber = `-- name: GetOrderByNumber :one
SELECT ` + orderColumns + `
FROM orders
WHERE order_number = $1
`

func (q *Queries) GetOrderByNumber(ctx context.Context, orderNumber int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByNumber, orderNumber))
}

const updateOrderStatus = `-- name: UpdateOrderStatus :exec
UPDATE orders
SET status = $2
WHERE id = $1
`

type UpdateOrderStatusParams struct {
	ID     int64
	Status string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) error {
	_, err := q.db.Exec(ctx, updateOrderStatus, arg.ID, arg.Status)
	return err
}

const updateOrderInquiry = `-- name: UpdateOrderInquiry :exec
UPDATE orders
SET status = $2, wait_until = $3, inquiry_sent = $4
WHERE id = $1
`

type UpdateOrderInquiryParams struct {
	ID          int64
	Status      string
	WaitUntil   pgtype.Date
	InquirySent bool
}

// UpdateOrderInquiry moves an order through the inquiry states together
// with its wait bookkeeping. wait_until is set iff the new status is WAIT.
func (q *Queries) UpdateOrderInquiry(ctx context.Context, arg UpdateOrderInquiryParams) error {
	_, err := q.db.Exec(ctx, updateOrderInquiry, arg.ID, arg.Status, arg.WaitUntil, arg.InquirySent)
	return err
}

const listOrdersByStatus = `-- name: ListOrdersByStatus :many
SELECT ` + orderColumns + `
FROM orders
WHERE status = $1
ORDER BY order_number
`

func (q *Queries) ListOrdersByStatus(ctx context.Context, status string) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByStatus, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const listRecentOrders = `-- name: ListRecentOrders :many
SELECT ` + orderColumns + `
FROM orders
ORDER BY order_number DESC
LIMIT $1
`

func (q *Queries) ListRecentOrders(ctx context.Context, limit int32) ([]Order, error) {
	rows, err := q.db.Query(ctx, listRecentOrders, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const listOverdueOrders = `-- name: ListOverdueOrders :many
SELECT ` + orderColumns + `
FROM orders o
WHERE o.status = 'SENT'
  AND EXISTS (
	SELECT 1
	FROM invoices i
	WHERE i.order_id = o.id
	  AND i.version = (SELECT MAX(i2.version) FROM invoices i2 WHERE i2.order_id = o.id)
	  AND i.sent_date IS NOT NULL
	  AND i.sent_date <= $1
  )
ORDER BY o.order_number
`

// ListOverdueOrders returns SENT orders whose latest invoice went out on or
// before the cutoff date and is still unpaid.
func (q *Queries) ListOverdueOrders(ctx context.Context, cutoff pgtype.Date) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOverdueOrders, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}
