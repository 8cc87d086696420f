package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the query surface of the store. Service tests substitute an
// in-memory implementation.
type Querier interface {
	CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error)
	GetAddress(ctx context.Context, id int64) (Address, error)
	FindAddress(ctx context.Context, arg FindAddressParams) (Address, error)
	UpdateAddressDistance(ctx context.Context, arg UpdateAddressDistanceParams) error

	CreatePatient(ctx context.Context, arg CreatePatientParams) (Patient, error)
	GetPatient(ctx context.Context, id int64) (Patient, error)
	CreateRelative(ctx context.Context, arg CreateRelativeParams) (Relative, error)
	ListRelativesByPatient(ctx context.Context, patientID int64) ([]Relative, error)
	CreateFuneralHome(ctx context.Context, arg CreateFuneralHomeParams) (FuneralHome, error)
	GetFuneralHome(ctx context.Context, id int64) (FuneralHome, error)
	ListFuneralHomes(ctx context.Context) ([]FuneralHome, error)
	CreateAuthority(ctx context.Context, arg CreateAuthorityParams) (Authority, error)
	GetAuthority(ctx context.Context, id int64) (Authority, error)
	LinkOrderAuthority(ctx context.Context, arg LinkOrderAuthorityParams) error
	ListAuthoritiesByOrder(ctx context.Context, orderID int64) ([]Authority, error)

	NextOrderNumber(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber int64) (Order, error)
	UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) error
	UpdateOrderInquiry(ctx context.Context, arg UpdateOrderInquiryParams) error
	ListOrdersByStatus(ctx context.Context, status string) ([]Order, error)
	ListRecentOrders(ctx context.Context, limit int32) ([]Order, error)
	ListOverdueOrders(ctx context.Context, cutoff pgtype.Date) ([]Order, error)

	CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	GetLatestInvoice(ctx context.Context, orderID int64) (Invoice, error)
	GetLatestCreatedInvoice(ctx context.Context, orderID int64) (Invoice, error)
	ListInvoicesByOrder(ctx context.Context, orderID int64) ([]Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, arg UpdateInvoiceStatusParams) error
	MarkInvoiceSent(ctx context.Context, arg MarkInvoiceSentParams) error

	CreateHistoryEntry(ctx context.Context, arg CreateHistoryEntryParams) (HistoryEntry, error)
	ListHistoryByOrder(ctx context.Context, orderID int64) ([]HistoryEntry, error)
}

// Store adds transactional composition to the query surface. RunInTx calls
// nest: inside a transaction an inner RunInTx runs in a savepoint, which is
// how batch dispatch isolates per-item failures under one commit.
type Store interface {
	Querier
	RunInTx(ctx context.Context, fn func(s Store) error) error
}

var _ Store = (*Queries)(nil)
