package domain

import "fmt"

// CostBearer identifies the party financially responsible for an order.
type CostBearer string

const (
	CostBearerRelatives   CostBearer = "RELATIVES"
	CostBearerFuneralHome CostBearer = "FUNERAL_HOME"
	CostBearerAuthority   CostBearer = "AUTHORITY"
	CostBearerUnknown     CostBearer = "UNKNOWN"
)

// ParseCostBearer validates a raw string as a cost bearer.
// Parsing happens once at the API boundary; business logic trusts the type.
func ParseCostBearer(s string) (CostBearer, error) {
	switch CostBearer(s) {
	case CostBearerRelatives, CostBearerFuneralHome, CostBearerAuthority, CostBearerUnknown:
		return CostBearer(s), nil
	}
	return "", fmt.Errorf("unknown cost bearer: %q", s)
}

// OrderStatus is the workflow state of an order.
type OrderStatus string

const (
	OrderStatusTodo    OrderStatus = "TODO"
	OrderStatusInquiry OrderStatus = "INQUIRY"
	OrderStatusWait    OrderStatus = "WAIT"
	OrderStatusReady   OrderStatus = "READY"
	OrderStatusSent    OrderStatus = "SENT"
	OrderStatusDone    OrderStatus = "DONE"
	OrderStatusPrint   OrderStatus = "PRINT"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusTodo, OrderStatusInquiry, OrderStatusWait,
		OrderStatusReady, OrderStatusSent, OrderStatusDone, OrderStatusPrint:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("unknown order status: %q", s)
}

// InvoiceKind distinguishes the billing document variants.
type InvoiceKind string

const (
	InvoiceKindFirst        InvoiceKind = "FIRST_INVOICE"
	InvoiceKindReminder     InvoiceKind = "REMINDER"
	InvoiceKindCancellation InvoiceKind = "CANCELLATION"
)

func ParseInvoiceKind(s string) (InvoiceKind, error) {
	switch InvoiceKind(s) {
	case InvoiceKindFirst, InvoiceKindReminder, InvoiceKindCancellation:
		return InvoiceKind(s), nil
	}
	return "", fmt.Errorf("unknown invoice kind: %q", s)
}

// InvoiceStatus is the lifecycle state of one invoice version.
// PAID and CANCELED are terminal.
type InvoiceStatus string

const (
	InvoiceStatusCreated  InvoiceStatus = "CREATED"
	InvoiceStatusSent     InvoiceStatus = "SENT"
	InvoiceStatusPaid     InvoiceStatus = "PAID"
	InvoiceStatusCanceled InvoiceStatus = "CANCELED"
)

func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch InvoiceStatus(s) {
	case InvoiceStatusCreated, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusCanceled:
		return InvoiceStatus(s), nil
	}
	return "", fmt.Errorf("unknown invoice status: %q", s)
}
