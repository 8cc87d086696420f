package handler

import (
	"fmt"

	"github.com/grubermed/totenschein/internal/repository"
	"github.com/grubermed/totenschein/internal/service"
)

const dateLayout = "2006-01-02"

// orderView is the JSON shape of an order.
type orderView struct {
	ID          int64  `json:"id"`
	OrderNumber int64  `json:"order_number"`
	OrderDate   string `json:"order_date"`
	OrderTime   string `json:"order_time"`
	CostBearer  string `json:"cost_bearer"`
	ExtraEffort bool   `json:"extra_effort"`
	Remark      string `json:"remark,omitempty"`
	Status      string `json:"status"`
	WaitUntil   string `json:"wait_until,omitempty"`
	InquirySent bool   `json:"inquiry_sent"`
	PatientID   int64  `json:"patient_id"`
}

func toOrderView(o repository.Order) orderView {
	v := orderView{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		CostBearer:  o.CostBearer,
		ExtraEffort: o.ExtraEffort,
		Status:      o.Status,
		InquirySent: o.InquirySent,
		PatientID:   o.PatientID,
	}
	if o.OrderDate.Valid {
		v.OrderDate = o.OrderDate.Time.Format(dateLayout)
	}
	if o.OrderTime.Valid {
		hour, minute := repository.Clock(o.OrderTime)
		v.OrderTime = formatClock(hour, minute)
	}
	if o.Remark.Valid {
		v.Remark = o.Remark.String
	}
	if o.WaitUntil.Valid {
		v.WaitUntil = o.WaitUntil.Time.Format(dateLayout)
	}
	return v
}

func toOrderViews(orders []repository.Order) []orderView {
	views := make([]orderView, len(orders))
	for i, o := range orders {
		views[i] = toOrderView(o)
	}
	return views
}

func formatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// invoiceView is the JSON shape of an invoice version.
type invoiceView struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	Version     int32  `json:"version"`
	Kind        string `json:"kind"`
	InvoiceDate string `json:"invoice_date"`
	Amount      string `json:"amount"`
	Remark      string `json:"remark,omitempty"`
	Status      string `json:"status"`
	SentDate    string `json:"sent_date,omitempty"`
}

func toInvoiceView(inv repository.Invoice) invoiceView {
	v := invoiceView{
		ID:      inv.ID,
		OrderID: inv.OrderID,
		Version: inv.Version,
		Kind:    inv.Kind,
		Status:  inv.Status,
	}
	if inv.InvoiceDate.Valid {
		v.InvoiceDate = inv.InvoiceDate.Time.Format(dateLayout)
	}
	if amount, err := repository.NumericToDecimal(inv.Amount); err == nil {
		v.Amount = amount.StringFixed(2)
	}
	if inv.Remark.Valid {
		v.Remark = inv.Remark.String
	}
	if inv.SentDate.Valid {
		v.SentDate = inv.SentDate.Time.Format(dateLayout)
	}
	return v
}

func toInvoiceViews(invoices []repository.Invoice) []invoiceView {
	views := make([]invoiceView, len(invoices))
	for i, inv := range invoices {
		views[i] = toInvoiceView(inv)
	}
	return views
}

// historyView is one audit trail entry.
type historyView struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

func toHistoryViews(entries []repository.HistoryEntry) []historyView {
	views := make([]historyView, len(entries))
	for i, h := range entries {
		if h.EntryDate.Valid {
			views[i].Date = h.EntryDate.Time.Format(dateLayout)
		}
		views[i].Text = h.Text
	}
	return views
}

// worklistView is one work queue row.
type worklistView struct {
	Order   orderView `json:"order"`
	Blocked string    `json:"blocked,omitempty"`
}

func toWorklistViews(items []service.WorklistItem) []worklistView {
	views := make([]worklistView, len(items))
	for i, item := range items {
		views[i] = worklistView{Order: toOrderView(item.Order), Blocked: item.Blocked}
	}
	return views
}

// waitView is one waiting order.
type waitView struct {
	Order   orderView `json:"order"`
	Inquiry bool      `json:"inquiry"`
	Due     bool      `json:"due"`
}

func toWaitViews(items []service.WaitItem) []waitView {
	views := make([]waitView, len(items))
	for i, item := range items {
		views[i] = waitView{Order: toOrderView(item.Order), Inquiry: item.Inquiry, Due: item.Due}
	}
	return views
}
