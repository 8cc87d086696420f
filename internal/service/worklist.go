package service

import (
	"context"
	"sort"
	"time"

	"github.com/grubermed/totenschein/internal/domain"
	"github.com/grubermed/totenschein/internal/repository"
)

// WorklistSort selects the ordering of the email dispatch worklist.
type WorklistSort string

const (
	SortDateAsc    WorklistSort = "date_asc"
	SortDateDesc   WorklistSort = "date_desc"
	SortBearerAsc  WorklistSort = "bearer_asc"
	SortBearerDesc WorklistSort = "bearer_desc"
)

// WorklistItem is one order on a work queue, with the eligibility verdict
// for the queue's action attached.
type WorklistItem struct {
	Order   repository.Order
	Blocked string
}

// WaitItem is one waiting order. Due is set once the wait period elapsed
// without a reply, making the order eligible for manual release.
type WaitItem struct {
	Order   repository.Order
	Inquiry bool
	Due     bool
}

// ListReadyForEmail returns READY orders with the email dispatch verdict
// per order. Orders that fail a guard stay listed with the reason so the
// worklist shows why they cannot go out yet.
func (s *OrderService) ListReadyForEmail(ctx context.Context, by WorklistSort) ([]WorklistItem, error) {
	const op = "order.list_ready_email"

	orders, err := s.repo.ListOrdersByStatus(ctx, string(domain.OrderStatusReady))
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to list orders")
	}

	items := make([]WorklistItem, 0, len(orders))
	for _, order := range orders {
		item := WorklistItem{Order: order}
		if !s.oldEnough(order) {
			item.Blocked = domain.ErrorMessage(domain.ErrOrderTooYoung)
		} else {
			deliverable, err := EmailDeliverable(ctx, s.repo, order)
			if err != nil {
				return nil, err
			}
			if !deliverable {
				item.Blocked = domain.ErrorMessage(domain.ErrNoDeliverableEmail)
			}
		}
		items = append(items, item)
	}
	sortWorklist(items, by)
	return items, nil
}

// sortWorklist orders the email worklist; oldest order date first unless
// another sort is requested.
func sortWorklist(items []WorklistItem, by WorklistSort) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Order, items[j].Order
		switch by {
		case SortDateDesc:
			if !a.OrderDate.Time.Equal(b.OrderDate.Time) {
				return a.OrderDate.Time.After(b.OrderDate.Time)
			}
		case SortBearerAsc:
			if a.CostBearer != b.CostBearer {
				return a.CostBearer < b.CostBearer
			}
			if !a.OrderDate.Time.Equal(b.OrderDate.Time) {
				return a.OrderDate.Time.Before(b.OrderDate.Time)
			}
		case SortBearerDesc:
			if a.CostBearer != b.CostBearer {
				return a.CostBearer > b.CostBearer
			}
			if !a.OrderDate.Time.Equal(b.OrderDate.Time) {
				return a.OrderDate.Time.Before(b.OrderDate.Time)
			}
		default:
			if !a.OrderDate.Time.Equal(b.OrderDate.Time) {
				return a.OrderDate.Time.Before(b.OrderDate.Time)
			}
		}
		return a.ID < b.ID
	})
}

// ListReadyForPrint returns READY orders eligible for the postal path:
// old enough and without any deliverable email address.
func (s *OrderService) ListReadyForPrint(ctx context.Context) ([]WorklistItem, error) {
	const op = "order.list_ready_print"

	orders, err := s.repo.ListOrdersByStatus(ctx, string(domain.OrderStatusReady))
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to list orders")
	}

	items := make([]WorklistItem, 0, len(orders))
	for _, order := range orders {
		item := WorklistItem{Order: order}
		if !s.oldEnough(order) {
			item.Blocked = domain.ErrorMessage(domain.ErrOrderTooYoung)
		} else {
			deliverable, err := EmailDeliverable(ctx, s.repo, order)
			if err != nil {
				return nil, err
			}
			if deliverable {
				item.Blocked = domain.ErrorMessage(domain.ErrEmailDeliverable)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// ListWait returns the waiting orders with their inquiry bookkeeping.
func (s *OrderService) ListWait(ctx context.Context) ([]WaitItem, error) {
	const op = "order.list_wait"

	orders, err := s.repo.ListOrdersByStatus(ctx, string(domain.OrderStatusWait))
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to list orders")
	}

	today := s.today()
	items := make([]WaitItem, 0, len(orders))
	for _, order := range orders {
		item := WaitItem{Order: order, Inquiry: order.InquirySent}
		if !order.InquirySent {
			item.Due = true
		} else if order.WaitUntil.Valid && !order.WaitUntil.Time.After(today) {
			item.Due = true
		}
		items = append(items, item)
	}
	return items, nil
}

// ListInquiry returns the orders flagged for a commissioning inquiry.
func (s *OrderService) ListInquiry(ctx context.Context) ([]repository.Order, error) {
	const op = "order.list_inquiry"

	orders, err := s.repo.ListOrdersByStatus(ctx, string(domain.OrderStatusInquiry))
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to list orders")
	}
	return orders, nil
}

// ListPrint returns the orders currently queued for physical mailing.
func (s *OrderService) ListPrint(ctx context.Context) ([]repository.Order, error) {
	const op = "order.list_print"

	orders, err := s.repo.ListOrdersByStatus(ctx, string(domain.OrderStatusPrint))
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to list orders")
	}
	return orders, nil
}

// ListOverdue returns SENT orders whose newest invoice went out more than
// OverdueCutoffDays ago without a payment, the candidates for a reminder.
func (s *OrderService) ListOverdue(ctx context.Context) ([]repository.Order, error) {
	const op = "order.list_overdue"

	cutoff := s.today().AddDate(0, 0, -domain.OverdueCutoffDays)
	orders, err := s.repo.ListOverdueOrders(ctx, repository.DateOf(cutoff))
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to list overdue orders")
	}
	return orders, nil
}

// ListRecent returns the newest orders across all states.
func (s *OrderService) ListRecent(ctx context.Context, limit int32) ([]repository.Order, error) {
	const op = "order.list_recent"

	if limit <= 0 {
		limit = 50
	}
	orders, err := s.repo.ListRecentOrders(ctx, limit)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to list orders")
	}
	return orders, nil
}

// ListByStatus returns orders in one workflow state.
func (s *OrderService) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]repository.Order, error) {
	const op = "order.list_by_status"

	orders, err := s.repo.ListOrdersByStatus(ctx, string(status))
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to list orders")
	}
	return orders, nil
}

// History returns the append-only audit trail of an order, newest first.
func (s *OrderService) History(ctx context.Context, orderID int64) ([]repository.HistoryEntry, error) {
	const op = "order.history_list"

	if _, err := s.loadOrder(ctx, s.repo, orderID, op); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListHistoryByOrder(ctx, orderID)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to list history")
	}
	return entries, nil
}

// AddNote appends a free-form entry to an order's history.
func (s *OrderService) AddNote(ctx context.Context, orderID int64, date time.Time, text string) error {
	const op = "order.add_note"

	if text == "" {
		return domain.Invalid(op, "note text is required")
	}
	if date.IsZero() {
		date = s.today()
	}

	return s.repo.RunInTx(ctx, func(tx repository.Store) error {
		order, err := s.loadOrder(ctx, tx, orderID, op)
		if err != nil {
			return err
		}
		if _, err := tx.CreateHistoryEntry(ctx, repository.CreateHistoryEntryParams{
			OrderID:   order.ID,
			EntryDate: repository.DateOf(date),
			Text:      text,
		}); err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to record history")
		}
		return nil
	})
}
