package service

import (
	"context"

	"github.com/grubermed/totenschein/internal/domain"
	"github.com/grubermed/totenschein/internal/repository"
)

// Dispatched reports one successfully billed order of a batch run.
type Dispatched struct {
	OrderID     int64
	OrderNumber int64
	InvoiceRef  string
	Recipient   string
}

// Failure reports one order that could not be dispatched. The rest of the
// batch is unaffected.
type Failure struct {
	OrderID int64
	Err     string
}

// BatchResult summarizes a batch dispatch run.
type BatchResult struct {
	Sent   []Dispatched
	Failed []Failure
}

// DispatchBatch bills a set of READY orders over the email path in one
// run. Eligibility is re-checked per order at processing time, so a stale
// selection cannot dispatch an order that moved on in the meantime. Each
// order runs in its own savepoint inside one surrounding transaction: a
// failing order is rolled back and recorded, the others proceed. Only a
// failing commit of the surrounding transaction discards the whole run.
func (s *OrderService) DispatchBatch(ctx context.Context, orderIDs []int64) (BatchResult, error) {
	const op = "order.dispatch_batch"

	var result BatchResult
	err := s.repo.RunInTx(ctx, func(outer repository.Store) error {
		for _, id := range orderIDs {
			dispatched, err := s.dispatchBatchItem(ctx, outer, id)
			if err != nil {
				s.logger.Warn("batch dispatch item failed",
					"order_id", id, "error", err)
				result.Failed = append(result.Failed, Failure{
					OrderID: id,
					Err:     domain.ErrorMessage(err),
				})
				continue
			}
			result.Sent = append(result.Sent, dispatched)
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, domain.WrapError(err, domain.EINTERNAL, op, "batch dispatch failed")
	}

	s.logger.Info("batch dispatch finished",
		"requested", len(orderIDs),
		"sent", len(result.Sent),
		"failed", len(result.Failed),
	)
	return result, nil
}

// dispatchBatchItem runs one order's full dispatch sequence inside a
// savepoint on the surrounding transaction.
func (s *OrderService) dispatchBatchItem(ctx context.Context, outer repository.Store, id int64) (Dispatched, error) {
	const op = "order.dispatch_batch"

	var dispatched Dispatched
	err := outer.RunInTx(ctx, func(tx repository.Store) error {
		order, err := s.loadOrder(ctx, tx, id, op)
		if err != nil {
			return err
		}
		recipient, err := s.checkEmailDispatch(ctx, tx, order, op)
		if err != nil {
			return err
		}

		inv, doc, err := s.invoices.createTx(ctx, tx, CreateInvoiceParams{
			OrderID:     order.ID,
			Kind:        domain.InvoiceKindFirst,
			InvoiceDate: s.today(),
		})
		if err != nil {
			return err
		}

		// A send failure rolls the savepoint back, so no invoice row
		// survives for an email that never went out.
		if err := s.sendInvoiceMail(ctx, order, inv, doc, *recipient); err != nil {
			return err
		}
		if err := s.finishEmailDispatch(ctx, tx, order, inv, *recipient); err != nil {
			return err
		}

		dispatched = Dispatched{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			InvoiceRef:  InvoiceRef(order.OrderNumber, inv.Version),
			Recipient:   recipient.Email,
		}
		return nil
	})
	if err != nil {
		return Dispatched{}, err
	}
	return dispatched, nil
}
