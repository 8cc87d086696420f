package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/grubermed/totenschein/internal/document"
	"github.com/grubermed/totenschein/internal/domain"
	"github.com/grubermed/totenschein/internal/email"
	"github.com/grubermed/totenschein/internal/ledger"
	"github.com/grubermed/totenschein/internal/repository"
)

// OrderService drives the billing workflow of an order through its states:
// TODO, INQUIRY, WAIT, READY, SENT, DONE and the postal counterpart PRINT.
// All transitions run through here; handlers never mutate status directly.
type OrderService struct {
	repo     repository.Store
	invoices *InvoiceService
	mailer   *email.Service
	ledger   ledger.Provider
	logger   *slog.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time
}

func NewOrderService(
	repo repository.Store,
	invoices *InvoiceService,
	mailer *email.Service,
	ledgerProvider ledger.Provider,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		repo:     repo,
		invoices: invoices,
		mailer:   mailer,
		ledger:   ledgerProvider,
		logger:   logger,
		now:      time.Now,
	}
}

// GetOrder loads one order by id.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (repository.Order, error) {
	return s.loadOrder(ctx, s.repo, id, "order.get")
}

func (s *OrderService) loadOrder(ctx context.Context, q repository.Querier, id int64, op string) (repository.Order, error) {
	order, err := q.GetOrder(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.Order{}, domain.NotFound(op, "order", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return repository.Order{}, domain.WrapError(err, domain.EINTERNAL, op, "failed to load order")
	}
	return order, nil
}

// requireStatus rejects the transition when the order is not in the
// expected state.
func requireStatus(op string, order repository.Order, want domain.OrderStatus) error {
	if order.Status == string(want) {
		return nil
	}
	if order.Status == string(domain.OrderStatusDone) {
		return domain.ErrOrderAlreadyDone
	}
	return domain.Errorf(domain.EINVALID, op, "order %d has status %s, expected %s", order.OrderNumber, order.Status, want)
}

// oldEnough implements the settling period: billing and inquiries start
// only once the order date lies at least MinOrderAgeDays in the past.
func (s *OrderService) oldEnough(order repository.Order) bool {
	cutoff := s.today().AddDate(0, 0, -domain.MinOrderAgeDays)
	return !order.OrderDate.Time.After(cutoff)
}

func (s *OrderService) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CompleteIntake moves a freshly registered order from TODO to READY once
// its required fields are filled in.
func (s *OrderService) CompleteIntake(ctx context.Context, id int64) error {
	const op = "order.complete_intake"

	return s.repo.RunInTx(ctx, func(tx repository.Store) error {
		order, err := s.loadOrder(ctx, tx, id, op)
		if err != nil {
			return err
		}
		if err := requireStatus(op, order, domain.OrderStatusTodo); err != nil {
			return err
		}
		if err := s.transition(ctx, tx, order, domain.OrderStatusReady, "Auftrag vervollstaendigt"); err != nil {
			return err
		}
		return nil
	})
}

// MarkForInquiry flags a funeral home order for commissioning confirmation.
func (s *OrderService) MarkForInquiry(ctx context.Context, id int64) error {
	const op = "order.mark_inquiry"

	return s.repo.RunInTx(ctx, func(tx repository.Store) error {
		order, err := s.loadOrder(ctx, tx, id, op)
		if err != nil {
			return err
		}
		if err := requireStatus(op, order, domain.OrderStatusReady); err != nil {
			return err
		}
		if domain.CostBearer(order.CostBearer) != domain.CostBearerFuneralHome {
			return domain.ErrNotFuneralHomeBearer
		}
		if !order.FuneralHomeID.Valid {
			return domain.ErrNoFuneralHome
		}
		if !s.oldEnough(order) {
			return domain.ErrOrderTooYoung
		}
		return s.transition(ctx, tx, order, domain.OrderStatusInquiry, "Zur Anfrage beim Bestatter vorgemerkt")
	})
}

// SendInquiry emails the commissioning inquiry to the funeral home and
// parks the order in WAIT until a reply arrives or the wait period ends.
func (s *OrderService) SendInquiry(ctx context.Context, id int64) error {
	const op = "order.send_inquiry"

	order, err := s.loadOrder(ctx, s.repo, id, op)
	if err != nil {
		return err
	}
	if err := requireStatus(op, order, domain.OrderStatusInquiry); err != nil {
		return err
	}
	if !order.FuneralHomeID.Valid {
		return domain.ErrNoFuneralHome
	}

	fh, err := s.repo.GetFuneralHome(ctx, order.FuneralHomeID.Int64)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to load funeral home")
	}
	if !fh.Email.Valid || fh.Email.String == "" {
		return domain.ErrNoFuneralHomeEmail
	}

	patient, err := s.repo.GetPatient(ctx, order.PatientID)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to load patient")
	}

	if err := s.mailer.SendInquiry(ctx, email.InquiryMail{
		To:          fh.Email.String,
		OrderNumber: order.OrderNumber,
		OrderDate:   order.OrderDate.Time.Format("02.01.2006"),
		PatientName: fmt.Sprintf("%s %s", patient.FirstName, patient.LastName),
	}); err != nil {
		return domain.WrapError(err, domain.EUNAVAILABLE, op, "failed to send inquiry email")
	}

	waitUntil := s.today().AddDate(0, 0, domain.WaitPeriodDays)
	return s.repo.RunInTx(ctx, func(tx repository.Store) error {
		if err := tx.UpdateOrderInquiry(ctx, repository.UpdateOrderInquiryParams{
			ID:          order.ID,
			Status:      string(domain.OrderStatusWait),
			WaitUntil:   repository.DateOf(waitUntil),
			InquirySent: true,
		}); err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to update order")
		}
		return s.history(ctx, tx, order,
			fmt.Sprintf("Anfrage an Bestatter %s versandt, Wiedervorlage %s", fh.Name, waitUntil.Format("02.01.2006")))
	})
}

// ConfirmInquiryReplies returns waiting inquiry orders to READY after the
// funeral home confirmed commissioning. The wait bookkeeping is cleared.
func (s *OrderService) ConfirmInquiryReplies(ctx context.Context, ids []int64) error {
	const op = "order.confirm_inquiry"

	return s.repo.RunInTx(ctx, func(tx repository.Store) error {
		for _, id := range ids {
			order, err := s.loadOrder(ctx, tx, id, op)
			if err != nil {
				return err
			}
			if err := requireStatus(op, order, domain.OrderStatusWait); err != nil {
				return err
			}
			if !order.InquirySent {
				return domain.Errorf(domain.EINVALID, op, "order %d is waiting without a sent inquiry", order.OrderNumber)
			}
			if err := tx.UpdateOrderInquiry(ctx, repository.UpdateOrderInquiryParams{
				ID:          order.ID,
				Status:      string(domain.OrderStatusReady),
				WaitUntil:   pgtype.Date{},
				InquirySent: false,
			}); err != nil {
				return domain.WrapError(err, domain.EINTERNAL, op, "failed to update order")
			}
			if err := s.history(ctx, tx, order, "Rueckmeldung des Bestatters erhalten, Auftrag wieder freigegeben"); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResumeWait returns a waiting order to READY through the manual review
// path: either the order never had an inquiry out, or its wait period has
// elapsed without a reply.
func (s *OrderService) ResumeWait(ctx context.Context, id int64) error {
	const op = "order.resume_wait"

	return s.repo.RunInTx(ctx, func(tx repository.Store) error {
		order, err := s.loadOrder(ctx, tx, id, op)
		if err != nil {
			return err
		}
		if err := requireStatus(op, order, domain.OrderStatusWait); err != nil {
			return err
		}
		if order.InquirySent && order.WaitUntil.Valid && order.WaitUntil.Time.After(s.today()) {
			return domain.ErrInquiryPending
		}
		if err := tx.UpdateOrderInquiry(ctx, repository.UpdateOrderInquiryParams{
			ID:          order.ID,
			Status:      string(domain.OrderStatusReady),
			WaitUntil:   pgtype.Date{},
			InquirySent: false,
		}); err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to update order")
		}
		return s.history(ctx, tx, order, "Wartefrist beendet, Auftrag wieder freigegeben")
	})
}

// DispatchEmail bills a READY order over the email path: a new invoice
// version is created and committed, the document goes out as attachment,
// and only a successful send advances the order to SENT. A failed send
// leaves the invoice CREATED and the order READY.
func (s *OrderService) DispatchEmail(ctx context.Context, id int64) error {
	const op = "order.dispatch_email"

	order, err := s.loadOrder(ctx, s.repo, id, op)
	if err != nil {
		return err
	}
	recipient, err := s.checkEmailDispatch(ctx, s.repo, order, op)
	if err != nil {
		return err
	}

	var inv repository.Invoice
	var doc []byte
	err = s.repo.RunInTx(ctx, func(tx repository.Store) error {
		inv, doc, err = s.invoices.createTx(ctx, tx, CreateInvoiceParams{
			OrderID:     order.ID,
			Kind:        domain.InvoiceKindFirst,
			InvoiceDate: s.today(),
		})
		return err
	})
	if err != nil {
		return err
	}

	if err := s.sendInvoiceMail(ctx, order, inv, doc, *recipient); err != nil {
		return err
	}

	return s.repo.RunInTx(ctx, func(tx repository.Store) error {
		return s.finishEmailDispatch(ctx, tx, order, inv, *recipient)
	})
}

// checkEmailDispatch re-evaluates the email eligibility guards.
func (s *OrderService) checkEmailDispatch(ctx context.Context, q repository.Querier, order repository.Order, op string) (*Recipient, error) {
	if err := requireStatus(op, order, domain.OrderStatusReady); err != nil {
		return nil, err
	}
	if !s.oldEnough(order) {
		return nil, domain.ErrOrderTooYoung
	}
	recipient, err := ResolveEmailRecipient(ctx, q, order)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, domain.ErrNoDeliverableEmail
	}
	return recipient, nil
}

func (s *OrderService) sendInvoiceMail(ctx context.Context, order repository.Order, inv repository.Invoice, doc []byte, recipient Recipient) error {
	const op = "order.dispatch_email"

	amount, err := repository.NumericToDecimal(inv.Amount)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "invalid invoice amount")
	}

	patient, err := s.repo.GetPatient(ctx, order.PatientID)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to load patient")
	}

	if err := s.mailer.SendInvoice(ctx, email.InvoiceMail{
		To:           recipient.Email,
		OrderNumber:  order.OrderNumber,
		Version:      inv.Version,
		PatientName:  fmt.Sprintf("%s %s", patient.FirstName, patient.LastName),
		InvoiceDate:  inv.InvoiceDate.Time.Format("02.01.2006"),
		Amount:       amount.StringFixed(2),
		DocumentName: fmt.Sprintf("Rechnung_%d_v%d.html", order.OrderNumber, inv.Version),
		Document:     doc,
		Reminder:     inv.Kind == string(domain.InvoiceKindReminder),
	}); err != nil {
		s.logger.Error("invoice dispatch failed, order stays ready",
			"order_number", order.OrderNumber, "error", err)
		return domain.WrapError(err, domain.EUNAVAILABLE, op, "failed to send invoice email")
	}
	return nil
}

func (s *OrderService) finishEmailDispatch(ctx context.Context, tx repository.Store, order repository.Order, inv repository.Invoice, recipient Recipient) error {
	const op = "order.dispatch_email"

	if err := tx.MarkInvoiceSent(ctx, repository.MarkInvoiceSentParams{
		ID:       inv.ID,
		SentDate: repository.DateOf(s.today()),
	}); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to mark invoice sent")
	}
	return s.transition(ctx, tx, order, domain.OrderStatusSent,
		fmt.Sprintf("Rechnung Nr. %s per E-Mail an %s versandt", InvoiceRef(order.OrderNumber, inv.Version), recipient.Email))
}

// MarkForPrint bills a READY order over the postal path. The invoice stays
// CREATED until the physical mailing batch is confirmed; for relatives a
// condolence cover letter is rendered alongside.
func (s *OrderService) MarkForPrint(ctx context.Context, id int64) error {
	const op = "order.mark_print"

	return s.repo.RunInTx(ctx, func(tx repository.Store) error {
		order, err := s.loadOrder(ctx, tx, id, op)
		if err != nil {
			return err
		}
		if err := requireStatus(op, order, domain.OrderStatusReady); err != nil {
			return err
		}
		if !s.oldEnough(order) {
			return domain.ErrOrderTooYoung
		}
		deliverable, err := EmailDeliverable(ctx, tx, order)
		if err != nil {
			return err
		}
		if deliverable {
			return domain.ErrEmailDeliverable
		}

		inv, _, err := s.invoices.createTx(ctx, tx, CreateInvoiceParams{
			OrderID:     order.ID,
			Kind:        domain.InvoiceKindFirst,
			InvoiceDate: s.today(),
		})
		if err != nil {
			return err
		}

		if domain.CostBearer(order.CostBearer) == domain.CostBearerRelatives {
			if err := s.renderCoverLetter(ctx, tx, order); err != nil {
				return err
			}
		}

		return s.transition(ctx, tx, order, domain.OrderStatusPrint,
			fmt.Sprintf("Rechnung Nr. %s zum Druck vorgemerkt", InvoiceRef(order.OrderNumber, inv.Version)))
	})
}

func (s *OrderService) renderCoverLetter(ctx context.Context, tx repository.Store, order repository.Order) error {
	const op = "order.cover_letter"

	party, err := ResolveBillingParty(ctx, tx, order)
	if err != nil {
		return err
	}
	if party == nil {
		return domain.ErrNoBillingParty
	}
	block, err := s.invoices.recipientBlock(ctx, tx, *party)
	if err != nil {
		return err
	}
	patient, err := tx.GetPatient(ctx, order.PatientID)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to load patient")
	}

	letter, err := s.invoices.renderer.RenderCoverLetter(document.CoverLetterVM{
		Letterhead:  s.invoices.letterhead,
		Recipient:   block,
		OrderNumber: order.OrderNumber,
		Date:        s.today().Format("02.01.2006"),
		PatientName: fmt.Sprintf("%s %s", patient.FirstName, patient.LastName),
	})
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to render cover letter")
	}

	key := fmt.Sprintf("documents/Anschreiben_%d.html", order.OrderNumber)
	if _, err := s.invoices.documents.Put(ctx, key, bytes.NewReader(letter)); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to store cover letter")
	}
	return nil
}

// ConfirmPrintBatch records that a physical mailing batch went out on the
// given date. Every confirmed order's most recent open invoice is marked
// sent and the order advances to SENT.
func (s *OrderService) ConfirmPrintBatch(ctx context.Context, ids []int64, dispatchDate time.Time) error {
	const op = "order.confirm_print"

	if dispatchDate.IsZero() {
		return domain.Invalid(op, "dispatch date is required")
	}

	return s.repo.RunInTx(ctx, func(tx repository.Store) error {
		for _, id := range ids {
			order, err := s.loadOrder(ctx, tx, id, op)
			if err != nil {
				return err
			}
			if err := requireStatus(op, order, domain.OrderStatusPrint); err != nil {
				return err
			}

			inv, err := tx.GetLatestCreatedInvoice(ctx, order.ID)
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNoInvoice
			}
			if err != nil {
				return domain.WrapError(err, domain.EINTERNAL, op, "failed to load invoice")
			}

			if err := tx.MarkInvoiceSent(ctx, repository.MarkInvoiceSentParams{
				ID:       inv.ID,
				SentDate: repository.DateOf(dispatchDate),
			}); err != nil {
				return domain.WrapError(err, domain.EINTERNAL, op, "failed to mark invoice sent")
			}
			if err := s.transition(ctx, tx, order, domain.OrderStatusSent,
				fmt.Sprintf("Rechnung Nr. %s per Post versandt am %s", InvoiceRef(order.OrderNumber, inv.Version), dispatchDate.Format("02.01.2006"))); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordPaymentParams identifies a payment receipt. Orders may be
// addressed by id or by order number.
type RecordPaymentParams struct {
	OrderID     int64
	OrderNumber int64
	Amount      decimal.Decimal
	Date        time.Time
	Payer       string
}

// PaymentResult reports the completed booking. LedgerWarning is set when
// the external ledger post failed after the local transition committed.
type PaymentResult struct {
	Order         repository.Order
	Invoice       repository.Invoice
	LedgerWarning string
}

// RecordPayment completes an order: the latest invoice becomes PAID, the
// order DONE, and the receipt is posted to the external ledger. A ledger
// failure does not roll back the local booking; it is surfaced as a
// warning.
func (s *OrderService) RecordPayment(ctx context.Context, params RecordPaymentParams) (PaymentResult, error) {
	const op = "order.record_payment"

	if params.Amount.IsNegative() {
		return PaymentResult{}, domain.Invalid(op, "payment amount must not be negative")
	}
	if params.Payer == "" {
		return PaymentResult{}, domain.Invalid(op, "payer name is required")
	}
	if params.Date.IsZero() {
		return PaymentResult{}, domain.Invalid(op, "payment date is required")
	}

	var result PaymentResult
	err := s.repo.RunInTx(ctx, func(tx repository.Store) error {
		order, err := s.resolvePaymentOrder(ctx, tx, params, op)
		if err != nil {
			return err
		}
		if order.Status == string(domain.OrderStatusDone) {
			return domain.ErrOrderAlreadyDone
		}

		inv, err := tx.GetLatestInvoice(ctx, order.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNoInvoice
		}
		if err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to load invoice")
		}

		if err := tx.UpdateInvoiceStatus(ctx, repository.UpdateInvoiceStatusParams{
			ID:     inv.ID,
			Status: string(domain.InvoiceStatusPaid),
		}); err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to mark invoice paid")
		}

		if err := s.transition(ctx, tx, order, domain.OrderStatusDone,
			fmt.Sprintf("Zahlung ueber %s EUR von %s am %s erhalten",
				params.Amount.StringFixed(2), params.Payer, params.Date.Format("02.01.2006"))); err != nil {
			return err
		}

		order.Status = string(domain.OrderStatusDone)
		result.Order = order
		result.Invoice = inv
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}

	// The local booking is committed; the ledger post happens after and
	// its failure only warns.
	if err := s.ledger.PostTransaction(ctx, ledger.Transaction{
		Payee:      params.Payer,
		Amount:     params.Amount,
		References: []string{InvoiceRef(result.Order.OrderNumber, result.Invoice.Version)},
		Date:       params.Date.Format("2006-01-02"),
	}); err != nil {
		s.logger.Error("ledger post failed after payment booking",
			"order_number", result.Order.OrderNumber, "error", err)
		result.LedgerWarning = fmt.Sprintf("payment booked, but ledger post failed: %v", err)
	}

	return result, nil
}

func (s *OrderService) resolvePaymentOrder(ctx context.Context, q repository.Querier, params RecordPaymentParams, op string) (repository.Order, error) {
	if params.OrderID != 0 {
		return s.loadOrder(ctx, q, params.OrderID, op)
	}
	order, err := q.GetOrderByNumber(ctx, params.OrderNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.Order{}, domain.NotFound(op, "order", fmt.Sprintf("number %d", params.OrderNumber))
	}
	if err != nil {
		return repository.Order{}, domain.WrapError(err, domain.EINTERNAL, op, "failed to load order")
	}
	return order, nil
}

// transition advances the order status and records the history entry that
// documents the step.
func (s *OrderService) transition(ctx context.Context, tx repository.Store, order repository.Order, to domain.OrderStatus, entry string) error {
	const op = "order.transition"

	if err := tx.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
		ID:     order.ID,
		Status: string(to),
	}); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to update order status")
	}
	if err := s.history(ctx, tx, order, entry); err != nil {
		return err
	}

	s.logger.Info("order transitioned",
		"order_number", order.OrderNumber,
		"from", order.Status,
		"to", string(to),
	)
	return nil
}

func (s *OrderService) history(ctx context.Context, tx repository.Store, order repository.Order, text string) error {
	if _, err := tx.CreateHistoryEntry(ctx, repository.CreateHistoryEntryParams{
		OrderID:   order.ID,
		EntryDate: repository.DateOf(s.today()),
		Text:      text,
	}); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "order.history", "failed to record history")
	}
	return nil
}
