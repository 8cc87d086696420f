package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/grubermed/totenschein/internal/distance"
	"github.com/grubermed/totenschein/internal/document"
	"github.com/grubermed/totenschein/internal/domain"
	"github.com/grubermed/totenschein/internal/fees"
	"github.com/grubermed/totenschein/internal/repository"
	"github.com/grubermed/totenschein/internal/storage"
)

// InvoiceService creates and manages the versioned invoice snapshots of an
// order. Amounts are computed once at creation time and never touched
// afterwards.
type InvoiceService struct {
	repo       repository.Store
	calc       *fees.Calculator
	distance   distance.Provider
	renderer   *document.Renderer
	documents  storage.Storage
	letterhead document.Letterhead
	logger     *slog.Logger
}

func NewInvoiceService(
	repo repository.Store,
	calc *fees.Calculator,
	dist distance.Provider,
	renderer *document.Renderer,
	documents storage.Storage,
	letterhead document.Letterhead,
	logger *slog.Logger,
) *InvoiceService {
	return &InvoiceService{
		repo:       repo,
		calc:       calc,
		distance:   dist,
		renderer:   renderer,
		documents:  documents,
		letterhead: letterhead,
		logger:     logger,
	}
}

// CreateInvoiceParams describes one billing event.
type CreateInvoiceParams struct {
	OrderID     int64
	Kind        domain.InvoiceKind
	InvoiceDate time.Time
	Remark      string
}

// CreateInvoice creates the next invoice version for an order in its own
// transaction. Workflow transitions call createTx within theirs instead.
func (s *InvoiceService) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (repository.Invoice, error) {
	var inv repository.Invoice
	err := s.repo.RunInTx(ctx, func(tx repository.Store) error {
		var err error
		inv, _, err = s.createTx(ctx, tx, params)
		return err
	})
	return inv, err
}

// LatestInvoice returns the highest invoice version of an order.
func (s *InvoiceService) LatestInvoice(ctx context.Context, orderID int64) (repository.Invoice, error) {
	inv, err := s.repo.GetLatestInvoice(ctx, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.Invoice{}, domain.ErrNoInvoice
	}
	if err != nil {
		return repository.Invoice{}, domain.WrapError(err, domain.EINTERNAL, "invoice.latest", "failed to load invoice")
	}
	return inv, nil
}

// ListInvoices returns all invoice versions of an order, oldest first.
func (s *InvoiceService) ListInvoices(ctx context.Context, orderID int64) ([]repository.Invoice, error) {
	invoices, err := s.repo.ListInvoicesByOrder(ctx, orderID)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "invoice.list", "failed to list invoices")
	}
	return invoices, nil
}

// Document returns the rendered document bytes of an invoice.
func (s *InvoiceService) Document(ctx context.Context, invoiceID int64) ([]byte, error) {
	const op = "invoice.document"

	inv, err := s.invoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.DocumentKey.Valid {
		return nil, domain.NotFound(op, "document", fmt.Sprintf("invoice %d", invoiceID))
	}

	rc, err := s.documents.Get(ctx, inv.DocumentKey.String)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to open stored document")
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to read stored document")
	}
	return buf.Bytes(), nil
}

func (s *InvoiceService) invoiceByID(ctx context.Context, invoiceID int64) (repository.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.Invoice{}, domain.NotFound("invoice.get", "invoice", fmt.Sprintf("%d", invoiceID))
	}
	if err != nil {
		return repository.Invoice{}, domain.WrapError(err, domain.EINTERNAL, "invoice.get", "failed to load invoice")
	}
	return inv, nil
}

// createTx creates the next invoice version inside the caller's
// transaction and returns the persisted row together with the rendered
// document, so dispatch can attach it without a storage round trip.
func (s *InvoiceService) createTx(ctx context.Context, tx repository.Store, params CreateInvoiceParams) (repository.Invoice, []byte, error) {
	const op = "invoice.create"

	order, err := tx.GetOrder(ctx, params.OrderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.Invoice{}, nil, domain.NotFound(op, "order", fmt.Sprintf("%d", params.OrderID))
	}
	if err != nil {
		return repository.Invoice{}, nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load order")
	}

	// Supersede: the previous version is canceled only while still open.
	// Sent or paid invoices are never touched.
	var version int32
	latest, err := tx.GetLatestInvoice(ctx, order.ID)
	switch {
	case err == nil:
		version = latest.Version
		if latest.Status == string(domain.InvoiceStatusCreated) {
			if err := tx.UpdateInvoiceStatus(ctx, repository.UpdateInvoiceStatusParams{
				ID:     latest.ID,
				Status: string(domain.InvoiceStatusCanceled),
			}); err != nil {
				return repository.Invoice{}, nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to cancel superseded invoice")
			}
		}
	case errors.Is(err, pgx.ErrNoRows):
		version = 0
	default:
		return repository.Invoice{}, nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to read invoice versions")
	}

	km, err := s.resolveDistance(ctx, tx, order)
	if err != nil {
		return repository.Invoice{}, nil, err
	}

	hour, minute := repository.Clock(order.OrderTime)
	breakdown, err := s.calc.Compute(fees.ComputeInput{
		Date:        order.OrderDate.Time,
		Hour:        hour,
		Minute:      minute,
		DistanceKm:  km,
		ExtraEffort: order.ExtraEffort,
	})
	if err != nil {
		return repository.Invoice{}, nil, domain.WrapError(err, domain.EINVALID, op, "fee computation failed")
	}

	party, err := ResolveBillingParty(ctx, tx, order)
	if err != nil {
		return repository.Invoice{}, nil, err
	}
	if party == nil {
		return repository.Invoice{}, nil, domain.ErrNoBillingParty
	}

	patient, err := tx.GetPatient(ctx, order.PatientID)
	if err != nil {
		return repository.Invoice{}, nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load patient")
	}

	block, err := s.recipientBlock(ctx, tx, *party)
	if err != nil {
		return repository.Invoice{}, nil, err
	}

	vm := document.InvoiceVM{
		Letterhead:  s.letterhead,
		Recipient:   block,
		OrderNumber: order.OrderNumber,
		Version:     version + 1,
		Kind:        string(params.Kind),
		InvoiceDate: params.InvoiceDate.Format("02.01.2006"),
		PatientName: fmt.Sprintf("%s %s", patient.FirstName, patient.LastName),
		Total:       breakdown.Total.StringFixed(2),
		Remark:      params.Remark,
	}
	if patient.DateOfDeath.Valid {
		vm.DeathDate = patient.DateOfDeath.Time.Format("02.01.2006")
	}
	for _, item := range breakdown.Items {
		vm.Lines = append(vm.Lines, document.LineVM{
			Code:        item.Code,
			Description: item.Description,
			Amount:      item.Amount.StringFixed(2),
		})
	}

	doc, err := s.renderer.RenderInvoice(vm)
	if err != nil {
		return repository.Invoice{}, nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to render invoice document")
	}

	key := fmt.Sprintf("documents/Rechnung_%d_v%d.html", order.OrderNumber, version+1)
	if _, err := s.documents.Put(ctx, key, bytes.NewReader(doc)); err != nil {
		return repository.Invoice{}, nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to store invoice document")
	}

	inv, err := tx.CreateInvoice(ctx, repository.CreateInvoiceParams{
		OrderID:     order.ID,
		Version:     version + 1,
		Kind:        string(params.Kind),
		InvoiceDate: repository.DateOf(params.InvoiceDate),
		Amount:      repository.DecimalToNumeric(breakdown.Total),
		Remark:      repository.TextOf(params.Remark),
		Status:      string(domain.InvoiceStatusCreated),
		DocumentKey: repository.TextOf(key),
	})
	if err != nil {
		return repository.Invoice{}, nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to persist invoice")
	}

	if _, err := tx.CreateHistoryEntry(ctx, repository.CreateHistoryEntryParams{
		OrderID:   order.ID,
		EntryDate: repository.DateOf(params.InvoiceDate),
		Text:      fmt.Sprintf("Rechnung Nr. %d-%d erstellt (%s EUR)", order.OrderNumber, version+1, breakdown.Total.StringFixed(2)),
	}); err != nil {
		return repository.Invoice{}, nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to record history")
	}

	s.logger.Info("invoice created",
		"order_number", order.OrderNumber,
		"version", version+1,
		"amount", breakdown.Total.StringFixed(2),
	)
	return inv, doc, nil
}

// resolveDistance returns the travel distance for the order's address,
// preferring the cached value. A fresh lookup is persisted on the address
// so the routing service is hit at most once per address. Without cache
// and without service the computation fails; distance zero is never
// assumed.
func (s *InvoiceService) resolveDistance(ctx context.Context, tx repository.Store, order repository.Order) (float64, error) {
	const op = "invoice.distance"

	addr, err := tx.GetAddress(ctx, order.AddressID)
	if err != nil {
		return 0, domain.WrapError(err, domain.EINTERNAL, op, "failed to load order address")
	}
	if addr.DistanceKm.Valid {
		return addr.DistanceKm.Float64, nil
	}

	km, err := s.distance.RouteKm(ctx, distance.Query{
		Street:      addr.Street,
		HouseNumber: addr.HouseNumber,
		PostalCode:  addr.PostalCode,
		City:        addr.City,
	})
	if err != nil {
		return 0, domain.WrapError(err, domain.EUNAVAILABLE, op, "distance service unavailable and no cached distance")
	}

	if err := tx.UpdateAddressDistance(ctx, repository.UpdateAddressDistanceParams{
		ID:         addr.ID,
		DistanceKm: repository.Float8Of(km),
	}); err != nil {
		return 0, domain.WrapError(err, domain.EINTERNAL, op, "failed to cache distance")
	}
	return km, nil
}

// recipientBlock loads the postal address block for a resolved party.
func (s *InvoiceService) recipientBlock(ctx context.Context, tx repository.Store, party Recipient) (document.RecipientBlock, error) {
	block := document.RecipientBlock{Name: party.Name}
	if party.AddressID == 0 {
		return block, nil
	}

	addr, err := tx.GetAddress(ctx, party.AddressID)
	if err != nil {
		return block, domain.WrapError(err, domain.EINTERNAL, "invoice.recipient", "failed to load recipient address")
	}
	block.Street = addr.Street
	block.HouseNumber = addr.HouseNumber
	block.PostalCode = addr.PostalCode
	block.City = addr.City
	return block, nil
}

// InvoiceRef is the external reference of an invoice version, as printed
// on documents and posted to the ledger.
func InvoiceRef(orderNumber int64, version int32) string {
	return fmt.Sprintf("%d-%d", orderNumber, version)
}
