package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/grubermed/totenschein/internal/address"
	"github.com/grubermed/totenschein/internal/distance"
	"github.com/grubermed/totenschein/internal/document"
	"github.com/grubermed/totenschein/internal/email"
	"github.com/grubermed/totenschein/internal/fees"
	"github.com/grubermed/totenschein/internal/ledger"
	"github.com/grubermed/totenschein/internal/repository"
	"github.com/grubermed/totenschein/internal/storage"
)

// testNow is the frozen clock of the service tests, a Wednesday.
var testNow = time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)

// testOrderDate lies comfortably past the settling period.
var testOrderDate = time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	store    *memStore
	orders   *OrderService
	invoices *InvoiceService
	intake   *IntakeService

	sender   *email.Mock
	ledger   *ledger.Mock
	dist     *distance.Mock
	verifier *address.Mock
	docs     *storage.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()

	renderer, err := document.NewRenderer()
	require.NoError(t, err)

	sender := &email.Mock{}
	mailer, err := email.NewService(sender, storage.NewMemory(), logger,
		"praxis@example.com", "Praxis Dr. Gruber", "Praxis Dr. Gruber")
	require.NoError(t, err)

	dist := &distance.Mock{}
	docs := storage.NewMemory()
	ledgerMock := &ledger.Mock{}
	verifier := &address.Mock{}

	letterhead := document.Letterhead{
		Name:   "Praxis Dr. Gruber",
		Street: "Hauptstrasse 1",
		City:   "80331 Muenchen",
	}

	invoices := NewInvoiceService(store, fees.NewCalculator(), dist, renderer, docs, letterhead, logger)
	orders := NewOrderService(store, invoices, mailer, ledgerMock, logger)
	orders.now = func() time.Time { return testNow }
	intake := NewIntakeService(store, verifier, logger)
	intake.now = func() time.Time { return testNow }

	return &testEnv{
		store:    store,
		orders:   orders,
		invoices: invoices,
		intake:   intake,
		sender:   sender,
		ledger:   ledgerMock,
		dist:     dist,
		verifier: verifier,
		docs:     docs,
	}
}

// caseSeed describes one test order. Zero values give a billable weekday
// RELATIVES case: cached short distance, one relative with email at the
// examination address.
type caseSeed struct {
	status        string
	bearer        string
	orderDate     time.Time
	hour, minute  int
	noDistance    bool
	relativeEmail string
	noRelative    bool
	funeralHome   bool
	funeralEmail  string
	authority     bool
	authorityMail string
}

func (e *testEnv) seedCase(t *testing.T, seed caseSeed) repository.Order {
	t.Helper()
	ctx := context.Background()

	if seed.status == "" {
		seed.status = "READY"
	}
	if seed.bearer == "" {
		seed.bearer = "RELATIVES"
	}
	if seed.orderDate.IsZero() {
		seed.orderDate = testOrderDate
	}
	if seed.hour == 0 && seed.minute == 0 {
		seed.hour, seed.minute = 10, 30
	}

	addr, err := e.store.CreateAddress(ctx, repository.CreateAddressParams{
		Street: "Lindenweg", HouseNumber: "4", PostalCode: "80331", City: "Muenchen",
	})
	require.NoError(t, err)
	if !seed.noDistance {
		require.NoError(t, e.store.UpdateAddressDistance(ctx, repository.UpdateAddressDistanceParams{
			ID: addr.ID, DistanceKm: repository.Float8Of(1.2),
		}))
	}

	patient, err := e.store.CreatePatient(ctx, repository.CreatePatientParams{
		FirstName:   "Max",
		LastName:    "Mustermann",
		DateOfBirth: repository.DateOf(time.Date(1941, 3, 2, 0, 0, 0, 0, time.UTC)),
		DateOfDeath: repository.DateOf(seed.orderDate),
	})
	require.NoError(t, err)

	if !seed.noRelative {
		mail := seed.relativeEmail
		if mail == "" && seed.relativeEmail != "-" {
			mail = "erika@example.com"
		}
		if mail == "-" {
			mail = ""
		}
		_, err = e.store.CreateRelative(ctx, repository.CreateRelativeParams{
			PatientID: patient.ID,
			FirstName: "Erika",
			LastName:  "Mustermann",
			Email:     repository.TextOf(mail),
			AddressID: repository.Int8Of(addr.ID),
			Position:  0,
		})
		require.NoError(t, err)
	}

	funeralHomeID := pgtype.Int8{}
	if seed.funeralHome {
		fh, err := e.store.CreateFuneralHome(ctx, repository.CreateFuneralHomeParams{
			Name:      "Bestattungen Huber",
			Email:     repository.TextOf(seed.funeralEmail),
			AddressID: repository.Int8Of(addr.ID),
		})
		require.NoError(t, err)
		funeralHomeID = repository.Int8Of(fh.ID)
	}

	number, err := e.store.NextOrderNumber(ctx)
	require.NoError(t, err)

	order, err := e.store.CreateOrder(ctx, repository.CreateOrderParams{
		OrderNumber:   number,
		OrderDate:     repository.DateOf(seed.orderDate),
		OrderTime:     repository.TimeOfClock(seed.hour, seed.minute),
		CostBearer:    seed.bearer,
		Status:        seed.status,
		PatientID:     patient.ID,
		AddressID:     addr.ID,
		FuneralHomeID: funeralHomeID,
	})
	require.NoError(t, err)

	if seed.authority {
		auth, err := e.store.CreateAuthority(ctx, repository.CreateAuthorityParams{
			Name:      "Ordnungsamt Muenchen",
			Email:     repository.TextOf(seed.authorityMail),
			AddressID: repository.Int8Of(addr.ID),
		})
		require.NoError(t, err)
		require.NoError(t, e.store.LinkOrderAuthority(ctx, repository.LinkOrderAuthorityParams{
			OrderID: order.ID, AuthorityID: auth.ID, Position: 0,
		}))
	}

	return order
}

func (e *testEnv) order(t *testing.T, id int64) repository.Order {
	t.Helper()
	o, err := e.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (e *testEnv) historyTexts(t *testing.T, orderID int64) []string {
	t.Helper()
	entries, err := e.store.ListHistoryByOrder(context.Background(), orderID)
	require.NoError(t, err)
	texts := make([]string, len(entries))
	for i, h := range entries {
		texts[i] = h.Text
	}
	return texts
}
