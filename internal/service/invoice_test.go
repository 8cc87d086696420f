package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grubermed/totenschein/internal/distance"
	"github.com/grubermed/totenschein/internal/domain"
	"github.com/grubermed/totenschein/internal/repository"
)

func TestCreateInvoiceSupersedesOpenVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})

	first, err := env.invoices.CreateInvoice(ctx, CreateInvoiceParams{
		OrderID: order.ID, Kind: domain.InvoiceKindFirst, InvoiceDate: testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), first.Version)
	assert.Equal(t, "CREATED", first.Status)

	second, err := env.invoices.CreateInvoice(ctx, CreateInvoiceParams{
		OrderID: order.ID, Kind: domain.InvoiceKindFirst, InvoiceDate: testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), second.Version)

	// The open predecessor is canceled, never mutated in amount.
	got, err := env.store.GetInvoice(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELED", got.Status)

	invoices, err := env.invoices.ListInvoices(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
}

func TestCreateInvoiceNeverTouchesSentVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})
	require.NoError(t, env.orders.DispatchEmail(ctx, order.ID))

	sent, err := env.store.GetLatestInvoice(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "SENT", sent.Status)

	reminder, err := env.invoices.CreateInvoice(ctx, CreateInvoiceParams{
		OrderID: order.ID, Kind: domain.InvoiceKindReminder, InvoiceDate: testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), reminder.Version)

	got, err := env.store.GetInvoice(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, "SENT", got.Status)
}

func TestCreateInvoiceDocumentPerVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})

	_, err := env.invoices.CreateInvoice(ctx, CreateInvoiceParams{
		OrderID: order.ID, Kind: domain.InvoiceKindFirst, InvoiceDate: testNow,
	})
	require.NoError(t, err)
	_, err = env.invoices.CreateInvoice(ctx, CreateInvoiceParams{
		OrderID: order.ID, Kind: domain.InvoiceKindFirst, InvoiceDate: testNow,
	})
	require.NoError(t, err)

	keys := env.docs.Keys()
	assert.Contains(t, keys, "documents/Rechnung_1_v1.html")
	assert.Contains(t, keys, "documents/Rechnung_1_v2.html")
}

func TestCreateInvoiceRequiresBillingParty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{bearer: "UNKNOWN"})

	_, err := env.invoices.CreateInvoice(ctx, CreateInvoiceParams{
		OrderID: order.ID, Kind: domain.InvoiceKindFirst, InvoiceDate: testNow,
	})
	assert.ErrorIs(t, err, domain.ErrNoBillingParty)

	_, err = env.store.GetLatestInvoice(ctx, order.ID)
	assert.Error(t, err)
}

func TestResolveDistanceCaching(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{noDistance: true})
	env.dist.RouteKmFunc = func(ctx context.Context, q distance.Query) (float64, error) {
		return 7.4, nil
	}

	inv, err := env.invoices.CreateInvoice(ctx, CreateInvoiceParams{
		OrderID: order.ID, Kind: domain.InvoiceKindFirst, InvoiceDate: testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.dist.Calls)

	amount, err := repository.NumericToDecimal(inv.Amount)
	require.NoError(t, err)
	// 165.77 + 3.50 + 10.23 travel for the 5..10 km day bucket.
	assert.Equal(t, "179.50", amount.StringFixed(2))

	// The result is persisted on the address, the second version reuses it.
	addr, err := env.store.GetAddress(ctx, order.AddressID)
	require.NoError(t, err)
	require.True(t, addr.DistanceKm.Valid)
	assert.Equal(t, 7.4, addr.DistanceKm.Float64)

	_, err = env.invoices.CreateInvoice(ctx, CreateInvoiceParams{
		OrderID: order.ID, Kind: domain.InvoiceKindFirst, InvoiceDate: testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.dist.Calls)
}

func TestResolveDistanceUnavailableFailsCreation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{noDistance: true})
	env.dist.RouteKmFunc = func(ctx context.Context, q distance.Query) (float64, error) {
		return 0, distance.ErrUnavailable
	}

	_, err := env.invoices.CreateInvoice(ctx, CreateInvoiceParams{
		OrderID: order.ID, Kind: domain.InvoiceKindFirst, InvoiceDate: testNow,
	})
	require.Error(t, err)
	// Distance zero is never assumed.
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestLatestInvoiceNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})

	_, err := env.invoices.LatestInvoice(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrNoInvoice)
}

func TestInvoiceDocumentRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})

	inv, err := env.invoices.CreateInvoice(ctx, CreateInvoiceParams{
		OrderID: order.ID, Kind: domain.InvoiceKindFirst, InvoiceDate: testNow,
	})
	require.NoError(t, err)

	doc, err := env.invoices.Document(ctx, inv.ID)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "Rechnung")
	assert.Contains(t, string(doc), "Max Mustermann")
	assert.Contains(t, string(doc), "172.85")
}

func TestResolveEmailRecipientPriority(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("first relative with email wins", func(t *testing.T) {
		order := env.seedCase(t, caseSeed{relativeEmail: "-"})
		// Second relative carries the address.
		_, err := env.store.CreateRelative(ctx, repository.CreateRelativeParams{
			PatientID: order.PatientID,
			FirstName: "Hans",
			LastName:  "Mustermann",
			Email:     repository.TextOf("hans@example.com"),
			Position:  1,
		})
		require.NoError(t, err)

		r, err := ResolveEmailRecipient(ctx, env.store, order)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, "hans@example.com", r.Email)
	})

	t.Run("funeral home bearer resolves to the institution", func(t *testing.T) {
		order := env.seedCase(t, caseSeed{
			bearer:       "FUNERAL_HOME",
			funeralHome:  true,
			funeralEmail: "huber@example.com",
		})
		r, err := ResolveEmailRecipient(ctx, env.store, order)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, "huber@example.com", r.Email)
		assert.Equal(t, "Bestattungen Huber", r.Name)
	})

	t.Run("authority bearer resolves to the first authority", func(t *testing.T) {
		order := env.seedCase(t, caseSeed{
			bearer:        "AUTHORITY",
			authority:     true,
			authorityMail: "amt@example.com",
		})
		r, err := ResolveEmailRecipient(ctx, env.store, order)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, "amt@example.com", r.Email)
	})

	t.Run("unknown bearer has no recipient", func(t *testing.T) {
		order := env.seedCase(t, caseSeed{bearer: "UNKNOWN"})
		r, err := ResolveEmailRecipient(ctx, env.store, order)
		require.NoError(t, err)
		assert.Nil(t, r)
	})
}

func TestResolveBillingPartyIgnoresEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{relativeEmail: "-"})

	party, err := ResolveBillingParty(ctx, env.store, order)
	require.NoError(t, err)
	require.NotNil(t, party)
	assert.Equal(t, "Erika Mustermann", party.Name)
	assert.Empty(t, party.Email)

	deliverable, err := EmailDeliverable(ctx, env.store, order)
	require.NoError(t, err)
	assert.False(t, deliverable)
}

func TestInvoiceByIDNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.invoices.Document(context.Background(), 4242)
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	var derr *domain.Error
	assert.True(t, errors.As(err, &derr))
}
