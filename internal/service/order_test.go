package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grubermed/totenschein/internal/domain"
	"github.com/grubermed/totenschein/internal/email"
	"github.com/grubermed/totenschein/internal/ledger"
	"github.com/grubermed/totenschein/internal/repository"
)

func TestCompleteIntake(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{status: "TODO"})

	require.NoError(t, env.orders.CompleteIntake(ctx, order.ID))
	assert.Equal(t, "READY", env.order(t, order.ID).Status)
	assert.Contains(t, env.historyTexts(t, order.ID), "Auftrag vervollstaendigt")

	// Only TODO orders can be completed.
	err := env.orders.CompleteIntake(ctx, order.ID)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestMarkForInquiryGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	relatives := env.seedCase(t, caseSeed{bearer: "RELATIVES"})
	err := env.orders.MarkForInquiry(ctx, relatives.ID)
	assert.ErrorIs(t, err, domain.ErrNotFuneralHomeBearer)

	noHome := env.seedCase(t, caseSeed{bearer: "FUNERAL_HOME"})
	err = env.orders.MarkForInquiry(ctx, noHome.ID)
	assert.ErrorIs(t, err, domain.ErrNoFuneralHome)

	young := env.seedCase(t, caseSeed{
		bearer:      "FUNERAL_HOME",
		funeralHome: true,
		orderDate:   testNow.AddDate(0, 0, -2),
	})
	err = env.orders.MarkForInquiry(ctx, young.ID)
	assert.ErrorIs(t, err, domain.ErrOrderTooYoung)
	assert.Equal(t, "READY", env.order(t, young.ID).Status)
}

func TestMarkForInquiryAgeBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Exactly three days old is old enough.
	order := env.seedCase(t, caseSeed{
		bearer:      "FUNERAL_HOME",
		funeralHome: true,
		orderDate:   time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, env.orders.MarkForInquiry(ctx, order.ID))
	assert.Equal(t, "INQUIRY", env.order(t, order.ID).Status)
}

func TestSendInquiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{
		status:       "INQUIRY",
		bearer:       "FUNERAL_HOME",
		funeralHome:  true,
		funeralEmail: "huber@example.com",
	})

	require.NoError(t, env.orders.SendInquiry(ctx, order.ID))

	got := env.order(t, order.ID)
	assert.Equal(t, "WAIT", got.Status)
	assert.True(t, got.InquirySent)
	require.True(t, got.WaitUntil.Valid)
	assert.Equal(t, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), got.WaitUntil.Time)

	require.Len(t, env.sender.Sent, 1)
	assert.Equal(t, []string{"huber@example.com"}, env.sender.Sent[0].To)
	assert.Contains(t, env.sender.Sent[0].Subject, "Anfrage")
}

func TestSendInquiryRequiresFuneralHomeEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{
		status:      "INQUIRY",
		bearer:      "FUNERAL_HOME",
		funeralHome: true,
	})

	err := env.orders.SendInquiry(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrNoFuneralHomeEmail)
	assert.Equal(t, "INQUIRY", env.order(t, order.ID).Status)
	assert.Empty(t, env.sender.Sent)
}

func TestConfirmInquiryReplies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{status: "WAIT", bearer: "FUNERAL_HOME", funeralHome: true})
	require.NoError(t, env.store.UpdateOrderInquiry(ctx, repository.UpdateOrderInquiryParams{
		ID:          order.ID,
		Status:      "WAIT",
		WaitUntil:   repository.DateOf(testNow.AddDate(0, 0, 5)),
		InquirySent: true,
	}))

	require.NoError(t, env.orders.ConfirmInquiryReplies(ctx, []int64{order.ID}))

	got := env.order(t, order.ID)
	assert.Equal(t, "READY", got.Status)
	assert.False(t, got.InquirySent)
	assert.False(t, got.WaitUntil.Valid)
}

func TestResumeWait(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("pending inquiry is blocked", func(t *testing.T) {
		order := env.seedCase(t, caseSeed{status: "WAIT"})
		require.NoError(t, env.store.UpdateOrderInquiry(ctx, repository.UpdateOrderInquiryParams{
			ID: order.ID, Status: "WAIT",
			WaitUntil:   repository.DateOf(testNow.AddDate(0, 0, 2)),
			InquirySent: true,
		}))
		err := env.orders.ResumeWait(ctx, order.ID)
		assert.ErrorIs(t, err, domain.ErrInquiryPending)
		assert.Equal(t, "WAIT", env.order(t, order.ID).Status)
	})

	t.Run("elapsed wait period releases", func(t *testing.T) {
		order := env.seedCase(t, caseSeed{status: "WAIT"})
		require.NoError(t, env.store.UpdateOrderInquiry(ctx, repository.UpdateOrderInquiryParams{
			ID: order.ID, Status: "WAIT",
			WaitUntil:   repository.DateOf(testNow),
			InquirySent: true,
		}))
		require.NoError(t, env.orders.ResumeWait(ctx, order.ID))
		got := env.order(t, order.ID)
		assert.Equal(t, "READY", got.Status)
		assert.False(t, got.InquirySent)
	})

	t.Run("wait without inquiry releases immediately", func(t *testing.T) {
		order := env.seedCase(t, caseSeed{status: "WAIT"})
		require.NoError(t, env.orders.ResumeWait(ctx, order.ID))
		assert.Equal(t, "READY", env.order(t, order.ID).Status)
	})
}

func TestDispatchEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})

	require.NoError(t, env.orders.DispatchEmail(ctx, order.ID))

	got := env.order(t, order.ID)
	assert.Equal(t, "SENT", got.Status)

	inv, err := env.store.GetLatestInvoice(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), inv.Version)
	assert.Equal(t, "SENT", inv.Status)
	require.True(t, inv.SentDate.Valid)
	assert.Equal(t, testNow.Truncate(24*time.Hour), inv.SentDate.Time)

	amount, err := repository.NumericToDecimal(inv.Amount)
	require.NoError(t, err)
	// Base fee, materials and short day travel on a plain weekday morning.
	assert.Equal(t, "172.85", amount.StringFixed(2))

	require.Len(t, env.sender.Sent, 1)
	sent := env.sender.Sent[0]
	assert.Equal(t, []string{"erika@example.com"}, sent.To)
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, "Rechnung_1_v1.html", sent.Attachments[0].Filename)

	assert.Contains(t, env.docs.Keys(), "documents/Rechnung_1_v1.html")
}

func TestDispatchEmailSendFailureKeepsOrderReady(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})
	env.sender.SendFunc = func(ctx context.Context, e *email.Email) (string, error) {
		return "", errors.New("smtp down")
	}

	err := env.orders.DispatchEmail(ctx, order.ID)
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	// The invoice version survives for a retry, the order does not move.
	assert.Equal(t, "READY", env.order(t, order.ID).Status)
	inv, err := env.store.GetLatestInvoice(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "CREATED", inv.Status)
	assert.False(t, inv.SentDate.Valid)
}

func TestDispatchEmailGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	young := env.seedCase(t, caseSeed{orderDate: testNow.AddDate(0, 0, -1)})
	assert.ErrorIs(t, env.orders.DispatchEmail(ctx, young.ID), domain.ErrOrderTooYoung)

	noMail := env.seedCase(t, caseSeed{relativeEmail: "-"})
	assert.ErrorIs(t, env.orders.DispatchEmail(ctx, noMail.ID), domain.ErrNoDeliverableEmail)

	sent := env.seedCase(t, caseSeed{status: "SENT"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(env.orders.DispatchEmail(ctx, sent.ID)))

	done := env.seedCase(t, caseSeed{status: "DONE"})
	assert.ErrorIs(t, env.orders.DispatchEmail(ctx, done.ID), domain.ErrOrderAlreadyDone)
}

func TestMarkForPrint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{relativeEmail: "-"})

	require.NoError(t, env.orders.MarkForPrint(ctx, order.ID))

	got := env.order(t, order.ID)
	assert.Equal(t, "PRINT", got.Status)

	// The invoice waits for the physical batch confirmation.
	inv, err := env.store.GetLatestInvoice(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "CREATED", inv.Status)

	// Relatives get a condolence cover letter alongside the invoice.
	assert.Contains(t, env.docs.Keys(), "documents/Anschreiben_1.html")
}

func TestMarkForPrintRejectsDeliverableEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})

	err := env.orders.MarkForPrint(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrEmailDeliverable)
	assert.Equal(t, "READY", env.order(t, order.ID).Status)
}

func TestConfirmPrintBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{relativeEmail: "-"})
	require.NoError(t, env.orders.MarkForPrint(ctx, order.ID))

	dispatchDate := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.orders.ConfirmPrintBatch(ctx, []int64{order.ID}, dispatchDate))

	got := env.order(t, order.ID)
	assert.Equal(t, "SENT", got.Status)

	inv, err := env.store.GetLatestInvoice(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "SENT", inv.Status)
	require.True(t, inv.SentDate.Valid)
	assert.Equal(t, dispatchDate, inv.SentDate.Time)
}

func TestConfirmPrintBatchRequiresInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{status: "PRINT", relativeEmail: "-"})

	err := env.orders.ConfirmPrintBatch(ctx, []int64{order.ID}, testNow)
	assert.ErrorIs(t, err, domain.ErrNoInvoice)
	assert.Equal(t, "PRINT", env.order(t, order.ID).Status)
}

func TestRecordPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})
	require.NoError(t, env.orders.DispatchEmail(ctx, order.ID))

	result, err := env.orders.RecordPayment(ctx, RecordPaymentParams{
		OrderID: order.ID,
		Amount:  decimal.RequireFromString("172.85"),
		Date:    time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		Payer:   "Erika Mustermann",
	})
	require.NoError(t, err)
	assert.Empty(t, result.LedgerWarning)
	assert.Equal(t, "DONE", result.Order.Status)

	inv, err := env.store.GetLatestInvoice(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAID", inv.Status)
	assert.Equal(t, "DONE", env.order(t, order.ID).Status)

	require.Len(t, env.ledger.Posted, 1)
	posted := env.ledger.Posted[0]
	assert.Equal(t, "Erika Mustermann", posted.Payee)
	assert.Equal(t, []string{"1-1"}, posted.References)
	assert.Equal(t, "2026-08-28", posted.Date)
}

func TestRecordPaymentByOrderNumber(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})
	require.NoError(t, env.orders.DispatchEmail(ctx, order.ID))

	_, err := env.orders.RecordPayment(ctx, RecordPaymentParams{
		OrderNumber: order.OrderNumber,
		Amount:      decimal.RequireFromString("172.85"),
		Date:        testNow,
		Payer:       "Erika Mustermann",
	})
	require.NoError(t, err)
	assert.Equal(t, "DONE", env.order(t, order.ID).Status)
}

func TestRecordPaymentValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})
	require.NoError(t, env.orders.DispatchEmail(ctx, order.ID))

	_, err := env.orders.RecordPayment(ctx, RecordPaymentParams{
		OrderID: order.ID,
		Amount:  decimal.RequireFromString("-1"),
		Date:    testNow,
		Payer:   "Erika",
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = env.orders.RecordPayment(ctx, RecordPaymentParams{
		OrderID: order.ID,
		Amount:  decimal.RequireFromString("10"),
		Date:    testNow,
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestRecordPaymentRejectsDoneOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})
	require.NoError(t, env.orders.DispatchEmail(ctx, order.ID))

	params := RecordPaymentParams{
		OrderID: order.ID,
		Amount:  decimal.RequireFromString("172.85"),
		Date:    testNow,
		Payer:   "Erika",
	}
	_, err := env.orders.RecordPayment(ctx, params)
	require.NoError(t, err)

	_, err = env.orders.RecordPayment(ctx, params)
	assert.ErrorIs(t, err, domain.ErrOrderAlreadyDone)
}

func TestRecordPaymentWithoutInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})

	_, err := env.orders.RecordPayment(ctx, RecordPaymentParams{
		OrderID: order.ID,
		Amount:  decimal.RequireFromString("100"),
		Date:    testNow,
		Payer:   "Erika",
	})
	assert.ErrorIs(t, err, domain.ErrNoInvoice)
	assert.Equal(t, "READY", env.order(t, order.ID).Status)
}

func TestRecordPaymentLedgerFailureWarnsOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})
	require.NoError(t, env.orders.DispatchEmail(ctx, order.ID))
	env.ledger.PostFunc = func(ctx context.Context, tx ledger.Transaction) error {
		return errors.New("api quota exceeded")
	}

	result, err := env.orders.RecordPayment(ctx, RecordPaymentParams{
		OrderID: order.ID,
		Amount:  decimal.RequireFromString("172.85"),
		Date:    testNow,
		Payer:   "Erika",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.LedgerWarning)

	// The local booking stands regardless of the ledger.
	assert.Equal(t, "DONE", env.order(t, order.ID).Status)
	inv, err := env.store.GetLatestInvoice(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAID", inv.Status)
}

func TestWorklists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ok := env.seedCase(t, caseSeed{})
	young := env.seedCase(t, caseSeed{orderDate: testNow.AddDate(0, 0, -1)})
	noMail := env.seedCase(t, caseSeed{relativeEmail: "-"})

	emailList, err := env.orders.ListReadyForEmail(ctx, SortDateAsc)
	require.NoError(t, err)
	require.Len(t, emailList, 3)
	byID := map[int64]WorklistItem{}
	for _, item := range emailList {
		byID[item.Order.ID] = item
	}
	assert.Empty(t, byID[ok.ID].Blocked)
	assert.NotEmpty(t, byID[young.ID].Blocked)
	assert.NotEmpty(t, byID[noMail.ID].Blocked)

	printList, err := env.orders.ListReadyForPrint(ctx)
	require.NoError(t, err)
	byID = map[int64]WorklistItem{}
	for _, item := range printList {
		byID[item.Order.ID] = item
	}
	assert.NotEmpty(t, byID[ok.ID].Blocked)
	assert.Empty(t, byID[noMail.ID].Blocked)
}

func TestListReadyForEmailSorting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	older := env.seedCase(t, caseSeed{orderDate: testOrderDate.AddDate(0, 0, -5)})
	newer := env.seedCase(t, caseSeed{})
	funeral := env.seedCase(t, caseSeed{bearer: "FUNERAL_HOME", funeralHome: true, funeralEmail: "huber@example.com"})

	ids := func(items []WorklistItem) []int64 {
		out := make([]int64, len(items))
		for i, item := range items {
			out[i] = item.Order.ID
		}
		return out
	}

	asc, err := env.orders.ListReadyForEmail(ctx, SortDateAsc)
	require.NoError(t, err)
	assert.Equal(t, []int64{older.ID, newer.ID, funeral.ID}, ids(asc))

	desc, err := env.orders.ListReadyForEmail(ctx, SortDateDesc)
	require.NoError(t, err)
	assert.Equal(t, []int64{newer.ID, funeral.ID, older.ID}, ids(desc))

	byBearer, err := env.orders.ListReadyForEmail(ctx, SortBearerAsc)
	require.NoError(t, err)
	assert.Equal(t, []int64{funeral.ID, older.ID, newer.ID}, ids(byBearer))
}

func TestListWaitDueFlags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pending := env.seedCase(t, caseSeed{status: "WAIT"})
	require.NoError(t, env.store.UpdateOrderInquiry(ctx, repository.UpdateOrderInquiryParams{
		ID: pending.ID, Status: "WAIT",
		WaitUntil:   repository.DateOf(testNow.AddDate(0, 0, 3)),
		InquirySent: true,
	}))
	due := env.seedCase(t, caseSeed{status: "WAIT"})
	require.NoError(t, env.store.UpdateOrderInquiry(ctx, repository.UpdateOrderInquiryParams{
		ID: due.ID, Status: "WAIT",
		WaitUntil:   repository.DateOf(testNow.AddDate(0, 0, -1)),
		InquirySent: true,
	}))
	plain := env.seedCase(t, caseSeed{status: "WAIT"})

	items, err := env.orders.ListWait(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)

	byID := map[int64]WaitItem{}
	for _, item := range items {
		byID[item.Order.ID] = item
	}
	assert.False(t, byID[pending.ID].Due)
	assert.True(t, byID[due.ID].Due)
	assert.True(t, byID[plain.ID].Due)
	assert.False(t, byID[plain.ID].Inquiry)
}

func TestListOverdue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	overdue := env.seedCase(t, caseSeed{})
	require.NoError(t, env.orders.DispatchEmail(ctx, overdue.ID))
	inv, err := env.store.GetLatestInvoice(ctx, overdue.ID)
	require.NoError(t, err)
	require.NoError(t, env.store.MarkInvoiceSent(ctx, repository.MarkInvoiceSentParams{
		ID:       inv.ID,
		SentDate: repository.DateOf(time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)),
	}))

	fresh := env.seedCase(t, caseSeed{})
	require.NoError(t, env.orders.DispatchEmail(ctx, fresh.ID))

	orders, err := env.orders.ListOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, overdue.ID, orders[0].ID)
}

func TestAddNote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedCase(t, caseSeed{})

	require.NoError(t, env.orders.AddNote(ctx, order.ID, time.Time{}, "Telefonat mit Angehoerigen"))
	assert.Contains(t, env.historyTexts(t, order.ID), "Telefonat mit Angehoerigen")

	err := env.orders.AddNote(ctx, order.ID, testNow, "")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}
