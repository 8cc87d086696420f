package service

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/grubermed/totenschein/internal/repository"
)

// memStore is an in-memory repository.Store for service tests. RunInTx
// snapshots the state and restores it when the callback fails, mirroring
// the rollback behavior of real transactions and savepoints.
type memStore struct {
	seq          int64
	addresses    map[int64]repository.Address
	patients     map[int64]repository.Patient
	relatives    map[int64]repository.Relative
	funeralHomes map[int64]repository.FuneralHome
	authorities  map[int64]repository.Authority
	orderAuths   []repository.LinkOrderAuthorityParams
	orders       map[int64]repository.Order
	invoices     map[int64]repository.Invoice
	history      map[int64]repository.HistoryEntry
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		addresses:    make(map[int64]repository.Address),
		patients:     make(map[int64]repository.Patient),
		relatives:    make(map[int64]repository.Relative),
		funeralHomes: make(map[int64]repository.FuneralHome),
		authorities:  make(map[int64]repository.Authority),
		orders:       make(map[int64]repository.Order),
		invoices:     make(map[int64]repository.Invoice),
		history:      make(map[int64]repository.HistoryEntry),
	}
}

func (m *memStore) nextID() int64 {
	m.seq++
	return m.seq
}

type memSnapshot struct {
	seq          int64
	addresses    map[int64]repository.Address
	patients     map[int64]repository.Patient
	relatives    map[int64]repository.Relative
	funeralHomes map[int64]repository.FuneralHome
	authorities  map[int64]repository.Authority
	orderAuths   []repository.LinkOrderAuthorityParams
	orders       map[int64]repository.Order
	invoices     map[int64]repository.Invoice
	history      map[int64]repository.HistoryEntry
}

func cloneMap[V any](src map[int64]V) map[int64]V {
	dst := make(map[int64]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *memStore) snapshot() memSnapshot {
	return memSnapshot{
		seq:          m.seq,
		addresses:    cloneMap(m.addresses),
		patients:     cloneMap(m.patients),
		relatives:    cloneMap(m.relatives),
		funeralHomes: cloneMap(m.funeralHomes),
		authorities:  cloneMap(m.authorities),
		orderAuths:   append([]repository.LinkOrderAuthorityParams(nil), m.orderAuths...),
		orders:       cloneMap(m.orders),
		invoices:     cloneMap(m.invoices),
		history:      cloneMap(m.history),
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.seq = s.seq
	m.addresses = s.addresses
	m.patients = s.patients
	m.relatives = s.relatives
	m.funeralHomes = s.funeralHomes
	m.authorities = s.authorities
	m.orderAuths = s.orderAuths
	m.orders = s.orders
	m.invoices = s.invoices
	m.history = s.history
}

func (m *memStore) RunInTx(ctx context.Context, fn func(s repository.Store) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// addresses

func (m *memStore) CreateAddress(ctx context.Context, arg repository.CreateAddressParams) (repository.Address, error) {
	a := repository.Address{
		ID:          m.nextID(),
		Street:      arg.Street,
		HouseNumber: arg.HouseNumber,
		PostalCode:  arg.PostalCode,
		City:        arg.City,
	}
	m.addresses[a.ID] = a
	return a, nil
}

func (m *memStore) GetAddress(ctx context.Context, id int64) (repository.Address, error) {
	a, ok := m.addresses[id]
	if !ok {
		return repository.Address{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *memStore) FindAddress(ctx context.Context, arg repository.FindAddressParams) (repository.Address, error) {
	for _, a := range m.addresses {
		if a.Street == arg.Street && a.HouseNumber == arg.HouseNumber &&
			a.PostalCode == arg.PostalCode && a.City == arg.City {
			return a, nil
		}
	}
	return repository.Address{}, pgx.ErrNoRows
}

func (m *memStore) UpdateAddressDistance(ctx context.Context, arg repository.UpdateAddressDistanceParams) error {
	a, ok := m.addresses[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	a.DistanceKm = arg.DistanceKm
	m.addresses[a.ID] = a
	return nil
}

// parties

func (m *memStore) CreatePatient(ctx context.Context, arg repository.CreatePatientParams) (repository.Patient, error) {
	p := repository.Patient{
		ID:          m.nextID(),
		FirstName:   arg.FirstName,
		LastName:    arg.LastName,
		DateOfBirth: arg.DateOfBirth,
		DateOfDeath: arg.DateOfDeath,
	}
	m.patients[p.ID] = p
	return p, nil
}

func (m *memStore) GetPatient(ctx context.Context, id int64) (repository.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return repository.Patient{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memStore) CreateRelative(ctx context.Context, arg repository.CreateRelativeParams) (repository.Relative, error) {
	r := repository.Relative{
		ID:        m.nextID(),
		PatientID: arg.PatientID,
		FirstName: arg.FirstName,
		LastName:  arg.LastName,
		Email:     arg.Email,
		AddressID: arg.AddressID,
		Position:  arg.Position,
	}
	m.relatives[r.ID] = r
	return r, nil
}

func (m *memStore) ListRelativesByPatient(ctx context.Context, patientID int64) ([]repository.Relative, error) {
	var items []repository.Relative
	for _, r := range m.relatives {
		if r.PatientID == patientID {
			items = append(items, r)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (m *memStore) CreateFuneralHome(ctx context.Context, arg repository.CreateFuneralHomeParams) (repository.FuneralHome, error) {
	f := repository.FuneralHome{
		ID:        m.nextID(),
		Name:      arg.Name,
		Email:     arg.Email,
		AddressID: arg.AddressID,
	}
	m.funeralHomes[f.ID] = f
	return f, nil
}

func (m *memStore) GetFuneralHome(ctx context.Context, id int64) (repository.FuneralHome, error) {
	f, ok := m.funeralHomes[id]
	if !ok {
		return repository.FuneralHome{}, pgx.ErrNoRows
	}
	return f, nil
}

func (m *memStore) ListFuneralHomes(ctx context.Context) ([]repository.FuneralHome, error) {
	var items []repository.FuneralHome
	for _, f := range m.funeralHomes {
		items = append(items, f)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (m *memStore) CreateAuthority(ctx context.Context, arg repository.CreateAuthorityParams) (repository.Authority, error) {
	a := repository.Authority{
		ID:        m.nextID(),
		Name:      arg.Name,
		Email:     arg.Email,
		AddressID: arg.AddressID,
	}
	m.authorities[a.ID] = a
	return a, nil
}

func (m *memStore) GetAuthority(ctx context.Context, id int64) (repository.Authority, error) {
	a, ok := m.authorities[id]
	if !ok {
		return repository.Authority{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *memStore) LinkOrderAuthority(ctx context.Context, arg repository.LinkOrderAuthorityParams) error {
	m.orderAuths = append(m.orderAuths, arg)
	return nil
}

func (m *memStore) ListAuthoritiesByOrder(ctx context.Context, orderID int64) ([]repository.Authority, error) {
	var links []repository.LinkOrderAuthorityParams
	for _, l := range m.orderAuths {
		if l.OrderID == orderID {
			links = append(links, l)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Position != links[j].Position {
			return links[i].Position < links[j].Position
		}
		return links[i].AuthorityID < links[j].AuthorityID
	})
	var items []repository.Authority
	for _, l := range links {
		items = append(items, m.authorities[l.AuthorityID])
	}
	return items, nil
}

// orders

func (m *memStore) NextOrderNumber(ctx context.Context) (int64, error) {
	var max int64
	for _, o := range m.orders {
		if o.OrderNumber > max {
			max = o.OrderNumber
		}
	}
	return max + 1, nil
}

func (m *memStore) CreateOrder(ctx context.Context, arg repository.CreateOrderParams) (repository.Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == arg.OrderNumber {
			return repository.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
		}
	}
	o := repository.Order{
		ID:            m.nextID(),
		OrderNumber:   arg.OrderNumber,
		OrderDate:     arg.OrderDate,
		OrderTime:     arg.OrderTime,
		CostBearer:    arg.CostBearer,
		ExtraEffort:   arg.ExtraEffort,
		Remark:        arg.Remark,
		Status:        arg.Status,
		PatientID:     arg.PatientID,
		AddressID:     arg.AddressID,
		FuneralHomeID: arg.FuneralHomeID,
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *memStore) GetOrder(ctx context.Context, id int64) (repository.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return repository.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderByNumber(ctx context.Context, orderNumber int64) (repository.Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return repository.Order{}, pgx.ErrNoRows
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, arg repository.UpdateOrderStatusParams) error {
	o, ok := m.orders[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	o.Status = arg.Status
	m.orders[o.ID] = o
	return nil
}

func (m *memStore) UpdateOrderInquiry(ctx context.Context, arg repository.UpdateOrderInquiryParams) error {
	o, ok := m.orders[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	o.Status = arg.Status
	o.WaitUntil = arg.WaitUntil
	o.InquirySent = arg.InquirySent
	m.orders[o.ID] = o
	return nil
}

func (m *memStore) ListOrdersByStatus(ctx context.Context, status string) ([]repository.Order, error) {
	var items []repository.Order
	for _, o := range m.orders {
		if o.Status == status {
			items = append(items, o)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].OrderNumber < items[j].OrderNumber })
	return items, nil
}

func (m *memStore) ListRecentOrders(ctx context.Context, limit int32) ([]repository.Order, error) {
	var items []repository.Order
	for _, o := range m.orders {
		items = append(items, o)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	if int32(len(items)) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memStore) ListOverdueOrders(ctx context.Context, cutoff pgtype.Date) ([]repository.Order, error) {
	var items []repository.Order
	for _, o := range m.orders {
		if o.Status != "SENT" {
			continue
		}
		latest, err := m.GetLatestInvoice(ctx, o.ID)
		if err != nil {
			continue
		}
		if latest.SentDate.Valid && !latest.SentDate.Time.After(cutoff.Time) {
			items = append(items, o)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].OrderNumber < items[j].OrderNumber })
	return items, nil
}

// invoices

func (m *memStore) CreateInvoice(ctx context.Context, arg repository.CreateInvoiceParams) (repository.Invoice, error) {
	i := repository.Invoice{
		ID:          m.nextID(),
		OrderID:     arg.OrderID,
		Version:     arg.Version,
		Kind:        arg.Kind,
		InvoiceDate: arg.InvoiceDate,
		Amount:      arg.Amount,
		Remark:      arg.Remark,
		Status:      arg.Status,
		DocumentKey: arg.DocumentKey,
	}
	m.invoices[i.ID] = i
	return i, nil
}

func (m *memStore) GetInvoice(ctx context.Context, id int64) (repository.Invoice, error) {
	i, ok := m.invoices[id]
	if !ok {
		return repository.Invoice{}, pgx.ErrNoRows
	}
	return i, nil
}

func (m *memStore) GetLatestInvoice(ctx context.Context, orderID int64) (repository.Invoice, error) {
	var latest *repository.Invoice
	for id := range m.invoices {
		i := m.invoices[id]
		if i.OrderID != orderID {
			continue
		}
		if latest == nil || i.Version > latest.Version {
			latest = &i
		}
	}
	if latest == nil {
		return repository.Invoice{}, pgx.ErrNoRows
	}
	return *latest, nil
}

func (m *memStore) GetLatestCreatedInvoice(ctx context.Context, orderID int64) (repository.Invoice, error) {
	var latest *repository.Invoice
	for id := range m.invoices {
		i := m.invoices[id]
		if i.OrderID != orderID || i.Status != "CREATED" {
			continue
		}
		if latest == nil || i.Version > latest.Version {
			latest = &i
		}
	}
	if latest == nil {
		return repository.Invoice{}, pgx.ErrNoRows
	}
	return *latest, nil
}

func (m *memStore) ListInvoicesByOrder(ctx context.Context, orderID int64) ([]repository.Invoice, error) {
	var items []repository.Invoice
	for _, i := range m.invoices {
		if i.OrderID == orderID {
			items = append(items, i)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Version > items[j].Version })
	return items, nil
}

func (m *memStore) UpdateInvoiceStatus(ctx context.Context, arg repository.UpdateInvoiceStatusParams) error {
	i, ok := m.invoices[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	i.Status = arg.Status
	m.invoices[i.ID] = i
	return nil
}

func (m *memStore) MarkInvoiceSent(ctx context.Context, arg repository.MarkInvoiceSentParams) error {
	i, ok := m.invoices[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	i.Status = "SENT"
	i.SentDate = arg.SentDate
	m.invoices[i.ID] = i
	return nil
}

// history

func (m *memStore) CreateHistoryEntry(ctx context.Context, arg repository.CreateHistoryEntryParams) (repository.HistoryEntry, error) {
	h := repository.HistoryEntry{
		ID:        m.nextID(),
		OrderID:   arg.OrderID,
		EntryDate: arg.EntryDate,
		Text:      arg.Text,
	}
	m.history[h.ID] = h
	return h, nil
}

func (m *memStore) ListHistoryByOrder(ctx context.Context, orderID int64) ([]repository.HistoryEntry, error) {
	var items []repository.HistoryEntry
	for _, h := range m.history {
		if h.OrderID == orderID {
			items = append(items, h)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EntryDate.Time.Equal(items[j].EntryDate.Time) {
			return items[i].EntryDate.Time.After(items[j].EntryDate.Time)
		}
		return items[i].ID > items[j].ID
	})
	return items, nil
}
