package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Address struct {
	ID          int64
	Street      string
	HouseNumber string
	PostalCode  string
	City        string
	DistanceKm  pgtype.Float8
	CreatedAt   pgtype.Timestamptz
}

type Patient struct {
	ID          int64
	FirstName   string
	LastName    string
	DateOfBirth pgtype.Date
	DateOfDeath pgtype.Date
	CreatedAt   pgtype.Timestamptz
}

type Relative struct {
	ID        int64
	PatientID int64
	FirstName string
	LastName  string
	Email     pgtype.Text
	AddressID pgtype.Int8
	Position  int32
}

type FuneralHome struct {
	ID        int64
	Name      string
	Email     pgtype.Text
	AddressID pgtype.Int8
}

type Authority struct {
	ID        int64
	Name      string
	Email     pgtype.Text
	AddressID pgtype.Int8
}

type Order struct {
	ID            int64
	OrderNumber   int64
	OrderDate     pgtype.Date
	OrderTime     pgtype.Time
	CostBearer    string
	ExtraEffort   bool
	Remark        pgtype.Text
	Status        string
	WaitUntil     pgtype.Date
	InquirySent   bool
	PatientID     int64
	AddressID     int64
	FuneralHomeID pgtype.Int8
	CreatedAt     pgtype.Timestamptz
}

type Invoice struct {
	ID          int64
	OrderID     int64
	Version     int32
	Kind        string
	InvoiceDate pgtype.Date
	Amount      pgtype.Numeric
	Remark      pgtype.Text
	Status      string
	DocumentKey pgtype.Text
	SentDate    pgtype.Date
	CreatedAt   pgtype.Timestamptz
}

type HistoryEntry struct {
	ID        int64
	OrderID   int64
	EntryDate pgtype.Date
	Text      string
	CreatedAt pgtype.Timestamptz
}
