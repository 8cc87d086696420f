package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createPatient = `-- name: CreatePatient :one
INSERT INTO patients (first_name, last_name, date_of_birth, date_of_death)
VALUES ($1, $2, $3, $4)
RETURNING id, first_name, last_name, date_of_birth, date_of_death, created_at
`

type CreatePatientParams struct {
	FirstName   string
	LastName    string
	DateOfBirth pgtype.Date
	DateOfDeath pgtype.Date
}

func (q *Queries) CreatePatient(ctx context.Context, arg CreatePatientParams) (Patient, error) {
	row := q.db.QueryRow(ctx, createPatient, arg.FirstName, arg.LastName, arg.DateOfBirth, arg.DateOfDeath)
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.DateOfDeath, &p.CreatedAt)
	return p, err
}

const getPatient = `-- name: GetPatient :one
SELECT id, first_name, last_name, date_of_birth, date_of_death, created_at
FROM patients
WHERE id = $1
`

func (q *Queries) GetPatient(ctx context.Context, id int64) (Patient, error) {
	row := q.db.QueryRow(ctx, getPatient, id)
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.DateOfDeath, &p.CreatedAt)
	return p, err
}

const createRelative = `-- name: CreateRelative :one
INSERT INTO relatives (patient_id, first_name, last_name, email, address_id, position)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, patient_id, first_name, last_name, email, address_id, position
`

type CreateRelativeParams struct {
	PatientID int64
	FirstName string
	LastName  string
	Email     pgtype.Text
	AddressID pgtype.Int8
	Position  int32
}

func (q *Queries) CreateRelative(ctx context.Context, arg CreateRelativeParams) (Relative, error) {
	row := q.db.QueryRow(ctx, createRelative,
		arg.PatientID, arg.FirstName, arg.LastName, arg.Email, arg.AddressID, arg.Position)
	var r Relative
	err := row.Scan(&r.ID, &r.PatientID, &r.FirstName, &r.LastName, &r.Email, &r.AddressID, &r.Position)
	return r, err
}

const listRelativesByPatient = `-- name: ListRelativesByPatient :many
SELECT id, patient_id, first_name, last_name, email, address_id, position
FROM relatives
WHERE patient_id = $1
ORDER BY position, id
`

func (q *Queries) ListRelativesByPatient(ctx context.Context, patientID int64) ([]Relative, error) {
	rows, err := q.db.Query(ctx, listRelativesByPatient, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Relative
	for rows.Next() {
		var r Relative
		if err := rows.Scan(&r.ID, &r.PatientID, &r.FirstName, &r.LastName, &r.Email, &r.AddressID, &r.Position); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const createFuneralHome = `-- name: CreateFuneralHome :one
INSERT INTO funeral_homes (name, email, address_id)
VALUES ($1, $2, $3)
RETURNING id, name, email, address_id
`

type CreateFuneralHomeParams struct {
	Name      string
	Email     pgtype.Text
	AddressID pgtype.Int8
}

func (q *Queries) CreateFuneralHome(ctx context.Context, arg CreateFuneralHomeParams) (FuneralHome, error) {
	row := q.db.QueryRow(ctx, createFuneralHome, arg.Name, arg.Email, arg.AddressID)
	var f FuneralHome
	err := row.Scan(&f.ID, &f.Name, &f.Email, &f.AddressID)
	return f, err
}

const getFuneralHome = `-- name: GetFuneralHome :one
SELECT id, name, email, address_id
FROM funeral_homes
WHERE id = $1
`

func (q *Queries) GetFuneralHome(ctx context.Context, id int64) (FuneralHome, error) {
	row := q.db.QueryRow(ctx, getFuneralHome, id)
	var f FuneralHome
	err := row.Scan(&f.ID, &f.Name, &f.Email, &f.AddressID)
	return f, err
}

const listFuneralHomes = `-- name: ListFuneralHomes :many
SELECT id, name, email, address_id
FROM funeral_homes
ORDER BY name, id
`

func (q *Queries) ListFuneralHomes(ctx context.Context) ([]FuneralHome, error) {
	rows, err := q.db.Query(ctx, listFuneralHomes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FuneralHome
	for rows.Next() {
		var f FuneralHome
		if err := rows.Scan(&f.ID, &f.Name, &f.Email, &f.AddressID); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

const createAuthority = `-- name: CreateAuthority :one
INSERT INTO authorities (name, email, address_id)
VALUES ($1, $2, $3)
RETURNING id, name, email, address_id
`

type CreateAuthorityParams struct {
	Name      string
	Email     pgtype.Text
	AddressID pgtype.Int8
}

func (q *Queries) CreateAuthority(ctx context.Context, arg CreateAuthorityParams) (Authority, error) {
	row := q.db.QueryRow(ctx, createAuthority, arg.Name, arg.Email, arg.AddressID)
	var a Authority
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.AddressID)
	return a, err
}

const getAuthority = `-- name: GetAuthority :one
SELECT id, name, email, address_id
FROM authorities
WHERE id = $1
`

func (q *Queries) GetAuthority(ctx context.Context, id int64) (Authority, error) {
	row := q.db.QueryRow(ctx, getAuthority, id)
	var a Authority
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.AddressID)
	return a, err
}

const linkOrderAuthority = `-- name: LinkOrderAuthority :exec
INSERT INTO order_authorities (order_id, authority_id, position)
VALUES ($1, $2, $3)
`

type LinkOrderAuthorityParams struct {
	OrderID     int64
	AuthorityID int64
	Position    int32
}

func (q *Queries) LinkOrderAuthority(ctx context.Context, arg LinkOrderAuthorityParams) error {
	_, err := q.db.Exec(ctx, linkOrderAuthority, arg.OrderID, arg.AuthorityID, arg.Position)
	return err
}

const listAuthoritiesByOrder = `-- name: ListAuthoritiesByOrder :many
SELECT a.id, a.name, a.email, a.address_id
FROM authorities a
JOIN order_authorities oa ON oa.authority_id = a.id
WHERE oa.order_id = $1
ORDER BY oa.position, a.id
`

func (q *Queries) ListAuthoritiesByOrder(ctx context.Context, orderID int64) ([]Authority, error) {
	rows, err := q.db.Query(ctx, listAuthoritiesByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Authority
	for rows.Next() {
		var a Authority
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.AddressID); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
