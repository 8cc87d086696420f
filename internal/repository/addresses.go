package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createAddress = `-- name: CreateAddress :one
INSERT INTO addresses (street, house_number, postal_code, city)
VALUES ($1, $2, $3, $4)
RETURNING id, street, house_number, postal_code, city, distance_km, created_at
`

type CreateAddressParams struct {
	Street      string
	HouseNumber string
	PostalCode  string
	City        string
}

func (q *Queries) CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error) {
	row := q.db.QueryRow(ctx, createAddress, arg.Street, arg.HouseNumber, arg.PostalCode, arg.City)
	var a Address
	err := row.Scan(&a.ID, &a.Street, &a.HouseNumber, &a.PostalCode, &a.City, &a.DistanceKm, &a.CreatedAt)
	return a, err
}

const getAddress = `-- name: GetAddress :one
SELECT id, street, house_number, postal_code, city, distance_km, created_at
FROM addresses
WHERE id = $1
`

func (q *Queries) GetAddress(ctx context.Context, id int64) (Address, error) {
	row := q.db.QueryRow(ctx, getAddress, id)
	var a Address
	err := row.Scan(&a.ID, &a.Street, &a.HouseNumber, &a.PostalCode, &a.City, &a.DistanceKm, &a.CreatedAt)
	return a, err
}

const findAddress = `-- name: FindAddress :one
SELECT id, street, house_number, postal_code, city, distance_km, created_at
FROM addresses
WHERE street = $1 AND house_number = $2 AND postal_code = $3 AND city = $4
ORDER BY id
LIMIT 1
`

type FindAddressParams struct {
	Street      string
	HouseNumber string
	PostalCode  string
	City        string
}

// FindAddress looks up an address by value, for get-or-create semantics
// during order intake.
func (q *Queries) FindAddress(ctx context.Context, arg FindAddressParams) (Address, error) {
	row := q.db.QueryRow(ctx, findAddress, arg.Street, arg.HouseNumber, arg.PostalCode, arg.City)
	var a Address
	err := row.Scan(&a.ID, &a.Street, &a.HouseNumber, &a.PostalCode, &a.City, &a.DistanceKm, &a.CreatedAt)
	return a, err
}

const updateAddressDistance = `-- name: UpdateAddressDistance :exec
UPDATE addresses
SET distance_km = $2
WHERE id = $1
`

type UpdateAddressDistanceParams struct {
	ID         int64
	DistanceKm pgtype.Float8
}

func (q *Queries) UpdateAddressDistance(ctx context.Context, arg UpdateAddressDistanceParams) error {
	_, err := q.db.Exec(ctx, updateAddressDistance, arg.ID, arg.DistanceKm)
	return err
}
