package service

import (
	"context"
	"fmt"

	"github.com/grubermed/totenschein/internal/domain"
	"github.com/grubermed/totenschein/internal/repository"
)

// Recipient is the resolved communication target of an order.
type Recipient struct {
	Name  string
	Email string

	// AddressID is the party's postal address, 0 when none is stored.
	AddressID int64

	Kind domain.CostBearer
}

// ResolveEmailRecipient returns the party that receives electronic
// communications for the order, or nil when no party with an email address
// exists. Dispatch is by cost bearer: the linked funeral home, the first
// relative with an email, or the first linked authority with an email.
func ResolveEmailRecipient(ctx context.Context, q repository.Querier, order repository.Order) (*Recipient, error) {
	parties, err := billingParties(ctx, q, order)
	if err != nil {
		return nil, err
	}
	for _, p := range parties {
		if p.Email != "" {
			r := p
			return &r, nil
		}
	}
	return nil, nil
}

// ResolveBillingParty returns the party the invoice is addressed to,
// independent of email deliverability. The first stored party of the cost
// bearer category wins; nil means the order cannot be billed yet.
func ResolveBillingParty(ctx context.Context, q repository.Querier, order repository.Order) (*Recipient, error) {
	parties, err := billingParties(ctx, q, order)
	if err != nil {
		return nil, err
	}
	if len(parties) == 0 {
		return nil, nil
	}
	r := parties[0]
	return &r, nil
}

// EmailDeliverable reports whether the order qualifies for the email
// dispatch path.
func EmailDeliverable(ctx context.Context, q repository.Querier, order repository.Order) (bool, error) {
	r, err := ResolveEmailRecipient(ctx, q, order)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

// billingParties lists the candidate parties of the order's cost bearer
// category in stored order.
func billingParties(ctx context.Context, q repository.Querier, order repository.Order) ([]Recipient, error) {
	const op = "recipient.resolve"

	switch domain.CostBearer(order.CostBearer) {
	case domain.CostBearerFuneralHome:
		if !order.FuneralHomeID.Valid {
			return nil, nil
		}
		fh, err := q.GetFuneralHome(ctx, order.FuneralHomeID.Int64)
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load funeral home")
		}
		return []Recipient{{
			Name:      fh.Name,
			Email:     fh.Email.String,
			AddressID: fh.AddressID.Int64,
			Kind:      domain.CostBearerFuneralHome,
		}}, nil

	case domain.CostBearerRelatives:
		relatives, err := q.ListRelativesByPatient(ctx, order.PatientID)
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load relatives")
		}
		out := make([]Recipient, 0, len(relatives))
		for _, rel := range relatives {
			out = append(out, Recipient{
				Name:      fmt.Sprintf("%s %s", rel.FirstName, rel.LastName),
				Email:     rel.Email.String,
				AddressID: rel.AddressID.Int64,
				Kind:      domain.CostBearerRelatives,
			})
		}
		return out, nil

	case domain.CostBearerAuthority:
		authorities, err := q.ListAuthoritiesByOrder(ctx, order.ID)
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load authorities")
		}
		out := make([]Recipient, 0, len(authorities))
		for _, a := range authorities {
			out = append(out, Recipient{
				Name:      a.Name,
				Email:     a.Email.String,
				AddressID: a.AddressID.Int64,
				Kind:      domain.CostBearerAuthority,
			})
		}
		return out, nil
	}

	// UNKNOWN cost bearer has no parties.
	return nil, nil
}
