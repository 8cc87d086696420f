package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/grubermed/totenschein/internal/address"
	"github.com/grubermed/totenschein/internal/domain"
	"github.com/grubermed/totenschein/internal/repository"
)

// IntakeService registers new orders with their full case graph: patient,
// examination address, optional funeral home, relatives and authorities.
type IntakeService struct {
	repo     repository.Store
	verifier address.Verifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewIntakeService(repo repository.Store, verifier address.Verifier, logger *slog.Logger) *IntakeService {
	return &IntakeService{
		repo:     repo,
		verifier: verifier,
		logger:   logger,
		now:      time.Now,
	}
}

// AddressInput is a postal address as entered. Addresses are deduplicated
// by value, so re-entering a known address reuses the stored row and its
// cached distance.
type AddressInput struct {
	Street      string `json:"street" validate:"required"`
	HouseNumber string `json:"house_number" validate:"required"`
	PostalCode  string `json:"postal_code" validate:"required"`
	City        string `json:"city" validate:"required"`
}

// RelativeInput is one next of kin. SameAddress reuses the examination
// address instead of Address.
type RelativeInput struct {
	FirstName   string        `json:"first_name" validate:"required"`
	LastName    string        `json:"last_name" validate:"required"`
	Email       string        `json:"email" validate:"omitempty,email"`
	Address     *AddressInput `json:"address"`
	SameAddress bool          `json:"same_address"`
}

// FuneralHomeInput references an existing funeral home by id or describes
// a new one.
type FuneralHomeInput struct {
	ID      int64         `json:"id"`
	Name    string        `json:"name"`
	Email   string        `json:"email" validate:"omitempty,email"`
	Address *AddressInput `json:"address"`
}

// AuthorityInput references an existing authority by id or describes a
// new one.
type AuthorityInput struct {
	ID      int64         `json:"id"`
	Name    string        `json:"name"`
	Email   string        `json:"email" validate:"omitempty,email"`
	Address *AddressInput `json:"address"`
}

// IntakeParams carries everything needed to register one order.
type IntakeParams struct {
	OrderDate   time.Time
	OrderHour   int
	OrderMinute int
	CostBearer  domain.CostBearer
	ExtraEffort bool
	Remark      string
	Complete    bool

	Patient struct {
		FirstName   string
		LastName    string
		DateOfBirth time.Time
		DateOfDeath time.Time
	}
	Address     AddressInput
	FuneralHome *FuneralHomeInput
	Relatives   []RelativeInput
	Authorities []AuthorityInput
}

// IntakeResult reports the created order. Warnings carries address
// verification findings that did not block the save.
type IntakeResult struct {
	Order    repository.Order
	Warnings []string
}

// Register creates the order and all referenced parties in one
// transaction. The examination address is verified first; a confirmed
// invalid address blocks the save, an unreachable verification service
// only produces a warning.
func (s *IntakeService) Register(ctx context.Context, params IntakeParams) (IntakeResult, error) {
	const op = "intake.register"

	if err := s.validate(params); err != nil {
		return IntakeResult{}, err
	}

	var warnings []string
	verdict := s.verifier.Verify(ctx, params.Address.Street, params.Address.HouseNumber,
		params.Address.PostalCode, params.Address.City)
	switch verdict.Status {
	case address.StatusInvalid:
		return IntakeResult{}, domain.Invalid(op, verdict.Message)
	case address.StatusUnavailable:
		warnings = append(warnings, verdict.Message)
	}

	var order repository.Order
	err := s.repo.RunInTx(ctx, func(tx repository.Store) error {
		addr, err := s.findOrCreateAddress(ctx, tx, params.Address)
		if err != nil {
			return err
		}

		patient, err := tx.CreatePatient(ctx, repository.CreatePatientParams{
			FirstName:   params.Patient.FirstName,
			LastName:    params.Patient.LastName,
			DateOfBirth: repository.DateOf(params.Patient.DateOfBirth),
			DateOfDeath: repository.DateOf(params.Patient.DateOfDeath),
		})
		if err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to create patient")
		}

		funeralHomeID, err := s.resolveFuneralHome(ctx, tx, params.FuneralHome)
		if err != nil {
			return err
		}

		number, err := tx.NextOrderNumber(ctx)
		if err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to allocate order number")
		}

		status := domain.OrderStatusTodo
		if params.Complete {
			status = domain.OrderStatusReady
		}

		order, err = tx.CreateOrder(ctx, repository.CreateOrderParams{
			OrderNumber:   number,
			OrderDate:     repository.DateOf(params.OrderDate),
			OrderTime:     repository.TimeOfClock(params.OrderHour, params.OrderMinute),
			CostBearer:    string(params.CostBearer),
			ExtraEffort:   params.ExtraEffort,
			Remark:        repository.TextOf(params.Remark),
			Status:        string(status),
			PatientID:     patient.ID,
			AddressID:     addr.ID,
			FuneralHomeID: funeralHomeID,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return domain.Conflict(op, fmt.Sprintf("order number %d already exists", number))
			}
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to create order")
		}

		if err := s.createRelatives(ctx, tx, patient.ID, addr.ID, params.Relatives); err != nil {
			return err
		}
		if err := s.linkAuthorities(ctx, tx, order.ID, params.Authorities); err != nil {
			return err
		}

		if _, err := tx.CreateHistoryEntry(ctx, repository.CreateHistoryEntryParams{
			OrderID:   order.ID,
			EntryDate: repository.DateOf(s.today()),
			Text:      fmt.Sprintf("Auftrag Nr. %d angelegt", order.OrderNumber),
		}); err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to record history")
		}
		return nil
	})
	if err != nil {
		return IntakeResult{}, err
	}

	s.logger.Info("order registered",
		"order_number", order.OrderNumber,
		"cost_bearer", order.CostBearer,
		"status", order.Status,
	)
	return IntakeResult{Order: order, Warnings: warnings}, nil
}

func (s *IntakeService) validate(params IntakeParams) error {
	const op = "intake.register"

	if params.Patient.FirstName == "" || params.Patient.LastName == "" {
		return domain.Invalid(op, "patient name is required")
	}
	if params.OrderDate.IsZero() {
		return domain.Invalid(op, "order date is required")
	}
	if params.OrderDate.After(s.today()) {
		return domain.Invalid(op, "order date must not lie in the future")
	}
	if params.OrderHour < 0 || params.OrderHour > 23 || params.OrderMinute < 0 || params.OrderMinute > 59 {
		return domain.Invalid(op, "order time is out of range")
	}
	if _, err := domain.ParseCostBearer(string(params.CostBearer)); err != nil {
		return domain.Invalid(op, "unknown cost bearer")
	}
	if params.CostBearer == domain.CostBearerFuneralHome && params.FuneralHome == nil {
		return domain.Invalid(op, "funeral home is required for this cost bearer")
	}
	return nil
}

func (s *IntakeService) findOrCreateAddress(ctx context.Context, tx repository.Store, in AddressInput) (repository.Address, error) {
	const op = "intake.address"

	street := strings.TrimSpace(in.Street)
	houseNumber := strings.TrimSpace(in.HouseNumber)
	postalCode := strings.TrimSpace(in.PostalCode)
	city := strings.TrimSpace(in.City)

	addr, err := tx.FindAddress(ctx, repository.FindAddressParams{
		Street:      street,
		HouseNumber: houseNumber,
		PostalCode:  postalCode,
		City:        city,
	})
	if err == nil {
		return addr, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return repository.Address{}, domain.WrapError(err, domain.EINTERNAL, op, "failed to look up address")
	}

	addr, err = tx.CreateAddress(ctx, repository.CreateAddressParams{
		Street:      street,
		HouseNumber: houseNumber,
		PostalCode:  postalCode,
		City:        city,
	})
	if err != nil {
		return repository.Address{}, domain.WrapError(err, domain.EINTERNAL, op, "failed to create address")
	}
	return addr, nil
}

func (s *IntakeService) resolveFuneralHome(ctx context.Context, tx repository.Store, in *FuneralHomeInput) (pgtype.Int8, error) {
	const op = "intake.funeral_home"

	if in == nil {
		return pgtype.Int8{}, nil
	}
	if in.ID != 0 {
		fh, err := tx.GetFuneralHome(ctx, in.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			return pgtype.Int8{}, domain.NotFound(op, "funeral home", fmt.Sprintf("%d", in.ID))
		}
		if err != nil {
			return pgtype.Int8{}, domain.WrapError(err, domain.EINTERNAL, op, "failed to load funeral home")
		}
		return repository.Int8Of(fh.ID), nil
	}
	if in.Name == "" {
		return pgtype.Int8{}, domain.Invalid(op, "funeral home name is required")
	}

	addressID := pgtype.Int8{}
	if in.Address != nil {
		addr, err := s.findOrCreateAddress(ctx, tx, *in.Address)
		if err != nil {
			return pgtype.Int8{}, err
		}
		addressID = repository.Int8Of(addr.ID)
	}

	fh, err := tx.CreateFuneralHome(ctx, repository.CreateFuneralHomeParams{
		Name:      in.Name,
		Email:     repository.TextOf(in.Email),
		AddressID: addressID,
	})
	if err != nil {
		return pgtype.Int8{}, domain.WrapError(err, domain.EINTERNAL, op, "failed to create funeral home")
	}
	return repository.Int8Of(fh.ID), nil
}

func (s *IntakeService) createRelatives(ctx context.Context, tx repository.Store, patientID, orderAddressID int64, relatives []RelativeInput) error {
	const op = "intake.relatives"

	for i, in := range relatives {
		if in.FirstName == "" || in.LastName == "" {
			return domain.Invalid(op, "relative name is required")
		}

		addressID := pgtype.Int8{}
		switch {
		case in.SameAddress:
			addressID = repository.Int8Of(orderAddressID)
		case in.Address != nil:
			addr, err := s.findOrCreateAddress(ctx, tx, *in.Address)
			if err != nil {
				return err
			}
			addressID = repository.Int8Of(addr.ID)
		}

		if _, err := tx.CreateRelative(ctx, repository.CreateRelativeParams{
			PatientID: patientID,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Email:     repository.TextOf(in.Email),
			AddressID: addressID,
			Position:  int32(i),
		}); err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to create relative")
		}
	}
	return nil
}

func (s *IntakeService) linkAuthorities(ctx context.Context, tx repository.Store, orderID int64, authorities []AuthorityInput) error {
	const op = "intake.authorities"

	for i, in := range authorities {
		var authorityID int64
		if in.ID != 0 {
			a, err := tx.GetAuthority(ctx, in.ID)
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NotFound(op, "authority", fmt.Sprintf("%d", in.ID))
			}
			if err != nil {
				return domain.WrapError(err, domain.EINTERNAL, op, "failed to load authority")
			}
			authorityID = a.ID
		} else {
			if in.Name == "" {
				return domain.Invalid(op, "authority name is required")
			}
			addressID := pgtype.Int8{}
			if in.Address != nil {
				addr, err := s.findOrCreateAddress(ctx, tx, *in.Address)
				if err != nil {
					return err
				}
				addressID = repository.Int8Of(addr.ID)
			}
			a, err := tx.CreateAuthority(ctx, repository.CreateAuthorityParams{
				Name:      in.Name,
				Email:     repository.TextOf(in.Email),
				AddressID: addressID,
			})
			if err != nil {
				return domain.WrapError(err, domain.EINTERNAL, op, "failed to create authority")
			}
			authorityID = a.ID
		}

		if err := tx.LinkOrderAuthority(ctx, repository.LinkOrderAuthorityParams{
			OrderID:     orderID,
			AuthorityID: authorityID,
			Position:    int32(i),
		}); err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to link authority")
		}
	}
	return nil
}

func (s *IntakeService) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
