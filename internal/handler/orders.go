package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/grubermed/totenschein/internal/domain"
	"github.com/grubermed/totenschein/internal/service"
)

type registerOrderRequest struct {
	OrderDate   string `json:"order_date" validate:"required"`
	OrderTime   string `json:"order_time" validate:"required"`
	CostBearer  string `json:"cost_bearer" validate:"required"`
	ExtraEffort bool   `json:"extra_effort"`
	Remark      string `json:"remark"`
	Complete    bool   `json:"complete"`

	Patient struct {
		FirstName   string `json:"first_name" validate:"required"`
		LastName    string `json:"last_name" validate:"required"`
		DateOfBirth string `json:"date_of_birth"`
		DateOfDeath string `json:"date_of_death"`
	} `json:"patient"`

	Address     service.AddressInput      `json:"address" validate:"required"`
	FuneralHome *service.FuneralHomeInput `json:"funeral_home"`
	Relatives   []service.RelativeInput   `json:"relatives" validate:"dive"`
	Authorities []service.AuthorityInput  `json:"authorities" validate:"dive"`
}

// RegisterOrder creates a new order with its case graph.
func (h *Handler) RegisterOrder(c echo.Context) error {
	var req registerOrderRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("handler.register_order", "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.WrapError(err, domain.EINVALID, "handler.register_order", err.Error())
	}

	orderDate, err := parseDate(req.OrderDate)
	if err != nil {
		return domain.Invalid("handler.register_order", "order_date must be YYYY-MM-DD")
	}
	hour, minute, err := parseClock(req.OrderTime)
	if err != nil {
		return domain.Invalid("handler.register_order", "order_time must be HH:MM")
	}

	params := service.IntakeParams{
		OrderDate:   orderDate,
		OrderHour:   hour,
		OrderMinute: minute,
		CostBearer:  domain.CostBearer(req.CostBearer),
		ExtraEffort: req.ExtraEffort,
		Remark:      req.Remark,
		Complete:    req.Complete,
		Address:     req.Address,
		FuneralHome: req.FuneralHome,
		Relatives:   req.Relatives,
		Authorities: req.Authorities,
	}
	params.Patient.FirstName = req.Patient.FirstName
	params.Patient.LastName = req.Patient.LastName
	if req.Patient.DateOfBirth != "" {
		if params.Patient.DateOfBirth, err = parseDate(req.Patient.DateOfBirth); err != nil {
			return domain.Invalid("handler.register_order", "date_of_birth must be YYYY-MM-DD")
		}
	}
	if req.Patient.DateOfDeath != "" {
		if params.Patient.DateOfDeath, err = parseDate(req.Patient.DateOfDeath); err != nil {
			return domain.Invalid("handler.register_order", "date_of_death must be YYYY-MM-DD")
		}
	}

	result, err := h.intake.Register(c.Request().Context(), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"order":    toOrderView(result.Order),
		"warnings": result.Warnings,
	})
}

// GetOrder returns one order.
func (h *Handler) GetOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	order, err := h.orders.GetOrder(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderView(order))
}

// ListOrders returns orders filtered by status, or the most recent ones.
func (h *Handler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	if status := c.QueryParam("status"); status != "" {
		parsed, err := domain.ParseOrderStatus(status)
		if err != nil {
			return domain.Invalid("handler.list_orders", "unknown status")
		}
		orders, err := h.orders.ListByStatus(ctx, parsed)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, toOrderViews(orders))
	}

	limit := int32(50)
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return domain.Invalid("handler.list_orders", "limit must be a positive integer")
		}
		limit = int32(n)
	}
	orders, err := h.orders.ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderViews(orders))
}

// CompleteOrder finishes intake and releases the order for billing.
func (h *Handler) CompleteOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.orders.CompleteIntake(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkOrderForInquiry flags the order for a commissioning inquiry.
func (h *Handler) MarkOrderForInquiry(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.orders.MarkForInquiry(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SendOrderInquiry emails the inquiry and parks the order in WAIT.
func (h *Handler) SendOrderInquiry(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.orders.SendInquiry(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type idsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

// ConfirmInquiryReplies releases waiting orders whose funeral home
// confirmed commissioning.
func (h *Handler) ConfirmInquiryReplies(c echo.Context) error {
	var req idsRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("handler.confirm_inquiry", "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.Invalid("handler.confirm_inquiry", "ids are required")
	}
	if err := h.orders.ConfirmInquiryReplies(c.Request().Context(), req.IDs); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ResumeOrder releases a waiting order through the manual review path.
func (h *Handler) ResumeOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.orders.ResumeWait(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DispatchOrder bills one order over the email path.
func (h *Handler) DispatchOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.orders.DispatchEmail(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DispatchBatch bills a set of orders over the email path.
func (h *Handler) DispatchBatch(c echo.Context) error {
	var req idsRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("handler.dispatch_batch", "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.Invalid("handler.dispatch_batch", "ids are required")
	}
	result, err := h.orders.DispatchBatch(c.Request().Context(), req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// MarkOrderForPrint bills one order over the postal path.
func (h *Handler) MarkOrderForPrint(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.orders.MarkForPrint(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type confirmPrintRequest struct {
	IDs          []int64 `json:"ids" validate:"required,min=1"`
	DispatchDate string  `json:"dispatch_date" validate:"required"`
}

// ConfirmPrintBatch records a completed physical mailing batch.
func (h *Handler) ConfirmPrintBatch(c echo.Context) error {
	var req confirmPrintRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("handler.confirm_print", "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.Invalid("handler.confirm_print", "ids and dispatch_date are required")
	}
	dispatchDate, err := parseDate(req.DispatchDate)
	if err != nil {
		return domain.Invalid("handler.confirm_print", "dispatch_date must be YYYY-MM-DD")
	}
	if err := h.orders.ConfirmPrintBatch(c.Request().Context(), req.IDs, dispatchDate); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Worklists

func (h *Handler) ListReadyForEmail(c echo.Context) error {
	items, err := h.orders.ListReadyForEmail(c.Request().Context(), service.WorklistSort(c.QueryParam("sort")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toWorklistViews(items))
}

func (h *Handler) ListReadyForPrint(c echo.Context) error {
	items, err := h.orders.ListReadyForPrint(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toWorklistViews(items))
}

func (h *Handler) ListWait(c echo.Context) error {
	items, err := h.orders.ListWait(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toWaitViews(items))
}

func (h *Handler) ListOverdue(c echo.Context) error {
	orders, err := h.orders.ListOverdue(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderViews(orders))
}

func (h *Handler) ListInquiryOrders(c echo.Context) error {
	orders, err := h.orders.ListInquiry(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderViews(orders))
}

func (h *Handler) ListPrintPending(c echo.Context) error {
	orders, err := h.orders.ListPrint(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderViews(orders))
}

// History

func (h *Handler) ListHistory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	entries, err := h.orders.History(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toHistoryViews(entries))
}

type addNoteRequest struct {
	Date string `json:"date"`
	Text string `json:"text" validate:"required"`
}

func (h *Handler) AddHistoryNote(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req addNoteRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("handler.add_note", "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.Invalid("handler.add_note", "text is required")
	}
	var date time.Time
	if req.Date != "" {
		if date, err = parseDate(req.Date); err != nil {
			return domain.Invalid("handler.add_note", "date must be YYYY-MM-DD")
		}
	}
	if err := h.orders.AddNote(c.Request().Context(), id, date, req.Text); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

// helpers

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalid("handler.path_id", "id must be a positive integer")
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
