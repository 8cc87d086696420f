package domain

// Workflow timing rules.
const (
	// MinOrderAgeDays is the administrative settling period before an
	// order may be billed or an inquiry sent.
	MinOrderAgeDays = 3

	// WaitPeriodDays is how long an inquiry waits for a funeral home
	// reply before the case returns to manual review.
	WaitPeriodDays = 7

	// OverdueCutoffDays is the age of an unpaid sent invoice after which
	// the order is listed as overdue.
	OverdueCutoffDays = 30
)

// Guard errors of the order state machine. Each names the unmet
// precondition; handlers map them to 400 responses.
var (
	ErrOrderTooYoung        = &Error{Code: EINVALID, Message: "Order must be at least 3 days old"}
	ErrNoDeliverableEmail   = &Error{Code: EINVALID, Message: "No deliverable email for the order's cost bearer"}
	ErrEmailDeliverable     = &Error{Code: EINVALID, Message: "Order has a deliverable email, use email dispatch instead of print"}
	ErrOrderAlreadyDone     = &Error{Code: EINVALID, Message: "Order is already completed"}
	ErrNotFuneralHomeBearer = &Error{Code: EINVALID, Message: "Cost bearer is not a funeral home"}
	ErrNoFuneralHome        = &Error{Code: EINVALID, Message: "Order has no linked funeral home"}
	ErrNoFuneralHomeEmail   = &Error{Code: EINVALID, Message: "Linked funeral home has no email address"}
	ErrNoBillingParty       = &Error{Code: EINVALID, Message: "No billing party can be resolved for the order"}
	ErrInquiryPending       = &Error{Code: EINVALID, Message: "Inquiry reply is still pending"}
	ErrNoInvoice            = &Error{Code: ENOTFOUND, Message: "Order has no invoice"}
)
