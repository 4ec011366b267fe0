package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/ledger"
)

// State is a step of a settlement run.
type State string

const (
	StateBuilding         State = "building"
	StateResolvingVendors State = "resolving_vendors"
	StateSubmitting       State = "submitting"
	StateAllSucceeded     State = "all_succeeded"
	StateFailedAt         State = "failed_at"
)

// IsTerminal reports whether no further transitions can happen from s.
func (s State) IsTerminal() bool {
	return s == StateAllSucceeded || s == StateFailedAt
}

// Transition records one state change. Index is the group being submitted
// when entering StateSubmitting or StateFailedAt, and -1 otherwise.
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	Index int       `json:"index"`
	At    time.Time `json:"at"`
}

// Payer is the customer whose wallet funds the transfers.
type Payer struct {
	Email          string
	PaymentAddress string
}

// CartLine is one line to settle. Price is in the cart currency.
type CartLine struct {
	ProductID   uuid.UUID
	Name        string
	Price       decimal.Decimal
	Quantity    int
	Image       string
	VendorEmail string
}

// AttemptItem is the snapshot of a line paid by an attempt.
type AttemptItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Group is every payable line sharing one vendor address.
type Group struct {
	Position      int             `json:"position"`
	VendorAddress string          `json:"vendor_address"`
	VendorEmails  []string        `json:"vendor_emails"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Amount        decimal.Decimal `json:"amount"`
	Items         []AttemptItem   `json:"items"`
}

// VendorEmail is the first vendor seen for the group's address.
func (g Group) VendorEmail() string {
	if len(g.VendorEmails) == 0 {
		return ""
	}
	return g.VendorEmails[0]
}

// Attempt is the outcome of submitting one group's transfer.
type Attempt struct {
	Group
	Success        bool               `json:"success"`
	Confirmed      bool               `json:"confirmed"`
	TransactionRef string             `json:"transaction_ref,omitempty"`
	BlockRef       string             `json:"block_ref,omitempty"`
	ErrorKind      ledger.FailureKind `json:"error_kind,omitempty"`
	ErrorReason    string             `json:"error_reason,omitempty"`
	Duration       time.Duration      `json:"-"`
}

// SkippedItem is a line excluded because its vendor cannot be paid.
type SkippedItem struct {
	ProductID   uuid.UUID `json:"product_id"`
	Name        string    `json:"name"`
	VendorEmail string    `json:"vendor_email"`
	Reason      string    `json:"reason"`
}

const (
	SkipReasonNoAddress  = "NO_PAYMENT_ADDRESS"
	SkipReasonZeroAmount = "ZERO_AMOUNT"
)

// Result is the terminal outcome of one run. Attempts holds only submitted
// groups, in submission order. Unattempted holds groups never submitted
// because an earlier transfer failed.
type Result struct {
	State        State           `json:"state"`
	Attempts     []Attempt       `json:"attempts"`
	Unattempted  []Group         `json:"unattempted"`
	SkippedItems []SkippedItem   `json:"skipped_items"`
	TotalValue   decimal.Decimal `json:"total_value"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Rate         decimal.Decimal `json:"rate"`
	FailedIndex  int             `json:"failed_index"`
	Transitions  []Transition    `json:"transitions"`
}

// Succeeded returns the attempts whose transfer went through.
func (r *Result) Succeeded() []Attempt {
	out := make([]Attempt, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		if a.Success {
			out = append(out, a)
		}
	}
	return out
}

// Failed returns the failed attempt, if any.
func (r *Result) Failed() *Attempt {
	if r.State != StateFailedAt || r.FailedIndex < 0 || r.FailedIndex >= len(r.Attempts) {
		return nil
	}
	return &r.Attempts[r.FailedIndex]
}

// PaidVendors lists vendor emails with a successful transfer.
func (r *Result) PaidVendors() []string {
	var out []string
	for _, a := range r.Succeeded() {
		out = append(out, a.VendorEmails...)
	}
	return dedupe(out)
}

// UnpaidVendors lists vendor emails whose group failed or was never submitted.
func (r *Result) UnpaidVendors() []string {
	var out []string
	for _, a := range r.Attempts {
		if !a.Success {
			out = append(out, a.VendorEmails...)
		}
	}
	for _, g := range r.Unattempted {
		out = append(out, g.VendorEmails...)
	}
	return dedupe(out)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
