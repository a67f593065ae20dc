package domain

import "time"

// ChatID identifies a participant by the chat the bot talks to them in.
type ChatID int64

// NumberStatus is the rental lifecycle status of a registered phone number.
type NumberStatus string

const (
	NumberStatusFree      NumberStatus = "free"
	NumberStatusReserved  NumberStatus = "reserved"
	NumberStatusCodeSent  NumberStatus = "code_sent"
	NumberStatusSucceeded NumberStatus = "succeeded"
	NumberStatusFailed    NumberStatus = "failed"
	NumberStatusCrashed   NumberStatus = "crashed"
)

var numberStatuses = []NumberStatus{
	NumberStatusFree,
	NumberStatusReserved,
	NumberStatusCodeSent,
	NumberStatusSucceeded,
	NumberStatusFailed,
	NumberStatusCrashed,
}

func (s NumberStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is defined from s.
func (s NumberStatus) IsTerminal() bool {
	return s == NumberStatusFailed || s == NumberStatusCrashed
}

// ParseNumberStatus converts a wire/query value into a NumberStatus.
func ParseNumberStatus(s string) (NumberStatus, bool) {
	for _, st := range numberStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Outcome is what a buyer reports after trying the relayed code.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Status maps the outcome onto the terminal number status it produces.
func (o Outcome) Status() NumberStatus {
	if o == OutcomeSucceeded {
		return NumberStatusSucceeded
	}
	return NumberStatusFailed
}

// Number is a phone line registered by a seller for rent.
// A Number is never deleted and never returns to Free once reserved.
type Number struct {
	Phone    string       `json:"phone"`
	SellerID ChatID       `json:"seller_id"`
	BuyerID  ChatID       `json:"buyer_id,omitempty"` // zero while Free
	Status   NumberStatus `json:"status"`
	Code     string       `json:"-"`

	RegisteredAt    time.Time `json:"registered_at"`
	StatusChangedAt time.Time `json:"status_changed_at"`
	SucceededAt     time.Time `json:"succeeded_at,omitempty"`
	FailedAt        time.Time `json:"failed_at,omitempty"`
	CrashedAt       time.Time `json:"crashed_at,omitempty"`

	// Seq is the registration order, used for stable listings.
	Seq int64 `json:"-"`
}

// HasBuyer reports whether the number is bound to a buyer.
func (n Number) HasBuyer() bool {
	return n.BuyerID != 0
}

// StatusTime returns the timestamp shown next to the number in history
// listings: the terminal timestamp when one exists, else the last change.
func (n Number) StatusTime() time.Time {
	switch n.Status {
	case NumberStatusSucceeded:
		if !n.SucceededAt.IsZero() {
			return n.SucceededAt
		}
	case NumberStatusFailed:
		if !n.FailedAt.IsZero() {
			return n.FailedAt
		}
	case NumberStatusCrashed:
		if !n.CrashedAt.IsZero() {
			return n.CrashedAt
		}
	}
	return n.StatusChangedAt
}
