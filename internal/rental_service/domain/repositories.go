package domain

// NumberRegistry owns the lifecycle of every registered number.
// All list methods return materialized copies ordered by registration.
type NumberRegistry interface {
	Register(rawPhone string, sellerID ChatID) (Number, error)
	Reserve(phone string, buyerID ChatID) (Number, error)
	SubmitCode(phone, code string, requesterID ChatID) (Number, error)
	ReportOutcome(phone string, outcome Outcome, requesterID ChatID) (Number, error)
	ReportCrash(phone string, requesterID ChatID) (Number, error)

	Get(phone string) (Number, error)
	// PendingOutcome returns the buyer's number that is waiting for an
	// outcome report (status CodeSent), looked up through the buyer index.
	PendingOutcome(buyerID ChatID) (Number, error)

	List() []Number
	ListFree() []Number
	ListBySeller(sellerID ChatID) []Number
	ListByBuyer(buyerID ChatID) []Number
	ListSucceededByBuyer(buyerID ChatID) []Number
}

// SessionStore is a typed key-value store of participant sessions.
type SessionStore interface {
	// Get returns the stored session or a fresh default one.
	Get(id ChatID) Session
	// Upsert applies mutate to the session (default on first access) and stores it.
	Upsert(id ChatID, mutate func(*Session)) (Session, error)
	Reset(id ChatID) Session
	SetRole(id ChatID, role Role) error
	SetState(id ChatID, state ConversationState) error
	SetActiveNumber(id ChatID, phone string) error
	ClearActiveNumber(id ChatID) error
}
