package domain

// Role is the part a participant plays in the marketplace.
type Role string

const (
	RoleNone   Role = ""
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
)

// ConversationState is where a participant is inside the chat flow.
type ConversationState string

const (
	// Unregistered.
	StateIdle               ConversationState = "idle"
	StateAwaitingAccessCode ConversationState = "awaiting_access_code"

	// Seller.
	StateSellerMenu          ConversationState = "seller_menu"
	StateAwaitingNumberInput ConversationState = "awaiting_number_input"
	StateAwaitingCodeInput   ConversationState = "awaiting_code_input"

	// Buyer.
	StateBuyerMenu             ConversationState = "buyer_menu"
	StateAwaitingPhoneInput    ConversationState = "awaiting_phone_input"
	StateAwaitingOutcomeReport ConversationState = "awaiting_outcome_report"
)

// Valid reports whether s is one of the enumerated conversation states.
func (s ConversationState) Valid() bool {
	switch s {
	case StateIdle, StateAwaitingAccessCode,
		StateSellerMenu, StateAwaitingNumberInput, StateAwaitingCodeInput,
		StateBuyerMenu, StateAwaitingPhoneInput, StateAwaitingOutcomeReport:
		return true
	}
	return false
}

// Session is a participant's conversational position.
type Session struct {
	ID           ChatID
	Role         Role
	State        ConversationState
	ActiveNumber string // phone being transacted, empty when none
}

// NewSession returns the session every participant starts with.
func NewSession(id ChatID) Session {
	return Session{ID: id, Role: RoleNone, State: StateIdle}
}

func (s Session) HasActiveNumber() bool {
	return s.ActiveNumber != ""
}
