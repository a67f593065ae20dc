package domain

// IncomingMessage is a free-text message typed by a participant.
type IncomingMessage struct {
	ChatID ChatID
	Text   string
}

// CallbackPress is an inline button press.
type CallbackPress struct {
	ChatID     ChatID
	Token      string
	CallbackID string
}

// Update is one inbound event from the transport. Exactly one of Message
// and Callback is set; updates carrying neither are skipped.
type Update struct {
	ID       int64
	Message  *IncomingMessage
	Callback *CallbackPress
}

// Kind names the event kind for logs and metrics.
func (u Update) Kind() string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message != nil:
		return "message"
	default:
		return "other"
	}
}
