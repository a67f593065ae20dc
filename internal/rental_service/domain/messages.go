package domain

// Button is one inline keyboard button. Token is the opaque callback data
// echoed back by the transport when the button is pressed.
type Button struct {
	Label string `json:"text"`
	Token string `json:"callback_data"`
}

// Keyboard is an ordered set of button rows.
type Keyboard [][]Button

// OutboundMessage is a message the bot sends to a chat. Text is HTML.
type OutboundMessage struct {
	ChatID   ChatID
	Text     string
	Keyboard Keyboard
}

// Effects are the observable results of one use case: an optional short
// acknowledgement shown for a button press, and the messages to send, in order.
// Effects are produced after state has been committed.
type Effects struct {
	Toast    string
	Messages []OutboundMessage
}

// Notify appends a message to the effects.
func (e *Effects) Notify(chatID ChatID, text string, kb Keyboard) {
	e.Messages = append(e.Messages, OutboundMessage{ChatID: chatID, Text: text, Keyboard: kb})
}

// IsEmpty reports whether nothing would be delivered.
func (e Effects) IsEmpty() bool {
	return e.Toast == "" && len(e.Messages) == 0
}
