package bus

// InboundMessage is a single event from a chat transport: either a free-text
// message or a button press (CallbackData non-empty).
type InboundMessage struct {
	Channel      string            `json:"channel"`
	SenderID     string            `json:"sender_id"`
	ChatID       string            `json:"chat_id"`
	Content      string            `json:"content"`
	CallbackData string            `json:"callback_data,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Button is one inline keyboard button. Data is the fixed action token sent
// back as CallbackData when the button is pressed.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

type OutboundMessage struct {
	Channel string     `json:"channel"`
	ChatID  string     `json:"chat_id"`
	Content string     `json:"content"`
	Buttons [][]Button `json:"buttons,omitempty"`
}
