package protocol

// MessageType identifies the payload carried by an envelope.
// Only MessageTypeCommand is accepted on the wire today.
type MessageType uint8

const (
	MessageTypeCommand MessageType = 2
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeCommand:
		return "COMMAND"
	default:
		return "UNKNOWN"
	}
}
