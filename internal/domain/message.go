package domain

import "time"

// MessageType classifies logged messages.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeCommand  MessageType = "command"
	MessageTypePhoto    MessageType = "photo"
	MessageTypeSticker  MessageType = "sticker"
	MessageTypeDocument MessageType = "document"
	MessageTypeVoice    MessageType = "voice"
	MessageTypeVideo    MessageType = "video"
	MessageTypeLocation MessageType = "location"
	MessageTypeContact  MessageType = "contact"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeCommand, MessageTypePhoto, MessageTypeSticker, MessageTypeDocument,
		MessageTypeVoice, MessageTypeVideo, MessageTypeLocation, MessageTypeContact:
		return true
	default:
		return false
	}
}

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

func (d Direction) Valid() bool {
	return d == DirectionIncoming || d == DirectionOutgoing
}

// Message is one entry of the append-only conversation log.
type Message struct {
	ID                int64       `json:"id" db:"id"`
	PlatformMessageID int64       `json:"messageId" db:"message_id"`
	ClientID          int64       `json:"clientId" db:"client_id"`
	Type              MessageType `json:"type" db:"type"`
	Content           string      `json:"content" db:"content"`
	Direction         Direction   `json:"direction" db:"direction"`
	Timestamp         time.Time   `json:"timestamp" db:"timestamp"`
	Metadata          JSONMap     `json:"metadata,omitempty" db:"metadata"`
	CreatedAt         time.Time   `json:"createdAt" db:"created_at"`
}

// ClientSummary is the client projection embedded in admin message listings.
type ClientSummary struct {
	ID         int64  `json:"id" db:"id"`
	PlatformID string `json:"telegramId" db:"telegram_id"`
	FirstName  string `json:"firstName" db:"first_name"`
	LastName   string `json:"lastName" db:"last_name"`
	Username   string `json:"username" db:"username"`
}

// MessageWithClient is a logged message joined with its client.
type MessageWithClient struct {
	Message
	Client ClientSummary `json:"client" db:"client"`
}
