package bot

import (
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/promo-bot/internal/domain"
)

// Classify returns the logged type of msg and a short content summary.
func Classify(msg *telebot.Message) (domain.MessageType, string) {
	if msg == nil {
		return domain.MessageTypeText, "Unknown message type"
	}

	switch {
	case strings.HasPrefix(msg.Text, "/"):
		return domain.MessageTypeCommand, msg.Text
	case msg.Text != "":
		return domain.MessageTypeText, msg.Text
	case msg.Photo != nil:
		return domain.MessageTypePhoto, "Photo"
	case msg.Sticker != nil:
		return domain.MessageTypeSticker, "Sticker"
	case msg.Document != nil:
		if msg.Document.FileName != "" {
			return domain.MessageTypeDocument, msg.Document.FileName
		}
		return domain.MessageTypeDocument, "Document"
	case msg.Voice != nil:
		return domain.MessageTypeVoice, "Voice message"
	case msg.Video != nil:
		return domain.MessageTypeVideo, "Video"
	case msg.Location != nil:
		return domain.MessageTypeLocation, "Location: " + formatCoord(msg.Location.Lat) + ", " + formatCoord(msg.Location.Lng)
	case msg.Contact != nil:
		return domain.MessageTypeContact, "Contact: " + msg.Contact.FirstName + " " + msg.Contact.PhoneNumber
	default:
		return domain.MessageTypeText, "Unknown message type"
	}
}

// ActionLabel names the update for metrics without leaking free text into label values.
func ActionLabel(msg *telebot.Message) string {
	msgType, _ := Classify(msg)
	if msgType != domain.MessageTypeCommand {
		return string(msgType)
	}

	command := strings.ToLower(commandToken(msg.Text))
	switch {
	case command == CommandStart, command == CommandHelp, command == CommandLanguage, command == CommandLang:
		return command
	case strings.HasPrefix(command, copyPrefix):
		return "/copy"
	default:
		return "/unknown"
	}
}

func formatCoord(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
