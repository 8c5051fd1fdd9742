package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/promo-bot/internal/domain"
	apperrors "github.com/Proton-105/promo-bot/internal/errors"
	"github.com/Proton-105/promo-bot/internal/repository"
	"github.com/Proton-105/promo-bot/pkg/metrics"
)

// Messenger delivers messages to Telegram. *telebot.Bot satisfies it.
type Messenger interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// ClientLookup resolves an existing client by Telegram id.
type ClientLookup interface {
	Lookup(ctx context.Context, platformID string) (*domain.Client, error)
}

// Sender delivers replies and appends them to the message log.
type Sender struct {
	messenger Messenger
	clients   ClientLookup
	messages  repository.MessageRepository
	breaker   *apperrors.CircuitBreaker
	log       *slog.Logger
}

// NewSender creates a Sender. A nil messenger turns Send into a logged no-op.
func NewSender(messenger Messenger, clients ClientLookup, messages repository.MessageRepository, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}

	return &Sender{
		messenger: messenger,
		clients:   clients,
		messages:  messages,
		breaker:   newSendBreaker(),
		log:       log,
	}
}

// Send delivers reply to chatID. Platform failures are returned as external API errors;
// failures to log the delivered message are only logged.
func (s *Sender) Send(ctx context.Context, chatID int64, reply Reply) (*telebot.Message, error) {
	if s.messenger == nil {
		s.log.Error("telegram bot is not configured, message dropped", slog.Int64("chat_id", chatID))
		return nil, nil
	}

	opts := []interface{}{}
	if reply.Markup != nil {
		opts = append(opts, reply.Markup)
	}

	var sent *telebot.Message
	err := s.breaker.Call(func() error {
		var sendErr error
		sent, sendErr = s.messenger.Send(telebot.ChatID(chatID), reply.Text, opts...)
		return sendErr
	})
	if err != nil {
		metrics.RecordOutbound("error")
		s.log.Error("failed to send telegram message", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return nil, apperrors.NewExternalAPIError("telegram", err)
	}

	metrics.RecordOutbound("ok")
	s.logOutgoing(ctx, chatID, reply, sent)

	return sent, nil
}

func newSendBreaker() *apperrors.CircuitBreaker {
	settings := apperrors.DefaultBreakerSettings
	settings.IsSuccessful = isRecipientError
	return apperrors.NewCircuitBreaker(settings)
}

// isRecipientError reports whether Telegram rejected a send because of the chat itself
// (blocked bot, deleted account, unknown chat). Such errors say nothing about the API's
// health and must not open the breaker for other clients. Rate limits (429), 5xx and
// network errors are not recipient errors.
func isRecipientError(err error) bool {
	if errors.Is(err, telebot.ErrBlockedByUser) ||
		errors.Is(err, telebot.ErrChatNotFound) ||
		errors.Is(err, telebot.ErrUserIsDeactivated) {
		return true
	}

	var tgErr *telebot.Error
	if errors.As(err, &tgErr) {
		return tgErr.Code == 400 || tgErr.Code == 403
	}
	return false
}

func (s *Sender) logOutgoing(ctx context.Context, chatID int64, reply Reply, sent *telebot.Message) {
	if s.clients == nil || s.messages == nil {
		return
	}

	platformID := strconv.FormatInt(chatID, 10)
	client, err := s.clients.Lookup(ctx, platformID)
	if errors.Is(err, repository.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Warn("failed to resolve client for outgoing message", slog.String("telegram_id", platformID), slog.Any("error", err))
		return
	}

	record := &domain.Message{
		ClientID:  client.ID,
		Type:      domain.MessageTypeText,
		Content:   reply.Text,
		Direction: domain.DirectionOutgoing,
		Timestamp: time.Now().UTC(),
		Metadata: domain.JSONMap{
			"chat_id":      chatID,
			"reply_markup": reply.Markup != nil,
		},
	}
	if sent != nil {
		record.PlatformMessageID = int64(sent.ID)
		if sent.Unixtime != 0 {
			record.Timestamp = sent.Time().UTC()
		}
	}

	if err := s.messages.Append(ctx, record); err != nil {
		s.log.Warn("failed to log outgoing message", slog.Int64("client_id", client.ID), slog.Any("error", err))
	}
}
