// Package bot turns inbound Telegram updates into localized replies.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/promo-bot/internal/bot/handlers"
	"github.com/Proton-105/promo-bot/internal/clientlock"
	"github.com/Proton-105/promo-bot/internal/content"
	"github.com/Proton-105/promo-bot/internal/domain"
	apperrors "github.com/Proton-105/promo-bot/internal/errors"
	"github.com/Proton-105/promo-bot/internal/idempotency"
	"github.com/Proton-105/promo-bot/internal/middleware"
	"github.com/Proton-105/promo-bot/internal/repository"
	"github.com/Proton-105/promo-bot/pkg/logger"
)

// ClientService is the client state store used by the pipeline.
type ClientService interface {
	LanguageSelector
	ClientLookup
	FindOrCreate(ctx context.Context, profile domain.ClientProfile) (*domain.Client, error)
}

// Dependencies groups everything New needs. Idempotency, RateLimit and Locker are optional.
type Dependencies struct {
	Clients     ClientService
	Promos      PromoFinder
	Messages    repository.MessageRepository
	Catalog     *content.Catalog
	Messenger   Messenger
	ErrHandler  *apperrors.Handler
	Idempotency idempotency.Manager
	RateLimit   *middleware.RateLimitMiddleware
	Locker      clientlock.Locker
}

// Bot runs the update pipeline.
type Bot struct {
	clients    ClientService
	messages   repository.MessageRepository
	catalog    *content.Catalog
	dispatcher *Dispatcher
	sender     *Sender
	errHandler *apperrors.Handler
	handler    handlers.Handler
	log        *slog.Logger
}

// New wires the dispatcher, the sender and the middleware chain.
func New(deps Dependencies, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}

	b := &Bot{
		clients:    deps.Clients,
		messages:   deps.Messages,
		catalog:    deps.Catalog,
		dispatcher: NewDispatcher(deps.Clients, deps.Promos, deps.Catalog, log),
		sender:     NewSender(deps.Messenger, deps.Clients, deps.Messages, log),
		errHandler: deps.ErrHandler,
		log:        log,
	}

	var rateLimit handlers.Middleware
	if deps.RateLimit != nil {
		rateLimit = deps.RateLimit.Handle
	}

	b.handler = handlers.Chain(b.handle,
		RecoveryMiddleware(log, deps.ErrHandler),
		middleware.Logging(log),
		middleware.Metrics,
		middleware.Idempotency(deps.Idempotency, log),
		rateLimit,
		ClientLockMiddleware(deps.Locker, log),
	)

	return b
}

// Sender exposes the outbound sender.
func (b *Bot) Sender() *Sender {
	return b.sender
}

// HandleUpdate processes one update. Only a recovered panic is returned as an error;
// see IsPanic.
func (b *Bot) HandleUpdate(ctx context.Context, update telebot.Update) error {
	if update.Message == nil {
		b.log.Warn("update without message ignored", slog.Int("update_id", update.ID))
		return nil
	}

	if logger.CorrelationIDFromContext(ctx) == "" {
		ctx = logger.WithCorrelationID(ctx, logger.NewCorrelationID())
	}

	req := &handlers.Request{
		Update:  update,
		Message: update.Message,
		Action:  ActionLabel(update.Message),
	}

	err := b.handler(ctx, req)
	if IsPanic(err) {
		return err
	}
	return nil
}

func (b *Bot) handle(ctx context.Context, req *handlers.Request) error {
	msg := req.Message
	if msg.Sender == nil || msg.Chat == nil {
		b.log.Warn("message without sender or chat ignored", slog.Int("update_id", req.Update.ID))
		return nil
	}

	chatID := msg.Chat.ID
	profile := profileFromSender(msg.Sender)

	client, err := b.clients.FindOrCreate(ctx, profile)
	if err != nil {
		return b.fail(ctx, chatID, domain.NormalizeLanguage(profile.LanguageHint), apperrors.NewDatabaseError(err))
	}

	if err := b.logIncoming(ctx, client, msg); err != nil {
		return b.fail(ctx, chatID, client.Language, apperrors.NewDatabaseError(err))
	}

	if msg.Text == "" {
		return nil
	}

	replies, err := b.dispatcher.Handle(ctx, msg.Text, client)
	if err != nil {
		var dErr *dispatchError
		if errors.As(err, &dErr) {
			return b.failWith(ctx, chatID, dErr.reply, apperrors.NewDatabaseError(err))
		}
		return b.fail(ctx, chatID, client.Language, apperrors.NewDatabaseError(err))
	}

	for _, reply := range replies {
		if _, err := b.sender.Send(ctx, chatID, reply); err != nil {
			return b.fail(ctx, chatID, client.Language, err)
		}
	}

	return nil
}

// fail reports err and tries to tell the user something went wrong.
func (b *Bot) fail(ctx context.Context, chatID int64, lang string, err error) error {
	return b.failWith(ctx, chatID, Reply{Text: b.catalog.GenericError(lang)}, err)
}

func (b *Bot) failWith(ctx context.Context, chatID int64, reply Reply, err error) error {
	b.errHandler.Handle(ctx, err)

	if _, sendErr := b.sender.Send(ctx, chatID, Reply{Text: reply.Text}); sendErr != nil {
		b.log.Error("failed to send error reply", slog.Int64("chat_id", chatID), slog.Any("error", sendErr))
	}

	return err
}

func (b *Bot) logIncoming(ctx context.Context, client *domain.Client, msg *telebot.Message) error {
	msgType, summary := Classify(msg)

	record := &domain.Message{
		PlatformMessageID: int64(msg.ID),
		ClientID:          client.ID,
		Type:              msgType,
		Content:           summary,
		Direction:         domain.DirectionIncoming,
		Timestamp:         time.Now().UTC(),
		Metadata:          domain.JSONMap{"chat_id": msg.Chat.ID},
	}
	if msg.Unixtime != 0 {
		record.Timestamp = msg.Time().UTC()
	}

	return b.messages.Append(ctx, record)
}

func profileFromSender(u *telebot.User) domain.ClientProfile {
	return domain.ClientProfile{
		PlatformID:   strconv.FormatInt(u.ID, 10),
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		LanguageHint: u.LanguageCode,
	}
}
