package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/promo-bot/internal/domain"
	apperrors "github.com/Proton-105/promo-bot/internal/errors"
	"github.com/Proton-105/promo-bot/internal/idempotency"
	"github.com/Proton-105/promo-bot/internal/matcher"
)

type testBot struct {
	bot       *Bot
	clients   *fakeClients
	promos    *fakePromos
	messages  *fakeMessages
	messenger *recordingMessenger
}

func newTestBot(t *testing.T, mutate func(*Dependencies)) *testBot {
	t.Helper()

	tb := &testBot{
		clients:   newFakeClients(),
		promos:    &fakePromos{now: time.Now()},
		messages:  &fakeMessages{},
		messenger: &recordingMessenger{},
	}

	deps := Dependencies{
		Clients:    tb.clients,
		Promos:     tb.promos,
		Messages:   tb.messages,
		Catalog:    newTestCatalog(t),
		Messenger:  tb.messenger,
		ErrHandler: apperrors.NewHandler(testLogger(), false),
	}
	if mutate != nil {
		mutate(&deps)
	}

	tb.bot = New(deps, testLogger())
	return tb
}

func TestBot_EndToEndScenario(t *testing.T) {
	tb := newTestBot(t, nil)
	catalog := tb.bot.catalog
	ctx := context.Background()
	const userID int64 = 4242

	require.NoError(t, tb.bot.HandleUpdate(ctx, textUpdate(1, userID, "/start")))
	sent := tb.messenger.take()
	require.Len(t, sent, 1)
	assert.Equal(t, catalog.LanguagePicker("en"), sent[0].text)
	assert.Equal(t, platformID(userID), sent[0].chat)
	require.NotNil(t, sent[0].markup)
	assert.True(t, sent[0].markup.OneTimeKeyboard)

	require.NoError(t, tb.bot.HandleUpdate(ctx, textUpdate(2, userID, "English")))
	sent = tb.messenger.take()
	require.Len(t, sent, 2)
	assert.Equal(t, catalog.LanguageConfirmed("en"), sent[0].text)
	assert.Equal(t, catalog.StoreMenu("en", "Ann"), sent[1].text)
	require.NotNil(t, sent[1].markup)
	assert.False(t, sent[1].markup.OneTimeKeyboard)

	require.NoError(t, tb.bot.HandleUpdate(ctx, textUpdate(3, userID, "Wildberries")))
	sent = tb.messenger.take()
	require.Len(t, sent, 1)
	assert.Equal(t, catalog.NoPromos("en", matcher.StoreWildberries), sent[0].text)

	stored, err := tb.clients.Lookup(ctx, platformID(userID))
	require.NoError(t, err)
	assert.True(t, stored.LanguageSelected)
	assert.Equal(t, "en", stored.Language)

	incoming := tb.messages.byDirection(domain.DirectionIncoming)
	outgoing := tb.messages.byDirection(domain.DirectionOutgoing)
	require.Len(t, incoming, 3)
	assert.Len(t, outgoing, 4)
	assert.Equal(t, domain.MessageTypeCommand, incoming[0].Type)
	assert.Equal(t, domain.MessageTypeText, incoming[1].Type)
	assert.Equal(t, stored.ID, outgoing[0].ClientID)
}

func TestBot_StoreListNewestFirst(t *testing.T) {
	tb := newTestBot(t, nil)
	ctx := context.Background()
	now := time.Now()

	tb.promos.promos = []domain.Promo{
		storePromo("FIRST", matcher.StoreWildberries, now.Add(-2*time.Hour)),
		storePromo("SECOND", matcher.StoreWildberries, now.Add(-time.Hour)),
	}
	for i := range tb.promos.promos {
		tb.promos.promos[i].ExpiresAt = now.Add(time.Hour)
	}

	tb.clients.byPlatform["7"] = &domain.Client{ID: 1, PlatformID: "7", FirstName: "Ann", Language: "en", LanguageSelected: true}

	require.NoError(t, tb.bot.HandleUpdate(ctx, textUpdate(1, 7, "wildberries")))
	sent := tb.messenger.take()
	require.Len(t, sent, 1)
	assert.Equal(t, tb.bot.catalog.PromoList("en", matcher.StoreWildberries, []domain.Promo{
		tb.promos.promos[1], tb.promos.promos[0],
	}), sent[0].text)
}

func TestBot_NonTextMessageIsLoggedWithoutReply(t *testing.T) {
	tb := newTestBot(t, nil)

	update := textUpdate(1, 9, "")
	update.Message.Sticker = &telebot.Sticker{}

	require.NoError(t, tb.bot.HandleUpdate(context.Background(), update))
	assert.Empty(t, tb.messenger.take())

	incoming := tb.messages.byDirection(domain.DirectionIncoming)
	require.Len(t, incoming, 1)
	assert.Equal(t, domain.MessageTypeSticker, incoming[0].Type)
	assert.Equal(t, "Sticker", incoming[0].Content)
}

func TestBot_UpdateWithoutMessageIsIgnored(t *testing.T) {
	tb := newTestBot(t, nil)

	require.NoError(t, tb.bot.HandleUpdate(context.Background(), telebot.Update{ID: 5}))
	assert.Empty(t, tb.messenger.take())
	assert.Empty(t, tb.messages.records)
}

func TestBot_PersistenceErrorSendsGenericError(t *testing.T) {
	tb := newTestBot(t, nil)
	tb.clients.findErr = errors.New("connection refused")

	require.NoError(t, tb.bot.HandleUpdate(context.Background(), textUpdate(1, 11, "/start")))

	sent := tb.messenger.take()
	require.Len(t, sent, 1)
	assert.Equal(t, tb.bot.catalog.GenericError("en"), sent[0].text)
	assert.Nil(t, sent[0].markup)
}

func TestBot_LookupErrorSendsLocalizedError(t *testing.T) {
	tb := newTestBot(t, nil)
	tb.promos.err = errors.New("connection refused")
	tb.clients.byPlatform["12"] = &domain.Client{ID: 1, PlatformID: "12", FirstName: "Ann", Language: "ru", LanguageSelected: true}

	require.NoError(t, tb.bot.HandleUpdate(context.Background(), textUpdate(1, 12, "SAVE10")))

	sent := tb.messenger.take()
	require.Len(t, sent, 1)
	assert.Equal(t, tb.bot.catalog.CheckError("ru"), sent[0].text)
}

func TestBot_SendFailureIsSwallowed(t *testing.T) {
	tb := newTestBot(t, nil)
	tb.messenger.err = errors.New("telegram: bad gateway")

	assert.NoError(t, tb.bot.HandleUpdate(context.Background(), textUpdate(1, 13, "/start")))
	assert.Empty(t, tb.messages.byDirection(domain.DirectionOutgoing))
}

type panickingClients struct {
	*fakeClients
}

func (panickingClients) FindOrCreate(context.Context, domain.ClientProfile) (*domain.Client, error) {
	panic("boom")
}

func TestBot_PanicIsReturned(t *testing.T) {
	tb := newTestBot(t, func(d *Dependencies) {
		d.Clients = panickingClients{newFakeClients()}
	})

	err := tb.bot.HandleUpdate(context.Background(), textUpdate(1, 14, "/start"))
	require.Error(t, err)
	assert.True(t, IsPanic(err))
}

func TestBot_DuplicateUpdateHandledOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tb := newTestBot(t, func(d *Dependencies) {
		d.Idempotency = idempotency.NewManager(idempotency.NewRedisStore(rdb, testLogger()), testLogger(), time.Hour)
	})
	ctx := context.Background()

	update := textUpdate(77, 15, "/start")
	require.NoError(t, tb.bot.HandleUpdate(ctx, update))
	require.NoError(t, tb.bot.HandleUpdate(ctx, update))

	assert.Len(t, tb.messenger.take(), 1)
	assert.Len(t, tb.messages.byDirection(domain.DirectionIncoming), 1)
}

func TestSender_NilMessengerIsNoop(t *testing.T) {
	s := NewSender(nil, newFakeClients(), &fakeMessages{}, testLogger())

	msg, err := s.Send(context.Background(), 1, Reply{Text: "hi"})
	assert.NoError(t, err)
	assert.Nil(t, msg)
}

func TestSender_PlatformErrorIsExternalAPIError(t *testing.T) {
	s := NewSender(&recordingMessenger{err: errors.New("403 forbidden")}, newFakeClients(), &fakeMessages{}, testLogger())

	_, err := s.Send(context.Background(), 1, Reply{Text: "hi"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeExternalAPI, appErr.Code)
}

func TestSender_UnknownClientIsNotLogged(t *testing.T) {
	messages := &fakeMessages{}
	s := NewSender(&recordingMessenger{}, newFakeClients(), messages, testLogger())

	msg, err := s.Send(context.Background(), 99, Reply{Text: "hi"})
	require.NoError(t, err)
	assert.NotNil(t, msg)
	assert.Empty(t, messages.records)
}

func TestSender_RecipientErrorsDoNotOpenBreaker(t *testing.T) {
	blocked := []error{
		telebot.ErrBlockedByUser,
		telebot.ErrChatNotFound,
		telebot.ErrUserIsDeactivated,
		telebot.NewError(403, "Forbidden: bot was kicked from the group chat"),
	}

	for _, chatErr := range blocked {
		t.Run(chatErr.Error(), func(t *testing.T) {
			messenger := &recordingMessenger{chatErr: map[string]error{"1": chatErr}}
			s := NewSender(messenger, newFakeClients(), &fakeMessages{}, testLogger())
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				_, err := s.Send(ctx, 2, Reply{Text: "ok"})
				require.NoError(t, err)
			}
			for i := 0; i < 10; i++ {
				_, err := s.Send(ctx, 1, Reply{Text: "blocked"})
				require.ErrorIs(t, err, chatErr)
			}

			_, err := s.Send(ctx, 2, Reply{Text: "Wildberries"})
			require.NoError(t, err)
			assert.Equal(t, apperrors.StateClosed, s.breaker.State())
			assert.Len(t, messenger.take(), 6)
		})
	}
}

func TestSender_OutageOpensBreaker(t *testing.T) {
	messenger := &recordingMessenger{err: errors.New("dial tcp: connection refused")}
	s := NewSender(messenger, newFakeClients(), &fakeMessages{}, testLogger())
	ctx := context.Background()

	for i := 0; i < apperrors.DefaultBreakerSettings.MinRequests; i++ {
		_, _ = s.Send(ctx, 2, Reply{Text: "hi"})
	}
	assert.Equal(t, apperrors.StateOpen, s.breaker.State())

	messenger.err = nil
	_, err := s.Send(ctx, 2, Reply{Text: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)
}

func TestIsRecipientError(t *testing.T) {
	assert.True(t, isRecipientError(telebot.ErrBlockedByUser))
	assert.True(t, isRecipientError(fmt.Errorf("send: %w", telebot.ErrChatNotFound)))
	assert.False(t, isRecipientError(telebot.NewError(502, "Bad Gateway")))
	assert.False(t, isRecipientError(telebot.FloodError{RetryAfter: 5}))
	assert.False(t, isRecipientError(errors.New("telegram: Internal Server Error (500)")))
}
