package bot

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/promo-bot/internal/content"
	"github.com/Proton-105/promo-bot/internal/domain"
	"github.com/Proton-105/promo-bot/internal/i18n"
	"github.com/Proton-105/promo-bot/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCatalog(t *testing.T) *content.Catalog {
	t.Helper()
	m, err := i18n.Load(domain.DefaultLanguage)
	require.NoError(t, err)
	return content.New(m)
}

// fakeClients mirrors client.Service: a selected language is never overwritten by the hint.
type fakeClients struct {
	mu          sync.Mutex
	byPlatform  map[string]*domain.Client
	nextID      int64
	findErr     error
	selectErr   error
	selectCalls int
}

func newFakeClients() *fakeClients {
	return &fakeClients{byPlatform: make(map[string]*domain.Client)}
}

func (f *fakeClients) FindOrCreate(_ context.Context, profile domain.ClientProfile) (*domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return nil, f.findErr
	}

	c, ok := f.byPlatform[profile.PlatformID]
	if !ok {
		f.nextID++
		c = &domain.Client{ID: f.nextID, PlatformID: profile.PlatformID, IsActive: true}
		f.byPlatform[profile.PlatformID] = c
	}
	c.FirstName = profile.FirstName
	c.LastName = profile.LastName
	c.Username = profile.Username
	if !c.LanguageSelected {
		c.Language = domain.NormalizeLanguage(profile.LanguageHint)
	}

	cp := *c
	return &cp, nil
}

func (f *fakeClients) SelectLanguage(_ context.Context, client *domain.Client, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.selectCalls++
	if f.selectErr != nil {
		return f.selectErr
	}

	client.Language = code
	client.LanguageSelected = true
	if stored, ok := f.byPlatform[client.PlatformID]; ok {
		stored.Language = code
		stored.LanguageSelected = true
	}
	return nil
}

func (f *fakeClients) Lookup(_ context.Context, platformID string) (*domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.byPlatform[platformID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// fakePromos applies the redeemability predicate at a fixed moment.
type fakePromos struct {
	promos []domain.Promo
	now    time.Time
	err    error
}

func (f *fakePromos) FindByCode(_ context.Context, input string) (*domain.Promo, error) {
	if f.err != nil {
		return nil, f.err
	}
	code := strings.ToUpper(strings.TrimSpace(input))
	for _, p := range f.promos {
		if p.Code == code && p.IsRedeemable(f.now) {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakePromos) FindByStore(_ context.Context, store string) ([]domain.Promo, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.Promo{}
	for _, p := range f.promos {
		if strings.EqualFold(p.Store, store) && p.IsRedeemable(f.now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeMessages struct {
	mu      sync.Mutex
	records []domain.Message
	err     error
}

func (f *fakeMessages) Append(_ context.Context, m *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	m.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *m)
	return nil
}

func (f *fakeMessages) List(context.Context, repository.MessageFilter) ([]domain.MessageWithClient, int64, error) {
	return nil, 0, nil
}

func (f *fakeMessages) byDirection(d domain.Direction) []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []domain.Message{}
	for _, m := range f.records {
		if m.Direction == d {
			out = append(out, m)
		}
	}
	return out
}

type sentMessage struct {
	chat   string
	text   string
	markup *telebot.ReplyMarkup
}

// recordingMessenger captures outbound messages instead of calling Telegram.
type recordingMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
	// chatErr fails sends to specific chats only.
	chatErr map[string]error
}

func (m *recordingMessenger) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if err := m.chatErr[to.Recipient()]; err != nil {
		return nil, err
	}

	msg := sentMessage{chat: to.Recipient(), text: what.(string)}
	for _, opt := range opts {
		if markup, ok := opt.(*telebot.ReplyMarkup); ok {
			msg.markup = markup
		}
	}
	m.sent = append(m.sent, msg)

	return &telebot.Message{ID: len(m.sent), Unixtime: time.Now().Unix()}, nil
}

func (m *recordingMessenger) take() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.sent
	m.sent = nil
	return out
}

func textUpdate(updateID int, userID int64, text string) telebot.Update {
	return telebot.Update{
		ID: updateID,
		Message: &telebot.Message{
			ID:       updateID * 10,
			Unixtime: time.Now().Unix(),
			Text:     text,
			Sender:   &telebot.User{ID: userID, FirstName: "Ann", LanguageCode: "en"},
			Chat:     &telebot.Chat{ID: userID},
		},
	}
}

func platformID(id int64) string {
	return strconv.FormatInt(id, 10)
}
