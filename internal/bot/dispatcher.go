package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/promo-bot/internal/bot/keyboard"
	"github.com/Proton-105/promo-bot/internal/content"
	"github.com/Proton-105/promo-bot/internal/domain"
	"github.com/Proton-105/promo-bot/internal/matcher"
)

// Commands understood by the dispatcher.
const (
	CommandStart    = "/start"
	CommandHelp     = "/help"
	CommandLanguage = "/language"
	CommandLang     = "/lang"

	copyPrefix = "/copy_"
)

// Reply is one outbound message produced by the dispatcher.
type Reply struct {
	Text   string
	Markup *telebot.ReplyMarkup
}

// LanguageSelector persists a client's language choice.
type LanguageSelector interface {
	SelectLanguage(ctx context.Context, client *domain.Client, code string) error
}

// PromoFinder looks up redeemable promos.
type PromoFinder interface {
	FindByCode(ctx context.Context, input string) (*domain.Promo, error)
	FindByStore(ctx context.Context, store string) ([]domain.Promo, error)
}

// Dispatcher decides which reply an inbound text gets, given the client's state.
type Dispatcher struct {
	clients LanguageSelector
	promos  PromoFinder
	catalog *content.Catalog
	log     *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(clients LanguageSelector, promos PromoFinder, catalog *content.Catalog, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		clients: clients,
		promos:  promos,
		catalog: catalog,
		log:     log,
	}
}

// dispatchError carries the localized reply that should replace the generic error text.
type dispatchError struct {
	err   error
	reply Reply
}

func (e *dispatchError) Error() string { return e.err.Error() }
func (e *dispatchError) Unwrap() error { return e.err }

// Handle returns the replies for text, in send order. Empty text yields no replies.
// client may be mutated when the language is selected.
func (d *Dispatcher) Handle(ctx context.Context, text string, client *domain.Client) ([]Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" || client == nil {
		return nil, nil
	}

	if !client.LanguageSelected {
		if code, ok := matcher.Language(text); ok {
			return d.selectLanguage(ctx, client, code)
		}
		return []Reply{d.languagePicker(client.Language)}, nil
	}

	lang := client.Language

	if strings.HasPrefix(text, "/") {
		command := commandToken(text)

		switch strings.ToLower(command) {
		case CommandStart:
			return []Reply{d.storeMenu(lang, client.FirstName)}, nil
		case CommandHelp:
			return []Reply{{Text: d.catalog.Help(lang)}}, nil
		case CommandLanguage, CommandLang:
			return []Reply{d.languagePicker(lang)}, nil
		}

		if code, ok := copySuffix(text); ok {
			if strings.TrimSpace(code) == "" {
				return []Reply{{Text: d.catalog.CopyError(lang)}}, nil
			}
			return []Reply{{Text: code}}, nil
		}

		return []Reply{{Text: d.catalog.UnknownCommand(lang)}}, nil
	}

	if code, ok := matcher.Language(text); ok {
		return d.selectLanguage(ctx, client, code)
	}

	if store, ok := matcher.Store(text); ok {
		return d.storePromos(ctx, lang, store)
	}

	return d.promoByCode(ctx, lang, text)
}

func (d *Dispatcher) selectLanguage(ctx context.Context, client *domain.Client, code string) ([]Reply, error) {
	if err := d.clients.SelectLanguage(ctx, client, code); err != nil {
		return nil, fmt.Errorf("select language %q: %w", code, err)
	}

	d.log.Info("client selected language",
		slog.String("telegram_id", client.PlatformID),
		slog.String("language", code),
	)

	return []Reply{
		{Text: d.catalog.LanguageConfirmed(code)},
		d.storeMenu(code, client.FirstName),
	}, nil
}

func (d *Dispatcher) storePromos(ctx context.Context, lang, store string) ([]Reply, error) {
	promos, err := d.promos.FindByStore(ctx, store)
	if err != nil {
		return nil, &dispatchError{
			err:   fmt.Errorf("find promos for store %q: %w", store, err),
			reply: Reply{Text: d.catalog.PromosError(lang)},
		}
	}

	if len(promos) == 0 {
		return []Reply{{Text: d.catalog.NoPromos(lang, store)}}, nil
	}

	return []Reply{{Text: d.catalog.PromoList(lang, store, promos)}}, nil
}

func (d *Dispatcher) promoByCode(ctx context.Context, lang, text string) ([]Reply, error) {
	p, err := d.promos.FindByCode(ctx, text)
	if err != nil {
		return nil, &dispatchError{
			err:   fmt.Errorf("find promo by code: %w", err),
			reply: Reply{Text: d.catalog.CheckError(lang)},
		}
	}

	if p == nil {
		return []Reply{{Text: d.catalog.PromoNotFound(lang, strings.ToUpper(text))}}, nil
	}

	return []Reply{{Text: d.catalog.PromoFound(lang, *p)}}, nil
}

func (d *Dispatcher) languagePicker(lang string) Reply {
	return Reply{Text: d.catalog.LanguagePicker(lang), Markup: keyboard.LanguagePicker()}
}

func (d *Dispatcher) storeMenu(lang, firstName string) Reply {
	return Reply{
		Text:   d.catalog.StoreMenu(lang, firstName),
		Markup: keyboard.StoreMenu(d.catalog.StoreButtons(lang)),
	}
}

// commandToken returns the first word of text without a trailing @botname.
func commandToken(text string) string {
	command := text
	if i := strings.IndexAny(command, " \t\n"); i >= 0 {
		command = command[:i]
	}
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}
	return command
}

// copySuffix returns everything after the /copy_ prefix, verbatim, with an
// @botname mention removed from the first word. ok is false for other commands.
func copySuffix(text string) (string, bool) {
	if len(text) < len(copyPrefix) || !strings.EqualFold(text[:len(copyPrefix)], copyPrefix) {
		return "", false
	}

	suffix := text[len(copyPrefix):]
	end := strings.IndexAny(suffix, " \t\n")
	if end < 0 {
		end = len(suffix)
	}
	if at := strings.IndexByte(suffix[:end], '@'); at >= 0 {
		suffix = suffix[:at] + suffix[end:]
	}
	return suffix, true
}
