// Package content renders the localized bot copy.
package content

import (
	"strings"
	"time"

	"github.com/Proton-105/promo-bot/internal/domain"
	"github.com/Proton-105/promo-bot/internal/i18n"
)

// Store button keys in menu order.
var storeKeys = []string{
	"store.buttons.wildberries",
	"store.buttons.ozon",
	"store.buttons.mvideo",
	"store.buttons.dns",
	"store.buttons.pyaterochka",
}

// Catalog returns localized text for every bot reply. Unknown language codes
// fall back to the manager's default language.
type Catalog struct {
	locales *i18n.Manager
}

// New creates a Catalog backed by the given translations.
func New(locales *i18n.Manager) *Catalog {
	return &Catalog{locales: locales}
}

func (c *Catalog) LanguagePicker(lang string) string {
	return c.t(lang, "language.picker")
}

func (c *Catalog) LanguageConfirmed(lang string) string {
	return c.t(lang, "language.confirmed")
}

func (c *Catalog) Help(lang string) string {
	return c.t(lang, "help")
}

func (c *Catalog) UnknownCommand(lang string) string {
	return c.t(lang, "errors.unknown_command")
}

func (c *Catalog) GenericError(lang string) string {
	return c.t(lang, "errors.generic")
}

func (c *Catalog) CopyError(lang string) string {
	return c.t(lang, "errors.copy")
}

func (c *Catalog) PromosError(lang string) string {
	return c.t(lang, "errors.promos")
}

func (c *Catalog) CheckError(lang string) string {
	return c.t(lang, "errors.check")
}

// StoreMenu greets the client by first name and lists the stores.
func (c *Catalog) StoreMenu(lang, firstName string) string {
	return c.locales.Translator(lang).Tf("store.menu", "name", firstName)
}

// StoreButtons returns the store keyboard labels in menu order.
func (c *Catalog) StoreButtons(lang string) []string {
	tr := c.locales.Translator(lang)
	labels := make([]string, 0, len(storeKeys))
	for _, key := range storeKeys {
		labels = append(labels, tr.T(key))
	}
	return labels
}

func (c *Catalog) NoPromos(lang, store string) string {
	return c.locales.Translator(lang).Tf("store.no_promos", "store", store)
}

func (c *Catalog) PromoNotFound(lang, code string) string {
	return c.locales.Translator(lang).Tf("promo.not_found", "code", code)
}

// PromoList renders the active promos of a store, newest first as given.
func (c *Catalog) PromoList(lang, store string, promos []domain.Promo) string {
	tr := c.locales.Translator(lang)

	var b strings.Builder
	b.WriteString(tr.Tf("store.header", "store", store))

	for i, p := range promos {
		b.WriteString("💳 " + p.Code + "\n")
		b.WriteString("🎁 " + p.Discount + "\n")
		b.WriteString(tr.T("promo.labels.min_price") + " " + c.price(tr, p) + "\n")
		b.WriteString(tr.T("promo.labels.regions") + " " + strings.Join(p.Locations, ", ") + "\n")
		b.WriteString(tr.T("promo.labels.valid_until") + " " + c.date(tr, p.ExpiresAt) + "\n")
		b.WriteString(copyLine(tr, p.Code) + "\n")
		if i < len(promos)-1 {
			b.WriteString("\n")
		}
	}

	b.WriteString(tr.T("store.footer"))
	return b.String()
}

// PromoFound renders the full detail of a single promo, store included.
func (c *Catalog) PromoFound(lang string, p domain.Promo) string {
	tr := c.locales.Translator(lang)

	var b strings.Builder
	b.WriteString(tr.T("promo.found") + "\n\n")
	b.WriteString("💳 " + p.Code + "\n")
	b.WriteString("🎁 " + p.Discount + "\n")
	b.WriteString(tr.T("promo.labels.min_price") + " " + c.price(tr, p) + "\n")
	b.WriteString(tr.T("promo.labels.store") + " " + p.Store + "\n")
	b.WriteString(tr.T("promo.labels.locations") + " " + strings.Join(p.Locations, ", ") + "\n")
	b.WriteString(tr.T("promo.labels.valid_until") + " " + c.date(tr, p.ExpiresAt) + "\n\n")
	b.WriteString(copyLine(tr, p.Code))
	return b.String()
}

func (c *Catalog) t(lang, key string) string {
	return c.locales.Translator(lang).T(key)
}

func (c *Catalog) price(tr i18n.Translator, p domain.Promo) string {
	return p.MinPrice.String() + tr.T("format.currency")
}

func (c *Catalog) date(tr i18n.Translator, t time.Time) string {
	return t.Format(tr.T("format.date"))
}

func copyLine(tr i18n.Translator, code string) string {
	return "📋 /copy_" + code + tr.T("promo.copy_hint")
}
