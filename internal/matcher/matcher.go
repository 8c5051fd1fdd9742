// Package matcher maps free-form chat input onto language codes and canonical store names.
package matcher

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Proton-105/promo-bot/internal/domain"
)

// Canonical store names as they are stored in the promo catalog.
const (
	StoreWildberries = "Вайлдберриз"
	StoreOzon        = "Озон"
	StoreMVideo      = "М.Видео"
	StoreDNS         = "ДНС"
	StorePyaterochka = "Пятёрочка"
)

var languagePhrases = map[string]string{
	"english": domain.LanguageEnglish,
	"en":      domain.LanguageEnglish,
	"русский": domain.LanguageRussian,
	"russian": domain.LanguageRussian,
	"ru":      domain.LanguageRussian,
	"العربية": domain.LanguageArabic,
	"arabic":  domain.LanguageArabic,
	"ar":      domain.LanguageArabic,
}

var storeSynonyms = map[string]string{
	"вайлдберриз": StoreWildberries,
	"wildberries": StoreWildberries,
	"вб":          StoreWildberries,
	"وايلدبيريز":  StoreWildberries,

	"озон": StoreOzon,
	"ozon": StoreOzon,
	"أوزون": StoreOzon,

	"м.видео":  StoreMVideo,
	"мвидео":   StoreMVideo,
	"m.video":  StoreMVideo,
	"mvideo":   StoreMVideo,
	"إم.فيديو": StoreMVideo,

	"днс":      StoreDNS,
	"dns":      StoreDNS,
	"دي إن إس": StoreDNS,

	"пятёрочка":   StorePyaterochka,
	"пятерочка":   StorePyaterochka,
	"pyaterochka": StorePyaterochka,
	"بياتيروتشكا": StorePyaterochka,
}

// Table resolves normalized input to a value, first by exact key and then,
// when enabled, by the longest key contained in the input as a whole word.
type Table struct {
	entries   map[string]string
	keys      []string
	substring bool
}

// NewTable builds a lookup table. Keys are normalized once here.
func NewTable(entries map[string]string, substring bool) *Table {
	normalized := make(map[string]string, len(entries))
	for key, value := range entries {
		normalized[Normalize(key)] = value
	}

	keys := make([]string, 0, len(normalized))
	for key := range normalized {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(keys[i]), utf8.RuneCountInString(keys[j])
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})

	return &Table{entries: normalized, keys: keys, substring: substring}
}

// Match returns the value for text, or false when nothing matches.
func (t *Table) Match(text string) (string, bool) {
	norm := Normalize(text)
	if norm == "" {
		return "", false
	}

	if value, ok := t.entries[norm]; ok {
		return value, true
	}

	if !t.substring {
		return "", false
	}

	for _, key := range t.keys {
		if containsWord(norm, key) {
			return t.entries[key], true
		}
	}
	return "", false
}

// containsWord reports whether key occurs in s without letters or digits glued to either side.
func containsWord(s, key string) bool {
	for offset := 0; offset <= len(s)-len(key); {
		idx := strings.Index(s[offset:], key)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(key)

		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}

		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

var (
	languages = NewTable(languagePhrases, false)
	stores    = NewTable(storeSynonyms, true)
)

// Language resolves a language phrase ("English", "🇷🇺 Русский", "ar") to its code.
func Language(text string) (string, bool) {
	return languages.Match(text)
}

// Store resolves a store name in any supported language to its canonical catalog name.
func Store(text string) (string, bool) {
	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		return "", false
	}
	return stores.Match(text)
}
