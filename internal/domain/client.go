package domain

import "time"

// Supported interface languages.
const (
	LanguageEnglish = "en"
	LanguageRussian = "ru"
	LanguageArabic  = "ar"

	DefaultLanguage = LanguageEnglish
)

// Client is a bot end user identified by the Telegram user id.
type Client struct {
	ID               int64     `json:"id" db:"id"`
	PlatformID       string    `json:"telegramId" db:"telegram_id"`
	FirstName        string    `json:"firstName" db:"first_name"`
	LastName         string    `json:"lastName" db:"last_name"`
	Username         string    `json:"username" db:"username"`
	Language         string    `json:"language" db:"language"`
	LanguageSelected bool      `json:"languageSelected" db:"language_selected"`
	JoinedAt         time.Time `json:"joinedAt" db:"joined_at"`
	IsActive         bool      `json:"isActive" db:"is_active"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

// ClientProfile carries the mutable profile fields reported by Telegram on every update.
type ClientProfile struct {
	PlatformID   string
	FirstName    string
	LastName     string
	Username     string
	LanguageHint string
}

// IsSupportedLanguage reports whether code is one of en, ru, ar.
func IsSupportedLanguage(code string) bool {
	switch code {
	case LanguageEnglish, LanguageRussian, LanguageArabic:
		return true
	default:
		return false
	}
}

// NormalizeLanguage maps a Telegram language_code such as "ru-RU" onto a supported code,
// falling back to DefaultLanguage.
func NormalizeLanguage(code string) string {
	if len(code) >= 2 {
		if short := code[:2]; IsSupportedLanguage(short) {
			return short
		}
	}
	return DefaultLanguage
}
