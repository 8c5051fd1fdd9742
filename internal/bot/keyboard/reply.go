package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// Language picker button labels.
const (
	LanguageEnglish = "🇬🇧 English"
	LanguageRussian = "🇷🇺 Русский"
	LanguageArabic  = "🇸🇦 العربية"
)

// LanguagePicker builds the one-time reply keyboard offering every supported language.
func LanguagePicker() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}

	markup.Reply(
		markup.Row(markup.Text(LanguageEnglish)),
		markup.Row(markup.Text(LanguageRussian)),
		markup.Row(markup.Text(LanguageArabic)),
	)

	return markup
}

// StoreMenu builds the persistent store keyboard from localized labels,
// laid out two buttons per row.
func StoreMenu(labels []string) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: false,
	}

	rows := make([]telebot.Row, 0, (len(labels)+1)/2)
	for i := 0; i < len(labels); i += 2 {
		row := telebot.Row{markup.Text(labels[i])}
		if i+1 < len(labels) {
			row = append(row, markup.Text(labels[i+1]))
		}
		rows = append(rows, row)
	}

	markup.Reply(rows...)
	return markup
}
