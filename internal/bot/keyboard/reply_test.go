package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/promo-bot/internal/bot/keyboard"
)

func TestLanguagePicker(t *testing.T) {
	markup := keyboard.LanguagePicker()

	assert.True(t, markup.ResizeKeyboard)
	assert.True(t, markup.OneTimeKeyboard)

	expected := []string{"🇬🇧 English", "🇷🇺 Русский", "🇸🇦 العربية"}
	require.Len(t, markup.ReplyKeyboard, len(expected))
	for i, text := range expected {
		require.Len(t, markup.ReplyKeyboard[i], 1)
		assert.Equal(t, text, markup.ReplyKeyboard[i][0].Text)
	}
}

func TestStoreMenu(t *testing.T) {
	markup := keyboard.StoreMenu([]string{"Wildberries", "Ozon", "M.Video", "DNS", "Pyaterochka"})

	assert.True(t, markup.ResizeKeyboard)
	assert.False(t, markup.OneTimeKeyboard)

	expectedRows := [][]string{
		{"Wildberries", "Ozon"},
		{"M.Video", "DNS"},
		{"Pyaterochka"},
	}

	require.Len(t, markup.ReplyKeyboard, len(expectedRows))
	for i, row := range expectedRows {
		require.Len(t, markup.ReplyKeyboard[i], len(row))
		for j, text := range row {
			assert.Equal(t, text, markup.ReplyKeyboard[i][j].Text)
		}
	}
}
