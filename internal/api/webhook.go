package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	telebot "gopkg.in/telebot.v3"
)

// SecretTokenHeader carries the secret Telegram echoes back when the webhook was set with one.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler processes one decoded Telegram update. *bot.Bot satisfies it.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update telebot.Update) error
}

// WebhookSetter registers the webhook URL with Telegram. *telebot.Bot satisfies it.
type WebhookSetter interface {
	SetWebhook(w *telebot.Webhook) error
}

type webhookHandler struct {
	updates UpdateHandler
	setter  WebhookSetter
	url     string
	secret  string
	log     *slog.Logger
}

// receive handles POST /telegram/webhook. Only a handler panic is answered with an error status.
func (h *webhookHandler) receive(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.log.Warn("webhook secret token mismatch", slog.String("client_ip", c.ClientIP()))
			respondError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	var update telebot.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&update); err != nil {
		h.log.Warn("malformed webhook payload ignored", slog.Any("error", err))
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if err := h.updates.HandleUpdate(c.Request.Context(), update); err != nil {
		h.log.Error("webhook update failed", slog.Int("update_id", update.ID), slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// setWebhook handles POST /api/telegram/set-webhook.
func (h *webhookHandler) setWebhook(c *gin.Context) {
	if h.url == "" {
		respondError(c, http.StatusBadRequest, "TELEGRAM_WEBHOOK_URL not configured")
		return
	}
	if h.setter == nil {
		respondError(c, http.StatusBadRequest, "Bot not initialized - check TELEGRAM_BOT_TOKEN")
		return
	}

	err := h.setter.SetWebhook(&telebot.Webhook{
		SecretToken: h.secret,
		Endpoint:    &telebot.WebhookEndpoint{PublicURL: h.url},
	})
	if err != nil {
		h.log.Error("failed to set telegram webhook", slog.String("url", h.url), slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Failed to set webhook")
		return
	}

	h.log.Info("telegram webhook set", slog.String("url", h.url))
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Webhook set successfully",
		"webhookUrl": h.url,
	})
}
