package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/promo-bot/internal/domain"
	"github.com/Proton-105/promo-bot/internal/repository"
)

// ClientLister pages through clients. *client.Service satisfies it.
type ClientLister interface {
	List(ctx context.Context, filter repository.ClientFilter) ([]domain.Client, int64, error)
}

// MessageLister pages through the message log. repository.MessageRepository satisfies it.
type MessageLister interface {
	List(ctx context.Context, filter repository.MessageFilter) ([]domain.MessageWithClient, int64, error)
}

type clientHandler struct {
	clients  ClientLister
	messages MessageLister
	log      *slog.Logger
}

func (h *clientHandler) listClients(c *gin.Context) {
	page := pageFromQuery(c, 10)
	filter := repository.ClientFilter{Page: page, Search: strings.TrimSpace(c.Query("search"))}

	clients, total, err := h.clients.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("failed to list clients", slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Failed to fetch clients")
		return
	}

	respondList(c, clients, page, total)
}

func (h *clientHandler) listMessages(c *gin.Context) {
	page := pageFromQuery(c, 20)
	filter := repository.MessageFilter{Page: page}

	if raw := c.Query("clientId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid clientId")
			return
		}
		filter.ClientID = id
	}
	if raw := c.Query("type"); raw != "" {
		filter.Type = domain.MessageType(raw)
		if !filter.Type.Valid() {
			respondError(c, http.StatusBadRequest, "Invalid type")
			return
		}
	}
	if raw := c.Query("direction"); raw != "" {
		filter.Direction = domain.Direction(raw)
		if !filter.Direction.Valid() {
			respondError(c, http.StatusBadRequest, "Invalid direction")
			return
		}
	}

	messages, total, err := h.messages.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("failed to list messages", slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	respondList(c, messages, page, total)
}
