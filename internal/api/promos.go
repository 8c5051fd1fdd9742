package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/promo-bot/internal/domain"
	apperrors "github.com/Proton-105/promo-bot/internal/errors"
	"github.com/Proton-105/promo-bot/internal/promo"
	"github.com/Proton-105/promo-bot/internal/repository"
)

// PromoManager is the promo catalog used by the admin API. *promo.Service satisfies it.
type PromoManager interface {
	Create(ctx context.Context, input promo.CreateInput) (*domain.Promo, error)
	Update(ctx context.Context, id int64, patch repository.PromoPatch) (*domain.Promo, error)
	Get(ctx context.Context, id int64) (*domain.Promo, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter repository.PromoFilter) ([]domain.Promo, int64, error)
	ListAll(ctx context.Context) ([]domain.Promo, error)
	ExpireStale(ctx context.Context) (int64, error)
}

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = stringList{s}
		return nil
	}

	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

type promoRequest struct {
	Code      *string          `json:"code"`
	Discount  *string          `json:"discount"`
	MinPrice  *decimal.Decimal `json:"minPrice"`
	ExpiresAt *string          `json:"expiresAt"`
	Locations stringList       `json:"locations"`
	Store     *string          `json:"store"`
	IsActive  *bool            `json:"isActive"`
}

var expiryLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// parseExpiry reads ISO timestamps and plain dates; values without a zone are UTC.
func parseExpiry(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date %q", raw)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type promoHandler struct {
	promos PromoManager
	log    *slog.Logger
}

func (h *promoHandler) list(c *gin.Context) {
	page := pageFromQuery(c, 10)
	filter := repository.PromoFilter{Page: page, Search: strings.TrimSpace(c.Query("search"))}

	promos, total, err := h.promos.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("failed to list promos", slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Failed to fetch promos")
		return
	}

	respondList(c, promos, page, total)
}

func (h *promoHandler) create(c *gin.Context) {
	var req promoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "All fields are required")
		return
	}

	input := promo.CreateInput{
		Code:      deref(req.Code),
		Discount:  deref(req.Discount),
		MinPrice:  req.MinPrice,
		Store:     deref(req.Store),
		Locations: req.Locations,
	}
	if raw := deref(req.ExpiresAt); raw != "" {
		expiresAt, err := parseExpiry(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid expiresAt")
			return
		}
		input.ExpiresAt = &expiresAt
	}

	p, err := h.promos.Create(c.Request.Context(), input)
	if err != nil {
		h.respondWriteError(c, "Failed to create promo", err)
		return
	}

	h.audit(c, "promo created", p.ID)
	respondData(c, http.StatusCreated, p)
}

func (h *promoHandler) get(c *gin.Context) {
	id, ok := promoID(c)
	if !ok {
		return
	}

	p, err := h.promos.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Promo not found")
		return
	}
	if err != nil {
		h.log.Error("failed to fetch promo", slog.Int64("promo_id", id), slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Failed to fetch promo")
		return
	}

	respondData(c, http.StatusOK, p)
}

func (h *promoHandler) update(c *gin.Context) {
	id, ok := promoID(c)
	if !ok {
		return
	}

	var req promoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch := repository.PromoPatch{
		Code:      req.Code,
		Discount:  req.Discount,
		MinPrice:  req.MinPrice,
		Store:     req.Store,
		Locations: req.Locations,
		IsActive:  req.IsActive,
	}
	if raw := deref(req.ExpiresAt); raw != "" {
		expiresAt, err := parseExpiry(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid expiresAt")
			return
		}
		patch.ExpiresAt = &expiresAt
	}

	p, err := h.promos.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.respondWriteError(c, "Failed to update promo", err)
		return
	}

	h.audit(c, "promo updated", id)
	respondData(c, http.StatusOK, p)
}

func (h *promoHandler) remove(c *gin.Context) {
	id, ok := promoID(c)
	if !ok {
		return
	}

	err := h.promos.Delete(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Promo not found")
		return
	}
	if err != nil {
		h.log.Error("failed to delete promo", slog.Int64("promo_id", id), slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Failed to delete promo")
		return
	}

	h.audit(c, "promo deleted", id)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Promo deleted successfully"})
}

func (h *promoHandler) respondWriteError(c *gin.Context, fallback string, err error) {
	switch {
	case errors.Is(err, repository.ErrDuplicateKey):
		respondError(c, http.StatusBadRequest, "Promo code already exists")
	case errors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusNotFound, "Promo not found")
	default:
		if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.CodeValidation {
			respondError(c, http.StatusBadRequest, appErr.Message)
			return
		}
		h.log.Error("promo write failed", slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, fallback)
	}
}

func (h *promoHandler) audit(c *gin.Context, msg string, id int64) {
	attrs := []any{slog.Int64("promo_id", id)}
	if claims, ok := ClaimsFrom(c); ok {
		attrs = append(attrs, slog.String("admin", claims.Email))
	}
	h.log.InfoContext(c.Request.Context(), msg, attrs...)
}

// promoID parses the :id path parameter. Ids that cannot exist are reported as not found.
func promoID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusNotFound, "Promo not found")
		return 0, false
	}
	return id, true
}
