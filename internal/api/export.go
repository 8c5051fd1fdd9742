package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/Proton-105/promo-bot/internal/domain"
	"github.com/Proton-105/promo-bot/internal/jobs"
)

const (
	exportSheet       = "Promos"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportTimeLayout  = "2006-01-02 15:04"
	exportDefaultName = "Sheet1"
)

var exportHeaders = []string{"ID", "Code", "Store", "Discount", "Min price", "Locations", "Expires at", "Active", "Expired", "Created at"}

// BuildPromoWorkbook renders promos into a single-sheet workbook.
func BuildPromoWorkbook(promos []domain.Promo, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(exportDefaultName, exportSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for col, title := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(exportSheet, cell, title)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
		_ = f.SetCellStyle(exportSheet, "A1", last, headerStyle)
	}

	for i, p := range promos {
		row := i + 2
		values := []interface{}{
			p.ID,
			p.Code,
			p.Store,
			p.Discount,
			p.MinPrice.InexactFloat64(),
			strings.Join(p.Locations, ", "),
			p.ExpiresAt.UTC().Format(exportTimeLayout),
			p.IsActive,
			p.IsExpired(now),
			p.CreatedAt.UTC().Format(exportTimeLayout),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("write promo row %d: %w", row, err)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 8)
	_ = f.SetColWidth(exportSheet, "B", "J", 18)

	return f, nil
}

func (h *promoHandler) export(c *gin.Context) {
	promos, err := h.promos.ListAll(c.Request.Context())
	if err != nil {
		h.log.Error("failed to load promos for export", slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Failed to export promos")
		return
	}

	now := time.Now()
	f, err := BuildPromoWorkbook(promos, now)
	if err != nil {
		h.log.Error("failed to build promo workbook", slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Failed to export promos")
		return
	}
	defer f.Close()

	fileName := fmt.Sprintf("promos_%s.xlsx", now.UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)

	if _, err := f.WriteTo(c.Writer); err != nil {
		h.log.Error("failed to write promo workbook", slog.Any("error", err))
	}
}

// expirer runs the expiry sweep inline or queues it when a job queue is available.
type expirer struct {
	promos PromoManager
	queue  jobs.Manager
	log    *slog.Logger
}

// expire handles POST /api/promos/expire.
func (e *expirer) expire(c *gin.Context) {
	ctx := c.Request.Context()

	if e.queue != nil {
		task, err := jobs.NewPromoExpireTask("api")
		if err == nil {
			info, enqueueErr := e.queue.Enqueue(ctx, task)
			if enqueueErr == nil {
				c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": true, "taskId": info.ID})
				return
			}
			err = enqueueErr
		}
		e.log.Warn("failed to queue promo expiry, running inline", slog.Any("error", err))
	}

	n, err := e.promos.ExpireStale(ctx)
	if err != nil {
		e.log.Error("promo expiry failed", slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Failed to expire promos")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "expired": n})
}
