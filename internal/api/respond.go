package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/promo-bot/internal/repository"
)

const maxPageLimit = 100

// Pagination is the envelope metadata of every list response.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func newPagination(page repository.Page, total int64) Pagination {
	pages := int64(0)
	if page.Limit > 0 {
		pages = (total + int64(page.Limit) - 1) / int64(page.Limit)
	}
	return Pagination{Page: page.Page, Limit: page.Limit, Total: total, Pages: pages}
}

// pageFromQuery reads page and limit, falling back to 1 and defaultLimit on bad input.
func pageFromQuery(c *gin.Context, defaultLimit int) repository.Page {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	return repository.Page{Page: page, Limit: limit}
}

func respondList(c *gin.Context, data any, page repository.Page, total int64) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       data,
		"pagination": newPagination(page, total),
	})
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError writes {"error": message} and stops the handler chain.
func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
