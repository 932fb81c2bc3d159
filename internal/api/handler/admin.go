package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/api/middleware"
	"github.com/velibadvisor/velibadvisor/internal/api/models"
	"github.com/velibadvisor/velibadvisor/internal/api/response"
)

// CachePurger empties the provider cache.
type CachePurger interface {
	Len() int
	Purge()
}

// AdminHandler handles operator endpoints.
type AdminHandler struct {
	cache  CachePurger
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(cache CachePurger, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{cache: cache, logger: logger}
}

// PurgeCache handles POST /v1/admin/cache:purge - drop all cached provider data.
func (h *AdminHandler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	purged := h.cache.Len()
	h.cache.Purge()

	h.logger.Info().
		Str("operator", operator).
		Int("purged", purged).
		Msg("provider cache purged")

	response.JSON(w, r, http.StatusOK, models.CachePurgeResult{
		Purged:   purged,
		PurgedBy: operator,
		PurgedAt: models.Timestamp(time.Now()),
	})
}
