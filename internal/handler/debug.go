package handler

import (
	"net/http"

	"rwa-shop-backend/internal/repository"

	"github.com/labstack/echo/v4"
)

type DebugHandler struct {
	mintJobRepo repository.MintJobRepository
}

func NewDebugHandler(mintJobRepo repository.MintJobRepository) *DebugHandler {
	return &DebugHandler{mintJobRepo: mintJobRepo}
}

// QueueStats reports mint job counts per status. Terminal failed jobs only
// surface here; there is no automatic alerting.
func (h *DebugHandler) QueueStats(c echo.Context) error {
	stats, err := h.mintJobRepo.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
