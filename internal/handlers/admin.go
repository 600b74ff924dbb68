// internal/handlers/admin.go
package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/venuetrust/internal/services"
	"github.com/javajoker/venuetrust/internal/utils"
)

type AdminHandler struct {
	dedupService  *services.DedupService
	reviewService *services.ReviewService
}

func NewAdminHandler(dedupService *services.DedupService, reviewService *services.ReviewService) *AdminHandler {
	return &AdminHandler{
		dedupService:  dedupService,
		reviewService: reviewService,
	}
}

// POST /admin/dedup
func (h *AdminHandler) RunDedup(c *gin.Context) {
	var req services.DedupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.dedupService.Run(c.Request.Context(), req)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, result)
}

// POST /admin/stores/:id/reanalyze
func (h *AdminHandler) ReanalyzeStore(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	result, err := h.reviewService.Reanalyze(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, result)
}
