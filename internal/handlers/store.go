// internal/handlers/store.go
package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/venuetrust/internal/ranking"
	"github.com/javajoker/venuetrust/internal/services"
	"github.com/javajoker/venuetrust/internal/utils"
)

type StoreHandler struct {
	storeService   *services.StoreService
	summaryService *services.SummaryService
	peerService    *services.PeerService
	detailService  *services.DetailService
}

func NewStoreHandler(storeService *services.StoreService, summaryService *services.SummaryService,
	peerService *services.PeerService, detailService *services.DetailService) *StoreHandler {
	return &StoreHandler{
		storeService:   storeService,
		summaryService: summaryService,
		peerService:    peerService,
		detailService:  detailService,
	}
}

func parseStoreID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.BadRequestResponse(c, "Invalid store ID", nil)
		return 0, false
	}
	return id, true
}

// respondError maps service errors onto the response envelope.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrStoreNotFound):
		utils.NotFoundResponse(c, "Store")
	case errors.Is(err, services.ErrInvalidStore), errors.Is(err, services.ErrInvalidReview):
		if validationErrors := utils.GetValidationErrors(err); len(validationErrors) > 0 {
			utils.ValidationErrorResponse(c, validationErrors)
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.Is(err, ranking.ErrNoLocation), errors.Is(err, ranking.ErrNoRating):
		utils.UnprocessableResponse(c, err.Error())
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}

// POST /stores
func (h *StoreHandler) CreateStore(c *gin.Context) {
	var req services.CreateStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	result, err := h.storeService.CreateStore(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Created {
		utils.CreatedResponse(c, result)
		return
	}
	utils.SuccessResponse(c, result)
}

// GET /stores/:id
func (h *StoreHandler) GetStore(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}
	refresh, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))

	result, err := h.detailService.GetDetail(c.Request.Context(), id, refresh)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("ETag", strconv.Quote(result.ETag))
	c.Header("X-Cache", string(result.Outcome))
	utils.SuccessResponse(c, result.Detail)
}

// GET /stores/:id/summary
func (h *StoreHandler) GetSummary(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	summary, err := h.summaryService.GetSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, summary)
}

// GET /stores/:id/rating-trust
func (h *StoreHandler) GetRatingTrust(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	rt, err := h.summaryService.RatingTrust(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, rt)
}

// GET /stores/:id/peers
func (h *StoreHandler) GetPeers(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	result, err := h.peerService.Peers(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, result)
}
