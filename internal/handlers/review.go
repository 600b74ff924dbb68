// internal/handlers/review.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/venuetrust/internal/models"
	"github.com/javajoker/venuetrust/internal/services"
	"github.com/javajoker/venuetrust/internal/utils"
)

type ReviewHandler struct {
	reviewService *services.ReviewService
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
	}
}

// POST /stores/:id/reviews
func (h *ReviewHandler) SubmitReview(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	var req services.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	result, err := h.reviewService.SubmitReview(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, result)
}

// GET /stores/:id/reviews
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	switch models.ReviewSource(params.Source) {
	case "", models.ReviewSourceExternal, models.ReviewSourceInApp:
	default:
		utils.BadRequestResponse(c, "Invalid review source", nil)
		return
	}

	reviews, total, err := h.reviewService.ListReviews(c.Request.Context(), id, params)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(reviews, total, params)
	utils.PaginatedResponse(c, result)
}
