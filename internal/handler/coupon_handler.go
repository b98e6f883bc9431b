package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/villa-stay/service-booking/internal/application"
	"github.com/villa-stay/service-booking/internal/platform/response"
)

// CouponValidator checks a coupon against a booking amount.
type CouponValidator interface {
	ValidateCoupon(ctx context.Context, req application.ValidateCouponRequest) (*application.CouponValidationDTO, error)
}

// CouponHandler handles public coupon routes.
type CouponHandler struct {
	service CouponValidator
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(service CouponValidator) *CouponHandler {
	return &CouponHandler{service: service}
}

// RegisterRoutes registers coupon routes.
func (h *CouponHandler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	coupons := r.Group("/coupons")
	coupons.Use(mw...)
	{
		coupons.POST("/validate", h.ValidateCoupon)
	}
}

// ValidateCoupon handles POST /api/v1/coupons/validate
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	var req application.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ValidateCoupon(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
