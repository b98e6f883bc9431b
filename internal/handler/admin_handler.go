package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/villa-stay/service-booking/internal/application"
	"github.com/villa-stay/service-booking/internal/platform/middleware"
	"github.com/villa-stay/service-booking/internal/platform/response"
)

// BookingAdmin is the admin view of application.BookingService.
type BookingAdmin interface {
	ListBookings(ctx context.Context, status string, page, limit int) ([]application.BookingDTO, int64, error)
	GetStats(ctx context.Context) (*application.BookingStatsDTO, error)
}

// CouponAdmin is the admin view of application.CouponService.
type CouponAdmin interface {
	CreateCoupon(ctx context.Context, req application.CreateCouponRequest) (*application.CouponDTO, error)
	GetActiveCoupons(ctx context.Context) ([]*application.CouponDTO, error)
}

// AdminHandler handles admin HTTP requests for bookings and coupons.
type AdminHandler struct {
	bookings BookingAdmin
	coupons  CouponAdmin
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(bookings BookingAdmin, coupons CouponAdmin) *AdminHandler {
	return &AdminHandler{bookings: bookings, coupons: coupons}
}

// RegisterRoutes registers admin routes behind the admin API key.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, adminKey string) {
	admin := r.Group("/admin")
	admin.Use(middleware.AdminKeyMiddleware(adminKey))
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.GET("/coupons", h.ListCoupons)
		admin.POST("/coupons", h.CreateCoupon)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	bookings, total, err := h.bookings.ListBookings(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	stats, err := h.bookings.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ListCoupons handles GET /api/v1/admin/coupons.
func (h *AdminHandler) ListCoupons(c *gin.Context) {
	coupons, err := h.coupons.GetActiveCoupons(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, coupons)
}

// CreateCoupon handles POST /api/v1/admin/coupons.
func (h *AdminHandler) CreateCoupon(c *gin.Context) {
	var req application.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.coupons.CreateCoupon(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}
