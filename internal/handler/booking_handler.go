package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/villa-stay/service-booking/internal/application"
	"github.com/villa-stay/service-booking/internal/platform/response"
)

// BookingUseCases is the part of application.BookingService the public routes need.
type BookingUseCases interface {
	CreateBooking(ctx context.Context, req application.CreateBookingRequest) (*application.BookingDTO, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*application.BookingDTO, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*application.StatusDTO, error)
	LookupStatus(ctx context.Context, email string, amount int64) (*application.StatusDTO, error)
}

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	service BookingUseCases
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service BookingUseCases) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	bookings := r.Group("/bookings")
	bookings.Use(mw...)
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("/status", h.LookupStatus)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/status", h.GetStatus)
	}
}

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	dto, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// GetStatus handles GET /api/v1/bookings/:id/status
func (h *BookingHandler) GetStatus(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	dto, err := h.service.GetStatus(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// LookupStatus handles GET /api/v1/bookings/status?email=&amount=
func (h *BookingHandler) LookupStatus(c *gin.Context) {
	amount, err := strconv.ParseInt(c.Query("amount"), 10, 64)
	if err != nil {
		response.BadRequest(c, "amount must be an integer")
		return
	}

	dto, err := h.service.LookupStatus(c.Request.Context(), c.Query("email"), amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

func bookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return uuid.Nil, false
	}
	return id, true
}
