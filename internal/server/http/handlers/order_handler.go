package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/fooddelivery/internal/domain/model"
	"github.com/polkiloo/fooddelivery/internal/server/http/dto"
	"github.com/polkiloo/fooddelivery/internal/usecase"
)

// OrderHandler manages order-related endpoints.
type OrderHandler struct {
	facade OrderFacade
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade) *OrderHandler {
	return &OrderHandler{facade: facade}
}

// Place handles POST /api/orders.
func (h *OrderHandler) Place(c *gin.Context) {
	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed order")
		return
	}

	order, err := h.facade.PlaceOrder(c.Request.Context(), usecase.PlaceOrderCommand{
		OwnerID:             CurrentPrincipal(c).ID,
		RestaurantID:        req.RestaurantID,
		PaymentMethod:       model.PaymentMethod(req.PaymentMethod),
		DeliveryAddress:     model.Address{No: req.DeliveryAddress.No, Street: req.DeliveryAddress.Street},
		DeliveryCoordinates: fromCoordinates(req.DeliveryCoordinates),
		DeliveryCharge:      req.DeliveryCharge,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(*order, nil))
}

// Get handles GET /api/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	details, err := h.facade.Order(c.Request.Context(), CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderDetailsResponse(details))
}

// List handles GET /api/orders with an optional ?status= filter.
func (h *OrderHandler) List(c *gin.Context) {
	h.respondViews(c, func() ([]model.OrderView, error) {
		return h.facade.Orders(c.Request.Context(), c.Query("status"))
	})
}

// Active handles GET /api/orders/active.
func (h *OrderHandler) Active(c *gin.Context) {
	h.respondViews(c, func() ([]model.OrderView, error) {
		return h.facade.ActiveOrders(c.Request.Context())
	})
}

// Delivered handles GET /api/orders/delivered.
func (h *OrderHandler) Delivered(c *gin.Context) {
	h.respondViews(c, func() ([]model.OrderView, error) {
		return h.facade.DeliveredOrders(c.Request.Context())
	})
}

// UpdateStatus handles PATCH /api/orders/:id/status.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req dto.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		badRequest(c, "status is required")
		return
	}

	order, err := h.facade.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order, nil))
}

// Delete handles DELETE /api/orders/:id.
func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.facade.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) respondViews(c *gin.Context, load func() ([]model.OrderView, error)) {
	views, err := load()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderViews(views))
}
