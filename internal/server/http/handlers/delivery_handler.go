package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/fooddelivery/internal/app"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
	"github.com/polkiloo/fooddelivery/internal/server/http/dto"
	"github.com/polkiloo/fooddelivery/internal/usecase"
)

// DeliveryHandler manages delivery lifecycle endpoints.
type DeliveryHandler struct {
	facade DeliveryFacade
}

// NewDeliveryHandler constructs DeliveryHandler.
func NewDeliveryHandler(facade DeliveryFacade) *DeliveryHandler {
	return &DeliveryHandler{facade: facade}
}

// Accept handles POST /api/deliveries.
func (h *DeliveryHandler) Accept(c *gin.Context) {
	var req dto.AcceptDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed delivery request")
		return
	}

	delivery, err := h.facade.AcceptDelivery(c.Request.Context(), CurrentPrincipal(c), app.AcceptDeliveryRequest{
		OrderID:        req.OrderID,
		PickupAddress:  req.PickupAddress,
		PickupLocation: fromCoordinates(req.PickupLocation),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDeliveryResponse(delivery))
}

// Get handles GET /api/deliveries/:id.
func (h *DeliveryHandler) Get(c *gin.Context) {
	delivery, err := h.facade.Delivery(c.Request.Context(), CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDeliveryResponse(delivery))
}

// ByOrder handles GET /api/deliveries/by-order/:orderId.
func (h *DeliveryHandler) ByOrder(c *gin.Context) {
	delivery, err := h.facade.DeliveryByOrder(c.Request.Context(), CurrentPrincipal(c), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDeliveryResponse(delivery))
}

// Mine handles GET /api/deliveries/mine.
func (h *DeliveryHandler) Mine(c *gin.Context) {
	deliveries, err := h.facade.MyDeliveries(c.Request.Context(), CurrentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDeliveryList(deliveries))
}

// MineActive handles GET /api/deliveries/mine/active.
func (h *DeliveryHandler) MineActive(c *gin.Context) {
	deliveries, err := h.facade.MyActiveDeliveries(c.Request.Context(), CurrentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDeliveryList(deliveries))
}

// UpdateStatus handles PATCH /api/deliveries/:id/status.
func (h *DeliveryHandler) UpdateStatus(c *gin.Context) {
	var req dto.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		badRequest(c, "status is required")
		return
	}

	delivery, err := h.facade.AdvanceDelivery(c.Request.Context(), CurrentPrincipal(c), c.Param("id"), model.DeliveryStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDeliveryResponse(delivery))
}

// Complete handles POST /api/deliveries/:id/complete. The body is optional.
func (h *DeliveryHandler) Complete(c *gin.Context) {
	var req dto.CompleteDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "malformed proof of delivery")
		return
	}

	delivery, err := h.facade.CompleteDelivery(c.Request.Context(), CurrentPrincipal(c), c.Param("id"), usecase.CompleteDeliveryCommand{
		CustomerSignature: req.CustomerSignature,
		ProofPhotos:       req.ProofPhotos,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDeliveryResponse(delivery))
}

// Cancel handles POST /api/deliveries/:id/cancel.
func (h *DeliveryHandler) Cancel(c *gin.Context) {
	delivery, err := h.facade.CancelDelivery(c.Request.Context(), CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDeliveryResponse(delivery))
}

// RelayToken handles POST /api/deliveries/:id/relay-token.
func (h *DeliveryHandler) RelayToken(c *gin.Context) {
	id := c.Param("id")
	grant, err := h.facade.RelayToken(c.Request.Context(), CurrentPrincipal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RelayTokenResponse{
		Token:     grant.Token,
		Role:      string(grant.Role),
		ExpiresAt: grant.ExpiresAt,
		Path:      "/ws/deliveries/" + id + "/location",
	})
}

// DriverProfile handles GET /api/drivers/me.
func (h *DeliveryHandler) DriverProfile(c *gin.Context) {
	profile, err := h.facade.DriverProfile(c.Request.Context(), CurrentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDriverProfileResponse(profile))
}
