package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/fooddelivery/internal/server/http/dto"
)

// CartHandler serves the caller's cart.
type CartHandler struct {
	facade CartFacade
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(facade CartFacade) *CartHandler {
	return &CartHandler{facade: facade}
}

// List handles GET /api/cart.
func (h *CartHandler) List(c *gin.Context) {
	views, err := h.facade.Cart(c.Request.Context(), CurrentPrincipal(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(views))
}

// ListForRestaurant handles GET /api/cart/restaurants/:restaurantId.
func (h *CartHandler) ListForRestaurant(c *gin.Context) {
	views, err := h.facade.CartForRestaurant(c.Request.Context(), CurrentPrincipal(c).ID, c.Param("restaurantId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(views))
}

// Restaurants handles GET /api/cart/restaurants.
func (h *CartHandler) Restaurants(c *gin.Context) {
	ids, err := h.facade.CartRestaurants(c.Request.Context(), CurrentPrincipal(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, dto.CartRestaurantsResponse{RestaurantIDs: ids})
}

// AddLine handles POST /api/cart/lines.
func (h *CartHandler) AddLine(c *gin.Context) {
	var req dto.AddCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed cart line")
		return
	}

	line, err := h.facade.AddCartLine(c.Request.Context(), CurrentPrincipal(c).ID, req.RestaurantID, req.CatalogItemID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCartLineResponse(*line, nil))
}

// UpdateLine handles PATCH /api/cart/lines/:id.
func (h *CartHandler) UpdateLine(c *gin.Context) {
	var req dto.UpdateCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed quantity")
		return
	}

	line, err := h.facade.SetCartQuantity(c.Request.Context(), CurrentPrincipal(c).ID, c.Param("id"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartLineResponse(*line, nil))
}

// RemoveLine handles DELETE /api/cart/lines/:id.
func (h *CartHandler) RemoveLine(c *gin.Context) {
	if err := h.facade.RemoveCartLine(c.Request.Context(), CurrentPrincipal(c).ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear handles DELETE /api/cart, optionally scoped by ?restaurant_id=.
func (h *CartHandler) Clear(c *gin.Context) {
	removed, err := h.facade.ClearCart(c.Request.Context(), CurrentPrincipal(c).ID, c.Query("restaurant_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ClearCartResponse{Removed: removed})
}
