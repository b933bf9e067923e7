package dto

// AddCartLineRequest adds an item to the caller's cart.
type AddCartLineRequest struct {
	RestaurantID  string `json:"restaurant_id"`
	CatalogItemID string `json:"catalog_item_id"`
	Quantity      int    `json:"quantity"`
}

// UpdateCartLineRequest replaces the quantity of a line.
type UpdateCartLineRequest struct {
	Quantity int `json:"quantity"`
}

// CatalogItemResponse is the live catalog view of an item.
type CatalogItemResponse struct {
	ID              string  `json:"id"`
	RestaurantID    string  `json:"restaurant_id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	ImageRef        string  `json:"image_ref,omitempty"`
	PrepTimeMinutes int     `json:"prep_time_minutes"`
}

type CartLineResponse struct {
	ID              string               `json:"id"`
	RestaurantID    string               `json:"restaurant_id"`
	CatalogItemID   string               `json:"catalog_item_id"`
	Quantity        int                  `json:"quantity"`
	UnitPrice       float64              `json:"unit_price"`
	LineTotal       float64              `json:"line_total"`
	DisplayName     string               `json:"display_name"`
	ImageRef        string               `json:"image_ref,omitempty"`
	PrepTimeMinutes int                  `json:"prep_time_minutes"`
	Item            *CatalogItemResponse `json:"item,omitempty"`
}

// CartResponse lists cart lines with their sum.
type CartResponse struct {
	Lines []CartLineResponse `json:"lines"`
	Total float64            `json:"total"`
}

type CartRestaurantsResponse struct {
	RestaurantIDs []string `json:"restaurant_ids"`
}

type ClearCartResponse struct {
	Removed int64 `json:"removed"`
}
