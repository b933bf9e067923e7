package model

import "time"

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 999

// CartLine is a pending purchase intent for one catalog item.
type CartLine struct {
	ID              string
	OwnerID         string
	RestaurantID    string
	CatalogItemID   string
	Quantity        int
	UnitPrice       float64
	LineTotal       float64
	DisplayName     string
	ImageRef        string
	PrepTimeMinutes int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Recalculate refreshes the line total from price and quantity.
func (l *CartLine) Recalculate() {
	l.LineTotal = l.UnitPrice * float64(l.Quantity)
}

// CartLineView is a cart line with its live catalog entry. Item is nil when
// the catalog could not be reached.
type CartLineView struct {
	CartLine
	Item *CatalogItem
}

// CatalogItem is a menu entry served by the catalog service.
type CatalogItem struct {
	ID              string
	RestaurantID    string
	Name            string
	Price           float64
	ImageRef        string
	PrepTimeMinutes int
}

// Restaurant is the public profile of a restaurant.
type Restaurant struct {
	ID      string
	Name    string
	Address string
	Contact string
}
