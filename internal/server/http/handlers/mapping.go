package handlers

import (
	"github.com/polkiloo/fooddelivery/internal/domain/model"
	"github.com/polkiloo/fooddelivery/internal/server/http/dto"
)

func toCatalogItemResponse(item *model.CatalogItem) *dto.CatalogItemResponse {
	if item == nil {
		return nil
	}
	return &dto.CatalogItemResponse{
		ID:              item.ID,
		RestaurantID:    item.RestaurantID,
		Name:            item.Name,
		Price:           item.Price,
		ImageRef:        item.ImageRef,
		PrepTimeMinutes: item.PrepTimeMinutes,
	}
}

func toCartLineResponse(line model.CartLine, item *model.CatalogItem) dto.CartLineResponse {
	return dto.CartLineResponse{
		ID:              line.ID,
		RestaurantID:    line.RestaurantID,
		CatalogItemID:   line.CatalogItemID,
		Quantity:        line.Quantity,
		UnitPrice:       line.UnitPrice,
		LineTotal:       line.LineTotal,
		DisplayName:     line.DisplayName,
		ImageRef:        line.ImageRef,
		PrepTimeMinutes: line.PrepTimeMinutes,
		Item:            toCatalogItemResponse(item),
	}
}

func toCartResponse(views []model.CartLineView) dto.CartResponse {
	resp := dto.CartResponse{Lines: make([]dto.CartLineResponse, 0, len(views))}
	for _, v := range views {
		resp.Lines = append(resp.Lines, toCartLineResponse(v.CartLine, v.Item))
		resp.Total += v.LineTotal
	}
	return resp
}

func toCoordinates(c model.Coordinates) dto.Coordinates {
	return dto.Coordinates{Latitude: c.Lat, Longitude: c.Lng}
}

func fromCoordinates(c dto.Coordinates) model.Coordinates {
	return model.Coordinates{Lat: c.Latitude, Lng: c.Longitude}
}

func toRestaurantResponse(r *model.Restaurant) *dto.RestaurantResponse {
	if r == nil {
		return nil
	}
	return &dto.RestaurantResponse{ID: r.ID, Name: r.Name, Address: r.Address, Contact: r.Contact}
}

func toOrderResponse(order model.Order, restaurant *model.Restaurant) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, dto.OrderItemResponse{
			CatalogItemID: item.CatalogItemID,
			Name:          item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			LineTotal:     item.LineTotal,
		})
	}
	return dto.OrderResponse{
		ID:                  order.ID,
		OwnerID:             order.OwnerID,
		RestaurantID:        order.RestaurantID,
		Items:               items,
		Subtotal:            order.Subtotal,
		DeliveryCharge:      order.DeliveryCharge,
		TotalAmount:         order.TotalAmount,
		PaymentMethod:       string(order.PaymentMethod),
		DeliveryAddress:     dto.Address{No: order.DeliveryAddress.No, Street: order.DeliveryAddress.Street},
		DeliveryCoordinates: toCoordinates(order.DeliveryCoordinates),
		Status:              string(order.Status),
		Restaurant:          toRestaurantResponse(restaurant),
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
}

func toOrderDetailsResponse(details *model.OrderDetails) dto.OrderResponse {
	resp := toOrderResponse(details.Order, details.Restaurant)
	for i, item := range details.Items {
		if i < len(resp.Items) {
			resp.Items[i].Item = toCatalogItemResponse(item.Item)
		}
	}
	return resp
}

func toOrderViews(views []model.OrderView) []dto.OrderResponse {
	resp := make([]dto.OrderResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toOrderResponse(v.Order, v.Restaurant))
	}
	return resp
}

func toDeliveryResponse(d *model.DeliveryOrder) dto.DeliveryResponse {
	photos := d.ProofPhotos
	if photos == nil {
		photos = []string{}
	}
	return dto.DeliveryResponse{
		ID:                d.ID,
		OrderID:           d.OrderID,
		DriverID:          d.DriverID,
		Status:            string(d.Status),
		PickupAddress:     d.PickupAddress,
		DropoffAddress:    d.DropoffAddress,
		PickupLocation:    toCoordinates(d.PickupLocation),
		DropoffLocation:   toCoordinates(d.DropoffLocation),
		AcceptedAt:        d.AcceptedAt,
		PickedUpAt:        d.PickedUpAt,
		DeliveredAt:       d.DeliveredAt,
		CanceledAt:        d.CanceledAt,
		ProofPhotos:       photos,
		EstimatedTime:     d.EstimatedTime,
		ActualTime:        d.ActualTime,
		DeliveryCharge:    d.DeliveryCharge,
		PaymentMethod:     string(d.PaymentMethod),
		CustomerSignature: d.CustomerSignature,
	}
}

func toDeliveryList(deliveries []model.DeliveryOrder) []dto.DeliveryResponse {
	resp := make([]dto.DeliveryResponse, 0, len(deliveries))
	for i := range deliveries {
		resp = append(resp, toDeliveryResponse(&deliveries[i]))
	}
	return resp
}

func toDriverProfileResponse(p *model.DriverProfile) dto.DriverProfileResponse {
	resp := dto.DriverProfileResponse{
		ID:              p.ID,
		UserID:          p.UserID,
		Name:            p.Name,
		VehicleType:     p.VehicleType,
		IsOnline:        p.IsOnline,
		Address:         p.Address,
		TotalDeliveries: p.TotalDeliveries,
		TotalEarnings:   p.TotalEarnings,
		AverageRating:   p.AverageRating,
	}
	if p.CurrentLocation != nil {
		loc := toCoordinates(*p.CurrentLocation)
		resp.CurrentLocation = &loc
	}
	return resp
}
