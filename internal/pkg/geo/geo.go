// Package geo contains great-circle helpers used for delivery estimates.
package geo

import "math"

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine distance in kilometres between two points in decimal degrees.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// TravelMinutes estimates whole minutes to cover distanceKm at speedKmh, never less than one.
func TravelMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 || distanceKm <= 0 || math.IsNaN(distanceKm) {
		return 1
	}
	minutes := int(math.Ceil(distanceKm * 60 / speedKmh))
	if minutes < 1 {
		return 1
	}
	return minutes
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
