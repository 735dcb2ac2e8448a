package geospatial

import "math"

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// RingPerimeter sums the great-circle length of a ring of [lng, lat] pairs.
func RingPerimeter(ring [][2]float64) float64 {
	var total float64
	for i := 1; i < len(ring); i++ {
		total += Haversine(ring[i-1][1], ring[i-1][0], ring[i][1], ring[i][0])
	}
	return total
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
