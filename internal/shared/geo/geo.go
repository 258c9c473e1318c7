package geo

import "math"

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// PaceMinPerKm converts an elapsed time and distance into minutes per km.
// Distances under a metre have no meaningful pace and yield 0.
func PaceMinPerKm(seconds, meters float64) float64 {
	if meters < 1 || seconds <= 0 {
		return 0
	}
	return (seconds / 60) / (meters / 1000)
}

// SpeedToPace converts metres per second into minutes per km; 0 when stationary.
func SpeedToPace(mps float64) float64 {
	if mps <= 0 {
		return 0
	}
	return 1000 / mps / 60
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
