package evidence

import (
	"math"

	"collateral-evidence/internal/domain/loan"
)

const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in meters between two coordinates.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// CheckGeofence rejects a coordinate more than limit meters from any recorded asset.
func CheckGeofence(recorded []loan.FileEntry, lat, lng, limit float64) error {
	for _, a := range recorded {
		if a.Location == nil {
			continue
		}
		if Haversine(a.Location.Lat, a.Location.Lng, lat, lng) > limit {
			return reject(ReasonLocationMismatch)
		}
	}
	return nil
}
