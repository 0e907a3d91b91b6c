package shipping

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b types.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// StoreCandidate is a store considered for fulfilling an order.
type StoreCandidate struct {
	StoreID     uuid.UUID      `json:"store_id"`
	Location    types.GeoPoint `json:"location"`
	RegionCode  string         `json:"region_code"`
	HasAllItems bool           `json:"has_all_items"`
	DistanceKm  float64        `json:"distance_km"`
}

// RankStores fills DistanceKm and orders candidates: stores holding every
// item first, then nearest first. Ties fall back to the store id so the
// ranking is stable.
func RankStores(candidates []StoreCandidate, destination types.GeoPoint) []StoreCandidate {
	ranked := make([]StoreCandidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].DistanceKm = DistanceKm(ranked[i].Location, destination)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].HasAllItems != ranked[j].HasAllItems {
			return ranked[i].HasAllItems
		}
		if ranked[i].DistanceKm != ranked[j].DistanceKm {
			return ranked[i].DistanceKm < ranked[j].DistanceKm
		}
		return ranked[i].StoreID.String() < ranked[j].StoreID.String()
	})
	return ranked
}
