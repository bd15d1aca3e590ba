// Package features derives the engineered feature set from an imputed
// record. Build is the only implementation: the training pipeline and the
// prediction API both call it, so the two paths cannot drift apart.
package features

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
)

// Row is an imputed record plus its engineered features. It is the input of
// the column transformer.
type Row struct {
	listing.Imputed

	HouseSize      string
	BathroomNum    string
	FloorHeight    string
	BuildingHeight string
	HasParking     string

	IsUnfurnished     float64
	CityTier          float64
	DirectionTier     float64
	CarpetAreaMissing float64
	SuperAreaMissing  float64

	EffectiveArea   float64
	AreaPerRoom     float64
	BalconyPerRoom  float64
	BathroomPerRoom float64
}

var tier1Cities = map[string]bool{"mumbai": true, "gurgaon": true, "new-delhi": true}

var tier1Directions = map[string]bool{"North - East": true, "North - West": true}

// Build computes the engineered features of imp. It is pure: identical input
// always yields identical output.
func Build(imp listing.Imputed) Row {
	imp.Balcony = math.RoundToEven(imp.Balcony)

	r := Row{Imputed: imp}
	r.HouseSize = bin(imp.NumBHK, 1, 3, 4, "small", "normal", "big")
	r.BathroomNum = bin(imp.Bathroom, 1, 3, 4, "low", "medium", "high")
	r.FloorHeight = bin(imp.FloorNum, 0, 3, 6, "low", "medium", "high")
	r.BuildingHeight = bin(imp.NumFloors, 0, 5, 13, "short", "medium", "tall")

	switch imp.ParkingSpots {
	case 0:
		r.HasParking = "no parking"
	case 1:
		r.HasParking = "single"
	default:
		r.HasParking = "multiple"
	}

	r.IsUnfurnished = flag(imp.Furnishing == "Unfurnished")
	r.CityTier = flag(tier1Cities[imp.Location])
	r.DirectionTier = flag(tier1Directions[imp.Facing])
	r.CarpetAreaMissing = flag(imp.CarpetArea == listing.AreaMissing)
	r.SuperAreaMissing = flag(imp.SuperArea == listing.AreaMissing)

	area := imp.CarpetArea
	if area == listing.AreaMissing {
		area = imp.SuperArea
	}
	r.EffectiveArea = math.Log(area)
	r.AreaPerRoom = area / imp.NumBHK
	r.BalconyPerRoom = imp.Balcony / imp.NumBHK
	r.BathroomPerRoom = imp.Bathroom / imp.NumBHK
	return r
}

// BuildAll applies Build to each record in order.
func BuildAll(imps []listing.Imputed) []Row {
	out := make([]Row, len(imps))
	for i, imp := range imps {
		out[i] = Build(imp)
	}
	return out
}

// bin places v into [lo,mid) -> a, [mid,hi) -> b, otherwise c. Intervals
// are half-open, so v == mid lands in b and v == hi lands in c (num_bhk 4 is
// "big").
func bin(v, lo, mid, hi float64, a, b, c string) string {
	switch {
	case v >= lo && v < mid:
		return a
	case v >= mid && v < hi:
		return b
	default:
		return c
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
