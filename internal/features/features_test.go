package features

import (
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	"github.com/stretchr/testify/assert"
)

func mumbaiFlat() listing.Imputed {
	return listing.Imputed{
		Location: "mumbai", Transaction: "Resale", Furnishing: "Unfurnished", Facing: "Missing",
		Ownership: "Freehold", ParkingCover: "Open",
		CarpetArea: 800, SuperArea: listing.AreaMissing,
		Bathroom: 2, Balcony: 1, FloorNum: 3, NumFloors: 10, NumBHK: 2,
		OverlookingGarden: 0, OverlookingMainroad: 1, OverlookingPool: 0, ParkingSpots: 1,
		FacingMissing: true,
	}
}

func TestBuildEndToEndScenario(t *testing.T) {
	r := Build(mumbaiFlat())

	assert.Equal(t, "small", r.HouseSize)
	assert.Equal(t, "low", r.BathroomNum)
	assert.Equal(t, "medium", r.FloorHeight)
	assert.Equal(t, "medium", r.BuildingHeight)
	assert.Equal(t, "single", r.HasParking)
	assert.Equal(t, 1.0, r.CityTier)
	assert.Equal(t, 1.0, r.IsUnfurnished)
	assert.Equal(t, 0.0, r.DirectionTier)
	assert.Equal(t, 0.0, r.CarpetAreaMissing)
	assert.Equal(t, 1.0, r.SuperAreaMissing)
	assert.Equal(t, math.Log(800), r.EffectiveArea)
	assert.Equal(t, 400.0, r.AreaPerRoom)
	assert.Equal(t, 0.5, r.BalconyPerRoom)
	assert.Equal(t, 1.0, r.BathroomPerRoom)
}

func TestHouseSizeBoundaries(t *testing.T) {
	tests := []struct {
		bhk  float64
		want string
	}{
		{1, "small"}, {2, "small"}, {3, "normal"}, {4, "big"}, {5, "big"}, {0, "big"},
	}
	for _, tt := range tests {
		imp := mumbaiFlat()
		imp.NumBHK = tt.bhk
		assert.Equal(t, tt.want, Build(imp).HouseSize, "num_bhk=%v", tt.bhk)
	}
}

func TestBinBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*listing.Imputed)
		get    func(Row) string
		want   string
	}{
		{"bathroom 3", func(i *listing.Imputed) { i.Bathroom = 3 }, func(r Row) string { return r.BathroomNum }, "medium"},
		{"bathroom 4", func(i *listing.Imputed) { i.Bathroom = 4 }, func(r Row) string { return r.BathroomNum }, "high"},
		{"floor 0", func(i *listing.Imputed) { i.FloorNum = 0 }, func(r Row) string { return r.FloorHeight }, "low"},
		{"floor 6", func(i *listing.Imputed) { i.FloorNum = 6 }, func(r Row) string { return r.FloorHeight }, "high"},
		{"building 4", func(i *listing.Imputed) { i.NumFloors = 4 }, func(r Row) string { return r.BuildingHeight }, "short"},
		{"building 5", func(i *listing.Imputed) { i.NumFloors = 5 }, func(r Row) string { return r.BuildingHeight }, "medium"},
		{"building 13", func(i *listing.Imputed) { i.NumFloors = 13 }, func(r Row) string { return r.BuildingHeight }, "tall"},
		{"no parking", func(i *listing.Imputed) { i.ParkingSpots = 0 }, func(r Row) string { return r.HasParking }, "no parking"},
		{"multiple parking", func(i *listing.Imputed) { i.ParkingSpots = 3 }, func(r Row) string { return r.HasParking }, "multiple"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := mumbaiFlat()
			tt.mutate(&imp)
			assert.Equal(t, tt.want, tt.get(Build(imp)))
		})
	}
}

func TestMissingCarpetUsesSuperArea(t *testing.T) {
	imp := mumbaiFlat()
	imp.CarpetArea = listing.AreaMissing
	imp.SuperArea = 1200
	imp.NumBHK = 3
	r := Build(imp)

	assert.Equal(t, 1.0, r.CarpetAreaMissing)
	assert.Equal(t, 0.0, r.SuperAreaMissing)
	assert.Equal(t, math.Log(1200), r.EffectiveArea)
	assert.Equal(t, 400.0, r.AreaPerRoom)
}

func TestTierFlags(t *testing.T) {
	imp := mumbaiFlat()
	imp.Location = "pune"
	imp.Facing = "North - West"
	imp.Furnishing = "Furnished"
	r := Build(imp)
	assert.Equal(t, 0.0, r.CityTier)
	assert.Equal(t, 1.0, r.DirectionTier)
	assert.Equal(t, 0.0, r.IsUnfurnished)
}

func TestBalconyRoundsHalfToEven(t *testing.T) {
	for in, want := range map[float64]float64{1.5: 2, 2.5: 2, 0.4: 0, 2.6: 3} {
		imp := mumbaiFlat()
		imp.Balcony = in
		r := Build(imp)
		assert.Equal(t, want, r.Balcony, "balcony %v", in)
		assert.Equal(t, want/imp.NumBHK, r.BalconyPerRoom)
	}
}

func TestBatchAndSinglePathsAgree(t *testing.T) {
	batch := make([]listing.Imputed, 0, 64)
	for i := 0; i < 64; i++ {
		imp := mumbaiFlat()
		imp.NumBHK = float64(1 + i%6)
		imp.Bathroom = float64(1 + i%5)
		imp.FloorNum = float64(i % 15)
		imp.NumFloors = float64(i%15 + i%7)
		imp.Balcony = float64(i%4) / 2
		imp.ParkingSpots = float64(i % 3)
		if i%3 == 0 {
			imp.CarpetArea, imp.SuperArea = listing.AreaMissing, float64(500+i*10)
		}
		batch = append(batch, imp)
	}
	rows := BuildAll(batch)
	for i, imp := range batch {
		assert.Equal(t, Build(imp), rows[i], "row %d", i)
	}
}

func BenchmarkBuild(b *testing.B) {
	imp := mumbaiFlat()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Build(imp)
	}
}
