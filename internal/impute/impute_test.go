package impute

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	f = listing.Float
	s = listing.String
)

func full(id int64) listing.Record {
	return listing.Record{
		ID: id, Location: "pune", Amount: f(0.9),
		CarpetArea: f(900), SuperArea: f(1100),
		Transaction: s("Resale"), Furnishing: s("Semi-Furnished"), Facing: s("East"),
		Ownership: s("Freehold"), ParkingCover: s("Covered"),
		Bathroom: f(2), Balcony: f(2), FloorNum: f(4), NumFloors: f(12), NumBHK: f(2),
		OverlookingGarden: f(1), OverlookingMainroad: f(0), OverlookingPool: f(0),
		ParkingSpots: f(1),
	}
}

func trainingSet() []listing.Record {
	a := full(1)
	b := full(2)
	b.Furnishing, b.Balcony, b.NumFloors = s("Furnished"), f(3), f(20)
	c := full(3)
	c.Transaction, c.Furnishing, c.NumBHK, c.Balcony = s("New Property"), s("Unfurnished"), f(3), f(1)
	c.FloorNum, c.NumFloors, c.Ownership = f(1), f(4), s("Leasehold")
	d := full(4)
	d.Furnishing, d.Balcony, d.FloorNum, d.NumFloors = s("Semi-Furnished"), f(1), f(8), f(9)
	e := full(5)
	e.Furnishing, e.Balcony, e.FloorNum, e.Ownership = nil, nil, nil, nil
	return []listing.Record{a, b, c, d, e}
}

func TestFitLearnsGroupStatistics(t *testing.T) {
	stats, err := Fit(trainingSet())
	require.NoError(t, err)

	assert.Equal(t, "Semi-Furnished", stats.FurnishingByTransaction["Resale"])
	assert.Equal(t, "Unfurnished", stats.FurnishingByTransaction["New Property"])
	assert.Equal(t, "Semi-Furnished", stats.FurnishingDefault)
	// floor_num observed: 4, 4, 1, 8 -> median 4
	assert.Equal(t, 4.0, stats.FloorNumMedian)
	// row 5 has floor_num imputed to 4, so group 4 sees 12, 20, 12
	assert.Equal(t, 12.0, stats.NumFloorsByFloorNum["4"])
	assert.Equal(t, 9.0, stats.NumFloorsByFloorNum["8"])
	// balcony for 2 BHK: 2, 3, 1 -> 2
	assert.Equal(t, 2.0, stats.BalconyByBHK["2"])
	assert.Equal(t, 1.0, stats.BalconyByBHK["3"])
	assert.Equal(t, "Freehold", stats.OwnershipMode)
	assert.Equal(t, 5, stats.FittedRows)
}

func TestTransformFillsMissing(t *testing.T) {
	stats, err := Fit(trainingSet())
	require.NoError(t, err)

	sparse := listing.Record{
		ID: 10, Location: "thane", Transaction: s("New Property"), NumBHK: f(3), Bathroom: f(2),
		SuperArea: f(1200),
	}
	got, err := stats.Transform(sparse)
	require.NoError(t, err)

	assert.Equal(t, "Unfurnished", got.Furnishing)
	assert.Equal(t, 4.0, got.FloorNum)
	assert.Equal(t, 12.0, got.NumFloors)
	assert.Equal(t, 1.0, got.Balcony)
	assert.True(t, got.BalconyMissing)
	assert.Equal(t, "Freehold", got.Ownership)
	assert.True(t, got.OwnershipMissing)
	assert.Equal(t, FacingFill, got.Facing)
	assert.True(t, got.FacingMissing)
	assert.Equal(t, -1.0, got.OverlookingGarden)
	assert.Equal(t, -1.0, got.OverlookingMainroad)
	assert.Equal(t, -1.0, got.OverlookingPool)
	assert.Equal(t, ParkingCoverFill, got.ParkingCover)
	assert.Equal(t, 0.0, got.ParkingSpots)
	assert.Equal(t, listing.AreaMissing, got.CarpetArea)
	assert.Equal(t, 1200.0, got.SuperArea)
}

func TestTransformUnseenGroupsFallBack(t *testing.T) {
	stats, err := Fit(trainingSet())
	require.NoError(t, err)

	r := listing.Record{
		ID: 11, Location: "goa", Transaction: s("Rent/Lease"), NumBHK: f(7), Bathroom: f(5),
		FloorNum: f(31), CarpetArea: f(3000),
	}
	got, err := stats.Transform(r)
	require.NoError(t, err)
	assert.Equal(t, stats.FurnishingDefault, got.Furnishing)
	assert.Equal(t, stats.NumFloorsDefault, got.NumFloors)
	assert.Equal(t, stats.BalconyDefault, got.Balcony)
}

func TestTransformLeavesCompleteRecordUnchanged(t *testing.T) {
	stats, err := Fit(trainingSet())
	require.NoError(t, err)

	r := full(20)
	got, err := stats.Transform(r)
	require.NoError(t, err)
	assert.Equal(t, listing.Imputed{
		Location: "pune", Transaction: "Resale", Furnishing: "Semi-Furnished", Facing: "East",
		Ownership: "Freehold", ParkingCover: "Covered", CarpetArea: 900, SuperArea: 1100,
		Bathroom: 2, Balcony: 2, FloorNum: 4, NumFloors: 12, NumBHK: 2,
		OverlookingGarden: 1, OverlookingMainroad: 0, OverlookingPool: 0, ParkingSpots: 1,
	}, got)
}

func TestGroundFloorForcesZeroBalcony(t *testing.T) {
	stats, err := Fit(trainingSet())
	require.NoError(t, err)

	r := full(30)
	r.FloorNum = f(0)
	r.Balcony = nil
	got, err := stats.Transform(r)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Balcony)
	assert.True(t, got.BalconyMissing)

	r.Balcony = f(2)
	got, err = stats.Transform(r)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Balcony)
}

func TestTransformNeverReadsTransformedRecordStatistics(t *testing.T) {
	stats, err := Fit(trainingSet())
	require.NoError(t, err)
	before := *stats

	batch := make([]listing.Record, 0, 50)
	for i := 0; i < 50; i++ {
		r := full(int64(100 + i))
		r.Balcony = nil
		r.NumBHK = f(2)
		batch = append(batch, r)
	}
	out, err := stats.TransformAll(batch)
	require.NoError(t, err)
	for _, imp := range out {
		assert.Equal(t, 2.0, imp.Balcony)
	}
	assert.Equal(t, before.BalconyByBHK, stats.BalconyByBHK)
}

func TestTransformRequiresCoreFields(t *testing.T) {
	stats, err := Fit(trainingSet())
	require.NoError(t, err)
	r := full(40)
	r.NumBHK = nil
	_, err = stats.Transform(r)
	assert.Error(t, err)
}

func TestFitRejectsEmptyTraining(t *testing.T) {
	_, err := Fit(nil)
	assert.Error(t, err)
}

func TestMedianAndMode(t *testing.T) {
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 3.0, median([]float64{5, 3, 1}))
	assert.Equal(t, "a", mode([]string{"b", "a", "b", "a"}))
	assert.Equal(t, "b", mode([]string{"b", "a", "b"}))
}
