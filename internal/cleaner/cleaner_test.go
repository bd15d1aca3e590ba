package cleaner

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(overrides map[string]string) listing.RawListing {
	r := listing.RawListing{
		"Index":             "1",
		"Title":             "2 BHK Ready to Occupy Flat for sale in Thane West",
		"Description":       "Spacious flat",
		"Amount(in rupees)": " 42 Lac ",
		"Price (in rupees)": "6,000",
		"location":          "thane",
		"Carpet Area":       "700 sqft",
		"Status":            "Ready to Move",
		"Floor":             "10 out of 11",
		"Transaction":       "Resale",
		"Furnishing":        "Unfurnished",
		"facing":            "East",
		"overlooking":       "Garden/Park, Main Road",
		"Society":           "Srushti",
		"Bathroom":          "2",
		"Balcony":           "1",
		"Car Parking":       "1 Covered",
		"Ownership":         "Freehold",
		"Super Area":        "",
		"Dimensions":        "",
		"Plot Area":         "",
	}
	for k, v := range overrides {
		r[k] = v
	}
	return r
}

func TestCleanParsesTypedRecord(t *testing.T) {
	out, report := Clean([]listing.RawListing{raw(nil)})
	require.Len(t, out, 1)
	assert.Equal(t, 1, report.RowsOut)

	r := out[0]
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, "thane", r.Location)
	assert.InDelta(t, 0.42, *r.Amount, 1e-12)
	assert.Equal(t, 700.0, *r.CarpetArea)
	assert.Nil(t, r.SuperArea)
	assert.Equal(t, 2.0, *r.NumBHK)
	assert.Equal(t, 10.0, *r.FloorNum)
	assert.Equal(t, 11.0, *r.NumFloors)
	assert.Equal(t, 1.0, *r.OverlookingGarden)
	assert.Equal(t, 1.0, *r.OverlookingMainroad)
	assert.Equal(t, 0.0, *r.OverlookingPool)
	assert.Equal(t, 1.0, *r.ParkingSpots)
	assert.Equal(t, "Covered", *r.ParkingCover)
	assert.Equal(t, "Resale", *r.Transaction)
}

func TestCleanConversions(t *testing.T) {
	tests := []struct {
		name  string
		over  map[string]string
		check func(t *testing.T, r listing.Record)
	}{
		{"crore amount", map[string]string{"Amount(in rupees)": "1.5 Crore"}, func(t *testing.T, r listing.Record) {
			assert.Equal(t, 1.5, *r.Amount)
		}},
		{"sqyrd area", map[string]string{"Carpet Area": "100 sqyrd"}, func(t *testing.T, r listing.Record) {
			assert.Equal(t, 900.0, *r.CarpetArea)
		}},
		{"comma in area", map[string]string{"Carpet Area": "1,200 sqft"}, func(t *testing.T, r listing.Record) {
			assert.Equal(t, 1200.0, *r.CarpetArea)
		}},
		{"unknown unit falls back to super area", map[string]string{"Carpet Area": "5 furlong", "Super Area": "1000 sqft"}, func(t *testing.T, r listing.Record) {
			assert.Nil(t, r.CarpetArea)
			assert.Equal(t, 1000.0, *r.SuperArea)
		}},
		{"ground floor zeroes balcony", map[string]string{"Floor": "Ground out of 4", "Balcony": "2"}, func(t *testing.T, r listing.Record) {
			assert.Equal(t, 0.0, *r.FloorNum)
			assert.Equal(t, 0.0, *r.Balcony)
		}},
		{"basement floor", map[string]string{"Floor": "Upper Basement out of 3"}, func(t *testing.T, r listing.Record) {
			assert.Equal(t, 0.0, *r.FloorNum)
		}},
		{"200 out of 200", map[string]string{"Floor": "200 out of 200"}, func(t *testing.T, r listing.Record) {
			assert.Equal(t, 2.0, *r.FloorNum)
			assert.Equal(t, 2.0, *r.NumFloors)
		}},
		{"floor without total", map[string]string{"Floor": "Ground"}, func(t *testing.T, r listing.Record) {
			assert.Nil(t, r.FloorNum)
			assert.Nil(t, r.NumFloors)
		}},
		{"capped bathroom", map[string]string{"Title": "> 10 BHK Villa", "Bathroom": "> 10"}, func(t *testing.T, r listing.Record) {
			assert.Equal(t, 10.0, *r.NumBHK)
			assert.Equal(t, 10.0, *r.Bathroom)
		}},
		{"no overlooking", map[string]string{"overlooking": ""}, func(t *testing.T, r listing.Record) {
			assert.Nil(t, r.OverlookingGarden)
			assert.Nil(t, r.OverlookingMainroad)
			assert.Nil(t, r.OverlookingPool)
		}},
		{"pool only", map[string]string{"overlooking": "Pool"}, func(t *testing.T, r listing.Record) {
			assert.Equal(t, 0.0, *r.OverlookingGarden)
			assert.Equal(t, 1.0, *r.OverlookingPool)
		}},
		{"multi-digit parking", map[string]string{"Car Parking": "1,500 Open"}, func(t *testing.T, r listing.Record) {
			assert.Equal(t, 1500.0, *r.ParkingSpots)
			assert.Equal(t, "Open", *r.ParkingCover)
		}},
		{"missing facing stays nil", map[string]string{"facing": ""}, func(t *testing.T, r listing.Record) {
			assert.Nil(t, r.Facing)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, report := Clean([]listing.RawListing{raw(tt.over)})
			require.Len(t, out, 1, "dropped: %v", report.Dropped)
			tt.check(t, out[0])
		})
	}
}

func TestCleanDrops(t *testing.T) {
	tests := []struct {
		name   string
		over   map[string]string
		reason string
	}{
		{"call for price", map[string]string{"Amount(in rupees)": "Call for Price"}, ReasonCallForPrice},
		{"tiny area", map[string]string{"Carpet Area": "50 sqft"}, ReasonArea},
		{"no area", map[string]string{"Carpet Area": ""}, ReasonArea},
		{"cheap per sqft", map[string]string{"Price (in rupees)": "150"}, ReasonPricePerSqft},
		{"huge amount", map[string]string{"Amount(in rupees)": "250 Crore"}, ReasonAmount},
		{"too many bathrooms", map[string]string{"Bathroom": "4"}, ReasonRooms},
		{"too many balconies", map[string]string{"Balcony": "5"}, ReasonRooms},
		{"floor above building", map[string]string{"Floor": "12 out of 11"}, ReasonFloors},
		{"no bhk", map[string]string{"Title": "Studio apartment"}, ReasonRequired},
		{"no transaction", map[string]string{"Transaction": ""}, ReasonRequired},
		{"no bathroom", map[string]string{"Bathroom": ""}, ReasonRequired},
		{"bad index", map[string]string{"Index": "x"}, ReasonBadIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, report := Clean([]listing.RawListing{raw(tt.over)})
			assert.Empty(t, out)
			assert.Equal(t, 1, report.Dropped[tt.reason], "dropped: %v", report.Dropped)
			assert.Equal(t, 1, report.RowsIn)
			assert.Equal(t, 0, report.RowsOut)
		})
	}
}

func TestCleanDropsDuplicatesIgnoringIndex(t *testing.T) {
	out, report := Clean([]listing.RawListing{
		raw(map[string]string{"Index": "1"}),
		raw(map[string]string{"Index": "2"}),
		raw(map[string]string{"Index": "3", "facing": "West"}),
	})
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, int64(3), out[1].ID)
	assert.Equal(t, 1, report.Dropped[ReasonDuplicate])
}

func TestFilterIsIdempotent(t *testing.T) {
	rows := []listing.RawListing{
		raw(nil),
		raw(map[string]string{"Index": "2", "Floor": "Ground out of 2", "Balcony": "1"}),
		raw(map[string]string{"Index": "3", "Carpet Area": "", "Super Area": "1500 sqft"}),
		raw(map[string]string{"Index": "4", "Bathroom": "9"}),
	}
	once, _ := Clean(rows)
	twice, report := Filter(once)

	require.Equal(t, len(once), len(twice))
	assert.Empty(t, report.Dropped)
	for i := range once {
		assert.True(t, once[i].Equal(twice[i], true))
	}
}

func TestNormalizeColumn(t *testing.T) {
	tests := map[string]string{
		"Amount(in rupees)": "amount",
		"Price (in rupees)": "price",
		"Carpet Area":       "carpet_area",
		"Car Parking":       "car_parking",
		"facing":            "facing",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeColumn(in), in)
	}
}
