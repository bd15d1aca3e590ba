package validation

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() listing.Record {
	return listing.Record{
		ID: 1, Location: "mumbai", Amount: listing.Float(1.2), NumBHK: listing.Float(2),
		Transaction: listing.String("Resale"), Furnishing: listing.String("Furnished"),
		CarpetArea: listing.Float(800), Bathroom: listing.Float(2), Balcony: listing.Float(1),
		FloorNum: listing.Float(3), NumFloors: listing.Float(10), Facing: listing.String("South -West"),
		OverlookingGarden: listing.Float(1), Ownership: listing.String("Freehold"),
		ParkingCover: listing.String("Covered"), ParkingSpots: listing.Float(1),
	}
}

func TestCheckRow(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *listing.Record)
		field  string
	}{
		{"valid", func(*listing.Record) {}, ""},
		{"sparse but valid", func(r *listing.Record) {
			r.Furnishing, r.Facing, r.Ownership, r.ParkingCover = nil, nil, nil, nil
			r.FloorNum, r.NumFloors, r.Balcony = nil, nil, nil
		}, ""},
		{"no location", func(r *listing.Record) { r.Location = "" }, "location"},
		{"bad transaction", func(r *listing.Record) { r.Transaction = listing.String("Auction") }, "transaction"},
		{"missing transaction", func(r *listing.Record) { r.Transaction = nil }, "transaction"},
		{"bad facing", func(r *listing.Record) { r.Facing = listing.String("Up") }, "facing"},
		{"zero bathroom", func(r *listing.Record) { r.Bathroom = listing.Float(0) }, "bathroom"},
		{"negative area", func(r *listing.Record) { r.CarpetArea = listing.Float(-5) }, "carpet_area"},
		{"overlooking not flag", func(r *listing.Record) { r.OverlookingPool = listing.Float(-1) }, "overlooking_pool"},
		{"floor above building", func(r *listing.Record) { r.FloorNum = listing.Float(12) }, "num_floors"},
		{"no amount", func(r *listing.Record) { r.Amount = nil }, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			fields := CheckRow(r)
			if tt.field == "" {
				assert.Nil(t, fields)
				return
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestPartitionAggregatesFailures(t *testing.T) {
	good := validRecord()
	bad := validRecord()
	bad.ID = 9
	bad.Ownership = listing.String("Timeshare")

	report, err := Partition("train", []listing.Record{good, good})
	require.NoError(t, err)
	assert.Equal(t, Report{Partition: "train", Rows: 2}, report)

	report, err = Partition("test", []listing.Record{good, bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "row 9: ownership must be one of")
	assert.Equal(t, 1, report.Invalid)
}
