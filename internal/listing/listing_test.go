package listing

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{
			ID: 7, Location: "mumbai", Amount: Float(1.25), CarpetArea: Float(800),
			Transaction: String("Resale"), Furnishing: String("Unfurnished"),
			ParkingCover: String("Open"), Bathroom: Float(2), Balcony: Float(1),
			FloorNum: Float(3), NumFloors: Float(10), NumBHK: Float(2),
			OverlookingGarden: Float(0), OverlookingMainroad: Float(1), OverlookingPool: Float(0),
			ParkingSpots: Float(1),
		},
		{ID: 8, Location: "thane", Amount: Float(0.45), SuperArea: Float(650.5), Transaction: String("New Property"), Bathroom: Float(1), NumBHK: Float(1)},
	}
}

func TestRecordCSVRoundTripKeepsMissing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, sampleRecords()))

	got, err := ReadRecords(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, want := range sampleRecords() {
		assert.True(t, want.Equal(got[i], true), "row %d differs", i)
	}
	assert.Nil(t, got[1].CarpetArea)
	assert.Nil(t, got[1].Facing)
	assert.Nil(t, got[1].OverlookingPool)
}

func TestReadRecordsRejectsBadInput(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("index,location\n1,mumbai\n"))
	assert.ErrorContains(t, err, "missing column")

	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, sampleRecords()[:1]))
	bad := strings.Replace(buf.String(), ",800,", ",eight hundred,", 1)
	_, err = ReadRecords(strings.NewReader(bad))
	assert.ErrorContains(t, err, "carpet_area")
}

func TestReadRawPadsShortRows(t *testing.T) {
	rows, err := ReadRaw(strings.NewReader("Index,Title,Amount(in rupees)\n1,2 BHK Flat,42 Lac\n2,Plot\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "42 Lac", rows[0]["Amount(in rupees)"])
	assert.Equal(t, "", rows[1]["Amount(in rupees)"])
}

func TestKeyIgnoresID(t *testing.T) {
	a := sampleRecords()[0]
	b := a
	b.ID = 99
	assert.Equal(t, a.Key(), b.Key())
	assert.True(t, a.Equal(b, false))
	assert.False(t, a.Equal(b, true))

	b.Facing = String("North")
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestTargets(t *testing.T) {
	y, err := Targets(sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []float64{1.25, 0.45}, y)

	recs := sampleRecords()
	recs[1].Amount = nil
	_, err = Targets(recs)
	assert.Error(t, err)
}
