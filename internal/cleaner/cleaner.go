// Package cleaner turns raw scraped listings into typed, unit-normalized
// records. Rows that violate data-quality bounds are dropped and only counted;
// cleaning never fails on a bad row.
package cleaner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
)

// Drop reasons reported in Report.Dropped.
const (
	ReasonCallForPrice = "call_for_price"
	ReasonBadIndex     = "bad_index"
	ReasonArea         = "area_out_of_bounds"
	ReasonPricePerSqft = "price_out_of_bounds"
	ReasonAmount       = "amount_out_of_bounds"
	ReasonRooms        = "rooms_exceed_bhk"
	ReasonFloors       = "floor_above_building"
	ReasonDuplicate    = "duplicate"
	ReasonRequired     = "missing_required"
)

// Report summarizes a cleaning pass.
type Report struct {
	RowsIn  int            `json:"rows_in"`
	RowsOut int            `json:"rows_out"`
	Dropped map[string]int `json:"dropped"`
}

func newReport(in int) Report {
	return Report{RowsIn: in, Dropped: make(map[string]int)}
}

// areaUnits converts an area unit to square feet.
var areaUnits = map[string]float64{
	"sqft":     1,
	"sqyrd":    9,
	"sqm":      10.7639,
	"marla":    272.25,
	"kanal":    5445,
	"ground":   2400,
	"biswa2":   1350,
	"aankadam": 75,
	"acre":     43560,
	"hectare":  107639,
	"cent":     435.6,
	"bigha":    27225,
}

var firstNumber = regexp.MustCompile(`(\d+)`)

// Clean parses raw rows and applies the record filters. The returned report
// covers both phases.
func Clean(rows []listing.RawListing) ([]listing.Record, Report) {
	report := newReport(len(rows))
	parsed := make([]listing.Record, 0, len(rows))
	for _, raw := range rows {
		rec, reason := parse(normalize(raw))
		if reason != "" {
			report.Dropped[reason]++
			continue
		}
		parsed = append(parsed, rec)
	}
	kept, fr := Filter(parsed)
	for k, v := range fr.Dropped {
		report.Dropped[k] += v
	}
	report.RowsOut = fr.RowsOut
	return kept, report
}

// Filter applies the row-level bounds to already typed records. It is
// idempotent: filtering its own output drops nothing and changes nothing.
func Filter(records []listing.Record) ([]listing.Record, Report) {
	report := newReport(len(records))
	seen := make(map[string]struct{}, len(records))
	out := make([]listing.Record, 0, len(records))

	for _, r := range records {
		if r.FloorNum != nil && *r.FloorNum == 0 {
			r.Balcony = listing.Float(0)
		}
		if reason := check(r); reason != "" {
			report.Dropped[reason]++
			continue
		}
		key := r.Key()
		if _, dup := seen[key]; dup {
			report.Dropped[ReasonDuplicate]++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	report.RowsOut = len(out)
	return out, report
}

func check(r listing.Record) string {
	if !between(r.CarpetArea, 90, 10000) && !between(r.SuperArea, 100, 10000) {
		return ReasonArea
	}
	if !between(r.Amount, 0.1, 100) {
		return ReasonAmount
	}
	if r.NumBHK != nil {
		limit := *r.NumBHK + 2
		if (r.Bathroom != nil && *r.Bathroom >= limit) || (r.Balcony != nil && *r.Balcony >= limit) {
			return ReasonRooms
		}
	}
	if r.FloorNum != nil && r.NumFloors != nil && *r.NumFloors < *r.FloorNum {
		return ReasonFloors
	}
	if r.Transaction == nil || r.NumBHK == nil || r.Bathroom == nil {
		return ReasonRequired
	}
	return ""
}

func between(v *float64, lo, hi float64) bool {
	return v != nil && *v >= lo && *v <= hi
}

// NormalizeColumn lowercases a header, replaces spaces with underscores and
// cuts any parenthesized suffix: "Amount(in rupees)" becomes "amount".
func NormalizeColumn(col string) string {
	c := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(col)), " ", "_")
	c, _, _ = strings.Cut(c, "_(")
	c, _, _ = strings.Cut(c, "(")
	return c
}

func normalize(raw listing.RawListing) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[NormalizeColumn(k)] = strings.TrimSpace(v)
	}
	return out
}

func parse(row map[string]string) (listing.Record, string) {
	var rec listing.Record

	if row["amount"] == "Call for Price" {
		return rec, ReasonCallForPrice
	}
	id, err := strconv.ParseInt(row["index"], 10, 64)
	if err != nil {
		return rec, ReasonBadIndex
	}
	rec.ID = id
	if !between(number(strings.ReplaceAll(row["price"], ",", "")), 200, 10000) {
		return rec, ReasonPricePerSqft
	}

	rec.Location = row["location"]
	rec.Amount = crores(row["amount"])
	rec.CarpetArea = sqft(row["carpet_area"])
	rec.SuperArea = sqft(row["super_area"])

	rec.Transaction = text(row["transaction"])
	rec.Furnishing = text(row["furnishing"])
	rec.Facing = text(row["facing"])
	rec.Ownership = text(row["ownership"])

	rec.Bathroom = number(strings.ReplaceAll(row["bathroom"], "> ", ""))
	rec.Balcony = number(strings.ReplaceAll(row["balcony"], "> ", ""))
	rec.NumBHK = bhk(row["title"])
	rec.FloorNum, rec.NumFloors = floors(row["floor"])
	rec.OverlookingGarden, rec.OverlookingMainroad, rec.OverlookingPool = overlooking(row["overlooking"])
	rec.ParkingSpots, rec.ParkingCover = parking(row["car_parking"])

	return rec, ""
}

func text(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func number(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// crores converts "<n> Lac" or "<n> Crore" into crores.
func crores(s string) *float64 {
	value, unit, _ := strings.Cut(s, " ")
	v := number(value)
	if v == nil {
		return nil
	}
	if strings.TrimSpace(unit) == "Lac" {
		*v *= 0.01
	}
	return v
}

// sqft converts "<n> <unit>" into square feet. Unknown units yield nil.
func sqft(s string) *float64 {
	value, unit, _ := strings.Cut(strings.ReplaceAll(s, ",", ""), " ")
	v := number(value)
	if v == nil {
		return nil
	}
	factor, ok := areaUnits[strings.TrimSpace(unit)]
	if !ok {
		return nil
	}
	*v *= factor
	return v
}

// bhk extracts the leading integer before "BHK" in a listing title.
func bhk(title string) *float64 {
	before, _, found := strings.Cut(title, "BHK")
	if !found {
		return nil
	}
	return number(strings.ReplaceAll(before, ">", ""))
}

// floors parses "<floor> out of <total>". Ground and basement floors are 0.
func floors(s string) (*float64, *float64) {
	s = strings.ReplaceAll(s, "200 out of 200", "2 out of 2")
	floor, total, found := strings.Cut(s, "out of")
	if !found {
		return nil, nil
	}
	floor = strings.NewReplacer("Ground", "0", "Lower Basement", "0", "Upper Basement", "0").Replace(floor)
	total, _, _ = strings.Cut(total, "out of")
	return number(floor), number(total)
}

func overlooking(s string) (garden, mainroad, pool *float64) {
	if s == "" {
		return nil, nil, nil
	}
	flag := func(sub string) *float64 {
		if strings.Contains(s, sub) {
			return listing.Float(1)
		}
		return listing.Float(0)
	}
	return flag("Garden"), flag("Main Road"), flag("Pool")
}

// parking reads "<n> <cover>" descriptions such as "1 Covered".
func parking(s string) (*float64, *string) {
	if s == "" {
		return nil, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	var spots *float64
	if m := firstNumber.FindString(s); m != "" {
		spots = number(m)
	}
	var cover *string
	if parts := strings.Split(s, " "); len(parts) > 1 {
		cover = text(parts[1])
	}
	return spots, cover
}
