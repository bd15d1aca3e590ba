package listing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// RecordColumns is the header of a cleaned or interim partition CSV.
var RecordColumns = []string{
	"index", "location", "amount", "carpet_area", "super_area",
	"transaction", "furnishing", "facing", "ownership", "parking_cover",
	"bathroom", "balcony", "floor_num", "num_floors", "num_bhk",
	"overlooking_garden", "overlooking_mainroad", "overlooking_pool", "parking_spots",
}

// ReadRaw parses a scraped listings CSV. Rows shorter than the header are
// padded with blanks.
func ReadRaw(r io.Reader) ([]RawListing, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading raw header: %w", err)
	}
	var rows []RawListing
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading raw row %d: %w", len(rows)+1, err)
		}
		row := make(RawListing, len(header))
		for i, col := range header {
			if i < len(fields) {
				row[col] = fields[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteRecords writes records as CSV with RecordColumns as header. Missing
// values are written as empty cells.
func WriteRecords(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RecordColumns); err != nil {
		return err
	}
	row := make([]string, len(RecordColumns))
	for _, r := range records {
		row[0] = strconv.FormatInt(r.ID, 10)
		row[1] = r.Location
		row[2] = cellF(r.Amount)
		row[3] = cellF(r.CarpetArea)
		row[4] = cellF(r.SuperArea)
		row[5] = cellS(r.Transaction)
		row[6] = cellS(r.Furnishing)
		row[7] = cellS(r.Facing)
		row[8] = cellS(r.Ownership)
		row[9] = cellS(r.ParkingCover)
		row[10] = cellF(r.Bathroom)
		row[11] = cellF(r.Balcony)
		row[12] = cellF(r.FloorNum)
		row[13] = cellF(r.NumFloors)
		row[14] = cellF(r.NumBHK)
		row[15] = cellF(r.OverlookingGarden)
		row[16] = cellF(r.OverlookingMainroad)
		row[17] = cellF(r.OverlookingPool)
		row[18] = cellF(r.ParkingSpots)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRecords parses a CSV written by WriteRecords. Columns are located by
// header name so extra columns are ignored; a missing column is an error.
func ReadRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading record header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	idx := make([]int, len(RecordColumns))
	for i, col := range RecordColumns {
		p, ok := pos[col]
		if !ok {
			return nil, fmt.Errorf("record csv missing column %q", col)
		}
		idx[i] = p
	}

	var records []Record
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record line %d: %w", line, err)
		}
		get := func(i int) string { return fields[idx[i]] }

		var rec Record
		var perr error
		parseF := func(i int) *float64 {
			v, err := parseCell(get(i))
			if err != nil && perr == nil {
				perr = fmt.Errorf("line %d column %s: %w", line, RecordColumns[i], err)
			}
			return v
		}
		if rec.ID, err = strconv.ParseInt(get(0), 10, 64); err != nil {
			return nil, fmt.Errorf("line %d: invalid index %q: %w", line, get(0), err)
		}
		rec.Location = get(1)
		rec.Amount = parseF(2)
		rec.CarpetArea = parseF(3)
		rec.SuperArea = parseF(4)
		rec.Transaction = cellPtr(get(5))
		rec.Furnishing = cellPtr(get(6))
		rec.Facing = cellPtr(get(7))
		rec.Ownership = cellPtr(get(8))
		rec.ParkingCover = cellPtr(get(9))
		rec.Bathroom = parseF(10)
		rec.Balcony = parseF(11)
		rec.FloorNum = parseF(12)
		rec.NumFloors = parseF(13)
		rec.NumBHK = parseF(14)
		rec.OverlookingGarden = parseF(15)
		rec.OverlookingMainroad = parseF(16)
		rec.OverlookingPool = parseF(17)
		rec.ParkingSpots = parseF(18)
		if perr != nil {
			return nil, perr
		}
		records = append(records, rec)
	}
	return records, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func cellF(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func cellS(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func cellPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseCell(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
