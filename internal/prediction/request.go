// Package prediction serves price predictions for single listings: it
// validates requests, consults the prediction cache and runs the loaded
// model bundle.
package prediction

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/validation"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"github.com/goccy/go-json"
)

// FloorNumber accepts an integer, a numeric string, or "Ground"/"Underground"
// which both mean floor 0.
type FloorNumber int

func (f *FloorNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		switch strings.ToLower(s) {
		case "ground", "underground":
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("floor_num must be an integer, Ground or Underground, got %q", s)
		}
		*f = FloorNumber(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("floor_num must be an integer, Ground or Underground")
	}
	*f = FloorNumber(n)
	return nil
}

// Request is the body of POST /api/v1/predict.
type Request struct {
	Location     string `json:"location" validate:"required"`
	Transaction  string `json:"transaction" validate:"required,enum=transaction"`
	Furnishing   string `json:"furnishing" validate:"required,enum=furnishing"`
	ParkingCover string `json:"parking_cover" validate:"required,enum=parking_cover"`

	Bathroom  int          `json:"bathroom" validate:"required,gt=0"`
	Balcony   int          `json:"balcony" validate:"required,gt=0"`
	NumBHK    int          `json:"num_bhk" validate:"required,gt=0"`
	FloorNum  *FloorNumber `json:"floor_num" validate:"required,gte=0"`
	NumFloors int          `json:"num_floors" validate:"required,gt=0"`

	OverlookingGarden   *int `json:"overlooking_garden" validate:"required,flag"`
	OverlookingMainroad *int `json:"overlooking_mainroad" validate:"required,flag"`
	OverlookingPool     *int `json:"overlooking_pool" validate:"required,flag"`
	ParkingSpots        *int `json:"parking_spots" validate:"required,gte=0"`

	Facing     *string  `json:"facing,omitempty" validate:"omitempty,enum=facing"`
	Ownership  *string  `json:"ownership,omitempty" validate:"omitempty,enum=ownership"`
	CarpetArea *float64 `json:"carpet_area,omitempty" validate:"required_without=SuperArea,omitempty,gt=0"`
	SuperArea  *float64 `json:"super_area,omitempty" validate:"required_without=CarpetArea,omitempty,gt=0"`
}

// canonical maps a squashed spelling ("southwest") to the dataset's.
var canonical = func() map[string]map[string]string {
	out := map[string]map[string]string{}
	for name, vocab := range map[string][]string{
		"transaction":   listing.Transactions,
		"furnishing":    listing.Furnishings,
		"facing":        listing.Facings,
		"ownership":     listing.Ownerships,
		"parking_cover": listing.ParkingCovers,
	} {
		m := make(map[string]string, len(vocab))
		for _, v := range vocab {
			m[squash(v)] = v
		}
		out[name] = m
	}
	return out
}()

func squash(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

func canon(vocab, s string) string {
	if v, ok := canonical[vocab][squash(s)]; ok {
		return v
	}
	return strings.TrimSpace(s)
}

// Normalize lowercases the location and maps enum values to their canonical
// spelling regardless of case and spacing. Unknown values are left for
// Validate to reject.
func (r *Request) Normalize() {
	r.Location = strings.ToLower(strings.TrimSpace(r.Location))
	r.Transaction = canon("transaction", r.Transaction)
	r.Furnishing = canon("furnishing", r.Furnishing)
	r.ParkingCover = canon("parking_cover", r.ParkingCover)
	if r.Facing != nil {
		v := canon("facing", *r.Facing)
		r.Facing = &v
	}
	if r.Ownership != nil {
		v := canon("ownership", *r.Ownership)
		r.Ownership = &v
	}
}

// Validate checks the schema and then clamps floor_num to num_floors.
func (r *Request) Validate() error {
	if err := validation.Validator().Struct(r); err != nil {
		return apperrors.Invalid("invalid prediction request", validation.FieldErrors(err))
	}
	if int(*r.FloorNum) > r.NumFloors {
		clamped := FloorNumber(r.NumFloors)
		r.FloorNum = &clamped
	}
	return nil
}

// Record converts a validated request into a cleaned listing record.
func (r *Request) Record() listing.Record {
	f := func(v int) *float64 { return listing.Float(float64(v)) }
	return listing.Record{
		Location:            r.Location,
		CarpetArea:          r.CarpetArea,
		SuperArea:           r.SuperArea,
		Transaction:         listing.String(r.Transaction),
		Furnishing:          listing.String(r.Furnishing),
		Facing:              r.Facing,
		Ownership:           r.Ownership,
		ParkingCover:        listing.String(r.ParkingCover),
		Bathroom:            f(r.Bathroom),
		Balcony:             f(r.Balcony),
		FloorNum:            f(int(*r.FloorNum)),
		NumFloors:           f(r.NumFloors),
		NumBHK:              f(r.NumBHK),
		OverlookingGarden:   f(*r.OverlookingGarden),
		OverlookingMainroad: f(*r.OverlookingMainroad),
		OverlookingPool:     f(*r.OverlookingPool),
		ParkingSpots:        f(*r.ParkingSpots),
	}
}

// Fingerprint joins the request's field values in a fixed order. Absent
// optional fields contribute an empty slot.
func (r *Request) Fingerprint() string {
	opt := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	num := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'g', -1, 64)
	}
	floor := ""
	if r.FloorNum != nil {
		floor = strconv.Itoa(int(*r.FloorNum))
	}
	ptr := func(v *int) string {
		if v == nil {
			return ""
		}
		return strconv.Itoa(*v)
	}
	return strings.Join([]string{
		r.Location, r.Transaction, r.Furnishing, r.ParkingCover,
		strconv.Itoa(r.Bathroom), strconv.Itoa(r.Balcony), strconv.Itoa(r.NumBHK),
		floor, strconv.Itoa(r.NumFloors),
		ptr(r.OverlookingGarden), ptr(r.OverlookingMainroad), ptr(r.OverlookingPool),
		ptr(r.ParkingSpots),
		opt(r.Facing), opt(r.Ownership), num(r.CarpetArea), num(r.SuperArea),
	}, "|")
}
