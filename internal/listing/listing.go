// Package listing defines the row types that flow through the offline
// pipeline and the serving path: raw scraped listings, cleaned records with
// explicit missing values, and fully imputed records.
package listing

import (
	"fmt"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
)

// RawListing is one scraped row keyed by its original CSV header. Values are
// untouched text; an empty string means the cell was blank.
type RawListing map[string]string

// Record is a cleaned, unit-normalized listing. A nil pointer marks a missing
// value and is only filled in by the imputer.
type Record struct {
	ID       int64
	Location string

	// Amount is the sale price in crores and the regression target.
	Amount *float64

	CarpetArea *float64
	SuperArea  *float64

	Transaction  *string
	Furnishing   *string
	Facing       *string
	Ownership    *string
	ParkingCover *string

	Bathroom  *float64
	Balcony   *float64
	FloorNum  *float64
	NumFloors *float64
	NumBHK    *float64

	OverlookingGarden   *float64
	OverlookingMainroad *float64
	OverlookingPool     *float64

	ParkingSpots *float64
}

// Imputed is a record with every feature filled in. CarpetArea and SuperArea
// hold AreaMissing when absent.
type Imputed struct {
	Location     string
	Transaction  string
	Furnishing   string
	Facing       string
	Ownership    string
	ParkingCover string

	CarpetArea float64
	SuperArea  float64

	Bathroom  float64
	Balcony   float64
	FloorNum  float64
	NumFloors float64
	NumBHK    float64

	OverlookingGarden   float64
	OverlookingMainroad float64
	OverlookingPool     float64

	ParkingSpots float64

	BalconyMissing   bool
	OwnershipMissing bool
	FacingMissing    bool
}

// AreaMissing is the sentinel stored in an imputed area field that was absent,
// meaning "use the other area field".
const AreaMissing = -1.0

// Categorical vocabularies shared by the cleaner, the row validator and the
// prediction request schema.
var (
	Transactions  = []string{"Resale", "New Property", "Other", "Rent/Lease"}
	Furnishings   = []string{"Unfurnished", "Semi-Furnished", "Furnished"}
	Facings       = []string{"North", "South", "East", "West", "North - East", "North - West", "South - East", "South -West"}
	Ownerships    = []string{"Freehold", "Leasehold", "Co-operative Society", "Power Of Attorney"}
	ParkingCovers = []string{"Open", "Covered", "No parking"}
)

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Targets extracts the Amount of every record. A record without an amount
// cannot be used for fitting or scoring.
func Targets(records []Record) ([]float64, error) {
	y := make([]float64, len(records))
	for i, r := range records {
		if r.Amount == nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "record %d has no amount", r.ID)
		}
		y[i] = *r.Amount
	}
	return y, nil
}

// Equal reports whether two records carry the same values. ID is compared
// only when withID is set.
func (r Record) Equal(o Record, withID bool) bool {
	if withID && r.ID != o.ID {
		return false
	}
	return r.Location == o.Location &&
		eqF(r.Amount, o.Amount) &&
		eqF(r.CarpetArea, o.CarpetArea) &&
		eqF(r.SuperArea, o.SuperArea) &&
		eqS(r.Transaction, o.Transaction) &&
		eqS(r.Furnishing, o.Furnishing) &&
		eqS(r.Facing, o.Facing) &&
		eqS(r.Ownership, o.Ownership) &&
		eqS(r.ParkingCover, o.ParkingCover) &&
		eqF(r.Bathroom, o.Bathroom) &&
		eqF(r.Balcony, o.Balcony) &&
		eqF(r.FloorNum, o.FloorNum) &&
		eqF(r.NumFloors, o.NumFloors) &&
		eqF(r.NumBHK, o.NumBHK) &&
		eqF(r.OverlookingGarden, o.OverlookingGarden) &&
		eqF(r.OverlookingMainroad, o.OverlookingMainroad) &&
		eqF(r.OverlookingPool, o.OverlookingPool) &&
		eqF(r.ParkingSpots, o.ParkingSpots)
}

// Key is a stable textual rendering of every field except ID, used to detect
// duplicate rows.
func (r Record) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		r.Location, fs(r.Amount), fs(r.CarpetArea), fs(r.SuperArea),
		ss(r.Transaction), ss(r.Furnishing), ss(r.Facing), ss(r.Ownership), ss(r.ParkingCover),
		fs(r.Bathroom), fs(r.Balcony), fs(r.FloorNum), fs(r.NumFloors), fs(r.NumBHK),
		fs(r.OverlookingGarden), fs(r.OverlookingMainroad), fs(r.OverlookingPool), fs(r.ParkingSpots))
}

func eqF(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqS(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func fs(v *float64) string {
	if v == nil {
		return "\x00"
	}
	return formatFloat(*v)
}

func ss(v *string) string {
	if v == nil {
		return "\x00"
	}
	return *v
}
