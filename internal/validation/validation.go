// Package validation checks interim partitions row by row against the
// listing schema before they are allowed to feed the transformation stage.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// vocabularies backs the "enum" tag: enum=facing accepts listing.Facings.
var vocabularies = map[string][]string{
	"transaction":   listing.Transactions,
	"furnishing":    listing.Furnishings,
	"facing":        listing.Facings,
	"ownership":     listing.Ownerships,
	"parking_cover": listing.ParkingCovers,
}

// Validator returns the shared validator with the enum and flag tags
// registered and JSON names used in field errors.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		if err := validate.RegisterValidation("enum", validateEnum); err != nil {
			panic(err)
		}
		if err := validate.RegisterValidation("flag", validateFlag); err != nil {
			panic(err)
		}
	})
	return validate
}

func validateEnum(fl validator.FieldLevel) bool {
	vocab, ok := vocabularies[fl.Param()]
	if !ok {
		return false
	}
	return slices.Contains(vocab, fl.Field().String())
}

func validateFlag(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		v := f.Float()
		return v == 0 || v == 1
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v := f.Int()
		return v == 0 || v == 1
	}
	return false
}

// FieldErrors flattens a validator error into field -> message.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required when " + fe.Param() + " is absent"
	case "enum":
		return "must be one of: " + strings.Join(vocabularies[fe.Param()], ", ")
	case "flag":
		return "must be 0 or 1"
	case "gt", "gte", "lt", "lte":
		ops := map[string]string{"gt": ">", "gte": ">=", "lt": "<", "lte": "<="}
		return fmt.Sprintf("must be %s %s", ops[fe.Tag()], fe.Param())
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// Row is the validated view of a cleaned record.
type Row struct {
	Location            string   `json:"location" validate:"required"`
	Amount              *float64 `json:"amount" validate:"required,gt=0"`
	NumBHK              *float64 `json:"num_bhk" validate:"required,gte=0"`
	Transaction         *string  `json:"transaction" validate:"required,enum=transaction"`
	Furnishing          *string  `json:"furnishing" validate:"omitempty,enum=furnishing"`
	CarpetArea          *float64 `json:"carpet_area" validate:"omitempty,gt=0"`
	SuperArea           *float64 `json:"super_area" validate:"omitempty,gt=0"`
	Bathroom            *float64 `json:"bathroom" validate:"required,gt=0"`
	Balcony             *float64 `json:"balcony" validate:"omitempty,gte=0"`
	FloorNum            *float64 `json:"floor_num" validate:"omitempty,gte=0"`
	NumFloors           *float64 `json:"num_floors" validate:"omitempty,gte=0"`
	Facing              *string  `json:"facing" validate:"omitempty,enum=facing"`
	OverlookingGarden   *float64 `json:"overlooking_garden" validate:"omitempty,flag"`
	OverlookingMainroad *float64 `json:"overlooking_mainroad" validate:"omitempty,flag"`
	OverlookingPool     *float64 `json:"overlooking_pool" validate:"omitempty,flag"`
	Ownership           *string  `json:"ownership" validate:"omitempty,enum=ownership"`
	ParkingCover        *string  `json:"parking_cover" validate:"omitempty,enum=parking_cover"`
	ParkingSpots        *float64 `json:"parking_spots" validate:"omitempty,gte=0"`
}

// RowFrom builds the validated view of r.
func RowFrom(r listing.Record) Row {
	return Row{
		Location: r.Location, Amount: r.Amount, NumBHK: r.NumBHK, Transaction: r.Transaction,
		Furnishing: r.Furnishing, CarpetArea: r.CarpetArea, SuperArea: r.SuperArea,
		Bathroom: r.Bathroom, Balcony: r.Balcony, FloorNum: r.FloorNum, NumFloors: r.NumFloors,
		Facing: r.Facing, OverlookingGarden: r.OverlookingGarden, OverlookingMainroad: r.OverlookingMainroad,
		OverlookingPool: r.OverlookingPool, Ownership: r.Ownership, ParkingCover: r.ParkingCover,
		ParkingSpots: r.ParkingSpots,
	}
}

// CheckRow validates one record, returning per-field messages or nil.
func CheckRow(r listing.Record) map[string]string {
	var fields map[string]string
	if err := Validator().Struct(RowFrom(r)); err != nil {
		fields = FieldErrors(err)
	}
	if r.FloorNum != nil && r.NumFloors != nil && *r.NumFloors < *r.FloorNum {
		if fields == nil {
			fields = make(map[string]string)
		}
		fields["num_floors"] = "must be >= floor_num"
	}
	return fields
}

// maxReported caps how many offending rows an error names.
const maxReported = 5

// Report summarizes one validated partition.
type Report struct {
	Partition string `json:"partition"`
	Rows      int    `json:"rows"`
	Invalid   int    `json:"invalid"`
}

// Partition validates every row. Any invalid row fails the whole partition
// with an error naming the first few offenders.
func Partition(name string, records []listing.Record) (Report, error) {
	report := Report{Partition: name, Rows: len(records)}
	var samples []string
	for _, r := range records {
		fields := CheckRow(r)
		if fields == nil {
			continue
		}
		report.Invalid++
		if len(samples) < maxReported {
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, len(keys))
			for i, k := range keys {
				parts[i] = k + " " + fields[k]
			}
			samples = append(samples, fmt.Sprintf("row %d: %s", r.ID, strings.Join(parts, ", ")))
		}
	}
	if report.Invalid > 0 {
		return report, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusUnprocessableEntity,
			"%s partition has %d invalid rows: %s", name, report.Invalid, strings.Join(samples, "; "))
	}
	return report, nil
}
