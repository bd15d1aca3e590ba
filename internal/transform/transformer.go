// Package transform encodes engineered feature rows into a numeric matrix.
// Every encoder parameter is learned from the training partition only and is
// frozen afterwards; the fitted transformer is persisted as JSON and reused
// unchanged by the prediction API.
package transform

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/features"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
)

// TargetFolds is the number of folds used to cross-fit target encodings on
// the training partition.
const TargetFolds = 5

// passthrough columns are copied unchanged, in this order, after the encoded
// columns.
var passthrough = []string{
	"is_unfurnished", "city_tier", "direction_tier", "carpet_areamissing", "super_areamissing",
	"balcony_missingindicator", "balcony_per_room", "bathroom_per_room", "parking_spots",
	"carpet_area", "super_area",
}

// ColumnTransformer holds one fitted encoder per input feature.
type ColumnTransformer struct {
	TransactionGrouper RareLabel `json:"transaction_grouper"`
	Transaction        OneHot    `json:"transaction"`
	NumBHK             MinMax    `json:"num_bhk"`
	HouseSize          Ordinal   `json:"house_size"`
	Bathroom           MinMax    `json:"bathroom"`
	BathroomNum        Ordinal   `json:"bathroom_num"`
	Furnishing         Ordinal   `json:"furnishing"`
	FloorNum           Robust    `json:"floor_num"`
	FloorHeight        Ordinal   `json:"floor_height"`
	NumFloors          Robust    `json:"num_floors"`
	BuildingHeight     Ordinal   `json:"building_height"`
	Location           Target    `json:"location"`
	Balcony            MinMax    `json:"balcony"`
	Ownership          OneHot    `json:"ownership"`
	OwnershipMissing   OneHot    `json:"missingindicator_ownership"`
	Facing             OneHot    `json:"facing"`
	FacingTarget       Target    `json:"facing_target"`
	FacingMissing      OneHot    `json:"missingindicator_facing"`
	OverlookingGarden  OneHot    `json:"overlooking_garden"`
	OverlookingMain    OneHot    `json:"overlooking_mainroad"`
	OverlookingPool    OneHot    `json:"overlooking_pool"`
	ParkingCover       OneHot    `json:"parking_cover"`
	HasParking         OneHot    `json:"has_parking"`
	EffectiveArea      Robust    `json:"effective_area"`
	AreaPerRoom        Robust    `json:"area_per_room"`

	Columns []string `json:"columns"`
	Fitted  bool     `json:"fitted"`
}

// New returns an unfitted transformer with the fixed vocabularies set.
func New() *ColumnTransformer {
	overlook := []string{"-1", "0", "1"}
	return &ColumnTransformer{
		TransactionGrouper: RareLabel{Tol: 0.1, MinCategories: 2, ReplaceWith: "Resale"},
		Transaction:        OneHot{Feature: "transaction"},
		NumBHK:             MinMax{Feature: "num_bhk"},
		HouseSize:          Ordinal{Feature: "house_size", Categories: []string{"small", "normal", "big"}},
		Bathroom:           MinMax{Feature: "bathroom"},
		BathroomNum:        Ordinal{Feature: "bathroom_num", Categories: []string{"low", "medium", "high"}},
		Furnishing:         Ordinal{Feature: "furnishing", Categories: []string{"Unfurnished", "Semi-Furnished", "Furnished"}},
		FloorNum:           Robust{Feature: "floor_num"},
		FloorHeight:        Ordinal{Feature: "floor_height", Categories: []string{"low", "medium", "high"}},
		NumFloors:          Robust{Feature: "num_floors"},
		BuildingHeight:     Ordinal{Feature: "building_height", Categories: []string{"short", "medium", "tall"}},
		Location:           Target{Feature: "location"},
		Balcony:            MinMax{Feature: "balcony"},
		Ownership:          OneHot{Feature: "ownership"},
		OwnershipMissing:   OneHot{Feature: "missingindicator_ownership", DropFirst: true},
		Facing:             OneHot{Feature: "facing"},
		FacingTarget:       Target{Feature: "facing_target"},
		FacingMissing:      OneHot{Feature: "missingindicator_facing", DropFirst: true},
		OverlookingGarden:  OneHot{Feature: "overlooking_garden"},
		OverlookingMain:    OneHot{Feature: "overlooking_mainroad", Categories: overlook, Fixed: true, Drop: "-1"},
		OverlookingPool:    OneHot{Feature: "overlooking_pool", Categories: overlook, Fixed: true, Drop: "-1"},
		ParkingCover:       OneHot{Feature: "parking_cover"},
		HasParking:         OneHot{Feature: "has_parking", Categories: []string{"multiple", "single", "no parking"}, Fixed: true, Drop: "no parking"},
		EffectiveArea:      Robust{Feature: "effective_area"},
		AreaPerRoom:        Robust{Feature: "area_per_room"},
	}
}

// Fit learns every encoder from the training rows and their targets.
func (ct *ColumnTransformer) Fit(rows []features.Row, y []float64) error {
	if len(rows) == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "cannot fit transformer on no rows")
	}
	if len(rows) != len(y) {
		return fmt.Errorf("transformer fit: %d rows but %d targets", len(rows), len(y))
	}
	col := func(f func(features.Row) string) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = f(r)
		}
		return out
	}
	num := func(f func(features.Row) float64) []float64 {
		out := make([]float64, len(rows))
		for i, r := range rows {
			out[i] = f(r)
		}
		return out
	}

	transactions := col(func(r features.Row) string { return r.Transaction })
	ct.TransactionGrouper.fit(transactions)
	for i, v := range transactions {
		transactions[i] = ct.TransactionGrouper.apply(v)
	}
	ct.Transaction.fit(transactions)

	ct.NumBHK.fit(num(func(r features.Row) float64 { return r.NumBHK }))
	ct.Bathroom.fit(num(func(r features.Row) float64 { return r.Bathroom }))
	ct.FloorNum.fit(num(func(r features.Row) float64 { return r.FloorNum }))
	ct.NumFloors.fit(num(func(r features.Row) float64 { return r.NumFloors }))
	ct.Location.fit(col(func(r features.Row) string { return r.Location }), y)
	ct.Balcony.fit(num(func(r features.Row) float64 { return r.Balcony }))
	ct.Ownership.fit(col(func(r features.Row) string { return r.Ownership }))
	ct.OwnershipMissing.fit(col(func(r features.Row) string { return boolKey(r.OwnershipMissing) }))
	facing := col(func(r features.Row) string { return r.Facing })
	ct.Facing.fit(facing)
	ct.FacingTarget.fit(facing, y)
	ct.FacingMissing.fit(col(func(r features.Row) string { return boolKey(r.FacingMissing) }))
	ct.OverlookingGarden.fit(col(func(r features.Row) string { return numKey(r.OverlookingGarden) }))
	ct.OverlookingMain.fit(nil)
	ct.OverlookingPool.fit(nil)
	ct.ParkingCover.fit(col(func(r features.Row) string { return r.ParkingCover }))
	ct.HasParking.fit(nil)
	ct.EffectiveArea.fit(num(func(r features.Row) float64 { return r.EffectiveArea }))
	ct.AreaPerRoom.fit(num(func(r features.Row) float64 { return r.AreaPerRoom }))

	ct.Columns = ct.columnNames()
	ct.Fitted = true
	return nil
}

// FitTransform fits on the training rows and encodes them. Target-encoded
// columns are cross-fitted so no row sees its own target.
func (ct *ColumnTransformer) FitTransform(rows []features.Row, y []float64, seed int64) (*Matrix, error) {
	if err := ct.Fit(rows, y); err != nil {
		return nil, err
	}
	m, err := ct.Transform(rows)
	if err != nil {
		return nil, err
	}
	locations := make([]string, len(rows))
	facings := make([]string, len(rows))
	for i, r := range rows {
		locations[i], facings[i] = r.Location, r.Facing
	}
	locCol, facingCol := ct.indexOf("location"), ct.indexOf("facing_target")
	for i, v := range crossFit("location", locations, y, TargetFolds, seed) {
		m.Rows[i][locCol] = v
	}
	for i, v := range crossFit("facing_target", facings, y, TargetFolds, seed+1) {
		m.Rows[i][facingCol] = v
	}
	return m, nil
}

// Transform encodes rows with the fitted parameters.
func (ct *ColumnTransformer) Transform(rows []features.Row) (*Matrix, error) {
	if !ct.Fitted {
		return nil, apperrors.New(apperrors.ErrNotFitted, http.StatusInternalServerError, "column transformer is not fitted")
	}
	m := &Matrix{Columns: ct.Columns, Rows: make([][]float64, len(rows))}
	for i, r := range rows {
		vec, err := ct.TransformRow(r)
		if err != nil {
			return nil, err
		}
		m.Rows[i] = vec
	}
	return m, nil
}

// TransformRow encodes a single row. The output length must match the
// fitted column set; anything else means the persisted transformer and this
// code disagree.
func (ct *ColumnTransformer) TransformRow(r features.Row) ([]float64, error) {
	if !ct.Fitted {
		return nil, apperrors.New(apperrors.ErrNotFitted, http.StatusInternalServerError, "column transformer is not fitted")
	}
	v := make([]float64, 0, len(ct.Columns))
	v = ct.Transaction.encode(ct.TransactionGrouper.apply(r.Transaction), v)
	v = append(v,
		ct.NumBHK.encode(r.NumBHK),
		ct.HouseSize.encode(r.HouseSize),
		ct.Bathroom.encode(r.Bathroom),
		ct.BathroomNum.encode(r.BathroomNum),
		ct.Furnishing.encode(r.Furnishing),
		ct.FloorNum.encode(r.FloorNum),
		ct.FloorHeight.encode(r.FloorHeight),
		ct.NumFloors.encode(r.NumFloors),
		ct.BuildingHeight.encode(r.BuildingHeight),
		ct.Location.encode(r.Location),
		ct.Balcony.encode(r.Balcony),
	)
	v = ct.Ownership.encode(r.Ownership, v)
	v = ct.OwnershipMissing.encode(boolKey(r.OwnershipMissing), v)
	v = ct.Facing.encode(r.Facing, v)
	v = append(v, ct.FacingTarget.encode(r.Facing))
	v = ct.FacingMissing.encode(boolKey(r.FacingMissing), v)
	v = ct.OverlookingGarden.encode(numKey(r.OverlookingGarden), v)
	v = ct.OverlookingMain.encode(numKey(r.OverlookingMainroad), v)
	v = ct.OverlookingPool.encode(numKey(r.OverlookingPool), v)
	v = ct.ParkingCover.encode(r.ParkingCover, v)
	v = ct.HasParking.encode(r.HasParking, v)
	v = append(v,
		ct.EffectiveArea.encode(r.EffectiveArea),
		ct.AreaPerRoom.encode(r.AreaPerRoom),
		r.IsUnfurnished,
		r.CityTier,
		r.DirectionTier,
		r.CarpetAreaMissing,
		r.SuperAreaMissing,
		boolNum(r.BalconyMissing),
		r.BalconyPerRoom,
		r.BathroomPerRoom,
		r.ParkingSpots,
		r.CarpetArea,
		r.SuperArea,
	)
	if len(v) != len(ct.Columns) {
		return nil, apperrors.Newf(apperrors.ErrSchemaMismatch, http.StatusInternalServerError,
			"encoded %d values for %d fitted columns", len(v), len(ct.Columns))
	}
	return v, nil
}

func (ct *ColumnTransformer) columnNames() []string {
	var cols []string
	cols = append(cols, ct.Transaction.names()...)
	cols = append(cols, "num_bhk", "house_size", "bathroom", "bathroom_num", "furnishing",
		"floor_num", "floor_height", "num_floors", "building_height", "location", "balcony")
	cols = append(cols, ct.Ownership.names()...)
	cols = append(cols, ct.OwnershipMissing.names()...)
	cols = append(cols, ct.Facing.names()...)
	cols = append(cols, "facing_target")
	cols = append(cols, ct.FacingMissing.names()...)
	cols = append(cols, ct.OverlookingGarden.names()...)
	cols = append(cols, ct.OverlookingMain.names()...)
	cols = append(cols, ct.OverlookingPool.names()...)
	cols = append(cols, ct.ParkingCover.names()...)
	cols = append(cols, ct.HasParking.names()...)
	cols = append(cols, "effective_area", "area_per_room")
	cols = append(cols, passthrough...)
	return cols
}

func (ct *ColumnTransformer) indexOf(col string) int {
	for i, c := range ct.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func numKey(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
