// Package impute learns fill values from the training partition and applies
// them to any record, at training or serving time. Fitted statistics are plain
// data so they can be persisted and loaded read-only by the prediction API.
package impute

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
)

// Constant fills.
const (
	FacingFill       = "Missing"
	OverlookingFill  = -1.0
	ParkingCoverFill = "No parking"
	ParkingSpotsFill = 0.0
	AreaFill         = listing.AreaMissing
)

// Statistics are the fill values learned from training data. Group maps are
// keyed by the formatted group value; the *Default fields are the global
// statistic used when a group was never seen during fit.
type Statistics struct {
	FurnishingByTransaction map[string]string  `json:"furnishing_by_transaction"`
	FurnishingDefault       string             `json:"furnishing_default"`
	FloorNumMedian          float64            `json:"floor_num_median"`
	NumFloorsByFloorNum     map[string]float64 `json:"num_floors_by_floor_num"`
	NumFloorsDefault        float64            `json:"num_floors_default"`
	BalconyByBHK            map[string]float64 `json:"balcony_by_num_bhk"`
	BalconyDefault          float64            `json:"balcony_default"`
	OwnershipMode           string             `json:"ownership_mode"`
	FittedRows              int                `json:"fitted_rows"`
}

// Fit learns statistics from the training partition. It fails only when a
// global statistic has no observed value at all.
func Fit(train []listing.Record) (*Statistics, error) {
	if len(train) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "cannot fit imputer on empty training set")
	}
	var (
		furnishingGroups = make(map[string][]string)
		furnishingAll    []string
		floorNums        []float64
		numFloorsAll     []float64
		balconyAll       []float64
		ownershipAll     []string
	)
	for _, r := range train {
		if r.Furnishing != nil {
			furnishingAll = append(furnishingAll, *r.Furnishing)
			if r.Transaction != nil {
				furnishingGroups[*r.Transaction] = append(furnishingGroups[*r.Transaction], *r.Furnishing)
			}
		}
		if r.FloorNum != nil {
			floorNums = append(floorNums, *r.FloorNum)
		}
		if r.NumFloors != nil {
			numFloorsAll = append(numFloorsAll, *r.NumFloors)
		}
		if r.Balcony != nil {
			balconyAll = append(balconyAll, *r.Balcony)
		}
		if r.Ownership != nil {
			ownershipAll = append(ownershipAll, *r.Ownership)
		}
	}
	if len(furnishingAll) == 0 || len(floorNums) == 0 || len(numFloorsAll) == 0 || len(balconyAll) == 0 || len(ownershipAll) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusUnprocessableEntity,
			"training set has a feature with no observed values")
	}

	stats := &Statistics{
		FurnishingByTransaction: make(map[string]string, len(furnishingGroups)),
		FurnishingDefault:       mode(furnishingAll),
		FloorNumMedian:          median(floorNums),
		NumFloorsDefault:        median(numFloorsAll),
		BalconyDefault:          median(balconyAll),
		OwnershipMode:           mode(ownershipAll),
		FittedRows:              len(train),
	}
	for k, vals := range furnishingGroups {
		stats.FurnishingByTransaction[k] = mode(vals)
	}

	// num_floors is grouped on floor_num after floor_num itself is imputed.
	numFloorsGroups := make(map[string][]float64)
	balconyGroups := make(map[string][]float64)
	for _, r := range train {
		floor := stats.FloorNumMedian
		if r.FloorNum != nil {
			floor = *r.FloorNum
		}
		if r.NumFloors != nil {
			numFloorsGroups[GroupKey(floor)] = append(numFloorsGroups[GroupKey(floor)], *r.NumFloors)
		}
		if r.Balcony != nil && r.NumBHK != nil {
			balconyGroups[GroupKey(*r.NumBHK)] = append(balconyGroups[GroupKey(*r.NumBHK)], *r.Balcony)
		}
	}
	stats.NumFloorsByFloorNum = groupMedians(numFloorsGroups)
	stats.BalconyByBHK = groupMedians(balconyGroups)
	return stats, nil
}

// Transform fills every missing value of r with the fitted statistics. The
// record's own values never influence the fills. Only fields the cleaner
// guarantees (transaction, num_bhk, bathroom) are required.
func (s *Statistics) Transform(r listing.Record) (listing.Imputed, error) {
	if r.Transaction == nil || r.NumBHK == nil || r.Bathroom == nil {
		return listing.Imputed{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"record %d lacks transaction, num_bhk or bathroom", r.ID)
	}
	out := listing.Imputed{
		Location:    r.Location,
		Transaction: *r.Transaction,
		NumBHK:      *r.NumBHK,
		Bathroom:    *r.Bathroom,
	}

	switch {
	case r.Furnishing != nil:
		out.Furnishing = *r.Furnishing
	default:
		if v, ok := s.FurnishingByTransaction[*r.Transaction]; ok {
			out.Furnishing = v
		} else {
			out.Furnishing = s.FurnishingDefault
		}
	}

	out.FloorNum = valueOr(r.FloorNum, s.FloorNumMedian)
	out.NumFloors = valueOr(r.NumFloors, lookup(s.NumFloorsByFloorNum, out.FloorNum, s.NumFloorsDefault))

	out.BalconyMissing = r.Balcony == nil
	out.Balcony = valueOr(r.Balcony, lookup(s.BalconyByBHK, out.NumBHK, s.BalconyDefault))
	if out.FloorNum == 0 {
		out.Balcony = 0
	}

	out.OwnershipMissing = r.Ownership == nil
	out.Ownership = stringOr(r.Ownership, s.OwnershipMode)

	out.FacingMissing = r.Facing == nil
	out.Facing = stringOr(r.Facing, FacingFill)

	out.OverlookingGarden = valueOr(r.OverlookingGarden, OverlookingFill)
	out.OverlookingMainroad = valueOr(r.OverlookingMainroad, OverlookingFill)
	out.OverlookingPool = valueOr(r.OverlookingPool, OverlookingFill)

	out.ParkingCover = stringOr(r.ParkingCover, ParkingCoverFill)
	out.ParkingSpots = valueOr(r.ParkingSpots, ParkingSpotsFill)

	out.CarpetArea = valueOr(r.CarpetArea, AreaFill)
	out.SuperArea = valueOr(r.SuperArea, AreaFill)
	return out, nil
}

// TransformAll imputes a batch, failing on the first unusable record.
func (s *Statistics) TransformAll(records []listing.Record) ([]listing.Imputed, error) {
	out := make([]listing.Imputed, len(records))
	for i, r := range records {
		imp, err := s.Transform(r)
		if err != nil {
			return nil, fmt.Errorf("imputing row %d: %w", i, err)
		}
		out[i] = imp
	}
	return out, nil
}

// GroupKey formats a numeric group value as a map key.
func GroupKey(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func lookup(m map[string]float64, key, fallback float64) float64 {
	if v, ok := m[GroupKey(key)]; ok {
		return v
	}
	return fallback
}

func valueOr(v *float64, fill float64) float64 {
	if v == nil {
		return fill
	}
	return *v
}

func stringOr(v *string, fill string) string {
	if v == nil {
		return fill
	}
	return *v
}

func groupMedians(groups map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(groups))
	for k, vals := range groups {
		out[k] = median(vals)
	}
	return out
}

// median averages the two middle values of an even-length sample.
func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// mode returns the most frequent value, breaking ties by lexical order.
func mode(vals []string) string {
	counts := make(map[string]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}
