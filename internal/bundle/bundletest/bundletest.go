// Package bundletest builds small, fully fitted bundles for tests.
package bundletest

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/bundle"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/impute"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/train"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/transform"
)

var (
	locations = []string{"mumbai", "pune", "thane", "gurgaon", "new-delhi", "kolkata"}
	facings   = []string{"East", "North - East", "West", "North"}
)

// Records returns n cleaned records whose price grows with area and is
// higher in tier-one cities. Every fifth record misses some optional fields.
func Records(n int) []listing.Record {
	out := make([]listing.Record, n)
	for i := range out {
		loc := locations[i%len(locations)]
		bhk := float64(1 + i%4)
		area := 400 + float64((i*53)%1600)
		price := area / 1000
		if loc == "mumbai" || loc == "gurgaon" || loc == "new-delhi" {
			price *= 2
		}
		r := listing.Record{
			ID:                  int64(i + 1),
			Location:            loc,
			Amount:              listing.Float(price),
			CarpetArea:          listing.Float(area),
			Transaction:         listing.String([]string{"Resale", "Resale", "New Property"}[i%3]),
			Furnishing:          listing.String(listing.Furnishings[i%3]),
			Facing:              listing.String(facings[i%len(facings)]),
			Ownership:           listing.String([]string{"Freehold", "Leasehold"}[i%2]),
			ParkingCover:        listing.String([]string{"Open", "Covered"}[i%2]),
			Bathroom:            listing.Float(1 + float64(i%3)),
			Balcony:             listing.Float(float64(i % 3)),
			FloorNum:            listing.Float(float64(i % 9)),
			NumFloors:           listing.Float(float64(10 + i%6)),
			NumBHK:              listing.Float(bhk),
			OverlookingGarden:   listing.Float(float64(i % 2)),
			OverlookingMainroad: listing.Float(float64((i + 1) % 2)),
			OverlookingPool:     listing.Float(0),
			ParkingSpots:        listing.Float(float64(i % 3)),
		}
		if i%5 == 0 {
			r.Furnishing, r.Facing, r.Ownership, r.Balcony = nil, nil, nil, nil
			r.CarpetArea, r.SuperArea = nil, listing.Float(area*1.2)
		}
		out[i] = r
	}
	return out
}

// Build fits imputation, transformation and a decision tree on records.
func Build(records []listing.Record, seed int64) (*bundle.Bundle, error) {
	stats, err := impute.Fit(records)
	if err != nil {
		return nil, err
	}
	imps, err := stats.TransformAll(records)
	if err != nil {
		return nil, err
	}
	y, err := listing.Targets(records)
	if err != nil {
		return nil, err
	}
	ct := transform.New()
	m, err := ct.FitTransform(features.BuildAll(imps), y, seed)
	if err != nil {
		return nil, err
	}
	model, err := train.NewModel(train.KindDecisionTree, train.TransformLog, train.Params{"max_depth": 6}, seed)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(m, y, nil); err != nil {
		return nil, err
	}
	b, err := bundle.New(fmt.Sprintf("test-run-%d", seed), stats, ct, model, nil)
	if err != nil {
		return nil, err
	}
	return b, nil
}
