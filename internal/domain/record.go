package domain

import (
	"math"
	"time"
)

// Unit tags stored alongside every document field, defined once so the store
// schema and the batch builder cannot drift apart.
const (
	TemperatureUnit   = "C"
	WindSpeedUnit     = "m/s"
	WindDirectionUnit = "degrees"
)

// Slice is one bounded time window of a grid file, fully materialized in
// memory. Cubes are indexed [step][lat][lon]; undefined cells are NaN.
type Slice struct {
	StartStep int // inclusive, relative to the file's time dimension
	EndStep   int // exclusive

	Times []time.Time
	Lats  []float64
	Lons  []float64

	// Raw variables as read from the file.
	TempK [][][]float64
	U10   [][][]float64
	V10   [][][]float64

	// Derived quantities, populated by Derive.
	TempC     [][][]float64
	Speed     [][][]float64
	Direction [][][]float64
}

// Steps returns the number of time steps materialized in the slice.
func (s *Slice) Steps() int { return len(s.Times) }

// PointRecord is one (timestamp, latitude, longitude) observation with its
// derived quantities. NaN marks an undefined quantity.
type PointRecord struct {
	Timestamp     time.Time
	Latitude      float64
	Longitude     float64
	TemperatureC  float64
	WindSpeedMS   float64
	WindDirection float64
}

// Empty reports whether all three derived quantities are undefined, i.e. the
// point carries no weather data at all (an ocean cell in a land-only grid).
func (r PointRecord) Empty() bool {
	return math.IsNaN(r.TemperatureC) && math.IsNaN(r.WindSpeedMS) && math.IsNaN(r.WindDirection)
}

// UpsertOp is one idempotent store write. The filter triple matches the
// store's unique index exactly, so replaying the same op is a no-op after the
// first success. Nil pointers are stored as explicit nulls.
type UpsertOp struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64

	Temperature   *float64
	WindSpeed     *float64
	WindDirection *int
}

// WriteResult reports the outcome of one bulk store write.
type WriteResult struct {
	Upserted int64
	Matched  int64
	Modified int64
}
