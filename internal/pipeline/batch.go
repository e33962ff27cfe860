package pipeline

import (
	"log/slog"
	"math"
	"time"

	"github.com/dontloseyourheadsu/WeatherService/internal/domain"
)

// BatchBuilder converts flattened point records into idempotent store writes.
type BatchBuilder struct {
	logger *slog.Logger
}

// NewBatchBuilder creates a BatchBuilder that logs dropped records.
func NewBatchBuilder(logger *slog.Logger) *BatchBuilder {
	return &BatchBuilder{logger: logger}
}

// Build maps each record to an upsert keyed by (timestamp, latitude,
// longitude). Records with a non-finite coordinate or a zero timestamp cannot
// form a valid key and are dropped with a warning. Returns the ops and the
// number of dropped records.
//
// Timestamps are truncated to millisecond precision in UTC before keying, so
// the filter of a replayed op compares equal to the stored BSON datetime.
func (b *BatchBuilder) Build(records []domain.PointRecord) ([]domain.UpsertOp, int) {
	ops := make([]domain.UpsertOp, 0, len(records))
	dropped := 0

	for _, r := range records {
		if !validKey(r) {
			b.logger.Warn("dropping record with invalid key",
				"timestamp", r.Timestamp,
				"latitude", r.Latitude,
				"longitude", r.Longitude,
			)
			dropped++
			continue
		}

		ops = append(ops, domain.UpsertOp{
			Timestamp:     r.Timestamp.UTC().Truncate(time.Millisecond),
			Latitude:      r.Latitude,
			Longitude:     r.Longitude,
			Temperature:   optionalFloat(r.TemperatureC),
			WindSpeed:     optionalFloat(r.WindSpeedMS),
			WindDirection: optionalDegrees(r.WindDirection),
		})
	}

	return ops, dropped
}

// validKey reports whether the record can form a unique-index key.
func validKey(r domain.PointRecord) bool {
	if r.Timestamp.IsZero() {
		return false
	}
	if math.IsNaN(r.Latitude) || math.IsInf(r.Latitude, 0) {
		return false
	}
	if math.IsNaN(r.Longitude) || math.IsInf(r.Longitude, 0) {
		return false
	}
	return true
}

// optionalFloat maps NaN to nil so undefined quantities become explicit nulls.
func optionalFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// optionalDegrees rounds a direction to the nearest whole degree, wrapping
// 360 back to 0 so the stored value stays in [0, 360).
func optionalDegrees(v float64) *int {
	if math.IsNaN(v) {
		return nil
	}
	deg := int(math.Round(v)) % 360
	return &deg
}
