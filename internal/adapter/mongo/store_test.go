package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	mongodb "go.mongodb.org/mongo-driver/mongo"

	"github.com/dontloseyourheadsu/WeatherService/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestBuildWriteModels_FilterMatchesUniqueIndex(t *testing.T) {
	ts := time.Date(2022, time.March, 5, 14, 0, 0, 0, time.UTC)
	ops := []domain.UpsertOp{{
		Timestamp:     ts,
		Latitude:      19.4,
		Longitude:     -99.1,
		Temperature:   floatPtr(21.3),
		WindSpeed:     floatPtr(4.2),
		WindDirection: intPtr(215),
	}}

	models := buildWriteModels(ops)
	require.Len(t, models, 1)

	model, ok := models[0].(*mongodb.UpdateOneModel)
	require.True(t, ok)
	require.NotNil(t, model.Upsert)
	assert.True(t, *model.Upsert)

	filter, ok := model.Filter.(bson.D)
	require.True(t, ok)
	assert.Equal(t, bson.D{
		{Key: "timestamp", Value: ts},
		{Key: "latitude", Value: 19.4},
		{Key: "longitude", Value: -99.1},
	}, filter)
}

func TestDocumentFromOp_FullFieldSet(t *testing.T) {
	ts := time.Date(2022, time.March, 5, 14, 0, 0, 0, time.UTC)
	doc := documentFromOp(domain.UpsertOp{
		Timestamp:     ts,
		Latitude:      19.4,
		Longitude:     -99.1,
		Temperature:   floatPtr(21.3),
		WindSpeed:     floatPtr(4.2),
		WindDirection: intPtr(215),
	})

	assert.Equal(t, bson.D{
		{Key: "timestamp", Value: ts},
		{Key: "latitude", Value: 19.4},
		{Key: "longitude", Value: -99.1},
		{Key: "temperature", Value: 21.3},
		{Key: "temperatureUnit", Value: "C"},
		{Key: "windSpeed", Value: 4.2},
		{Key: "windSpeedUnit", Value: "m/s"},
		{Key: "windDirection", Value: 215},
		{Key: "windDirectionUnit", Value: "degrees"},
	}, doc)
}

func TestDocumentFromOp_NullsPreservedWithUnitTags(t *testing.T) {
	doc := documentFromOp(domain.UpsertOp{
		Timestamp:   time.Date(2022, time.March, 5, 14, 0, 0, 0, time.UTC),
		Latitude:    19.4,
		Longitude:   -99.1,
		Temperature: floatPtr(21.3),
		// Wind quantities undefined.
	})

	byKey := map[string]any{}
	for _, e := range doc {
		byKey[e.Key] = e.Value
	}
	assert.Equal(t, 21.3, byKey["temperature"])
	assert.Nil(t, byKey["windSpeed"])
	assert.Nil(t, byKey["windDirection"])
	// Unit tags survive even when the quantity is null.
	assert.Equal(t, "m/s", byKey["windSpeedUnit"])
	assert.Equal(t, "degrees", byKey["windDirectionUnit"])
}
