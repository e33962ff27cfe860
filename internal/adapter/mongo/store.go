// Package mongo persists weather point records with idempotent bulk upserts.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	mongodb "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dontloseyourheadsu/WeatherService/internal/config"
	"github.com/dontloseyourheadsu/WeatherService/internal/domain"
)

// uniqueIndexName identifies the integrity index over the coordinate triple.
const uniqueIndexName = "timestamp_lat_lon_unique"

// Store executes batches of upsert operations against one collection.
// It implements pipeline.StoreWriter.
type Store struct {
	client *mongodb.Client
	coll   *mongodb.Collection
	logger *slog.Logger
}

// Connect establishes the store connection, verifies it with a ping under the
// configured connect timeout, and selects the target collection.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.MongoConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerSelectionTimeout(cfg.MongoConnectTimeout)

	client, err := mongodb.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &Store{
		client: client,
		coll:   client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection),
		logger: logger,
	}, nil
}

// EnsureIndexes asserts the unique compound index over
// (timestamp, latitude, longitude). Creation is idempotent: the server
// ignores the request when an identical index already exists.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongodb.IndexModel{
		Keys: bson.D{
			{Key: "timestamp", Value: 1},
			{Key: "latitude", Value: 1},
			{Key: "longitude", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName(uniqueIndexName),
	})
	if err != nil {
		return fmt.Errorf("ensure index %s: %w", uniqueIndexName, err)
	}
	s.logger.Info("unique index ensured", "collection", s.coll.Name(), "index", uniqueIndexName)
	return nil
}

// Write executes the batch as an unordered bulk operation. Unordered is
// deliberate: a failure on one operation must not block the rest of the
// batch, and operations within one slice carry no ordering semantics.
// Per-operation failures are logged with their index, code, and message and
// do not surface as an error; only total failure of the call does.
func (s *Store) Write(ctx context.Context, ops []domain.UpsertOp) (domain.WriteResult, error) {
	if len(ops) == 0 {
		return domain.WriteResult{}, nil
	}

	models := buildWriteModels(ops)
	res, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		var bwe mongodb.BulkWriteException
		if !errors.As(err, &bwe) {
			return domain.WriteResult{}, fmt.Errorf("bulk write: %w", err)
		}
		for _, we := range bwe.WriteErrors {
			s.logger.Warn("bulk write operation failed",
				"index", we.Index,
				"code", we.Code,
				"message", we.Message,
			)
		}
	}
	if res == nil {
		return domain.WriteResult{}, nil
	}
	return domain.WriteResult{
		Upserted: res.UpsertedCount,
		Matched:  res.MatchedCount,
		Modified: res.ModifiedCount,
	}, nil
}

// Close releases the store connection. Safe to call after a failed startup.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// buildWriteModels converts upsert operations into driver write models. The
// filter fields exactly match the unique index, so replaying a batch matches
// existing documents instead of inserting duplicates.
func buildWriteModels(ops []domain.UpsertOp) []mongodb.WriteModel {
	models := make([]mongodb.WriteModel, len(ops))
	for i, op := range ops {
		filter := bson.D{
			{Key: "timestamp", Value: op.Timestamp},
			{Key: "latitude", Value: op.Latitude},
			{Key: "longitude", Value: op.Longitude},
		}
		models[i] = mongodb.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.M{"$set": documentFromOp(op)}).
			SetUpsert(true)
	}
	return models
}

// documentFromOp builds the full update-set document. Undefined quantities
// are stored as explicit nulls, never omitted, so every document carries its
// unit tags.
func documentFromOp(op domain.UpsertOp) bson.D {
	return bson.D{
		{Key: "timestamp", Value: op.Timestamp},
		{Key: "latitude", Value: op.Latitude},
		{Key: "longitude", Value: op.Longitude},
		{Key: "temperature", Value: nullableFloat(op.Temperature)},
		{Key: "temperatureUnit", Value: domain.TemperatureUnit},
		{Key: "windSpeed", Value: nullableFloat(op.WindSpeed)},
		{Key: "windSpeedUnit", Value: domain.WindSpeedUnit},
		{Key: "windDirection", Value: nullableInt(op.WindDirection)},
		{Key: "windDirectionUnit", Value: domain.WindDirectionUnit},
	}
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
