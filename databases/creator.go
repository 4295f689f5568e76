package databases

// go generate: mockery --name CreatorDatabase

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/creator-discovery-api/models"
)

const creatorCollectionName = "creators"

// CreatorDatabase contains the methods to use with the creator database. Documents
// come back undecoded so callers can normalize each one on its own.
type CreatorDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (bson.Raw, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]bson.Raw, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	Distinct(ctx context.Context, field string, filter interface{}) ([]string, error)
	SummarizeMetrics(ctx context.Context, filter interface{}) (models.MetricTotals, error)
}

type creatorDatabase struct {
	db DatabaseHelper
}

// NewCreatorDatabase initializes a new instance of creator database with the provided db connection
func NewCreatorDatabase(db DatabaseHelper) CreatorDatabase {
	return &creatorDatabase{
		db: db,
	}
}

func (c *creatorDatabase) FindOne(ctx context.Context, filter interface{}) (bson.Raw, error) {
	var doc bson.Raw
	err := c.db.Collection(creatorCollectionName).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *creatorDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]bson.Raw, error) {
	cursor, err := c.db.Collection(creatorCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.Raw
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *creatorDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(creatorCollectionName).CountDocuments(ctx, filter)
}

// Distinct returns the non-empty string values of field, in store order
func (c *creatorDatabase) Distinct(ctx context.Context, field string, filter interface{}) ([]string, error) {
	values, err := c.db.Collection(creatorCollectionName).Distinct(ctx, field, filter)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// SummarizeMetrics counts the documents matching filter and sums their follower,
// view and engagement metrics in a single aggregation. Metrics are read the way
// models.MetricValue decodes them; anything non-numeric counts as zero.
func (c *creatorDatabase) SummarizeMetrics(ctx context.Context, filter interface{}) (models.MetricTotals, error) {
	if filter == nil {
		filter = bson.M{}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: bson.M{"$sum": 1}},
			{Key: "followers", Value: bson.M{"$sum": models.MetricValueExpr("followers_count")}},
			{Key: "views", Value: bson.M{"$sum": models.MetricValueExpr("average_views")}},
			{Key: "engagement", Value: bson.M{"$sum": models.MetricValueExpr("engagement_rate")}},
		}}},
	}

	cursor, err := c.db.Collection(creatorCollectionName).Aggregate(ctx, pipeline)
	if err != nil {
		return models.MetricTotals{}, fmt.Errorf("failed to aggregate creator metrics: %w", err)
	}
	defer cursor.Close(ctx)

	var totals []models.MetricTotals
	if err = cursor.All(ctx, &totals); err != nil {
		return models.MetricTotals{}, fmt.Errorf("failed to decode creator metrics: %w", err)
	}
	if len(totals) == 0 {
		// $group emits nothing when $match matched nothing
		return models.MetricTotals{}, nil
	}
	return totals[0], nil
}
