package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/creator-discovery-api/config"
	"github.com/linesmerrill/creator-discovery-api/databases"
	"github.com/linesmerrill/creator-discovery-api/databases/mocks"
	"github.com/linesmerrill/creator-discovery-api/models"
)

func mustRaw(t *testing.T, doc bson.M) bson.Raw {
	t.Helper()
	b, err := bson.Marshal(doc)
	require.NoError(t, err)
	return bson.Raw(b)
}

func TestNewCreatorDatabase(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	defer os.Unsetenv("DB_URI")
	defer os.Unsetenv("DB_NAME")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	creatorDB := databases.NewCreatorDatabase(db)

	assert.NotEmpty(t, creatorDB)
}

func TestCreatorDatabase_FindOne(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srHelperErr := &mocks.SingleResultHelper{}
	srHelperCorrect := &mocks.SingleResultHelper{}

	want := mustRaw(t, bson.M{"username": "mocked-creator"})

	srHelperErr.On("Decode", mock.Anything).Return(errors.New("mocked-error"))
	srHelperCorrect.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*bson.Raw)
		*arg = want
	})

	collectionHelper.On("FindOne", context.Background(), bson.M{"error": true}).Return(srHelperErr)
	collectionHelper.On("FindOne", context.Background(), bson.M{"error": false}).Return(srHelperCorrect)
	dbHelper.On("Collection", "creators").Return(collectionHelper)

	creatorDba := databases.NewCreatorDatabase(dbHelper)

	doc, err := creatorDba.FindOne(context.Background(), bson.M{"error": true})
	assert.Nil(t, doc)
	assert.EqualError(t, err, "mocked-error")

	doc, err = creatorDba.FindOne(context.Background(), bson.M{"error": false})
	assert.NoError(t, err)
	assert.Equal(t, "mocked-creator", doc.Lookup("username").StringValue())
}

func TestCreatorDatabase_Find(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	docs := []bson.Raw{
		mustRaw(t, bson.M{"username": "a"}),
		mustRaw(t, bson.M{"username": "b"}),
	}

	cursorHelper.On("All", context.Background(), mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]bson.Raw)
		*arg = docs
	})
	cursorHelper.On("Close", context.Background()).Return(nil)

	collectionHelper.On("Find", context.Background(), bson.M{"error": true}).Return(nil, errors.New("mocked-error"))
	collectionHelper.On("Find", context.Background(), bson.M{}).Return(cursorHelper, nil)
	dbHelper.On("Collection", "creators").Return(collectionHelper)

	creatorDba := databases.NewCreatorDatabase(dbHelper)

	got, err := creatorDba.Find(context.Background(), bson.M{"error": true})
	assert.Nil(t, got)
	assert.EqualError(t, err, "mocked-error")

	got, err = creatorDba.Find(context.Background(), bson.M{})
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	cursorHelper.AssertCalled(t, "Close", context.Background())
}

func TestCreatorDatabase_CountDocuments(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("CountDocuments", context.Background(), bson.M{"platform": "tiktok"}).Return(int64(7), nil)
	dbHelper.On("Collection", "creators").Return(collectionHelper)

	count, err := databases.NewCreatorDatabase(dbHelper).CountDocuments(context.Background(), bson.M{"platform": "tiktok"})
	assert.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestCreatorDatabase_Distinct(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("Distinct", context.Background(), "primary_niche", bson.M{}).
		Return([]interface{}{"Beauty", "", int32(4), "Gaming", nil}, nil)
	dbHelper.On("Collection", "creators").Return(collectionHelper)

	niches, err := databases.NewCreatorDatabase(dbHelper).Distinct(context.Background(), "primary_niche", bson.M{})
	assert.NoError(t, err)
	assert.Equal(t, []string{"Beauty", "Gaming"}, niches)
}

func TestCreatorDatabase_DistinctError(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("Distinct", context.Background(), "primary_niche", bson.M{}).
		Return(nil, errors.New("mocked-error"))
	dbHelper.On("Collection", "creators").Return(collectionHelper)

	niches, err := databases.NewCreatorDatabase(dbHelper).Distinct(context.Background(), "primary_niche", bson.M{})
	assert.Nil(t, niches)
	assert.EqualError(t, err, "mocked-error")
}

func TestCreatorDatabase_SummarizeMetrics(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	filter := bson.M{"platform": bson.M{"$in": []string{"instagram"}}}
	var captured mongo.Pipeline

	cursorHelper.On("All", context.Background(), mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.MetricTotals)
		*arg = []models.MetricTotals{{Count: 2, Followers: 3000, Views: 500, Engagement: 7.5}}
	})
	cursorHelper.On("Close", context.Background()).Return(nil)
	collectionHelper.On("Aggregate", context.Background(), mock.Anything).Return(cursorHelper, nil).Run(func(args mock.Arguments) {
		captured = args.Get(1).(mongo.Pipeline)
	})
	dbHelper.On("Collection", "creators").Return(collectionHelper)

	totals, err := databases.NewCreatorDatabase(dbHelper).SummarizeMetrics(context.Background(), filter)
	assert.NoError(t, err)
	assert.Equal(t, models.MetricTotals{Count: 2, Followers: 3000, Views: 500, Engagement: 7.5}, totals)

	require.Len(t, captured, 2)
	assert.Equal(t, "$match", captured[0][0].Key)
	assert.Equal(t, filter, captured[0][0].Value)
	assert.Equal(t, "$group", captured[1][0].Key)
	group := captured[1][0].Value.(bson.D).Map()
	assert.Equal(t, bson.M{"$sum": models.MetricValueExpr("followers_count")}, group["followers"])
	assert.Equal(t, bson.M{"$sum": models.MetricValueExpr("average_views")}, group["views"])
	assert.Equal(t, bson.M{"$sum": models.MetricValueExpr("engagement_rate")}, group["engagement"])
}

func TestCreatorDatabase_SummarizeMetricsNoMatches(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("All", context.Background(), mock.Anything).Return(nil)
	cursorHelper.On("Close", context.Background()).Return(nil)
	collectionHelper.On("Aggregate", context.Background(), mock.Anything).Return(cursorHelper, nil)
	dbHelper.On("Collection", "creators").Return(collectionHelper)

	totals, err := databases.NewCreatorDatabase(dbHelper).SummarizeMetrics(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, models.MetricTotals{}, totals)
}

func TestCreatorDatabase_SummarizeMetricsError(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("Aggregate", context.Background(), mock.Anything).Return(nil, errors.New("mocked-error"))
	dbHelper.On("Collection", "creators").Return(collectionHelper)

	_, err := databases.NewCreatorDatabase(dbHelper).SummarizeMetrics(context.Background(), bson.M{})
	assert.EqualError(t, err, "failed to aggregate creator metrics: mocked-error")
}
