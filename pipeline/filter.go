package pipeline

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/linesmerrill/creator-discovery-api/models"
)

// Store column names
const (
	fieldPrimaryNiche   = "primary_niche"
	fieldSecondaryNiche = "secondary_niche"
	fieldPlatform       = "platform"
	fieldLocation       = "location"
	fieldLocationRegion = "location_region"
	fieldBuzzScore      = "buzz_score"
	fieldFollowers      = "followers_count"
	fieldAvgViews       = "average_views"
	fieldEngagement     = "engagement_rate"
	fieldID             = "_id"
)

// buzzBucket is a half-open buzz score range. Nil bounds are open.
type buzzBucket struct {
	min *float64
	max *float64
}

func bound(f float64) *float64 { return &f }

var buzzBuckets = map[string]buzzBucket{
	"90%+":          {min: bound(90)},
	"80-90%":        {min: bound(80), max: bound(90)},
	"70-80%":        {min: bound(70), max: bound(80)},
	"60-70%":        {min: bound(60), max: bound(70)},
	"less than 60%": {max: bound(60)},
}

var sortColumns = map[models.SortField]string{
	models.SortFollowers:  fieldFollowers,
	models.SortAvgViews:   fieldAvgViews,
	models.SortEngagement: fieldEngagement,
}

// BuildFilter translates criteria into a store filter. Every non-empty field adds
// one conjunct; an empty criteria matches everything.
func BuildFilter(c models.FilterCriteria) bson.M {
	var clauses []bson.M

	if niches := cleanList(c.Niches); len(niches) > 0 {
		clauses = append(clauses, bson.M{"$or": []bson.M{
			{fieldPrimaryNiche: bson.M{"$in": niches}},
			{fieldSecondaryNiche: bson.M{"$in": niches}},
		}})
	}
	if platforms := cleanList(c.Platforms); len(platforms) > 0 {
		clauses = append(clauses, bson.M{fieldPlatform: bson.M{"$in": platforms}})
	}
	if locations := cleanList(c.Locations); len(locations) > 0 {
		clauses = append(clauses, bson.M{"$or": []bson.M{
			{fieldLocationRegion: bson.M{"$in": locations}},
			{fieldLocation: bson.M{"$in": locations}},
		}})
	}
	for _, r := range []struct {
		field string
		rng   *models.Range
	}{
		{fieldFollowers, c.Followers},
		{fieldEngagement, c.Engagement},
		{fieldAvgViews, c.AvgViews},
	} {
		if clause := rangeClause(r.field, r.rng); clause != nil {
			clauses = append(clauses, clause)
		}
	}
	if clause := buzzClause(c.BuzzScoreBuckets); clause != nil {
		clauses = append(clauses, clause)
	}

	if len(clauses) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": clauses}
}

// rangeClause compares the metric value read by models.MetricValueExpr, so every
// shape the normalizer accepts is filtered on the same number it displays
func rangeClause(field string, r *models.Range) bson.M {
	if r.IsZero() {
		return nil
	}
	conds := bson.A{bson.M{"$ne": bson.A{"$$v", nil}}}
	if r.Min != nil {
		conds = append(conds, bson.M{"$gte": bson.A{"$$v", *r.Min}})
	}
	if r.Max != nil {
		conds = append(conds, bson.M{"$lte": bson.A{"$$v", *r.Max}})
	}
	return bson.M{"$expr": bson.M{"$let": bson.M{
		"vars": bson.M{"v": models.MetricValueExpr(field)},
		"in":   bson.M{"$and": conds},
	}}}
}

func buzzClause(labels []string) bson.M {
	var ors []bson.M
	for _, label := range labels {
		b, ok := buzzBuckets[normalizeBucketLabel(label)]
		if !ok {
			zap.S().Warnw("ignoring unknown buzz score bucket", "bucket", label)
			continue
		}
		cond := bson.M{}
		if b.min != nil {
			cond["$gte"] = *b.min
		}
		if b.max != nil {
			cond["$lt"] = *b.max
		}
		ors = append(ors, bson.M{fieldBuzzScore: cond})
	}
	if len(ors) == 0 {
		return nil
	}
	return bson.M{"$or": ors}
}

func normalizeBucketLabel(label string) string {
	label = strings.NewReplacer("–", "-", "—", "-", " ", "").Replace(label)
	label = strings.ToLower(label)
	if label == "lessthan60%" {
		return "less than 60%"
	}
	return label
}

// BuildSort maps the sort state onto store columns. The match score has no store
// column, so it and the empty field fall back to followers descending. _id breaks
// ties so pages never overlap.
func BuildSort(s models.SortState) bson.D {
	column, ok := sortColumns[s.Field]
	direction := -1
	if !ok {
		column = fieldFollowers
	} else if s.Direction == models.SortAsc {
		direction = 1
	}
	return bson.D{{Key: column, Value: direction}, {Key: fieldID, Value: 1}}
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
