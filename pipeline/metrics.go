package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/linesmerrill/creator-discovery-api/databases"
	"github.com/linesmerrill/creator-discovery-api/models"
)

// TotalPages is the number of pages needed for count creators. It is never below 1.
func TotalPages(count int64) int {
	if count <= 0 {
		return 1
	}
	return int((count + models.PageSize - 1) / models.PageSize)
}

// FetchCreatorMetrics computes the aggregate metrics of every creator matching
// criteria. Counting and summing run inside the store; only the means are
// computed here.
func FetchCreatorMetrics(ctx context.Context, db databases.CreatorDatabase, criteria models.FilterCriteria) (models.CreatorMetrics, error) {
	totals, err := db.SummarizeMetrics(ctx, BuildFilter(criteria))
	if err != nil {
		return models.CreatorMetrics{}, fmt.Errorf("failed to fetch creator metrics: %w", err)
	}
	return MetricsFromTotals(totals), nil
}

// MetricsFromTotals turns store sums into means. Engagement keeps two decimals;
// followers and views are whole numbers.
func MetricsFromTotals(t models.MetricTotals) models.CreatorMetrics {
	if t.Count <= 0 {
		return models.CreatorMetrics{}
	}
	n := float64(t.Count)
	return models.CreatorMetrics{
		TotalCount:    t.Count,
		AvgFollowers:  int64(math.Round(t.Followers / n)),
		AvgViews:      int64(math.Round(t.Views / n)),
		AvgEngagement: math.Round(t.Engagement/n*100) / 100,
	}
}
