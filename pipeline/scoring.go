package pipeline

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/linesmerrill/creator-discovery-api/models"
)

const (
	minMatchScore = 60
	maxMatchScore = 100
)

// ScoringStrategy assigns match scores to an AI recommendation batch
type ScoringStrategy interface {
	Score(creators []models.Creator)
}

// RandomScoring is a placeholder strategy: it assigns each creator a pseudo-random
// score in [60, 100]. It says nothing about how well a creator matches.
type RandomScoring struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomScoring seeds the strategy with rng, or with the clock when rng is nil
func NewRandomScoring(rng *rand.Rand) *RandomScoring {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomScoring{rng: rng}
}

// Score implements ScoringStrategy
func (s *RandomScoring) Score(creators []models.Creator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range creators {
		score := minMatchScore + s.rng.Intn(maxMatchScore-minMatchScore+1)
		creators[i].MatchScore = &score
	}
}

// sortByMatchScore orders creators by match score in place. Unscored creators sort last.
func sortByMatchScore(creators []models.Creator, dir models.SortDirection) {
	sort.SliceStable(creators, func(i, j int) bool {
		a, b := creators[i].MatchScore, creators[j].MatchScore
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		if dir == models.SortAsc {
			return *a < *b
		}
		return *a > *b
	})
}
