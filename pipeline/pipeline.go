package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/creator-discovery-api/databases"
	"github.com/linesmerrill/creator-discovery-api/logging"
	"github.com/linesmerrill/creator-discovery-api/models"
)

// Option configures a Pipeline
type Option func(*Pipeline)

// WithScoring replaces the match scoring strategy
func WithScoring(s ScoringStrategy) Option {
	return func(p *Pipeline) { p.scoring = s }
}

// WithNormalizer replaces the record normalizer
func WithNormalizer(n *Normalizer) Option {
	return func(p *Pipeline) { p.normalizer = n }
}

// WithPrefetcher warms thumbnails of every page the pipeline publishes
func WithPrefetcher(pf *Prefetcher) Option {
	return func(p *Pipeline) { p.prefetcher = pf }
}

// WithOnChange registers a callback receiving a snapshot after every state change.
// It runs without the pipeline lock held.
func WithOnChange(fn func(models.Snapshot)) Option {
	return func(p *Pipeline) { p.onChange = fn }
}

// WithOwner tags the pipeline's log lines with its owner
func WithOwner(owner string) Option {
	return func(p *Pipeline) { p.log = p.log.With("owner", owner) }
}

// Pipeline owns the filter, sort, page and mode state of one client and keeps the
// published page, niches and metrics consistent with it. Public operations never
// return errors: failures end up in the snapshot's Error field and leave previous
// results in place.
type Pipeline struct {
	db         databases.CreatorDatabase
	repo       StateRepository
	normalizer *Normalizer
	scoring    ScoringStrategy
	prefetcher *Prefetcher
	onChange   func(models.Snapshot)
	log        *zap.SugaredLogger
	loadOnce   sync.Once

	mu         sync.Mutex
	state      models.PipelineState
	creators   []models.Creator
	totalPages int
	totalCount int64
	niches     []string
	metrics    models.CreatorMetrics
	inflight   int
	pageErr    error
	metricsErr error
	// aiBatch is the cached recommendation batch; nil means none is cached
	aiBatch []models.Creator
	// pageGen and metricsGen are bumped on every dispatched query; a response
	// carrying an older generation is dropped
	pageGen    uint64
	metricsGen uint64
	// stateGen is bumped on every change to state
	stateGen uint64
	// stateUnknown is set while the persisted state could not be read; saving
	// then would overwrite it with defaults
	stateUnknown bool

	// saveMu orders saves; savedGen is the newest stateGen handed to the repository
	saveMu   sync.Mutex
	savedGen uint64
}

type pageResult struct {
	creators []models.Creator
	total    int64
	page     int
}

// New returns a pipeline in the default state. Call Load to restore persisted
// state and run the first queries.
func New(db databases.CreatorDatabase, repo StateRepository, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:         db,
		repo:       repo,
		normalizer: defaultNormalizer,
		log:        logging.New("pipeline"),
		state:      models.DefaultPipelineState(),
		creators:   []models.Creator{},
		niches:     []string{},
		totalPages: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.scoring == nil {
		p.scoring = NewRandomScoring(nil)
	}
	return p
}

// Load restores persisted state, fetches the niche list and runs the initial page
// and metrics queries. Only the first call does anything.
func (p *Pipeline) Load(ctx context.Context) models.Snapshot {
	p.loadOnce.Do(func() {
		state, err := p.repo.Load(ctx)
		if err != nil {
			p.log.Warnw("failed to read persisted pipeline state, not saving until it can be read", "error", err)
		}
		p.mu.Lock()
		p.state = state
		p.stateUnknown = err != nil
		p.mu.Unlock()

		p.loadNiches(ctx)
		p.requery(ctx, true)
	})
	return p.Snapshot()
}

// ApplyFilters replaces the filters and mode, resets to page 1 and re-queries the
// metrics and the first page together
func (p *Pipeline) ApplyFilters(ctx context.Context, criteria models.FilterCriteria, mode models.Mode) models.Snapshot {
	if _, err := models.ParseMode(string(mode)); err != nil {
		return p.reject(err)
	}

	p.mu.Lock()
	p.state.Filters = criteria
	p.state.Mode = mode
	p.state.Page = 1
	p.aiBatch = nil
	st, gen := p.changedLocked()
	p.mu.Unlock()

	p.persist(ctx, st, gen)
	p.requery(ctx, true)
	return p.Snapshot()
}

// SwitchMode moves to page 1 of mode. AI mode re-paginates a cached batch when
// there is one; browse mode always asks the store.
func (p *Pipeline) SwitchMode(ctx context.Context, mode models.Mode) models.Snapshot {
	if _, err := models.ParseMode(string(mode)); err != nil {
		return p.reject(err)
	}

	p.mu.Lock()
	p.state.Mode = mode
	p.state.Page = 1
	st, gen := p.changedLocked()
	p.mu.Unlock()

	p.persist(ctx, st, gen)
	p.requery(ctx, false)
	return p.Snapshot()
}

// HandleSort sorts by field. Repeating the current field flips the direction;
// a new field starts descending. Either way the view returns to page 1.
// Sorting the AI batch by match score happens in memory; everything else
// re-queries the store.
func (p *Pipeline) HandleSort(ctx context.Context, field models.SortField) models.Snapshot {
	if _, err := models.ParseSortField(string(field)); err != nil {
		return p.reject(err)
	}

	p.mu.Lock()
	if p.state.Sort.Field == field {
		if p.state.Sort.Direction == models.SortDesc {
			p.state.Sort.Direction = models.SortAsc
		} else {
			p.state.Sort.Direction = models.SortDesc
		}
	} else {
		p.state.Sort = models.SortState{Field: field, Direction: models.SortDesc}
	}
	p.state.Page = 1
	inMemory := field == models.SortMatchScore && p.state.Mode == models.ModeAI && p.aiBatch != nil
	if !inMemory {
		p.aiBatch = nil
	}
	st, gen := p.changedLocked()
	p.mu.Unlock()

	p.persist(ctx, st, gen)
	p.requery(ctx, false)
	return p.Snapshot()
}

// HandlePageChange moves to page, clamped into [1, totalPages]
func (p *Pipeline) HandlePageChange(ctx context.Context, page int) models.Snapshot {
	p.mu.Lock()
	p.state.Page = clampPage(page, p.totalPages)
	st, gen := p.changedLocked()
	p.mu.Unlock()

	p.persist(ctx, st, gen)
	p.requery(ctx, false)
	return p.Snapshot()
}

// NextPage moves one page forward, staying on the last page
func (p *Pipeline) NextPage(ctx context.Context) models.Snapshot {
	p.mu.Lock()
	page := p.state.Page + 1
	p.mu.Unlock()
	return p.HandlePageChange(ctx, page)
}

// PreviousPage moves one page back, staying on the first page
func (p *Pipeline) PreviousPage(ctx context.Context) models.Snapshot {
	p.mu.Lock()
	page := p.state.Page - 1
	p.mu.Unlock()
	return p.HandlePageChange(ctx, page)
}

// Refresh re-runs the active queries without changing any state. It is the
// retry after a failed fetch, and of a failed read of the persisted state.
func (p *Pipeline) Refresh(ctx context.Context) models.Snapshot {
	p.restoreState(ctx)
	p.mu.Lock()
	missingNiches := len(p.niches) == 0
	p.mu.Unlock()
	if missingNiches {
		p.loadNiches(ctx)
	}
	p.requery(ctx, true)
	return p.Snapshot()
}

// State returns a copy of the persisted part of the pipeline
func (p *Pipeline) State() models.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the current read-only view
func (p *Pipeline) Snapshot() models.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) snapshotLocked() models.Snapshot {
	creators := make([]models.Creator, len(p.creators))
	copy(creators, p.creators)
	niches := make([]string, len(p.niches))
	copy(niches, p.niches)

	var msgs []string
	for _, err := range []error{p.pageErr, p.metricsErr} {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}

	return models.Snapshot{
		Creators:      creators,
		CurrentMode:   p.state.Mode,
		CurrentPage:   p.state.Page,
		TotalPages:    p.totalPages,
		TotalCreators: p.totalCount,
		Niches:        niches,
		Metrics:       p.metrics,
		Loading:       p.inflight > 0,
		Error:         strings.Join(msgs, "; "),
		SortState:     p.state.Sort,
	}
}

// requery refreshes the page and, when withMetrics is set, the metrics. Both run
// concurrently and each records its own outcome.
func (p *Pipeline) requery(ctx context.Context, withMetrics bool) {
	p.begin()
	defer p.end()

	var g errgroup.Group
	if withMetrics {
		g.Go(func() error { return p.refreshMetrics(ctx) })
	}
	g.Go(func() error { return p.refreshPage(ctx) })
	if err := g.Wait(); err != nil {
		p.log.Warnw("creator query failed", "error", err)
	}
}

func (p *Pipeline) refreshMetrics(ctx context.Context) error {
	p.mu.Lock()
	p.metricsGen++
	gen := p.metricsGen
	filters := p.state.Filters
	p.mu.Unlock()

	metrics, err := FetchCreatorMetrics(ctx, p.db, filters)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen < p.metricsGen {
		p.log.Debugw("discarding stale metrics", "generation", gen, "latest", p.metricsGen)
		return nil
	}
	if err != nil {
		p.metricsErr = err
		return err
	}
	p.metrics = metrics
	p.metricsErr = nil
	return nil
}

func (p *Pipeline) refreshPage(ctx context.Context) error {
	p.mu.Lock()
	p.pageGen++
	gen := p.pageGen
	state := p.state
	batch := p.aiBatch
	p.mu.Unlock()

	var (
		res pageResult
		err error
	)
	if state.Mode == models.ModeAI {
		if batch == nil {
			batch, err = p.fetchAIBatch(ctx, state)
		}
		if err == nil {
			res = aiPage(batch, state)
		}
	} else {
		res, err = p.fetchStorePage(ctx, state)
	}

	p.mu.Lock()
	if gen < p.pageGen {
		p.mu.Unlock()
		p.log.Debugw("discarding stale creator page", "generation", gen)
		return nil
	}
	if err != nil {
		p.pageErr = fmt.Errorf("failed to fetch creators: %w", err)
		p.mu.Unlock()
		return p.pageErr
	}
	if state.Mode == models.ModeAI {
		p.aiBatch = batch
	}
	p.creators = res.creators
	p.totalCount = res.total
	p.totalPages = TotalPages(res.total)
	p.pageErr = nil
	// a page change made while this query ran wins over its clamp
	clamped := res.page != state.Page && p.state.Page == state.Page
	var (
		st       models.PipelineState
		stateGen uint64
	)
	if clamped {
		p.state.Page = res.page
		st, stateGen = p.changedLocked()
	}
	p.mu.Unlock()

	if clamped {
		p.persist(ctx, st, stateGen)
	}
	if p.prefetcher != nil {
		p.prefetcher.Prefetch(thumbnailURLs(res.creators))
	}
	return nil
}

// fetchAIBatch loads up to AIBatchSize matching creators and scores them. Match
// score has no store column, so the batch then comes back in store default order.
func (p *Pipeline) fetchAIBatch(ctx context.Context, state models.PipelineState) ([]models.Creator, error) {
	opts := databases.PageOptions(models.AIBatchSize, 1, BuildSort(state.Sort))
	raws, err := p.db.Find(ctx, BuildFilter(state.Filters), opts)
	if err != nil {
		return nil, err
	}
	batch := p.normalizer.TransformAll(raws)
	p.scoring.Score(batch)
	return batch, nil
}

// fetchStorePage counts and then fetches one page with the same filter value, so the
// total and the page always agree
func (p *Pipeline) fetchStorePage(ctx context.Context, state models.PipelineState) (pageResult, error) {
	filter := BuildFilter(state.Filters)
	count, err := p.db.CountDocuments(ctx, filter)
	if err != nil {
		return pageResult{}, err
	}
	page := clampPage(state.Page, TotalPages(count))
	raws, err := p.db.Find(ctx, filter, databases.PageOptions(models.PageSize, page, BuildSort(state.Sort)))
	if err != nil {
		return pageResult{}, err
	}
	return pageResult{creators: p.normalizer.TransformAll(raws), total: count, page: page}, nil
}

// aiPage slices one page out of the cached batch without touching the batch itself
func aiPage(batch []models.Creator, state models.PipelineState) pageResult {
	ordered := make([]models.Creator, len(batch))
	copy(ordered, batch)
	if state.Sort.Field == models.SortMatchScore {
		sortByMatchScore(ordered, state.Sort.Direction)
	}

	total := int64(len(ordered))
	page := clampPage(state.Page, TotalPages(total))
	start := (page - 1) * models.PageSize
	end := start + models.PageSize
	if end > len(ordered) {
		end = len(ordered)
	}
	return pageResult{creators: ordered[start:end], total: total, page: page}
}

func (p *Pipeline) loadNiches(ctx context.Context) {
	niches, err := p.db.Distinct(ctx, fieldPrimaryNiche, BuildFilter(models.FilterCriteria{}))
	if err != nil {
		p.log.Warnw("failed to load niches", "error", err)
		return
	}
	p.mu.Lock()
	p.niches = niches
	p.mu.Unlock()
}

// reject records a validation error without touching any other state
func (p *Pipeline) reject(err error) models.Snapshot {
	p.mu.Lock()
	p.pageErr = err
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snap)
	return snap
}

// changedLocked records a state change and returns the state to save with its
// generation. p.mu must be held.
func (p *Pipeline) changedLocked() (models.PipelineState, uint64) {
	p.stateGen++
	return p.state, p.stateGen
}

// persist saves st unless a newer state has already been saved. Saves are
// serialized, so the stored state always ends up as the newest one.
func (p *Pipeline) persist(ctx context.Context, st models.PipelineState, gen uint64) {
	p.mu.Lock()
	unknown := p.stateUnknown
	p.mu.Unlock()
	if unknown {
		return
	}

	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	if gen <= p.savedGen {
		return
	}
	p.savedGen = gen
	if err := p.repo.Save(ctx, st); err != nil {
		p.log.Warnw("failed to persist pipeline state", "error", err)
	}
}

// restoreState retries reading the persisted state after Load could not. With no
// changes since, the stored state is adopted; otherwise the newer in-memory state
// is saved over it.
func (p *Pipeline) restoreState(ctx context.Context) {
	p.mu.Lock()
	unknown, gen := p.stateUnknown, p.stateGen
	p.mu.Unlock()
	if !unknown {
		return
	}

	state, err := p.repo.Load(ctx)
	if err != nil {
		p.log.Warnw("failed to read persisted pipeline state", "error", err)
		return
	}

	p.mu.Lock()
	p.stateUnknown = false
	if p.stateGen == gen && gen == 0 {
		p.state = state
		p.aiBatch = nil
		p.mu.Unlock()
		return
	}
	st, newGen := p.changedLocked()
	p.mu.Unlock()
	p.persist(ctx, st, newGen)
}

func (p *Pipeline) begin() {
	p.mu.Lock()
	p.inflight++
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snap)
}

func (p *Pipeline) end() {
	p.mu.Lock()
	p.inflight--
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snap)
}

func (p *Pipeline) notify(snap models.Snapshot) {
	if p.onChange != nil {
		p.onChange(snap)
	}
}

func clampPage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

func thumbnailURLs(creators []models.Creator) []string {
	var urls []string
	for _, c := range creators {
		for _, u := range c.ExpandedThumbnails {
			if u != PlaceholderThumbnail {
				urls = append(urls, u)
			}
		}
	}
	return urls
}
