package feed

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/driftline/driftline/internal/ranking"
	"github.com/driftline/driftline/internal/tracing"
)

// Pagination bounds applied to every surface.
const (
	// DefaultPageLimit is used when a caller passes a non-positive limit.
	DefaultPageLimit = 20
	// MaxPageLimit caps the per-page size.
	MaxPageLimit = 100
)

// Worker and deadline defaults for the scoring stage.
const (
	// DefaultScoreWorkers bounds concurrent per-candidate signal scoring.
	DefaultScoreWorkers = 16
	// DefaultRankTimeout bounds one full ranking call. When it fires the
	// call returns whatever candidates finished scoring.
	DefaultRankTimeout = 15 * time.Second
)

// Params holds the tunable knobs of the engine. Zero values fall back to
// the package defaults, so Params{} is a working configuration.
type Params struct {
	// MaxCandidates caps the raw candidate pool per call.
	MaxCandidates int
	// MinCandidates is the home-feed floor below which the generator widens.
	MinCandidates int
	// ScoreWorkers bounds concurrent signal scoring.
	ScoreWorkers int
	// Timeout bounds one ranking call end to end.
	Timeout time.Duration
	// RelationshipWindow bounds the interaction-boost lookback.
	RelationshipWindow time.Duration
	// EngagementWindow bounds engagement counting from post creation.
	EngagementWindow time.Duration
	// RecencyHalfLifeHours controls the time-decay curve.
	RecencyHalfLifeHours float64
	// InterestLookback bounds the interaction history read when building
	// interest profiles.
	InterestLookback time.Duration
}

// DefaultParams returns the production parameter set.
func DefaultParams() Params {
	return Params{
		MaxCandidates:        DefaultMaxCandidates,
		MinCandidates:        DefaultMinCandidates,
		ScoreWorkers:         DefaultScoreWorkers,
		Timeout:              DefaultRankTimeout,
		RelationshipWindow:   DefaultRelationshipWindow,
		EngagementWindow:     DefaultEngagementWindow,
		RecencyHalfLifeHours: ranking.DefaultRecencyHalfLifeHours,
		InterestLookback:     DefaultInterestLookback,
	}
}

// normalize fills zero-valued fields with defaults.
func (p Params) normalize() Params {
	d := DefaultParams()
	if p.MaxCandidates <= 0 {
		p.MaxCandidates = d.MaxCandidates
	}
	if p.MinCandidates <= 0 {
		p.MinCandidates = d.MinCandidates
	}
	if p.ScoreWorkers <= 0 {
		p.ScoreWorkers = d.ScoreWorkers
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if p.RelationshipWindow <= 0 {
		p.RelationshipWindow = d.RelationshipWindow
	}
	if p.EngagementWindow <= 0 {
		p.EngagementWindow = d.EngagementWindow
	}
	if p.RecencyHalfLifeHours <= 0 {
		p.RecencyHalfLifeHours = d.RecencyHalfLifeHours
	}
	if p.InterestLookback <= 0 {
		p.InterestLookback = d.InterestLookback
	}
	return p
}

// Engine ranks candidate posts for the home, explore, and search surfaces.
// It owns candidate generation, per-post signal scoring, weighted
// aggregation, suppression filtering, diversity enforcement, and
// pagination. The engine is stateless between calls and safe for
// concurrent use.
type Engine struct {
	posts   PostStore
	follows FollowStore

	weights  *ranking.Weights
	params   Params
	profiles *ProfileBuilder
	scorer   *Scorer

	metrics *Metrics
	logger  *slog.Logger
}

// NewEngine creates a ranking engine over the given stores. weights may be
// nil, in which case the shipped defaults apply. cache may be nil to
// disable profile memoization, and metrics may be nil to record nothing.
func NewEngine(
	posts PostStore,
	follows FollowStore,
	interactions InteractionStore,
	negatives NegativeSignalStore,
	weights *ranking.Weights,
	cache ProfileCache,
	params Params,
	metrics *Metrics,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if weights == nil {
		weights = ranking.DefaultWeights()
	}
	if cache == nil {
		cache = NoopProfileCache{}
	}
	params = params.normalize()

	return &Engine{
		posts:    posts,
		follows:  follows,
		weights:  weights,
		params:   params,
		profiles: NewProfileBuilder(posts, interactions, cache, params.InterestLookback, logger),
		scorer:   NewScorer(follows, interactions, negatives, params, logger),
		metrics:  metrics,
		logger:   logger,
	}
}

// RankHomeFeed returns one page of the viewer's home feed: posts from the
// viewer's connections, scored by the five-signal model and sorted by
// composite score. Ranking is deterministic for fixed inputs, so fetching
// page 1 then page 2 yields non-overlapping slices of the same ordering.
func (e *Engine) RankHomeFeed(ctx context.Context, viewerID string, page, limit int) (*FeedPage, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "rank_home_feed")
	defer endSpan(nil)
	tracing.SetAttributes(ctx, attribute.Int("feed.page", page))

	return e.rankSurface(ctx, SurfaceHome, viewerID, page, limit, e.weights.Home, func(ctx context.Context) []*Post {
		return e.homeCandidates(ctx, viewerID).run(ctx)
	})
}

// RankExploreFeed returns one page of the explore feed: recent public posts
// from authors the viewer does not already follow. An anonymous viewer
// (empty viewerID) receives the public stream ranked without relationship,
// personalization, or per-viewer suppression signals.
func (e *Engine) RankExploreFeed(ctx context.Context, viewerID string, page, limit int) (*FeedPage, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "rank_explore_feed")
	defer endSpan(nil)
	tracing.SetAttributes(ctx, attribute.Int("feed.page", page))

	return e.rankSurface(ctx, SurfaceExplore, viewerID, page, limit, e.weights.Explore, func(ctx context.Context) []*Post {
		return e.exploreCandidates(ctx, viewerID).run(ctx)
	})
}

// rankSurface runs the shared home/explore pipeline: generate candidates,
// score them, filter, sort, enforce diversity, paginate.
func (e *Engine) rankSurface(ctx context.Context, surface, viewerID string, page, limit int, weights ranking.SurfaceWeights, generate func(context.Context) []*Post) (*FeedPage, error) {
	start := time.Now()
	page, limit = normalizePage(page, limit)

	ctx, cancel := context.WithTimeout(ctx, e.params.Timeout)
	defer cancel()

	candidates := admitCandidates(generate(ctx), e.params.MaxCandidates)
	e.metrics.ObservePoolSize(surface, len(candidates))

	ranked := e.scoreAndOrder(ctx, surface, viewerID, candidates, weights)
	EnforceDiversity(ranked, weights.DiversityRunCap, weights.DiversityPenalty)

	status := StatusSuccess
	if ctx.Err() != nil {
		status = StatusPartial
	}
	e.metrics.IncRankCalls(surface, status)
	e.metrics.ObserveRankDuration(surface, time.Since(start).Seconds())
	e.logger.Debug("ranking call complete",
		"surface", surface,
		"viewer_id", viewerID,
		"candidates", len(candidates),
		"ranked", len(ranked),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds())

	return &FeedPage{
		Posts: paginate(ranked, page, limit),
		Page:  page,
		Limit: limit,
	}, nil
}

// scoreAndOrder builds the viewer's interest profile, fans signal scoring
// out across a bounded worker pool, aggregates scores, drops suppressed
// candidates, and sorts the survivors. If the context expires mid-flight
// only the candidates that finished scoring are included.
func (e *Engine) scoreAndOrder(ctx context.Context, surface, viewerID string, candidates []*Post, weights ranking.SurfaceWeights) []*RankedPost {
	if len(candidates) == 0 {
		return nil
	}

	profile := e.profiles.Build(ctx, viewerID)

	scored := make([]*RankedPost, len(candidates))
	jobs := make(chan int)

	workers := e.params.ScoreWorkers
	if workers > len(candidates) {
		workers = len(candidates)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				post := candidates[i]
				signals, counts := e.scorer.Score(ctx, viewerID, post, profile)
				scored[i] = &RankedPost{
					Post:          post,
					Signals:       signals,
					Score:         ranking.CompositeScore(signals, weights),
					ReactionCount: counts.Reactions,
					CommentCount:  counts.Comments,
					position:      i,
				}
			}
		}()
	}

dispatch:
	for i := range candidates {
		select {
		case jobs <- i:
		case <-ctx.Done():
			e.logger.Warn("ranking deadline hit, returning partial results",
				"surface", surface,
				"viewer_id", viewerID,
				"scored", i,
				"candidates", len(candidates))
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	ranked := make([]*RankedPost, 0, len(candidates))
	suppressed := 0
	for _, rp := range scored {
		if rp == nil {
			continue
		}
		if rp.Signals.Suppressed() {
			suppressed++
			continue
		}
		ranked = append(ranked, rp)
	}
	e.metrics.AddSuppressed(surface, suppressed)

	sortRanked(ranked)
	return ranked
}

// sortRanked orders by composite score descending, breaking ties by the
// candidate's generator position so results never depend on goroutine
// scheduling.
func sortRanked(ranked []*RankedPost) {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].position < ranked[j].position
	})
}

// admitCandidates drops hidden posts from the raw pool and enforces the
// pool cap. Moderation exclusion happens before any scoring so hidden
// content never consumes signal lookups.
func admitCandidates(posts []*Post, maxCandidates int) []*Post {
	admitted := make([]*Post, 0, len(posts))
	for _, p := range posts {
		if p == nil || p.HasLabel(LabelHidden) {
			continue
		}
		admitted = append(admitted, p)
		if len(admitted) >= maxCandidates {
			break
		}
	}
	return admitted
}

// normalizePage clamps page and limit to valid bounds.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// paginate slices one page out of the ranked list. Pages past the end are
// empty, never an error.
func paginate(ranked []*RankedPost, page, limit int) []*RankedPost {
	offset := (page - 1) * limit
	if offset >= len(ranked) {
		return []*RankedPost{}
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}
