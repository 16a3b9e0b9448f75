package graphclustering

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/c360/semcommunity/errors"
	"github.com/c360/semcommunity/metric"
	"github.com/c360/semcommunity/pkg/cache"
)

const tracerName = "github.com/c360/semcommunity/pkg/graphclustering"

// BuildResult reports the outcome of BuildCommunities or ResumeSummaries.
type BuildResult struct {
	BuildID   string `json:"build_id"`
	Algorithm string `json:"algorithm"`
	MaxLevel  int    `json:"max_hierarchical_level"`

	// Levels is the number of hierarchy levels collected
	Levels int `json:"levels"`

	// Communities counts collected communities across all levels
	Communities int `json:"communities"`

	// Summarized counts summaries generated by this call
	Summarized int `json:"summarized"`

	// Reused counts persisted summaries restored by ResumeSummaries
	Reused int `json:"reused,omitempty"`

	Failed      []SummaryFailure    `json:"failed,omitempty"`
	Skipped     []CommunityKey      `json:"skipped,omitempty"`
	LevelErrors []*AggregationError `json:"-"`

	// ClusteringUnavailable is set when the clustering call failed and the
	// build was skipped
	ClusteringUnavailable bool   `json:"clustering_unavailable,omitempty"`
	Reason                string `json:"reason,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the Store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRegistry exports build, summarizer pool and cache metrics.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(s *Store) {
		s.registry = registry
	}
}

// WithTracerProvider sets the provider used for build spans. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithClock sets the time source for record and summary timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Store builds the community hierarchy of a graph and serves the resulting
// summaries. Builds are serialized; reads may run concurrently with a build
// and observe the build's progress.
type Store struct {
	graph GraphStore
	cfg   Config

	collector  *InfoCollector
	summarizer *Summarizer
	cache      cache.Cache[*CommunitySummary]
	clearing   atomic.Bool // set while the cache is cleared for a new build

	logger   *slog.Logger
	tracer   trace.Tracer
	registry *metric.MetricsRegistry
	metrics  *buildMetrics
	clock    func() time.Time

	buildMu   sync.Mutex
	mu        sync.RWMutex
	hierarchy *Hierarchy
}

// NewStore creates a Store over graph using gen for summaries.
func NewStore(graph GraphStore, gen TextGenerator, cfg Config, opts ...Option) (*Store, error) {
	if graph == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Store", "NewStore", "graph store is nil")
	}
	if gen == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Store", "NewStore", "text generator is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		graph:  graph,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "community-store")

	metrics, err := newBuildMetrics(s.registry)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Store", "NewStore", "register metrics")
	}
	s.metrics = metrics

	cacheOpts := []cache.Option[*CommunitySummary]{
		cache.WithEvictionCallback[*CommunitySummary](s.onSummaryEvicted),
	}
	if s.registry != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[*CommunitySummary](s.registry, "community_summaries"))
	}
	s.cache, err = cache.New(cfg.CacheSize, cacheOpts...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Store", "NewStore", "create summary cache")
	}

	s.collector = NewInfoCollector(cfg, s.logger)
	s.collector.clock = s.clock
	s.collector.metrics = s.metrics

	s.summarizer = NewSummarizer(gen, graph, s.cache, cfg, s.logger, s.registry)
	s.summarizer.clock = s.clock
	s.summarizer.metrics = s.metrics

	return s, nil
}

// BuildCommunities runs clustering, collects and persists a record per
// community, then summarizes every community leaf-first. Each call fully
// supersedes the previous build.
//
// A failed clustering call is not an error: the result has
// ClusteringUnavailable set and prior state is kept. An empty partition
// clears the index and cache. Errors after clustering are returned as
// *BuildError; summaries persisted before the error stay valid.
func (s *Store) BuildCommunities(ctx context.Context) (*BuildResult, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	result := &BuildResult{
		BuildID:   uuid.NewString(),
		Algorithm: s.cfg.Algorithm,
		MaxLevel:  s.cfg.MaxHierarchicalLevel,
		StartedAt: s.clock(),
	}
	start := time.Now()
	params := map[string]any{ParamMaxHierarchicalLevel: s.cfg.MaxHierarchicalLevel}
	logger := s.logger.With("build_id", result.BuildID)

	ctx, span := s.tracer.Start(ctx, "community.build", trace.WithAttributes(
		attribute.String("community.build_id", result.BuildID),
		attribute.String("community.algorithm", s.cfg.Algorithm),
		attribute.Int("community.max_level", s.cfg.MaxHierarchicalLevel),
	))
	defer span.End()

	fail := func(stage string, err error) (*BuildResult, error) {
		result.Duration = time.Since(start)
		s.metrics.recordBuild(outcomeFailed, result.Duration)
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		logger.Error("Community build failed", "stage", stage, "error", err)
		return result, &BuildError{
			BuildID:   result.BuildID,
			Stage:     stage,
			Algorithm: s.cfg.Algorithm,
			Params:    params,
			Progress:  result,
			Err:       err,
		}
	}

	partition, err := s.cluster(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(StageClustering, ctxErr)
		}
		result.ClusteringUnavailable = true
		result.Reason = err.Error()
		result.Duration = time.Since(start)
		s.metrics.recordBuild(outcomeUnavailable, result.Duration)
		span.SetAttributes(attribute.Bool("community.clustering_unavailable", true))
		logger.Warn("Clustering unavailable, skipping community build", "algorithm", s.cfg.Algorithm, "error", err)
		return result, nil
	}

	if len(partition) == 0 {
		if err := s.reset(ctx); err != nil {
			return fail(StageCollection, err)
		}
		result.Duration = time.Since(start)
		s.metrics.recordBuild(outcomeEmpty, result.Duration)
		s.metrics.setCommunities(nil)
		logger.Warn("Clustering returned an empty partition, no communities built")
		return result, nil
	}

	if err := s.reset(ctx); err != nil {
		return fail(StageCollection, err)
	}

	collected, err := s.collect(ctx, partition)
	if err != nil {
		return fail(StageCollection, err)
	}
	h := collected.Hierarchy
	result.Levels = h.Levels()
	result.Communities = h.Len()
	result.LevelErrors = collected.LevelErrors
	s.setHierarchy(h)
	s.metrics.setCommunities(countPerLevel(h))

	summarized, err := s.summarizeStage(ctx, h, nil)
	s.applySummaries(result, summarized)
	if err != nil {
		return fail(StageSummarization, err)
	}

	result.Duration = time.Since(start)
	s.metrics.recordBuild(outcomeCompleted, result.Duration)
	span.SetAttributes(
		attribute.Int("community.levels", result.Levels),
		attribute.Int("community.communities", result.Communities),
		attribute.Int("community.failed", len(result.Failed)),
	)
	logger.Info("Community build complete",
		"levels", result.Levels,
		"communities", result.Communities,
		"summarized", result.Summarized,
		"failed", len(result.Failed),
		"duration", result.Duration)

	return result, nil
}

// ResumeSummaries reloads the persisted records of the last build and
// summarizes only the communities without a persisted summary matching the
// record. It requires a graph store implementing RecordReader.
func (s *Store) ResumeSummaries(ctx context.Context) (*BuildResult, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	result := &BuildResult{
		BuildID:   uuid.NewString(),
		Algorithm: s.cfg.Algorithm,
		MaxLevel:  s.cfg.MaxHierarchicalLevel,
		StartedAt: s.clock(),
	}
	start := time.Now()
	logger := s.logger.With("build_id", result.BuildID)

	ctx, span := s.tracer.Start(ctx, "community.resume", trace.WithAttributes(
		attribute.String("community.build_id", result.BuildID),
	))
	defer span.End()

	fail := func(stage string, err error) (*BuildResult, error) {
		result.Duration = time.Since(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		return result, &BuildError{BuildID: result.BuildID, Stage: stage, Algorithm: s.cfg.Algorithm, Progress: result, Err: err}
	}

	reader, ok := s.graph.(RecordReader)
	if !ok {
		return fail(StageCollection, ErrResumeUnsupported)
	}
	records, err := reader.ListCommunityRecords(ctx)
	if err != nil {
		return fail(StageCollection, errors.Wrap(err, "Store", "ResumeSummaries", "list community records"))
	}
	h, err := NewHierarchy(records)
	if err != nil {
		return fail(StageCollection, err)
	}

	existing := make(map[CommunityKey]*CommunitySummary)
	if sr, ok := s.graph.(SummaryReader); ok {
		for _, rec := range h.Records() {
			sum, err := sr.ReadSummary(ctx, rec.Key())
			if err != nil {
				return fail(StageCollection, errors.Wrap(err, "Store", "ResumeSummaries", "read summary"))
			}
			if sum != nil && sum.SourceDigest == rec.Digest {
				existing[rec.Key()] = sum
			}
		}
	}

	if err := s.clearCache(); err != nil {
		logger.Warn("Failed to clear summary cache", "error", err)
	}
	for key, sum := range existing {
		if _, err := s.cache.Set(key.String(), sum); err != nil {
			logger.Warn("Failed to cache community summary", "community_id", key.ID, "level", key.Level, "error", err)
		}
	}
	s.setHierarchy(h)
	result.Levels = h.Levels()
	result.Communities = h.Len()
	result.Reused = len(existing)

	summarized, err := s.summarizeStage(ctx, h, existing)
	s.applySummaries(result, summarized)
	if err != nil {
		return fail(StageSummarization, err)
	}

	result.Duration = time.Since(start)
	logger.Info("Community summaries resumed",
		"communities", result.Communities,
		"reused", result.Reused,
		"summarized", result.Summarized,
		"failed", len(result.Failed))
	return result, nil
}

func (s *Store) cluster(ctx context.Context, params map[string]any) (Partition, error) {
	ctx, span := s.tracer.Start(ctx, "community.cluster")
	defer span.End()

	partition, err := s.graph.InvokeClustering(ctx, s.cfg.Algorithm, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clustering failed")
		return nil, fmt.Errorf("%w: %w", ErrClusteringUnavailable, err)
	}
	span.SetAttributes(attribute.Int("community.assignments", len(partition)))
	return partition, nil
}

func (s *Store) collect(ctx context.Context, partition Partition) (*CollectResult, error) {
	ctx, span := s.tracer.Start(ctx, "community.collect")
	defer span.End()

	collected, err := s.collector.RetrieveCommunityInfo(ctx, s.graph, partition, s.cfg.EnablePersistence)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collection failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("community.communities", collected.Hierarchy.Len()),
		attribute.Int("community.level_errors", len(collected.LevelErrors)),
	)
	return collected, nil
}

func (s *Store) summarizeStage(ctx context.Context, h *Hierarchy, existing map[CommunityKey]*CommunitySummary) (*SummarizeResult, error) {
	ctx, span := s.tracer.Start(ctx, "community.summarize")
	defer span.End()

	res, err := s.summarizer.summarize(ctx, h, existing)
	if res != nil {
		span.SetAttributes(
			attribute.Int("community.summarized", len(res.Summarized)),
			attribute.Int("community.failed", len(res.Failed)),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summarization failed")
	}
	return res, err
}

// clearCache empties the summary cache without reporting the cleared
// summaries as evicted.
func (s *Store) clearCache() error {
	s.clearing.Store(true)
	defer s.clearing.Store(false)
	return s.cache.Clear()
}

// onSummaryEvicted reports summaries pushed out of a bounded cache. They
// stay retrievable only when the graph store can read them back.
func (s *Store) onSummaryEvicted(key string, sum *CommunitySummary) {
	if s.clearing.Load() {
		return
	}
	if _, ok := s.graph.(SummaryReader); ok {
		s.logger.Debug("Community summary evicted from cache", "community_id", sum.CommunityID, "level", sum.Level)
		return
	}
	s.logger.Warn("Community summary evicted and cannot be reloaded; raise cache_size",
		"community_id", sum.CommunityID, "level", sum.Level, "cache_key", key)
}

// reset drops the previous build's state, persisted and in memory.
func (s *Store) reset(ctx context.Context) error {
	if r, ok := s.graph.(Resetter); ok {
		if err := r.ResetCommunities(ctx); err != nil {
			return &PersistenceError{Op: "reset communities", Err: err}
		}
	}
	if err := s.clearCache(); err != nil {
		return errors.Wrap(err, "Store", "reset", "clear summary cache")
	}
	s.setHierarchy(nil)
	return nil
}

func (s *Store) applySummaries(result *BuildResult, res *SummarizeResult) {
	if res == nil {
		return
	}
	result.Summarized = len(res.Summarized)
	result.Failed = res.Failed
	result.Skipped = res.Skipped
}

func (s *Store) setHierarchy(h *Hierarchy) {
	s.mu.Lock()
	s.hierarchy = h
	s.mu.Unlock()
}

func (s *Store) currentHierarchy() *Hierarchy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hierarchy
}

// GetSummary returns the summary of the community with id at the finest
// level where it has one.
func (s *Store) GetSummary(ctx context.Context, id string) (*CommunitySummary, bool) {
	h := s.currentHierarchy()
	for level := 0; level < h.Levels(); level++ {
		if sum, ok := s.GetSummaryAt(ctx, id, level); ok {
			return sum, true
		}
	}
	return nil, false
}

// GetSummaryAt returns the summary of the community (id, level). Cache
// misses for communities of the current build fall back to the graph store
// when it implements SummaryReader.
func (s *Store) GetSummaryAt(ctx context.Context, id string, level int) (*CommunitySummary, bool) {
	key := CommunityKey{ID: id, Level: level}
	if sum, ok := s.cache.Get(key.String()); ok {
		return sum, true
	}

	rec, ok := s.currentHierarchy().Record(key)
	if !ok {
		return nil, false
	}
	sr, ok := s.graph.(SummaryReader)
	if !ok {
		return nil, false
	}
	sum, err := sr.ReadSummary(ctx, key)
	if err != nil {
		s.logger.Warn("Failed to read persisted summary", "community_id", id, "level", level, "error", err)
		return nil, false
	}
	if sum == nil || sum.SourceDigest != rec.Digest {
		return nil, false
	}
	if _, err := s.cache.Set(key.String(), sum); err != nil {
		s.logger.Debug("Failed to cache community summary", "community_id", id, "level", level, "error", err)
	}
	return sum, true
}

// ListCommunities returns the community IDs at level in ID order. For
// AnyLevel the IDs of all levels are listed finest level first, each ID once.
func (s *Store) ListCommunities(level int) []string {
	keys := s.Communities(level)
	ids := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k.ID]; dup {
			continue
		}
		seen[k.ID] = struct{}{}
		ids = append(ids, k.ID)
	}
	return ids
}

// Communities returns the keys of the current build at level, or at every
// level for AnyLevel, ordered by level then ID.
func (s *Store) Communities(level int) []CommunityKey {
	return s.currentHierarchy().Keys(level)
}

// Record returns the collected record for key from the current build.
func (s *Store) Record(key CommunityKey) (*CommunityRecord, bool) {
	return s.currentHierarchy().Record(key)
}

// Summaries returns the cached summaries of the current build ordered by
// level then ID.
func (s *Store) Summaries() []*CommunitySummary {
	keys := s.currentHierarchy().Keys(AnyLevel)
	out := make([]*CommunitySummary, 0, len(keys))
	for _, k := range keys {
		if sum, ok := s.cache.Get(k.String()); ok {
			out = append(out, sum)
		}
	}
	return out
}

func countPerLevel(h *Hierarchy) []int {
	counts := make([]int, h.Levels())
	for _, rec := range h.Records() {
		counts[rec.Level]++
	}
	return counts
}
