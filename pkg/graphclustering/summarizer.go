package graphclustering

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c360/semcommunity/errors"
	"github.com/c360/semcommunity/metric"
	"github.com/c360/semcommunity/pkg/cache"
	"github.com/c360/semcommunity/pkg/retry"
	"github.com/c360/semcommunity/pkg/worker"
)

// Summary statuses recorded in the summaries_total counter.
const (
	summaryStatusSuccess = "success"
	summaryStatusFailed  = "failed"
)

// SummarizeResult describes the outcome of a summarization pass.
type SummarizeResult struct {
	// Summarized lists the communities summarized in this pass, ordered by key
	Summarized []CommunityKey

	// Failed lists communities whose generation failed permanently or
	// exhausted its retries, ordered by key
	Failed []SummaryFailure

	// Skipped lists communities never attempted because the pass was
	// cancelled or halted, ordered by key
	Skipped []CommunityKey
}

// Summarizer generates community summaries bottom-up: a community is
// summarized only after every child finished, with the successful child
// summaries supplied as context.
type Summarizer struct {
	gen    TextGenerator
	writer SummaryWriter
	cache  cache.Cache[*CommunitySummary]
	pool   *worker.Pool[CommunityKey]

	retry   RetryConfig
	timeout time.Duration

	logger  *slog.Logger
	clock   func() time.Time
	metrics *buildMetrics
}

// NewSummarizer creates a summarizer that writes summaries to writer and
// then to c. Concurrency, retry and timeout settings come from cfg. A
// non-nil registry exports worker pool metrics.
func NewSummarizer(
	gen TextGenerator,
	writer SummaryWriter,
	c cache.Cache[*CommunitySummary],
	cfg Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	var poolOpts []worker.Option[CommunityKey]
	if registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[CommunityKey](registry, "community_summarizer"))
	}
	timeout := cfg.GenerateTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().GenerateTimeout
	}
	return &Summarizer{
		gen:     gen,
		writer:  writer,
		cache:   c,
		pool:    worker.NewPool(cfg.Concurrency, poolOpts...),
		retry:   cfg.Retry,
		timeout: timeout,
		logger:  logger,
		clock:   time.Now,
	}
}

// SummarizeCommunities summarizes every record in h. Generation failures
// are collected in the result and do not stop the pass. A failure to
// persist a summary stops scheduling and is returned; summaries persisted
// before it remain valid. Cancelling ctx stops new generations and returns
// ctx.Err() with the partial result.
func (s *Summarizer) SummarizeCommunities(ctx context.Context, h *Hierarchy) (*SummarizeResult, error) {
	return s.summarize(ctx, h, nil)
}

// passState is shared by the tasks of one pass.
type passState struct {
	mu         sync.Mutex
	summaries  map[CommunityKey]*CommunitySummary
	summarized []CommunityKey
	failed     []SummaryFailure
}

func (ps *passState) summary(key CommunityKey) (*CommunitySummary, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	sum, ok := ps.summaries[key]
	return sum, ok
}

// summarize runs a pass over the records of h lacking an entry in
// existing. Existing summaries are used as child context.
func (s *Summarizer) summarize(ctx context.Context, h *Hierarchy, existing map[CommunityKey]*CommunitySummary) (*SummarizeResult, error) {
	state := &passState{summaries: make(map[CommunityKey]*CommunitySummary, h.Len())}
	for k, v := range existing {
		state.summaries[k] = v
	}

	pending := make(map[CommunityKey]struct{}, h.Len())
	for _, rec := range h.Records() {
		if _, done := existing[rec.Key()]; !done {
			pending[rec.Key()] = struct{}{}
		}
	}

	tasks := make([]worker.Task[CommunityKey], 0, len(pending))
	for _, rec := range h.Records() {
		if _, ok := pending[rec.Key()]; !ok {
			continue
		}
		var deps []CommunityKey
		for _, child := range rec.Children {
			if _, ok := pending[child]; ok {
				deps = append(deps, child)
			}
		}
		tasks = append(tasks, worker.Task[CommunityKey]{
			Key:       rec.Key(),
			DependsOn: deps,
			Run: func(ctx context.Context) error {
				return s.summarizeOne(ctx, h, rec, state)
			},
		})
	}

	result := &SummarizeResult{}
	if len(tasks) == 0 {
		return result, nil
	}

	report, err := s.pool.Run(ctx, tasks)

	result.Summarized = state.summarized
	result.Failed = state.failed
	if report != nil {
		result.Skipped = report.Skipped
	}
	sortKeys(result.Summarized)
	sortKeys(result.Skipped)
	sort.Slice(result.Failed, func(i, j int) bool {
		return result.Failed[i].Key.Less(result.Failed[j].Key)
	})

	return result, err
}

func (s *Summarizer) summarizeOne(ctx context.Context, h *Hierarchy, rec *CommunityRecord, state *passState) error {
	key := rec.Key()
	if err := ctx.Err(); err != nil {
		return err
	}

	var children []*CommunitySummary
	var used []CommunityKey
	for _, child := range h.Children(key) {
		sum, ok := state.summary(child.Key())
		if !ok || sum.SourceDigest != child.Digest {
			continue
		}
		children = append(children, sum)
		used = append(used, child.Key())
	}

	text, attempts, err := s.generate(ctx, key, buildPrompt(rec), buildChildContext(children))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		failure := SummaryFailure{Key: key, Attempts: attempts, Err: err}
		state.mu.Lock()
		state.failed = append(state.failed, failure)
		state.mu.Unlock()

		s.metrics.recordSummary(summaryStatusFailed)
		s.logger.Warn("Community summarization failed",
			"community_id", key.ID,
			"level", key.Level,
			"attempts", attempts,
			"error", err)
		return failure
	}

	summary := &CommunitySummary{
		CommunityID:  rec.ID,
		Level:        rec.Level,
		Text:         text,
		GeneratedAt:  s.clock(),
		SourceDigest: rec.Digest,
		ChildrenUsed: used,
	}
	if err := s.writer.WriteSummary(ctx, summary); err != nil {
		return worker.Halt(&PersistenceError{Op: "write summary", Key: key, Err: err})
	}
	if s.cache != nil {
		if _, err := s.cache.Set(key.String(), summary); err != nil {
			s.logger.Warn("Failed to cache community summary", "community_id", key.ID, "level", key.Level, "error", err)
		}
	}

	state.mu.Lock()
	state.summaries[key] = summary
	state.summarized = append(state.summarized, key)
	state.mu.Unlock()

	s.metrics.recordSummary(summaryStatusSuccess)
	s.logger.Debug("Community summarized",
		"community_id", key.ID,
		"level", key.Level,
		"attempts", attempts,
		"children_used", len(used))
	return nil
}

// generate calls the text generator with a per-attempt timeout, retrying
// transient errors with exponential backoff. It returns the trimmed text
// and the number of attempts made.
func (s *Summarizer) generate(ctx context.Context, key CommunityKey, prompt, contextText string) (string, int, error) {
	attempts := 0

	cfg := s.retry.toRetryConfig()
	cfg.ShouldRetry = func(err error) bool {
		return errors.Classify(err) == errors.ErrorTransient
	}
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.logger.Debug("Retrying community summary",
			"community_id", key.ID,
			"level", key.Level,
			"attempt", attempt,
			"delay", delay,
			"error", err)
	}

	text, err := retry.DoWithResult(ctx, cfg, func() (string, error) {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		start := time.Now()
		out, err := s.gen.Generate(callCtx, prompt, contextText)
		elapsed := time.Since(start)
		if err != nil {
			if ctx.Err() == nil && stderrors.Is(callCtx.Err(), context.DeadlineExceeded) {
				err = errors.WrapTransient(err, "Summarizer", "generate", "generate within timeout")
			}
			outcome := "permanent"
			if errors.Classify(err) == errors.ErrorTransient {
				outcome = "transient"
			}
			s.metrics.recordAttempt(outcome, elapsed)
			return "", err
		}

		out = strings.TrimSpace(out)
		if out == "" {
			s.metrics.recordAttempt("permanent", elapsed)
			return "", errors.WrapInvalid(errors.ErrEmptyResponse, "Summarizer", "generate", "generate summary")
		}
		s.metrics.recordAttempt("success", elapsed)
		return out, nil
	})
	return text, attempts, err
}

func sortKeys(keys []CommunityKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
