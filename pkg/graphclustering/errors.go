package graphclustering

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Domain error kinds. Use errors.Is to test for them.
var (
	// ErrClusteringUnavailable is reported when the clustering capability
	// errors or is missing. BuildCommunities treats it as a no-op.
	ErrClusteringUnavailable = stderrors.New("clustering unavailable")

	// ErrAggregation indicates a partition that violates the hierarchy invariants
	ErrAggregation = stderrors.New("community aggregation failed")

	// ErrSummarizationFailed marks a community whose summary could not be generated
	ErrSummarizationFailed = stderrors.New("community summarization failed")

	// ErrPersistence indicates a write to the graph store failed
	ErrPersistence = stderrors.New("community persistence failed")

	// ErrResumeUnsupported is returned by ResumeSummaries when the graph
	// store cannot list persisted records
	ErrResumeUnsupported = stderrors.New("graph store cannot list community records")
)

// AggregationError describes one violated partition invariant.
type AggregationError struct {
	Level       int
	CommunityID string
	NodeID      string
	Reason      string
}

func (e *AggregationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: level %d", ErrAggregation, e.Level)
	if e.CommunityID != "" {
		fmt.Fprintf(&b, " community %q", e.CommunityID)
	}
	if e.NodeID != "" {
		fmt.Fprintf(&b, " node %q", e.NodeID)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Is matches ErrAggregation.
func (e *AggregationError) Is(target error) bool {
	return target == ErrAggregation
}

// PersistenceError wraps a failed graph store write.
type PersistenceError struct {
	Op  string
	Key CommunityKey
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key.ID == "" {
		return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", ErrPersistence, e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// SummaryFailure records a community that ended the summarization stage
// without a summary.
type SummaryFailure struct {
	Key      CommunityKey `json:"key"`
	Attempts int          `json:"attempts"`
	Err      error        `json:"-"`
}

func (f SummaryFailure) Error() string {
	return fmt.Sprintf("%s: %s after %d attempts: %v", ErrSummarizationFailed, f.Key, f.Attempts, f.Err)
}

func (f SummaryFailure) Unwrap() error { return f.Err }

// Is matches ErrSummarizationFailed.
func (f SummaryFailure) Is(target error) bool {
	return target == ErrSummarizationFailed
}

// Build stages reported in BuildError.
const (
	StageClustering    = "clustering"
	StageCollection    = "collection"
	StageSummarization = "summarization"
)

// BuildError is returned when a build aborts after clustering succeeded.
// Summaries persisted before the failure remain valid.
type BuildError struct {
	BuildID   string
	Stage     string
	Algorithm string
	Params    map[string]any

	// Progress is the partial result at the time of failure
	Progress *BuildResult

	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("community build %s failed during %s (algorithm %s): %v", e.BuildID, e.Stage, e.Algorithm, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
