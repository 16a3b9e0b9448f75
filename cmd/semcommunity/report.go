package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	gc "github.com/c360/semcommunity/pkg/graphclustering"
)

// report is the JSON document written after a build.
type report struct {
	Build       *gc.BuildResult   `json:"build"`
	Communities []communityReport `json:"communities"`
}

type communityReport struct {
	ID        string            `json:"id"`
	Level     int               `json:"level"`
	Members   []string          `json:"members"`
	Parent    *gc.CommunityKey  `json:"parent,omitempty"`
	Children  []gc.CommunityKey `json:"children,omitempty"`
	Truncated bool              `json:"truncated,omitempty"`

	Summary      string     `json:"summary,omitempty"`
	GeneratedAt  *time.Time `json:"generated_at,omitempty"`
	SourceDigest string     `json:"source_digest,omitempty"`
}

// newReport lists the communities at level (gc.AnyLevel for all) with their
// summaries, ordered by level, then ID.
func newReport(ctx context.Context, store *gc.Store, result *gc.BuildResult, level int) *report {
	keys := store.Communities(level)
	r := &report{Build: result, Communities: make([]communityReport, 0, len(keys))}

	for _, key := range keys {
		rec, ok := store.Record(key)
		if !ok {
			continue
		}
		c := communityReport{
			ID:        rec.ID,
			Level:     rec.Level,
			Members:   rec.Members,
			Parent:    rec.Parent,
			Children:  rec.Children,
			Truncated: rec.Truncated,
		}
		if sum, ok := store.GetSummaryAt(ctx, key.ID, key.Level); ok {
			generated := sum.GeneratedAt
			c.Summary = sum.Text
			c.GeneratedAt = &generated
			c.SourceDigest = sum.SourceDigest
		}
		r.Communities = append(r.Communities, c)
	}
	return r
}

// writeReport writes r as indented JSON to path, or to stdout for "-".
func writeReport(path string, stdout io.Writer, r *report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
