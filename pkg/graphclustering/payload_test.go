package graphclustering

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func abcPayloadInput() payloadInput {
	nodes := make(map[string]Node)
	for _, n := range abcNodes() {
		nodes[n.ID] = n
	}
	return payloadInput{
		members: []string{"A", "B", "C"},
		nodes:   nodes,
		edges:   abcEdges(),
	}
}

func TestBuildPayload_Full(t *testing.T) {
	text, truncated := buildPayload(abcPayloadInput(), 0, TruncateByDegree, DefaultPageRankConfig())

	assert.False(t, truncated)
	assert.Equal(t, `Entities:
- Bravo (robot): Inspection robot
- Alpha (robot): Survey robot
- Charlie (dock): Charging dock
Relationships:
- Alpha -[paired_with]-> Bravo
- Bravo -[charges_at]-> Charlie`, text)
}

func TestBuildPayload_TruncatesLowestRanked(t *testing.T) {
	text, truncated := buildPayload(abcPayloadInput(), 74, TruncateByDegree, DefaultPageRankConfig())

	assert.True(t, truncated)
	assert.Equal(t, "Entities:\n- Bravo (robot): Inspection robot\n- Alpha (robot): Survey robot", text)
	assert.LessOrEqual(t, len(text), 74)
}

func TestBuildPayload_RespectsBound(t *testing.T) {
	in := abcPayloadInput()
	for size := MinPayloadSize; size < 300; size += 7 {
		text, _ := buildPayload(in, size, TruncateByPageRank, DefaultPageRankConfig())
		assert.LessOrEqual(t, len(text), size, "size %d", size)
		assert.True(t, strings.HasPrefix(text, "Entities:\n"), "size %d", size)
	}
}

func TestBuildPayload_ClipsOversizedFirstLine(t *testing.T) {
	in := payloadInput{
		members: []string{"x"},
		nodes: map[string]Node{
			"x": {ID: "x", Name: "Verbose", Description: strings.Repeat("très long ", 50)},
		},
	}

	text, truncated := buildPayload(in, 64, TruncateByDegree, DefaultPageRankConfig())
	assert.True(t, truncated)
	assert.LessOrEqual(t, len(text), 64)
	assert.True(t, strings.HasPrefix(text, "Entities:\n- Verbose: très"))
	assert.True(t, strings.ToValidUTF8(text, "?") == text)
}

func TestBuildPayload_Deterministic(t *testing.T) {
	in := abcPayloadInput()
	reversed := payloadInput{
		members: []string{"C", "B", "A"},
		nodes:   in.nodes,
		edges:   []Edge{in.edges[1], in.edges[0]},
	}

	a, _ := buildPayload(in, 0, TruncateByDegree, DefaultPageRankConfig())
	b, _ := buildPayload(reversed, 0, TruncateByDegree, DefaultPageRankConfig())
	assert.Equal(t, a, b)

	first, _ := buildPayload(in, 0, TruncateByPageRank, DefaultPageRankConfig())
	second, _ := buildPayload(in, 0, TruncateByPageRank, DefaultPageRankConfig())
	assert.Equal(t, first, second)
}

func TestBuildPayload_PageRankPutsHubFirst(t *testing.T) {
	in := payloadInput{
		members: []string{"a", "b", "c", "hub"},
		edges: []Edge{
			{Source: "hub", Target: "a"},
			{Source: "hub", Target: "b"},
			{Source: "hub", Target: "c"},
		},
	}

	text, _ := buildPayload(in, 0, TruncateByPageRank, DefaultPageRankConfig())
	lines := strings.Split(text, "\n")
	assert.Equal(t, "- hub", lines[1])
}

func TestNodeLine(t *testing.T) {
	assert.Equal(t, "- x", nodeLine(Node{ID: "x"}))
	assert.Equal(t, "- x; a=1, b=two", nodeLine(Node{ID: "x", Properties: map[string]any{"b": "two", "a": 1}}))
	assert.Equal(t, "- Name (t): d", nodeLine(Node{ID: "x", Name: "Name", Type: "t", Description: "d"}))
}

func TestEdgeLine(t *testing.T) {
	in := payloadInput{nodes: map[string]Node{"a": {ID: "a", Name: "Alpha"}}}

	assert.Equal(t, "- Alpha -[related_to]-> b", in.edgeLine(Edge{Source: "a", Target: "b"}))
	assert.Equal(t, "- Alpha -[owns]-> b: since 2020", in.edgeLine(Edge{Source: "a", Target: "b", Type: "owns", Description: "since 2020"}))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "h", clip("héllo", 2))
	assert.Equal(t, "hé", clip("héllo", 3))
	assert.Equal(t, "abc", clip("abc", 10))
	assert.Equal(t, "", clip("abc", 0))
}

func TestBuildPrompt(t *testing.T) {
	rec := &CommunityRecord{ID: "c0", Level: 2, Members: []string{"a", "b"}, Text: "Entities:\n- a", Truncated: true}
	prompt := buildPrompt(rec)

	assert.True(t, strings.HasPrefix(prompt, summaryInstruction))
	assert.Contains(t, prompt, "Community c0 (level 2, 2 entities, listing truncated):\nEntities:\n- a")
}

func TestBuildChildContext(t *testing.T) {
	assert.Empty(t, buildChildContext(nil))

	got := buildChildContext([]*CommunitySummary{
		{CommunityID: "a", Text: "first"},
		{CommunityID: "b", Text: "second"},
	})
	assert.Equal(t, "Summaries of the sub-communities contained in this community:\n\n[a] first\n\n[b] second", got)
}
