package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semcommunity/errors"
)

const abcPrompt = `Summarize the community.

Community top (level 1, 3 entities):
Entities:
- Bravo (robot): Inspection robot
- Alpha (robot): Survey robot
- Charlie (dock): Charging dock
Relationships:
- Alpha -[paired_with]-> Bravo
- Bravo -[charges_at]-> Charlie`

func TestStatisticalGenerator_Generate(t *testing.T) {
	gen := NewStatisticalGenerator()

	text, err := gen.Generate(context.Background(), abcPrompt, "")
	require.NoError(t, err)
	assert.Equal(t,
		"Community of 3 entities including 2 robots, 1 dock. Central entities: Bravo, Alpha, Charlie. "+
			"Key themes: robot, dock, charging, inspection, survey.",
		text)
}

func TestStatisticalGenerator_CountsChildSummaries(t *testing.T) {
	gen := NewStatisticalGenerator()
	childContext := "Summaries of the sub-communities contained in this community:\n\n[c0] Two robots.\n\n[c1] A dock."

	text, err := gen.Generate(context.Background(), abcPrompt, childContext)
	require.NoError(t, err)
	assert.Contains(t, text, " Contains 2 sub-communities.")
}

func TestStatisticalGenerator_TruncatedListingUsesHeaderCount(t *testing.T) {
	prompt := "Community big (level 0, 40 entities, listing truncated):\nEntities:\n- hub; role=coordinator\n- a"

	text, err := NewStatisticalGenerator().Generate(context.Background(), prompt, "")
	require.NoError(t, err)
	assert.Equal(t, "Community of 40 entities. Central entities: hub, a. Key themes: coordinator, role.", text)
}

func TestStatisticalGenerator_NoEntities(t *testing.T) {
	_, err := NewStatisticalGenerator().Generate(context.Background(), "nothing to see", "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestStatisticalGenerator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStatisticalGenerator().Generate(ctx, abcPrompt, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseEntities(t *testing.T) {
	got := parseEntities("Entities:\n- Drone Alpha (robotics.drone): Fast flyer; capability=navigation\n- x; a=1\n- Plain\nRelationships:\n- a -[r]-> b")

	require.Len(t, got, 3)
	assert.Equal(t, listedEntity{name: "Drone Alpha", typ: "robotics.drone", description: "Fast flyer", properties: "capability=navigation"}, got[0])
	assert.Equal(t, listedEntity{name: "x", properties: "a=1"}, got[1])
	assert.Equal(t, listedEntity{name: "Plain"}, got[2])
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"survey", "drone", "north", "field"}, extractTerms("The survey-drone of the North field"))
	assert.Empty(t, extractTerms("a an to"))
}
