package graphclustering

import (
	"fmt"
	"strings"
)

const summaryInstruction = `You are summarizing a community of closely related entities extracted from a knowledge graph.
Write one concise paragraph describing what the entities have in common and the most important relationships between them.
Name the most central entities. Do not invent facts that are not present in the data.`

// buildPrompt renders the generation prompt for a record.
func buildPrompt(rec *CommunityRecord) string {
	var b strings.Builder
	b.WriteString(summaryInstruction)
	fmt.Fprintf(&b, "\n\nCommunity %s (level %d, %d entities", rec.ID, rec.Level, len(rec.Members))
	if rec.Truncated {
		b.WriteString(", listing truncated")
	}
	b.WriteString("):\n")
	b.WriteString(rec.Text)
	return b.String()
}

// buildChildContext concatenates child summaries in child order.
func buildChildContext(children []*CommunitySummary) string {
	if len(children) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Summaries of the sub-communities contained in this community:")
	for _, s := range children {
		fmt.Fprintf(&b, "\n\n[%s] %s", s.CommunityID, s.Text)
	}
	return b.String()
}
