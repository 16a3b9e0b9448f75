package graphclustering

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	entitiesHeader      = "Entities:\n"
	relationshipsHeader = "Relationships:\n"
)

// payloadInput is the material for one community's textual payload.
type payloadInput struct {
	members []string
	nodes   map[string]Node
	// edges are the community's internal edges
	edges []Edge
}

// buildPayload renders members and their relationships as text bounded by
// maxSize bytes. Members are ranked by centrality under policy, ties broken
// by ID; when the text does not fit, the lowest-ranked members are dropped
// first, along with their relationships. A maxSize of 0 disables the bound.
func buildPayload(in payloadInput, maxSize int, policy TruncationPolicy, pr PageRankConfig) (string, bool) {
	var scores map[string]float64
	switch policy {
	case TruncateByPageRank:
		scores = ComputePageRank(in.members, in.edges, pr).Scores
	default:
		scores = DegreeCentrality(in.members, in.edges)
	}
	ranked := rankByScore(in.members, scores)

	var b strings.Builder
	b.WriteString(entitiesHeader)

	included := make(map[string]struct{}, len(ranked))
	truncated := false
	for i, id := range ranked {
		line := nodeLine(in.nodeFor(id)) + "\n"
		if maxSize > 0 && b.Len()+len(line) > maxSize {
			if i == 0 {
				// Keep a clipped first line rather than an empty payload.
				b.WriteString(clip(line, maxSize-b.Len()))
				included[id] = struct{}{}
			}
			truncated = true
			break
		}
		b.WriteString(line)
		included[id] = struct{}{}
	}

	edges := make([]Edge, 0, len(in.edges))
	for _, e := range in.edges {
		_, okS := included[e.Source]
		_, okT := included[e.Target]
		if okS && okT {
			edges = append(edges, e)
		}
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		return edges[i].EdgeID() < edges[j].EdgeID()
	})

	for i, e := range edges {
		line := in.edgeLine(e) + "\n"
		need := len(line)
		if i == 0 {
			need += len(relationshipsHeader)
		}
		if maxSize > 0 && b.Len()+need > maxSize {
			truncated = true
			break
		}
		if i == 0 {
			b.WriteString(relationshipsHeader)
		}
		b.WriteString(line)
	}

	return strings.TrimRight(b.String(), "\n"), truncated
}

func (in payloadInput) nodeFor(id string) Node {
	if n, ok := in.nodes[id]; ok {
		return n
	}
	return Node{ID: id}
}

func (in payloadInput) displayName(id string) string {
	if n, ok := in.nodes[id]; ok && n.Name != "" {
		return n.Name
	}
	return id
}

// nodeLine renders "- name (type): description; k=v, k=v".
func nodeLine(n Node) string {
	var b strings.Builder
	b.WriteString("- ")
	if n.Name != "" {
		b.WriteString(n.Name)
	} else {
		b.WriteString(n.ID)
	}
	if n.Type != "" {
		fmt.Fprintf(&b, " (%s)", n.Type)
	}
	if n.Description != "" {
		b.WriteString(": ")
		b.WriteString(n.Description)
	}
	if len(n.Properties) > 0 {
		keys := make([]string, 0, len(n.Properties))
		for k := range n.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		props := make([]string, len(keys))
		for i, k := range keys {
			props[i] = fmt.Sprintf("%s=%v", k, n.Properties[k])
		}
		b.WriteString("; ")
		b.WriteString(strings.Join(props, ", "))
	}
	return b.String()
}

// edgeLine renders "- source -[type]-> target: description".
func (in payloadInput) edgeLine(e Edge) string {
	relation := e.Type
	if relation == "" {
		relation = "related_to"
	}
	line := fmt.Sprintf("- %s -[%s]-> %s", in.displayName(e.Source), relation, in.displayName(e.Target))
	if e.Description != "" {
		line += ": " + e.Description
	}
	return line
}

// clip cuts s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
