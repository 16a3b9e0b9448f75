package llm

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/c360/semcommunity/errors"
)

// StatisticalGenerator derives a summary from the community listing in the
// prompt using term frequencies and entity types. It needs no external
// service and always produces the same text for the same prompt.
type StatisticalGenerator struct {
	// MaxKeywords limits the number of themes named
	MaxKeywords int

	// MaxRepEntities limits the number of central entities named
	MaxRepEntities int

	// MaxTypes limits the number of entity types named
	MaxTypes int
}

// NewStatisticalGenerator creates a statistical generator with default settings
func NewStatisticalGenerator() *StatisticalGenerator {
	return &StatisticalGenerator{
		MaxKeywords:    5,
		MaxRepEntities: 3,
		MaxTypes:       3,
	}
}

var (
	// "- Name (type): description; key=value, key=value"
	entityLinePattern = regexp.MustCompile(`^- (.+?)(?: \(([^)]*)\))?(?:: (.*?))?(?:; (.*))?$`)

	// "(level 1, 42 entities"
	entityCountPattern = regexp.MustCompile(`\(level \d+, (\d+) entities`)
)

// listedEntity is one line of the prompt's entity listing.
type listedEntity struct {
	name        string
	typ         string
	description string
	properties  string
}

// Generate summarizes the entity listing found in prompt. Entities are
// listed most central first, so the leading names are reported as central.
func (s *StatisticalGenerator) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	entities := parseEntities(prompt)
	if len(entities) == 0 {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "StatisticalGenerator", "Generate",
			"prompt lists no entities")
	}

	total := len(entities)
	if m := entityCountPattern.FindStringSubmatch(prompt); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > total {
			total = n
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Community of %d entities", total)

	if types := s.topTypes(entities); len(types) > 0 {
		b.WriteString(" including ")
		b.WriteString(strings.Join(types, ", "))
	}

	rep := make([]string, 0, s.MaxRepEntities)
	for i := 0; i < len(entities) && i < s.MaxRepEntities; i++ {
		rep = append(rep, entities[i].name)
	}
	b.WriteString(". Central entities: ")
	b.WriteString(strings.Join(rep, ", "))

	if keywords := s.extractKeywords(entities); len(keywords) > 0 {
		b.WriteString(". Key themes: ")
		b.WriteString(strings.Join(keywords, ", "))
	}
	b.WriteString(".")

	if n := countChildSummaries(contextText); n > 0 {
		fmt.Fprintf(&b, " Contains %d sub-communities.", n)
	}

	return b.String(), nil
}

// parseEntities reads the lines of the "Entities:" section.
func parseEntities(prompt string) []listedEntity {
	var out []listedEntity
	inSection := false
	for _, line := range strings.Split(prompt, "\n") {
		switch {
		case line == "Entities:":
			inSection = true
			continue
		case !strings.HasPrefix(line, "- "):
			inSection = false
			continue
		case !inSection:
			continue
		}

		m := entityLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, listedEntity{name: m[1], typ: m[2], description: m[3], properties: m[4]})
	}
	return out
}

// topTypes returns "<count> <type>" phrases, most frequent first.
func (s *StatisticalGenerator) topTypes(entities []listedEntity) []string {
	counts := make(map[string]int)
	for _, e := range entities {
		if e.typ == "" {
			continue
		}
		// "robotics.drone" -> "drone"
		parts := strings.Split(e.typ, ".")
		counts[parts[len(parts)-1]]++
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return types[i] < types[j]
	})
	if len(types) > s.MaxTypes {
		types = types[:s.MaxTypes]
	}

	out := make([]string, len(types))
	for i, t := range types {
		out[i] = fmt.Sprintf("%d %s", counts[t], t)
		if counts[t] > 1 {
			out[i] += "s"
		}
	}
	return out
}

// extractKeywords ranks terms from entity types, descriptions and
// properties by frequency.
func (s *StatisticalGenerator) extractKeywords(entities []listedEntity) []string {
	termFreq := make(map[string]int)
	for _, e := range entities {
		for _, part := range strings.Split(e.typ, ".") {
			for _, term := range extractTerms(part) {
				termFreq[term]++
			}
		}
		for _, term := range extractTerms(e.description) {
			termFreq[term]++
		}
		for _, term := range extractTerms(e.properties) {
			termFreq[term]++
		}
	}

	type termScore struct {
		term  string
		score float64
	}
	scores := make([]termScore, 0, len(termFreq))
	n := float64(len(entities))
	for term, freq := range termFreq {
		tf := float64(freq) / n
		scores = append(scores, termScore{term: term, score: tf * math.Log(1.0+float64(freq))})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].term < scores[j].term
	})

	limit := min(s.MaxKeywords, len(scores))
	keywords := make([]string, limit)
	for i := 0; i < limit; i++ {
		keywords[i] = scores[i].term
	}
	return keywords
}

// countChildSummaries counts "[id] text" blocks in the child context.
func countChildSummaries(contextText string) int {
	n := 0
	for _, block := range strings.Split(contextText, "\n\n") {
		if strings.HasPrefix(block, "[") && strings.Contains(block, "] ") {
			n++
		}
	}
	return n
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "has": true, "have": true, "had": true, "do": true,
	"does": true, "did": true, "will": true, "would": true, "could": true, "should": true,
	"true": true, "false": true,
}

// extractTerms splits text into lowercase terms of at least three
// characters, dropping stop words
func extractTerms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})

	terms := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) >= 3 && !stopWords[word] {
			terms = append(terms, word)
		}
	}
	return terms
}
