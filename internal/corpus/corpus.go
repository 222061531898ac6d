// Package corpus loads the prompt-pattern source corpus and flattens it
// into the (group, items) tuples the pipeline operates on. The taxonomy's
// semantics are the upstream research scripts' concern; here a paper is
// just a group of texts to embed.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/timhaintz/promptembed/pkg/types"
)

// Example is one example prompt belonging to a pattern.
type Example struct {
	ID              string
	ParentPatternID string
	Text            string
}

// Pattern is one prompt pattern with its embedding text and example prompts.
type Pattern struct {
	ID       string
	Text     string
	Examples []Example
}

// Group is one paper's worth of patterns, the unit of chunking. Err is set
// when the paper's source entry is malformed; the driver records such a
// group as failed without aborting the run.
type Group struct {
	ID       string
	Title    string
	Patterns []Pattern
	Err      error
}

// Source document shape. The corpus is read-only input; unknown fields are
// ignored so taxonomy-side additions don't break the pipeline.
type sourceDoc struct {
	Papers []sourcePaper `json:"papers"`
}

type sourcePaper struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Categories []sourceCategory `json:"categories"`
}

type sourceCategory struct {
	Name     string          `json:"name"`
	Patterns []sourcePattern `json:"patterns"`
}

type sourcePattern struct {
	Name     string   `json:"name"`
	Examples []string `json:"examples"`
}

// Load reads and flattens the source corpus. A missing or unparseable file
// is the pipeline's only fatal condition and is reported as
// types.ErrSourceUnreadable; per-paper problems are carried on the
// individual Group instead.
func Load(path string) ([]Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSourceUnreadable, path, err)
	}

	var doc sourceDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSourceUnreadable, path, err)
	}

	seen := make(map[string]bool, len(doc.Papers))
	groups := make([]Group, 0, len(doc.Papers))
	for i, paper := range doc.Papers {
		group := buildGroup(paper)
		if paper.ID == "" {
			group.Err = fmt.Errorf("paper at index %d has no id", i)
		} else if seen[paper.ID] {
			group.Err = fmt.Errorf("paper id %q appears more than once", paper.ID)
		}
		seen[paper.ID] = true
		groups = append(groups, group)
	}
	return groups, nil
}

// buildGroup flattens one paper into IDs and embedding texts.
//
// Item IDs follow the "{paper}-{category}-{pattern}" convention with a
// trailing "-{example}" for example items; category and pattern components
// are positional indices, which keeps IDs stable as long as the taxonomy's
// ordering is stable.
func buildGroup(paper sourcePaper) Group {
	group := Group{ID: paper.ID, Title: paper.Title}
	for catIdx, cat := range paper.Categories {
		for patIdx, pat := range cat.Patterns {
			patternID := fmt.Sprintf("%s-%d-%d", paper.ID, catIdx, patIdx)
			pattern := Pattern{
				ID:   patternID,
				Text: PatternText(cat.Name, pat.Name),
			}
			for exIdx, text := range pat.Examples {
				pattern.Examples = append(pattern.Examples, Example{
					ID:              fmt.Sprintf("%s-%d", patternID, exIdx),
					ParentPatternID: patternID,
					Text:            text,
				})
			}
			group.Patterns = append(group.Patterns, pattern)
		}
	}
	return group
}

// PatternText composes the text submitted to the provider for a pattern.
// Examples are deliberately excluded: a pattern's hash must not change when
// only an example's text changes.
func PatternText(category, name string) string {
	return strings.TrimSpace(category + " " + name)
}

// ItemCount returns the number of embeddable items in the group.
func (g *Group) ItemCount() int {
	n := len(g.Patterns)
	for _, p := range g.Patterns {
		n += len(p.Examples)
	}
	return n
}
