package plan

import (
	"fmt"
	"regexp"
	"strings"
)

// Section headers recognised in free-text planner output.  Matching is
// case-insensitive and order-independent; each section runs until the next
// recognised header or the end of the text.
var headerExpr = regexp.MustCompile(`(?i)(state\s+analysis|progress\s+evaluation|progress|evaluation|challenges|next\s+steps|reasoning)\s*:`)

var (
	numberedExpr = regexp.MustCompile(`\d+[.)]\s*`)
	bulletExpr   = regexp.MustCompile(`(?m)^\s*[-*•]\s+(.+)$`)
	stepExpr     = regexp.MustCompile(`(?i)step\s*\d+\s*:`)
)

// Normalize converts raw planner output into a Snapshot.  It accepts an
// already-structured snapshot, a loosely-typed map, or free text that gets
// parsed by section headers.  It never fails: unparseable input degrades to
// an unstructured snapshot carrying the raw text.
func Normalize(raw interface{}) *Snapshot {
	switch actual := raw.(type) {
	case nil:
		return &Snapshot{}
	case *Snapshot:
		return actual
	case Snapshot:
		return &actual
	case map[string]interface{}:
		return fromMap(actual)
	case string:
		return Parse(actual)
	default:
		return Parse(fmt.Sprintf("%v", raw))
	}
}

// Parse extracts a Snapshot from free text.  On total parse failure (no
// recognised headers) the whole text becomes the reasoning and the single
// next step.
func Parse(text string) *Snapshot {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &Snapshot{}
	}

	locations := headerExpr.FindAllStringSubmatchIndex(trimmed, -1)
	if len(locations) == 0 {
		return &Snapshot{
			NextSteps: []string{trimmed},
			Reasoning: trimmed,
		}
	}

	snapshot := &Snapshot{}
	hasNextSteps := false
	for i, loc := range locations {
		header := canonicalHeader(trimmed[loc[2]:loc[3]])
		end := len(trimmed)
		if i+1 < len(locations) {
			end = locations[i+1][0]
		}
		content := strings.TrimSpace(trimmed[loc[1]:end])
		switch header {
		case "state analysis":
			snapshot.StateAnalysis = content
		case "progress evaluation", "progress", "evaluation":
			snapshot.ProgressEvaluation = content
		case "challenges":
			snapshot.Challenges = content
		case "next steps":
			snapshot.NextSteps = extractSteps(content)
			hasNextSteps = true
		case "reasoning":
			snapshot.Reasoning = content
		}
	}
	if !hasNextSteps {
		snapshot.NextSteps = extractSteps(trimmed)
	}
	return snapshot
}

func canonicalHeader(header string) string {
	fields := strings.Fields(strings.ToLower(header))
	return strings.Join(fields, " ")
}

// extractSteps derives an ordered step list from text, preferring numbered
// items, then bulleted items, then "Step N:" items, then newline-separated
// lines, finally falling back to the whole text as a single step.
func extractSteps(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if numberedExpr.MatchString(trimmed) {
		if steps := splitBy(numberedExpr, trimmed); len(steps) > 0 {
			return steps
		}
	}
	if matches := bulletExpr.FindAllStringSubmatch(trimmed, -1); len(matches) > 0 {
		steps := make([]string, 0, len(matches))
		for _, match := range matches {
			if item := strings.TrimSpace(match[1]); item != "" {
				steps = append(steps, item)
			}
		}
		if len(steps) > 0 {
			return steps
		}
	}
	if stepExpr.MatchString(trimmed) {
		if steps := splitBy(stepExpr, trimmed); len(steps) > 0 {
			return steps
		}
	}
	if strings.Contains(trimmed, "\n") {
		var steps []string
		for _, line := range strings.Split(trimmed, "\n") {
			if item := strings.TrimSpace(line); item != "" {
				steps = append(steps, item)
			}
		}
		if len(steps) > 0 {
			return steps
		}
	}
	return []string{trimmed}
}

func splitBy(expr *regexp.Regexp, text string) []string {
	parts := expr.Split(text, -1)
	steps := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			steps = append(steps, item)
		}
	}
	return steps
}

func fromMap(values map[string]interface{}) *Snapshot {
	snapshot := &Snapshot{
		StateAnalysis:      stringValue(values, "state_analysis", "stateAnalysis"),
		ProgressEvaluation: stringValue(values, "progress_evaluation", "progressEvaluation", "evaluation"),
		Challenges:         stringValue(values, "challenges"),
		Reasoning:          stringValue(values, "reasoning"),
	}
	for _, key := range []string{"next_steps", "nextSteps"} {
		raw, ok := values[key]
		if !ok {
			continue
		}
		switch actual := raw.(type) {
		case []string:
			snapshot.NextSteps = actual
		case []interface{}:
			for _, item := range actual {
				snapshot.NextSteps = append(snapshot.NextSteps, fmt.Sprintf("%v", item))
			}
		case string:
			snapshot.NextSteps = extractSteps(actual)
		}
		break
	}
	if len(snapshot.NextSteps) == 0 && snapshot.Reasoning != "" {
		snapshot.NextSteps = extractSteps(snapshot.Reasoning)
	}
	return snapshot
}

func stringValue(values map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if raw, ok := values[key]; ok && raw != nil {
			return strings.TrimSpace(fmt.Sprintf("%v", raw))
		}
	}
	return ""
}
