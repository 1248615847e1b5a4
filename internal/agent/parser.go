package agent

import (
	"fmt"
	"regexp"
	"strings"
)

// DecisionKind is what the parser made of one model completion.
type DecisionKind int

const (
	DecisionUnparseable DecisionKind = iota
	DecisionAction
	DecisionFinalAnswer
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionAction:
		return "action"
	case DecisionFinalAnswer:
		return "final_answer"
	default:
		return "unparseable"
	}
}

// Decision is the parsed next move of the model.
type Decision struct {
	Kind    DecisionKind
	Thought string
	Tool    string // DecisionAction
	Input   string // DecisionAction
	Answer  string // DecisionFinalAnswer
	Reason  string // DecisionUnparseable
}

type markerKind int

const (
	markThought markerKind = iota
	markAction
	markActionInput
	markObservation
	markFinalAnswer
)

// markerRe matches one scaffold line. Tolerates leading bullets/quotes and
// markdown emphasis around the label, e.g. "- **Action:** Calculator".
var markerRe = regexp.MustCompile(`(?i)^\s*(?:[-*>#]+\s*)?(?:\*\*|__)?\s*(final\s+answer|action\s+input|action|observation|thought)\s*(?:\*\*|__)?\s*:\s*(?:\*\*|__)?\s*(.*?)\s*$`)

type marker struct {
	line int
	kind markerKind
	rest string
}

func classify(label string) markerKind {
	switch strings.Join(strings.Fields(strings.ToLower(label)), " ") {
	case "final answer":
		return markFinalAnswer
	case "action input":
		return markActionInput
	case "action":
		return markAction
	case "observation":
		return markObservation
	default:
		return markThought
	}
}

func scanMarkers(lines []string) []marker {
	var out []marker
	for i, ln := range lines {
		m := markerRe.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		out = append(out, marker{line: i, kind: classify(m[1]), rest: m[2]})
	}
	return out
}

// Parse extracts the next action or the final answer from raw model output.
//
// The segment after the last Observation line is searched first, since models
// often echo the transcript back; the whole output is the fallback. Within a
// segment the first FinalAnswer or complete Action/Action Input pair wins.
func Parse(output string) Decision {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	markers := scanMarkers(lines)

	lastObs := -1
	for i, m := range markers {
		if m.kind == markObservation {
			lastObs = i
		}
	}

	if lastObs >= 0 {
		if d, ok := decide(lines, markers, lastObs+1, markers[lastObs].line+1); ok {
			return d
		}
	}
	if d, ok := decide(lines, markers, 0, 0); ok {
		return d
	}

	reason := "no Action or Final Answer found"
	if r := incompleteReason(markers); r != "" {
		reason = r
	}
	if strings.TrimSpace(output) == "" {
		reason = "empty output"
	}
	return Decision{Kind: DecisionUnparseable, Reason: reason}
}

// decide walks markers[from:] and returns the first terminal decision.
// startLine is where thought text for this segment begins.
func decide(lines []string, markers []marker, from, startLine int) (Decision, bool) {
	for i := from; i < len(markers); i++ {
		m := markers[i]
		switch m.kind {
		case markFinalAnswer:
			end := len(lines)
			if i+1 < len(markers) {
				end = markers[i+1].line
			}
			answer := joinBlock(m.rest, lines[m.line+1:end])
			if answer == "" {
				continue
			}
			return Decision{
				Kind:    DecisionFinalAnswer,
				Thought: thoughtBefore(lines, startLine, m.line),
				Answer:  answer,
			}, true

		case markAction:
			tool := trimQuotes(m.rest)
			if tool == "" || i+1 >= len(markers) || markers[i+1].kind != markActionInput {
				continue
			}
			in := markers[i+1]
			end := len(lines)
			if i+2 < len(markers) {
				end = markers[i+2].line
			}
			return Decision{
				Kind:    DecisionAction,
				Thought: thoughtBefore(lines, startLine, m.line),
				Tool:    tool,
				Input:   cleanInput(inputBlock(in.rest, lines[in.line+1:end])),
			}, true
		}
	}
	return Decision{}, false
}

func incompleteReason(markers []marker) string {
	for i, m := range markers {
		if m.kind != markAction {
			continue
		}
		if strings.TrimSpace(m.rest) == "" {
			return "Action has an empty tool name"
		}
		if i+1 >= len(markers) || markers[i+1].kind != markActionInput {
			return fmt.Sprintf("Action %q is missing an Action Input", trimQuotes(m.rest))
		}
	}
	for _, m := range markers {
		if m.kind == markActionInput {
			return "Action Input without a preceding Action"
		}
	}
	return ""
}

// thoughtBefore collects free text between startLine and line, dropping the
// "Thought:" label itself.
func thoughtBefore(lines []string, startLine, line int) string {
	if startLine > line {
		return ""
	}
	var parts []string
	for _, ln := range lines[startLine:line] {
		if m := markerRe.FindStringSubmatch(ln); m != nil {
			if classify(m[1]) != markThought {
				continue
			}
			ln = m[2]
		}
		if s := strings.TrimSpace(ln); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func joinBlock(first string, rest []string) string {
	all := append([]string{first}, rest...)
	return strings.TrimSpace(strings.Join(all, "\n"))
}

// inputBlock returns the Action Input text. A complete single-line input
// stands alone; an empty or unbalanced first line (a JSON payload spread
// over several lines) absorbs the following lines.
func inputBlock(first string, rest []string) string {
	if first != "" && balanced(first) {
		return first
	}
	return joinBlock(first, rest)
}

func balanced(s string) bool {
	if strings.Count(s, "```")%2 != 0 {
		return false
	}
	depth := 0
	for _, r := range s {
		switch r {
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		}
	}
	return depth <= 0
}

// cleanInput strips a surrounding code fence or one pair of quotes.
func cleanInput(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) >= 6 {
		body := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], " {[(") {
			body = body[nl+1:]
		}
		return strings.TrimSpace(body)
	}
	return trimQuotes(s)
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
