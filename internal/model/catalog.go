package model

import "strings"

// Strategic lines every contribution must target
const (
	LineCustomerSuccess       = "Customer Success"
	LineOperationalExcellence = "Operational Excellence"
	LineInnovation            = "Innovation"
	LineFinancialGrowth       = "Financial Growth"
)

// StrategicLines is the fixed set of strategic lines, in display order
var StrategicLines = []string{
	LineCustomerSuccess,
	LineOperationalExcellence,
	LineInnovation,
	LineFinancialGrowth,
}

// Expert is a fixed perspective used to challenge initiatives
type Expert struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Experts is the fixed expert panel
var Experts = []Expert{
	{ID: "exp1", Name: "Technology"},
	{ID: "exp2", Name: "Talent and Culture"},
	{ID: "exp3", Name: "Risks"},
}

// IsStrategicLine reports whether line is one of StrategicLines
func IsStrategicLine(line string) bool {
	return contains(StrategicLines, line)
}

// IsInitiativeStatus reports whether status is one of InitiativeStatuses
func IsInitiativeStatus(status string) bool {
	return contains(InitiativeStatuses, status)
}

// IsNoteKind reports whether kind is a known strategy note kind
func IsNoteKind(kind string) bool {
	return kind == NoteAlternative || kind == NoteCounterpoint
}

// FindExpert returns the expert with id
func FindExpert(id string) (Expert, bool) {
	for _, e := range Experts {
		if e.ID == id {
			return e, true
		}
	}
	return Expert{}, false
}

// SplitLines turns newline-delimited text into its trimmed, non-empty lines
func SplitLines(text string) []string {
	lines := []string{}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// CleanLines trims every entry and drops the empty ones. Entries that
// themselves contain newlines are split.
func CleanLines(items []string) []string {
	return SplitLines(strings.Join(items, "\n"))
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
