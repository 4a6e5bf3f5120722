// Package suggestion derives objective suggestions from strategic
// contributions using a keyword rule table.
package suggestion

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

const focusPlaceholder = "{{focus}}"

// ErrNoContributions is returned when there is nothing to derive suggestions from
var ErrNoContributions = errors.New("no contributions found")

// Template renders one suggestion
type Template struct {
	Objective  string   `yaml:"objective"`
	KPIs       []string `yaml:"kpis"`
	Confidence float64  `yaml:"confidence"`
}

// Rules is the rule table
type Rules struct {
	MinSuggestions int                 `yaml:"min_suggestions"`
	FocusAreas     []string            `yaml:"focus_areas"`
	Lines          map[string]Template `yaml:"lines"`
	Default        Template            `yaml:"default"`
	General        Template            `yaml:"general"`
}

// Validate checks that the table can produce suggestions
func (r Rules) Validate() error {
	if len(r.FocusAreas) == 0 {
		return errors.New("suggestion: rules need at least one focus area")
	}
	if r.Default.Objective == "" {
		return errors.New("suggestion: default template has no objective")
	}
	if r.General.Objective == "" {
		return errors.New("suggestion: general template has no objective")
	}
	for line, tpl := range r.Lines {
		if tpl.Objective == "" {
			return fmt.Errorf("suggestion: template for %q has no objective", line)
		}
	}
	return nil
}

// Contribution is the input of the engine
type Contribution struct {
	StrategicLine string
	Text          string
	Examples      []string
}

// Suggestion is a proposed objective with its KPIs
type Suggestion struct {
	StrategicLine string   `json:"strategic_line,omitempty"`
	Objective     string   `json:"objective"`
	KPIs          []string `json:"kpis"`
	Confidence    float64  `json:"confidence_score"`
	Focus         string   `json:"focus"`
}

// Engine applies a rule table
type Engine struct {
	rules Rules
	focus []string // lower-cased FocusAreas
}

// ParseRules decodes a YAML rule table
func ParseRules(data []byte) (Rules, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Rules{}, errors.New("suggestion: rules payload is empty")
	}
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("suggestion: decode rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Load builds an engine from the rule file at path, or from the built-in
// table when path is empty.
func Load(path string) (*Engine, error) {
	data := defaultRules
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("suggestion: read %s: %w", path, err)
		}
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, err
	}
	return New(rules)
}

// New builds an engine from rules
func New(rules Rules) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	focus := make([]string, len(rules.FocusAreas))
	for i, area := range rules.FocusAreas {
		focus[i] = strings.ToLower(area)
	}
	return &Engine{rules: rules, focus: focus}, nil
}

// Suggest produces one suggestion per strategic line, in the order the lines
// first appear, plus a general suggestion when that yields too few.
func (e *Engine) Suggest(contributions []Contribution) ([]Suggestion, error) {
	if len(contributions) == 0 {
		return nil, ErrNoContributions
	}

	var order []string
	texts := map[string][]string{}
	for _, c := range contributions {
		if _, seen := texts[c.StrategicLine]; !seen {
			order = append(order, c.StrategicLine)
		}
		texts[c.StrategicLine] = append(texts[c.StrategicLine], text(c))
	}

	suggestions := make([]Suggestion, 0, len(order)+1)
	for _, line := range order {
		tpl, ok := e.rules.Lines[line]
		if !ok {
			tpl = e.rules.Default
		}
		s := render(tpl, e.Focus(strings.Join(texts[line], " ")))
		s.StrategicLine = line
		suggestions = append(suggestions, s)
	}

	if len(suggestions) < e.rules.MinSuggestions {
		all := make([]string, 0, len(contributions))
		for _, c := range contributions {
			all = append(all, text(c))
		}
		suggestions = append(suggestions, render(e.rules.General, e.Focus(strings.Join(all, " "))))
	}

	return suggestions, nil
}

// Focus returns the focus area occurring most often in text, ignoring case.
// Ties and texts without any match resolve to the earliest listed area.
func (e *Engine) Focus(text string) string {
	lower := strings.ToLower(text)
	best, bestCount := 0, 0
	for i, area := range e.focus {
		if n := strings.Count(lower, area); n > bestCount {
			best, bestCount = i, n
		}
	}
	return e.rules.FocusAreas[best]
}

func text(c Contribution) string {
	return c.Text + " " + strings.Join(c.Examples, " ")
}

func render(tpl Template, focus string) Suggestion {
	kpis := make([]string, len(tpl.KPIs))
	for i, kpi := range tpl.KPIs {
		kpis[i] = strings.ReplaceAll(kpi, focusPlaceholder, focus)
	}
	return Suggestion{
		Objective:  strings.ReplaceAll(tpl.Objective, focusPlaceholder, focus),
		KPIs:       kpis,
		Confidence: tpl.Confidence,
		Focus:      focus,
	}
}
