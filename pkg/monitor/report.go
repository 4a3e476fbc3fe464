package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/user/credit-sentinel/pkg/covenant"
	"github.com/user/credit-sentinel/pkg/engine"
)

// Line is the evaluation of one covenant against its computed ratio
type Line struct {
	Name         string            `json:"name"`
	Status       covenant.Status   `json:"status"`
	CurrentValue float64           `json:"current_value"`
	Threshold    float64           `json:"threshold"`
	Operator     covenant.Operator `json:"operator"`
	Explanation  string            `json:"explanation"`
}

// Report is the outcome of one analysis of a loan
type Report struct {
	ID          string            `json:"id"`
	LoanID      string            `json:"loan_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Ratios      covenant.RatioSet `json:"ratios"`
	Lines       []Line            `json:"lines"`
	Unmatched   []string          `json:"unmatched,omitempty"`
}

// Match evaluates every definition whose name has a computed ratio, in
// definition order. Definitions without a ratio produce no line; their names
// are returned in unmatched.
func Match(defs []covenant.Definition, ratios covenant.RatioSet) (lines []Line, unmatched []string) {
	lines = make([]Line, 0, len(defs))
	for _, def := range defs {
		value, ok := ratios[def.Name]
		if !ok {
			unmatched = append(unmatched, def.Name)
			continue
		}
		res := engine.Evaluate(def, value)
		lines = append(lines, Line{
			Name:         def.Name,
			Status:       res.Status,
			CurrentValue: res.CurrentValue,
			Threshold:    res.Threshold,
			Operator:     def.Operator,
			Explanation:  engine.Explain(def, res),
		})
	}
	return lines, unmatched
}

// Worst returns the most severe status in the report, Compliant when empty
func (r Report) Worst() covenant.Status {
	worst := covenant.StatusCompliant
	for _, l := range r.Lines {
		if l.Status.Severity() > worst.Severity() {
			worst = l.Status
		}
	}
	return worst
}

// Counts returns how many lines carry each status
func (r Report) Counts() map[covenant.Status]int {
	counts := make(map[covenant.Status]int, 3)
	for _, l := range r.Lines {
		counts[l.Status]++
	}
	return counts
}

// Text renders the report for terminals and logs
func (r Report) Text() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Covenant Report %s for loan %s (%s):\n", r.ID, r.LoanID, r.GeneratedAt.UTC().Format(time.RFC3339)))
	sb.WriteString("--------------------------------------------------\n")

	names := make([]string, 0, len(r.Ratios))
	for name := range r.Ratios {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("  %-20s %s\n", name, formatValue(r.Ratios[name])))
	}
	sb.WriteString("\n")

	for _, l := range r.Lines {
		sb.WriteString(fmt.Sprintf("[%s] %s: %s (required %s %s)\n", strings.ToUpper(string(l.Status)), l.Name,
			formatValue(l.CurrentValue), l.Operator, formatValue(l.Threshold)))
		sb.WriteString(fmt.Sprintf("  %s\n", l.Explanation))
	}
	if len(r.Unmatched) > 0 {
		sb.WriteString(fmt.Sprintf("\nNot evaluated (no ratio available): %s\n", strings.Join(r.Unmatched, ", ")))
	}

	c := r.Counts()
	sb.WriteString(fmt.Sprintf("\nOverall: %s (%d compliant, %d warning, %d breach)\n", r.Worst(),
		c[covenant.StatusCompliant], c[covenant.StatusWarning], c[covenant.StatusBreach]))
	return sb.String()
}

// Change is a covenant present in both reports of a comparison
type Change struct {
	Name   string          `json:"name"`
	From   covenant.Status `json:"from"`
	To     covenant.Status `json:"to"`
	Before float64         `json:"before"`
	After  float64         `json:"after"`
}

// Diff groups the covenant changes between two reports
type Diff struct {
	Worsened  []Change `json:"worsened"`
	Improved  []Change `json:"improved"`
	Unchanged []Change `json:"unchanged"`
	Added     []Line   `json:"added"`
	Removed   []Line   `json:"removed"`
}

// Compare classifies each covenant of current against baseline by status
// severity. Lines are keyed by covenant name.
func Compare(baseline, current Report) Diff {
	var d Diff
	before := make(map[string]Line, len(baseline.Lines))
	for _, l := range baseline.Lines {
		before[l.Name] = l
	}

	seen := make(map[string]bool, len(current.Lines))
	for _, l := range current.Lines {
		seen[l.Name] = true
		old, ok := before[l.Name]
		if !ok {
			d.Added = append(d.Added, l)
			continue
		}
		c := Change{Name: l.Name, From: old.Status, To: l.Status, Before: old.CurrentValue, After: l.CurrentValue}
		switch {
		case l.Status.Severity() > old.Status.Severity():
			d.Worsened = append(d.Worsened, c)
		case l.Status.Severity() < old.Status.Severity():
			d.Improved = append(d.Improved, c)
		default:
			d.Unchanged = append(d.Unchanged, c)
		}
	}

	for _, l := range baseline.Lines {
		if !seen[l.Name] {
			d.Removed = append(d.Removed, l)
		}
	}
	return d
}

// Text renders the comparison
func (d Diff) Text() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("WORSENED: %d\n", len(d.Worsened)))
	for _, c := range d.Worsened {
		sb.WriteString(fmt.Sprintf("  [+] %s: %s -> %s (%s -> %s)\n", c.Name, c.From, c.To, formatValue(c.Before), formatValue(c.After)))
	}
	sb.WriteString(fmt.Sprintf("IMPROVED: %d\n", len(d.Improved)))
	for _, c := range d.Improved {
		sb.WriteString(fmt.Sprintf("  [-] %s: %s -> %s (%s -> %s)\n", c.Name, c.From, c.To, formatValue(c.Before), formatValue(c.After)))
	}
	sb.WriteString(fmt.Sprintf("UNCHANGED: %d\n", len(d.Unchanged)))
	for _, c := range d.Unchanged {
		sb.WriteString(fmt.Sprintf("  [=] %s: %s (%s -> %s)\n", c.Name, c.To, formatValue(c.Before), formatValue(c.After)))
	}
	if len(d.Added) > 0 {
		sb.WriteString(fmt.Sprintf("NEWLY EVALUATED: %d\n", len(d.Added)))
		for _, l := range d.Added {
			sb.WriteString(fmt.Sprintf("  [*] %s: %s\n", l.Name, l.Status))
		}
	}
	if len(d.Removed) > 0 {
		sb.WriteString(fmt.Sprintf("NO LONGER EVALUATED: %d\n", len(d.Removed)))
		for _, l := range d.Removed {
			sb.WriteString(fmt.Sprintf("  [x] %s (was %s)\n", l.Name, l.Status))
		}
	}
	return sb.String()
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
