package engine

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/user/credit-sentinel/pkg/covenant"
)

//go:embed rules/default.yaml
var defaultRulePack []byte

// Bound says which side of the threshold a covenant protects
type Bound string

const (
	BoundCeiling Bound = "ceiling"
	BoundFloor   Bound = "floor"
)

// Operator maps the bound to the comparison operator of the covenant
func (b Bound) Operator() (covenant.Operator, error) {
	switch b {
	case BoundCeiling:
		return covenant.OpLessEqual, nil
	case BoundFloor:
		return covenant.OpGreaterEqual, nil
	}
	return "", fmt.Errorf("unknown bound %q", b)
}

// RuleSpec is a single extraction rule as written in a rule pack
type RuleSpec struct {
	Name     string            `yaml:"name"`
	Category covenant.Category `yaml:"category"`
	Bound    Bound             `yaml:"bound"`
	Pattern  string            `yaml:"pattern"`
}

// RulePack groups extraction rules loaded from one YAML document
type RulePack struct {
	Pack        string     `yaml:"pack"`
	Description string     `yaml:"description"`
	Rules       []RuleSpec `yaml:"rules"`
}

// Rule is a compiled extraction rule
type Rule struct {
	Name     string
	Category covenant.Category
	Operator covenant.Operator
	re       *regexp.Regexp
}

// ParseRulePack decodes a YAML rule pack
func ParseRulePack(data []byte) (RulePack, error) {
	var p RulePack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return RulePack{}, err
	}
	return p, nil
}

// Compile turns the pack's rules into matchers, in declaration order.
// Patterns are matched case-insensitively and must have a capture group for
// the threshold.
func (p RulePack) Compile() ([]Rule, error) {
	rules := make([]Rule, 0, len(p.Rules))
	for _, spec := range p.Rules {
		if spec.Name == "" {
			return nil, fmt.Errorf("pack %s: rule without name", p.Pack)
		}
		op, err := spec.Bound.Operator()
		if err != nil {
			return nil, fmt.Errorf("pack %s, rule %s: %w", p.Pack, spec.Name, err)
		}
		re, err := regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pack %s, rule %s: %w", p.Pack, spec.Name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("pack %s, rule %s: pattern has no threshold capture group", p.Pack, spec.Name)
		}
		category := spec.Category
		if category == "" {
			category = covenant.CategoryFinancial
		}
		rules = append(rules, Rule{Name: spec.Name, Category: category, Operator: op, re: re})
	}
	return rules, nil
}

// DefaultRules returns the compiled built-in rule pack
func DefaultRules() []Rule {
	p, err := ParseRulePack(defaultRulePack)
	if err != nil {
		panic(fmt.Sprintf("built-in rule pack: %v", err))
	}
	rules, err := p.Compile()
	if err != nil {
		panic(fmt.Sprintf("built-in rule pack: %v", err))
	}
	return rules
}

// LoadRulePacks reads every .yaml/.yml pack in dir, in file-name order, and
// returns their compiled rules.
func LoadRulePacks(dir string) ([]Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var rules []Rule
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		p, err := ParseRulePack(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		compiled, err := p.Compile()
		if err != nil {
			return nil, err
		}
		rules = append(rules, compiled...)
	}
	return rules, nil
}
