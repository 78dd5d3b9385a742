// Package classifier maps news items to importance tiers using an ordered,
// data-driven keyword rule table. Classification is pure and deterministic:
// the same (title, body) pair always yields the same tier.
package classifier

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"marketpulse/internal/domain/entity"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule is a single classification rule. Keywords must contain at least one
// match; if Requires is non-empty, it must independently match as well
// (e.g. a named person AND an urgency marker).
type Rule struct {
	Tier     entity.ImportanceTier `yaml:"tier"`
	Keywords []string              `yaml:"keywords"`
	Requires []string              `yaml:"requires"`
}

// ruleFile is the on-disk shape of a rule table.
type ruleFile struct {
	Rules   []Rule                `yaml:"rules"`
	Default entity.ImportanceTier `yaml:"default"`
}

// Classifier evaluates rules in declaration order; the first match wins.
type Classifier struct {
	rules       []Rule
	defaultTier entity.ImportanceTier
}

// New returns a classifier using the embedded default rule table.
func New() *Classifier {
	c, err := parse(defaultRulesYAML)
	if err != nil {
		// The embedded table is validated by tests; a parse failure here is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("classifier: embedded rules invalid: %v", err))
	}
	return c
}

// Load reads a rule table from the given YAML file. Used to override the
// embedded defaults via configuration.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Classifier, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules table is empty")
	}
	if f.Default == "" {
		f.Default = entity.TierMedium
	}
	if !f.Default.Valid() {
		return nil, fmt.Errorf("unknown default tier %q", f.Default)
	}
	for i, r := range f.Rules {
		if !r.Tier.Valid() {
			return nil, fmt.Errorf("rule %d: unknown tier %q", i, r.Tier)
		}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("rule %d (%s): no keywords", i, r.Tier)
		}
	}
	// Keywords are lowercased once so Classify only lowercases the input.
	rules := make([]Rule, len(f.Rules))
	for i, r := range f.Rules {
		rules[i] = Rule{
			Tier:     r.Tier,
			Keywords: lowerAll(r.Keywords),
			Requires: lowerAll(r.Requires),
		}
	}
	return &Classifier{rules: rules, defaultTier: f.Default}, nil
}

// Classify returns the importance tier for a news item. It never fails: items
// matching no rule get the default tier.
func (c *Classifier) Classify(title, body string) entity.ImportanceTier {
	text := strings.ToLower(title + " " + body)
	for _, r := range c.rules {
		if !containsAny(text, r.Keywords) {
			continue
		}
		if len(r.Requires) > 0 && !containsAny(text, r.Requires) {
			continue
		}
		return r.Tier
	}
	return c.defaultTier
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
