// Package rules holds the statutory publication templates, keyed by
// jurisdiction and notice reason.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"townbox/internal/domain"
)

//go:embed templates.yml
var defaultTemplates []byte

// ErrRuleNotFound matches every *RuleNotFoundError via errors.Is.
var ErrRuleNotFound = errors.New("publication rule not found")

type RuleNotFoundError struct {
	Jurisdiction string
	Reason       domain.NoticeReason
}

func (e *RuleNotFoundError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("no publication rules for jurisdiction %s", e.Jurisdiction)
	}
	return fmt.Sprintf("no publication rule for %s in jurisdiction %s", e.Reason, e.Jurisdiction)
}

func (e *RuleNotFoundError) Is(target error) bool {
	return target == ErrRuleNotFound
}

// Lookup resolves the rule for one notice reason.
type Lookup interface {
	Lookup(reason domain.NoticeReason) (domain.PublicationRule, error)
}

// Set is the rule table of a single jurisdiction.
type Set struct {
	Jurisdiction string
	rules        map[domain.NoticeReason]domain.PublicationRule
}

func (s Set) Lookup(reason domain.NoticeReason) (domain.PublicationRule, error) {
	rule, ok := s.rules[reason]
	if !ok {
		return domain.PublicationRule{}, &RuleNotFoundError{Jurisdiction: s.Jurisdiction, Reason: reason}
	}
	rule.RequiredChannels = append([]domain.NoticeChannel(nil), rule.RequiredChannels...)
	return rule, nil
}

// Reasons lists the notice reasons known to the set, sorted.
func (s Set) Reasons() []domain.NoticeReason {
	out := make([]domain.NoticeReason, 0, len(s.rules))
	for r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Override adjusts the parameters of an existing rule. Nil fields keep the template value.
type Override struct {
	RequiredPublications *int  `yaml:"required_publications,omitempty" json:"required_publications,omitempty"`
	RequiredLeadDays     *int  `yaml:"required_lead_days,omitempty" json:"required_lead_days,omitempty"`
	MustBeConsecutive    *bool `yaml:"must_be_consecutive,omitempty" json:"must_be_consecutive,omitempty"`
}

// WithOverrides returns a copy of s with the overrides applied. Overrides
// may only tune reasons the template already defines.
func (s Set) WithOverrides(overrides map[domain.NoticeReason]Override) (Set, error) {
	out := Set{Jurisdiction: s.Jurisdiction, rules: make(map[domain.NoticeReason]domain.PublicationRule, len(s.rules))}
	for k, v := range s.rules {
		out.rules[k] = v
	}
	for reason, o := range overrides {
		rule, ok := out.rules[reason]
		if !ok {
			return Set{}, &RuleNotFoundError{Jurisdiction: s.Jurisdiction, Reason: reason}
		}
		if o.RequiredPublications != nil {
			rule.RequiredPublications = *o.RequiredPublications
		}
		if o.RequiredLeadDays != nil {
			rule.RequiredLeadDays = *o.RequiredLeadDays
		}
		if o.MustBeConsecutive != nil {
			rule.MustBeConsecutive = *o.MustBeConsecutive
		}
		if err := validateRule(rule); err != nil {
			return Set{}, err
		}
		out.rules[reason] = rule
	}
	return out, nil
}

type Registry struct {
	sets map[string]Set
}

type templateFile struct {
	Jurisdictions map[string]map[domain.NoticeReason]domain.PublicationRule `yaml:"jurisdictions"`
}

// Default parses the embedded statutory templates.
func Default() (*Registry, error) {
	return Parse(defaultTemplates)
}

// Parse builds a registry from template YAML.
func Parse(data []byte) (*Registry, error) {
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("invalid rule templates: %w", err)
	}
	if len(tf.Jurisdictions) == 0 {
		return nil, errors.New("rule templates define no jurisdictions")
	}
	reg := &Registry{sets: make(map[string]Set, len(tf.Jurisdictions))}
	for code, table := range tf.Jurisdictions {
		code = strings.ToUpper(strings.TrimSpace(code))
		set := Set{Jurisdiction: code, rules: make(map[domain.NoticeReason]domain.PublicationRule, len(table))}
		for reason, rule := range table {
			rule.Reason = reason
			if err := validateRule(rule); err != nil {
				return nil, fmt.Errorf("jurisdiction %s: %w", code, err)
			}
			set.rules[reason] = rule
		}
		reg.sets[code] = set
	}
	return reg, nil
}

// Jurisdiction returns the rule set for a jurisdiction code such as "IN".
func (r *Registry) Jurisdiction(code string) (Set, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	set, ok := r.sets[code]
	if !ok {
		return Set{}, &RuleNotFoundError{Jurisdiction: code}
	}
	return set, nil
}

func validateRule(rule domain.PublicationRule) error {
	if rule.RequiredPublications < 0 {
		return fmt.Errorf("rule %s: required_publications must be >= 0", rule.Reason)
	}
	if rule.RequiredLeadDays < 0 {
		return fmt.Errorf("rule %s: required_lead_days must be >= 0", rule.Reason)
	}
	return nil
}
