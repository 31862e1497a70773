package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Field names a transaction field the cleaner may rewrite.
type Field string

const (
	FieldPurpose       Field = "purpose"
	FieldApplicantName Field = "applicant_name"
)

// CleanedFields lists every field the cleaner knows about.
var CleanedFields = []Field{FieldPurpose, FieldApplicantName}

// Valid reports whether f is a known cleanable field.
func (f Field) Valid() bool {
	for _, known := range CleanedFields {
		if f == known {
			return true
		}
	}
	return false
}

// ReplacementRule is one text-rewrite rule. Pattern is a regular
// expression unless Regex is false, in which case it is matched as a
// literal substring. Transform entries additionally assign the given
// replacement (expanded against the same match) to another field when
// this rule fires.
type ReplacementRule struct {
	Pattern         string           `yaml:"pattern"`
	Repl            string           `yaml:"repl"`
	CaseInsensitive bool             `yaml:"case_insensitive"`
	Regex           bool             `yaml:"regex"`
	Transform       map[Field]string `yaml:"transform,omitempty"`
}

// UnmarshalYAML accepts either a bare pattern string or a full mapping.
// CaseInsensitive and Regex default to true.
func (r *ReplacementRule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var pattern string
		if err := node.Decode(&pattern); err != nil {
			return err
		}
		if pattern == "" {
			return fmt.Errorf("line %d: empty rule pattern", node.Line)
		}
		*r = ReplacementRule{Pattern: pattern, CaseInsensitive: true, Regex: true}
		return nil
	}

	type plain struct {
		Pattern         string           `yaml:"pattern"`
		Repl            string           `yaml:"repl"`
		CaseInsensitive *bool            `yaml:"case_insensitive"`
		Regex           *bool            `yaml:"regex"`
		Transform       map[Field]string `yaml:"transform"`
	}
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	if p.Pattern == "" {
		return fmt.Errorf("line %d: rule is missing a pattern", node.Line)
	}
	for field := range p.Transform {
		if !field.Valid() {
			return fmt.Errorf("line %d: transform targets unknown field %q", node.Line, field)
		}
	}

	r.Pattern = p.Pattern
	r.Repl = p.Repl
	r.Transform = p.Transform
	r.CaseInsensitive = p.CaseInsensitive == nil || *p.CaseInsensitive
	r.Regex = p.Regex == nil || *p.Regex
	return nil
}

// RuleStep is one step of a rule chain: either a single rule that is
// always evaluated, or a fallback group where only the first matching
// member applies.
type RuleStep struct {
	Rule     *ReplacementRule
	Fallback []ReplacementRule
}

// UnmarshalYAML maps a sequence node to a fallback group and anything
// else to a plain rule. Groups cannot nest.
func (s *RuleStep) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		for _, item := range node.Content {
			if item.Kind == yaml.SequenceNode {
				return fmt.Errorf("line %d: fallback groups cannot contain further groups", item.Line)
			}
		}
		var group []ReplacementRule
		if err := node.Decode(&group); err != nil {
			return err
		}
		if len(group) == 0 {
			return fmt.Errorf("line %d: empty fallback group", node.Line)
		}
		s.Fallback = group
		s.Rule = nil
		return nil
	}

	var rule ReplacementRule
	if err := node.Decode(&rule); err != nil {
		return err
	}
	s.Rule = &rule
	s.Fallback = nil
	return nil
}

// RuleChain is the ordered list of steps configured for one field.
type RuleChain []RuleStep

// FieldRules maps each cleanable field to its rule chain.
type FieldRules map[Field]RuleChain

// UnmarshalYAML rejects rule chains for unknown fields at load time.
func (fr *FieldRules) UnmarshalYAML(node *yaml.Node) error {
	var m map[Field]RuleChain
	if err := node.Decode(&m); err != nil {
		return err
	}
	for field := range m {
		if !field.Valid() {
			return fmt.Errorf("line %d: rules configured for unknown field %q", node.Line, field)
		}
	}
	*fr = m
	return nil
}

// FinalizerRule is applied once per field after all replacement rules.
type FinalizerRule struct {
	Capitalize bool `yaml:"capitalize"`
	Strip      bool `yaml:"strip"`
}

// UnmarshalYAML defaults both flags to true.
func (f *FinalizerRule) UnmarshalYAML(node *yaml.Node) error {
	type plain struct {
		Capitalize *bool `yaml:"capitalize"`
		Strip      *bool `yaml:"strip"`
	}
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	f.Capitalize = p.Capitalize == nil || *p.Capitalize
	f.Strip = p.Strip == nil || *p.Strip
	return nil
}

// FieldFinalizers maps each cleanable field to its finalizer.
type FieldFinalizers map[Field]FinalizerRule

// UnmarshalYAML rejects finalizers for unknown fields at load time.
func (ff *FieldFinalizers) UnmarshalYAML(node *yaml.Node) error {
	var m map[Field]FinalizerRule
	if err := node.Decode(&m); err != nil {
		return err
	}
	for field := range m {
		if !field.Valid() {
			return fmt.Errorf("line %d: finalizer configured for unknown field %q", node.Line, field)
		}
	}
	*ff = m
	return nil
}

// DefaultFinalizers returns the finalizer set applied when the config
// does not override it: strip and capitalize every cleanable field.
func DefaultFinalizers() FieldFinalizers {
	ff := make(FieldFinalizers, len(CleanedFields))
	for _, f := range CleanedFields {
		ff[f] = FinalizerRule{Capitalize: true, Strip: true}
	}
	return ff
}
