// Package cleaner interprets the configured text-rewrite rules against
// transaction fields.
package cleaner

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/cleanab-dev/cleanab/internal/model"
)

// compiledRule is a ReplacementRule with its pattern compiled once at
// construction time.
type compiledRule struct {
	re        *regexp.Regexp
	repl      string
	literal   bool
	transform map[model.Field]string
}

// compiledStep is one chain step. A plain rule compiles to a single
// member; a fallback group keeps its members in order. Either way only
// the first matching member fires.
type compiledStep struct {
	rules []compiledRule
}

// FieldCleaner applies the pre-replacement pass, the replacement pass
// and the per-field finalizers to a record's fields. Configuration is
// read-only after New, so a single instance is safe to share across
// goroutines.
type FieldCleaner struct {
	pre        map[model.Field][]compiledStep
	main       map[model.Field][]compiledStep
	finalizers map[model.Field]model.FinalizerRule
}

// New compiles the rule configuration. A pattern that does not compile
// is reported with its field name.
func New(pre, main model.FieldRules, finalizers model.FieldFinalizers) (*FieldCleaner, error) {
	compiledPre, err := compileRules(pre)
	if err != nil {
		return nil, fmt.Errorf("pre_replacements: %w", err)
	}
	compiledMain, err := compileRules(main)
	if err != nil {
		return nil, fmt.Errorf("replacements: %w", err)
	}
	if finalizers == nil {
		finalizers = model.DefaultFinalizers()
	}
	return &FieldCleaner{
		pre:        compiledPre,
		main:       compiledMain,
		finalizers: finalizers,
	}, nil
}

func compileRules(rules model.FieldRules) (map[model.Field][]compiledStep, error) {
	out := make(map[model.Field][]compiledStep, len(rules))
	for field, chain := range rules {
		steps := make([]compiledStep, 0, len(chain))
		for i, step := range chain {
			members := step.Fallback
			if step.Rule != nil {
				members = []model.ReplacementRule{*step.Rule}
			}
			cs := compiledStep{rules: make([]compiledRule, 0, len(members))}
			for _, rule := range members {
				cr, err := compileRule(rule)
				if err != nil {
					return nil, fmt.Errorf("%s, step %d: %w", field, i+1, err)
				}
				cs.rules = append(cs.rules, cr)
			}
			steps = append(steps, cs)
		}
		out[field] = steps
	}
	return out, nil
}

func compileRule(rule model.ReplacementRule) (compiledRule, error) {
	pattern := rule.Pattern
	if !rule.Regex {
		pattern = regexp.QuoteMeta(pattern)
	}
	if rule.CaseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return compiledRule{}, fmt.Errorf("pattern %q: %w", rule.Pattern, err)
	}
	return compiledRule{
		re:        re,
		repl:      rule.Repl,
		literal:   !rule.Regex,
		transform: rule.Transform,
	}, nil
}

// Clean runs both passes and the finalizers over the given fields and
// returns a new map; the input is not modified.
func (c *FieldCleaner) Clean(fields map[model.Field]string) map[model.Field]string {
	out := make(map[model.Field]string, len(fields))
	for field, value := range fields {
		out[field] = value
	}

	applyPass(out, c.pre)
	applyPass(out, c.main)

	for _, field := range model.CleanedFields {
		fin, ok := c.finalizers[field]
		if !ok {
			continue
		}
		value, ok := out[field]
		if !ok {
			continue
		}
		if fin.Strip {
			value = strings.TrimSpace(value)
		}
		if fin.Capitalize {
			value = capitalize(value)
		}
		out[field] = value
	}
	return out
}

// applyPass walks the fields in declaration order so cross-field
// transforms behave deterministically.
func applyPass(fields map[model.Field]string, pass map[model.Field][]compiledStep) {
	for _, field := range model.CleanedFields {
		steps, ok := pass[field]
		if !ok {
			continue
		}
		value, ok := fields[field]
		if !ok {
			continue
		}
		for _, step := range steps {
			value = applyStep(fields, value, step)
		}
		fields[field] = value
	}
}

// applyStep fires the first matching rule of the step and returns the
// rewritten value. Transform entries rewrite other fields in place.
func applyStep(fields map[model.Field]string, value string, step compiledStep) string {
	for _, rule := range step.rules {
		match := rule.re.FindStringSubmatchIndex(value)
		if match == nil {
			continue
		}

		for target, template := range rule.transform {
			if rule.literal {
				fields[target] = template
			} else {
				fields[target] = string(rule.re.ExpandString(nil, template, value, match))
			}
		}

		if rule.literal {
			return rule.re.ReplaceAllLiteralString(value, rule.repl)
		}
		return rule.re.ReplaceAllString(value, rule.repl)
	}
	return value
}

// capitalize upper-cases the first rune only, leaving the rest as-is.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
