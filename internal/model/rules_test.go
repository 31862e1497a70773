package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestReplacementRuleDefaults(t *testing.T) {
	var rule ReplacementRule
	err := yaml.Unmarshal([]byte(`pattern: "foo"`), &rule)
	require.NoError(t, err)

	assert.Equal(t, "foo", rule.Pattern)
	assert.Empty(t, rule.Repl)
	assert.True(t, rule.CaseInsensitive)
	assert.True(t, rule.Regex)
}

func TestReplacementRuleExplicitFlags(t *testing.T) {
	var rule ReplacementRule
	err := yaml.Unmarshal([]byte(`
pattern: "foo"
repl: "bar"
case_insensitive: false
regex: false
transform:
  applicant_name: "$1"
`), &rule)
	require.NoError(t, err)

	assert.False(t, rule.CaseInsensitive)
	assert.False(t, rule.Regex)
	assert.Equal(t, "$1", rule.Transform[FieldApplicantName])
}

func TestReplacementRuleBareString(t *testing.T) {
	var rule ReplacementRule
	err := yaml.Unmarshal([]byte(`"SEPA-.*? "`), &rule)
	require.NoError(t, err)

	assert.Equal(t, "SEPA-.*? ", rule.Pattern)
	assert.Empty(t, rule.Repl)
	assert.True(t, rule.Regex)
}

func TestReplacementRuleMissingPattern(t *testing.T) {
	var rule ReplacementRule
	err := yaml.Unmarshal([]byte(`repl: "bar"`), &rule)
	assert.ErrorContains(t, err, "missing a pattern")
}

func TestReplacementRuleUnknownTransformField(t *testing.T) {
	var rule ReplacementRule
	err := yaml.Unmarshal([]byte(`
pattern: "foo"
transform:
  memo: "bar"
`), &rule)
	assert.ErrorContains(t, err, "unknown field")
}

func TestRuleChainShapes(t *testing.T) {
	var chain RuleChain
	err := yaml.Unmarshal([]byte(`
- "bare pattern"
- pattern: "full"
  repl: "rule"
- - pattern: "first"
    repl: "a"
  - pattern: "second"
    repl: "b"
`), &chain)
	require.NoError(t, err)
	require.Len(t, chain, 3)

	require.NotNil(t, chain[0].Rule)
	assert.Equal(t, "bare pattern", chain[0].Rule.Pattern)

	require.NotNil(t, chain[1].Rule)
	assert.Equal(t, "rule", chain[1].Rule.Repl)

	assert.Nil(t, chain[2].Rule)
	require.Len(t, chain[2].Fallback, 2)
	assert.Equal(t, "first", chain[2].Fallback[0].Pattern)
	assert.Equal(t, "second", chain[2].Fallback[1].Pattern)
}

func TestRuleChainRejectsDeepNesting(t *testing.T) {
	var chain RuleChain
	err := yaml.Unmarshal([]byte(`
- - - pattern: "too deep"
`), &chain)
	assert.ErrorContains(t, err, "cannot contain further groups")
}

func TestFieldRulesRejectsUnknownField(t *testing.T) {
	var rules FieldRules
	err := yaml.Unmarshal([]byte(`
iban:
  - "foo"
`), &rules)
	assert.ErrorContains(t, err, "unknown field")
}

func TestFinalizerDefaults(t *testing.T) {
	var fin FinalizerRule
	err := yaml.Unmarshal([]byte(`{}`), &fin)
	require.NoError(t, err)
	assert.True(t, fin.Capitalize)
	assert.True(t, fin.Strip)

	err = yaml.Unmarshal([]byte(`capitalize: false`), &fin)
	require.NoError(t, err)
	assert.False(t, fin.Capitalize)
	assert.True(t, fin.Strip)
}

func TestDefaultFinalizers(t *testing.T) {
	ff := DefaultFinalizers()
	require.Len(t, ff, len(CleanedFields))
	for _, field := range CleanedFields {
		fin, ok := ff[field]
		require.True(t, ok, "missing finalizer for %s", field)
		assert.True(t, fin.Capitalize)
		assert.True(t, fin.Strip)
	}
}
