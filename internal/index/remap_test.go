package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesLongestPrefixWins(t *testing.T) {
	rules := ParseRules([]string{
		"lib/=dependencies/lib/",
		"lib/special/=dependencies/special/",
	})
	root := filepath.FromSlash("/proj")

	got, ok := rules.Apply(root, "lib/special/Foo.sol", "")
	require.True(t, ok)
	assert.Equal(t, filepath.FromSlash("/proj/dependencies/special/Foo.sol"), got)

	got, ok = rules.Apply(root, "lib/other/Bar.sol", "")
	require.True(t, ok)
	assert.Equal(t, filepath.FromSlash("/proj/dependencies/lib/other/Bar.sol"), got)
}

func TestRulesOrderIndependentForLongestPrefix(t *testing.T) {
	rules := ParseRules([]string{
		"lib/special/=dependencies/special/",
		"lib/=dependencies/lib/",
	})
	r, ok := rules.Match("lib/special/Foo.sol", "")
	require.True(t, ok)
	assert.Equal(t, "lib/special/", r.Prefix)
}

func TestRulesTieBreaksOnDeclarationOrder(t *testing.T) {
	rules := ParseRules([]string{
		"@oz/=lib/openzeppelin-a/",
		"@oz/=lib/openzeppelin-b/",
	})
	r, ok := rules.Match("@oz/token/ERC20.sol", "")
	require.True(t, ok)
	assert.Equal(t, "lib/openzeppelin-a/", r.Target)
}

func TestRulesContext(t *testing.T) {
	rules := ParseRules([]string{
		"lib/a/:@oz/=lib/a/lib/oz-old/",
		"@oz/=lib/oz/",
	})
	r, ok := rules.Match("@oz/x.sol", "src/Token.sol")
	require.True(t, ok)
	assert.Equal(t, "lib/oz/", r.Target)

	r, ok = rules.Match("@oz/x.sol", "lib/a/src/Thing.sol")
	require.True(t, ok)
	assert.Equal(t, "lib/a/", r.Context)
	assert.Equal(t, "lib/a/:@oz/=lib/a/lib/oz-old/", r.String())
}

func TestParseRulesSkipsJunk(t *testing.T) {
	rules := ParseRules([]string{"", "# comment", "no-equals", "=target", "ds-test/=lib/ds-test/src/", "ds-test/=lib/ds-test/src/"})
	require.Len(t, rules, 1)
	_, ok := rules.Match("forge-std/Test.sol", "")
	assert.False(t, ok)
}
