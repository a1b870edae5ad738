package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFieldMappingPreservesOrder(t *testing.T) {
	fm, err := LoadFieldMapping(strings.NewReader("First: name\nStreet: household.address.street1\nLast: ~\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Street", "Last"}, fm.Keys)
	v, ok := fm.Value("Street")
	require.True(t, ok)
	assert.Equal(t, "household.address.street1", v)
	v, ok = fm.Value("Last")
	require.True(t, ok)
	assert.Equal(t, NullLiteral, v)
}

func TestLoadFilterSpecOrder(t *testing.T) {
	doc := "Parent.name:\n  /Street/: St\n  Oak: Elm\n  /.*/: \"$0\"\n"
	fs, err := LoadFilterSpec(strings.NewReader(doc))
	require.NoError(t, err)
	require.Contains(t, fs.Rules, "Parent.name")
	rules := fs.Rules["Parent.name"]
	assert.Equal(t, []string{"/Street/", "Oak", "/.*/"}, rules.Keys)
}

func TestLoadEmptyFilterSpec(t *testing.T) {
	fs, err := LoadFilterSpec(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, fs.Paths)
}
