package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralAndRegex(t *testing.T) {
	keys := []string{"/Street/i", "Ave"}
	spec := map[string]string{"/Street/i": "St", "Ave": "Avenue"}
	f, err := CompileOrdered(keys, spec, nil)
	require.NoError(t, err)

	assert.Equal(t, "123 Oak St", f.Apply("123 Oak Street").AsString())
	assert.Equal(t, "Avenue", f.Apply("Ave").AsString())
	assert.Equal(t, "Main Rd", f.Apply("Main Rd").AsString())
}

func TestCatchAll(t *testing.T) {
	f, err := CompileOrdered([]string{"Y", "/.*/"}, map[string]string{"Y": "YES", "/.*/": "OTHER"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "YES", f.Apply("Y").AsString())
	assert.Equal(t, "OTHER", f.Apply("Z").AsString())
}

func TestAbsentTemplate(t *testing.T) {
	f, err := CompileOrdered([]string{"/^$/"}, map[string]string{"/^$/": ""}, nil)
	require.NoError(t, err)
	assert.True(t, f.Apply("").IsAbsent())
}

func TestUnsupportedFlag(t *testing.T) {
	_, err := CompileOrdered([]string{"/x/m"}, map[string]string{"/x/m": "y"}, nil)
	require.Error(t, err)
}

func TestBoolFilter(t *testing.T) {
	keys := []string{"Y", "N", "true", "false"}
	spec := map[string]string{"Y": "true", "N": "false"}
	bf, err := CompileBool(keys, spec)
	require.NoError(t, err)

	assert.Equal(t, true, bf.Apply("Y").Bool)
	assert.Equal(t, false, bf.Apply("N").Bool)
	assert.True(t, bf.Apply("maybe").IsAbsent())
}

func TestBoolFilterBooleanSubFilter(t *testing.T) {
	keys := []string{"true", "false"}
	spec := map[string]string{"true": "false", "false": "true"}
	bf, err := CompileBool(keys, spec)
	require.NoError(t, err)
	assert.Equal(t, false, bf.Apply("true").Bool)
	assert.Equal(t, true, bf.Apply("false").Bool)
}
