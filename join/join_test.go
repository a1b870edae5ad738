package join

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// canonicalFixture is the source/target pair from the spec's CSV Join
// scenario: source header A,B,U; target header A,B,X; both sorted
// ascending on the common columns. Tracing the documented algorithm
// against this exact fixture groups into three matched keys giving five
// rows (a1,b1: 2x1, a1,b2: 1x2, a2,b3: 1x1) plus four single-sided keys
// (a2,b4 and a4,b7 source-only; a2,b5 and a3,"" target-only), for nine
// output rows total.
const (
	canonicalSource = "A,B,U\na1,b1,u\na1,b1,v\na1,b2,u\na2,b3,u\na2,b4,u\na4,b7,u\n"
	canonicalTarget = "A,B,X\na1,b1,x\na1,b2,x\na1,b2,y\na2,b3,x\na2,b5,x\na3,,x\n"
)

func TestJoinCanonicalFixture(t *testing.T) {
	var out strings.Builder
	sum, err := Run(strings.NewReader(canonicalSource), strings.NewReader(canonicalTarget), &out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 9, sum.Rows)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 10) // header + 9 rows
	assert.Equal(t, "A,B,U,X", lines[0])
	assert.Equal(t, []string{
		"a1,b1,u,x",
		"a1,b1,v,x",
		"a1,b2,u,x",
		"a1,b2,u,y",
		"a2,b3,u,x",
		"a2,b4,u,",
		"a2,b5,,x",
		"a3,,,x",
		"a4,b7,u,",
	}, lines[1:])
}

func TestJoinSourceColumnSubset(t *testing.T) {
	source := "A,U,V\na1,u1,v1\n"
	target := "A,X\na1,x1\n"
	var out strings.Builder
	_, err := Run(strings.NewReader(source), strings.NewReader(target), &out, Options{SourceColumns: []string{"V"}})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	assert.Equal(t, "A,V,X", lines[0])
	assert.Equal(t, "a1,v1,x1", lines[1])
}

func TestJoinTransformDropsRecord(t *testing.T) {
	source := "A,U\na1,u1\na2,u2\n"
	target := "A,X\na1,x1\na2,x2\n"
	var out strings.Builder
	sum, err := Run(strings.NewReader(source), strings.NewReader(target), &out, Options{
		Transform: func(rec []string) ([]string, bool) {
			if rec[0] == "a2" {
				return nil, false
			}
			return rec, true
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Rows)
	assert.Contains(t, out.String(), "a1,u1,x1")
	assert.NotContains(t, out.String(), "a2")
}

func TestJoinEmptyInputs(t *testing.T) {
	var out strings.Builder
	sum, err := Run(strings.NewReader("A,U\n"), strings.NewReader("A,X\n"), &out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Rows)
	assert.Equal(t, "A,U,X\n", out.String())
}
