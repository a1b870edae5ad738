package reader

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, data string) *Reader {
	t.Helper()
	r, err := Open(io.NopCloser(strings.NewReader(data)), Options{})
	require.NoError(t, err)
	return r
}

func TestAccessorNormalization(t *testing.T) {
	r := open(t, "First Name,Last-Name,Zip Code\n")
	assert.Equal(t, []string{"first_name", "last_name", "zip_code"}, r.Accessors())
	key, ok := r.Accessor("First Name")
	require.True(t, ok)
	assert.Equal(t, "first_name", key)
}

func TestAccessorCollision(t *testing.T) {
	_, err := Open(io.NopCloser(strings.NewReader("First Name,First_Name\n")), Options{})
	require.Error(t, err)
}

func TestCoercion(t *testing.T) {
	r2 := open(t, "n,f,d,s,z\n007,3.50,2024-01-15,hello,\n")
	require.True(t, r2.Next())
	rec := r2.Record()
	assert.Equal(t, "007", rec.Get("n").AsString()) // leading zero stays a string
	assert.Equal(t, 3.5, rec.Get("f").Flt)
	assert.False(t, rec.Get("d").Dt.IsZero())
	assert.Equal(t, "hello", rec.Get("s").Str)
	assert.True(t, rec.Get("z").IsAbsent())
	require.False(t, r2.Next())
	require.NoError(t, r2.Err())
}

func TestIntCoercion(t *testing.T) {
	r := open(t, "n\n42\n")
	require.True(t, r.Next())
	assert.EqualValues(t, 42, r.Record().Get("n").Num)
}

func TestDMonYYDate(t *testing.T) {
	r := open(t, "d\n15-Jan-24\n")
	require.True(t, r.Next())
	got := r.Record().Get("d").Dt
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, 1, int(got.Month()))
	assert.Equal(t, 15, got.Day())
}

func TestFieldsPerRecordMismatchIsFatal(t *testing.T) {
	r := open(t, "a,b\n1\n")
	require.False(t, r.Next())
	require.Error(t, r.Err())
}
