package sink

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufCloser struct {
	*bytes.Buffer
	closes int
}

func (b *bufCloser) Close() error { b.closes++; return nil }

func TestRejectWriterWritesHeaderAndRows(t *testing.T) {
	buf := &bufCloser{Buffer: &bytes.Buffer{}}
	rw, err := NewRejectWriter(buf, []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, rw.WriteRow([]string{"1", "2"}))
	require.NoError(t, rw.Close())
	require.NoError(t, rw.Close())
	assert.Equal(t, 1, buf.closes)
	assert.Equal(t, "a,b\n1,2\n", buf.String())
}

func TestExtractWriterHeaderMode(t *testing.T) {
	buf := &bufCloser{Buffer: &bytes.Buffer{}}
	ew, err := NewExtractWriter(buf, []string{"Name", "Id"})
	require.NoError(t, err)
	require.NoError(t, ew.WriteRecord([]string{"name_1", "1"}))
	require.NoError(t, ew.WriteRecord([]string{"name_2", "2"}))
	require.NoError(t, ew.Close())
	assert.Equal(t, "Name,Id\nname_1,1\nname_2,2\n", buf.String())
}

func TestExtractWriterLineMode(t *testing.T) {
	buf := &bufCloser{Buffer: &bytes.Buffer{}}
	ew, err := NewExtractWriter(buf, nil)
	require.NoError(t, err)
	require.NoError(t, ew.WriteRecord([]string{"x", "y"}))
	require.NoError(t, ew.Close())
	require.NoError(t, ew.Close())
	assert.Equal(t, 1, buf.closes)
	assert.Equal(t, "x,y\n", buf.String())
}

var _ io.WriteCloser = (*bufCloser)(nil)
