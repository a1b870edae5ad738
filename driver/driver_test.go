package driver

import (
	"bytes"
	"strings"
	"testing"

	"github.com/csvmigrate/engine/config"
	"github.com/csvmigrate/engine/mapping"
	"github.com/csvmigrate/engine/metamodel/reflectmeta"
	"github.com/csvmigrate/engine/migrator"
	"github.com/csvmigrate/engine/reader"
	"github.com/csvmigrate/engine/row"
	"github.com/csvmigrate/engine/shim"
	"github.com/csvmigrate/engine/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type child struct {
	Name      string `meta:"name"`
	RunningID string `meta:"id"`
}

func (c *child) Extract(s shim.Sink) error {
	return s.WriteRecord([]string{c.Name, c.RunningID})
}

func (c *child) MigrationValid() bool { return c.Name != "" }

type noopCloser struct{ *strings.Reader }

func (noopCloser) Close() error { return nil }

func buildEngine(t *testing.T) *migrator.Engine {
	t.Helper()
	mm := reflectmeta.NewRegistry()
	require.NoError(t, mm.Register("Child", &child{}))
	acc := fakeAccessors{known: map[string]string{"Name": "name", "Id": "id"}}
	fm, err := config.LoadFieldMapping(strings.NewReader("Name: name\nId: id\n"))
	require.NoError(t, err)
	mp, err := mapping.Compile(mm, "Child", acc, fm, nil, nil)
	require.NoError(t, err)
	return migrator.New(mp, shim.NewRegistry())
}

type fakeAccessors struct{ known map[string]string }

func (a fakeAccessors) Accessor(header string) (string, bool) {
	k, ok := a.known[header]
	return k, ok
}

func TestRunWindowAndExtract(t *testing.T) {
	eng := buildEngine(t)
	rd, err := reader.Open(noopCloser{strings.NewReader("Name,Id\nA,1\nB,2\nC,3\nD,4\n")}, reader.Options{})
	require.NoError(t, err)

	extractBuf := &closingBuffer{Buffer: &bytes.Buffer{}}
	ew, err := sink.NewExtractWriter(extractBuf, nil)
	require.NoError(t, err)

	var visited []string
	sum, err := Run(rd, eng, Options{From: 2, To: 4, Extract: ew}, func(target any, r *row.Row) error {
		visited = append(visited, target.(*child).Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, sum.Migrated)
	assert.Equal(t, 0, sum.Rejected)
	assert.Equal(t, []string{"B", "C"}, visited)
	assert.Equal(t, "B,2\nC,3\n", extractBuf.String())
}

func TestRunRoutesRejectedRowsToRejects(t *testing.T) {
	mm := reflectmeta.NewRegistry()
	require.NoError(t, mm.Register("Child", &child{}))
	acc := fakeAccessors{known: map[string]string{"Name": "name"}}
	fm, err := config.LoadFieldMapping(strings.NewReader("Name: name\n"))
	require.NoError(t, err)
	mp, err := mapping.Compile(mm, "Child", acc, fm, nil, nil)
	require.NoError(t, err)
	eng := migrator.New(mp, shim.NewRegistry())

	rd, err := reader.Open(noopCloser{strings.NewReader("Name\nA\n\"\"\nC\n")}, reader.Options{})
	require.NoError(t, err)

	rejBuf := &closingBuffer{Buffer: &bytes.Buffer{}}
	rw, err := sink.NewRejectWriter(rejBuf, []string{"Name"})
	require.NoError(t, err)

	sum, err := Run(rd, eng, Options{Rejects: rw}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Migrated)
	assert.Equal(t, 1, sum.Rejected)
}

type closingBuffer struct{ *bytes.Buffer }

func (closingBuffer) Close() error { return nil }
