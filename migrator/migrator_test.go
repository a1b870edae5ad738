package migrator

import (
	"strings"
	"testing"

	"github.com/csvmigrate/engine/config"
	"github.com/csvmigrate/engine/mapping"
	"github.com/csvmigrate/engine/metamodel/reflectmeta"
	"github.com/csvmigrate/engine/reader"
	"github.com/csvmigrate/engine/row"
	"github.com/csvmigrate/engine/shim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	Street1 string `meta:"street1"`
	State   string `meta:"state"`
}

type household struct {
	Address *address `meta:"address,independent"`
}

type testParent struct {
	Name      string     `meta:"name"`
	Household *household `meta:"household,independent"`
	Spouse    *testParent `meta:"spouse,independent"`
}

func (p *testParent) MigrationValid() bool { return p.Name != "Mark" }

type fakeAccessors struct{ known map[string]string }

func (a fakeAccessors) Accessor(header string) (string, bool) {
	k, ok := a.known[header]
	return k, ok
}

// buildS1Engine wires a migrate_spouse shim that looks up a
// previously migrated Parent by name (captured in a closure, mirroring
// how a stateful shim module would track cross-row state) and unifies
// both parents' households once the link resolves both ways.
func buildS1Engine(t *testing.T) (*Engine, func()) {
	t.Helper()
	mm := reflectmeta.NewRegistry()
	require.NoError(t, mm.Register("Address", &address{}))
	require.NoError(t, mm.Register("Household", &household{}))
	require.NoError(t, mm.Register("Parent", &testParent{}))

	acc := fakeAccessors{known: map[string]string{
		"First":  "first",
		"Street": "street",
		"Spouse": "spouse",
	}}
	fm, err := config.LoadFieldMapping(strings.NewReader(
		"First: name\nStreet: household.address.street1\nSpouse: spouse\n"))
	require.NoError(t, err)
	defs, err := config.LoadDefaults(strings.NewReader("household.address.state: IL\n"))
	require.NoError(t, err)
	filters, err := config.LoadFilterSpec(strings.NewReader("household.address.street1:\n  /Street/: St\n"))
	require.NoError(t, err)

	mp, err := mapping.Compile(mm, "Parent", acc, fm, defs, filters)
	require.NoError(t, err)

	byName := map[string]*testParent{}
	shims := shim.NewRegistry()
	shims.RegisterAttr("Parent", "spouse", func(obj any, value any, r *row.Row) (any, error) {
		self := obj.(*testParent)
		name, _ := value.(row.Value)
		spouseName := name.AsString()
		other, ok := byName[spouseName]
		if ok {
			other.Spouse = self
			self.Spouse = other
			other.Household = self.Household
		}
		byName[self.Name] = self
		if ok {
			return other, nil
		}
		return nil, nil
	})

	return New(mp, shims), func() {}
}

func TestS1FamilyParentsHappyPath(t *testing.T) {
	eng, done := buildS1Engine(t)
	defer done()

	rd, err := reader.Open(noopCloser{strings.NewReader("First,Last,Street,City,Spouse\nJoe,Smith,123 Oak Street,Chicago,Jane\nJane,Smith,123 Oak Street,Chicago,Joe\n")}, reader.Options{})
	require.NoError(t, err)

	var targets []*testParent
	for rd.Next() {
		target, err := eng.MigrateRow(rd.Record())
		require.NoError(t, err)
		if target != nil {
			targets = append(targets, target.(*testParent))
		}
	}
	require.NoError(t, rd.Err())
	require.Len(t, targets, 2)

	joe, jane := targets[0], targets[1]
	assert.Equal(t, "Joe", joe.Name)
	assert.Equal(t, "Jane", jane.Name)
	require.NotNil(t, joe.Household)
	require.NotNil(t, joe.Household.Address)
	assert.Equal(t, "123 Oak St", joe.Household.Address.Street1)
	assert.Equal(t, "IL", joe.Household.Address.State)

	require.NotNil(t, jane.Spouse)
	assert.Equal(t, "Joe", jane.Spouse.Name)
	require.NotNil(t, joe.Spouse)
	assert.Equal(t, "Jane", joe.Spouse.Name)
	assert.Same(t, jane.Household, jane.Spouse.Household)
}

func TestRejectOnInvalidInstance(t *testing.T) {
	mm := reflectmeta.NewRegistry()
	require.NoError(t, mm.Register("Parent", &testParent{}))
	acc := fakeAccessors{known: map[string]string{"Name": "name"}}
	fm, err := config.LoadFieldMapping(strings.NewReader("Name: name\n"))
	require.NoError(t, err)
	mp, err := mapping.Compile(mm, "Parent", acc, fm, nil, nil)
	require.NoError(t, err)

	eng := New(mp, shim.NewRegistry())
	rd, err := reader.Open(noopCloser{strings.NewReader("Name\nTom\nMark\nSue\n")}, reader.Options{})
	require.NoError(t, err)

	var ok, rejected int
	for rd.Next() {
		target, err := eng.MigrateRow(rd.Record())
		require.NoError(t, err)
		if target == nil {
			rejected++
			continue
		}
		ok++
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, rejected)
}

type noopCloser struct{ *strings.Reader }

func (noopCloser) Close() error { return nil }
