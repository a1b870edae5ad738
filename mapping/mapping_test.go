package mapping

import (
	"strings"
	"testing"

	"github.com/csvmigrate/engine/config"
	"github.com/csvmigrate/engine/metamodel/reflectmeta"
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

type parent struct {
	Name      string     `meta:"name"`
	Household *household `meta:"household,independent"`
	Spouse    *parent    `meta:"spouse,independent"`
	Active    bool       `meta:"active"`
}

type pet struct {
	Name  string  `meta:"name"`
	Owner *parent `meta:"owner,owner"`
}

type fakeAccessors struct{ known map[string]string }

func (a fakeAccessors) Accessor(header string) (string, bool) {
	k, ok := a.known[header]
	return k, ok
}

func buildRegistry(t *testing.T) *reflectmeta.Registry {
	t.Helper()
	r := reflectmeta.NewRegistry()
	require.NoError(t, r.Register("Address", &address{}))
	require.NoError(t, r.Register("Household", &household{}))
	require.NoError(t, r.Register("Parent", &parent{}))
	require.NoError(t, r.Register("Pet", &pet{}))
	return r
}

func TestCompileFieldPathsAndOwnerClosure(t *testing.T) {
	mm := buildRegistry(t)
	acc := fakeAccessors{known: map[string]string{
		"First":  "first",
		"Street": "street",
	}}
	fm, err := config.LoadFieldMapping(strings.NewReader("First: name\nStreet: household.address.street1\n"))
	require.NoError(t, err)
	defs, err := config.LoadDefaults(strings.NewReader("household.address.state: IL\n"))
	require.NoError(t, err)

	m, err := Compile(mm, "Parent", acc, fm, defs, nil)
	require.NoError(t, err)

	names := make([]string, len(m.Creatable))
	for i, c := range m.Creatable {
		names[i] = c.Name()
	}
	assert.Equal(t, []string{"Parent"}, names)
	assert.Len(t, m.FieldPaths["Parent"], 2)
	assert.Len(t, m.Defaults["Parent"], 1)

	// Active is boolean-typed but never mapped, so no implicit filter
	// should be synthesized for it.
	assert.Nil(t, m.Filters["Parent"]["active"])
}

func TestCompileOwnerClosureSkipsUnreachableOwner(t *testing.T) {
	mm := buildRegistry(t)
	acc := fakeAccessors{known: map[string]string{"Name": "name"}}
	fm, err := config.LoadFieldMapping(strings.NewReader("Name: name\n"))
	require.NoError(t, err)

	m, err := Compile(mm, "Pet", acc, fm, nil, nil)
	require.NoError(t, err)

	// Parent has no owner of its own, so its owner chain never reaches
	// the creatable Pet and the closure does not add it.
	assert.False(t, m.OwnerClosure["Parent"])
	names := make([]string, len(m.Creatable))
	for i, c := range m.Creatable {
		names[i] = c.Name()
	}
	assert.Equal(t, []string{"Pet"}, names)
}

func TestUnknownHeaderIsFatal(t *testing.T) {
	mm := buildRegistry(t)
	acc := fakeAccessors{known: map[string]string{}}
	fm, err := config.LoadFieldMapping(strings.NewReader("First: name\n"))
	require.NoError(t, err)
	_, err = Compile(mm, "Parent", acc, fm, nil, nil)
	require.Error(t, err)
}

func TestCollectionPathIsFatal(t *testing.T) {
	type child struct {
		Parents []*parent `meta:"parents,independent"`
	}
	mm := buildRegistry(t)
	require.NoError(t, mm.Register("Child", &child{}))
	acc := fakeAccessors{known: map[string]string{"P": "p"}}
	fm, err := config.LoadFieldMapping(strings.NewReader("P: parents.name\n"))
	require.NoError(t, err)
	_, err = Compile(mm, "Child", acc, fm, nil, nil)
	require.Error(t, err)
}
