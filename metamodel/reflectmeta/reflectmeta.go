// Package reflectmeta is a reflection-based default implementation of
// the metamodel.Metamodel contract. It lets a caller describe a domain
// layer as plain Go structs with a `meta:"name,role"` struct tag instead
// of hand-writing metamodel.Class/Property adapters.
//
// This stands in for the "supplied capability" spec §1 treats as out of
// scope (class introspection, ownership/dependency graph). The engine
// itself never imports reflectmeta directly — it depends only on
// metamodel.Metamodel — but reflectmeta is the implementation this
// module's own tests (and any caller without a richer domain layer)
// exercise it through.
//
// Tag grammar: `meta:"attrName"` for a plain attribute, or
// `meta:"attrName,owner"` / `meta:"attrName,dependent"` /
// `meta:"attrName,independent"` for a domain-object-valued reference.
// A slice field is a collection. A field with no tag is not exposed as
// a Property. Domain structs are registered by pointer-to-struct value;
// instances flow through the engine as that same pointer type.
package reflectmeta

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/csvmigrate/engine/metamodel"
)

// Registry is a Metamodel built from registered Go struct types.
type Registry struct {
	classes    map[string]*class
	typeToName map[reflect.Type]string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{classes: map[string]*class{}, typeToName: map[reflect.Type]string{}}
}

// RegisterOption configures a class registration.
type RegisterOption func(*class)

// Abstract marks the registered class as non-instantiable.
func Abstract() RegisterOption { return func(c *class) { c.abstract = true } }

// Superclass names the class this registration inherits from. The
// superclass must already be registered.
func Superclass(name string) RegisterOption {
	return func(c *class) { c.superclassName = name }
}

// Register associates name with the struct type of sample (sample must
// be a pointer to a struct). Fields tagged `meta:"..."` become
// Properties. Register must be called for every class before any
// Property.Type()/Class.Owners() resolution that references it, since
// those resolve lazily against the full registry.
func (r *Registry) Register(name string, sample any, opts ...RegisterOption) error {
	t := reflect.TypeOf(sample)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("reflectmeta: Register(%q): sample must be a pointer to a struct", name)
	}
	structType := t.Elem()
	c := &class{registry: r, name: name, structType: structType}
	for _, opt := range opts {
		opt(c)
	}
	if _, exists := r.classes[name]; exists {
		return fmt.Errorf("reflectmeta: class %q already registered", name)
	}
	r.classes[name] = c
	r.typeToName[structType] = name
	return nil
}

// ClassByName implements metamodel.Metamodel.
func (r *Registry) ClassByName(name string) (metamodel.Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// classByType resolves a struct type (never a pointer type) back to its
// registered class.
func (r *Registry) classByType(t reflect.Type) (*class, bool) {
	name, ok := r.typeToName[t]
	if !ok {
		return nil, false
	}
	c, ok := r.classes[name]
	return c, ok
}

type class struct {
	registry       *Registry
	name           string
	structType     reflect.Type
	abstract       bool
	superclassName string

	props     []metamodel.Property
	propByName map[string]metamodel.Property
}

func (c *class) Name() string    { return c.name }
func (c *class) Abstract() bool  { return c.abstract }

func (c *class) New() (any, error) {
	if c.abstract {
		return nil, fmt.Errorf("reflectmeta: cannot instantiate abstract class %q", c.name)
	}
	return reflect.New(c.structType).Interface(), nil
}

func (c *class) ensureProps() {
	if c.props != nil {
		return
	}
	c.propByName = map[string]metamodel.Property{}
	for i := 0; i < c.structType.NumField(); i++ {
		f := c.structType.Field(i)
		tag, ok := f.Tag.Lookup("meta")
		if !ok || tag == "" || tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		attrName := parts[0]
		roleStr := ""
		if len(parts) > 1 {
			roleStr = parts[1]
		}
		p := &property{owner: c, field: f, index: i, name: attrName, roleStr: roleStr}
		c.props = append(c.props, p)
		c.propByName[attrName] = p
	}
}

func (c *class) Property(name string) (metamodel.Property, bool) {
	c.ensureProps()
	p, ok := c.propByName[name]
	return p, ok
}

func (c *class) Properties() []metamodel.Property {
	c.ensureProps()
	return append([]metamodel.Property(nil), c.props...)
}

func (c *class) Superclass() (metamodel.Class, bool) {
	if c.superclassName == "" {
		return nil, false
	}
	sc, ok := c.registry.classes[c.superclassName]
	return sc, ok
}

func (c *class) Subclasses() []metamodel.Class {
	var out []metamodel.Class
	for _, other := range c.registry.classes {
		if other.superclassName == c.name {
			out = append(out, other)
		}
	}
	return out
}

func (c *class) Owners() []metamodel.Class {
	c.ensureProps()
	seen := map[string]bool{}
	var out []metamodel.Class
	for _, p := range c.props {
		pr := p.(*property)
		if pr.roleKind() != metamodel.RoleOwner {
			continue
		}
		cls, ok := pr.Type()
		if !ok || seen[cls.Name()] {
			continue
		}
		seen[cls.Name()] = true
		out = append(out, cls)
	}
	return out
}

func (c *class) Dependents() []metamodel.Class {
	seen := map[string]bool{}
	var out []metamodel.Class
	for _, other := range c.registry.classes {
		for _, owner := range other.Owners() {
			if owner.Name() == c.name && !seen[other.name] {
				seen[other.name] = true
				out = append(out, other)
			}
		}
	}
	return out
}

func (c *class) DependsOn(other metamodel.Class) bool {
	for _, o := range c.Owners() {
		if o.Name() == other.Name() {
			return true
		}
	}
	return false
}
