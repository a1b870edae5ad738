// Package metamodel declares the narrow external contract the engine
// depends on for domain introspection (spec §6). The engine never
// inherits from or mutates domain classes; it only calls through this
// interface set, so any domain layer — reflection-based, code-generated,
// or hand-written — can supply it.
package metamodel

// Role classifies a Property's relationship to its owning Class.
type Role int

const (
	// RolePlain is an ordinary attribute (primitive or value type).
	RolePlain Role = iota
	// RoleOwner is an owner-reference: points from a dependent up to
	// the object that owns its lifecycle.
	RoleOwner
	// RoleDependent is a dependent-reference: points from an owner down
	// to an object whose lifecycle is tied to it.
	RoleDependent
	// RoleIndependent is an independent-reference: points to an object
	// with no ownership relationship.
	RoleIndependent
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleDependent:
		return "dependent"
	case RoleIndependent:
		return "independent"
	default:
		return "plain"
	}
}

// Property describes one attribute of a domain class (spec §3).
type Property interface {
	// Owner is the Class this Property is declared on.
	Owner() Class
	// Name is the attribute name, as it appears in a configured path.
	Name() string
	// Type is the declared type: a Class for a domain-object-valued
	// property (ok == true), or (nil, false) for a primitive.
	Type() (class Class, ok bool)
	// Role classifies the reference direction for a domain-object-valued
	// property. Meaningless (RolePlain) for primitives.
	Role() Role
	// Collection reports whether this Property holds many values.
	Collection() bool
	// Boolean reports whether this is a primitive boolean-typed
	// property, which receives the implicit string→bool filter (§4.2).
	Boolean() bool

	// Get reads the current value from instance. ok is false if unset.
	Get(instance any) (value any, ok bool)
	// Set assigns value on instance. Returns an error if value cannot
	// be assigned (a writer error, §4.5 step B.3, is fatal for the row).
	Set(instance any, value any) error
	// Append adds value to a collection-valued property.
	Append(instance any, value any) error
}

// Class describes one domain type (spec §3, §6).
type Class interface {
	// Name is the class's identifier as used in configured paths and
	// resolved by a Metamodel's namespace lookup.
	Name() string
	// Abstract reports whether this class can be instantiated directly.
	Abstract() bool
	// New constructs a zero-value instance. Fatal if Abstract() is true.
	New() (any, error)

	// Property resolves an attribute name declared on this class.
	Property(name string) (Property, bool)
	// Properties lists every attribute declared on this class.
	Properties() []Property

	// Superclass returns the class this one directly inherits from, if
	// any, used by the Mapping Compiler's superclass→subclass merge.
	Superclass() (Class, bool)
	// Subclasses lists the classes that directly declare this one as
	// their Superclass.
	Subclasses() []Class

	// DependsOn reports whether this class depends on other — i.e.
	// instances of this class are constructed after instances of other
	// within a single row (owners precede dependents).
	DependsOn(other Class) bool
	// Owners lists the classes this class has an owner-reference to.
	Owners() []Class
	// Dependents lists the classes that declare an owner-reference back
	// to this class.
	Dependents() []Class
}

// Metamodel resolves class names to Class descriptors (the "namespace
// lookup" of §4.3/§6).
type Metamodel interface {
	ClassByName(name string) (Class, bool)
}
