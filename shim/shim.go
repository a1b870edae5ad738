// Package shim implements the Shim Registry (spec §4.4) and the
// Migratable interface family that spec §9 substitutes for the source
// language's ad-hoc method injection: Go domain types cannot be
// "reopened" to add methods, so per-instance hooks are optional
// interfaces a domain type may implement, and the one truly
// per-attribute hook (migrate_<attr>) is an external registry keyed by
// (class, attribute) instead of a dynamically dispatched method.
package shim

import (
	"io"

	"github.com/csvmigrate/engine/errs"
	"github.com/csvmigrate/engine/row"
)

// Validator is implemented by a domain type that defines its own
// validity predicate (§4.5 Phase F.2, "migration_valid?").
type Validator interface {
	MigrationValid() bool
}

// Finalizer is implemented by a domain type that wants a per-instance
// hook after all path assignments, called before reference resolution
// begins (§4.5 Phase E, "migrate(row, migrated)").
type Finalizer interface {
	Migrate(r *row.Row, migrated []any)
}

// Sink is the minimal surface the Extract Writer exposes to an
// Extractor hook (§4.6): either mode (line-appending or header-bearing
// CSV) is reached through the same single call.
type Sink interface {
	// WriteRecord appends one record. Implementations decide whether
	// that means a CSV row or a single delimited line.
	WriteRecord(fields []string) error
}

// Extractor is implemented by a target domain type that produces a
// derived record for the extract sink (§4.6, "extract(sink)").
type Extractor interface {
	Extract(sink Sink) error
}

// OwnerPreferrer is implemented by a domain type that wants to
// disambiguate multiple equally-plausible owner references (§4.5 Phase
// F.3's optional "preferred-owner hook"). Per spec §9 this is an
// extension point the base engine never supplies on its own.
type OwnerPreferrer interface {
	PreferredOwner(candidates []any) any
}

// Uniquifier is implemented by a domain type that participates in
// Phase D's optional secondary-key uniquification.
type Uniquifier interface {
	Uniquify()
}

// AttrFunc is a migrate_<attr> transform (§4.4). In Phase B.3 it runs
// after the Filter and receives/returns a row.Value; in Phase F.4 the
// same registered function runs again during reference resolution and
// receives/returns a candidate domain object instead. value and the
// return are therefore untyped; a transform that only ever applies to
// one phase can type-assert and pass the other phase's calls through
// unchanged.
type AttrFunc func(obj any, value any, r *row.Row) (any, error)

// key identifies a (class, attribute) pair.
type key struct {
	class string
	attr  string
}

// Registry holds registered migrate_<attr> transforms, keyed by
// class and attribute name. It is built once, before the engine starts
// processing rows, and is read-only thereafter.
type Registry struct {
	attrs map[key]AttrFunc
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{attrs: map[key]AttrFunc{}}
}

// RegisterAttr associates a migrate_<attr> transform with a class and
// attribute name. No check is made that attr names a Property on class;
// the migrator looks transforms up only for properties it assigns, so a
// transform for an attribute the class does not have is silently
// ignored per §4.4.
func (r *Registry) RegisterAttr(class, attr string, fn AttrFunc) {
	r.attrs[key{class, attr}] = fn
}

// Attr looks up a registered migrate_<attr> transform.
func (r *Registry) Attr(class, attr string) (AttrFunc, bool) {
	fn, ok := r.attrs[key{class, attr}]
	return fn, ok
}

// lineSink adapts an io.Writer into a Sink by writing comma-joined lines.
// Used when the extract file was configured without headers (§4.6
// "plain line-appending stream").
type lineSink struct {
	w io.Writer
}

// NewLineSink builds a Sink that writes each record as a single
// newline-terminated line with fields joined by commas.
func NewLineSink(w io.Writer) Sink { return &lineSink{w: w} }

func (s *lineSink) WriteRecord(fields []string) error {
	line := ""
	for i, f := range fields {
		if i > 0 {
			line += ","
		}
		line += f
	}
	line += "\n"
	if _, err := io.WriteString(s.w, line); err != nil {
		return errs.NewIO(err)
	}
	return nil
}
