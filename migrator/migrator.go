// Package migrator implements the Row Migrator (spec §4.5): per row,
// it instantiates one object per creatable class, materializes
// intermediate path objects, assigns filtered/defaulted/shimmed
// values, resolves inter-object references, prunes invalid objects,
// and selects the unique target instance.
package migrator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/csvmigrate/engine/errs"
	"github.com/csvmigrate/engine/mapping"
	"github.com/csvmigrate/engine/metamodel"
	"github.com/csvmigrate/engine/reader"
	"github.com/csvmigrate/engine/row"
	"github.com/csvmigrate/engine/shim"
	"github.com/sirupsen/logrus"
)

// Engine holds the compiled Mapping and Shim Registry and migrates
// rows one at a time. It carries no per-row state between calls, so
// its memory footprint is bounded by the mapping, not by rows seen.
type Engine struct {
	mapping  *mapping.Mapping
	shims    *shim.Registry
	uniquify bool
	log      *logrus.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithUniquify enables Phase D's optional secondary-key uniquification.
func WithUniquify(on bool) Option { return func(e *Engine) { e.uniquify = on } }

// WithLogger overrides the logger the Engine holds (logrus's standard
// logger by default). MigrateRow itself logs nothing; it reports
// per-row failures through its returned error.
func WithLogger(l *logrus.Logger) Option { return func(e *Engine) { e.log = l } }

// New builds an Engine from a compiled Mapping and Shim Registry.
func New(mp *mapping.Mapping, shims *shim.Registry, opts ...Option) *Engine {
	e := &Engine{mapping: mp, shims: shims, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// instance is one object in a single row's migrated set (§3).
type instance struct {
	class metamodel.Class
	obj   any
	valid bool
}

// MigrateRow runs Phases A–G against one row. A nil target with a nil
// error means the row produced zero target candidates (an ordinary
// reject, not a failure); a non-nil error is an *errs.RowError (§7) —
// the caller decides whether to route it to a rejects sink or treat it
// as fatal.
func (e *Engine) MigrateRow(r *row.Row) (any, error) {
	target, err := e.migrateRow(r)
	if err != nil {
		return nil, errs.NewRow(r.Number, err)
	}
	return target, nil
}

func (e *Engine) migrateRow(r *row.Row) (any, error) {
	mp := e.mapping

	// Phase A — instantiate.
	migrated := make([]*instance, 0, len(mp.Creatable))
	byClass := map[string]*instance{}
	for _, c := range mp.Creatable {
		obj, err := c.New()
		if err != nil {
			return nil, fmt.Errorf("migrator: instantiating %s: %w", c.Name(), err)
		}
		inst := &instance{class: c, obj: obj, valid: true}
		migrated = append(migrated, inst)
		byClass[c.Name()] = inst
	}

	// Phase B — assign mapped values.
	for _, c := range mp.Creatable {
		root := byClass[c.Name()]
		for _, binding := range mp.FieldPaths[c.Name()] {
			val := r.Get(binding.HeaderKey)
			if val.IsAbsent() {
				continue
			}
			if val.Kind == row.String {
				val = row.OfString(strings.TrimRight(val.Str, " \t\r\n"))
			}
			parentObj, parentClass, err := e.walkIntermediate(root.obj, c, binding.Path, &migrated, r)
			if err != nil {
				return nil, err
			}
			leaf := binding.Path.Last()
			value, skip, err := e.transformAttr(parentClass.Name(), leaf.Name(), parentObj, val, r)
			if err != nil {
				return nil, fmt.Errorf("migrator: row %d: shim on %s.%s: %w", r.Number, parentClass.Name(), leaf.Name(), err)
			}
			if skip {
				continue
			}
			if err := leaf.Set(parentObj, value); err != nil {
				return nil, fmt.Errorf("migrator: row %d: assigning %s.%s: %w", r.Number, parentClass.Name(), leaf.Name(), err)
			}
		}
	}

	// Phase C — apply defaults (merge semantics: only if unset).
	for _, c := range mp.Creatable {
		root := byClass[c.Name()]
		for _, def := range mp.Defaults[c.Name()] {
			parentObj, _, err := e.walkIntermediate(root.obj, c, def.Path, &migrated, r)
			if err != nil {
				return nil, err
			}
			leaf := def.Path.Last()
			if _, ok := leaf.Get(parentObj); ok {
				continue
			}
			val := reader.Coerce(def.Literal)
			if val.IsAbsent() {
				continue
			}
			if err := leaf.Set(parentObj, val.Any()); err != nil {
				return nil, fmt.Errorf("migrator: row %d: applying default %s: %w", r.Number, def.Path, err)
			}
		}
	}

	// Phase D — uniquify (optional).
	if e.uniquify {
		for _, inst := range migrated {
			if u, ok := inst.obj.(shim.Uniquifier); ok {
				u.Uniquify()
			}
		}
	}

	// Phase E — per-instance migrate hook.
	all := make([]any, len(migrated))
	for i, inst := range migrated {
		all[i] = inst.obj
	}
	for _, inst := range migrated {
		if fin, ok := inst.obj.(shim.Finalizer); ok {
			fin.Migrate(r, all)
		}
	}

	// Phase F — validate and resolve references.
	ownerFirst := sortByClassDependency(migrated)
	dependentsFirst := reverseInstances(ownerFirst)

	for _, inst := range dependentsFirst {
		valid := true
		if v, ok := inst.obj.(shim.Validator); ok {
			valid = v.MigrationValid()
		}
		if !valid {
			invalidateOwnerRefs(inst)
		}
	}

	for _, inst := range dependentsFirst {
		if !inst.valid {
			continue
		}
		e.resolveOwner(inst, migrated)
	}

	for _, inst := range dependentsFirst {
		if !inst.valid {
			continue
		}
		if err := e.resolveNonOwnerRefs(inst, migrated, r); err != nil {
			return nil, err
		}
	}

	for _, inst := range ownerFirst {
		if !inst.valid {
			continue
		}
		if ownerInvalid(inst, migrated) {
			invalidateOwnerRefs(inst)
		}
	}

	for _, inst := range dependentsFirst {
		if !inst.valid {
			continue
		}
		if !mp.OwnerClosure[inst.class.Name()] {
			continue
		}
		anyDependent, validDependent := dependentStatus(inst, migrated)
		if anyDependent && !validDependent {
			invalidateAllRefs(inst)
		}
	}

	// Phase G — select target.
	var candidates []*instance
	for _, inst := range migrated {
		if inst.valid && inst.class.Name() == mp.Target.Name() {
			candidates = append(candidates, inst)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0].obj, nil
	default:
		return nil, fmt.Errorf("migrator: row %d: %d instances of target class %q survived pruning", r.Number, len(candidates), mp.Target.Name())
	}
}

// walkIntermediate follows path.Props[0:len-1] from root, instantiating
// and linking any unset intermediate object along the way, appending
// newly created instances to *migrated.
func (e *Engine) walkIntermediate(root any, rootClass metamodel.Class, path mapping.Path, migrated *[]*instance, r *row.Row) (any, metamodel.Class, error) {
	cur := root
	curClass := rootClass
	props := path.Props
	for i := 0; i < len(props)-1; i++ {
		prop := props[i]
		existing, ok := prop.Get(cur)
		nextClass, _ := prop.Type()
		var next any
		if ok && existing != nil {
			next = existing
		} else {
			if nextClass.Abstract() {
				return nil, nil, fmt.Errorf("migrator: row %d: path %s needs an instance of abstract class %q", r.Number, path, nextClass.Name())
			}
			created, err := nextClass.New()
			if err != nil {
				return nil, nil, fmt.Errorf("migrator: row %d: instantiating %s: %w", r.Number, nextClass.Name(), err)
			}
			if fin, ok := created.(shim.Finalizer); ok {
				fin.Migrate(r, nil)
			}
			if err := prop.Set(cur, created); err != nil {
				return nil, nil, fmt.Errorf("migrator: row %d: linking %s.%s: %w", r.Number, curClass.Name(), prop.Name(), err)
			}
			*migrated = append(*migrated, &instance{class: nextClass, obj: created, valid: true})
			next = created
		}
		cur = next
		curClass = nextClass
	}
	return cur, curClass, nil
}

// transformAttr composes the Filter and any registered migrate_<attr>
// shim for a value assignment (Phase B.3). The shim runs on whatever
// the Filter produced, even if that is Absent, and may return anything
// assignable to the Property — typically a filtered primitive, but a
// shim is also free to resolve a raw value into a domain object
// reference (e.g. looking up a previously migrated sibling row's
// object by name). skip is true when the composed result is Absent,
// meaning the caller must leave the attribute unset.
func (e *Engine) transformAttr(class, attr string, obj any, value row.Value, r *row.Row) (result any, skip bool, err error) {
	var v any = value
	if f, ok := e.mapping.Filters[class][attr]; ok {
		v = f.Apply(value.AsString())
	}
	if fn, ok := e.shims.Attr(class, attr); ok {
		out, ferr := fn(obj, v, r)
		if ferr != nil {
			return nil, false, ferr
		}
		v = out
	}
	if v == nil {
		return nil, true, nil
	}
	if rv, ok := v.(row.Value); ok {
		if rv.IsAbsent() {
			return nil, true, nil
		}
		return rv.Any(), false, nil
	}
	return v, false, nil
}

// transformRef runs a registered migrate_<attr> shim against a
// resolved reference candidate (Phase F.4). The Filter never applies
// here — it only operates on primitive string values.
func (e *Engine) transformRef(class, attr string, obj any, candidate any, r *row.Row) (any, error) {
	fn, ok := e.shims.Attr(class, attr)
	if !ok {
		return candidate, nil
	}
	return fn(obj, candidate, r)
}


func (e *Engine) resolveOwner(inst *instance, migrated []*instance) {
	type candidate struct {
		prop metamodel.Property
		inst *instance
	}
	var resolvable []candidate
	for _, p := range inst.class.Properties() {
		if p.Role() != metamodel.RoleOwner {
			continue
		}
		pType, ok := p.Type()
		if !ok {
			continue
		}
		var found *instance
		count := 0
		for _, m := range migrated {
			if m.obj == inst.obj {
				continue
			}
			if m.class.Name() == pType.Name() {
				count++
				found = m
			}
		}
		if count == 1 {
			resolvable = append(resolvable, candidate{prop: p, inst: found})
		}
	}
	if len(resolvable) == 0 {
		return
	}
	chosen := -1
	if len(resolvable) == 1 {
		chosen = 0
	} else {
		for i, c := range resolvable {
			if t, ok := c.prop.Type(); ok && t.Name() == e.mapping.Target.Name() {
				chosen = i
				break
			}
		}
		if chosen == -1 {
			if pref, ok := inst.obj.(shim.OwnerPreferrer); ok {
				cands := make([]any, len(resolvable))
				for i, c := range resolvable {
					cands[i] = c.inst.obj
				}
				picked := pref.PreferredOwner(cands)
				for i, c := range resolvable {
					if c.inst.obj == picked {
						chosen = i
						break
					}
				}
			}
		}
	}
	if chosen == -1 {
		return
	}
	_ = resolvable[chosen].prop.Set(inst.obj, resolvable[chosen].inst.obj)
}

func (e *Engine) resolveNonOwnerRefs(inst *instance, migrated []*instance, r *row.Row) error {
	for _, p := range inst.class.Properties() {
		role := p.Role()
		if role != metamodel.RoleIndependent && role != metamodel.RoleDependent {
			continue
		}
		pType, ok := p.Type()
		if !ok {
			continue
		}
		if p.Collection() {
			if cur, ok := p.Get(inst.obj); ok && sliceLen(cur) > 0 {
				continue
			}
		} else if _, ok := p.Get(inst.obj); ok {
			continue
		}
		var found *instance
		count := 0
		for _, m := range migrated {
			if m.obj == inst.obj {
				continue
			}
			if m.class.Name() == pType.Name() {
				count++
				found = m
			}
		}
		if count != 1 {
			continue
		}
		value, err := e.transformRef(inst.class.Name(), p.Name(), inst.obj, found.obj, r)
		if err != nil {
			return fmt.Errorf("migrator: row %d: shim on %s.%s: %w", r.Number, inst.class.Name(), p.Name(), err)
		}
		if value == nil {
			continue
		}
		if p.Collection() {
			if err := p.Append(inst.obj, value); err != nil {
				return fmt.Errorf("migrator: row %d: appending %s.%s: %w", r.Number, inst.class.Name(), p.Name(), err)
			}
		} else if err := p.Set(inst.obj, value); err != nil {
			return fmt.Errorf("migrator: row %d: assigning %s.%s: %w", r.Number, inst.class.Name(), p.Name(), err)
		}
	}
	return nil
}

func ownerInvalid(inst *instance, migrated []*instance) bool {
	for _, p := range inst.class.Properties() {
		if p.Role() != metamodel.RoleOwner {
			continue
		}
		val, ok := p.Get(inst.obj)
		if !ok {
			continue
		}
		owner := findInstanceByObj(migrated, val)
		if owner != nil && !owner.valid {
			return true
		}
	}
	return false
}

func dependentStatus(inst *instance, migrated []*instance) (anyDependent, validDependent bool) {
	for _, m := range migrated {
		if m.obj == inst.obj {
			continue
		}
		for _, p := range m.class.Properties() {
			if p.Role() != metamodel.RoleOwner {
				continue
			}
			val, ok := p.Get(m.obj)
			if !ok || val != inst.obj {
				continue
			}
			anyDependent = true
			if m.valid {
				validDependent = true
			}
		}
	}
	return anyDependent, validDependent
}

func findInstanceByObj(migrated []*instance, obj any) *instance {
	for _, m := range migrated {
		if m.obj == obj {
			return m
		}
	}
	return nil
}

func invalidateOwnerRefs(inst *instance) {
	inst.valid = false
	for _, p := range inst.class.Properties() {
		if p.Role() == metamodel.RoleOwner {
			_ = p.Set(inst.obj, nil)
		}
	}
}

func invalidateAllRefs(inst *instance) {
	inst.valid = false
	for _, p := range inst.class.Properties() {
		if p.Role() != metamodel.RolePlain {
			_ = p.Set(inst.obj, nil)
		}
	}
}

func sliceLen(v any) int {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return 0
	}
	return rv.Len()
}

func reverseInstances(in []*instance) []*instance {
	out := make([]*instance, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// sortByClassDependency orders instances so that every instance of an
// owner class precedes every instance of a class it owns,
// breaking ties by first appearance, the same stable rule the Mapping
// Compiler uses for the creatable order (§4.5 Phase F.1).
func sortByClassDependency(instances []*instance) []*instance {
	var classOrder []string
	present := map[string]metamodel.Class{}
	for _, inst := range instances {
		if _, ok := present[inst.class.Name()]; !ok {
			classOrder = append(classOrder, inst.class.Name())
			present[inst.class.Name()] = inst.class
		}
	}
	placedClass := map[string]bool{}
	var orderedClasses []string
	for len(orderedClasses) < len(classOrder) {
		progressed := false
		for _, name := range classOrder {
			if placedClass[name] {
				continue
			}
			ready := true
			for _, o := range present[name].Owners() {
				if _, ok := present[o.Name()]; ok && !placedClass[o.Name()] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			orderedClasses = append(orderedClasses, name)
			placedClass[name] = true
			progressed = true
		}
		if !progressed {
			for _, name := range classOrder {
				if !placedClass[name] {
					orderedClasses = append(orderedClasses, name)
					placedClass[name] = true
				}
			}
		}
	}
	rank := map[string]int{}
	for i, name := range orderedClasses {
		rank[name] = i
	}
	out := make([]*instance, len(instances))
	copy(out, instances)
	// stable sort by class rank, preserving original relative order
	// within a class.
	sorted := make([]*instance, 0, len(out))
	for _, name := range orderedClasses {
		for _, inst := range out {
			if inst.class.Name() == name {
				sorted = append(sorted, inst)
			}
		}
	}
	return sorted
}
