// Package mapping implements the Mapping Compiler (spec §4.3): it
// resolves textual attribute paths against the domain metamodel,
// merges field/default/filter configs, performs the superclass→
// subclass merge and abstract-class check, computes the owner
// closure, and produces a stable topological order over the
// creatable classes.
package mapping

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/csvmigrate/engine/config"
	"github.com/csvmigrate/engine/errs"
	"github.com/csvmigrate/engine/filter"
	"github.com/csvmigrate/engine/metamodel"
	"github.com/csvmigrate/engine/row"
)

// Accessors is the subset of reader.Reader the compiler needs: a
// header-string to normalized-field-key lookup.
type Accessors interface {
	Accessor(header string) (string, bool)
}

// Applyer is satisfied by both *filter.Filter and *filter.BoolFilter.
type Applyer interface {
	Apply(v string) row.Value
}

// Path is a non-empty chain of Properties rooted at a class (spec §3).
type Path struct {
	Root  metamodel.Class
	Props []metamodel.Property
	// Tail is the dotted property-name chain, without any leading
	// class token, kept so the superclass merge can re-resolve the
	// same path against a different (sub)class.
	Tail string
}

// Last returns the terminal Property of the path.
func (p Path) Last() metamodel.Property { return p.Props[len(p.Props)-1] }

func (p Path) String() string { return p.Root.Name() + "." + p.Tail }

// FieldBinding pairs a Path with the source field-key that feeds it.
type FieldBinding struct {
	Path      Path
	HeaderKey string
}

// DefaultBinding pairs a Path with a literal default value.
type DefaultBinding struct {
	Path    Path
	Literal string
}

// Mapping is the Mapping Compiler's immutable output.
type Mapping struct {
	Target metamodel.Class

	// FieldPaths maps a creatable class name to the Paths rooted at it.
	FieldPaths map[string][]FieldBinding
	// Defaults maps a creatable class name to its default bindings.
	Defaults map[string][]DefaultBinding
	// Filters maps (owning class name, property name) to the compiled
	// transformer for that attribute. The owning class is the direct
	// declarer of the terminal property, which may be an intermediate
	// class reached partway through a longer Path.
	Filters map[string]map[string]Applyer
	// Creatable is the stable, owner-before-dependent construction order.
	Creatable []metamodel.Class
	// OwnerClosure names classes added automatically to host orphan
	// dependents, not because a config entry named them.
	OwnerClosure map[string]bool
}

type classSet struct {
	order   []string
	classes map[string]metamodel.Class
}

func newClassSet() *classSet { return &classSet{classes: map[string]metamodel.Class{}} }

func (s *classSet) add(c metamodel.Class) {
	if _, ok := s.classes[c.Name()]; ok {
		return
	}
	s.classes[c.Name()] = c
	s.order = append(s.order, c.Name())
}

func (s *classSet) has(name string) bool { _, ok := s.classes[name]; return ok }

func (s *classSet) remove(name string) {
	delete(s.classes, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Compile builds a Mapping for targetName against mm, accessors, and
// the three (optional) YAML configs. Every failure is a configuration
// error (§7): it surfaces wrapped in an *errs.ConfigError so a caller
// can distinguish it from the per-row and I/O errors raised later.
func Compile(mm metamodel.Metamodel, targetName string, accessors Accessors, fieldCfg *config.FieldMapping, defaultsCfg *config.Defaults, filterCfg *config.FilterSpec) (*Mapping, error) {
	mp, err := compile(mm, targetName, accessors, fieldCfg, defaultsCfg, filterCfg)
	if err != nil {
		return nil, errs.NewConfig(err)
	}
	return mp, nil
}

func compile(mm metamodel.Metamodel, targetName string, accessors Accessors, fieldCfg *config.FieldMapping, defaultsCfg *config.Defaults, filterCfg *config.FilterSpec) (*Mapping, error) {
	target, ok := mm.ClassByName(targetName)
	if !ok {
		return nil, fmt.Errorf("mapping: unknown target class %q", targetName)
	}

	classes := newClassSet()
	classes.add(target)

	fieldPaths := map[string][]FieldBinding{}
	defaults := map[string][]DefaultBinding{}
	boolLeaves := map[boolKey]bool{}

	if fieldCfg != nil {
		seen := map[string]bool{}
		for _, header := range fieldCfg.Keys {
			if seen[header] {
				continue
			}
			seen[header] = true
			spec, _ := fieldCfg.Value(header)
			if spec == "" || spec == config.NullLiteral {
				continue
			}
			for _, raw := range strings.Split(spec, ",") {
				raw = strings.TrimSpace(raw)
				if raw == "" {
					continue
				}
				path, err := parsePath(mm, target, raw)
				if err != nil {
					return nil, fmt.Errorf("mapping: field %q: %w", header, err)
				}
				fieldKey, ok := accessors.Accessor(header)
				if !ok {
					return nil, fmt.Errorf("mapping: field %q: no such source header", header)
				}
				classes.add(path.Root)
				fieldPaths[path.Root.Name()] = append(fieldPaths[path.Root.Name()], FieldBinding{Path: path, HeaderKey: fieldKey})
				markBoolLeaf(boolLeaves, path)
			}
		}
	}

	if defaultsCfg != nil {
		for _, key := range defaultsCfg.Keys {
			literal, _ := defaultsCfg.Value(key)
			path, err := parsePath(mm, target, key)
			if err != nil {
				return nil, fmt.Errorf("mapping: default %q: %w", key, err)
			}
			classes.add(path.Root)
			defaults[path.Root.Name()] = append(defaults[path.Root.Name()], DefaultBinding{Path: path, Literal: literal})
			markBoolLeaf(boolLeaves, path)
		}
	}

	filters, err := compileFilters(mm, target, filterCfg, boolLeaves)
	if err != nil {
		return nil, err
	}

	if err := mergeSuperclasses(classes, fieldPaths, defaults, filters); err != nil {
		return nil, err
	}

	for _, name := range classes.order {
		if classes.classes[name].Abstract() {
			return nil, fmt.Errorf("mapping: class %q is abstract and has no concrete subclass in the mapping", name)
		}
	}

	ownerClosure, err := closeOwners(classes)
	if err != nil {
		return nil, err
	}

	creatable, err := stableTopoSort(classes)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		Target:       target,
		FieldPaths:   fieldPaths,
		Defaults:     defaults,
		Filters:      filters,
		Creatable:    creatable,
		OwnerClosure: ownerClosure,
	}, nil
}

type boolKey struct{ class, prop string }

func markBoolLeaf(leaves map[boolKey]bool, p Path) {
	last := p.Last()
	if last.Boolean() {
		leaves[boolKey{last.Owner().Name(), last.Name()}] = true
	}
}

func compileFilters(mm metamodel.Metamodel, target metamodel.Class, filterCfg *config.FilterSpec, boolLeaves map[boolKey]bool) (map[string]map[string]Applyer, error) {
	out := map[string]map[string]Applyer{}
	if filterCfg != nil {
		for _, pathStr := range filterCfg.Paths {
			path, err := parsePath(mm, target, pathStr)
			if err != nil {
				return nil, fmt.Errorf("mapping: filter %q: %w", pathStr, err)
			}
			leaf := path.Last()
			rules := filterCfg.Rules[pathStr]
			spec := make(map[string]string, len(rules.Keys))
			for _, k := range rules.Keys {
				v := rules.Values[k]
				if v == config.NullLiteral {
					v = filter.Absent
				}
				spec[k] = v
			}
			var applyer Applyer
			if leaf.Boolean() {
				applyer, err = filter.CompileBool(rules.Keys, spec)
			} else {
				applyer, err = filter.CompileOrdered(rules.Keys, spec, nil)
			}
			if err != nil {
				return nil, fmt.Errorf("mapping: filter %q: %w", pathStr, err)
			}
			owner := leaf.Owner().Name()
			if out[owner] == nil {
				out[owner] = map[string]Applyer{}
			}
			out[owner][leaf.Name()] = applyer
		}
	}
	for key := range boolLeaves {
		if out[key.class] == nil {
			out[key.class] = map[string]Applyer{}
		}
		if _, ok := out[key.class][key.prop]; ok {
			continue
		}
		bf, _ := filter.CompileBool(nil, map[string]string{})
		out[key.class][key.prop] = bf
	}
	return out, nil
}

// parsePath resolves a configured "Class.a.b.c" (or bare "a.b.c" rooted
// at target) string into a Path.
func parsePath(mm metamodel.Metamodel, target metamodel.Class, raw string) (Path, error) {
	tokens := strings.Split(raw, ".")
	if len(tokens) == 0 || tokens[0] == "" {
		return Path{}, fmt.Errorf("empty path")
	}
	root := target
	tail := tokens
	if isClassToken(tokens[0]) {
		if c, ok := mm.ClassByName(tokens[0]); ok {
			root = c
			tail = tokens[1:]
		}
	}
	if len(tail) == 0 {
		return Path{}, fmt.Errorf("path %q names a class but no attribute", raw)
	}
	props, err := resolveChain(root, tail)
	if err != nil {
		return Path{}, err
	}
	return Path{Root: root, Props: props, Tail: strings.Join(tail, ".")}, nil
}

func isClassToken(tok string) bool {
	if tok == "" {
		return false
	}
	return unicode.IsUpper(rune(tok[0]))
}

func resolveChain(root metamodel.Class, tokens []string) ([]metamodel.Property, error) {
	cur := root
	props := make([]metamodel.Property, 0, len(tokens))
	for i, tok := range tokens {
		prop, ok := cur.Property(tok)
		if !ok {
			return nil, fmt.Errorf("unknown property %q on class %q", tok, cur.Name())
		}
		if prop.Collection() {
			return nil, fmt.Errorf("collection property %q.%q cannot appear in a path", cur.Name(), tok)
		}
		props = append(props, prop)
		if i < len(tokens)-1 {
			next, ok := prop.Type()
			if !ok {
				return nil, fmt.Errorf("property %q.%q is not a domain-object reference", cur.Name(), tok)
			}
			cur = next
		}
	}
	return props, nil
}

// mergeSuperclasses implements the superclass→subclass merge: a class
// C with strict subclasses also present in the set has its (path,
// header) entries merged into each such subclass (the subclass's own
// entries win), then C is dropped from the creatable set.
func mergeSuperclasses(classes *classSet, fieldPaths map[string][]FieldBinding, defaults map[string][]DefaultBinding, filters map[string]map[string]Applyer) error {
	for {
		progressed := false
		for _, name := range append([]string(nil), classes.order...) {
			c, ok := classes.classes[name]
			if !ok {
				continue
			}
			var subsPresent []metamodel.Class
			for _, sub := range c.Subclasses() {
				if classes.has(sub.Name()) {
					subsPresent = append(subsPresent, sub)
				}
			}
			if len(subsPresent) == 0 {
				continue
			}
			for _, sub := range subsPresent {
				if err := mergeClassInto(fieldPaths, defaults, filters, name, sub); err != nil {
					return err
				}
			}
			classes.remove(name)
			delete(fieldPaths, name)
			delete(defaults, name)
			delete(filters, name)
			progressed = true
		}
		if !progressed {
			return nil
		}
	}
}

func mergeClassInto(fieldPaths map[string][]FieldBinding, defaults map[string][]DefaultBinding, filters map[string]map[string]Applyer, srcName string, dst metamodel.Class) error {
	dstName := dst.Name()

	existingFields := map[string]bool{}
	for _, b := range fieldPaths[dstName] {
		existingFields[b.Path.Tail] = true
	}
	for _, b := range fieldPaths[srcName] {
		if existingFields[b.Path.Tail] {
			continue
		}
		props, err := resolveChain(dst, strings.Split(b.Path.Tail, "."))
		if err != nil {
			return fmt.Errorf("mapping: merging %q into %q: %w", srcName, dstName, err)
		}
		fieldPaths[dstName] = append(fieldPaths[dstName], FieldBinding{
			Path:      Path{Root: dst, Props: props, Tail: b.Path.Tail},
			HeaderKey: b.HeaderKey,
		})
	}

	existingDefaults := map[string]bool{}
	for _, b := range defaults[dstName] {
		existingDefaults[b.Path.Tail] = true
	}
	for _, b := range defaults[srcName] {
		if existingDefaults[b.Path.Tail] {
			continue
		}
		props, err := resolveChain(dst, strings.Split(b.Path.Tail, "."))
		if err != nil {
			return fmt.Errorf("mapping: merging %q into %q: %w", srcName, dstName, err)
		}
		defaults[dstName] = append(defaults[dstName], DefaultBinding{
			Path:    Path{Root: dst, Props: props, Tail: b.Path.Tail},
			Literal: b.Literal,
		})
	}

	if srcFilters, ok := filters[srcName]; ok {
		if filters[dstName] == nil {
			filters[dstName] = map[string]Applyer{}
		}
		for propName, applyer := range srcFilters {
			if _, exists := filters[dstName][propName]; exists {
				continue
			}
			filters[dstName][propName] = applyer
		}
	}
	return nil
}

// closeOwners implements owner closure: repeatedly add the first
// concrete owner whose own owner chain touches an already-creatable
// class, for every class with no creatable owner of its own, until a
// fixpoint is reached.
func closeOwners(classes *classSet) (map[string]bool, error) {
	closure := map[string]bool{}
	for {
		progressed := false
		for _, name := range append([]string(nil), classes.order...) {
			c := classes.classes[name]
			owners := c.Owners()
			if len(owners) == 0 {
				continue
			}
			hasCreatableOwner := false
			for _, o := range owners {
				if classes.has(o.Name()) {
					hasCreatableOwner = true
					break
				}
			}
			if hasCreatableOwner {
				continue
			}
			for _, o := range owners {
				if o.Abstract() || classes.has(o.Name()) {
					continue
				}
				if ownerChainTouchesCreatable(classes, o, map[string]bool{}) {
					classes.add(o)
					closure[o.Name()] = true
					progressed = true
					break
				}
			}
		}
		if !progressed {
			return closure, nil
		}
	}
}

func ownerChainTouchesCreatable(classes *classSet, c metamodel.Class, seen map[string]bool) bool {
	if seen[c.Name()] {
		return false
	}
	seen[c.Name()] = true
	for _, o := range c.Owners() {
		if classes.has(o.Name()) {
			return true
		}
		if ownerChainTouchesCreatable(classes, o, seen) {
			return true
		}
	}
	return false
}

// stableTopoSort orders classes.order so owners precede dependents,
// breaking ties by original insertion order. It runs a full pass over
// the insertion order on each step, placing every class whose owners
// (if creatable) are already placed, which both respects depends_on
// and keeps the result stable.
func stableTopoSort(classes *classSet) ([]metamodel.Class, error) {
	placed := map[string]bool{}
	result := make([]metamodel.Class, 0, len(classes.order))
	for len(result) < len(classes.order) {
		progressed := false
		for _, name := range classes.order {
			if placed[name] {
				continue
			}
			c := classes.classes[name]
			ready := true
			for _, o := range c.Owners() {
				if classes.has(o.Name()) && !placed[o.Name()] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			result = append(result, c)
			placed[name] = true
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("mapping: cyclic owner dependency among creatable classes")
		}
	}
	return result, nil
}
