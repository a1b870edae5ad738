// Package filter implements the Filter component (spec §4.2): a
// compiled value transformer built from a declarative spec of
// literal→value and regex→template rules with a catch-all, plus the
// synthesized boolean-attribute composition.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/csvmigrate/engine/row"
)

// Absent is the sentinel key in a spec map meaning "absent" (the YAML
// "~" per §6). Callers building a spec programmatically use this value
// to mean the same thing a YAML loader would produce for "~".
const Absent = "\x00absent\x00"

// PreBlock is an optional external pre-processing hook applied to the
// input value before any rule is considered (§4.2 step 1).
type PreBlock func(v string) string

// Filter is a compiled value transformer.
type Filter struct {
	literal  map[string]string
	regexes  []compiledRegex
	catchAll *string
	pre      PreBlock
}

type compiledRegex struct {
	re   *regexp.Regexp
	tmpl string
}

// Compile builds a Filter from a spec map whose keys are either literal
// strings or "/pattern/flags" regexes, and values are replacement
// strings (replacements may contain $n back-references for regex
// rules). spec may be nil. pre is an optional pre-processing block.
//
// Compile fails (configuration error) on a malformed regex pattern or
// flag; flags other than "i" are rejected per §4.2.
func Compile(spec map[string]string, pre PreBlock) (*Filter, error) {
	f := &Filter{literal: map[string]string{}, pre: pre}
	// Iteration order over a Go map is not stable; callers that need
	// deterministic first-match-wins regex order should supply specs
	// via CompileOrdered instead. Compile is kept for convenience when
	// ordering does not matter (e.g. a single regex plus a catch-all).
	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	return compileOrdered(f, keys, spec)
}

// CompileOrdered is like Compile but takes the rule keys in the caller's
// intended match order, used by config loaders that preserve YAML
// document order for regex priority.
func CompileOrdered(keys []string, spec map[string]string, pre PreBlock) (*Filter, error) {
	f := &Filter{literal: map[string]string{}, pre: pre}
	return compileOrdered(f, keys, spec)
}

func compileOrdered(f *Filter, keys []string, spec map[string]string) (*Filter, error) {
	for _, key := range keys {
		value := spec[key]
		pattern, flags, isRegex := parseRegexKey(key)
		if !isRegex {
			if key == ".*" {
				v := value
				f.catchAll = &v
				continue
			}
			f.literal[key] = value
			continue
		}
		reFlags := ""
		for _, fl := range flags {
			switch fl {
			case 'i':
				reFlags = "(?i)"
			default:
				return nil, fmt.Errorf("filter: unsupported regex flag %q in %q", string(fl), key)
			}
		}
		if pattern == ".*" {
			v := value
			f.catchAll = &v
			continue
		}
		re, err := regexp.Compile(reFlags + pattern)
		if err != nil {
			return nil, fmt.Errorf("filter: malformed regex %q: %w", key, err)
		}
		f.regexes = append(f.regexes, compiledRegex{re: re, tmpl: value})
	}
	return f, nil
}

// parseRegexKey reports whether key is of the form "/pattern/flags" and
// if so returns the pattern and flags.
func parseRegexKey(key string) (pattern, flags string, ok bool) {
	if len(key) < 2 || key[0] != '/' {
		return "", "", false
	}
	last := strings.LastIndexByte(key, '/')
	if last <= 0 {
		return "", "", false
	}
	return key[1:last], key[last+1:], true
}

// Apply transforms v per the precedence in §4.2: pre-block, then
// literal match, then first matching regex (insertion order) with
// $n-template substitution, then catch-all, then pass-through.
//
// A regex whose substituted template is empty yields Absent (this is
// how a filter "drops" a value without mapping it to another literal).
func (f *Filter) Apply(v string) row.Value {
	if f == nil {
		return row.OfString(v)
	}
	if f.pre != nil {
		v = f.pre(v)
	}
	if repl, ok := f.literal[v]; ok {
		if repl == Absent {
			return row.AbsentValue()
		}
		return row.OfString(repl)
	}
	for _, cr := range f.regexes {
		if !cr.re.MatchString(v) {
			continue
		}
		out := cr.re.ReplaceAllString(v, cr.tmpl)
		if out == "" {
			return row.AbsentValue()
		}
		return row.OfString(out)
	}
	if f.catchAll != nil {
		if *f.catchAll == Absent {
			return row.AbsentValue()
		}
		return row.OfString(*f.catchAll)
	}
	return row.OfString(v)
}
