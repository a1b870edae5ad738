package filter

import (
	"github.com/csvmigrate/engine/row"
)

// BoolFilter is the implicit filter synthesized for every boolean-typed
// attribute (§4.2): the spec is partitioned into a string-keyed
// sub-filter and a boolean-keyed sub-filter. The string sub-filter runs
// first; its result (or the original value, if it yields Absent) is
// parsed as a boolean and run through the boolean sub-filter.
type BoolFilter struct {
	stringFilter *Filter
	boolFilter   *Filter
}

// CompileBool partitions spec into its string- and boolean-keyed halves.
// A key is boolean-keyed if it is "true" or "false" in lower, title or
// upper case, or the catch-all "/.*/"; everything else is
// string-keyed. keys gives match order for regex priority within each
// half; a key with no entry in spec is skipped.
func CompileBool(keys []string, spec map[string]string) (*BoolFilter, error) {
	var stringKeys, boolKeys []string
	stringSpec := map[string]string{}
	boolSpec := map[string]string{}
	for _, k := range keys {
		if _, ok := spec[k]; !ok {
			continue
		}
		if isBoolKey(k) {
			boolKeys = append(boolKeys, k)
			boolSpec[k] = spec[k]
			continue
		}
		stringKeys = append(stringKeys, k)
		stringSpec[k] = spec[k]
	}
	sf, err := CompileOrdered(stringKeys, stringSpec, nil)
	if err != nil {
		return nil, err
	}
	bf, err := CompileOrdered(boolKeys, boolSpec, nil)
	if err != nil {
		return nil, err
	}
	return &BoolFilter{stringFilter: sf, boolFilter: bf}, nil
}

func isBoolKey(key string) bool {
	pattern, _, isRegex := parseRegexKey(key)
	if isRegex {
		return pattern == ".*"
	}
	switch key {
	case "true", "false", "True", "False", "TRUE", "FALSE":
		return true
	default:
		return false
	}
}

// Apply runs v through the string sub-filter; if that yields Absent,
// parses the original value as a boolean and runs the result through
// the boolean sub-filter; otherwise it parses the rewritten value. If
// the boolean parse fails, or the boolean sub-filter yields Absent, the
// overall result is Absent (spec §9 Open Question: double-absent is
// treated as absent).
func (b *BoolFilter) Apply(v string) row.Value {
	sv := b.stringFilter.Apply(v)
	if !sv.IsAbsent() {
		v = sv.AsString()
	} else {
		parsed, ok := coerceBoolString(v)
		if !ok {
			return row.AbsentValue()
		}
		return b.applyBool(parsed)
	}
	parsed, ok := coerceBoolString(v)
	if !ok {
		return row.AbsentValue()
	}
	return b.applyBool(parsed)
}

func (b *BoolFilter) applyBool(parsed bool) row.Value {
	key := "false"
	if parsed {
		key = "true"
	}
	out := b.boolFilter.Apply(key)
	if out.IsAbsent() {
		return row.AbsentValue()
	}
	reparsed, ok := coerceBoolString(out.AsString())
	if !ok {
		return row.AbsentValue()
	}
	return row.OfBool(reparsed)
}

func coerceBoolString(s string) (bool, bool) {
	switch s {
	case "true", "True", "TRUE", "1", "yes", "Yes", "YES", "y", "Y":
		return true, true
	case "false", "False", "FALSE", "0", "no", "No", "NO", "n", "N":
		return false, true
	default:
		return false, false
	}
}
