// Package row defines the tagged-union cell value and the ordered Row
// that the CSV Reader produces and every downstream component consumes.
package row

import (
	"strconv"
	"time"
)

// Kind identifies which variant of Value is populated.
type Kind int

const (
	// Absent marks an empty input cell. The zero Value is Absent.
	Absent Kind = iota
	String
	Int
	Float
	Date
	Bool
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Date:
		return "date"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a coerced CSV cell: exactly one of its typed fields is
// meaningful, selected by Kind. Absent carries no data.
type Value struct {
	Kind Kind

	Str  string
	Num  int64
	Flt  float64
	Dt   time.Time
	Bool bool
}

// IsAbsent reports whether v carries no data.
func (v Value) IsAbsent() bool { return v.Kind == Absent }

// Any unwraps v into a plain Go value (string, int64, float64,
// time.Time, bool, or nil for Absent), for handing to a Property
// writer or a shim hook.
func (v Value) Any() any {
	switch v.Kind {
	case String:
		return v.Str
	case Int:
		return v.Num
	case Float:
		return v.Flt
	case Date:
		return v.Dt
	case Bool:
		return v.Bool
	default:
		return nil
	}
}

// AsString renders v for diagnostics and for writing to the rejects
// or extract sinks. Absent renders as the empty string.
func (v Value) AsString() string {
	switch v.Kind {
	case String:
		return v.Str
	case Int:
		return strconv.FormatInt(v.Num, 10)
	case Float:
		return strconv.FormatFloat(v.Flt, 'f', -1, 64)
	case Date:
		return v.Dt.Format("2006-01-02")
	case Bool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// AbsentValue constructs the Absent value.
func AbsentValue() Value { return Value{Kind: Absent} }

// Of* construct typed Values.
func OfString(s string) Value { return Value{Kind: String, Str: s} }
func OfInt(n int64) Value     { return Value{Kind: Int, Num: n} }
func OfFloat(f float64) Value { return Value{Kind: Float, Flt: f} }
func OfDate(t time.Time) Value { return Value{Kind: Date, Dt: t} }
func OfBool(b bool) Value     { return Value{Kind: Bool, Bool: b} }

// Row is an ordered mapping from normalized field-key to coerced Value.
// Field order mirrors the source header order.
type Row struct {
	Keys   []string
	values map[string]Value
	Number int // 1-based record number within the source, header excluded
	Raw    []string
}

// NewRow constructs an empty Row with the given key order.
func NewRow(keys []string) *Row {
	return &Row{Keys: append([]string(nil), keys...), values: make(map[string]Value, len(keys))}
}

// Set assigns the value for a field key.
func (r *Row) Set(key string, v Value) { r.values[key] = v }

// Get returns the value bound to key, or Absent if unset.
func (r *Row) Get(key string) Value {
	if v, ok := r.values[key]; ok {
		return v
	}
	return AbsentValue()
}
