package reader

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/csvmigrate/engine/row"
)

// Converter is a user-supplied pre-coercion hook (§4.1 step (i)). It
// returns a non-nil Value to short-circuit the built-in coercion chain,
// or a Value with Kind == row.Absent to fall through to it.
type Converter func(raw string) row.Value

var (
	intPattern   = regexp.MustCompile(`^[1-9]\d*$`)
	floatPattern = regexp.MustCompile(`^(\d+\.\d*|\d*\.\d+)$`)

	monthTable = map[string]string{
		"jan": "01", "feb": "02", "mar": "03", "apr": "04",
		"may": "05", "jun": "06", "jul": "07", "aug": "08",
		"sep": "09", "oct": "10", "nov": "11", "dec": "12",
	}
	dMonYY = regexp.MustCompile(`^(\d{1,2})-([A-Za-z]{3})-(\d{2}|\d{4})$`)

	dateLayouts = []string{
		"Jan 2, 2006",
		"Jan 2 2006",
		"2006-1-2",
		"2006/1/2",
		"2-1-2006",
		"2/1/2006",
	}
)

// coerce converts a trimmed, non-empty raw string into a row.Value,
// applying the fixed precedence chain from §4.1: user converter, then
// integer, then date, then float, then string.
func coerce(raw string, conv Converter) row.Value {
	if conv != nil {
		if v := conv(raw); !v.IsAbsent() {
			return v
		}
	}
	if intPattern.MatchString(raw) {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return row.OfInt(n)
		}
	}
	if t, ok := tryDate(raw); ok {
		return row.OfDate(t)
	}
	if floatPattern.MatchString(raw) {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return row.OfFloat(f)
		}
	}
	return row.OfString(raw)
}

func tryDate(raw string) (time.Time, bool) {
	if m := dMonYY.FindStringSubmatch(raw); m != nil {
		mon, ok := monthTable[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		day := m[1]
		if len(day) == 1 {
			day = "0" + day
		}
		if t, err := time.Parse("2006-01-02", year+"-"+mon+"-"+day); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Coerce applies the same coercion chain as a CSV cell to an arbitrary
// string, with no user converter. The Row Migrator uses this to type a
// YAML default literal the same way the reader would type the
// equivalent source cell.
func Coerce(raw string) row.Value {
	if raw == "" {
		return row.AbsentValue()
	}
	return coerce(raw, nil)
}
