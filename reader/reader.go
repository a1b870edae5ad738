// Package reader implements the CSV Reader component (spec §4.1): it
// streams records from a source as header-keyed field maps with type
// coercion, and exposes the accessor lookup that configuration resolves
// field-mapping headers against.
//
// The iterator shape (Next/Record/Err/Close, sticky error once Next
// returns false) follows the teacher's transform.Decoder/RecordIterator
// pattern, narrowed from a multi-source, format-agnostic pipeline down
// to a single CSV source with typed cells.
package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/csvmigrate/engine/errs"
	"github.com/csvmigrate/engine/row"
)

// Options configures a Reader.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// Converter is an optional user-supplied pre-coercion hook.
	Converter Converter
}

// Reader streams rows from a single CSV source.
type Reader struct {
	csvReader *csv.Reader
	closer    io.Closer

	fieldNames []string
	accessors  []string
	index      map[string]int
	converter  Converter

	rowNum  int
	current *row.Row
	err     error
}

// Open reads the header row from rc and returns a Reader positioned
// before the first data row. The caller must call Close when done.
func Open(rc io.ReadCloser, opt Options) (*Reader, error) {
	comma := opt.Comma
	if comma == 0 {
		comma = ','
	}
	cr := csv.NewReader(rc)
	cr.Comma = comma
	cr.ReuseRecord = false
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, errs.NewIO(fmt.Errorf("reader: unable to read header: %w", err))
	}
	accessors, index, err := buildAccessors(header)
	if err != nil {
		return nil, errs.NewConfig(err)
	}
	cr.FieldsPerRecord = len(header)

	return &Reader{
		csvReader:  cr,
		closer:     rc,
		fieldNames: append([]string(nil), header...),
		accessors:  accessors,
		index:      index,
		converter:  opt.Converter,
	}, nil
}

// FieldNames returns the original header strings in order.
func (r *Reader) FieldNames() []string { return append([]string(nil), r.fieldNames...) }

// Accessors returns the normalized field-keys in order.
func (r *Reader) Accessors() []string { return append([]string(nil), r.accessors...) }

// Accessor resolves an original header string to its normalized
// field-key, reporting false if header is not present in this source.
func (r *Reader) Accessor(header string) (string, bool) {
	i, ok := r.index[normalize(header)]
	if !ok {
		return "", false
	}
	return r.accessors[i], true
}

// HasAccessor reports whether fieldKey (already normalized) is one of
// this reader's accessors.
func (r *Reader) HasAccessor(fieldKey string) bool {
	_, ok := r.index[fieldKey]
	return ok
}

// Next advances to the next data row, returning false on EOF or error.
// When Next returns false, call Err to distinguish clean EOF from a
// decode failure.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	rec, err := r.csvReader.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		r.err = errs.NewIO(fmt.Errorf("reader: row %d: %w", r.rowNum+1, err))
		return false
	}
	r.rowNum++
	out := row.NewRow(r.accessors)
	out.Number = r.rowNum
	out.Raw = append([]string(nil), rec...)
	for i, raw := range rec {
		if i >= len(r.accessors) {
			break
		}
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			out.Set(r.accessors[i], row.AbsentValue())
			continue
		}
		out.Set(r.accessors[i], coerce(trimmed, r.converter))
	}
	r.current = out
	return true
}

// Record returns the current row. Valid only after Next returns true.
func (r *Reader) Record() *row.Row { return r.current }

// Err returns the first non-EOF error encountered, or nil.
func (r *Reader) Err() error { return r.err }

// Close releases the underlying stream. Safe to call more than once.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	if err != nil {
		return errs.NewIO(err)
	}
	return nil
}

