package reader

import (
	"encoding/csv"
	"io"

	"github.com/csvmigrate/engine/errs"
)

// Writer mirrors Open with a caller-supplied header order: each
// appended record is flushed immediately, matching §4.1's write mode.
type Writer struct {
	w      *csv.Writer
	closer io.Closer
	header []string
}

// NewWriter writes header immediately and returns a Writer ready to
// append records in that column order.
func NewWriter(wc io.WriteCloser, header []string) (*Writer, error) {
	cw := csv.NewWriter(wc)
	if err := cw.Write(header); err != nil {
		return nil, errs.NewIO(err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, errs.NewIO(err)
	}
	return &Writer{w: cw, closer: wc, header: append([]string(nil), header...)}, nil
}

// Header returns the column order this writer was opened with.
func (w *Writer) Header() []string { return append([]string(nil), w.header...) }

// Append writes one record and flushes.
func (w *Writer) Append(record []string) error {
	if err := w.w.Write(record); err != nil {
		return errs.NewIO(err)
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return errs.NewIO(err)
	}
	return nil
}

// Close closes the underlying stream. Safe to call more than once.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	if err != nil {
		return errs.NewIO(err)
	}
	return nil
}
