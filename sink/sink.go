// Package sink implements the Extract Writer and Reject Writer (spec
// §4.6, §6): small wrappers around reader.Writer that give the
// migrator side outputs with an open-once/flush-per-record/close-on-
// exit lifecycle, matching the CSV Reader's own writer.
package sink

import (
	"io"

	"github.com/csvmigrate/engine/errs"
	"github.com/csvmigrate/engine/reader"
	"github.com/csvmigrate/engine/shim"
)

// RejectWriter appends raw, unmigrated rows to the rejects file, which
// carries the same header as the input (§6).
type RejectWriter struct {
	w *reader.Writer
}

// NewRejectWriter opens a rejects sink with the given header.
func NewRejectWriter(wc io.WriteCloser, header []string) (*RejectWriter, error) {
	w, err := reader.NewWriter(wc, header)
	if err != nil {
		return nil, err
	}
	return &RejectWriter{w: w}, nil
}

// WriteRow appends one raw row, in the row's original column order.
func (rw *RejectWriter) WriteRow(raw []string) error { return rw.w.Append(raw) }

// Close closes the underlying writer. Safe to call more than once.
func (rw *RejectWriter) Close() error { return rw.w.Close() }

// ExtractWriter is the sink a target's Extract hook writes through
// (§4.6). With a non-empty header it is a CSV writer; with none, it is
// a plain line-appending stream.
type ExtractWriter struct {
	csv    *reader.Writer
	line   shim.Sink
	wc     io.WriteCloser
	closed bool
}

// NewExtractWriter opens an extract sink. header may be nil/empty for
// plain line-appending mode.
func NewExtractWriter(wc io.WriteCloser, header []string) (*ExtractWriter, error) {
	if len(header) == 0 {
		return &ExtractWriter{line: shim.NewLineSink(wc), wc: wc}, nil
	}
	w, err := reader.NewWriter(wc, header)
	if err != nil {
		return nil, err
	}
	return &ExtractWriter{csv: w, wc: wc}, nil
}

// WriteRecord implements shim.Sink, so an ExtractWriter can be passed
// directly to a target's Extract(sink) hook.
func (e *ExtractWriter) WriteRecord(fields []string) error {
	if e.csv != nil {
		return e.csv.Append(fields)
	}
	return e.line.WriteRecord(fields)
}

// Close closes the underlying writer. Safe to call more than once.
func (e *ExtractWriter) Close() error {
	if e.csv != nil {
		return e.csv.Close()
	}
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.wc.Close(); err != nil {
		return errs.NewIO(err)
	}
	return nil
}
