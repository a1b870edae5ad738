// Package join implements the CSV Joiner (spec §4.8): a streaming
// sort-merge outer join of two CSVs pre-sorted ascending on their
// common columns, with a one-record lookahead buffer per side feeding
// the documented duplicate-side tie-break. It reuses the teacher's
// forward-only pull iterator idiom (the same shape as
// reader.Reader's Next/Record/Err), one instance per side, rather than
// buffering either input in full.
package join

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/csvmigrate/engine/errs"
)

// Transform is an optional per-output-record hook. Returning ok=false
// drops the record (§4.8 "if the transform returns absent, the record
// is dropped").
type Transform func(record []string) (out []string, ok bool)

// Options configures a Join.
type Options struct {
	// SourceColumns, if non-empty, names and orders the source-only
	// columns to include in the output (default: all, in source header
	// order).
	SourceColumns []string
	// Transform, if set, is applied to every candidate output record
	// before it is written.
	Transform Transform
}

// Summary reports how many records a Join produced.
type Summary struct {
	Rows int
}

// Run performs the join described in §4.8, reading CSV from source
// and target and writing the merged CSV to out. Both source and
// target must already be sorted ascending on their common columns, in
// the order those columns appear in the source header; Run does not
// verify this (a reversed or unsorted input silently produces a
// garbled join, per the documented precondition).
func Run(source, target io.Reader, out io.Writer, opt Options) (Summary, error) {
	sr := csv.NewReader(source)
	sr.FieldsPerRecord = -1
	tr := csv.NewReader(target)
	tr.FieldsPerRecord = -1

	sourceHeader, err := sr.Read()
	if err != nil {
		return Summary{}, errs.NewIO(fmt.Errorf("join: reading source header: %w", err))
	}
	targetHeader, err := tr.Read()
	if err != nil {
		return Summary{}, errs.NewIO(fmt.Errorf("join: reading target header: %w", err))
	}

	layout, err := buildLayout(sourceHeader, targetHeader, opt.SourceColumns)
	if err != nil {
		return Summary{}, errs.NewConfig(err)
	}

	src, err := newSide(sr, layout.sourceKeyIdx)
	if err != nil {
		return Summary{}, errs.NewIO(fmt.Errorf("join: reading source: %w", err))
	}
	tgt, err := newSide(tr, layout.targetKeyIdx)
	if err != nil {
		return Summary{}, errs.NewIO(fmt.Errorf("join: reading target: %w", err))
	}

	w := csv.NewWriter(out)
	if err := w.Write(layout.header()); err != nil {
		return Summary{}, errs.NewIO(fmt.Errorf("join: writing header: %w", err))
	}

	var sum Summary
	emit := func(common, sourceOnly, targetOnly []string) error {
		rec := make([]string, 0, len(common)+len(sourceOnly)+len(targetOnly))
		rec = append(rec, common...)
		rec = append(rec, sourceOnly...)
		rec = append(rec, targetOnly...)
		if opt.Transform != nil {
			out, ok := opt.Transform(rec)
			if !ok {
				return nil
			}
			rec = out
		}
		if err := w.Write(rec); err != nil {
			return err
		}
		sum.Rows++
		return nil
	}

	blankSourceOnly := make([]string, len(layout.sourceOnlyIdx))
	blankTargetOnly := make([]string, len(layout.targetOnlyIdx))

	for src.ok() || tgt.ok() {
		switch {
		case src.ok() && tgt.ok():
			switch compareKey(src.key(), tgt.key()) {
			case -1:
				if err := emit(src.key(), pick(src.record(), layout.sourceOnlyIdx), blankTargetOnly); err != nil {
					return sum, errs.NewIO(fmt.Errorf("join: %w", err))
				}
				if err := src.advance(); err != nil {
					return sum, errs.NewIO(fmt.Errorf("join: reading source: %w", err))
				}
			case 1:
				if err := emit(tgt.key(), blankSourceOnly, pick(tgt.record(), layout.targetOnlyIdx)); err != nil {
					return sum, errs.NewIO(fmt.Errorf("join: %w", err))
				}
				if err := tgt.advance(); err != nil {
					return sum, errs.NewIO(fmt.Errorf("join: reading target: %w", err))
				}
			default:
				if err := emit(src.key(), pick(src.record(), layout.sourceOnlyIdx), pick(tgt.record(), layout.targetOnlyIdx)); err != nil {
					return sum, errs.NewIO(fmt.Errorf("join: %w", err))
				}
				srcDup := src.nextKeyEqualsCurrent()
				tgtDup := tgt.nextKeyEqualsCurrent()
				switch {
				case srcDup && !tgtDup:
					if err := src.advance(); err != nil {
						return sum, errs.NewIO(fmt.Errorf("join: reading source: %w", err))
					}
				case tgtDup && !srcDup:
					if err := tgt.advance(); err != nil {
						return sum, errs.NewIO(fmt.Errorf("join: reading target: %w", err))
					}
				case srcDup && tgtDup:
					// Duplicates on both sides at once: not literally
					// covered by the documented single-side rule.
					// Advance the source side and let the loop
					// re-check the tie-break on the next iteration,
					// so both duplicate runs drain one record at a
					// time; the source side always moves first.
					if err := src.advance(); err != nil {
						return sum, errs.NewIO(fmt.Errorf("join: reading source: %w", err))
					}
				default:
					if err := src.advance(); err != nil {
						return sum, errs.NewIO(fmt.Errorf("join: reading source: %w", err))
					}
					if err := tgt.advance(); err != nil {
						return sum, errs.NewIO(fmt.Errorf("join: reading target: %w", err))
					}
				}
			}
		case src.ok():
			if err := emit(src.key(), pick(src.record(), layout.sourceOnlyIdx), blankTargetOnly); err != nil {
				return sum, errs.NewIO(fmt.Errorf("join: %w", err))
			}
			if err := src.advance(); err != nil {
				return sum, errs.NewIO(fmt.Errorf("join: reading source: %w", err))
			}
		default:
			if err := emit(tgt.key(), blankSourceOnly, pick(tgt.record(), layout.targetOnlyIdx)); err != nil {
				return sum, errs.NewIO(fmt.Errorf("join: %w", err))
			}
			if err := tgt.advance(); err != nil {
				return sum, errs.NewIO(fmt.Errorf("join: reading target: %w", err))
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return sum, errs.NewIO(fmt.Errorf("join: flushing output: %w", err))
	}
	return sum, nil
}

func pick(record []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, col := range idx {
		if col < len(record) {
			out[i] = record[col]
		}
	}
	return out
}

// compareKey orders two key tuples component-wise: an empty component
// compares less than any non-empty one, and two empty components
// compare equal (§4.8 "nil key components compare less than any
// non-nil; two nils compare equal" — a blank CSV cell is this
// implementation's nil).
func compareKey(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] == "" && b[i] == "":
			continue
		case a[i] == "":
			return -1
		case b[i] == "":
			return 1
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}
