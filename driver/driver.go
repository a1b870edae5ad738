// Package driver implements the Driver component (spec §4.7): it
// drives a reader.Reader and a migrator.Engine across a [from,to)
// record window, routes per-row errors and rejects to the rejects
// sink, and reports a run Summary, the way the dcotelessa-oilgas-project
// tool's processor.ProcessingResult/Duration-gated progress printing does for
// its own single-pass record loop — adapted here to structured logrus
// fields instead of ad hoc fmt.Printf.
package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/csvmigrate/engine/migrator"
	"github.com/csvmigrate/engine/row"
	"github.com/csvmigrate/engine/shim"
	"github.com/csvmigrate/engine/sink"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Source is the subset of reader.Reader the Driver consumes.
type Source interface {
	Next() bool
	Record() *row.Row
	Err() error
}

// Visitor is called once per emitted (target, row) pair. A non-nil
// error from Visitor is treated as fatal and stops the run immediately
// (it is not a row error; it is the caller asking to abort).
type Visitor func(target any, r *row.Row) error

// Options configures a Run.
type Options struct {
	// From is the 1-based inclusive lower bound on row numbers. Zero
	// means 1 (no rows skipped).
	From int
	// To is the 1-based exclusive upper bound on row numbers. Zero
	// means unbounded.
	To int
	// Create is forwarded to the persistence layer, if any; the Driver
	// itself never interprets it (§4.7, "advisory").
	Create bool
	// Rejects, if non-nil, receives the raw row for every per-row
	// error or ordinary reject. If nil, a per-row error is fatal.
	Rejects *sink.RejectWriter
	// Extract, if non-nil, is passed to every successfully migrated
	// target's Extract hook.
	Extract *sink.ExtractWriter
	// Progress, if non-nil, is called after each emitted target with
	// the row number and target class name, for optional textual
	// progress reporting (§4.7).
	Progress func(rowNumber int, targetClass string)
	// Log receives row-level warnings and the final summary line. A
	// nil Log falls back to logrus's standard logger.
	Log *logrus.Logger
}

// Summary reports the outcome of a run (§7 "a migration either
// completes with counts").
type Summary struct {
	Total    int
	Migrated int
	Rejected int
	Duration time.Duration
}

// Run drives src through eng across the configured window, invoking
// visit for every emitted target. It returns once src is exhausted,
// the window's upper bound is reached, or a fatal error occurs, and it
// always closes opt.Rejects and opt.Extract on its way out (§4.7
// "cleanup on exit, normal or error").
func Run(src Source, eng *migrator.Engine, opt Options, visit Visitor) (sum Summary, err error) {
	log := opt.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	from := opt.From
	if from < 1 {
		from = 1
	}

	start := time.Now()
	defer func() { sum.Duration = time.Since(start) }()

	defer func() {
		if opt.Rejects != nil {
			if closeErr := opt.Rejects.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("driver: closing rejects sink: %w", closeErr)
			}
		}
		if opt.Extract != nil {
			if closeErr := opt.Extract.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("driver: closing extract sink: %w", closeErr)
			}
		}
	}()

	for src.Next() {
		r := src.Record()
		if r.Number < from {
			continue
		}
		if opt.To > 0 && r.Number >= opt.To {
			break
		}
		sum.Total++

		correlation := uuid.NewString()
		rowLog := log.WithFields(logrus.Fields{"row": r.Number, "correlation_id": correlation})

		target, err := eng.MigrateRow(r)
		if err != nil {
			rowLog.WithError(err).Warn("row rejected: migration error")
			if rejErr := rejectRow(opt.Rejects, r); rejErr != nil {
				return sum, rejErr
			}
			if opt.Rejects == nil {
				return sum, fmt.Errorf("driver: row %d: %w", r.Number, err)
			}
			sum.Rejected++
			continue
		}
		if target == nil {
			rowLog.Warn("row rejected: no target produced")
			if rejErr := rejectRow(opt.Rejects, r); rejErr != nil {
				return sum, rejErr
			}
			sum.Rejected++
			continue
		}

		if opt.Extract != nil {
			if ext, ok := target.(shim.Extractor); ok {
				if err := ext.Extract(opt.Extract); err != nil {
					return sum, fmt.Errorf("driver: row %d: extract: %w", r.Number, err)
				}
			}
		}

		sum.Migrated++
		if opt.Progress != nil {
			opt.Progress(r.Number, targetClassName(target))
		}
		rowLog.WithField("class", targetClassName(target)).Debug("row migrated")

		if visit != nil {
			if err := visit(target, r); err != nil {
				return sum, err
			}
		}
	}
	if err := src.Err(); err != nil {
		return sum, fmt.Errorf("driver: reading source: %w", err)
	}

	sum.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"total":    sum.Total,
		"migrated": sum.Migrated,
		"rejected": sum.Rejected,
		"duration": sum.Duration,
	}).Info("migration run complete")

	return sum, err
}

func rejectRow(rw *sink.RejectWriter, r *row.Row) error {
	if rw == nil {
		return nil
	}
	if err := rw.WriteRow(r.Raw); err != nil {
		return fmt.Errorf("driver: row %d: writing reject: %w", r.Number, err)
	}
	return nil
}

func targetClassName(target any) string {
	return fmt.Sprintf("%T", target)
}

// ErrAborted is returned by a Visitor to stop a run early without it
// being treated as an engine failure. Run itself does not use this
// value; it is exported for callers that want a sentinel to compare
// against with errors.Is.
var ErrAborted = errors.New("driver: run aborted by visitor")
