package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/sources"
	"github.com/spigell/job-radar/internal/utils"
)

type combination struct {
	term     string
	location string
}

// fetched is one raw record with the combination that produced it.
type fetched struct {
	record   sources.RawRecord
	term     string
	location string
	sequence int
}

type workerResult struct {
	entry   sources.Entry
	order   int
	source  string
	records []fetched
	report  SourceReport
}

// combinations lists the calls an entry makes, capped by its budget.
func combinations(entry sources.Entry, terms, locations []string) []combination {
	var out []combination
	if entry.LocationAgnostic || len(locations) == 0 {
		for _, term := range terms {
			out = append(out, combination{term: term})
		}
	} else {
		for _, term := range terms {
			for _, location := range locations {
				out = append(out, combination{term: term, location: location})
			}
		}
	}
	if budget := entry.Budget(); len(out) > budget {
		out = out[:budget]
	}
	return out
}

type callOutcome struct {
	records []sources.RawRecord
	err     error
}

// call runs one adapter request under its own timeout. The adapter goroutine is abandoned when the
// timeout fires; its result is dropped.
func call(ctx context.Context, adapter sources.Adapter, term, location string, timeout time.Duration) ([]sources.RawRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan callOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callOutcome{err: fmt.Errorf("adapter panicked: %v", r)}
			}
		}()
		records, err := adapter.Fetch(callCtx, term, location)
		done <- callOutcome{records: records, err: err}
	}()

	select {
	case out := <-done:
		return out.records, out.err
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}
}

// errCallTimeout marks a call that ran out of its own time, as opposed to the run budget.
var errCallTimeout = errors.New("call timed out")

func (c *Coordinator) runWorker(ctx context.Context, entry sources.Entry, source string, terms, locations []string, timeout time.Duration) workerResult {
	started := time.Now()
	tier := string(entry.Tier)
	log := logger.WithFields(c.logger, logger.SourceFields(source, tier)...)

	res := workerResult{
		entry:  entry,
		order:  c.registry.Order(entry.Name()),
		source: source,
		report: SourceReport{Name: entry.Name(), Tier: tier, Fallback: entry.Fallback},
	}

	var (
		failures  int
		succeeded int
		lastErr   error
		sequence  int
	)

	for i, combo := range combinations(entry, terms, locations) {
		if i > 0 {
			if err := utils.WaitFor(ctx, entry.Delay); err != nil {
				lastErr = err
				failures++
				break
			}
		}

		res.report.Calls++
		callLog := log.With(logger.CallFields(combo.term, combo.location)...)
		records, err := call(ctx, entry.Adapter, combo.term, combo.location, timeout)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			callLog.Warn("source call timed out, abandoning source", zap.Duration("timeout", timeout))
			res.records = nil
			res.report.State = StateFailed
			res.report.Error = fmt.Sprintf("%s: %s after %s", combo.term, errCallTimeout, timeout)
			res.report.Elapsed = time.Since(started)
			return res
		}

		for _, record := range records {
			if record == nil {
				continue
			}
			res.records = append(res.records, fetched{record: record, term: combo.term, location: combo.location, sequence: sequence})
			sequence++
		}

		if err != nil {
			failures++
			lastErr = err
			callLog.Warn("source call failed", zap.Error(err), zap.Int("records", len(records)))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		succeeded++
		callLog.Debug("source call finished", zap.Int("records", len(records)))
	}

	res.report.Records = len(res.records)
	res.report.Elapsed = time.Since(started)
	switch {
	case failures == 0:
		res.report.State = StateSuccess
	case succeeded > 0 || len(res.records) > 0:
		res.report.State = StatePartial
	default:
		res.report.State = StateFailed
	}
	if lastErr != nil {
		res.report.Error = lastErr.Error()
	}
	return res
}
