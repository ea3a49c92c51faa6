// Package reconcile recomputes derived corpus values in bulk. Every job
// writes a value only when it differs from the stored one, so a job run
// right after a clean ingest changes nothing.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/ParlCorpus/internal/config"
	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/logger"
	"github.com/TobiSchelling/ParlCorpus/internal/metrics"
)

// Jobs runs the reconciliation jobs against one database.
type Jobs struct {
	db      *database.DB
	loc     *time.Location
	workers int
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// New creates the jobs. m may be nil.
func New(db *database.DB, cfg *config.Config, m *metrics.Metrics) *Jobs {
	return &Jobs{
		db:      db,
		loc:     cfg.Location(),
		workers: cfg.Workers(),
		metrics: m,
		log:     logger.WithComponent("reconcile"),
		now:     time.Now,
	}
}

// SyncAllReport combines the reports of the jobs SyncAll ran.
type SyncAllReport struct {
	Times     *TimesReport
	Profiling *ProfilingReport
}

// SyncAll runs SyncTotalTimes then SyncProfilingCounts and stops at the
// first failure.
func (j *Jobs) SyncAll(ctx context.Context, dryRun bool) (*SyncAllReport, error) {
	report := &SyncAllReport{}
	var err error

	report.Times, err = j.SyncTotalTimes(ctx, TimesOptions{DryRun: dryRun, Target: TargetAll})
	if err != nil {
		return report, fmt.Errorf("sync total times: %w", err)
	}
	report.Profiling, err = j.SyncProfilingCounts(ctx, ProfilingOptions{DryRun: dryRun})
	if err != nil {
		return report, fmt.Errorf("sync profiling counts: %w", err)
	}
	return report, nil
}

// computeAll evaluates fn for every id with at most workers calls in
// flight. Results keep the order of ids.
func computeAll[T any](ctx context.Context, workers int, ids []int64, fn func(context.Context, int64) (T, error)) ([]T, error) {
	out := make([]T, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			v, err := fn(ctx, id)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// seconds renders a nullable total for logging.
func seconds(p *int) any {
	if p == nil {
		return "null"
	}
	return *p
}
