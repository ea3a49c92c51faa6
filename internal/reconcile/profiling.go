package reconcile

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/ParlCorpus/internal/database"
)

type ProfilingOptions struct {
	DryRun bool
	// PoliticianID restricts the job to one active politician.
	PoliticianID *int64
}

// ProfilingLine is the outcome for one politician.
type ProfilingLine struct {
	PoliticianID int64
	Name         string
	Required     int
	Profiled     int
	Updated      bool
}

// Percent is the share of required parts that exist.
func (l ProfilingLine) Percent() float64 {
	if l.Required == 0 {
		return 0
	}
	return float64(l.Profiled) / float64(l.Required) * 100
}

type ProfilingReport struct {
	Checked int
	Updated int
	Skipped int
	Lines   []ProfilingLine
}

// SyncProfilingCounts recomputes profiles_required and
// profiles_already_profiled for active politicians who have spoken.
func (j *Jobs) SyncProfilingCounts(ctx context.Context, opts ProfilingOptions) (*ProfilingReport, error) {
	report := &ProfilingReport{}
	store := j.db.Store

	var ids []int64
	if opts.PoliticianID != nil {
		p, err := store.GetPolitician(ctx, *opts.PoliticianID)
		if err != nil {
			return report, fmt.Errorf("loading politician: %w", err)
		}
		if p == nil || !p.Active {
			return report, fmt.Errorf("politician with ID %d not found or inactive", *opts.PoliticianID)
		}
		ids = []int64{p.ID}
	} else {
		var err error
		if ids, err = store.ActiveSpeakerIDs(ctx); err != nil {
			return report, fmt.Errorf("listing politicians: %w", err)
		}
	}

	lines, err := computeAll(ctx, j.workers, ids, func(ctx context.Context, id int64) (ProfilingLine, error) {
		p, err := store.GetPolitician(ctx, id)
		if err != nil {
			return ProfilingLine{}, err
		}
		if p == nil {
			return ProfilingLine{}, fmt.Errorf("politician %d disappeared", id)
		}
		required, profiled, err := ProfilingCounts(ctx, store, j.loc, id)
		if err != nil {
			return ProfilingLine{}, err
		}
		return ProfilingLine{PoliticianID: id, Name: p.FullName, Required: required, Profiled: profiled}, nil
	})
	if err != nil {
		return report, err
	}

	err = j.db.Tx(ctx, opts.DryRun, func(tx *database.Store) error {
		for i := range lines {
			l := &lines[i]
			changed, err := tx.SetProfilingCounts(ctx, l.PoliticianID, l.Required, l.Profiled)
			if err != nil {
				return fmt.Errorf("updating politician %d: %w", l.PoliticianID, err)
			}
			l.Updated = changed
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	report.Lines = lines
	report.Checked = len(lines)
	for _, l := range lines {
		if l.Updated {
			report.Updated++
		} else {
			report.Skipped++
		}
	}
	if !opts.DryRun {
		j.metrics.ProfilingUpdated(report.Updated)
	}
	j.log.Info("profiling counts synced", "checked", report.Checked, "updated", report.Updated, "dry_run", opts.DryRun)
	return report, nil
}
