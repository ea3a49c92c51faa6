package reconcile

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/ParlCorpus/internal/database"
)

// Target picks which totals SyncTotalTimes recomputes.
type Target string

const (
	TargetAll        Target = "all"
	TargetAgenda     Target = "agenda"
	TargetPolitician Target = "politician"
)

func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case TargetAll, TargetAgenda, TargetPolitician:
		return Target(s), nil
	case "":
		return TargetAll, nil
	}
	return "", fmt.Errorf("unknown target %q (want all, agenda or politician)", s)
}

type TimesOptions struct {
	DryRun bool
	Target Target
}

type TimesReport struct {
	AgendasChecked     int
	AgendasUpdated     int
	PoliticiansChecked int
	PoliticiansUpdated int
}

// SyncTotalTimes recomputes agenda durations and politician speaking time
// from stored speeches.
func (j *Jobs) SyncTotalTimes(ctx context.Context, opts TimesOptions) (*TimesReport, error) {
	if opts.Target == "" {
		opts.Target = TargetAll
	}
	report := &TimesReport{}
	store := j.db.Store

	var agendaIDs, politicianIDs []int64
	var agendaTotals, politicianTotals []*int
	var err error

	if opts.Target != TargetPolitician {
		if agendaIDs, err = store.ListAgendaItemIDs(ctx); err != nil {
			return report, fmt.Errorf("listing agenda items: %w", err)
		}
		agendaTotals, err = computeAll(ctx, j.workers, agendaIDs, func(ctx context.Context, id int64) (*int, error) {
			return AgendaTotal(ctx, store, id)
		})
		if err != nil {
			return report, err
		}
		report.AgendasChecked = len(agendaIDs)
	}

	if opts.Target != TargetAgenda {
		if politicianIDs, err = store.ListPoliticianIDs(ctx); err != nil {
			return report, fmt.Errorf("listing politicians: %w", err)
		}
		politicianTotals, err = computeAll(ctx, j.workers, politicianIDs, func(ctx context.Context, id int64) (*int, error) {
			return PoliticianTotal(ctx, store, id)
		})
		if err != nil {
			return report, err
		}
		report.PoliticiansChecked = len(politicianIDs)
	}

	err = j.db.Tx(ctx, opts.DryRun, func(tx *database.Store) error {
		for i, id := range agendaIDs {
			changed, err := tx.SetAgendaTotal(ctx, id, agendaTotals[i])
			if err != nil {
				return fmt.Errorf("updating agenda %d: %w", id, err)
			}
			if changed {
				report.AgendasUpdated++
				j.log.Debug("agenda total updated", "agenda_id", id, "seconds", seconds(agendaTotals[i]))
			}
		}
		for i, id := range politicianIDs {
			changed, err := tx.SetPoliticianTotal(ctx, id, politicianTotals[i])
			if err != nil {
				return fmt.Errorf("updating politician %d: %w", id, err)
			}
			if changed {
				report.PoliticiansUpdated++
				j.log.Debug("politician total updated", "politician_id", id, "seconds", seconds(politicianTotals[i]))
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	if !opts.DryRun {
		j.metrics.TotalsUpdated(string(TargetAgenda), report.AgendasUpdated)
		j.metrics.TotalsUpdated(string(TargetPolitician), report.PoliticiansUpdated)
	}
	j.log.Info("total times synced",
		"agendas_checked", report.AgendasChecked, "agendas_updated", report.AgendasUpdated,
		"politicians_checked", report.PoliticiansChecked, "politicians_updated", report.PoliticiansUpdated,
		"dry_run", opts.DryRun)
	return report, nil
}
