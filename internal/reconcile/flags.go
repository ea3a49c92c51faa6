package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/TobiSchelling/ParlCorpus/internal/cleantext"
	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/errlog"
	"github.com/TobiSchelling/ParlCorpus/internal/incomplete"
	"github.com/TobiSchelling/ParlCorpus/internal/profiling"
)

// ErrTypeRequired is returned when an ID or parent selection is given
// without entity types.
var ErrTypeRequired = errors.New("selection by id or parent needs an entity type")

type FlagOptions struct {
	DryRun bool
	// Types limits the entities visited. Empty means all of them.
	Types     []database.Entity
	Selection database.Selection
}

// FlagStats counts what FixIncompleteFlags did for one entity type.
type FlagStats struct {
	Checked  int
	Fixed    int
	SetTrue  int
	SetFalse int
	Invalid  int
}

func (s *FlagStats) record(v bool) {
	s.Fixed++
	if v {
		s.SetTrue++
	} else {
		s.SetFalse++
	}
}

type FlagReport struct {
	Order []database.Entity
	Stats map[database.Entity]*FlagStats
}

func (r *FlagReport) Totals() (checked, fixed int) {
	for _, s := range r.Stats {
		checked += s.Checked
		fixed += s.Fixed
	}
	return checked, fixed
}

// FixIncompleteFlags recomputes every is_incomplete flag from the speeches.
// Entity types are visited leaf first, and all work happens in one
// transaction so later types see the fixes of earlier ones, also on a dry
// run. Without explicit types, entities the selection cannot filter are
// skipped.
func (j *Jobs) FixIncompleteFlags(ctx context.Context, opts FlagOptions) (*FlagReport, error) {
	if len(opts.Types) == 0 && opts.Selection.Scoped() {
		return nil, ErrTypeRequired
	}
	wanted := make(map[database.Entity]bool, len(opts.Types))
	for _, e := range opts.Types {
		wanted[e] = true
	}
	report := &FlagReport{Stats: make(map[database.Entity]*FlagStats)}
	sink := errlog.NewSink(j.now().In(j.loc).Year(), !opts.DryRun)
	if j.metrics != nil {
		sink.Observe(func(t errlog.Type) { j.metrics.ParseError(string(t)) })
	}

	err := j.db.Tx(ctx, opts.DryRun, func(tx *database.Store) error {
		for _, e := range database.FlagEntities {
			if len(wanted) > 0 && !wanted[e] {
				continue
			}
			if len(wanted) == 0 && !opts.Selection.Applies(e) {
				j.log.Debug("selection does not apply", "entity", e, "selection", opts.Selection.String())
				continue
			}
			ids, err := tx.ResolveSelection(ctx, e, opts.Selection)
			if err != nil {
				return fmt.Errorf("selecting %s: %w", e, err)
			}
			stats := &FlagStats{}
			report.Order = append(report.Order, e)
			report.Stats[e] = stats

			switch e {
			case database.EntitySpeech:
				err = fixSpeechFlags(ctx, tx, ids, stats)
			case database.EntityProfile:
				err = j.fixProfileFlags(ctx, tx, ids, stats, sink)
			default:
				err = fixContainerFlags(ctx, tx, e, ids, stats)
			}
			if err != nil {
				return fmt.Errorf("fixing %s flags: %w", e, err)
			}
			j.log.Info("flags checked", "entity", e, "checked", stats.Checked, "fixed", stats.Fixed,
				"set_true", stats.SetTrue, "set_false", stats.SetFalse, "dry_run", opts.DryRun)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	if !opts.DryRun {
		for e, s := range report.Stats {
			j.metrics.FlagsFixed(string(e), s.Fixed)
		}
		if err := sink.Flush(ctx, j.db.Store); err != nil {
			return report, err
		}
	}
	return report, nil
}

func fixSpeechFlags(ctx context.Context, tx *database.Store, ids []int64, stats *FlagStats) error {
	rows, err := tx.SpeechFlagRows(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range rows {
		stats.Checked++
		want := cleantext.IsPlaceholder(r.Text)
		if want == r.Stored {
			continue
		}
		changed, err := tx.SetSpeechIncomplete(ctx, r.ID, want)
		if err != nil {
			return fmt.Errorf("speech %d: %w", r.ID, err)
		}
		if changed {
			stats.record(want)
		}
	}
	return nil
}

// fixContainerFlags handles sessions, agenda items and the records that
// mirror their agenda item. Their predicates are evaluated in SQL.
func fixContainerFlags(ctx context.Context, tx *database.Store, e database.Entity, ids []int64, stats *FlagStats) error {
	rows, err := tx.FlagRows(ctx, e, ids)
	if err != nil {
		return err
	}
	for _, r := range rows {
		stats.Checked++
		if r.Stored == r.Computed {
			continue
		}
		changed, err := tx.SetFlag(ctx, e, r.ID, r.Computed)
		if err != nil {
			return fmt.Errorf("%s %d: %w", e, r.ID, err)
		}
		if changed {
			stats.record(r.Computed)
		}
	}
	return nil
}

func (j *Jobs) fixProfileFlags(ctx context.Context, tx *database.Store, ids []int64, stats *FlagStats, sink *errlog.Sink) error {
	parts, err := tx.ProfilePartsByID(ctx, ids)
	if err != nil {
		return err
	}
	prop := incomplete.New(tx, j.loc)
	for _, part := range parts {
		stats.Checked++
		want, err := prop.ProfilePartIncomplete(ctx, part)
		if errors.Is(err, profiling.ErrInvalidPeriod) {
			stats.Invalid++
			sink.Log(errlog.Entry{
				Type:       errlog.Validation,
				Message:    "Profile part has an invalid period",
				Details:    map[string]any{"error": err.Error(), "period_type": part.PeriodType},
				EntityType: "profile",
				EntityID:   fmt.Sprint(part.ID),
			})
			continue
		}
		if err != nil {
			return err
		}
		if want == part.IsIncomplete {
			continue
		}
		changed, err := tx.SetFlag(ctx, database.EntityProfile, part.ID, want)
		if err != nil {
			return fmt.Errorf("profile part %d: %w", part.ID, err)
		}
		if changed {
			stats.record(want)
		}
	}
	return nil
}
