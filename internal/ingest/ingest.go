// Package ingest fetches plenary transcripts and the member roster from the
// parliament API and stores them as politicians, sessions, agenda items and
// speeches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TobiSchelling/ParlCorpus/internal/config"
	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/errlog"
	"github.com/TobiSchelling/ParlCorpus/internal/incomplete"
	"github.com/TobiSchelling/ParlCorpus/internal/logger"
	"github.com/TobiSchelling/ParlCorpus/internal/metrics"
	"github.com/TobiSchelling/ParlCorpus/internal/reconcile"
	"github.com/TobiSchelling/ParlCorpus/internal/riigikogu"
)

var (
	ErrCrossYear    = errors.New("start and end date must be in the same year")
	ErrInvalidRange = errors.New("start date is after end date")
)

// Source is the part of the parliament API the pipeline reads.
// *riigikogu.Client implements it.
type Source interface {
	Politicians(ctx context.Context) ([]riigikogu.Member, error)
	Verbatims(ctx context.Context, start, end time.Time) ([]riigikogu.Verbatim, error)
}

// Options selects the date range of a run. Start and End are calendar
// days; nil means "derive from Days".
type Options struct {
	Start  *time.Time
	End    *time.Time
	Days   int
	DryRun bool
}

// Range is a resolved run range. Start and End are midnight in the
// configured zone and both days are included.
type Range struct {
	Start   time.Time
	End     time.Time
	Days    int
	Clamped bool
}

// ID names the range, e.g. "2024-03-01_to_2024-03-31".
func (r Range) ID() string {
	return database.MakeRunID(r.Start, r.End)
}

// Year is the year every audit log entry of the run is filed under.
func (r Range) Year() int {
	return r.Start.Year()
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Counters tally what a run did.
type Counters struct {
	PoliticiansCreated int
	PoliticiansUpdated int
	PoliticiansSkipped int
	MembershipsCreated int

	SessionsProcessed int
	SessionsEmpty     int
	SessionsSkipped   int

	SpeechesCreated int
	SpeechesExisted int
	SpeechesSkipped int
	CreatedByType   map[string]int
	EventTypes      map[string]int

	Purged               int64
	AgendaTotalsUpdated  int
	PoliticiansRefreshed int
}

// Result holds the results of a run.
type Result struct {
	Range    Range
	DryRun   bool
	Steps    []StepResult
	Counters Counters
	Errors   map[errlog.Type]int
	Warnings []string
}

// Failed reports whether any step failed.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Pipeline runs ingestion against one database.
type Pipeline struct {
	db          *database.DB
	api         Source
	metrics     *metrics.Metrics
	loc         *time.Location
	defaultDays int
	log         *slog.Logger
	now         func() time.Time
}

// New creates a pipeline. m may be nil.
func New(cfg *config.Config, db *database.DB, api Source, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		db:          db,
		api:         api,
		metrics:     m,
		loc:         cfg.Location(),
		defaultDays: cfg.Ingest.DefaultDays,
		log:         logger.WithComponent("ingest"),
		now:         time.Now,
	}
}

// ResolveRange turns options into a concrete range. The end defaults to
// today. Without an explicit start the range reaches back opts.Days (or
// defaultDays) but never before January 1st of the end's year; a clamp is
// reported as a warning.
func ResolveRange(now time.Time, loc *time.Location, opts Options, defaultDays int) (Range, []string, error) {
	var warnings []string
	day := func(t time.Time) time.Time {
		t = t.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}

	days := opts.Days
	if days <= 0 {
		days = defaultDays
	}

	end := day(now)
	if opts.End != nil {
		end = time.Date(opts.End.Year(), opts.End.Month(), opts.End.Day(), 0, 0, 0, 0, loc)
	}

	r := Range{End: end, Days: days}
	if opts.Start != nil {
		r.Start = time.Date(opts.Start.Year(), opts.Start.Month(), opts.Start.Day(), 0, 0, 0, 0, loc)
	} else {
		start := end.AddDate(0, 0, -days)
		jan1 := time.Date(end.Year(), time.January, 1, 0, 0, 0, 0, loc)
		if start.Before(jan1) {
			warnings = append(warnings, fmt.Sprintf(
				"lookback limited to January 1st, %d; requested %d days would have gone to %s",
				end.Year(), days, start.Format("2006-01-02")))
			start = jan1
			r.Clamped = true
		}
		r.Start = start
	}

	if r.Start.After(r.End) {
		return r, warnings, fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
	if r.Start.Year() != r.End.Year() {
		return r, warnings, fmt.Errorf("%w: %s and %s; run one ingest per year", ErrCrossYear,
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
	return r, warnings, nil
}

// run carries the state of one Run call.
type run struct {
	p      *Pipeline
	rng    Range
	dryRun bool
	sink   *errlog.Sink
	res    *Result
	log    *slog.Logger
}

// Run ingests the resolved range: setup, politicians, then sessions. A
// failing phase stops the run and is returned; per-record problems are
// logged to the audit log and skipped.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	rng, warnings, err := ResolveRange(p.now(), p.loc, opts, p.defaultDays)
	if err != nil {
		return nil, err
	}

	sink := errlog.NewSink(rng.Year(), !opts.DryRun)
	sink.Observe(func(t errlog.Type) { p.metrics.ParseError(string(t)) })

	r := &run{
		p:      p,
		rng:    rng,
		dryRun: opts.DryRun,
		sink:   sink,
		res: &Result{
			Range:    rng,
			DryRun:   opts.DryRun,
			Warnings: warnings,
			Counters: Counters{
				CreatedByType: make(map[string]int),
				EventTypes:    make(map[string]int),
			},
		},
		log: p.log.With("run", rng.ID(), "dry_run", opts.DryRun),
	}
	for _, w := range warnings {
		r.log.Warn(w)
	}
	r.log.Info("ingest started", "start", rng.Start.Format("2006-01-02"), "end", rng.End.Format("2006-01-02"))

	err = r.execute(ctx)
	if err != nil {
		sink.Log(errlog.Entry{
			Type:    errlog.Other,
			Message: "Critical error during parsing: " + err.Error(),
		})
	}
	if flushErr := r.flush(ctx); flushErr != nil && err == nil {
		err = flushErr
	}
	r.res.Errors = sink.Counts()
	return r.res, err
}

func (r *run) execute(ctx context.Context) error {
	phases := []func(context.Context) StepResult{r.setup, r.politicians, r.sessions}
	for _, phase := range phases {
		step := phase(ctx)
		r.res.Steps = append(r.res.Steps, step)
		if step.Err != nil {
			return fmt.Errorf("%s: %w", step.Name, step.Err)
		}
	}
	return nil
}

// setup clears the year's audit log and purges incomplete speeches of the
// range so that their final transcripts can be stored under new
// fingerprints. In a dry run the purge is rolled back and only counted.
func (r *run) setup(ctx context.Context) StepResult {
	step := StepResult{Name: "Setup"}
	from, to := database.DayBounds(r.rng.Start, r.rng.End, r.p.loc)

	var cleared int64
	var purge database.Purge
	var totals, refreshed int
	err := r.p.db.Tx(ctx, r.dryRun, func(s *database.Store) error {
		if !r.dryRun {
			var err error
			if cleared, err = s.DeleteParseErrorsForYear(ctx, r.rng.Year()); err != nil {
				return fmt.Errorf("clearing parse errors: %w", err)
			}
		}
		var err error
		if purge, err = s.DeleteIncompleteSpeeches(ctx, from, to); err != nil {
			return err
		}
		if purge.Deleted == 0 {
			return nil
		}
		for _, id := range purge.AgendaItemIDs {
			updated, err := reconcile.RefreshAgendaTotal(ctx, s, id)
			if err != nil {
				return err
			}
			if updated {
				totals++
			}
		}
		if _, err = incomplete.New(s, r.p.loc).RefreshAgendas(ctx, purge.AgendaItemIDs); err != nil {
			return err
		}
		refreshed, err = r.refreshPoliticians(ctx, s, purge.PoliticianIDs)
		return err
	})
	if err != nil {
		step.Err = err
		return step
	}
	agendas := len(purge.AgendaItemIDs)
	r.res.Counters.Purged = purge.Deleted
	r.res.Counters.AgendaTotalsUpdated += totals
	r.res.Counters.PoliticiansRefreshed += refreshed

	if !r.dryRun {
		r.sink.Log(errlog.Entry{
			Type:       errlog.Other,
			Message:    fmt.Sprintf("Parse run started for date range: %s to %s", r.day(r.rng.Start), r.day(r.rng.End)),
			EntityType: "parse_run",
			EntityID:   r.rng.ID(),
			EntityName: "Parse Run " + r.p.now().In(r.p.loc).Format("2006-01-02 15:04"),
			Details: map[string]any{
				"date_range": r.day(r.rng.Start) + " to " + r.day(r.rng.End),
				"days":       r.rng.Days,
				"dry_run":    r.dryRun,
			},
		})
		if err := r.flush(ctx); err != nil {
			step.Err = err
			return step
		}
	}

	r.log.Info("setup done", "cleared_errors", cleared, "purged", purge.Deleted, "agendas", agendas)
	step.Summary = fmt.Sprintf("Cleared %d parse errors for %d, purged %d incomplete speeches",
		cleared, r.rng.Year(), purge.Deleted)
	if r.dryRun {
		step.Summary = fmt.Sprintf("[dry-run] %d incomplete speeches would be purged", purge.Deleted)
	}
	return step
}

func (r *run) flush(ctx context.Context) error {
	if r.dryRun {
		r.sink.Discard()
		return nil
	}
	return r.sink.Flush(ctx, r.p.db.Store)
}

func (r *run) day(t time.Time) string {
	return t.Format("2006-01-02")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
