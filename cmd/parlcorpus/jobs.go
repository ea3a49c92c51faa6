package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/ingest"
	"github.com/TobiSchelling/ParlCorpus/internal/reconcile"
	"github.com/TobiSchelling/ParlCorpus/internal/riigikogu"
)

var dryRun bool

func dryRunFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute everything but write nothing")
}

func banner() {
	if dryRun {
		fmt.Println("DRY RUN MODE - no data will be saved")
	}
}

// --- ingest command ---

var (
	ingestDays  int
	ingestStart string
	ingestEnd   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch politicians and plenary transcripts into the corpus",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		started := time.Now()
		defer func() { finish("ingest", started, err) }()

		opts := ingest.Options{Days: ingestDays, DryRun: dryRun}
		if opts.Start, err = parseDay(ingestStart); err != nil {
			return err
		}
		if opts.End, err = parseDay(ingestEnd); err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signalContext(cmd)
		defer cancel()

		client := riigikogu.NewClient(cfg.API.BaseURL, cfg.Timeout(), cfg.VerbatimTimeout(), cfg.Location())
		client.SetUserAgent(cfg.API.UserAgent)

		banner()
		result, err := ingest.New(cfg, db, client, meters).Run(ctx, opts)
		if result == nil {
			return err
		}
		printIngest(result)
		return err
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestDays, "days", 0, "Days to look back when --start-date is not given (default from config)")
	ingestCmd.Flags().StringVar(&ingestStart, "start-date", "", "First day to ingest (YYYY-MM-DD)")
	ingestCmd.Flags().StringVar(&ingestEnd, "end-date", "", "Last day to ingest (YYYY-MM-DD, default today)")
	dryRunFlag(ingestCmd)
}

func printIngest(r *ingest.Result) {
	for _, w := range r.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	fmt.Printf("Range: %s (year %d)\n", r.Range.ID(), r.Range.Year())

	for i, step := range r.Steps {
		fmt.Printf("\nStep %d/3: %s\n", i+1, step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}

	c := r.Counters
	fmt.Println("\nSpeech processing summary:")
	fmt.Printf("  Created (new): %d\n", c.SpeechesCreated)
	for _, typ := range sortedKeys(c.CreatedByType) {
		fmt.Printf("    %s: %d\n", typ, c.CreatedByType[typ])
	}
	fmt.Printf("  Already existed: %d\n", c.SpeechesExisted)
	fmt.Printf("  Skipped (non-speech/invalid): %d\n", c.SpeechesSkipped)
	fmt.Printf("  Total events processed: %d\n", c.SpeechesCreated+c.SpeechesExisted+c.SpeechesSkipped)
	fmt.Printf("  Agenda totals updated: %d\n", c.AgendaTotalsUpdated)
	fmt.Printf("  Politicians refreshed: %d\n", c.PoliticiansRefreshed)

	if len(c.EventTypes) > 0 {
		fmt.Println("\nEvent types found:")
		for _, typ := range sortedKeys(c.EventTypes) {
			fmt.Printf("  %s: %d\n", typ, c.EventTypes[typ])
		}
	}

	if len(r.Errors) > 0 {
		fmt.Println("\nLogged problems:")
		counts := make(map[string]int, len(r.Errors))
		for t, n := range r.Errors {
			counts[string(t)] = n
		}
		for _, typ := range sortedKeys(counts) {
			fmt.Printf("  %s: %d\n", typ, counts[typ])
		}
	}
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

// --- sync-times command ---

var timesTarget string

var syncTimesCmd = &cobra.Command{
	Use:   "sync-times",
	Short: "Recompute agenda durations and politician speaking times",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		started := time.Now()
		defer func() { finish("sync-times", started, err) }()

		target, err := reconcile.ParseTarget(timesTarget)
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signalContext(cmd)
		defer cancel()

		banner()
		report, err := reconcile.New(db, cfg, meters).SyncTotalTimes(ctx, reconcile.TimesOptions{DryRun: dryRun, Target: target})
		printTimes(report)
		return err
	},
}

func init() {
	syncTimesCmd.Flags().StringVar(&timesTarget, "type", "all", "What to recompute: all, agenda or politician")
	dryRunFlag(syncTimesCmd)
}

func printTimes(r *reconcile.TimesReport) {
	if r == nil {
		return
	}
	verb := "Updated"
	if dryRun {
		verb = "Would update"
	}
	fmt.Printf("Agenda items: %d checked. %s: %d\n", r.AgendasChecked, verb, r.AgendasUpdated)
	fmt.Printf("Politicians: %d checked. %s: %d\n", r.PoliticiansChecked, verb, r.PoliticiansUpdated)
}

// --- fix-flags command ---

var (
	flagTypes    []string
	flagID       int64
	flagParentID int64
	flagFrom     string
	flagTo       string
)

var fixFlagsCmd = &cobra.Command{
	Use:   "fix-flags",
	Short: "Recompute is_incomplete flags",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		started := time.Now()
		defer func() { finish("fix-flags", started, err) }()

		if (cmd.Flags().Changed("id") || cmd.Flags().Changed("parent-id")) && len(flagTypes) == 0 {
			return fmt.Errorf("--id and --parent-id need --type")
		}
		opts := reconcile.FlagOptions{DryRun: dryRun, Selection: database.All()}
		for _, s := range flagTypes {
			e, err := database.ParseEntity(s)
			if err != nil {
				return err
			}
			opts.Types = append(opts.Types, e)
		}
		switch {
		case cmd.Flags().Changed("id"):
			opts.Selection = database.ByID(flagID)
		case cmd.Flags().Changed("parent-id"):
			opts.Selection = database.ByParent(flagParentID)
		case flagFrom != "":
			from, err := parseDay(flagFrom)
			if err != nil {
				return err
			}
			to, err := parseDay(flagTo)
			if err != nil {
				return err
			}
			start, end := database.DayBounds(*from, *to, cfg.Location())
			opts.Selection = database.ByDateRange(start, end)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signalContext(cmd)
		defer cancel()

		banner()
		fmt.Printf("Selection: %s\n", opts.Selection)
		report, err := reconcile.New(db, cfg, meters).FixIncompleteFlags(ctx, opts)
		printFlags(report)
		return err
	},
}

func init() {
	fixFlagsCmd.Flags().StringSliceVar(&flagTypes, "type", nil, "Entity types to check (speech, plenary, agenda, summary, decision, active, profile)")
	fixFlagsCmd.Flags().Int64Var(&flagID, "id", 0, "Only the record with this ID (requires --type)")
	fixFlagsCmd.Flags().Int64Var(&flagParentID, "parent-id", 0, "Only children of this parent (requires --type)")
	fixFlagsCmd.Flags().StringVar(&flagFrom, "from", "", "First day of a date range (YYYY-MM-DD)")
	fixFlagsCmd.Flags().StringVar(&flagTo, "to", "", "Last day of a date range (YYYY-MM-DD)")
	fixFlagsCmd.MarkFlagsMutuallyExclusive("id", "parent-id", "from")
	fixFlagsCmd.MarkFlagsRequiredTogether("from", "to")
	dryRunFlag(fixFlagsCmd)
}

func printFlags(r *reconcile.FlagReport) {
	if r == nil {
		return
	}
	for _, e := range r.Order {
		s := r.Stats[e]
		fmt.Printf("%-9s checked %d, fixed %d (true %d, false %d), already correct %d",
			e, s.Checked, s.Fixed, s.SetTrue, s.SetFalse, s.Checked-s.Fixed-s.Invalid)
		if s.Invalid > 0 {
			fmt.Printf(", invalid %d", s.Invalid)
		}
		fmt.Println()
	}
	checked, fixed := r.Totals()
	fmt.Printf("Total: %d checked, %d fixed\n", checked, fixed)
}

// --- sync-profiling command ---

var profilingPolitician int64

var syncProfilingCmd = &cobra.Command{
	Use:   "sync-profiling",
	Short: "Recompute required and completed profile counts",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		started := time.Now()
		defer func() { finish("sync-profiling", started, err) }()

		opts := reconcile.ProfilingOptions{DryRun: dryRun}
		if cmd.Flags().Changed("politician-id") {
			opts.PoliticianID = &profilingPolitician
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signalContext(cmd)
		defer cancel()

		banner()
		report, err := reconcile.New(db, cfg, meters).SyncProfilingCounts(ctx, opts)
		printProfiling(report)
		return err
	},
}

func init() {
	syncProfilingCmd.Flags().Int64Var(&profilingPolitician, "politician-id", 0, "Only this politician")
	dryRunFlag(syncProfilingCmd)
}

func printProfiling(r *reconcile.ProfilingReport) {
	if r == nil {
		return
	}
	if verbose {
		for _, l := range r.Lines {
			mark := " "
			if l.Updated {
				mark = "*"
			}
			fmt.Printf("  %s %-30s %d/%d (%.1f%%)\n", mark, l.Name, l.Profiled, l.Required, l.Percent())
		}
	}
	verb := "Updated"
	if dryRun {
		verb = "Would update"
	}
	fmt.Printf("Politicians: %d checked. %s: %d. Skipped: %d\n", r.Checked, verb, r.Updated, r.Skipped)
}

// --- sync-all command ---

var syncAllCmd = &cobra.Command{
	Use:   "sync-all",
	Short: "Run sync-times then sync-profiling",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		started := time.Now()
		defer func() { finish("sync-all", started, err) }()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signalContext(cmd)
		defer cancel()

		banner()
		report, err := reconcile.New(db, cfg, meters).SyncAll(ctx, dryRun)
		if report != nil {
			fmt.Println("Step 1/2: Total times")
			printTimes(report.Times)
			fmt.Println("\nStep 2/2: Profiling counts")
			printProfiling(report.Profiling)
		}
		return err
	},
}

func init() {
	dryRunFlag(syncAllCmd)
}
