package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ParlCorpus/internal/config"
	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/logger"
	"github.com/TobiSchelling/ParlCorpus/internal/metrics"
	"github.com/TobiSchelling/ParlCorpus/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	registry   = prometheus.NewRegistry()
	meters     = metrics.New(registry)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "parlcorpus",
	Short:   "Riigikogu plenary transcript corpus",
	Long:    "parlcorpus ingests Riigikogu plenary transcripts and keeps the derived durations, incompleteness flags and profiling counters consistent.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			logger.Setup(logLevel("info"), "text")
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger.Setup(logLevel(cfg.Logging.Level), cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(errorsCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(syncTimesCmd)
	rootCmd.AddCommand(fixFlagsCmd)
	rootCmd.AddCommand(syncProfilingCmd)
	rootCmd.AddCommand(syncAllCmd)
	rootCmd.AddCommand(serveCmd)
}

func logLevel(configured string) string {
	if verbose {
		return "debug"
	}
	return configured
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("parlcorpus", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/parlcorpus/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to change the API endpoint, lookback window or time zone.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show corpus counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		stats, err := db.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		years, err := db.ParseErrorCountsByYear(ctx)
		if err != nil {
			return fmt.Errorf("counting parse errors: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Politicians:")
		fmt.Printf("  Total: %d (active %d)\n", stats.Politicians, stats.ActivePoliticians)
		fmt.Printf("  Factions: %d\n", stats.Factions)
		fmt.Println("\nTranscripts:")
		fmt.Printf("  Sessions: %d (incomplete %d)\n", stats.Sessions, stats.IncompleteSessions)
		fmt.Printf("  Agenda items: %d (incomplete %d)\n", stats.AgendaItems, stats.IncompleteAgendas)
		fmt.Printf("  Speeches: %d (incomplete %d, unattributed %d)\n",
			stats.Speeches, stats.IncompleteSpeeches, stats.UnattributedSpeeches)
		fmt.Printf("  Profile parts: %d\n", stats.ProfileParts)
		fmt.Printf("\nParse errors: %d\n", stats.ParseErrors)
		for _, y := range years {
			fmt.Printf("  %d: %d\n", y.Year, y.Count)
		}
		return nil
	},
}

// --- errors command ---

var (
	errorsYear   int
	errorsType   string
	errorsEntity string
	errorsLimit  int
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List parse errors from the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListParseErrors(cmd.Context(), database.ParseErrorFilter{
			Year:       errorsYear,
			ErrorType:  errorsType,
			EntityType: errorsEntity,
			Limit:      errorsLimit,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No parse errors recorded.")
			return nil
		}

		for _, e := range entries {
			created := ""
			if e.CreatedAt != nil {
				created = *e.CreatedAt
			}
			fmt.Printf("[%d] %s %s: %s\n", e.ID, created, e.ErrorType, e.ErrorMessage)
			if e.EntityType != nil {
				fmt.Printf("      %s %s %s\n", *e.EntityType, deref(e.EntityID), deref(e.EntityName))
			}
			if verbose && e.ErrorDetails != nil {
				fmt.Printf("      %s\n", *e.ErrorDetails)
			}
		}
		return nil
	},
}

func init() {
	errorsCmd.Flags().IntVar(&errorsYear, "year", 0, "Only errors filed under this year")
	errorsCmd.Flags().StringVar(&errorsType, "type", "", "Only this error type, e.g. MISSING_STENOGRAM")
	errorsCmd.Flags().StringVar(&errorsEntity, "entity", "", "Only this entity type, e.g. speech")
	errorsCmd.Flags().IntVar(&errorsLimit, "limit", 50, "Maximum number of entries")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read API and metrics on localhost",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Serving http://127.0.0.1:%d/api/stats\n", servePort)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, registry, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "parlcorpus.db")
	return database.Open(dbPath)
}

// signalContext cancels on Ctrl+C so long runs stop between sessions.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

// finish records a command's outcome in the metrics textfile, if one is
// configured.
func finish(command string, started time.Time, err error) {
	now := time.Now()
	meters.RunFinished(command, err == nil, float64(now.Unix()), now.Sub(started).Seconds())
	if cfg == nil || cfg.Metrics.Textfile == "" {
		return
	}
	if werr := metrics.WriteTextfile(cfg.Metrics.Textfile, registry); werr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", werr)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
