package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/TobiSchelling/ParlCorpus/internal/logger"
)

// ErrSchemaTooNew means the corpus file was written by a newer parlcorpus.
var ErrSchemaTooNew = errors.New("corpus schema is newer than this build")

func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// migrate applies every pending migration, each in its own transaction.
// The corpus version lives in PRAGMA user_version.
func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}
	latest := latestVersion()
	switch {
	case current > latest:
		return fmt.Errorf("%w: file is at v%d, build knows v%d", ErrSchemaTooNew, current, latest)
	case current == latest:
		return nil
	}

	log := logger.WithComponent("database")
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		log.Info("migrating corpus schema", "from", current, "to", m.Version, "step", m.Description)
		if err := applyMigration(conn, m); err != nil {
			return err
		}
		current = m.Version
	}
	return nil
}

func applyMigration(conn *sql.DB, m Migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("schema v%d: begin: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("schema v%d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("schema v%d: commit: %w", m.Version, err)
	}

	// modernc/sqlite ignores user_version writes inside a transaction. The
	// DDL is idempotent, so a crash before this line only re-runs the step.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("schema v%d: stamping version: %w", m.Version, err)
	}
	return nil
}
