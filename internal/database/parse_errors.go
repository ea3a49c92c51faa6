package database

import (
	"context"
	"database/sql"
)

// ParseErrorInput is a new audit log entry.
type ParseErrorInput struct {
	ErrorType    string
	ErrorMessage string
	ErrorDetails *string
	EntityType   *string
	EntityID     *string
	EntityName   *string
	Year         *int
}

// ParseErrorFilter narrows ListParseErrors. Zero values match everything.
type ParseErrorFilter struct {
	Year       int
	ErrorType  string
	EntityType string
	Limit      int
}

// InsertParseErrors appends entries to the audit log.
func (s *Store) InsertParseErrors(ctx context.Context, entries []ParseErrorInput) error {
	for _, e := range entries {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO parse_errors (error_type, error_message, error_details, entity_type, entity_id,
				entity_name, year)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ErrorType, e.ErrorMessage, e.ErrorDetails, e.EntityType, e.EntityID, e.EntityName, e.Year,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteParseErrorsForYear clears a year's audit log before a fresh run.
func (s *Store) DeleteParseErrorsForYear(ctx context.Context, year int) (int64, error) {
	return s.execCount(ctx, "DELETE FROM parse_errors WHERE year = ?", year)
}

// ListParseErrors returns audit log entries, newest first.
func (s *Store) ListParseErrors(ctx context.Context, f ParseErrorFilter) ([]ParseError, error) {
	query := `SELECT id, error_type, error_message, error_details, entity_type, entity_id, entity_name,
		year, created_at FROM parse_errors WHERE 1 = 1`
	var args []any
	if f.Year != 0 {
		query += " AND year = ?"
		args = append(args, f.Year)
	}
	if f.ErrorType != "" {
		query += " AND error_type = ?"
		args = append(args, f.ErrorType)
	}
	if f.EntityType != "" {
		query += " AND entity_type = ?"
		args = append(args, f.EntityType)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ParseError
	for rows.Next() {
		var pe ParseError
		var details, entityType, entityID, entityName, createdAt sql.NullString
		var year sql.NullInt64
		if err := rows.Scan(&pe.ID, &pe.ErrorType, &pe.ErrorMessage, &details, &entityType, &entityID,
			&entityName, &year, &createdAt); err != nil {
			return nil, err
		}
		pe.ErrorDetails = nullString(details)
		pe.EntityType = nullString(entityType)
		pe.EntityID = nullString(entityID)
		pe.EntityName = nullString(entityName)
		pe.Year = nullInt(year)
		pe.CreatedAt = nullString(createdAt)
		out = append(out, pe)
	}
	return out, rows.Err()
}

// YearCount is the number of audit log entries for one year.
type YearCount struct {
	Year  int
	Count int
}

// ParseErrorCountsByYear groups the audit log by year, newest first.
// Entries without a year are not counted.
func (s *Store) ParseErrorCountsByYear(ctx context.Context) ([]YearCount, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT year, COUNT(*) FROM parse_errors WHERE year IS NOT NULL GROUP BY year ORDER BY year DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []YearCount
	for rows.Next() {
		var yc YearCount
		if err := rows.Scan(&yc.Year, &yc.Count); err != nil {
			return nil, err
		}
		out = append(out, yc)
	}
	return out, rows.Err()
}
