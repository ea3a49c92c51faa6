package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/TobiSchelling/ParlCorpus/internal/profiling"
)

// The records in this file are generated by enrichment jobs outside the
// ingestion pipeline. New rows start with their agenda item's flag; after
// that only the propagator changes it.

// SaveAgendaSummary creates or replaces the summary of an agenda item.
func (s *Store) SaveAgendaSummary(ctx context.Context, agendaID int64, text string) (int64, error) {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO agenda_summaries (agenda_item_id, summary_text, is_incomplete)
		VALUES (?, ?, (SELECT is_incomplete FROM agenda_items WHERE id = ?))
		ON CONFLICT(agenda_item_id) DO UPDATE SET summary_text = excluded.summary_text,
			generated_at = datetime('now')`,
		agendaID, text, agendaID,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.q.QueryRowContext(ctx, "SELECT id FROM agenda_summaries WHERE agenda_item_id = ?", agendaID).Scan(&id)
	return id, err
}

// AddAgendaDecision appends a decision. A nil politician is a collective
// decision.
func (s *Store) AddAgendaDecision(ctx context.Context, agendaID int64, politicianID *int64, text string) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO agenda_decisions (agenda_item_id, politician_id, decision_text, is_incomplete)
		VALUES (?, ?, ?, (SELECT is_incomplete FROM agenda_items WHERE id = ?))`,
		agendaID, politicianID, text, agendaID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SaveActivePolitician creates or replaces the most active politician
// record of an agenda item.
func (s *Store) SaveActivePolitician(ctx context.Context, agendaID int64, politicianID *int64, description string) (int64, error) {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO agenda_active_politicians (agenda_item_id, politician_id, activity_description, is_incomplete)
		VALUES (?, ?, ?, (SELECT is_incomplete FROM agenda_items WHERE id = ?))
		ON CONFLICT(agenda_item_id) DO UPDATE SET politician_id = excluded.politician_id,
			activity_description = excluded.activity_description, generated_at = datetime('now')`,
		agendaID, politicianID, description, agendaID,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.q.QueryRowContext(ctx, "SELECT id FROM agenda_active_politicians WHERE agenda_item_id = ?", agendaID).Scan(&id)
	return id, err
}

// GetFlag returns the stored incompleteness flag of one row.
func (s *Store) GetFlag(ctx context.Context, e Entity, id int64) (bool, error) {
	table, ok := flagTables[e]
	if !ok {
		return false, fmt.Errorf("entity %q has no incompleteness flag", e)
	}
	var v bool
	err := s.q.QueryRowContext(ctx, "SELECT is_incomplete FROM "+table+" WHERE id = ?", id).Scan(&v)
	return v, err
}

// SaveProfilePart creates or replaces a profile part. The period is
// validated before anything is written.
func (s *Store) SaveProfilePart(ctx context.Context, politicianID int64, category profiling.Category, period profiling.Period, analysis string, incomplete bool) (int64, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("unknown profile category %q", category)
	}
	if err := period.Validate(); err != nil {
		return 0, err
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO politician_profile_parts (politician_id, category, period_type,
			agenda_item_id, plenary_session_id, month, year, analysis, is_incomplete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO UPDATE SET analysis = excluded.analysis, generated_at = datetime('now')`,
		politicianID, string(category), string(period.Type),
		period.AgendaItemID, period.PlenarySessionID, period.Month, period.Year, analysis, incomplete,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.q.QueryRowContext(ctx,
		`SELECT id FROM politician_profile_parts
		WHERE politician_id = ? AND category = ? AND period_type = ?
			AND ifnull(agenda_item_id, 0) = ifnull(?, 0) AND ifnull(plenary_session_id, 0) = ifnull(?, 0)
			AND ifnull(month, '') = ifnull(?, '') AND ifnull(year, 0) = ifnull(?, 0)`,
		politicianID, string(category), string(period.Type),
		period.AgendaItemID, period.PlenarySessionID, period.Month, period.Year,
	).Scan(&id)
	return id, err
}

// GetProfilePart returns a profile part by ID, or nil if not found.
func (s *Store) GetProfilePart(ctx context.Context, id int64) (*ProfilePart, error) {
	parts, err := s.queryProfileParts(ctx, "WHERE id = ?", id)
	if err != nil || len(parts) == 0 {
		return nil, err
	}
	return &parts[0], nil
}

// ProfilePartsForPolitician returns every profile part of a politician.
func (s *Store) ProfilePartsForPolitician(ctx context.Context, politicianID int64) ([]ProfilePart, error) {
	return s.queryProfileParts(ctx, "WHERE politician_id = ?", politicianID)
}

// ProfilePartsByID loads the given profile parts.
func (s *Store) ProfilePartsByID(ctx context.Context, ids []int64) ([]ProfilePart, error) {
	var out []ProfilePart
	err := inChunks(ids, func(chunk []int64) error {
		in, args := inClause(chunk)
		parts, err := s.queryProfileParts(ctx, "WHERE id IN "+in, args...)
		out = append(out, parts...)
		return err
	})
	return out, err
}

// CountProfileParts returns how many profile parts a politician has.
func (s *Store) CountProfileParts(ctx context.Context, politicianID int64) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM politician_profile_parts WHERE politician_id = ?", politicianID)
}

func (s *Store) queryProfileParts(ctx context.Context, where string, args ...any) ([]ProfilePart, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, politician_id, category, period_type, agenda_item_id, plenary_session_id,
			month, year, is_incomplete
		FROM politician_profile_parts `+where+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []ProfilePart
	for rows.Next() {
		var p ProfilePart
		var agendaID, sessionID, year sql.NullInt64
		var month sql.NullString
		if err := rows.Scan(&p.ID, &p.PoliticianID, &p.Category, &p.PeriodType,
			&agendaID, &sessionID, &month, &year, &p.IsIncomplete); err != nil {
			return nil, err
		}
		p.AgendaItemID = nullInt64(agendaID)
		p.PlenarySessionID = nullInt64(sessionID)
		p.Month = nullString(month)
		p.Year = nullInt(year)
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// Period converts the stored scope back into a profiling.Period.
func (p ProfilePart) Period() profiling.Period {
	return profiling.Period{
		Type:             profiling.PeriodType(p.PeriodType),
		AgendaItemID:     p.AgendaItemID,
		PlenarySessionID: p.PlenarySessionID,
		Month:            p.Month,
		Year:             p.Year,
	}
}
