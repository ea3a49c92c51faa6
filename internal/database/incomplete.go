package database

import (
	"context"
	"fmt"
	"time"
)

// Incompleteness predicates. An agenda item is incomplete iff it has an
// incomplete SPEECH event; a session iff any of its agenda items does.
const (
	agendaIncompleteSQL = `EXISTS (SELECT 1 FROM speeches s
		WHERE s.agenda_item_id = %s AND s.event_type = 'SPEECH' AND s.is_incomplete = 1)`
	sessionIncompleteSQL = `EXISTS (SELECT 1 FROM speeches s JOIN agenda_items a ON a.id = s.agenda_item_id
		WHERE a.plenary_session_id = %s AND s.event_type = 'SPEECH' AND s.is_incomplete = 1)`
)

// AgendaHasIncompleteSpeech evaluates the agenda predicate from speeches.
func (s *Store) AgendaHasIncompleteSpeech(ctx context.Context, agendaID int64) (bool, error) {
	var v bool
	err := s.q.QueryRowContext(ctx, "SELECT "+fmt.Sprintf(agendaIncompleteSQL, "?"), agendaID).Scan(&v)
	return v, err
}

// SessionHasIncompleteAgenda reports whether any agenda item of the session
// is flagged incomplete.
func (s *Store) SessionHasIncompleteAgenda(ctx context.Context, sessionID int64) (bool, error) {
	return s.exists(ctx,
		"SELECT 1 FROM agenda_items WHERE plenary_session_id = ? AND is_incomplete = 1", sessionID)
}

// SetAgendaIncomplete writes an agenda item's flag if it differs.
func (s *Store) SetAgendaIncomplete(ctx context.Context, id int64, v bool) (bool, error) {
	return s.execChanged(ctx,
		"UPDATE agenda_items SET is_incomplete = ? WHERE id = ? AND is_incomplete <> ?", v, id, v)
}

// SetSessionIncomplete writes a session's flag if it differs.
func (s *Store) SetSessionIncomplete(ctx context.Context, id int64, v bool) (bool, error) {
	return s.execChanged(ctx,
		"UPDATE plenary_sessions SET is_incomplete = ? WHERE id = ? AND is_incomplete <> ?", v, id, v)
}

// MirrorAgendaFlag copies an agenda item's flag onto its summary, decisions
// and active-politician record. It returns how many rows changed per table,
// keyed by entity.
func (s *Store) MirrorAgendaFlag(ctx context.Context, agendaID int64, v bool) (map[Entity]int64, error) {
	changed := make(map[Entity]int64, 3)
	for _, e := range []Entity{EntitySummary, EntityDecision, EntityActive} {
		n, err := s.execCount(ctx,
			"UPDATE "+flagTables[e]+" SET is_incomplete = ? WHERE agenda_item_id = ? AND is_incomplete <> ?",
			v, agendaID, v)
		if err != nil {
			return changed, fmt.Errorf("mirroring %s flag: %w", e, err)
		}
		changed[e] = n
	}
	return changed, nil
}

// SetFlag writes one row's incompleteness flag if it differs.
func (s *Store) SetFlag(ctx context.Context, e Entity, id int64, v bool) (bool, error) {
	table, ok := flagTables[e]
	if !ok {
		return false, fmt.Errorf("entity %q has no incompleteness flag", e)
	}
	return s.execChanged(ctx,
		"UPDATE "+table+" SET is_incomplete = ? WHERE id = ? AND is_incomplete <> ?", v, id, v)
}

// FlagRows loads stored and recomputed flags for container and mirrored
// entities. Speech and profile flags are derived outside SQL and are not
// supported here.
func (s *Store) FlagRows(ctx context.Context, e Entity, ids []int64) ([]FlagRow, error) {
	var query string
	switch e {
	case EntityPlenary:
		query = "SELECT p.id, p.is_incomplete, " + fmt.Sprintf(sessionIncompleteSQL, "p.id") +
			" FROM plenary_sessions p WHERE p.id IN "
	case EntityAgenda:
		query = "SELECT t.id, t.is_incomplete, " + fmt.Sprintf(agendaIncompleteSQL, "t.id") +
			" FROM agenda_items t WHERE t.id IN "
	case EntitySummary, EntityDecision, EntityActive:
		query = "SELECT t.id, t.is_incomplete, " + fmt.Sprintf(agendaIncompleteSQL, "t.agenda_item_id") +
			" FROM " + flagTables[e] + " t WHERE t.id IN "
	default:
		return nil, fmt.Errorf("%w: flag rows for %s", ErrUnsupportedSelection, e)
	}

	var out []FlagRow
	err := inChunks(ids, func(chunk []int64) error {
		in, args := inClause(chunk)
		rows, err := s.q.QueryContext(ctx, query+in+" ORDER BY 1", args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r FlagRow
			if err := rows.Scan(&r.ID, &r.Stored, &r.Computed); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// PoliticianHasIncompleteSpeech reports whether a politician has an
// incomplete SPEECH event, optionally limited to an agenda item, a session
// or a time window. Zero-valued filters are ignored.
func (s *Store) PoliticianHasIncompleteSpeech(ctx context.Context, politicianID int64, f SpeechFilter) (bool, error) {
	query := `SELECT 1 FROM speeches s JOIN agenda_items a ON a.id = s.agenda_item_id
		WHERE s.politician_id = ? AND s.event_type = 'SPEECH' AND s.is_incomplete = 1`
	args := []any{politicianID}
	if f.AgendaItemID != 0 {
		query += " AND s.agenda_item_id = ?"
		args = append(args, f.AgendaItemID)
	}
	if f.PlenarySessionID != 0 {
		query += " AND a.plenary_session_id = ?"
		args = append(args, f.PlenarySessionID)
	}
	if !f.From.IsZero() {
		query += " AND s.date >= ?"
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		query += " AND s.date < ?"
		args = append(args, formatTime(f.To))
	}
	return s.exists(ctx, query, args...)
}

// SpeechFilter narrows PoliticianHasIncompleteSpeech. From/To are half-open.
type SpeechFilter struct {
	AgendaItemID     int64
	PlenarySessionID int64
	From, To         time.Time
}
