package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"
)

// InsertSpeech stores a speech unless one with the same UUID exists.
// created is false when the fingerprint was already present; the existing
// row is left untouched.
func (s *Store) InsertSpeech(ctx context.Context, in SpeechInput) (id int64, created bool, err error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO speeches (uuid, agenda_item_id, politician_id, event_type, date, speaker, text,
			link, is_incomplete, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO NOTHING`,
		in.UUID, in.AgendaItemID, in.PoliticianID, in.EventType, formatTime(in.Date),
		in.Speaker, in.Text, in.Link, in.IsIncomplete, formatTime(in.ParsedAt),
	)
	if err != nil {
		return 0, false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, err = res.LastInsertId()
		return id, true, err
	}
	err = s.q.QueryRowContext(ctx, "SELECT id FROM speeches WHERE uuid = ?", in.UUID).Scan(&id)
	return id, false, err
}

// GetSpeechByUUID returns a speech by fingerprint, or nil if not found.
func (s *Store) GetSpeechByUUID(ctx context.Context, uuid string) (*Speech, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, uuid, agenda_item_id, politician_id, event_type, date, speaker, text, link, is_incomplete
		FROM speeches WHERE uuid = ?`, uuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	speeches, err := scanSpeeches(rows)
	if err != nil || len(speeches) == 0 {
		return nil, err
	}
	return &speeches[0], nil
}

// GetSpeechesForAgenda returns an agenda item's speeches ordered by time.
func (s *Store) GetSpeechesForAgenda(ctx context.Context, agendaID int64) ([]Speech, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, uuid, agenda_item_id, politician_id, event_type, date, speaker, text, link, is_incomplete
		FROM speeches WHERE agenda_item_id = ? ORDER BY date, id`, agendaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSpeeches(rows)
}

// SpeechTimesForAgenda returns the timestamps of an agenda item's SPEECH
// events in ascending order.
func (s *Store) SpeechTimesForAgenda(ctx context.Context, agendaID int64) ([]time.Time, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT date FROM speeches WHERE agenda_item_id = ? AND event_type = 'SPEECH' ORDER BY date",
		agendaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		t, err := parseTime(raw)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// SpeechRefsForPolitician returns where and when a politician gave SPEECH
// events, ordered by time.
func (s *Store) SpeechRefsForPolitician(ctx context.Context, politicianID int64) ([]SpeechRef, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT s.agenda_item_id, a.plenary_session_id, s.date
		FROM speeches s JOIN agenda_items a ON a.id = s.agenda_item_id
		WHERE s.politician_id = ? AND s.event_type = 'SPEECH'
		ORDER BY s.date, s.id`, politicianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []SpeechRef
	for rows.Next() {
		var r SpeechRef
		var raw string
		if err := rows.Scan(&r.AgendaItemID, &r.PlenarySessionID, &raw); err != nil {
			return nil, err
		}
		if r.Date, err = parseTime(raw); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// SpeakerIDsForSession returns the politicians with SPEECH events in a session.
func (s *Store) SpeakerIDsForSession(ctx context.Context, sessionID int64) ([]int64, error) {
	return s.queryIDs(ctx,
		`SELECT DISTINCT s.politician_id FROM speeches s
		JOIN agenda_items a ON a.id = s.agenda_item_id
		WHERE a.plenary_session_id = ? AND s.event_type = 'SPEECH' AND s.politician_id IS NOT NULL
		ORDER BY s.politician_id`, sessionID)
}

// Purge describes what DeleteIncompleteSpeeches removed.
type Purge struct {
	Deleted int64
	// AgendaItemIDs holds every agenda item of the purged sessions.
	AgendaItemIDs []int64
	// PoliticianIDs holds the speakers that lost at least one speech.
	PoliticianIDs []int64
}

// DeleteIncompleteSpeeches removes incomplete SPEECH rows under the sessions
// dated in [from, to). The caller must recompute flags and totals of the
// returned agenda items and politicians.
func (s *Store) DeleteIncompleteSpeeches(ctx context.Context, from, to time.Time) (Purge, error) {
	var p Purge
	sessionIDs, err := s.SessionIDsBetween(ctx, from, to)
	if err != nil {
		return p, fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessionIDs) == 0 {
		return p, nil
	}
	agendaIDs, err := s.AgendaItemIDsForSessions(ctx, sessionIDs)
	if err != nil {
		return p, fmt.Errorf("listing agenda items: %w", err)
	}

	speakers := map[int64]bool{}
	err = inChunks(agendaIDs, func(chunk []int64) error {
		in, args := inClause(chunk)
		ids, err := s.queryIDs(ctx,
			"SELECT DISTINCT politician_id FROM speeches WHERE event_type = 'SPEECH' AND is_incomplete = 1 AND politician_id IS NOT NULL AND agenda_item_id IN "+in,
			args...)
		for _, id := range ids {
			speakers[id] = true
		}
		return err
	})
	if err != nil {
		return p, fmt.Errorf("listing purged speakers: %w", err)
	}

	err = inChunks(agendaIDs, func(chunk []int64) error {
		in, args := inClause(chunk)
		n, err := s.execCount(ctx,
			"DELETE FROM speeches WHERE event_type = 'SPEECH' AND is_incomplete = 1 AND agenda_item_id IN "+in,
			args...)
		p.Deleted += n
		return err
	})
	if err != nil {
		return p, fmt.Errorf("deleting incomplete speeches: %w", err)
	}

	p.AgendaItemIDs = agendaIDs
	for id := range speakers {
		p.PoliticianIDs = append(p.PoliticianIDs, id)
	}
	slices.Sort(p.PoliticianIDs)
	return p, nil
}

// SetSpeechIncomplete writes a speech's flag if it differs.
func (s *Store) SetSpeechIncomplete(ctx context.Context, id int64, v bool) (bool, error) {
	return s.execChanged(ctx,
		"UPDATE speeches SET is_incomplete = ? WHERE id = ? AND is_incomplete <> ?", v, id, v)
}

// SpeechFlagRows loads the stored flag and text of the given speeches.
func (s *Store) SpeechFlagRows(ctx context.Context, ids []int64) ([]SpeechFlagRow, error) {
	var out []SpeechFlagRow
	err := inChunks(ids, func(chunk []int64) error {
		in, args := inClause(chunk)
		rows, err := s.q.QueryContext(ctx,
			"SELECT id, is_incomplete, text FROM speeches WHERE id IN "+in+" ORDER BY id", args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r SpeechFlagRow
			if err := rows.Scan(&r.ID, &r.Stored, &r.Text); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func scanSpeeches(rows *sql.Rows) ([]Speech, error) {
	var speeches []Speech
	for rows.Next() {
		var sp Speech
		var politicianID sql.NullInt64
		var link sql.NullString
		var date string
		err := rows.Scan(&sp.ID, &sp.UUID, &sp.AgendaItemID, &politicianID, &sp.EventType, &date,
			&sp.Speaker, &sp.Text, &link, &sp.IsIncomplete)
		if err != nil {
			return nil, err
		}
		if sp.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		sp.PoliticianID = nullInt64(politicianID)
		sp.Link = nullString(link)
		speeches = append(speeches, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return speeches, nil
}
