package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetOrCreateSession finds a session by its natural key or creates it.
// Title and edited are only written on creation.
func (s *Store) GetOrCreateSession(ctx context.Context, key SessionKey, title string, edited bool) (id int64, created bool, err error) {
	date := formatTime(key.Date)
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO plenary_sessions (membership, plenary_session, date, title, edited)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(membership, plenary_session, date) DO NOTHING`,
		key.Membership, key.PlenarySession, date, title, edited,
	)
	if err != nil {
		return 0, false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, err = res.LastInsertId()
		return id, true, err
	}
	err = s.q.QueryRowContext(ctx,
		"SELECT id FROM plenary_sessions WHERE membership = ? AND plenary_session = ? AND date = ?",
		key.Membership, key.PlenarySession, date,
	).Scan(&id)
	return id, false, err
}

// GetSession returns a plenary session by ID, or nil if not found.
func (s *Store) GetSession(ctx context.Context, id int64) (*PlenarySession, error) {
	var ps PlenarySession
	var date string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, membership, plenary_session, date, title, edited, is_incomplete
		FROM plenary_sessions WHERE id = ?`, id,
	).Scan(&ps.ID, &ps.Membership, &ps.PlenarySession, &date, &ps.Title, &ps.Edited, &ps.IsIncomplete)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if ps.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	return &ps, nil
}

// SessionIDsBetween returns sessions dated in [from, to).
func (s *Store) SessionIDsBetween(ctx context.Context, from, to time.Time) ([]int64, error) {
	return s.queryIDs(ctx,
		"SELECT id FROM plenary_sessions WHERE date >= ? AND date < ? ORDER BY date, id",
		formatTime(from), formatTime(to))
}

// GetOrCreateAgendaItem finds an agenda item by UUID or creates it under
// sessionID. An existing item keeps its session, date and title.
func (s *Store) GetOrCreateAgendaItem(ctx context.Context, uuid string, sessionID int64, date time.Time, title string) (id int64, created bool, err error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO agenda_items (uuid, plenary_session_id, date, title)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(uuid) DO NOTHING`,
		uuid, sessionID, formatTime(date), title,
	)
	if err != nil {
		return 0, false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, err = res.LastInsertId()
		return id, true, err
	}
	err = s.q.QueryRowContext(ctx, "SELECT id FROM agenda_items WHERE uuid = ?", uuid).Scan(&id)
	return id, false, err
}

// GetAgendaItem returns an agenda item by ID, or nil if not found.
func (s *Store) GetAgendaItem(ctx context.Context, id int64) (*AgendaItem, error) {
	var a AgendaItem
	var date string
	var total sql.NullInt64
	err := s.q.QueryRowContext(ctx,
		`SELECT id, uuid, plenary_session_id, date, title, total_time_seconds, is_incomplete
		FROM agenda_items WHERE id = ?`, id,
	).Scan(&a.ID, &a.UUID, &a.PlenarySessionID, &date, &a.Title, &total, &a.IsIncomplete)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if a.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	a.TotalTimeSeconds = nullInt(total)
	return &a, nil
}

// AgendaItemIDsForSessions returns the agenda items of the given sessions.
func (s *Store) AgendaItemIDsForSessions(ctx context.Context, sessionIDs []int64) ([]int64, error) {
	var ids []int64
	err := inChunks(sessionIDs, func(chunk []int64) error {
		in, args := inClause(chunk)
		got, err := s.queryIDs(ctx,
			"SELECT id FROM agenda_items WHERE plenary_session_id IN "+in+" ORDER BY id", args...)
		ids = append(ids, got...)
		return err
	})
	return ids, err
}

// ListAgendaItemIDs returns all agenda item IDs in ascending order.
func (s *Store) ListAgendaItemIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, "SELECT id FROM agenda_items ORDER BY id")
}

// SetAgendaTotal writes total_time_seconds if it differs from the stored value.
func (s *Store) SetAgendaTotal(ctx context.Context, id int64, seconds *int) (bool, error) {
	return s.execChanged(ctx,
		"UPDATE agenda_items SET total_time_seconds = ? WHERE id = ? AND total_time_seconds IS NOT ?",
		seconds, id, seconds)
}
