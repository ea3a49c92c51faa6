package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/TobiSchelling/ParlCorpus/internal/cleantext"
)

const politicianColumns = `id, uuid, first_name, last_name, full_name, active, email, phone, gender,
	date_of_birth, parliament_seniority, total_time_seconds, profiles_required, profiles_already_profiled`

// UpsertPolitician creates or fully overwrites a politician by UUID.
func (s *Store) UpsertPolitician(ctx context.Context, p PoliticianInput) (id int64, created bool, err error) {
	err = s.q.QueryRowContext(ctx, "SELECT id FROM politicians WHERE uuid = ?", p.UUID).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := s.q.ExecContext(ctx,
			`INSERT INTO politicians (uuid, first_name, last_name, full_name,
				first_name_key, last_name_key, full_name_key, active, email, phone, gender,
				date_of_birth, parliament_seniority)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.UUID, p.FirstName, p.LastName, p.FullName,
			cleantext.NameKey(p.FirstName), cleantext.NameKey(p.LastName), cleantext.NameKey(p.FullName),
			p.Active, p.Email, p.Phone, p.Gender, p.DateOfBirth, p.ParliamentSeniority,
		)
		if err != nil {
			return 0, false, err
		}
		id, err = res.LastInsertId()
		return id, true, err
	case err != nil:
		return 0, false, err
	}

	_, err = s.q.ExecContext(ctx,
		`UPDATE politicians SET first_name = ?, last_name = ?, full_name = ?,
			first_name_key = ?, last_name_key = ?, full_name_key = ?, active = ?,
			email = ?, phone = ?, gender = ?, date_of_birth = ?, parliament_seniority = ?,
			updated_at = datetime('now')
		WHERE id = ?`,
		p.FirstName, p.LastName, p.FullName,
		cleantext.NameKey(p.FirstName), cleantext.NameKey(p.LastName), cleantext.NameKey(p.FullName),
		p.Active, p.Email, p.Phone, p.Gender, p.DateOfBirth, p.ParliamentSeniority, id,
	)
	return id, false, err
}

// EnsureMembership get-or-creates the faction and the (politician, faction,
// start date) membership. Existing memberships are never updated.
func (s *Store) EnsureMembership(ctx context.Context, politicianID int64, m Membership) (created bool, err error) {
	if _, err := s.q.ExecContext(ctx,
		"INSERT INTO factions (uuid, name) VALUES (?, ?) ON CONFLICT(uuid) DO NOTHING",
		m.FactionUUID, m.FactionName,
	); err != nil {
		return false, err
	}
	var factionID int64
	if err := s.q.QueryRowContext(ctx, "SELECT id FROM factions WHERE uuid = ?", m.FactionUUID).Scan(&factionID); err != nil {
		return false, err
	}

	start := ""
	if m.StartDate != nil {
		start = *m.StartDate
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO politician_factions (politician_id, faction_id, start_date, end_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(politician_id, faction_id, start_date) DO NOTHING`,
		politicianID, factionID, start, m.EndDate,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetPolitician returns a politician by ID, or nil if not found.
func (s *Store) GetPolitician(ctx context.Context, id int64) (*Politician, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+politicianColumns+" FROM politicians WHERE id = ?", id)
	p, err := scanPolitician(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// GetPoliticianByUUID returns a politician by external UUID, or nil if not found.
func (s *Store) GetPoliticianByUUID(ctx context.Context, uuid string) (*Politician, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+politicianColumns+" FROM politicians WHERE uuid = ?", uuid)
	p, err := scanPolitician(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// FindPoliticianByName matches a transcript speaker name. The full name is
// tried first, then the first token as first name and the rest as last name.
// Comparison is case-insensitive. Returns nil when nothing matches.
func (s *Store) FindPoliticianByName(ctx context.Context, speaker string) (*int64, error) {
	key := cleantext.NameKey(speaker)
	if key == "" {
		return nil, nil
	}

	var id int64
	err := s.q.QueryRowContext(ctx,
		"SELECT id FROM politicians WHERE full_name_key = ? ORDER BY id LIMIT 1", key,
	).Scan(&id)
	if err == nil {
		return &id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	first, rest, ok := strings.Cut(key, " ")
	if !ok {
		return nil, nil
	}
	err = s.q.QueryRowContext(ctx,
		"SELECT id FROM politicians WHERE first_name_key = ? AND last_name_key = ? ORDER BY id LIMIT 1",
		first, rest,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ListPoliticianIDs returns all politician IDs in ascending order.
func (s *Store) ListPoliticianIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, "SELECT id FROM politicians ORDER BY id")
}

// ActiveSpeakerIDs returns active politicians with at least one stored speech.
func (s *Store) ActiveSpeakerIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx,
		`SELECT p.id FROM politicians p
		WHERE p.active = 1
		  AND EXISTS (SELECT 1 FROM speeches s WHERE s.politician_id = p.id AND s.event_type = 'SPEECH')
		ORDER BY p.id`)
}

// SetPoliticianTotal writes total_time_seconds if it differs from the stored
// value and reports whether it did.
func (s *Store) SetPoliticianTotal(ctx context.Context, id int64, seconds *int) (bool, error) {
	return s.execChanged(ctx,
		"UPDATE politicians SET total_time_seconds = ? WHERE id = ? AND total_time_seconds IS NOT ?",
		seconds, id, seconds)
}

// SetProfilingCounts writes both profiling counters if either differs.
func (s *Store) SetProfilingCounts(ctx context.Context, id int64, required, profiled int) (bool, error) {
	return s.execChanged(ctx,
		`UPDATE politicians SET profiles_required = ?, profiles_already_profiled = ?
		WHERE id = ? AND (profiles_required <> ? OR profiles_already_profiled <> ?)`,
		required, profiled, id, required, profiled)
}

func scanPolitician(row interface{ Scan(...any) error }) (*Politician, error) {
	var p Politician
	var email, phone, gender, dob sql.NullString
	var seniority sql.NullFloat64
	var total sql.NullInt64
	err := row.Scan(&p.ID, &p.UUID, &p.FirstName, &p.LastName, &p.FullName, &p.Active,
		&email, &phone, &gender, &dob, &seniority, &total, &p.ProfilesRequired, &p.ProfilesAlreadyProfiled)
	if err != nil {
		return nil, err
	}
	p.Email = nullString(email)
	p.Phone = nullString(phone)
	p.Gender = nullString(gender)
	p.DateOfBirth = nullString(dob)
	if seniority.Valid {
		p.ParliamentSeniority = &seniority.Float64
	}
	p.TotalTimeSeconds = nullInt(total)
	return &p, nil
}
