package database

import (
	"context"
	"fmt"
)

// GetStats returns aggregate corpus statistics.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	counts := []struct {
		dst   *int
		query string
	}{
		{&st.Politicians, "SELECT COUNT(*) FROM politicians"},
		{&st.ActivePoliticians, "SELECT COUNT(*) FROM politicians WHERE active = 1"},
		{&st.Factions, "SELECT COUNT(*) FROM factions"},
		{&st.Sessions, "SELECT COUNT(*) FROM plenary_sessions"},
		{&st.IncompleteSessions, "SELECT COUNT(*) FROM plenary_sessions WHERE is_incomplete = 1"},
		{&st.AgendaItems, "SELECT COUNT(*) FROM agenda_items"},
		{&st.IncompleteAgendas, "SELECT COUNT(*) FROM agenda_items WHERE is_incomplete = 1"},
		{&st.Speeches, "SELECT COUNT(*) FROM speeches"},
		{&st.IncompleteSpeeches, "SELECT COUNT(*) FROM speeches WHERE is_incomplete = 1"},
		{&st.UnattributedSpeeches, "SELECT COUNT(*) FROM speeches WHERE politician_id IS NULL"},
		{&st.ProfileParts, "SELECT COUNT(*) FROM politician_profile_parts"},
		{&st.ParseErrors, "SELECT COUNT(*) FROM parse_errors"},
	}
	for _, c := range counts {
		n, err := s.count(ctx, c.query)
		if err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		*c.dst = n
	}
	return &st, nil
}
