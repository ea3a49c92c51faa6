package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/duration"
	"github.com/TobiSchelling/ParlCorpus/internal/incomplete"
	"github.com/TobiSchelling/ParlCorpus/internal/profiling"
)

// The functions in this file derive values from stored speeches. Ingest
// calls them after each session and the jobs call them over the whole
// corpus, so both always agree.

// AgendaTotal computes an agenda item's duration. It is nil when the item
// has fewer than two speeches.
func AgendaTotal(ctx context.Context, s *database.Store, agendaID int64) (*int, error) {
	times, err := s.SpeechTimesForAgenda(ctx, agendaID)
	if err != nil {
		return nil, fmt.Errorf("loading speech times for agenda %d: %w", agendaID, err)
	}
	secs, ok := duration.AgendaTotal(times)
	if !ok {
		return nil, nil
	}
	return &secs, nil
}

// PoliticianTotal computes a politician's attributed speaking time. It is
// nil when the politician has no speeches.
func PoliticianTotal(ctx context.Context, s *database.Store, politicianID int64) (*int, error) {
	refs, err := s.SpeechRefsForPolitician(ctx, politicianID)
	if err != nil {
		return nil, fmt.Errorf("loading speeches of politician %d: %w", politicianID, err)
	}
	events := make([]duration.Event, len(refs))
	for i, r := range refs {
		events[i] = duration.Event{AgendaItemID: r.AgendaItemID, At: r.Date}
	}
	secs, ok := duration.PoliticianTotal(events)
	if !ok {
		return nil, nil
	}
	return &secs, nil
}

// ProfilingCounts returns how many profile parts a politician needs and how
// many exist. Months and years are taken in loc.
func ProfilingCounts(ctx context.Context, s *database.Store, loc *time.Location, politicianID int64) (required, profiled int, err error) {
	refs, err := s.SpeechRefsForPolitician(ctx, politicianID)
	if err != nil {
		return 0, 0, fmt.Errorf("loading speeches of politician %d: %w", politicianID, err)
	}
	inv := profiling.NewInventory()
	for _, r := range refs {
		inv.Add(r.AgendaItemID, r.PlenarySessionID, r.Date.In(loc))
	}
	profiled, err = s.CountProfileParts(ctx, politicianID)
	if err != nil {
		return 0, 0, fmt.Errorf("counting profile parts of politician %d: %w", politicianID, err)
	}
	return inv.Required(), profiled, nil
}

// RefreshAgendaTotal recomputes and stores an agenda item's duration.
func RefreshAgendaTotal(ctx context.Context, s *database.Store, agendaID int64) (bool, error) {
	total, err := AgendaTotal(ctx, s, agendaID)
	if err != nil {
		return false, err
	}
	return s.SetAgendaTotal(ctx, agendaID, total)
}

// PoliticianUpdate reports what RefreshPolitician rewrote.
type PoliticianUpdate struct {
	TotalChanged  bool
	CountsChanged bool
	FlagsChanged  int
	InvalidParts  []error
}

// RefreshPolitician rewrites everything derived from a politician's
// speeches: speaking time, profiling counters of active politicians and
// the flags of their profile parts. Parts with a malformed period are left
// alone and returned in InvalidParts.
func RefreshPolitician(ctx context.Context, s *database.Store, loc *time.Location, politicianID int64) (PoliticianUpdate, error) {
	var u PoliticianUpdate
	p, err := s.GetPolitician(ctx, politicianID)
	if err != nil {
		return u, fmt.Errorf("loading politician %d: %w", politicianID, err)
	}
	if p == nil {
		return u, fmt.Errorf("politician %d not found", politicianID)
	}

	total, err := PoliticianTotal(ctx, s, politicianID)
	if err != nil {
		return u, err
	}
	if u.TotalChanged, err = s.SetPoliticianTotal(ctx, politicianID, total); err != nil {
		return u, fmt.Errorf("updating total of politician %d: %w", politicianID, err)
	}

	if p.Active {
		required, profiled, err := ProfilingCounts(ctx, s, loc, politicianID)
		if err != nil {
			return u, err
		}
		if u.CountsChanged, err = s.SetProfilingCounts(ctx, politicianID, required, profiled); err != nil {
			return u, fmt.Errorf("updating profiling counts of politician %d: %w", politicianID, err)
		}
	}

	u.FlagsChanged, u.InvalidParts, err = incomplete.New(s, loc).RefreshProfileParts(ctx, politicianID)
	return u, err
}
