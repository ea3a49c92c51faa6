// Package incomplete keeps the is_incomplete flags consistent with the
// speeches beneath them.
//
// A speech is incomplete while its text is the placeholder. An agenda item
// is incomplete iff it has an incomplete SPEECH; its summary, decisions and
// active-politician record carry the same flag. A session is incomplete iff
// any of its agenda items is. A profile part is incomplete iff its
// politician has an incomplete SPEECH inside the part's period.
package incomplete

import (
	"context"
	"fmt"
	"time"

	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/profiling"
)

// Propagator recomputes flags from the store it is bound to. Bind it to a
// transaction's Store to make its writes part of that transaction.
type Propagator struct {
	store *database.Store
	loc   *time.Location
}

// New returns a Propagator. loc decides month and year boundaries for
// profile periods.
func New(store *database.Store, loc *time.Location) *Propagator {
	if loc == nil {
		loc = time.UTC
	}
	return &Propagator{store: store, loc: loc}
}

// Changes counts the rows a refresh rewrote.
type Changes struct {
	Agendas  int
	Sessions int
	Derived  map[database.Entity]int64
}

func (c *Changes) add(o Changes) {
	c.Agendas += o.Agendas
	c.Sessions += o.Sessions
	for e, n := range o.Derived {
		if c.Derived == nil {
			c.Derived = make(map[database.Entity]int64)
		}
		c.Derived[e] += n
	}
}

// RefreshAgenda recomputes an agenda item's flag, mirrors it onto the
// records derived from the item and refreshes the parent session.
func (p *Propagator) RefreshAgenda(ctx context.Context, agendaID int64) (Changes, error) {
	var ch Changes
	item, err := p.store.GetAgendaItem(ctx, agendaID)
	if err != nil {
		return ch, fmt.Errorf("loading agenda item %d: %w", agendaID, err)
	}
	if item == nil {
		return ch, fmt.Errorf("agenda item %d not found", agendaID)
	}

	v, err := p.store.AgendaHasIncompleteSpeech(ctx, agendaID)
	if err != nil {
		return ch, fmt.Errorf("evaluating agenda %d: %w", agendaID, err)
	}
	changed, err := p.store.SetAgendaIncomplete(ctx, agendaID, v)
	if err != nil {
		return ch, fmt.Errorf("updating agenda %d: %w", agendaID, err)
	}
	if changed {
		ch.Agendas++
	}

	if ch.Derived, err = p.store.MirrorAgendaFlag(ctx, agendaID, v); err != nil {
		return ch, err
	}

	sessionChanged, err := p.RefreshSession(ctx, item.PlenarySessionID)
	if err != nil {
		return ch, err
	}
	if sessionChanged {
		ch.Sessions++
	}
	return ch, nil
}

// RefreshAgendas refreshes each agenda item in turn.
func (p *Propagator) RefreshAgendas(ctx context.Context, agendaIDs []int64) (Changes, error) {
	var total Changes
	for _, id := range agendaIDs {
		ch, err := p.RefreshAgenda(ctx, id)
		total.add(ch)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// RefreshSession sets a session's flag to the OR of its agenda flags.
func (p *Propagator) RefreshSession(ctx context.Context, sessionID int64) (bool, error) {
	v, err := p.store.SessionHasIncompleteAgenda(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("evaluating session %d: %w", sessionID, err)
	}
	changed, err := p.store.SetSessionIncomplete(ctx, sessionID, v)
	if err != nil {
		return false, fmt.Errorf("updating session %d: %w", sessionID, err)
	}
	return changed, nil
}

// ProfilePartIncomplete evaluates a profile part's period predicate. It
// returns an error wrapping profiling.ErrInvalidPeriod when the stored
// period is malformed.
func (p *Propagator) ProfilePartIncomplete(ctx context.Context, part database.ProfilePart) (bool, error) {
	period := part.Period()
	if err := period.Validate(); err != nil {
		return false, fmt.Errorf("profile part %d: %w", part.ID, err)
	}

	var f database.SpeechFilter
	switch period.Type {
	case profiling.PeriodAgenda:
		f.AgendaItemID = *period.AgendaItemID
	case profiling.PeriodSession:
		f.PlenarySessionID = *period.PlenarySessionID
	case profiling.PeriodMonth:
		month, year, err := profiling.ParseMonth(*period.Month)
		if err != nil {
			return false, err
		}
		f.From, f.To = database.MonthBounds(month, year, p.loc)
	case profiling.PeriodYear:
		f.From, f.To = database.YearBounds(*period.Year, p.loc)
	case profiling.PeriodAll:
	}
	return p.store.PoliticianHasIncompleteSpeech(ctx, part.PoliticianID, f)
}

// RefreshProfileParts recomputes the flag of every profile part of a
// politician and returns how many changed. Parts with a malformed period
// are left alone and reported in skipped.
func (p *Propagator) RefreshProfileParts(ctx context.Context, politicianID int64) (changed int, skipped []error, err error) {
	parts, err := p.store.ProfilePartsForPolitician(ctx, politicianID)
	if err != nil {
		return 0, nil, fmt.Errorf("loading profile parts: %w", err)
	}
	for _, part := range parts {
		v, err := p.ProfilePartIncomplete(ctx, part)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		ok, err := p.store.SetFlag(ctx, database.EntityProfile, part.ID, v)
		if err != nil {
			return changed, skipped, fmt.Errorf("updating profile part %d: %w", part.ID, err)
		}
		if ok {
			changed++
		}
	}
	return changed, skipped, nil
}
