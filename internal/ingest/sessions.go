package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/TobiSchelling/ParlCorpus/internal/cleantext"
	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/errlog"
	"github.com/TobiSchelling/ParlCorpus/internal/fingerprint"
	"github.com/TobiSchelling/ParlCorpus/internal/incomplete"
	"github.com/TobiSchelling/ParlCorpus/internal/reconcile"
	"github.com/TobiSchelling/ParlCorpus/internal/riigikogu"
)

// sessionStats collects one session's counters. They are merged into the
// run result only when the session's transaction succeeds.
type sessionStats struct {
	created, existed, skipped int
	createdByType             map[string]int
	eventTypes                map[string]int
	agendaTotals              int
	politicians               int
}

func newSessionStats() *sessionStats {
	return &sessionStats{
		createdByType: make(map[string]int),
		eventTypes:    make(map[string]int),
	}
}

// sessions fetches the transcripts of the range and stores them one
// session at a time.
func (r *run) sessions(ctx context.Context) StepResult {
	step := StepResult{Name: "Sessions"}

	verbatims, err := r.p.api.Verbatims(ctx, r.rng.Start, r.rng.End)
	if err != nil {
		r.sink.Log(errlog.Entry{
			Type:       errlog.APIConnection,
			Message:    "Failed to fetch verbatims: " + err.Error(),
			EntityType: "session",
			Details: map[string]any{
				"date_range": r.day(r.rng.Start) + " to " + r.day(r.rng.End),
				"error":      err.Error(),
			},
		})
		step.Err = fmt.Errorf("fetching verbatims: %w", err)
		return step
	}
	r.log.Info("fetched sessions", "count", len(verbatims))

	c := &r.res.Counters
	for i, v := range verbatims {
		if err := ctx.Err(); err != nil {
			step.Err = err
			return step
		}
		r.log.Debug("processing session", "n", i+1, "of", len(verbatims), "session", v.UUID, "date", v.Date)

		outcome := r.session(ctx, v)
		r.p.metrics.Session(outcome)
		switch outcome {
		case "processed":
			c.SessionsProcessed++
		case "empty":
			c.SessionsEmpty++
		default:
			c.SessionsSkipped++
		}

		if err := r.flush(ctx); err != nil {
			step.Err = err
			return step
		}
	}

	step.Summary = fmt.Sprintf("%d sessions: %d processed, %d empty, %d skipped; speeches %d created, %d existed, %d skipped",
		len(verbatims), c.SessionsProcessed, c.SessionsEmpty, c.SessionsSkipped,
		c.SpeechesCreated, c.SpeechesExisted, c.SpeechesSkipped)
	if r.dryRun {
		step.Summary = "[dry-run] " + step.Summary
	}
	return step
}

// session stores one transcript in a single transaction and returns its
// outcome: processed, empty, skipped or failed.
func (r *run) session(ctx context.Context, v riigikogu.Verbatim) string {
	title := cleantext.Clean(v.Title)
	at, err := riigikogu.ParseTimeIn(v.Date, r.p.loc)
	if err != nil {
		r.sink.Log(errlog.Entry{
			Type:       errlog.DataParsing,
			Message:    "Failed to parse session date: " + err.Error(),
			EntityType: "session",
			EntityID:   v.UUID,
			EntityName: title,
			Details:    map[string]any{"date": v.Date},
		})
		return "skipped"
	}
	if v.Membership == nil || v.PlenarySession == nil {
		r.sink.Log(errlog.Entry{
			Type:       errlog.MissingData,
			Message:    "Session without membership or plenary session number",
			EntityType: "session",
			EntityID:   v.UUID,
			EntityName: title,
			Details:    map[string]any{"date": v.Date},
		})
		return "skipped"
	}

	st := newSessionStats()
	key := database.SessionKey{Membership: *v.Membership, PlenarySession: *v.PlenarySession, Date: at}
	err = r.p.db.Tx(ctx, r.dryRun, func(s *database.Store) error {
		sessionID, _, err := s.GetOrCreateSession(ctx, key, title, v.Edited)
		if err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		prop := incomplete.New(s, r.p.loc)

		for _, item := range r.sortedAgendaItems(v) {
			if err := r.agenda(ctx, s, prop, sessionID, item, st); err != nil {
				return err
			}
		}
		if _, err := prop.RefreshSession(ctx, sessionID); err != nil {
			return err
		}
		return r.refreshSpeakers(ctx, s, sessionID, st)
	})
	if err != nil {
		r.sink.Log(errlog.Entry{
			Type:       errlog.Database,
			Message:    "Failed to save session: " + err.Error(),
			EntityType: "session",
			EntityID:   v.UUID,
			EntityName: title,
		})
		return "failed"
	}

	r.merge(st)

	if st.created+st.existed == 0 {
		id := v.UUID
		if id == "" {
			id = fmt.Sprintf("%d-%d", *v.Membership, *v.PlenarySession)
		}
		r.sink.Log(errlog.Entry{
			Type:       errlog.MissingData,
			Message:    "Session has no speeches or agenda items",
			EntityType: "session",
			EntityID:   id,
			EntityName: title,
			Details: map[string]any{
				"uuid":               v.UUID,
				"membership":         *v.Membership,
				"plenary_session":    *v.PlenarySession,
				"date":               v.Date,
				"edited":             v.Edited,
				"agenda_items_count": len(v.AgendaItems),
			},
		})
		return "empty"
	}
	r.log.Info("session stored", "session", v.UUID, "created", st.created, "existed", st.existed, "skipped", st.skipped)
	return "processed"
}

type datedAgendaItem struct {
	riigikogu.AgendaItem
	at time.Time
}

// sortedAgendaItems drops agenda items that cannot be stored and orders the
// rest by date.
func (r *run) sortedAgendaItems(v riigikogu.Verbatim) []datedAgendaItem {
	var items []datedAgendaItem
	for _, item := range v.AgendaItems {
		title := cleantext.Clean(item.Title)
		if item.UUID == "" {
			r.sink.Log(errlog.Entry{
				Type:       errlog.MissingData,
				Message:    "Agenda item without UUID",
				EntityType: "agenda",
				EntityName: title,
				Details:    map[string]any{"session": v.UUID, "date": item.Date, "events": len(item.Events)},
			})
			continue
		}
		at, err := riigikogu.ParseTimeIn(item.Date, r.p.loc)
		if err != nil {
			r.sink.Log(errlog.Entry{
				Type:       errlog.DataParsing,
				Message:    "Failed to parse agenda item date: " + err.Error(),
				EntityType: "agenda",
				EntityID:   item.UUID,
				EntityName: title,
				Details:    map[string]any{"date": item.Date},
			})
			continue
		}
		items = append(items, datedAgendaItem{AgendaItem: item, at: at})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].at.Before(items[j].at) })
	return items
}

type datedEvent struct {
	riigikogu.Event
	at time.Time
}

// agenda stores one agenda item with its speeches, then refreshes the
// item's duration and incompleteness. A returned error aborts the session.
func (r *run) agenda(ctx context.Context, s *database.Store, prop *incomplete.Propagator, sessionID int64, item datedAgendaItem, st *sessionStats) error {
	agendaID, _, err := s.GetOrCreateAgendaItem(ctx, item.UUID, sessionID, item.at, cleantext.Clean(item.Title))
	if err != nil {
		return fmt.Errorf("saving agenda item %s: %w", item.UUID, err)
	}

	var events []datedEvent
	for _, ev := range item.Events {
		typ := ev.EventType()
		st.eventTypes[typ]++
		if typ != database.EventSpeech {
			st.skipped++
			continue
		}
		at, err := riigikogu.ParseTimeIn(ev.Date, r.p.loc)
		if err != nil {
			r.sink.Log(errlog.Entry{
				Type:       errlog.DataParsing,
				Message:    "Failed to parse speech date: " + err.Error(),
				EntityType: "speech",
				EntityID:   ev.UUID,
				EntityName: cleantext.Clean(ev.Speaker),
				Details:    map[string]any{"agenda": item.UUID, "date": ev.Date},
			})
			st.skipped++
			continue
		}
		events = append(events, datedEvent{Event: ev, at: at})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })

	for _, ev := range events {
		outcome, err := r.speech(ctx, s, agendaID, item.UUID, ev)
		if err != nil {
			return err
		}
		switch outcome {
		case "created":
			st.created++
			st.createdByType[ev.EventType()]++
		case "existed":
			st.existed++
		default:
			st.skipped++
		}
	}

	updated, err := reconcile.RefreshAgendaTotal(ctx, s, agendaID)
	if err != nil {
		return err
	}
	if updated {
		st.agendaTotals++
	}
	_, err = prop.RefreshAgenda(ctx, agendaID)
	return err
}

// speech stores one SPEECH event and returns created, existed or skipped.
// Only a failed politician lookup is returned as an error.
func (r *run) speech(ctx context.Context, s *database.Store, agendaID int64, agendaUUID string, ev datedEvent) (string, error) {
	speaker := cleantext.Clean(ev.Speaker)
	text := cleantext.Clean(ev.Text)
	if speaker == "" || text == "" {
		return "skipped", nil
	}

	placeholder := cleantext.IsPlaceholder(text)
	if placeholder {
		text = cleantext.Placeholder
		r.sink.Log(errlog.Entry{
			Type:       errlog.MissingStenogram,
			Message:    "Missing stenogram",
			EntityType: "speech",
			EntityID:   ev.UUID,
			EntityName: speaker,
			Details:    map[string]any{"date": ev.Date},
		})
	}

	politicianID, err := s.FindPoliticianByName(ctx, speaker)
	if err != nil {
		return "", fmt.Errorf("matching speaker %q: %w", speaker, err)
	}

	at := ev.at.In(r.p.loc)
	_, created, err := s.InsertSpeech(ctx, database.SpeechInput{
		UUID:         fingerprint.SpeechID(agendaUUID, at, speaker, text),
		AgendaItemID: agendaID,
		PoliticianID: politicianID,
		EventType:    database.EventSpeech,
		Date:         at,
		Speaker:      speaker,
		Text:         text,
		Link:         optional(ev.Link),
		IsIncomplete: placeholder,
		ParsedAt:     r.p.now(),
	})
	if err != nil {
		r.sink.Log(errlog.Entry{
			Type:       errlog.Database,
			Message:    "Failed to save speech: " + err.Error(),
			EntityType: "speech",
			EntityID:   agendaUUID,
			EntityName: speaker,
			Details:    map[string]any{"date": ev.Date},
		})
		r.p.metrics.Speech("skipped")
		return "skipped", nil
	}
	if created {
		r.p.metrics.Speech("created")
		return "created", nil
	}
	r.p.metrics.Speech("existed")
	return "existed", nil
}

// refreshSpeakers recomputes everything derived from the speeches of the
// politicians who spoke in the session.
func (r *run) refreshSpeakers(ctx context.Context, s *database.Store, sessionID int64, st *sessionStats) error {
	ids, err := s.SpeakerIDsForSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("listing speakers: %w", err)
	}
	n, err := r.refreshPoliticians(ctx, s, ids)
	st.politicians += n
	return err
}

// refreshPoliticians recomputes the derived values of each politician and
// returns how many changed.
func (r *run) refreshPoliticians(ctx context.Context, s *database.Store, ids []int64) (int, error) {
	changed := 0
	for _, id := range ids {
		u, err := reconcile.RefreshPolitician(ctx, s, r.p.loc, id)
		if err != nil {
			return changed, err
		}
		for _, invalid := range u.InvalidParts {
			r.sink.Log(errlog.Entry{
				Type:       errlog.Validation,
				Message:    "Profile part has an invalid period",
				Details:    map[string]any{"error": invalid.Error(), "politician_id": id},
				EntityType: "politician",
				EntityID:   fmt.Sprint(id),
			})
		}
		if u.TotalChanged || u.CountsChanged || u.FlagsChanged > 0 {
			changed++
		}
	}
	return changed, nil
}

func (r *run) merge(st *sessionStats) {
	c := &r.res.Counters
	c.SpeechesCreated += st.created
	c.SpeechesExisted += st.existed
	c.SpeechesSkipped += st.skipped
	c.AgendaTotalsUpdated += st.agendaTotals
	c.PoliticiansRefreshed += st.politicians
	for k, n := range st.createdByType {
		c.CreatedByType[k] += n
	}
	for k, n := range st.eventTypes {
		c.EventTypes[k] += n
	}
}
