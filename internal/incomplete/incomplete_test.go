package incomplete

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/profiling"
)

type fixture struct {
	db        *database.DB
	path      string
	session   int64
	agenda    int64
	other     int64
	summary   int64
	decision  int64
	active    int64
	speaker   int64
	speechSeq int
}

var t0 = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	f := &fixture{db: db, path: path}
	f.speaker, _, err = db.UpsertPolitician(ctx, database.PoliticianInput{UUID: "p-1", FullName: "Mari Maasikas", Active: true})
	if err != nil {
		t.Fatalf("UpsertPolitician: %v", err)
	}
	f.session, _, _ = db.GetOrCreateSession(ctx, database.SessionKey{Membership: 15, PlenarySession: 1, Date: t0}, "Istung", false)
	f.agenda, _, _ = db.GetOrCreateAgendaItem(ctx, "a-1", f.session, t0, "Esimene")
	f.other, _, _ = db.GetOrCreateAgendaItem(ctx, "a-2", f.session, t0, "Teine")
	f.summary, _ = db.SaveAgendaSummary(ctx, f.agenda, "kokkuvõte")
	f.decision, _ = db.AddAgendaDecision(ctx, f.agenda, nil, "otsus")
	f.active, _ = db.SaveActivePolitician(ctx, f.agenda, &f.speaker, "aktiivne")
	return f
}

func (f *fixture) speech(t *testing.T, agendaID int64, at time.Time, incomplete bool) int64 {
	t.Helper()
	f.speechSeq++
	id, _, err := f.db.InsertSpeech(context.Background(), database.SpeechInput{
		UUID:         fmt.Sprintf("s-%d", f.speechSeq),
		AgendaItemID: agendaID,
		PoliticianID: &f.speaker,
		EventType:    database.EventSpeech,
		Date:         at,
		Speaker:      "Mari Maasikas",
		Text:         "tekst",
		IsIncomplete: incomplete,
	})
	if err != nil {
		t.Fatalf("InsertSpeech: %v", err)
	}
	return id
}

func (f *fixture) flag(t *testing.T, e database.Entity, id int64) bool {
	t.Helper()
	v, err := f.db.GetFlag(context.Background(), e, id)
	if err != nil {
		t.Fatalf("GetFlag(%s, %d): %v", e, id, err)
	}
	return v
}

func TestRefreshAgendaCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := New(f.db.Store, time.UTC)
	speechID := f.speech(t, f.agenda, t0, true)

	ch, err := p.RefreshAgenda(ctx, f.agenda)
	if err != nil {
		t.Fatalf("RefreshAgenda: %v", err)
	}
	if ch.Agendas != 1 || ch.Sessions != 1 {
		t.Errorf("expected agenda and session to change, got %+v", ch)
	}
	for _, c := range []struct {
		e  database.Entity
		id int64
	}{
		{database.EntityAgenda, f.agenda},
		{database.EntityPlenary, f.session},
		{database.EntitySummary, f.summary},
		{database.EntityDecision, f.decision},
		{database.EntityActive, f.active},
	} {
		if !f.flag(t, c.e, c.id) {
			t.Errorf("expected %s %d to be incomplete", c.e, c.id)
		}
	}
	if f.flag(t, database.EntityAgenda, f.other) {
		t.Error("expected sibling agenda to stay complete")
	}

	// A second refresh changes nothing.
	ch, err = p.RefreshAgenda(ctx, f.agenda)
	if err != nil {
		t.Fatalf("RefreshAgenda: %v", err)
	}
	if ch.Agendas != 0 || ch.Sessions != 0 || ch.Derived[database.EntitySummary] != 0 {
		t.Errorf("expected no changes on repeat, got %+v", ch)
	}

	// Upgrading the speech clears the whole chain.
	if _, err := f.db.SetSpeechIncomplete(ctx, speechID, false); err != nil {
		t.Fatalf("SetSpeechIncomplete: %v", err)
	}
	if _, err := p.RefreshAgenda(ctx, f.agenda); err != nil {
		t.Fatalf("RefreshAgenda: %v", err)
	}
	if f.flag(t, database.EntityPlenary, f.session) || f.flag(t, database.EntityDecision, f.decision) {
		t.Error("expected session and decision to be complete again")
	}
}

func TestRefreshSessionKeepsSiblingFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := New(f.db.Store, time.UTC)
	f.speech(t, f.agenda, t0, true)
	f.speech(t, f.other, t0, false)

	if _, err := p.RefreshAgendas(ctx, []int64{f.agenda, f.other}); err != nil {
		t.Fatalf("RefreshAgendas: %v", err)
	}
	if !f.flag(t, database.EntityPlenary, f.session) {
		t.Error("expected session to stay incomplete while one agenda is incomplete")
	}
}

func TestRefreshAgendaMissing(t *testing.T) {
	f := newFixture(t)
	if _, err := New(f.db.Store, time.UTC).RefreshAgenda(context.Background(), 9999); err == nil {
		t.Error("expected error for missing agenda item")
	}
}

func TestProfilePartIncomplete(t *testing.T) {
	tallinn, err := time.LoadLocation("Europe/Tallinn")
	if err != nil {
		t.Skipf("zone data unavailable: %v", err)
	}
	f := newFixture(t)
	ctx := context.Background()
	p := New(f.db.Store, tallinn)

	// 22:30 UTC on 31 March is already April in Tallinn.
	f.speech(t, f.agenda, time.Date(2024, 3, 31, 22, 30, 0, 0, time.UTC), true)

	ptrInt64 := func(v int64) *int64 { return &v }
	ptrStr := func(v string) *string { return &v }
	ptrInt := func(v int) *int { return &v }

	tests := []struct {
		name   string
		period profiling.Period
		want   bool
	}{
		{"agenda", profiling.Period{Type: profiling.PeriodAgenda, AgendaItemID: ptrInt64(f.agenda)}, true},
		{"other agenda", profiling.Period{Type: profiling.PeriodAgenda, AgendaItemID: ptrInt64(f.other)}, false},
		{"session", profiling.Period{Type: profiling.PeriodSession, PlenarySessionID: ptrInt64(f.session)}, true},
		{"local month", profiling.Period{Type: profiling.PeriodMonth, Month: ptrStr("04.2024")}, true},
		{"utc month", profiling.Period{Type: profiling.PeriodMonth, Month: ptrStr("03.2024")}, false},
		{"year", profiling.Period{Type: profiling.PeriodYear, Year: ptrInt(2024)}, true},
		{"other year", profiling.Period{Type: profiling.PeriodYear, Year: ptrInt(2023)}, false},
		{"all", profiling.Period{Type: profiling.PeriodAll}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := f.db.SaveProfilePart(ctx, f.speaker, profiling.PoliticalPosition, tt.period, "", false)
			if err != nil {
				t.Fatalf("SaveProfilePart: %v", err)
			}
			part, err := f.db.GetProfilePart(ctx, id)
			if err != nil || part == nil {
				t.Fatalf("GetProfilePart: %v", err)
			}
			got, err := p.ProfilePartIncomplete(ctx, *part)
			if err != nil {
				t.Fatalf("ProfilePartIncomplete: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefreshProfilePartsSkipsMalformed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := New(f.db.Store, time.UTC)
	f.speech(t, f.agenda, t0, true)

	good, err := f.db.SaveProfilePart(ctx, f.speaker, profiling.EconomicViews, profiling.Period{Type: profiling.PeriodAll}, "", false)
	if err != nil {
		t.Fatalf("SaveProfilePart: %v", err)
	}

	// The schema cannot check the month format, so a bad key can only come
	// from a writer that bypassed validation.
	raw, err := sql.Open("sqlite", f.path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer raw.Close()
	if _, err := raw.Exec(`INSERT INTO politician_profile_parts (politician_id, category, period_type, month)
		VALUES (?, 'SOCIAL_ISSUES', 'MONTH', '2024-03')`, f.speaker); err != nil {
		t.Fatalf("insert malformed part: %v", err)
	}

	changed, skipped, err := p.RefreshProfileParts(ctx, f.speaker)
	if err != nil {
		t.Fatalf("RefreshProfileParts: %v", err)
	}
	if changed != 1 {
		t.Errorf("expected 1 change, got %d", changed)
	}
	if len(skipped) != 1 || !errors.Is(skipped[0], profiling.ErrInvalidPeriod) {
		t.Errorf("expected one ErrInvalidPeriod skip, got %v", skipped)
	}
	if !f.flag(t, database.EntityProfile, good) {
		t.Error("expected ALL part to be incomplete")
	}
}
