package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/TobiSchelling/ParlCorpus/internal/profiling"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

var t0 = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

// seedAgenda creates a session with one agenda item and returns both IDs.
func seedAgenda(t *testing.T, db *DB, agendaUUID string, at time.Time) (sessionID, agendaID int64) {
	t.Helper()
	ctx := context.Background()
	sessionID, _, err := db.GetOrCreateSession(ctx, SessionKey{Membership: 15, PlenarySession: 3, Date: at}, "Täiskogu istung", true)
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	agendaID, _, err = db.GetOrCreateAgendaItem(ctx, agendaUUID, sessionID, at, "Eelnõu")
	if err != nil {
		t.Fatalf("GetOrCreateAgendaItem: %v", err)
	}
	return sessionID, agendaID
}

func seedSpeech(t *testing.T, db *DB, agendaID int64, uuid string, at time.Time, politicianID *int64, incomplete bool) int64 {
	t.Helper()
	id, created, err := db.InsertSpeech(context.Background(), SpeechInput{
		UUID:         uuid,
		AgendaItemID: agendaID,
		PoliticianID: politicianID,
		EventType:    EventSpeech,
		Date:         at,
		Speaker:      "Mari Maasikas",
		Text:         "Tekst",
		IsIncomplete: incomplete,
		ParsedAt:     at,
	})
	if err != nil {
		t.Fatalf("InsertSpeech: %v", err)
	}
	if !created {
		t.Fatalf("expected speech %s to be created", uuid)
	}
	return id
}

func TestUpsertPolitician(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, created, err := db.UpsertPolitician(ctx, PoliticianInput{
		UUID: "p-1", FirstName: "Jüri", LastName: "Õunapuu", FullName: "Jüri Õunapuu", Active: true,
		ParliamentSeniority: ptr(2.5),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || id == 0 {
		t.Fatalf("expected new politician, got id=%d created=%v", id, created)
	}

	again, created, err := db.UpsertPolitician(ctx, PoliticianInput{
		UUID: "p-1", FirstName: "Jüri", LastName: "Õunapuu", FullName: "Jüri Õunapuu", Active: false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created || again != id {
		t.Errorf("expected update of %d, got id=%d created=%v", id, again, created)
	}

	p, err := db.GetPolitician(ctx, id)
	if err != nil {
		t.Fatalf("GetPolitician: %v", err)
	}
	if p.Active {
		t.Error("expected active to be overwritten to false")
	}
	if p.ParliamentSeniority != nil {
		t.Error("expected seniority to be overwritten to nil")
	}
}

func TestGetPoliticianNotFound(t *testing.T) {
	db := openTestDB(t)
	p, err := db.GetPolitician(context.Background(), 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Error("expected nil for missing politician")
	}
}

func TestFindPoliticianByName(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	id, _, _ := db.UpsertPolitician(ctx, PoliticianInput{
		UUID: "p-1", FirstName: "Jüri", LastName: "Õunapuu Saar", FullName: "Jüri Õunapuu-Saar",
	})

	tests := []struct {
		speaker string
		want    bool
	}{
		{"Jüri Õunapuu-Saar", true},
		{"JÜRI ÕUNAPUU-SAAR", true},
		{"jüri   õunapuu saar", true},
		{"Jüri", false},
		{"Mari Maasikas", false},
		{"", false},
	}
	for _, tt := range tests {
		got, err := db.FindPoliticianByName(ctx, tt.speaker)
		if err != nil {
			t.Fatalf("FindPoliticianByName(%q): %v", tt.speaker, err)
		}
		if tt.want && (got == nil || *got != id) {
			t.Errorf("FindPoliticianByName(%q) = %v, want %d", tt.speaker, got, id)
		}
		if !tt.want && got != nil {
			t.Errorf("FindPoliticianByName(%q) = %d, want nil", tt.speaker, *got)
		}
	}
}

func TestEnsureMembershipIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	id, _, _ := db.UpsertPolitician(ctx, PoliticianInput{UUID: "p-1", FullName: "A B"})

	m := Membership{FactionUUID: "f-1", FactionName: "Fraktsioon"}
	created, err := db.EnsureMembership(ctx, id, m)
	if err != nil || !created {
		t.Fatalf("expected first membership to be created, got created=%v err=%v", created, err)
	}
	created, err = db.EnsureMembership(ctx, id, m)
	if err != nil || created {
		t.Errorf("expected nil start date to dedupe, got created=%v err=%v", created, err)
	}
	m.StartDate = ptr("2023-04-10")
	created, err = db.EnsureMembership(ctx, id, m)
	if err != nil || !created {
		t.Errorf("expected dated membership to be new, got created=%v err=%v", created, err)
	}
}

func TestGetOrCreateSession(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	key := SessionKey{Membership: 15, PlenarySession: 3, Date: t0}

	id, created, err := db.GetOrCreateSession(ctx, key, "Esimene", false)
	if err != nil || !created {
		t.Fatalf("expected creation, got created=%v err=%v", created, err)
	}
	again, created, err := db.GetOrCreateSession(ctx, key, "Teine", true)
	if err != nil || created || again != id {
		t.Fatalf("expected existing session %d, got %d created=%v err=%v", id, again, created, err)
	}
	s, err := db.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.Title != "Esimene" || s.Edited {
		t.Errorf("expected title and edited to be kept from creation, got %q edited=%v", s.Title, s.Edited)
	}
	if !s.Date.Equal(t0) {
		t.Errorf("expected date %v, got %v", t0, s.Date)
	}
}

func TestInsertSpeechDuplicate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, agendaID := seedAgenda(t, db, "a-1", t0)

	id := seedSpeech(t, db, agendaID, "s-1", t0, nil, false)
	again, created, err := db.InsertSpeech(ctx, SpeechInput{
		UUID: "s-1", AgendaItemID: agendaID, EventType: EventSpeech, Date: t0, Speaker: "X", Text: "other",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created || again != id {
		t.Errorf("expected existing speech %d, got %d created=%v", id, again, created)
	}

	sp, err := db.GetSpeechByUUID(ctx, "s-1")
	if err != nil {
		t.Fatalf("GetSpeechByUUID: %v", err)
	}
	if sp.Text != "Tekst" {
		t.Errorf("expected original text to be kept, got %q", sp.Text)
	}
}

func TestSpeechTimesForAgenda(t *testing.T) {
	db := openTestDB(t)
	_, agendaID := seedAgenda(t, db, "a-1", t0)
	seedSpeech(t, db, agendaID, "s-2", t0.Add(90*time.Second), nil, false)
	seedSpeech(t, db, agendaID, "s-1", t0, nil, false)

	times, err := db.SpeechTimesForAgenda(context.Background(), agendaID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(times) != 2 || !times[0].Equal(t0) || !times[1].Equal(t0.Add(90*time.Second)) {
		t.Errorf("unexpected times %v", times)
	}
}

func TestDeleteIncompleteSpeeches(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	mari, _, err := db.UpsertPolitician(ctx, PoliticianInput{UUID: "p-1", FullName: "Mari Maasikas", Active: true})
	if err != nil {
		t.Fatalf("UpsertPolitician: %v", err)
	}
	jaan, _, err := db.UpsertPolitician(ctx, PoliticianInput{UUID: "p-2", FullName: "Jaan Tamm", Active: true})
	if err != nil {
		t.Fatalf("UpsertPolitician: %v", err)
	}
	_, agendaID := seedAgenda(t, db, "a-1", t0)
	seedSpeech(t, db, agendaID, "s-1", t0, &jaan, false)
	seedSpeech(t, db, agendaID, "s-2", t0.Add(time.Minute), &mari, true)

	from, to := DayBounds(t0, t0, time.UTC)
	purge, err := db.DeleteIncompleteSpeeches(ctx, from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purge.Deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", purge.Deleted)
	}
	if len(purge.AgendaItemIDs) != 1 || purge.AgendaItemIDs[0] != agendaID {
		t.Errorf("expected affected agenda %d, got %v", agendaID, purge.AgendaItemIDs)
	}
	if len(purge.PoliticianIDs) != 1 || purge.PoliticianIDs[0] != mari {
		t.Errorf("expected only speaker %d to be affected, got %v", mari, purge.PoliticianIDs)
	}

	// Outside the window nothing is touched.
	seedSpeech(t, db, agendaID, "s-3", t0.Add(2*time.Minute), nil, true)
	next := t0.AddDate(0, 0, 1)
	from, to = DayBounds(next, next, time.UTC)
	purge, err = db.DeleteIncompleteSpeeches(ctx, from, to)
	if err != nil || purge.Deleted != 0 {
		t.Errorf("expected nothing deleted outside range, got %d err=%v", purge.Deleted, err)
	}
}

func TestFlagRowsAndMirror(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sessionID, agendaID := seedAgenda(t, db, "a-1", t0)
	seedSpeech(t, db, agendaID, "s-1", t0, nil, true)
	summaryID, err := db.SaveAgendaSummary(ctx, agendaID, "kokkuvõte")
	if err != nil {
		t.Fatalf("SaveAgendaSummary: %v", err)
	}

	rows, err := db.FlagRows(ctx, EntityAgenda, []int64{agendaID})
	if err != nil {
		t.Fatalf("FlagRows: %v", err)
	}
	if len(rows) != 1 || rows[0].Stored || !rows[0].Computed {
		t.Fatalf("expected stored=false computed=true, got %+v", rows)
	}

	rows, err = db.FlagRows(ctx, EntityPlenary, []int64{sessionID})
	if err != nil {
		t.Fatalf("FlagRows plenary: %v", err)
	}
	if len(rows) != 1 || !rows[0].Computed {
		t.Errorf("expected session computed=true, got %+v", rows)
	}

	changed, err := db.MirrorAgendaFlag(ctx, agendaID, true)
	if err != nil {
		t.Fatalf("MirrorAgendaFlag: %v", err)
	}
	if changed[EntitySummary] != 1 {
		t.Errorf("expected summary to change, got %v", changed)
	}
	v, err := db.GetFlag(ctx, EntitySummary, summaryID)
	if err != nil || !v {
		t.Errorf("expected summary flag true, got %v err=%v", v, err)
	}

	changed, _ = db.MirrorAgendaFlag(ctx, agendaID, true)
	if changed[EntitySummary] != 0 {
		t.Errorf("expected mirror to be a no-op the second time, got %v", changed)
	}

	if _, err := db.FlagRows(ctx, EntitySpeech, []int64{1}); !errors.Is(err, ErrUnsupportedSelection) {
		t.Errorf("expected ErrUnsupportedSelection for speech flag rows, got %v", err)
	}
}

func TestSetAgendaTotalOnlyWritesChanges(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, agendaID := seedAgenda(t, db, "a-1", t0)

	changed, err := db.SetAgendaTotal(ctx, agendaID, nil)
	if err != nil || changed {
		t.Errorf("expected null over null to be a no-op, got changed=%v err=%v", changed, err)
	}
	changed, _ = db.SetAgendaTotal(ctx, agendaID, ptr(120))
	if !changed {
		t.Error("expected write of 120")
	}
	changed, _ = db.SetAgendaTotal(ctx, agendaID, ptr(120))
	if changed {
		t.Error("expected second write of 120 to be a no-op")
	}
	a, _ := db.GetAgendaItem(ctx, agendaID)
	if a.TotalTimeSeconds == nil || *a.TotalTimeSeconds != 120 {
		t.Errorf("expected total 120, got %v", a.TotalTimeSeconds)
	}
}

func TestSaveProfilePart(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	pid, _, _ := db.UpsertPolitician(ctx, PoliticianInput{UUID: "p-1", FullName: "A B"})

	period := profiling.Period{Type: profiling.PeriodMonth, Month: ptr("03.2024")}
	id, err := db.SaveProfilePart(ctx, pid, profiling.TopicExpertise, period, "first", false)
	if err != nil || id == 0 {
		t.Fatalf("SaveProfilePart: id=%d err=%v", id, err)
	}
	again, err := db.SaveProfilePart(ctx, pid, profiling.TopicExpertise, period, "second", false)
	if err != nil || again != id {
		t.Errorf("expected upsert onto %d, got %d err=%v", id, again, err)
	}

	n, err := db.CountProfileParts(ctx, pid)
	if err != nil || n != 1 {
		t.Errorf("expected 1 profile part, got %d err=%v", n, err)
	}

	bad := profiling.Period{Type: profiling.PeriodMonth, Year: ptr(2024)}
	if _, err := db.SaveProfilePart(ctx, pid, profiling.TopicExpertise, bad, "x", false); !errors.Is(err, profiling.ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}

	part, err := db.GetProfilePart(ctx, id)
	if err != nil || part == nil {
		t.Fatalf("GetProfilePart: %v", err)
	}
	if err := part.Period().Validate(); err != nil {
		t.Errorf("expected stored period to validate: %v", err)
	}
}

func TestResolveSelection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sessionID, agendaID := seedAgenda(t, db, "a-1", t0)
	s1 := seedSpeech(t, db, agendaID, "s-1", t0, nil, false)
	s2 := seedSpeech(t, db, agendaID, "s-2", t0.Add(time.Hour), nil, false)

	ids, err := db.ResolveSelection(ctx, EntitySpeech, ByParent(agendaID))
	if err != nil || len(ids) != 2 {
		t.Fatalf("expected 2 speeches by parent, got %v err=%v", ids, err)
	}
	ids, _ = db.ResolveSelection(ctx, EntitySpeech, ByDateRange(t0.Add(time.Minute), t0.Add(2*time.Hour)))
	if len(ids) != 1 || ids[0] != s2 {
		t.Errorf("expected only %d in date range, got %v", s2, ids)
	}
	ids, _ = db.ResolveSelection(ctx, EntitySpeech, ByID(s1))
	if len(ids) != 1 || ids[0] != s1 {
		t.Errorf("expected %d by id, got %v", s1, ids)
	}
	ids, _ = db.ResolveSelection(ctx, EntityAgenda, ByParent(sessionID))
	if len(ids) != 1 || ids[0] != agendaID {
		t.Errorf("expected agenda %d under session, got %v", agendaID, ids)
	}

	if _, err := db.ResolveSelection(ctx, EntityPlenary, ByParent(1)); !errors.Is(err, ErrUnsupportedSelection) {
		t.Errorf("expected ErrUnsupportedSelection for plenary by parent, got %v", err)
	}
	if _, err := db.ResolveSelection(ctx, EntityProfile, ByDateRange(t0, t0)); !errors.Is(err, ErrUnsupportedSelection) {
		t.Errorf("expected ErrUnsupportedSelection for profile by date, got %v", err)
	}

	if ByParent(1).Applies(EntityPlenary) || ByDateRange(t0, t0).Applies(EntityProfile) {
		t.Error("expected unsupported kinds not to apply")
	}
	if !ByDateRange(t0, t0).Applies(EntitySpeech) || !All().Applies(EntityProfile) {
		t.Error("expected supported kinds to apply")
	}
	if !ByID(1).Scoped() || !ByParent(1).Scoped() || ByDateRange(t0, t0).Scoped() || All().Scoped() {
		t.Error("unexpected Scoped results")
	}
}

func TestInRollbackTxDiscardsWrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.InRollbackTx(ctx, func(s *Store) error {
		_, _, err := s.UpsertPolitician(ctx, PoliticianInput{UUID: "p-1", FullName: "A B"})
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ := db.GetPoliticianByUUID(ctx, "p-1")
	if p != nil {
		t.Error("expected rolled back politician to be absent")
	}

	err = db.InTx(ctx, func(s *Store) error {
		_, _, err := s.UpsertPolitician(ctx, PoliticianInput{UUID: "p-1", FullName: "A B"})
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ = db.GetPoliticianByUUID(ctx, "p-1")
	if p == nil {
		t.Error("expected committed politician to exist")
	}
}

func TestParseErrors(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.InsertParseErrors(ctx, []ParseErrorInput{
		{ErrorType: "MISSING_DATA", ErrorMessage: "a", EntityType: ptr("session"), Year: ptr(2024)},
		{ErrorType: "DATA_PARSING", ErrorMessage: "b", EntityType: ptr("speech"), Year: ptr(2024)},
		{ErrorType: "MISSING_DATA", ErrorMessage: "c", Year: ptr(2023)},
	})
	if err != nil {
		t.Fatalf("InsertParseErrors: %v", err)
	}

	got, err := db.ListParseErrors(ctx, ParseErrorFilter{Year: 2024, ErrorType: "MISSING_DATA"})
	if err != nil {
		t.Fatalf("ListParseErrors: %v", err)
	}
	if len(got) != 1 || got[0].ErrorMessage != "a" {
		t.Errorf("expected entry a, got %+v", got)
	}

	counts, err := db.ParseErrorCountsByYear(ctx)
	if err != nil || len(counts) != 2 || counts[0] != (YearCount{Year: 2024, Count: 2}) {
		t.Errorf("unexpected counts %+v err=%v", counts, err)
	}

	n, err := db.DeleteParseErrorsForYear(ctx, 2024)
	if err != nil || n != 2 {
		t.Errorf("expected 2 deleted, got %d err=%v", n, err)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	pid, _, _ := db.UpsertPolitician(ctx, PoliticianInput{UUID: "p-1", FullName: "A B", Active: true})
	_, agendaID := seedAgenda(t, db, "a-1", t0)
	seedSpeech(t, db, agendaID, "s-1", t0, &pid, false)
	seedSpeech(t, db, agendaID, "s-2", t0.Add(time.Minute), nil, true)

	st, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st.Politicians != 1 || st.ActivePoliticians != 1 {
		t.Errorf("politicians = %d/%d, want 1/1", st.Politicians, st.ActivePoliticians)
	}
	if st.Speeches != 2 || st.IncompleteSpeeches != 1 || st.UnattributedSpeeches != 1 {
		t.Errorf("speeches = %d/%d/%d, want 2/1/1", st.Speeches, st.IncompleteSpeeches, st.UnattributedSpeeches)
	}
}

func TestBounds(t *testing.T) {
	tallinn, err := time.LoadLocation("Europe/Tallinn")
	if err != nil {
		t.Skipf("zone data unavailable: %v", err)
	}
	from, to := MonthBounds(time.March, 2024, tallinn)
	if !from.Equal(time.Date(2024, 2, 29, 22, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected month start %v", from.UTC())
	}
	if !to.Equal(time.Date(2024, 3, 31, 21, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected month end %v", to.UTC())
	}
	if got := MakeRunID(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)); got != "2024-03-01_to_2024-03-31" {
		t.Errorf("MakeRunID = %q", got)
	}
}
