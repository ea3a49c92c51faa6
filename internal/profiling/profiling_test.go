package profiling

import (
	"errors"
	"testing"
	"time"
)

func i64(v int64) *int64 { return &v }
func str(s string) *string { return &s }
func num(v int) *int { return &v }

func TestCategories(t *testing.T) {
	cats := Categories()
	if len(cats) != 10 {
		t.Fatalf("expected 10 categories, got %d", len(cats))
	}
	cats[0] = "MUTATED"
	if Categories()[0] != PoliticalPosition {
		t.Error("Categories must return a copy")
	}
	if !EconomicViews.Valid() || Category("WEATHER").Valid() {
		t.Error("Valid mismatch")
	}
}

func TestPeriodValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Period
		ok   bool
	}{
		{"agenda", Period{Type: PeriodAgenda, AgendaItemID: i64(1)}, true},
		{"session", Period{Type: PeriodSession, PlenarySessionID: i64(2)}, true},
		{"month", Period{Type: PeriodMonth, Month: str("03.2024")}, true},
		{"year", Period{Type: PeriodYear, Year: num(2024)}, true},
		{"all", Period{Type: PeriodAll}, true},
		{"agenda missing id", Period{Type: PeriodAgenda}, false},
		{"agenda with year", Period{Type: PeriodAgenda, AgendaItemID: i64(1), Year: num(2024)}, false},
		{"all with month", Period{Type: PeriodAll, Month: str("03.2024")}, false},
		{"bad month", Period{Type: PeriodMonth, Month: str("2024-03")}, false},
		{"month 13", Period{Type: PeriodMonth, Month: str("13.2024")}, false},
		{"unknown type", Period{Type: "WEEK"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidPeriod) {
					t.Errorf("expected ErrInvalidPeriod, got %v", err)
				}
			}
		})
	}
}

func TestPeriodValidateReportsFirstProblem(t *testing.T) {
	p := Period{Type: PeriodYear, AgendaItemID: i64(1), Month: str("03.2024")}
	want := "invalid profile period: YEAR period must not set the AGENDA identifier"
	for i := 0; i < 20; i++ {
		if err := p.Validate(); err == nil || err.Error() != want {
			t.Fatalf("run %d: expected %q, got %v", i, want, err)
		}
	}
}

func TestMonthKeyRoundTrip(t *testing.T) {
	key := MonthKey(time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC))
	if key != "03.2024" {
		t.Fatalf("got %q", key)
	}
	m, y, err := ParseMonth(key)
	if err != nil || m != time.March || y != 2024 {
		t.Errorf("ParseMonth = (%v, %d, %v)", m, y, err)
	}
}

func TestInventoryRequired(t *testing.T) {
	inv := NewInventory()
	if inv.Required() != 0 {
		t.Errorf("empty inventory should require 0, got %d", inv.Required())
	}

	jan := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	inv.Add(1, 100, jan)
	inv.Add(1, 100, jan.Add(time.Minute))
	inv.Add(2, 100, jan.Add(time.Hour))
	inv.Add(3, 101, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC))
	inv.Add(4, 102, time.Date(2023, 12, 20, 10, 0, 0, 0, time.UTC))

	// 4 agendas + 3 sessions + 3 months + 2 years + 1 = 13 per category
	if got := inv.Required(); got != 130 {
		t.Errorf("Required = %d, want 130", got)
	}
}
