// Package profiling describes the slices a politician's activity is profiled
// in and how many of them a politician needs.
package profiling

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid profile period")

type Category string

const (
	PoliticalPosition  Category = "POLITICAL_POSITION"
	TopicExpertise     Category = "TOPIC_EXPERTISE"
	RhetoricalStyle    Category = "RHETORICAL_STYLE"
	ActivityPatterns   Category = "ACTIVITY_PATTERNS"
	OppositionStance   Category = "OPPOSITION_STANCE"
	CollaborationStyle Category = "COLLABORATION_STYLE"
	RegionalFocus      Category = "REGIONAL_FOCUS"
	EconomicViews      Category = "ECONOMIC_VIEWS"
	SocialIssues       Category = "SOCIAL_ISSUES"
	LegislativeFocus   Category = "LEGISLATIVE_FOCUS"
)

var categories = []Category{
	PoliticalPosition, TopicExpertise, RhetoricalStyle, ActivityPatterns, OppositionStance,
	CollaborationStyle, RegionalFocus, EconomicViews, SocialIssues, LegislativeFocus,
}

// Categories returns the profile categories in canonical order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

func (c Category) Valid() bool {
	for _, k := range categories {
		if k == c {
			return true
		}
	}
	return false
}

type PeriodType string

const (
	PeriodAgenda  PeriodType = "AGENDA"
	PeriodSession PeriodType = "PLENARY_SESSION"
	PeriodMonth   PeriodType = "MONTH"
	PeriodYear    PeriodType = "YEAR"
	PeriodAll     PeriodType = "ALL"
)

// Period scopes a profile part. Exactly the field matching Type is set;
// ALL sets none.
type Period struct {
	Type             PeriodType
	AgendaItemID     *int64
	PlenarySessionID *int64
	Month            *string // MM.YYYY
	Year             *int
}

func (p Period) Validate() error {
	set := []struct {
		typ PeriodType
		has bool
	}{
		{PeriodAgenda, p.AgendaItemID != nil},
		{PeriodSession, p.PlenarySessionID != nil},
		{PeriodMonth, p.Month != nil},
		{PeriodYear, p.Year != nil},
	}

	switch p.Type {
	case PeriodAgenda, PeriodSession, PeriodMonth, PeriodYear, PeriodAll:
	default:
		return fmt.Errorf("%w: unknown period type %q", ErrInvalidPeriod, p.Type)
	}

	for _, f := range set {
		if f.typ == p.Type && !f.has {
			return fmt.Errorf("%w: %s period requires its identifier", ErrInvalidPeriod, p.Type)
		}
		if f.typ != p.Type && f.has {
			return fmt.Errorf("%w: %s period must not set the %s identifier", ErrInvalidPeriod, p.Type, f.typ)
		}
	}

	if p.Month != nil {
		if _, _, err := ParseMonth(*p.Month); err != nil {
			return err
		}
	}
	return nil
}

// MonthKey formats the month of t as MM.YYYY.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%02d.%d", int(t.Month()), t.Year())
}

// ParseMonth splits an MM.YYYY key.
func ParseMonth(s string) (time.Month, int, error) {
	mm, yyyy, ok := strings.Cut(s, ".")
	if !ok || len(mm) != 2 {
		return 0, 0, fmt.Errorf("%w: month %q is not MM.YYYY", ErrInvalidPeriod, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("%w: month %q is not MM.YYYY", ErrInvalidPeriod, s)
	}
	y, err := strconv.Atoi(yyyy)
	if err != nil || len(yyyy) != 4 {
		return 0, 0, fmt.Errorf("%w: month %q is not MM.YYYY", ErrInvalidPeriod, s)
	}
	return time.Month(m), y, nil
}

// Inventory collects the distinct periods a politician has spoken in.
type Inventory struct {
	agendas  map[int64]struct{}
	sessions map[int64]struct{}
	months   map[string]struct{}
	years    map[int]struct{}
}

func NewInventory() *Inventory {
	return &Inventory{
		agendas:  make(map[int64]struct{}),
		sessions: make(map[int64]struct{}),
		months:   make(map[string]struct{}),
		years:    make(map[int]struct{}),
	}
}

// Add records one speech. at must already be in the corpus time zone.
func (inv *Inventory) Add(agendaID, sessionID int64, at time.Time) {
	inv.agendas[agendaID] = struct{}{}
	inv.sessions[sessionID] = struct{}{}
	inv.months[MonthKey(at)] = struct{}{}
	inv.years[at.Year()] = struct{}{}
}

func (inv *Inventory) Empty() bool { return len(inv.agendas) == 0 }

// Required is the number of profile parts needed: one per distinct agenda,
// session, month and year plus one all-time part, for every category.
func (inv *Inventory) Required() int {
	if inv.Empty() {
		return 0
	}
	perCategory := len(inv.agendas) + len(inv.sessions) + len(inv.months) + len(inv.years) + 1
	return perCategory * len(categories)
}
