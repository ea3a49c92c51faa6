package database

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrUnsupportedSelection = errors.New("unsupported selection")

// Entity names a record type carrying an incompleteness flag.
type Entity string

const (
	EntitySpeech   Entity = "speech"
	EntityPlenary  Entity = "plenary"
	EntityAgenda   Entity = "agenda"
	EntitySummary  Entity = "summary"
	EntityDecision Entity = "decision"
	EntityActive   Entity = "active"
	EntityProfile  Entity = "profile"
)

// FlagEntities lists the flagged entities in repair order.
var FlagEntities = []Entity{
	EntitySpeech, EntityPlenary, EntityAgenda, EntitySummary, EntityDecision, EntityActive, EntityProfile,
}

func ParseEntity(s string) (Entity, error) {
	for _, e := range FlagEntities {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

var flagTables = map[Entity]string{
	EntitySpeech:   "speeches",
	EntityPlenary:  "plenary_sessions",
	EntityAgenda:   "agenda_items",
	EntitySummary:  "agenda_summaries",
	EntityDecision: "agenda_decisions",
	EntityActive:   "agenda_active_politicians",
	EntityProfile:  "politician_profile_parts",
}

type SelectionKind int

const (
	SelectAll SelectionKind = iota
	SelectByID
	SelectByParent
	SelectByDateRange
)

// Selection says which records a job should visit. Build one with All,
// ByID, ByParent or ByDateRange.
type Selection struct {
	Kind     SelectionKind
	ID       int64
	From, To time.Time
}

func All() Selection { return Selection{Kind: SelectAll} }

func ByID(id int64) Selection { return Selection{Kind: SelectByID, ID: id} }

// ByParent selects children of parentID: agenda items of a session, speeches
// and derived records of an agenda item, profile parts of a politician.
func ByParent(parentID int64) Selection { return Selection{Kind: SelectByParent, ID: parentID} }

// ByDateRange selects records dated in [from, to).
func ByDateRange(from, to time.Time) Selection {
	return Selection{Kind: SelectByDateRange, From: from, To: to}
}

func (sel Selection) String() string {
	switch sel.Kind {
	case SelectByID:
		return fmt.Sprintf("id=%d", sel.ID)
	case SelectByParent:
		return fmt.Sprintf("parent=%d", sel.ID)
	case SelectByDateRange:
		return fmt.Sprintf("%s..%s", sel.From.Format(time.RFC3339), sel.To.Format(time.RFC3339))
	default:
		return "all"
	}
}

// selectionQuery describes how each entity is filtered. An empty clause
// means the selection kind does not apply to that entity.
type selectionQuery struct {
	base   string
	parent string
	date   string
}

var selectionQueries = map[Entity]selectionQuery{
	EntitySpeech: {
		base:   "SELECT t.id FROM speeches t WHERE t.event_type = 'SPEECH'",
		parent: "t.agenda_item_id = ?",
		date:   "t.date >= ? AND t.date < ?",
	},
	EntityPlenary: {
		base: "SELECT t.id FROM plenary_sessions t WHERE 1 = 1",
		date: "t.date >= ? AND t.date < ?",
	},
	EntityAgenda: {
		base:   "SELECT t.id FROM agenda_items t WHERE 1 = 1",
		parent: "t.plenary_session_id = ?",
		date:   "t.date >= ? AND t.date < ?",
	},
	EntitySummary: {
		base:   "SELECT t.id FROM agenda_summaries t JOIN agenda_items a ON a.id = t.agenda_item_id WHERE 1 = 1",
		parent: "t.agenda_item_id = ?",
		date:   "a.date >= ? AND a.date < ?",
	},
	EntityDecision: {
		base:   "SELECT t.id FROM agenda_decisions t JOIN agenda_items a ON a.id = t.agenda_item_id WHERE 1 = 1",
		parent: "t.agenda_item_id = ?",
		date:   "a.date >= ? AND a.date < ?",
	},
	EntityActive: {
		base:   "SELECT t.id FROM agenda_active_politicians t JOIN agenda_items a ON a.id = t.agenda_item_id WHERE 1 = 1",
		parent: "t.agenda_item_id = ?",
		date:   "a.date >= ? AND a.date < ?",
	},
	EntityProfile: {
		base:   "SELECT t.id FROM politician_profile_parts t WHERE 1 = 1",
		parent: "t.politician_id = ?",
	},
}

// Applies reports whether sel can filter entity e.
func (sel Selection) Applies(e Entity) bool {
	q, ok := selectionQueries[e]
	if !ok {
		return false
	}
	switch sel.Kind {
	case SelectByParent:
		return q.parent != ""
	case SelectByDateRange:
		return q.date != ""
	}
	return true
}

// Scoped reports whether the selection names rows of one table. IDs and
// parents mean different rows in every table, so these need an entity type.
func (sel Selection) Scoped() bool {
	return sel.Kind == SelectByID || sel.Kind == SelectByParent
}

// ResolveSelection turns a selection into the concrete IDs of entity e.
func (s *Store) ResolveSelection(ctx context.Context, e Entity, sel Selection) ([]int64, error) {
	q, ok := selectionQueries[e]
	if !ok {
		return nil, fmt.Errorf("%w: unknown entity %q", ErrUnsupportedSelection, e)
	}

	query := q.base
	var args []any
	switch sel.Kind {
	case SelectAll:
	case SelectByID:
		query += " AND t.id = ?"
		args = append(args, sel.ID)
	case SelectByParent:
		if q.parent == "" {
			return nil, fmt.Errorf("%w: %s has no parent", ErrUnsupportedSelection, e)
		}
		query += " AND " + q.parent
		args = append(args, sel.ID)
	case SelectByDateRange:
		if q.date == "" {
			return nil, fmt.Errorf("%w: %s cannot be selected by date", ErrUnsupportedSelection, e)
		}
		query += " AND " + q.date
		args = append(args, formatTime(sel.From), formatTime(sel.To))
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnsupportedSelection, sel.Kind)
	}
	return s.queryIDs(ctx, query+" ORDER BY t.id", args...)
}
