// Package errlog buffers ingestion problems and persists them to the
// parse_errors audit log.
package errlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/logger"
)

// Type classifies an audit log entry.
type Type string

const (
	APIConnection    Type = "API_CONNECTION"
	DataParsing      Type = "DATA_PARSING"
	MissingData      Type = "MISSING_DATA"
	MissingStenogram Type = "MISSING_STENOGRAM"
	Validation       Type = "VALIDATION"
	Database         Type = "DATABASE"
	PhotoDownload    Type = "PHOTO_DOWNLOAD"
	Other            Type = "OTHER"
)

var types = []Type{APIConnection, DataParsing, MissingData, MissingStenogram, Validation, Database, PhotoDownload, Other}

// ParseType accepts the stored spelling of a type.
func ParseType(s string) (Type, error) {
	for _, t := range types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown error type %q", s)
}

// Entry is one audit log record. Details is stored as JSON.
type Entry struct {
	Type       Type
	Message    string
	Details    map[string]any
	EntityType string
	EntityID   string
	EntityName string
}

// Writer persists entries. *database.Store implements it.
type Writer interface {
	InsertParseErrors(ctx context.Context, entries []database.ParseErrorInput) error
}

// Sink collects entries for one run. It is safe for concurrent use.
// Entries are held in memory until Flush so that they never compete with
// an open write transaction.
type Sink struct {
	mu       sync.Mutex
	year     int
	persist  bool
	buf      []Entry
	counts   map[Type]int
	observer func(Type)
	log      *slog.Logger
}

// NewSink returns a sink stamping entries with year. A sink that does not
// persist still counts entries; dry runs use it.
func NewSink(year int, persist bool) *Sink {
	return &Sink{
		year:    year,
		persist: persist,
		counts:  make(map[Type]int),
		log:     logger.WithComponent("errlog"),
	}
}

// Observe registers fn to be called for every logged entry.
func (s *Sink) Observe(fn func(Type)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Log records an entry.
func (s *Sink) Log(e Entry) {
	if e.Type == "" {
		e.Type = Other
	}
	s.log.Warn(e.Message, "type", e.Type, "entity_type", e.EntityType, "entity_id", e.EntityID)

	s.mu.Lock()
	s.counts[e.Type]++
	if s.persist {
		s.buf = append(s.buf, e)
	}
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(e.Type)
	}
}

// Flush writes buffered entries and empties the buffer. On failure the
// entries stay buffered.
func (s *Sink) Flush(ctx context.Context, w Writer) error {
	s.mu.Lock()
	pending := s.buf
	s.buf = nil
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	rows := make([]database.ParseErrorInput, 0, len(pending))
	for _, e := range pending {
		rows = append(rows, s.row(e))
	}
	if err := w.InsertParseErrors(ctx, rows); err != nil {
		s.mu.Lock()
		s.buf = append(pending, s.buf...)
		s.mu.Unlock()
		return fmt.Errorf("writing %d parse errors: %w", len(rows), err)
	}
	return nil
}

// Discard drops buffered entries without writing them. Counts are kept.
func (s *Sink) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}

// Pending returns the number of buffered entries.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Counts returns how many entries of each type were logged.
func (s *Sink) Counts() map[Type]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.counts)
}

// Total returns the number of entries logged.
func (s *Sink) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

func (s *Sink) row(e Entry) database.ParseErrorInput {
	year := s.year
	in := database.ParseErrorInput{
		ErrorType:    string(e.Type),
		ErrorMessage: e.Message,
		EntityType:   optional(e.EntityType),
		EntityID:     optional(e.EntityID),
		EntityName:   optional(e.EntityName),
		Year:         &year,
	}
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			b = []byte(fmt.Sprintf("%v", e.Details))
		}
		details := string(b)
		in.ErrorDetails = &details
	}
	return in
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
