package database

import "time"

// Event types carried by transcript events. Only EventSpeech rows are stored.
const (
	EventSpeech        = "SPEECH"
	EventVotingResult  = "VOTING_RESULT"
	EventPresenceCheck = "PRESENCE_CHECK"
	EventSessionEnd    = "SESSION_END"
)

// Politician is a member of parliament.
type Politician struct {
	ID                      int64
	UUID                    string
	FirstName               string
	LastName                string
	FullName                string
	Active                  bool
	Email                   *string
	Phone                   *string
	Gender                  *string
	DateOfBirth             *string // YYYY-MM-DD
	ParliamentSeniority     *float64
	TotalTimeSeconds        *int
	ProfilesRequired        int
	ProfilesAlreadyProfiled int
}

// PoliticianInput is the full set of roster fields written on upsert.
type PoliticianInput struct {
	UUID                string
	FirstName           string
	LastName            string
	FullName            string
	Active              bool
	Email               *string
	Phone               *string
	Gender              *string
	DateOfBirth         *string
	ParliamentSeniority *float64
}

// Membership links a politician to a faction. A nil StartDate means the
// roster did not say when it began.
type Membership struct {
	FactionUUID string
	FactionName string
	StartDate   *string
	EndDate     *string
}

// SessionKey is the natural identity of a plenary session.
type SessionKey struct {
	Membership     int
	PlenarySession int
	Date           time.Time
}

type PlenarySession struct {
	ID             int64
	Membership     int
	PlenarySession int
	Date           time.Time
	Title          string
	Edited         bool
	IsIncomplete   bool
}

type AgendaItem struct {
	ID               int64
	UUID             string
	PlenarySessionID int64
	Date             time.Time
	Title            string
	TotalTimeSeconds *int
	IsIncomplete     bool
}

// Speech is a stored transcript event.
type Speech struct {
	ID           int64
	UUID         string
	AgendaItemID int64
	PoliticianID *int64
	EventType    string
	Date         time.Time
	Speaker      string
	Text         string
	Link         *string
	IsIncomplete bool
}

// SpeechInput is a new speech row. UUID is the content fingerprint.
type SpeechInput struct {
	UUID         string
	AgendaItemID int64
	PoliticianID *int64
	EventType    string
	Date         time.Time
	Speaker      string
	Text         string
	Link         *string
	IsIncomplete bool
	ParsedAt     time.Time
}

// SpeechRef locates a politician's speech in the agenda tree.
type SpeechRef struct {
	AgendaItemID     int64
	PlenarySessionID int64
	Date             time.Time
}

// ProfilePart is one profiled slice of a politician's activity. Exactly one
// of the period identifiers matches PeriodType; ALL has none.
type ProfilePart struct {
	ID               int64
	PoliticianID     int64
	Category         string
	PeriodType       string
	AgendaItemID     *int64
	PlenarySessionID *int64
	Month            *string
	Year             *int
	IsIncomplete     bool
}

// ParseError is an entry in the ingestion audit log.
type ParseError struct {
	ID           int64
	ErrorType    string
	ErrorMessage string
	ErrorDetails *string
	EntityType   *string
	EntityID     *string
	EntityName   *string
	Year         *int
	CreatedAt    *string
}

// FlagRow pairs a stored incompleteness flag with the value recomputed
// from the speeches beneath it.
type FlagRow struct {
	ID       int64
	Stored   bool
	Computed bool
}

// SpeechFlagRow is a speech's stored flag and the text it is derived from.
type SpeechFlagRow struct {
	ID     int64
	Stored bool
	Text   string
}

// Stats contains aggregate corpus statistics.
type Stats struct {
	Politicians          int
	ActivePoliticians    int
	Factions             int
	Sessions             int
	IncompleteSessions   int
	AgendaItems          int
	IncompleteAgendas    int
	Speeches             int
	IncompleteSpeeches   int
	UnattributedSpeeches int
	ProfileParts         int
	ParseErrors          int
}
