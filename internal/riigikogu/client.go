// Package riigikogu is a client for the Riigikogu open data API.
package riigikogu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrUnexpectedResponse is returned when a body is neither a JSON list nor
// an object with a "data" list.
var ErrUnexpectedResponse = errors.New("unexpected response format")

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

const (
	DefaultTimeout         = 30 * time.Second
	DefaultVerbatimTimeout = 60 * time.Second
)

// Client fetches the member roster and plenary transcripts.
type Client struct {
	baseURL         string
	userAgent       string
	loc             *time.Location
	client          *http.Client
	verbatimsClient *http.Client
}

// NewClient creates a client. Zero timeouts fall back to the defaults; loc
// is the zone timestamps without an offset are read in.
func NewClient(baseURL string, timeout, verbatimTimeout time.Duration, loc *time.Location) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if verbatimTimeout <= 0 {
		verbatimTimeout = DefaultVerbatimTimeout
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		userAgent:       "parlcorpus/1.0",
		loc:             loc,
		client:          &http.Client{Timeout: timeout},
		verbatimsClient: &http.Client{Timeout: verbatimTimeout},
	}
}

// SetUserAgent overrides the User-Agent header.
func (c *Client) SetUserAgent(ua string) {
	if ua != "" {
		c.userAgent = ua
	}
}

// Member is an entry of the plenary member roster. Dates are kept as the
// API sent them; see ParseDate.
type Member struct {
	UUID        string    `json:"uuid"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	FullName    string    `json:"fullName"`
	Active      *bool     `json:"active"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Gender      string    `json:"gender"`
	DateOfBirth string    `json:"dateOfBirth"`
	Seniority   *float64  `json:"parliamentSeniority"` // days
	Factions    []Faction `json:"factions"`
}

// IsActive treats a missing flag as active.
func (m Member) IsActive() bool {
	return m.Active == nil || *m.Active
}

type Faction struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Verbatim is the transcript of one plenary session.
type Verbatim struct {
	UUID           string       `json:"uuid"`
	Title          string       `json:"title"`
	Date           string       `json:"date"`
	Membership     *int         `json:"membership"`
	PlenarySession *int         `json:"plenarySession"`
	Edited         bool         `json:"edited"`
	AgendaItems    []AgendaItem `json:"agendaItems"`
}

type AgendaItem struct {
	UUID   string  `json:"agendaItemUuid"`
	Title  string  `json:"title"`
	Date   string  `json:"date"`
	Events []Event `json:"events"`
}

// Event is one transcript event. Type is SPEECH, VOTING_RESULT,
// PRESENCE_CHECK or SESSION_END.
type Event struct {
	UUID    string `json:"uuid"`
	Type    string `json:"type"`
	Date    string `json:"date"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Link    string `json:"link"`
}

// EventType returns the event's type, defaulting to SPEECH.
func (e Event) EventType() string {
	if e.Type == "" {
		return "SPEECH"
	}
	return e.Type
}

// Politicians fetches the plenary member roster.
func (c *Client) Politicians(ctx context.Context) ([]Member, error) {
	var members []Member
	if err := c.getList(ctx, c.client, "/api/plenary-members", nil, &members); err != nil {
		return nil, fmt.Errorf("fetching politicians: %w", err)
	}
	return members, nil
}

// Verbatims fetches plenary session transcripts dated from start through end.
func (c *Client) Verbatims(ctx context.Context, start, end time.Time) ([]Verbatim, error) {
	params := url.Values{
		"startDate": {start.Format("2006-01-02")},
		"endDate":   {end.Format("2006-01-02")},
		"type":      {"IS"},
	}
	var verbatims []Verbatim
	if err := c.getList(ctx, c.verbatimsClient, "/api/steno/verbatims", params, &verbatims); err != nil {
		return nil, fmt.Errorf("fetching verbatims: %w", err)
	}
	return verbatims, nil
}

func (c *Client) getList(ctx context.Context, hc *http.Client, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode, URL: u}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	return decodeList(body, out)
}

// decodeList accepts a bare JSON list or {"data": [...]}.
func decodeList(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ErrUnexpectedResponse
	}
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, out); err != nil {
			return fmt.Errorf("decoding list: %w", err)
		}
		return nil
	case '{':
		var wrapper struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return fmt.Errorf("decoding object: %w", err)
		}
		data := bytes.TrimSpace(wrapper.Data)
		if bytes.Equal(data, []byte("null")) {
			// Empty sessions come back as {"data": null}.
			return nil
		}
		if len(data) == 0 || data[0] != '[' {
			return ErrUnexpectedResponse
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding data: %w", err)
		}
		return nil
	default:
		return ErrUnexpectedResponse
	}
}

// ParseTime reads an API timestamp. Values without an offset are taken in
// the client's zone.
func (c *Client) ParseTime(s string) (time.Time, error) {
	return ParseTimeIn(s, c.loc)
}

// ParseDate reads an API date and returns it as YYYY-MM-DD.
func (c *Client) ParseDate(s string) (string, error) {
	return ParseDateIn(s, c.loc)
}

// ParseTimeIn reads an API timestamp, taking values without an offset in
// loc.
func ParseTimeIn(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// ParseDateIn reads an API date and returns it as YYYY-MM-DD.
func ParseDateIn(s string, loc *time.Location) (string, error) {
	t, err := ParseTimeIn(s, loc)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}

// Location returns the zone used for timestamps without an offset.
func (c *Client) Location() *time.Location {
	return c.loc
}
