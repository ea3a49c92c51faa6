package riigikogu

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second, time.Second, time.UTC)
}

func TestPoliticiansList(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/plenary-members" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[{"uuid":"p-1","fullName":"Mari Maasikas","parliamentSeniority":730.5,
			"factions":[{"uuid":"f-1","name":"Fraktsioon","startDate":"2023-04-10"}]},
			{"uuid":"p-2","fullName":"Jaan Tamm","active":false}]`))
	})

	members, err := c.Politicians(context.Background())
	if err != nil {
		t.Fatalf("Politicians: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if !members[0].IsActive() || members[1].IsActive() {
		t.Errorf("unexpected active flags %v %v", members[0].IsActive(), members[1].IsActive())
	}
	if members[0].Seniority == nil || *members[0].Seniority != 730.5 {
		t.Errorf("unexpected seniority %v", members[0].Seniority)
	}
	if len(members[0].Factions) != 1 || members[0].Factions[0].StartDate != "2023-04-10" {
		t.Errorf("unexpected factions %+v", members[0].Factions)
	}
}

func TestVerbatimsDataWrapper(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("startDate") != "2024-03-01" || q.Get("endDate") != "2024-03-31" || q.Get("type") != "IS" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"data":[{"title":"Istung","date":"2024-03-05T10:00:00.000+02:00",
			"membership":15,"plenarySession":3,"agendaItems":[{"agendaItemUuid":"a-1",
			"events":[{"type":"SPEECH","speaker":"Mari","text":"Tere"},{"speaker":"Jaan","text":"x"}]}]}]}`))
	})

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	vs, err := c.Verbatims(context.Background(), start, end)
	if err != nil {
		t.Fatalf("Verbatims: %v", err)
	}
	if len(vs) != 1 || *vs[0].Membership != 15 || *vs[0].PlenarySession != 3 {
		t.Fatalf("unexpected verbatims %+v", vs)
	}
	events := vs[0].AgendaItems[0].Events
	if events[0].EventType() != "SPEECH" || events[1].EventType() != "SPEECH" {
		t.Errorf("expected missing type to default to SPEECH")
	}
}

func TestVerbatimsNullData(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null}`))
	})
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	vs, err := c.Verbatims(context.Background(), day, day)
	if err != nil {
		t.Fatalf("expected null data to decode as empty, got %v", err)
	}
	if len(vs) != 0 {
		t.Errorf("expected no verbatims, got %d", len(vs))
	}
}

func TestUnexpectedShapes(t *testing.T) {
	for _, body := range []string{`{"items":[]}`, `{"data":{}}`, `"nope"`, ``} {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		if _, err := c.Politicians(context.Background()); !errors.Is(err, ErrUnexpectedResponse) {
			t.Errorf("body %q: expected ErrUnexpectedResponse, got %v", body, err)
		}
	}
}

func TestHTTPError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	_, err := c.Politicians(context.Background())
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected HTTPError 502, got %v", err)
	}
}

func TestParseTime(t *testing.T) {
	tallinn, err := time.LoadLocation("Europe/Tallinn")
	if err != nil {
		t.Skipf("zone data unavailable: %v", err)
	}
	c := NewClient("http://example.invalid", 0, 0, tallinn)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05T10:00:00.000+02:00", time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)},
		{"2024-03-05T10:00:00Z", time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)},
		{"2024-03-05 10:00:00", time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := c.ParseTime(tt.in)
		if err != nil {
			t.Errorf("ParseTime(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got.UTC(), tt.want)
		}
	}

	if _, err := c.ParseTime("not a date"); err == nil {
		t.Error("expected error for garbage")
	}
	if _, err := c.ParseTime(""); err == nil {
		t.Error("expected error for empty string")
	}
	if d, err := c.ParseDate("1970-06-01"); err != nil || d != "1970-06-01" {
		t.Errorf("ParseDate = %q, %v", d, err)
	}
}
