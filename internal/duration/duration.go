// Package duration estimates elapsed and speaking time from transcript
// timestamps. Transcripts record when an utterance happened, not how long it
// lasted, so durations are inferred from the gaps between utterances.
package duration

import (
	"slices"
	"time"
)

const (
	// SingleSpeechEstimate is credited for a lone speech in an agenda item.
	SingleSpeechEstimate = 30 * time.Second
	// TrailingEstimate is credited for the last of several speeches, which
	// has no successor to bound it.
	TrailingEstimate = 30 * time.Second
	MinInterval      = 10 * time.Second
	MaxInterval      = 30 * time.Minute
)

// Event is one speech by a politician.
type Event struct {
	AgendaItemID int64
	At           time.Time
}

// AgendaTotal returns the whole seconds between the first and last speech.
// It needs at least two timestamps; ok is false otherwise.
func AgendaTotal(times []time.Time) (seconds int, ok bool) {
	if len(times) < 2 {
		return 0, false
	}
	first, last := times[0], times[0]
	for _, t := range times[1:] {
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	return int(last.Sub(first) / time.Second), true
}

// PoliticianTotal attributes speaking time to one politician. Speeches are
// grouped by agenda item; within a group every gap to the politician's next
// speech counts, clamped to [MinInterval, MaxInterval], and the last speech
// gets TrailingEstimate. ok is false when there are no events.
func PoliticianTotal(events []Event) (seconds int, ok bool) {
	if len(events) == 0 {
		return 0, false
	}

	groups := make(map[int64][]time.Time)
	for _, e := range events {
		groups[e.AgendaItemID] = append(groups[e.AgendaItemID], e.At)
	}

	var total time.Duration
	for _, times := range groups {
		total += groupTotal(times)
	}
	return int(total / time.Second), true
}

func groupTotal(times []time.Time) time.Duration {
	if len(times) == 1 {
		return SingleSpeechEstimate
	}
	sorted := slices.Clone(times)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })

	var total time.Duration
	for i := 0; i < len(sorted)-1; i++ {
		total += Clamp(sorted[i+1].Sub(sorted[i]))
	}
	return total + TrailingEstimate
}

// Clamp bounds a single speaking interval.
func Clamp(d time.Duration) time.Duration {
	return min(max(d, MinInterval), MaxInterval)
}
