// Package fingerprint derives stable speech identities from content.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// SpeechID returns the identity of a speech event. The upstream event ids
// change when a placeholder transcript is replaced, so the id is derived
// from the agenda item, timestamp, speaker and normalized text instead.
// Inputs must already be cleaned.
func SpeechID(agendaUUID string, at time.Time, speaker, text string) string {
	name := agendaUUID + "_" + ISOFormat(at) + "_" + speaker + "_" + text
	sum := sha256.Sum256([]byte(name))
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(hex.EncodeToString(sum[:]))).String()
}

// ISOFormat renders t as YYYY-MM-DDTHH:MM:SS[.ffffff]+HH:MM. Fractional
// seconds appear only when present.
func ISOFormat(t time.Time) string {
	if t.Nanosecond()/1000 != 0 {
		return t.Format("2006-01-02T15:04:05.000000-07:00")
	}
	return t.Format("2006-01-02T15:04:05-07:00")
}
