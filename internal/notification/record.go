package notification

import (
	"encoding/json"
	"errors"
	"time"
)

// Origin tags where a record was observed. It drives reconciliation only and
// is never exposed to the UI.
type Origin int

const (
	// OriginFetched marks records from a full snapshot fetch.
	OriginFetched Origin = iota
	// OriginPushed marks records delivered over the live topic.
	OriginPushed
	// OriginLocal marks provisional records created by the agent before any
	// server confirmation.
	OriginLocal
)

// Record is a single inbox entry.
type Record struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Payload is the wire shape shared by the snapshot endpoint and the push
// topic. Server ids are numeric; the agent keeps them opaque strings.
type Payload struct {
	ID        json.Number `json:"id"`
	Message   string      `json:"message"`
	Read      bool        `json:"read"`
	CreatedAt string      `json:"createdAt"`
}

// ErrMissingID is returned for payloads without a usable id.
var ErrMissingID = errors.New("notification: payload missing id")

// Record converts a wire payload into a Record. The backend serializes
// createdAt without a zone offset, so parsing falls back accordingly; an
// unparseable timestamp yields the zero time rather than an error since
// CreatedAt is display-only.
func (p Payload) Record() (Record, error) {
	id := p.ID.String()
	if id == "" {
		return Record{}, ErrMissingID
	}
	return Record{
		ID:        id,
		Message:   p.Message,
		Read:      p.Read,
		CreatedAt: parseTimestamp(p.CreatedAt),
	}, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999", // JPA LocalDateTime, no offset
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
