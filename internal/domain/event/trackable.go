package event

// Trackable is the unit forwarded to the rewards ledger.
//
// [IDENTITY] UserID and EventType are always set. DedupeKey, when non-empty,
// is stable across redeliveries of the same occurrence so the ledger can
// suppress duplicates; an empty key means every submission is a new occurrence.
type Trackable struct {
	UserID    string         `json:"userId"`
	DedupeKey string         `json:"dedupeKey,omitempty"`
	EventType string         `json:"eventType"`
	Payload   map[string]any `json:"payload"`
}

// HasDedupeKey reports whether the ledger's track-once operation applies.
func (t Trackable) HasDedupeKey() bool {
	return t.DedupeKey != ""
}
