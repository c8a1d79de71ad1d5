package alerts

import "time"

// Review and liveness states carried by a match record. The first three are
// manual dispositions set only by a reviewer; the rest are written by the
// automatic takedown rechecker.
const (
	StatusNew    = "new"
	StatusAck    = "ack"
	StatusClosed = "closed"
	StatusUp     = "up"
	StatusGone   = "gone"
	StatusError  = "error"
)

// Note is one reviewer annotation on a match record.
type Note struct {
	Timestamp time.Time `json:"ts"`
	Text      string    `json:"text"`
}

// MatchRecord tracks one (site, image URL) match through discovery, review,
// and takedown monitoring. Records are created once and only transitioned,
// never deleted.
type MatchRecord struct {
	Status    string `json:"status"`
	Muted     bool   `json:"muted"`
	Notes     []Note `json:"notes"`
	SeenCount int    `json:"seen_count"`

	FirstSeenAt time.Time `json:"first_seen_utc"`
	LastSeenAt  time.Time `json:"last_seen_utc"`

	// Provenance from the most recent discovery.
	HostPage           string `json:"host_page,omitempty"`
	Term               string `json:"term,omitempty"`
	MatchedReferenceID string `json:"matched_reference,omitempty"`
	SavedCopyPath      string `json:"saved_copy,omitempty"`

	// Written only by the rechecker.
	HTTPStatus    *int       `json:"http_status,omitempty"`
	FailReason    string     `json:"fail_reason,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_utc,omitempty"`
	RemovedAt     *time.Time `json:"removed_at_utc,omitempty"`
}

// SiteState groups the match records for one site key.
type SiteState struct {
	Matches map[string]*MatchRecord `json:"matches"`
}

// State is the root alert document as persisted on disk.
type State struct {
	Sites map[string]*SiteState `json:"sites"`
}

// NewState returns an empty alert document.
func NewState() *State {
	return &State{Sites: make(map[string]*SiteState)}
}

// UpsertPayload carries the provenance of one discovery into an upsert.
// Empty string fields leave the corresponding record fields untouched.
type UpsertPayload struct {
	Timestamp          time.Time
	HostPage           string
	Term               string
	MatchedReferenceID string
	SavedCopyPath      string
}

// Liveness is the outcome of one recheck of a match URL. State is one of
// StatusUp, StatusGone, or StatusError.
type Liveness struct {
	State      string
	HTTPStatus *int
	FailReason string
	CheckedAt  time.Time
}

// MatchRef identifies one match record together with the fields recheck
// target selection needs.
type MatchRef struct {
	SiteKey  string
	ImageURL string
	Status   string
	Muted    bool
}
