package domain

// MatchState discriminates a RunningStatus.
type MatchState string

const (
	// MatchStateNone means no sequence is currently advancing.
	MatchStateNone MatchState = "no_match"

	// MatchStateOngoing means a walk has started; Completed stays nil until
	// the walk produces its terminal Interaction.
	MatchStateOngoing MatchState = "ongoing"
)

// RunningStatus is one tracker's externally visible position in its
// sequence. Values are snapshots: a tracker publishes a fresh RunningStatus
// on every state transition and never mutates a published one.
type RunningStatus struct {
	State MatchState `json:"state"`

	// Index is the next sequence position to satisfy (0-based)
	Index int `json:"index,omitempty"`

	// InteractionID is the id of the ongoing walk
	InteractionID string `json:"interaction_id,omitempty"`

	// Config is the configuration this status belongs to
	Config InteractionConfig `json:"config"`

	// Completed is the terminal record of the walk, success or failure,
	// nil while the walk is still advancing
	Completed *Interaction `json:"completed,omitempty"`
}

// NoMatchStatus is the idle status for a configuration.
func NoMatchStatus(cfg InteractionConfig) RunningStatus {
	return RunningStatus{State: MatchStateNone, Config: cfg}
}

// Equal compares two statuses by value. Configurations are immutable for a
// coordinator's lifetime, so config identity reduces to the id; a terminal
// Interaction is identified by its walk id and error flag.
func (s RunningStatus) Equal(other RunningStatus) bool {
	if s.State != other.State || s.Index != other.Index || s.InteractionID != other.InteractionID {
		return false
	}
	if s.Config.ID != other.Config.ID {
		return false
	}
	if (s.Completed == nil) != (other.Completed == nil) {
		return false
	}
	if s.Completed != nil && (s.Completed.ID != other.Completed.ID || s.Completed.IsErrored != other.Completed.IsErrored) {
		return false
	}
	return true
}

// StatusSnapshot is the ordered list of all trackers' statuses, in stable
// configuration order.
type StatusSnapshot []RunningStatus

// Equal compares two snapshots by value.
func (s StatusSnapshot) Equal(other StatusSnapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Equal(other[i]) {
			return false
		}
	}
	return true
}
