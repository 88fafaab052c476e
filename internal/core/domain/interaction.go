package domain

import "time"

// UserCategory buckets a completed interaction's latency per its
// configuration's APDEX bands.
type UserCategory string

const (
	UserCategoryExcellent UserCategory = "Excellent"
	UserCategoryGood      UserCategory = "Good"
	UserCategoryAverage   UserCategory = "Average"
	UserCategoryPoor      UserCategory = "Poor"
)

// Interaction is the terminal record of one sequence walk: either a
// successful completion carrying an APDEX score, or a failed walk
// (sequence break or timeout) with IsErrored set and no score.
// Constructed exactly once per walk and immutable afterwards.
type Interaction struct {
	// ID is the walk id minted when the match began, e.g. "int_<uuid>"
	ID string `json:"id"`

	// Name is the configuration name, e.g. "Checkout"
	Name string `json:"name"`

	// ConfigID identifies the configuration that produced this record
	ConfigID int64 `json:"config_id"`

	// FirstEventTimeNanos is the timestamp of the first matched event
	FirstEventTimeNanos int64 `json:"first_event_time_nanos"`

	// LastEventTimeNanos is the timestamp of the last matched event
	LastEventTimeNanos int64 `json:"last_event_time_nanos"`

	// Events are the matched sequence events, in match order
	Events []LocalEvent `json:"events"`

	// MarkerEvents are contextual events attached to this record without
	// having participated in matching
	MarkerEvents []LocalEvent `json:"marker_events,omitempty"`

	// ApdexScore is set only for successful completions
	ApdexScore *float64 `json:"apdex_score,omitempty"`

	// UserCategory is set only for successful completions
	UserCategory UserCategory `json:"user_category,omitempty"`

	// CompletionTimeNanos is the wall-clock time the record was constructed
	CompletionTimeNanos int64 `json:"completion_time_nanos,omitempty"`

	// IsErrored marks a sequence break or timeout
	IsErrored bool `json:"is_errored"`
}

// ElapsedMs is the span between first and last matched event in
// milliseconds.
func (i *Interaction) ElapsedMs() int64 {
	return (i.LastEventTimeNanos - i.FirstEventTimeNanos) / int64(time.Millisecond)
}

// StartTime is the first matched event's timestamp as a time.Time.
func (i *Interaction) StartTime() time.Time {
	return time.Unix(0, i.FirstEventTimeNanos)
}

// EndTime is the last matched event's timestamp as a time.Time.
func (i *Interaction) EndTime() time.Time {
	return time.Unix(0, i.LastEventTimeNanos)
}
