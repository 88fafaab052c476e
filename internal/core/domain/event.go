package domain

import "time"

// LocalEvent is a single named occurrence observed by the application: a
// name, a nanosecond wall-clock timestamp, and optional string properties.
// Events are immutable once constructed and may be shared freely between
// trackers and interactions.
type LocalEvent struct {
	// Name identifies the event kind, e.g. "cart_viewed"
	Name string `json:"name"`

	// TimeNanos is the wall-clock observation time in nanoseconds since epoch
	TimeNanos int64 `json:"time_nanos"`

	// Props carries optional string-valued event properties
	Props map[string]string `json:"props,omitempty"`
}

// NewLocalEvent builds an event, copying props so later mutation by the
// caller cannot reach accumulated tracker state.
func NewLocalEvent(name string, timeNanos int64, props map[string]string) LocalEvent {
	var copied map[string]string
	if len(props) > 0 {
		copied = make(map[string]string, len(props))
		for k, v := range props {
			copied[k] = v
		}
	}
	return LocalEvent{Name: name, TimeNanos: timeNanos, Props: copied}
}

// Prop returns the named property value and whether it is present.
func (e LocalEvent) Prop(key string) (string, bool) {
	v, ok := e.Props[key]
	return v, ok
}

// Time converts the nanosecond timestamp to a time.Time.
func (e LocalEvent) Time() time.Time {
	return time.Unix(0, e.TimeNanos)
}
