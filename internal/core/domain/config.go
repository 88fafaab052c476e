package domain

import "strings"

// MatchOperator selects how a PropMatcher compares an event property
// against its expected value.
type MatchOperator string

const (
	OperatorEquals      MatchOperator = "EQUALS"
	OperatorNotEquals   MatchOperator = "NOT_EQUALS"
	OperatorContains    MatchOperator = "CONTAINS"
	OperatorNotContains MatchOperator = "NOT_CONTAINS"
	OperatorStartsWith  MatchOperator = "STARTS_WITH"
	OperatorEndsWith    MatchOperator = "ENDS_WITH"
)

// PropMatcher is a single property predicate attached to a sequence step or
// blacklist entry. An event with no value for PropertyName never satisfies
// the matcher, regardless of operator.
type PropMatcher struct {
	PropertyName  string        `json:"property_name"`
	ExpectedValue string        `json:"expected_value"`
	Operator      MatchOperator `json:"operator"`
}

// Matches reports whether the event satisfies this predicate. Unknown
// operators and absent properties are non-matches, never errors.
func (m PropMatcher) Matches(ev LocalEvent) bool {
	v, ok := ev.Prop(m.PropertyName)
	if !ok {
		return false
	}
	switch m.Operator {
	case OperatorEquals:
		return v == m.ExpectedValue
	case OperatorNotEquals:
		return v != m.ExpectedValue
	case OperatorContains:
		return strings.Contains(v, m.ExpectedValue)
	case OperatorNotContains:
		return !strings.Contains(v, m.ExpectedValue)
	case OperatorStartsWith:
		return strings.HasPrefix(v, m.ExpectedValue)
	case OperatorEndsWith:
		return strings.HasSuffix(v, m.ExpectedValue)
	default:
		return false
	}
}

// SequenceEventSpec is one element of a configured sequence, or one entry of
// a configuration's global blacklist. Immutable once loaded.
type SequenceEventSpec struct {
	Name          string        `json:"name"`
	PropMatchers  []PropMatcher `json:"prop_matchers,omitempty"`
	IsBlacklisted bool          `json:"is_blacklisted,omitempty"`
}

// Matches reports whether the event satisfies this spec: name equality plus
// every declared property matcher.
func (s SequenceEventSpec) Matches(ev LocalEvent) bool {
	if ev.Name != s.Name {
		return false
	}
	for _, m := range s.PropMatchers {
		if !m.Matches(ev) {
			return false
		}
	}
	return true
}

// InteractionConfig describes one trackable interaction: the ordered event
// sequence to match, noise events that invalidate an in-progress match,
// APDEX latency bands, and the per-match timeout.
type InteractionConfig struct {
	ID              int64               `json:"id"`
	Name            string              `json:"name"`
	Sequence        []SequenceEventSpec `json:"sequence"`
	GlobalBlacklist []SequenceEventSpec `json:"global_blacklist,omitempty"`

	// APDEX band limits in milliseconds, ascending
	LowerLimitMs int64 `json:"lower_limit_ms"`
	MidLimitMs   int64 `json:"mid_limit_ms"`
	UpperLimitMs int64 `json:"upper_limit_ms"`

	// TimeoutMs bounds how long a started match may stay incomplete
	TimeoutMs int64 `json:"timeout_ms"`
}

// Validate checks the invariants a configuration must satisfy before a
// tracker may be built for it. Violations wrap ErrInvalidConfig.
func (c InteractionConfig) Validate() error {
	if len(c.Sequence) == 0 {
		return &ConfigError{ConfigID: c.ID, ConfigName: c.Name, Reason: "sequence is empty"}
	}
	if c.Sequence[0].IsBlacklisted {
		return &ConfigError{ConfigID: c.ID, ConfigName: c.Name, Reason: "first sequence element is blacklisted"}
	}
	if c.Sequence[len(c.Sequence)-1].IsBlacklisted {
		return &ConfigError{ConfigID: c.ID, ConfigName: c.Name, Reason: "last sequence element is blacklisted"}
	}
	for _, s := range c.Sequence {
		if !s.IsBlacklisted {
			return nil
		}
	}
	return &ConfigError{ConfigID: c.ID, ConfigName: c.Name, Reason: "sequence has no non-blacklisted element"}
}

// Observes reports whether an event with the given name participates in this
// configuration at all, as a sequence step or a blacklist entry. Trackers use
// it to discard irrelevant events before matching.
func (c InteractionConfig) Observes(name string) bool {
	for _, s := range c.Sequence {
		if s.Name == name {
			return true
		}
	}
	for _, s := range c.GlobalBlacklist {
		if s.Name == name {
			return true
		}
	}
	return false
}

// MatchesBlacklist reports whether the event satisfies any entry of the
// global blacklist.
func (c InteractionConfig) MatchesBlacklist(ev LocalEvent) bool {
	for _, s := range c.GlobalBlacklist {
		if s.Matches(ev) {
			return true
		}
	}
	return false
}

// ApdexScore computes the latency-satisfaction score and category for a
// successfully completed match that spanned elapsedMs milliseconds.
// Scores in the Good and Average bands fall linearly from the lower limit
// to the upper limit.
func (c InteractionConfig) ApdexScore(elapsedMs int64) (float64, UserCategory) {
	switch {
	case elapsedMs <= c.LowerLimitMs:
		return 1.0, UserCategoryExcellent
	case elapsedMs <= c.MidLimitMs:
		return c.bandScore(elapsedMs), UserCategoryGood
	case elapsedMs <= c.UpperLimitMs:
		return c.bandScore(elapsedMs), UserCategoryAverage
	default:
		return 0.0, UserCategoryPoor
	}
}

func (c InteractionConfig) bandScore(elapsedMs int64) float64 {
	span := c.UpperLimitMs - c.LowerLimitMs
	if span <= 0 {
		return 0.0
	}
	return 1.0 - float64(elapsedMs-c.LowerLimitMs)/float64(span)
}
