// Package pulse provides the public API for embedding the interaction
// tracking engine. This is the stable API for external consumers.
package pulse

import (
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/runtime"
)

// Engine is the main entry point for running the interaction engine.
// See internal/runtime.Engine for full documentation.
type Engine = runtime.Engine

// Option is a functional option for configuring an Engine.
type Option = runtime.Option

// New creates a new Engine with the given options.
// Example:
//
//	engine, err := pulse.New(
//	    pulse.WithFileSource("interactions.yaml"),
//	    pulse.WithSQLite("./data/interactions.db"),
//	)
var New = runtime.New

// Domain types needed to feed events in and read results back.
type (
	// Event is a single named occurrence observed by the application.
	Event = domain.LocalEvent

	// InteractionConfig describes one trackable interaction.
	InteractionConfig = domain.InteractionConfig

	// SequenceEventSpec is one step of an interaction's event sequence.
	SequenceEventSpec = domain.SequenceEventSpec

	// PropMatcher is a property predicate on a sequence step.
	PropMatcher = domain.PropMatcher

	// MatchOperator selects how a PropMatcher compares values.
	MatchOperator = domain.MatchOperator

	// Interaction is the terminal record of one sequence walk.
	Interaction = domain.Interaction

	// UserCategory buckets a completed interaction's latency.
	UserCategory = domain.UserCategory

	// RunningStatus is one tracker's current position in its sequence.
	RunningStatus = domain.RunningStatus

	// StatusSnapshot is the ordered list of all trackers' statuses.
	StatusSnapshot = domain.StatusSnapshot

	// MatchState discriminates a RunningStatus.
	MatchState = domain.MatchState
)

// Adapter interfaces for custom wiring.
type (
	// ConfigSource supplies the set of interaction configurations.
	ConfigSource = ports.ConfigSource

	// InteractionSink consumes terminal interaction records.
	InteractionSink = ports.InteractionSink

	// InteractionStore archives terminal interaction records.
	InteractionStore = ports.InteractionStore

	// ListOptions controls archive queries.
	ListOptions = ports.ListOptions
)

// NewEvent builds an event, copying props so later mutation by the caller
// cannot reach tracker state.
var NewEvent = domain.NewLocalEvent

// Property match operators.
const (
	OperatorEquals      = domain.OperatorEquals
	OperatorNotEquals   = domain.OperatorNotEquals
	OperatorContains    = domain.OperatorContains
	OperatorNotContains = domain.OperatorNotContains
	OperatorStartsWith  = domain.OperatorStartsWith
	OperatorEndsWith    = domain.OperatorEndsWith
)

// APDEX latency categories.
const (
	UserCategoryExcellent = domain.UserCategoryExcellent
	UserCategoryGood      = domain.UserCategoryGood
	UserCategoryAverage   = domain.UserCategoryAverage
	UserCategoryPoor      = domain.UserCategoryPoor
)

// Tracker match states.
const (
	MatchStateNone    = domain.MatchStateNone
	MatchStateOngoing = domain.MatchStateOngoing
)

// Configuration options
var (
	// Config sources
	WithConfigs      = runtime.WithConfigs
	WithFileSource   = runtime.WithFileSource
	WithRemoteSource = runtime.WithRemoteSource
	WithConfigSource = runtime.WithConfigSource

	// Storage
	WithSQLite      = runtime.WithSQLite
	WithStorage     = runtime.WithStorage
	WithMemoryStore = runtime.WithMemoryStore
	WithStore       = runtime.WithStore

	// Sinks
	WithSink        = runtime.WithSink
	WithLogSink     = runtime.WithLogSink
	WithSpanSink    = runtime.WithSpanSink
	WithWebhookSink = runtime.WithWebhookSink
	WithoutSink     = runtime.WithoutSink

	// HTTP server
	WithServer        = runtime.WithServer
	WithServerTimeout = runtime.WithServerTimeout
	WithAPIKeyHashes  = runtime.WithAPIKeyHashes

	// Advanced options
	WithLogger = runtime.WithLogger
	WithClock  = runtime.WithClock
)
