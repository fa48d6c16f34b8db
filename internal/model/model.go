// Package model holds the core read-only value types shared between the
// Anshar ingestion controller and the ET matching engine.
package model

import "time"

// Subscription describes a registered interest in delays or cancellations
// between two stops. The core treats subscriptions as read-only; ownership
// lives in the external subscription store.
//
// FromStopPoints/ToStopPoints are kept as ordered slices, not bare sets:
// spec.md §4.E's resolveOne walks them "in iteration order" and stops at
// the first point that exists in a journey's stop index, so the order a
// real subscription store returns them in is observable behavior, not an
// implementation detail.
type Subscription struct {
	ID             string
	FromStopPoints []string
	ToStopPoints   []string
	LineRefs       map[string]struct{}
	VehicleRefs    map[string]struct{}
}

// MatchesLine reports whether LineFilter holds for the given line ref: an
// empty LineRefs set or a blank journey line ref always matches.
func (s Subscription) MatchesLine(lineRef string) bool {
	if len(s.LineRefs) == 0 || lineRef == "" {
		return true
	}
	_, ok := s.LineRefs[lineRef]
	return ok
}

// MatchesVehicle reports whether VehicleFilter holds for the given vehicle ref.
func (s Subscription) MatchesVehicle(vehicleRef string) bool {
	if len(s.VehicleRefs) == 0 || vehicleRef == "" {
		return true
	}
	_, ok := s.VehicleRefs[vehicleRef]
	return ok
}

// HasFromStop reports whether stop is registered as a FROM point.
func (s Subscription) HasFromStop(stop string) bool {
	return containsStop(s.FromStopPoints, stop)
}

// HasToStop reports whether stop is registered as a TO point.
func (s Subscription) HasToStop(stop string) bool {
	return containsStop(s.ToStopPoints, stop)
}

func containsStop(points []string, stop string) bool {
	for _, p := range points {
		if p == stop {
			return true
		}
	}
	return false
}

// DeviationKind distinguishes the two forms a DeviatingStop can take.
type DeviationKind int

const (
	// Cancelled means the stop was dropped from the journey.
	Cancelled DeviationKind = iota
	// Delayed means the stop still happens, late on departure and/or arrival.
	Delayed
)

// DeviatingStop is a per-stop fact extracted from one EstimatedVehicleJourney.
// Invariant: if Kind == Delayed, at least one of DelayedDeparture/DelayedArrival is true.
type DeviatingStop struct {
	StopPointRef     string
	Kind             DeviationKind
	DelayedDeparture bool
	DelayedArrival   bool
}

// BoardingActivity mirrors the SIRI arrival/departure boarding activity enum.
type BoardingActivity string

const (
	Alighting   BoardingActivity = "alighting"
	NoAlighting BoardingActivity = "noAlighting"
	Boarding    BoardingActivity = "boarding"
	NoBoarding  BoardingActivity = "noBoarding"
	PassThru    BoardingActivity = "passThru"
)

// StopData is everything the matching engine needs to know about one stop
// of one journey, regardless of whether it came from a RecordedCall or an
// EstimatedCall. Per spec.md §3/§4.E, there is deliberately no separate
// arrival-time field: direction resolution always reads AimedDepartureTime,
// even for the TO side of a subscription.
type StopData struct {
	AimedDepartureTime        *time.Time
	ArrivalBoardingActivity   *BoardingActivity
	DepartureBoardingActivity *BoardingActivity
}

// JourneyStopIndex maps a stopPointRef (quay or stop place) to its StopData
// for exactly one journey. Quay entries are additionally duplicated under
// their resolved parent stop-place key; see Put.
type JourneyStopIndex map[string]StopData

// Put records data for stopRef, and additionally under parentRef if it is
// non-empty and different from stopRef. Both writes are unconditional
// last-writer-wins: a later call for the same key overwrites an earlier one,
// which is how two quays sharing one parent stop place resolve a conflicting
// StopData at the parent key (spec.md §4.E step 5 — document order, last
// writer wins).
func (idx JourneyStopIndex) Put(stopRef, parentRef string, data StopData) {
	idx[stopRef] = data
	if parentRef != "" && parentRef != stopRef {
		idx[parentRef] = data
	}
}

// TriggerState is the in-process leadership/fire-time record for one named
// trigger. Leadership is authoritative only while held; see
// internal/coordination.
type TriggerState struct {
	Leader    bool
	LastFired time.Time
}

const (
	// HeartbeatIntervalMS is the subscription heartbeat cadence in milliseconds.
	HeartbeatIntervalMS = 60_000
	// SubscriptionDurationMin is how long a subscription request stays valid.
	SubscriptionDurationMin = 720
	// SiriVersion is the SIRI protocol version this module speaks.
	SiriVersion = "2.0"
	// WarmupDelay is how long a newly registered trigger waits before its first fire.
	WarmupDelay = 5 * time.Second
	// LivenessThreshold is how stale AnsharLastReceived-<kind> may get before
	// the subscription checker re-subscribes (3x the heartbeat interval).
	LivenessThreshold = 3 * HeartbeatIntervalMS * time.Millisecond
	// JourneyTTL is how long a journey may sit in the live-journey cache
	// without an update before FlushOldJourneys evicts it.
	JourneyTTL = 12 * time.Hour
)

// LastReceivedKey builds the shared-map key used by the LivenessRegister.
func LastReceivedKey(kind string) string {
	return "AnsharLastReceived-" + kind
}

// RequestorIDKey is the shared-map key the process-wide RequestorId lives under.
const RequestorIDKey = "AnsharRequestorId"

// LockKey builds the shared distributed map key that backs trigger leases.
func LockKey(triggerName string) string {
	return "lock/" + triggerName
}
