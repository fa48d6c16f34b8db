package matching

import (
	"testing"
	"time"

	"github.com/entur/ukur/internal/journey"
	"github.com/entur/ukur/internal/model"
	"github.com/entur/ukur/internal/siri"
	"github.com/entur/ukur/internal/stopplace"
	"github.com/entur/ukur/internal/subscription"
)

// fakeNotifier records every call made to it, for assertions.
type fakeNotifier struct {
	onStops     map[string][]model.DeviatingStop
	fullMessage map[string]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		onStops:     make(map[string][]model.DeviatingStop),
		fullMessage: make(map[string]bool),
	}
}

func (f *fakeNotifier) NotifyOnStops(subscriptionID string, stops []model.DeviatingStop) {
	f.onStops[subscriptionID] = stops
}

func (f *fakeNotifier) NotifyFullMessage(subscriptionID, lineRef, vehicleRef string) {
	f.fullMessage[subscriptionID] = true
}

func newEngine(subs []model.Subscription, resolverPairs map[string]string, notifier *fakeNotifier, now time.Time) *Engine {
	idx := subscription.NewMemoryIndex(subs)
	resolver := stopplace.NewMapResolver()
	resolver.Replace(resolverPairs)
	e := New(idx, resolver, journey.NewMemoryCache(), notifier)
	e.Now = func() time.Time { return now }
	return e
}

func at(hh, mm int) time.Time {
	return time.Date(2026, 7, 31, hh, mm, 0, 0, time.UTC)
}

func atp(hh, mm int) *time.Time {
	v := at(hh, mm)
	return &v
}

func boarding(b model.BoardingActivity) string { return string(b) }

// Scenario 1 — freight ignored.
func TestProcess_FreightIgnored(t *testing.T) {
	now := at(9, 0)
	sub := model.Subscription{ID: "S1", FromStopPoints: []string{"NSR:StopPlace:1"}, ToStopPoints: []string{"NSR:StopPlace:2"}}
	notifier := newFakeNotifier()
	e := newEngine([]model.Subscription{sub}, nil, notifier, now)

	j := siri.EstimatedVehicleJourney{
		ServiceFeatureRefs: []string{"freightTrain"},
		EstimatedCalls: []siri.EstimatedCall{
			{StopPointRef: "NSR:StopPlace:1", AimedDepartureTime: atp(10, 0), ExpectedDepartureTime: atp(10, 5), DepartureStatus: siri.DelayedStatus},
		},
	}
	e.Process(j)

	if len(notifier.onStops) != 0 || len(notifier.fullMessage) != 0 {
		t.Fatalf("expected zero notifications for a freight journey, got onStops=%v fullMessage=%v", notifier.onStops, notifier.fullMessage)
	}
}

// Scenario 2 — simple delay matches FROM side.
func TestProcess_SimpleDelayMatchesFromSide(t *testing.T) {
	now := at(9, 0)
	sub := model.Subscription{ID: "S1", FromStopPoints: []string{"NSR:StopPlace:1"}, ToStopPoints: []string{"NSR:StopPlace:2"}}
	notifier := newFakeNotifier()
	e := newEngine([]model.Subscription{sub}, nil, notifier, now)

	j := siri.EstimatedVehicleJourney{
		EstimatedCalls: []siri.EstimatedCall{
			{
				StopPointRef:              "NSR:StopPlace:1",
				AimedDepartureTime:        atp(10, 0),
				ExpectedDepartureTime:     atp(10, 5),
				DepartureStatus:           siri.DelayedStatus,
				DepartureBoardingActivity: boarding(model.Boarding),
			},
			{
				StopPointRef:            "NSR:StopPlace:2",
				AimedDepartureTime:      atp(10, 20),
				ArrivalBoardingActivity: boarding(model.Alighting),
			},
		},
	}
	e.Process(j)

	if _, ok := notifier.onStops["S1"]; !ok {
		t.Fatalf("expected S1 in notify-on-stops set, got %v", notifier.onStops)
	}
	if notifier.fullMessage["S1"] {
		t.Fatalf("S1 should not receive a full-message notification")
	}
}

// Scenario 3 — quay/stop-place substitution.
func TestProcess_QuaySubstitution(t *testing.T) {
	now := at(9, 0)
	sub := model.Subscription{ID: "S1", FromStopPoints: []string{"NSR:StopPlace:1"}, ToStopPoints: []string{"NSR:StopPlace:2"}}
	notifier := newFakeNotifier()
	e := newEngine([]model.Subscription{sub}, map[string]string{"NSR:Quay:9": "NSR:StopPlace:1"}, notifier, now)

	j := siri.EstimatedVehicleJourney{
		EstimatedCalls: []siri.EstimatedCall{
			{
				StopPointRef:              "NSR:Quay:9",
				AimedDepartureTime:        atp(10, 0),
				ExpectedDepartureTime:     atp(10, 5),
				DepartureStatus:           siri.DelayedStatus,
				DepartureBoardingActivity: boarding(model.Boarding),
			},
			{
				StopPointRef:            "NSR:StopPlace:2",
				AimedDepartureTime:      atp(10, 20),
				ArrivalBoardingActivity: boarding(model.Alighting),
			},
		},
	}
	e.Process(j)

	if _, ok := notifier.onStops["S1"]; !ok {
		t.Fatalf("expected S1 notified via quay substitution, got %v", notifier.onStops)
	}
}

// Scenario 4 — direction violated (swap the times so fromTime > toTime).
func TestProcess_DirectionViolated(t *testing.T) {
	now := at(9, 0)
	sub := model.Subscription{ID: "S1", FromStopPoints: []string{"NSR:StopPlace:1"}, ToStopPoints: []string{"NSR:StopPlace:2"}}
	notifier := newFakeNotifier()
	e := newEngine([]model.Subscription{sub}, nil, notifier, now)

	j := siri.EstimatedVehicleJourney{
		EstimatedCalls: []siri.EstimatedCall{
			{
				StopPointRef:              "NSR:StopPlace:1",
				AimedDepartureTime:        atp(10, 20),
				ExpectedDepartureTime:     atp(10, 25),
				DepartureStatus:           siri.DelayedStatus,
				DepartureBoardingActivity: boarding(model.Boarding),
			},
			{
				StopPointRef:            "NSR:StopPlace:2",
				AimedDepartureTime:      atp(10, 0),
				ArrivalBoardingActivity: boarding(model.Alighting),
			},
		},
	}
	e.Process(j)

	if len(notifier.onStops) != 0 {
		t.Fatalf("expected empty notify set when direction is violated, got %v", notifier.onStops)
	}
}

// Scenario 5 — cancellation cascades to both ends of the subscription.
func TestProcess_CancellationCascades(t *testing.T) {
	now := at(9, 0)
	sub := model.Subscription{ID: "S1", FromStopPoints: []string{"NSR:StopPlace:A"}, ToStopPoints: []string{"NSR:StopPlace:B"}}
	notifier := newFakeNotifier()
	e := newEngine([]model.Subscription{sub}, nil, notifier, now)

	j := siri.EstimatedVehicleJourney{
		IsCancellation: true,
		EstimatedCalls: []siri.EstimatedCall{
			{StopPointRef: "NSR:StopPlace:A", AimedDepartureTime: atp(10, 0), DepartureBoardingActivity: boarding(model.Boarding)},
			{StopPointRef: "NSR:StopPlace:B", AimedDepartureTime: atp(10, 30), ArrivalBoardingActivity: boarding(model.Alighting)},
		},
	}
	e.Process(j)

	stops, ok := notifier.onStops["S1"]
	if !ok {
		t.Fatalf("expected S1 in notify set for a cancelled journey")
	}
	for _, s := range stops {
		if s.Kind != model.Cancelled {
			t.Fatalf("expected every deviation to be Cancelled, got %+v", s)
		}
	}
	if len(stops) != 2 {
		t.Fatalf("expected Cancelled(A) and Cancelled(B), got %v", stops)
	}
}

// Invariant 1 — any accepted subscription satisfies Direction.
func TestProcess_AcceptedSubscriptionsSatisfyDirection(t *testing.T) {
	now := at(9, 0)
	// A subscription whose FROM point never appears in the journey at all
	// can never resolve a fromTime, so it must never be notified.
	sub := model.Subscription{ID: "S1", FromStopPoints: []string{"NSR:StopPlace:Unknown"}, ToStopPoints: []string{"NSR:StopPlace:2"}}
	notifier := newFakeNotifier()
	e := newEngine([]model.Subscription{sub}, nil, notifier, now)

	j := siri.EstimatedVehicleJourney{
		EstimatedCalls: []siri.EstimatedCall{
			{StopPointRef: "NSR:StopPlace:2", AimedDepartureTime: atp(10, 20), ExpectedDepartureTime: atp(10, 25), ArrivalBoardingActivity: boarding(model.Alighting), AimedArrivalTime: atp(10, 19), ExpectedArrivalTime: atp(10, 25)},
		},
	}
	e.Process(j)

	if len(notifier.onStops) != 0 {
		t.Fatalf("subscription with unresolvable FROM side must never be notified, got %v", notifier.onStops)
	}
}

// Re-processing the same journey a second time still notifies S1.
func TestProcess_ReprocessingSameJourneyStillNotifies(t *testing.T) {
	now := at(9, 0)
	sub := model.Subscription{ID: "S1", FromStopPoints: []string{"NSR:StopPlace:1"}, ToStopPoints: []string{"NSR:StopPlace:2"}}
	notifier := newFakeNotifier()
	e := newEngine([]model.Subscription{sub}, nil, notifier, now)

	j := siri.EstimatedVehicleJourney{
		EstimatedCalls: []siri.EstimatedCall{
			{StopPointRef: "NSR:StopPlace:1", AimedDepartureTime: atp(10, 0), ExpectedDepartureTime: atp(10, 5), DepartureStatus: siri.DelayedStatus, DepartureBoardingActivity: boarding(model.Boarding)},
			{StopPointRef: "NSR:StopPlace:2", AimedDepartureTime: atp(10, 20), ArrivalBoardingActivity: boarding(model.Alighting)},
		},
	}
	e.Process(j)
	e.Process(j)

	if len(notifier.onStops["S1"]) == 0 {
		t.Fatalf("expected S1 to be notified")
	}
}

// Non-NSR stop refs never reach the subscription index (step 6's "skip
// unless P starts with NSR:").
func TestProcess_NonNSRStopIgnored(t *testing.T) {
	now := at(9, 0)
	sub := model.Subscription{ID: "S1", FromStopPoints: []string{"LOCAL:1"}, ToStopPoints: []string{"LOCAL:2"}}
	notifier := newFakeNotifier()
	e := newEngine([]model.Subscription{sub}, nil, notifier, now)

	j := siri.EstimatedVehicleJourney{
		EstimatedCalls: []siri.EstimatedCall{
			{StopPointRef: "LOCAL:1", AimedDepartureTime: atp(10, 0), ExpectedDepartureTime: atp(10, 5), DepartureStatus: siri.DelayedStatus, DepartureBoardingActivity: boarding(model.Boarding)},
			{StopPointRef: "LOCAL:2", AimedDepartureTime: atp(10, 20), ArrivalBoardingActivity: boarding(model.Alighting)},
		},
	}
	e.Process(j)

	if len(notifier.onStops) != 0 {
		t.Fatalf("non-NSR stop refs must never match, got %v", notifier.onStops)
	}
}

// Past calls (not strictly in the future relative to now) emit no deviation.
func TestProcess_PastCallsIgnored(t *testing.T) {
	now := at(11, 0)
	sub := model.Subscription{ID: "S1", FromStopPoints: []string{"NSR:StopPlace:1"}, ToStopPoints: []string{"NSR:StopPlace:2"}}
	notifier := newFakeNotifier()
	e := newEngine([]model.Subscription{sub}, nil, notifier, now)

	j := siri.EstimatedVehicleJourney{
		EstimatedCalls: []siri.EstimatedCall{
			{StopPointRef: "NSR:StopPlace:1", AimedDepartureTime: atp(10, 0), ExpectedDepartureTime: atp(10, 5), DepartureStatus: siri.DelayedStatus, DepartureBoardingActivity: boarding(model.Boarding)},
			{StopPointRef: "NSR:StopPlace:2", AimedDepartureTime: atp(10, 20), ArrivalBoardingActivity: boarding(model.Alighting)},
		},
	}
	e.Process(j)

	if len(notifier.onStops) != 0 {
		t.Fatalf("a call in the past must never emit a deviation, got %v", notifier.onStops)
	}
}

// Step 8 — whole-line delivery fires independently of any stop filter.
func TestProcess_WholeLineDelivery(t *testing.T) {
	now := at(9, 0)
	sub := model.Subscription{ID: "S1", LineRefs: map[string]struct{}{"NSB:Line:1": {}}}
	notifier := newFakeNotifier()
	e := newEngine([]model.Subscription{sub}, nil, notifier, now)

	j := siri.EstimatedVehicleJourney{
		LineRef: "NSB:Line:1",
		EstimatedCalls: []siri.EstimatedCall{
			{StopPointRef: "NSR:StopPlace:9", AimedDepartureTime: atp(10, 0), ExpectedDepartureTime: atp(10, 5), DepartureStatus: siri.DelayedStatus},
		},
	}
	e.Process(j)

	if !notifier.fullMessage["S1"] {
		t.Fatalf("expected S1 to receive the full message for its subscribed line")
	}
}

func TestProcess_FreightCaseInsensitive(t *testing.T) {
	j := siri.EstimatedVehicleJourney{ServiceFeatureRefs: []string{"FreightTrain"}}
	if !j.HasServiceFeature("freightTrain") {
		t.Fatalf("expected case-insensitive match on ServiceFeatureRef")
	}
}
