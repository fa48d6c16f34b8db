package anshar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/entur/ukur/internal/archive"
	"github.com/entur/ukur/internal/model"
	"github.com/entur/ukur/internal/queue"
	"github.com/entur/ukur/internal/siri"
	"github.com/entur/ukur/internal/store"
)

const sampleETBody = `<?xml version="1.0"?>
<Siri version="2.0">
  <ServiceDelivery>
    <EstimatedTimetableDelivery>
      <EstimatedJourneyVersionFrame>
        <EstimatedVehicleJourney>
          <OperatorRef>NSB</OperatorRef>
          <LineRef>NSB:Line:1</LineRef>
          <VehicleRef>NSB:Vehicle:1</VehicleRef>
        </EstimatedVehicleJourney>
      </EstimatedJourneyVersionFrame>
    </EstimatedTimetableDelivery>
  </ServiceDelivery>
</Siri>`

func newTestHandler(t *testing.T, m store.Map) (*CallbackHandler, *ETQueue, *SXQueue) {
	t.Helper()
	requestor, err := Resolve(context.Background(), m, "Ukur-test")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	etQueue := queue.New[siri.EstimatedVehicleJourney](queue.KindET, 8)
	sxQueue := queue.New[siri.PtSituationElement](queue.KindSX, 8)
	h := NewCallbackHandler(requestor, m, "NSB", true, true, etQueue, sxQueue, archive.NoopWriter{})
	return h, etQueue, sxQueue
}

func TestCallbackHandler_ServeET_WrongRequestorIsForbidden(t *testing.T) {
	m := store.NewMemoryMap()
	h, _, _ := newTestHandler(t, m)

	req := httptest.NewRequest(http.MethodPost, "/siriMessages/someone-else/et", strings.NewReader(sampleETBody))
	rec := httptest.NewRecorder()
	h.ServeET(rec, req, "someone-else")

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a mismatched requestorId, got %d", rec.Code)
	}
}

func TestCallbackHandler_ServeET_MatchReturns200AndRecordsLiveness(t *testing.T) {
	m := store.NewMemoryMap()
	h, etQueue, _ := newTestHandler(t, m)

	req := httptest.NewRequest(http.MethodPost, "/siriMessages/Ukur-test/et", strings.NewReader(sampleETBody))
	rec := httptest.NewRecorder()
	h.ServeET(rec, req, "Ukur-test")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on a matching requestorId, got %d", rec.Code)
	}

	raw, found, err := m.Get(context.Background(), model.LastReceivedKey(string(siri.KindET)))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("expected AnsharLastReceived-et to be set synchronously before the handler returns")
	}
	if _, err := parseEpochMillis(raw); err != nil {
		t.Errorf("expected a valid decimal epoch-millis timestamp, got %q: %v", raw, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	j, ok := etQueue.Dequeue(ctx)
	if !ok {
		t.Fatal("expected the matching journey to be enqueued asynchronously")
	}
	if j.LineRef != "NSB:Line:1" {
		t.Errorf("expected the decoded journey's LineRef to survive, got %q", j.LineRef)
	}
}

func TestCallbackHandler_ServeET_WrongOperatorIsFiltered(t *testing.T) {
	m := store.NewMemoryMap()
	requestor, err := Resolve(context.Background(), m, "Ukur-test")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	etQueue := queue.New[siri.EstimatedVehicleJourney](queue.KindET, 8)
	sxQueue := queue.New[siri.PtSituationElement](queue.KindSX, 8)
	h := NewCallbackHandler(requestor, m, "SomeOtherOperator", true, true, etQueue, sxQueue, archive.NoopWriter{})

	req := httptest.NewRequest(http.MethodPost, "/siriMessages/Ukur-test/et", strings.NewReader(sampleETBody))
	rec := httptest.NewRecorder()
	h.ServeET(rec, req, "Ukur-test")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 regardless of operator match, got %d", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, ok := etQueue.Dequeue(ctx); ok {
		t.Error("expected a journey for a different operator not to be enqueued")
	}
}

func TestCallbackHandler_ServeSX_WrongRequestorIsForbidden(t *testing.T) {
	m := store.NewMemoryMap()
	h, _, _ := newTestHandler(t, m)

	req := httptest.NewRequest(http.MethodPost, "/siriMessages/someone-else/sx", strings.NewReader(sampleETBody))
	rec := httptest.NewRecorder()
	h.ServeSX(rec, req, "someone-else")

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a mismatched requestorId, got %d", rec.Code)
	}
}

func TestCallbackHandler_ServeET_DisabledKindIsForbidden(t *testing.T) {
	m := store.NewMemoryMap()
	requestor, err := Resolve(context.Background(), m, "Ukur-test")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	etQueue := queue.New[siri.EstimatedVehicleJourney](queue.KindET, 8)
	sxQueue := queue.New[siri.PtSituationElement](queue.KindSX, 8)
	h := NewCallbackHandler(requestor, m, "NSB", false, true, etQueue, sxQueue, archive.NoopWriter{})

	req := httptest.NewRequest(http.MethodPost, "/siriMessages/Ukur-test/et", strings.NewReader(sampleETBody))
	rec := httptest.NewRecorder()
	h.ServeET(rec, req, "Ukur-test")

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a disabled kind even with a matching requestorId, got %d", rec.Code)
	}
	if rec.Body.String() != "FORBIDDEN\n\n" {
		t.Errorf("expected body %q, got %q", "FORBIDDEN\n\n", rec.Body.String())
	}
}

func TestServeUnknownKind_AlwaysForbidden(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/siriMessages/Ukur-test/bogus", nil)
	ServeUnknownKind(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for an unrecognized kind, got %d", rec.Code)
	}
	if rec.Body.String() != "FORBIDDEN\n\n" {
		t.Errorf("expected body %q, got %q", "FORBIDDEN\n\n", rec.Body.String())
	}
}
