package anshar

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/entur/ukur/internal/archive"
	"github.com/entur/ukur/internal/observability"
	"github.com/entur/ukur/internal/siri"
	"github.com/entur/ukur/internal/store"
)

// CallbackHandler serves POST /siriMessages/{requestorId}/{kind}, the push
// endpoint Anshar calls in subscription mode (spec.md §4.D.1). It validates
// the path's requestorId against the process-wide resolved one, responds
// 200 immediately, and dispatches decoding/enqueueing asynchronously so a
// slow matching pass never holds the HTTP connection open.
type CallbackHandler struct {
	requestor *RequestorID
	m         store.Map
	operator  string
	etEnabled bool
	sxEnabled bool
	etQueue   *ETQueue
	sxQueue   *SXQueue
	archive   archive.Writer
}

// NewCallbackHandler builds a CallbackHandler. etEnabled/sxEnabled gate
// whether a structurally valid et/sx callback is actually processed — per
// spec.md §4.D.1, "for kind ∈ {et, sx} and if that kind is enabled" records
// liveness and forwards the payload; a disabled kind falls through to the
// same 403 response as an unrecognized kind.
func NewCallbackHandler(requestor *RequestorID, m store.Map, operator string, etEnabled, sxEnabled bool, etQueue *ETQueue, sxQueue *SXQueue, w archive.Writer) *CallbackHandler {
	return &CallbackHandler{requestor: requestor, m: m, operator: operator, etEnabled: etEnabled, sxEnabled: sxEnabled, etQueue: etQueue, sxQueue: sxQueue, archive: w}
}

// ServeET handles the ET callback path for a given path-extracted requestorId.
func (h *CallbackHandler) ServeET(w http.ResponseWriter, r *http.Request, requestorID string) {
	h.serve(w, r, requestorID, siri.KindET, h.etEnabled)
}

// ServeSX handles the SX callback path for a given path-extracted requestorId.
func (h *CallbackHandler) ServeSX(w http.ResponseWriter, r *http.Request, requestorID string) {
	h.serve(w, r, requestorID, siri.KindSX, h.sxEnabled)
}

// ServeUnknownKind handles any callback path whose {kind} segment is neither
// et nor sx: spec.md §4.D.1 says "Any other kind returns 403" unconditionally,
// without even checking the requestorId.
func ServeUnknownKind(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte("FORBIDDEN\n\n"))
}

func (h *CallbackHandler) serve(w http.ResponseWriter, r *http.Request, requestorID string, kind siri.SubscriptionKind, enabled bool) {
	if requestorID != h.requestor.Value() {
		observability.UpstreamErrors.WithLabelValues(observability.KindRejectedCallback, string(kind)).Inc()
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("FORBIDDEN\n\n"))
		return
	}
	if !enabled {
		observability.UpstreamErrors.WithLabelValues(observability.KindRejectedCallback, string(kind)).Inc()
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("FORBIDDEN\n\n"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		observability.UpstreamErrors.WithLabelValues(observability.KindMalformedPayload, string(kind)).Inc()
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("FORBIDDEN\n\n"))
		return
	}
	if err := h.archive.Write(string(kind), requestorID, body); err != nil {
		log.Printf("[anshar] failed to archive %s callback payload: %v", kind, err)
	}

	// spec.md §5: the shared-map liveness update happens synchronously, on
	// the HTTP server's own goroutine, before the handler returns 200. Only
	// the heavy XML decode and the matching/SX dispatch run on a consumer
	// worker, fire-and-forget.
	if err := RecordReceived(context.Background(), h.m, kind, time.Now()); err != nil {
		log.Printf("[anshar] failed to record liveness for %s: %v", kind, err)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK\n\n"))

	go h.dispatch(context.Background(), body, kind)
}

func (h *CallbackHandler) dispatch(ctx context.Context, body []byte, kind siri.SubscriptionKind) {
	doc, err := siri.DecodeServiceDelivery(bytes.NewReader(body))
	if err != nil {
		observability.UpstreamErrors.WithLabelValues(observability.KindMalformedPayload, string(kind)).Inc()
		log.Printf("[anshar] %s callback payload malformed (size=%d): %v", kind, len(body), err)
		return
	}
	delivery := doc.ServiceDelivery

	switch kind {
	case siri.KindET:
		for _, j := range siri.ETJourneysForOperator(delivery, h.operator) {
			if err := h.etQueue.Enqueue(ctx, j); err != nil {
				log.Printf("[anshar] ET callback enqueue failed: %v", err)
			}
		}
	case siri.KindSX:
		for _, s := range siri.SXSituationsForOperator(delivery, h.operator) {
			if err := h.sxQueue.Enqueue(ctx, s); err != nil {
				log.Printf("[anshar] SX callback enqueue failed: %v", err)
			}
		}
	}
}
