package anshar

import "net/http"

// RegisterRoutes wires the SIRI push callback endpoint onto mux, using the
// net/http 1.22+ pattern-based routing the teacher's own HTTP surface does
// not use (it has no inbound push endpoint), but which is the straightforward
// idiomatic way to extract {requestorId}/{kind} without a router dependency.
func RegisterRoutes(mux *http.ServeMux, h *CallbackHandler) {
	mux.HandleFunc("POST /siriMessages/{requestorId}/et", func(w http.ResponseWriter, r *http.Request) {
		h.ServeET(w, r, r.PathValue("requestorId"))
	})
	mux.HandleFunc("POST /siriMessages/{requestorId}/sx", func(w http.ResponseWriter, r *http.Request) {
		h.ServeSX(w, r, r.PathValue("requestorId"))
	})
	// Any other {kind} segment: spec.md §4.D.1 says this always returns 403,
	// regardless of requestorId.
	mux.HandleFunc("POST /siriMessages/{requestorId}/{kind}", ServeUnknownKind)
}
