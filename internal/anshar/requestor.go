package anshar

import (
	"context"
	"fmt"

	"github.com/entur/ukur/internal/model"
	"github.com/entur/ukur/internal/store"
)

// RequestorID resolves the process-wide AnsharRequestorId (spec.md §4.D):
// first replica to start wins, via put-if-absent on the shared map; every
// other replica reads back that winner, so all replicas poll/subscribe
// under the same identity regardless of which one happened to start first.
type RequestorID struct {
	m     store.Map
	value string
}

// Resolve performs the put-if-absent race and caches the winning value.
func Resolve(ctx context.Context, m store.Map, candidate string) (*RequestorID, error) {
	won, err := m.PutIfAbsent(ctx, model.RequestorIDKey, candidate)
	if err != nil {
		return nil, fmt.Errorf("anshar: resolve requestor id: %w", err)
	}
	return &RequestorID{m: m, value: won}, nil
}

// Value returns the resolved, process-wide requestor id.
func (r *RequestorID) Value() string {
	return r.value
}
