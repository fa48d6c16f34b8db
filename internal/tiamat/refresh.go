// Package tiamat implements the Tiamat Stop Registry Refresh workflow
// (spec.md §4): periodically fetches the quay-to-stop-place mapping and
// hands the raw body to a stopplace.MappingProcessor verbatim, since
// Tiamat's own export format is opaque to this module.
package tiamat

import (
	"context"
	"fmt"

	"github.com/entur/ukur/internal/ansharclient"
	"github.com/entur/ukur/internal/observability"
	"github.com/entur/ukur/internal/stopplace"
)

// Refresher fetches the Tiamat stop registry mapping and feeds it to a
// MappingProcessor.
type Refresher struct {
	client    *ansharclient.Client
	url       string
	processor stopplace.MappingProcessor
}

// New builds a Refresher.
func New(client *ansharclient.Client, url string, processor stopplace.MappingProcessor) *Refresher {
	return &Refresher{client: client, url: url, processor: processor}
}

// Refresh performs one fetch-and-process cycle.
func (r *Refresher) Refresh(ctx context.Context) error {
	body, err := r.client.Get(ctx, r.url)
	if err != nil {
		observability.UpstreamErrors.WithLabelValues(observability.KindUpstreamUnavailable, "Tiamat").Inc()
		return fmt.Errorf("tiamat: fetch: %w", err)
	}
	if err := r.processor.Process(body); err != nil {
		observability.UpstreamErrors.WithLabelValues(observability.KindMalformedPayload, "Tiamat").Inc()
		return fmt.Errorf("tiamat: process: %w", err)
	}
	return nil
}
