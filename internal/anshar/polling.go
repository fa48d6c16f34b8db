// Package anshar is the Anshar Ingestion Controller (spec.md §4.D): the
// component that talks to the upstream Anshar SIRI endpoint, either by
// polling or by subscription, and feeds decoded journeys/situations onward
// to the matching engine and the SX processor. Style grounded on the
// teacher's control_plane/main.go wiring idiom (sequential construction,
// log.Printf banners) and coordination/agent_monitor.go (liveness-threshold
// checking loop).
package anshar

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/entur/ukur/internal/ansharclient"
	"github.com/entur/ukur/internal/archive"
	"github.com/entur/ukur/internal/observability"
	"github.com/entur/ukur/internal/queue"
	"github.com/entur/ukur/internal/siri"
	"github.com/entur/ukur/internal/store"
)

// ETQueue and SXQueue are the typed internal queues the poller and the
// callback handler feed, and the matching engine / sx.Processor drain.
type ETQueue = queue.Queue[siri.EstimatedVehicleJourney]
type SXQueue = queue.Queue[siri.PtSituationElement]

// Poller fetches ET/SX deliveries by polling, following MoreData pagination
// chains to completion, and enqueues every decoded journey/situation for
// downstream processing.
type Poller struct {
	client    *ansharclient.Client
	operator  string
	urlFor    func(requestorID string) string
	requestor func() string
	m         store.Map
	archive   archive.Writer
}

// NewPoller builds a Poller. urlFor renders the feed's polling URL template
// given the process-wide requestor id; requestor returns that id. m is used
// to stamp AnsharLastReceived-<kind> on every successful page, the same
// liveness signal the subscription checker relies on, so the poll-vs-
// subscribe choice is transparent to liveness monitoring. w archives every
// raw page body when StoreMessagesToFile is enabled (archive.NoopWriter
// otherwise).
func NewPoller(client *ansharclient.Client, operator string, urlFor func(requestorID string) string, requestor func() string, m store.Map, w archive.Writer) *Poller {
	return &Poller{client: client, operator: operator, urlFor: urlFor, requestor: requestor, m: m, archive: w}
}

// PollET runs one polling cycle for the ET feed, following MoreData pages
// until exhausted, and enqueues every matching journey onto etQueue.
func (p *Poller) PollET(ctx context.Context, etQueue *ETQueue) error {
	url := p.urlFor(p.requestor())
	pages := 0
	for {
		body, err := p.client.Get(ctx, url)
		if err != nil {
			observability.UpstreamErrors.WithLabelValues(observability.KindUpstreamUnavailable, "ET").Inc()
			return fmt.Errorf("anshar: poll ET: %w", err)
		}
		pages++
		observability.MoreDataPages.WithLabelValues("ET").Inc()
		if err := p.archive.Write("ET", p.requestor(), body); err != nil {
			log.Printf("[anshar] failed to archive ET page %d: %v", pages, err)
		}

		doc, err := siri.DecodeServiceDelivery(bytes.NewReader(body))
		if err != nil {
			observability.UpstreamErrors.WithLabelValues(observability.KindMalformedPayload, "ET").Inc()
			return fmt.Errorf("anshar: decode ET page %d: %w", pages, err)
		}

		for _, j := range siri.ETJourneysForOperator(doc.ServiceDelivery, p.operator) {
			if err := etQueue.Enqueue(ctx, j); err != nil {
				return fmt.Errorf("anshar: ET enqueue: %w", err)
			}
		}
		if err := RecordReceived(ctx, p.m, siri.KindET, time.Now()); err != nil {
			log.Printf("[anshar] failed to record ET liveness: %v", err)
		}

		if !doc.ServiceDelivery.MoreData {
			return nil
		}
	}
}

// PollSX runs one polling cycle for the SX feed, following MoreData pages
// until exhausted, and enqueues every matching situation onto sxQueue.
func (p *Poller) PollSX(ctx context.Context, sxQueue *SXQueue) error {
	url := p.urlFor(p.requestor())
	pages := 0
	for {
		body, err := p.client.Get(ctx, url)
		if err != nil {
			observability.UpstreamErrors.WithLabelValues(observability.KindUpstreamUnavailable, "SX").Inc()
			return fmt.Errorf("anshar: poll SX: %w", err)
		}
		pages++
		observability.MoreDataPages.WithLabelValues("SX").Inc()
		if err := p.archive.Write("SX", p.requestor(), body); err != nil {
			log.Printf("[anshar] failed to archive SX page %d: %v", pages, err)
		}

		doc, err := siri.DecodeServiceDelivery(bytes.NewReader(body))
		if err != nil {
			observability.UpstreamErrors.WithLabelValues(observability.KindMalformedPayload, "SX").Inc()
			return fmt.Errorf("anshar: decode SX page %d: %w", pages, err)
		}

		for _, s := range siri.SXSituationsForOperator(doc.ServiceDelivery, p.operator) {
			if err := sxQueue.Enqueue(ctx, s); err != nil {
				return fmt.Errorf("anshar: SX enqueue: %w", err)
			}
		}
		if err := RecordReceived(ctx, p.m, siri.KindSX, time.Now()); err != nil {
			log.Printf("[anshar] failed to record SX liveness: %v", err)
		}

		if !doc.ServiceDelivery.MoreData {
			return nil
		}
	}
}
