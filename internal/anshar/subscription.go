package anshar

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/entur/ukur/internal/ansharclient"
	"github.com/entur/ukur/internal/model"
	"github.com/entur/ukur/internal/observability"
	"github.com/entur/ukur/internal/siri"
	"github.com/entur/ukur/internal/store"
)

// Renewer POSTs a SubscriptionRequest for one SIRI kind to the Anshar
// subscription URL (spec.md §4.D.1), recording nothing locally: liveness is
// tracked purely via AnsharLastReceived-<kind>, updated as deliveries
// actually arrive, not as subscribe calls succeed.
type Renewer struct {
	client          *ansharclient.Client
	subscriptionURL string
	callbackURL     string
	requestor       *RequestorID
}

// NewRenewer builds a Renewer.
func NewRenewer(client *ansharclient.Client, subscriptionURL, callbackURL string, requestor *RequestorID) *Renewer {
	return &Renewer{client: client, subscriptionURL: subscriptionURL, callbackURL: callbackURL, requestor: requestor}
}

// Renew sends one subscription (or re-subscription) request for kind. The
// callback address carries the kind suffix per spec.md §4.D.1:
// <ownBaseURL>/siriMessages/<requestorId>/<kind>, so a push for this kind
// always lands on the matching sub-route of the callback handler.
func (r *Renewer) Renew(ctx context.Context, kind siri.SubscriptionKind) error {
	qualifier := fmt.Sprintf("%s-%d", r.requestor.Value(), time.Now().UnixNano())
	callbackURL := r.callbackURL + "/" + string(kind)
	req := siri.NewSubscriptionRequest(kind, r.requestor.Value(), qualifier, callbackURL, time.Now())

	body, err := req.Marshal()
	if err != nil {
		observability.SubscriptionRenewals.WithLabelValues(string(kind), "marshal_error").Inc()
		return fmt.Errorf("anshar: marshal subscription request: %w", err)
	}

	if _, err := r.client.Post(ctx, r.subscriptionURL, body); err != nil {
		observability.SubscriptionRenewals.WithLabelValues(string(kind), "rejected").Inc()
		return fmt.Errorf("anshar: post subscription request: %w", err)
	}

	observability.SubscriptionRenewals.WithLabelValues(string(kind), "accepted").Inc()
	log.Printf("[anshar] renewed %s subscription for requestor=%s", kind, r.requestor.Value())
	return nil
}

// LivenessChecker inspects AnsharLastReceived-<kind> and triggers a Renew
// whenever a feed has gone quiet for longer than model.LivenessThreshold
// (spec.md §4.D.1 / scenario 6), independently per feed kind — an ET
// renewal never implies an SX renewal or vice versa. It is driven by the
// AnsharSubscriptionChecker trigger (internal/trigger), not its own timer,
// so the leader+idle gate from spec.md §4.C applies to it like any other
// workflow; Check itself calls Renew directly, bypassing the scheduler,
// exactly as spec.md §4.D.1 describes for the liveness-triggered path.
type LivenessChecker struct {
	m       store.Map
	renewer *Renewer
	kinds   []siri.SubscriptionKind
}

// NewLivenessChecker builds a checker that inspects every kind in kinds.
func NewLivenessChecker(m store.Map, renewer *Renewer, kinds []siri.SubscriptionKind) *LivenessChecker {
	return &LivenessChecker{m: m, renewer: renewer, kinds: kinds}
}

// Check runs one liveness pass over every configured kind. Intended to be
// called from the AnsharSubscriptionChecker trigger's fire callback.
func (c *LivenessChecker) Check(ctx context.Context) {
	now := time.Now()
	for _, kind := range c.kinds {
		key := model.LastReceivedKey(string(kind))
		raw, found, err := c.m.Get(ctx, key)
		if err != nil {
			log.Printf("[anshar] liveness check: get %s: %v", key, err)
			continue
		}
		if !found {
			// No delivery has ever been recorded for this kind; nothing to
			// compare against yet, so we do not renew speculatively.
			continue
		}

		last, err := parseEpochMillis(raw)
		if err != nil {
			log.Printf("[anshar] liveness check: malformed timestamp at %s: %v", key, err)
			continue
		}

		if now.Sub(last) > model.LivenessThreshold {
			log.Printf("[anshar] %s feed stale (last received %v ago), renewing subscription", kind, now.Sub(last))
			if err := c.renewer.Renew(ctx, kind); err != nil {
				log.Printf("[anshar] liveness-triggered renew failed for %s: %v", kind, err)
			}
		}
	}
}

// RecordReceived stamps AnsharLastReceived-<kind> with now, called whenever
// a delivery for kind actually arrives (polling or push callback). Stored as
// decimal epoch milliseconds per spec.md §6 ("AnsharLastReceived-<kind> →
// decimal epoch milliseconds as string"), not a formatted timestamp, so any
// other replica or tool reading the shared map sees the literal wire format.
func RecordReceived(ctx context.Context, m store.Map, kind siri.SubscriptionKind, now time.Time) error {
	return m.Set(ctx, model.LastReceivedKey(string(kind)), strconv.FormatInt(now.UnixMilli(), 10))
}

func parseEpochMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
