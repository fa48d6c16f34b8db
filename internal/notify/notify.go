// Package notify is the delivery boundary onto the external notification
// channel (spec.md §1: "the actual notification channel... is out of
// scope"). The matching engine calls Notifier with everything it derived;
// a reference logging adapter is provided so this module's tests and a
// minimal standalone deployment have somewhere for notifications to go.
package notify

import (
	"log"

	"github.com/entur/ukur/internal/model"
	"github.com/entur/ukur/internal/observability"
)

// Notifier receives deviation notifications for matched subscriptions.
type Notifier interface {
	// NotifyOnStops delivers a per-stop deviation summary, used when the
	// subscription only cares about its own origin/destination stop.
	NotifyOnStops(subscriptionID string, stops []model.DeviatingStop)

	// NotifyFullMessage delivers the full underlying vehicle journey
	// reference, used for every subscription whose LineRefs or VehicleRefs
	// name the journey's line or vehicle, whether or not it also has stop
	// points.
	NotifyFullMessage(subscriptionID, lineRef, vehicleRef string)
}

// LogNotifier logs every notification instead of delivering it anywhere.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier returns a Notifier that logs to the default logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.Default()}
}

// NotifyOnStops implements Notifier.
func (n *LogNotifier) NotifyOnStops(subscriptionID string, stops []model.DeviatingStop) {
	observability.NotifiedSubscriptions.WithLabelValues("on_stops").Inc()
	n.logger.Printf("[notify] subscription=%s notifyOnStops stops=%d", subscriptionID, len(stops))
	for _, s := range stops {
		n.logger.Printf("[notify]   stop=%s kind=%v delayedDeparture=%t delayedArrival=%t",
			s.StopPointRef, s.Kind, s.DelayedDeparture, s.DelayedArrival)
	}
}

// NotifyFullMessage implements Notifier.
func (n *LogNotifier) NotifyFullMessage(subscriptionID, lineRef, vehicleRef string) {
	observability.NotifiedSubscriptions.WithLabelValues("full_message").Inc()
	n.logger.Printf("[notify] subscription=%s notifyFullMessage line=%s vehicle=%s", subscriptionID, lineRef, vehicleRef)
}
