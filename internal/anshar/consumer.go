package anshar

import (
	"context"

	"github.com/entur/ukur/internal/matching"
	"github.com/entur/ukur/internal/siri"
	"github.com/entur/ukur/internal/sx"
)

// RunETConsumer drains etQueue into engine until ctx is cancelled. It is
// meant to run in its own goroutine for the process lifetime.
func RunETConsumer(ctx context.Context, etQueue *ETQueue, engine *matching.Engine) {
	etQueue.Run(ctx, func(j siri.EstimatedVehicleJourney) {
		engine.Process(j)
	})
}

// RunSXConsumer drains sxQueue into processor until ctx is cancelled.
func RunSXConsumer(ctx context.Context, sxQueue *SXQueue, processor sx.Processor) {
	sxQueue.Run(ctx, func(s siri.PtSituationElement) {
		processor.Process([]siri.PtSituationElement{s})
	})
}
