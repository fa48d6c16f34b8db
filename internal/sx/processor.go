// Package sx handles Situation Exchange payloads (spec.md §4.D): unlike ET,
// SX situations are not matched against subscriptions by this module (no
// per-stop/line SX filtering is specified); they are simply handed to a
// Processor for whatever downstream consumption a deployment wants. A
// logging reference Processor is provided.
package sx

import (
	"log"

	"github.com/entur/ukur/internal/siri"
)

// Processor consumes PT situations extracted from one SX delivery.
type Processor interface {
	Process(situations []siri.PtSituationElement)
}

// LogProcessor logs every situation it receives.
type LogProcessor struct {
	logger *log.Logger
}

// NewLogProcessor returns a Processor that logs to the default logger.
func NewLogProcessor() *LogProcessor {
	return &LogProcessor{logger: log.Default()}
}

// Process implements Processor.
func (p *LogProcessor) Process(situations []siri.PtSituationElement) {
	for _, s := range situations {
		p.logger.Printf("[sx] situation participant=%s summary=%q", s.ParticipantRef, s.Summary)
	}
}
