// Package siri holds the typed SIRI DTOs this module reads and writes, and
// the thin decode/encode helpers around them. No third-party SIRI or XML
// library appears anywhere in the retrieval pack this module was built
// from, so the wire layer is plain encoding/xml — see SPEC_FULL.md's
// DOMAIN STACK table for why that is a deliberate, justified choice
// rather than a default.
package siri

import (
	"encoding/xml"
	"time"
)

// Siri is the root element of every SIRI document this module handles,
// whether it arrives as a polling response body or a pushed callback body.
type Siri struct {
	XMLName         xml.Name        `xml:"Siri"`
	ServiceDelivery ServiceDelivery `xml:"ServiceDelivery"`
}

// ServiceDelivery carries zero or more ET/SX delivery frames plus the
// MoreData pagination flag.
type ServiceDelivery struct {
	ResponseTimestamp              time.Time                        `xml:"ResponseTimestamp"`
	MoreData                       bool                              `xml:"MoreData"`
	EstimatedTimetableDeliveries   []EstimatedTimetableDelivery      `xml:"EstimatedTimetableDelivery"`
	SituationExchangeDeliveries    []SituationExchangeDelivery       `xml:"SituationExchangeDelivery"`
}

// EstimatedTimetableDelivery wraps the per-journey frames of one ET delivery.
type EstimatedTimetableDelivery struct {
	EstimatedJourneyVersionFrames []EstimatedJourneyVersionFrame `xml:"EstimatedJourneyVersionFrame"`
}

// EstimatedJourneyVersionFrame groups the journeys that share a version.
type EstimatedJourneyVersionFrame struct {
	EstimatedVehicleJourneies []EstimatedVehicleJourney `xml:"EstimatedVehicleJourney"`
}

// EstimatedVehicleJourney is one ET update for one vehicle journey.
type EstimatedVehicleJourney struct {
	LineRef            string               `xml:"LineRef"`
	VehicleRef          string               `xml:"VehicleRef"`
	OperatorRef         string               `xml:"OperatorRef"`
	ServiceFeatureRefs  []string             `xml:"ServiceFeatureRef"`
	IsCancellation      bool                 `xml:"Cancellation"`
	RecordedCalls       []RecordedCall       `xml:"RecordedCalls>RecordedCall"`
	EstimatedCalls      []EstimatedCall      `xml:"EstimatedCalls>EstimatedCall"`
}

// HasServiceFeature reports whether any ServiceFeatureRef case-insensitively
// equals the given value (used for the freightTrain ignore filter).
func (j EstimatedVehicleJourney) HasServiceFeature(value string) bool {
	for _, ref := range j.ServiceFeatureRefs {
		if equalFold(ref, value) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// RecordedCall is a stop already served by the journey.
type RecordedCall struct {
	StopPointRef       string     `xml:"StopPointRef"`
	AimedDepartureTime *time.Time `xml:"AimedDepartureTime"`
}

// CallStatus mirrors the SIRI arrival/departure status enumeration; only the
// DELAYED value is semantically relevant to this module.
type CallStatus string

// DelayedStatus is the one CallStatus value the matching engine inspects.
const DelayedStatus CallStatus = "delayed"

// EstimatedCall is a stop the journey has not yet reached.
type EstimatedCall struct {
	StopPointRef              string            `xml:"StopPointRef"`
	AimedArrivalTime          *time.Time        `xml:"AimedArrivalTime"`
	ExpectedArrivalTime       *time.Time        `xml:"ExpectedArrivalTime"`
	ArrivalStatus             CallStatus        `xml:"ArrivalStatus"`
	AimedDepartureTime        *time.Time        `xml:"AimedDepartureTime"`
	ExpectedDepartureTime     *time.Time        `xml:"ExpectedDepartureTime"`
	DepartureStatus           CallStatus        `xml:"DepartureStatus"`
	ArrivalBoardingActivity   string            `xml:"ArrivalBoardingActivity"`
	DepartureBoardingActivity string            `xml:"DepartureBoardingActivity"`
	IsCancellation            bool              `xml:"Cancellation"`
}

// ExpectedOrAimedDeparture returns ExpectedDepartureTime when present,
// falling back to AimedDepartureTime, per spec.md §4.E step 3.
func (c EstimatedCall) ExpectedOrAimedDeparture() *time.Time {
	if c.ExpectedDepartureTime != nil {
		return c.ExpectedDepartureTime
	}
	return c.AimedDepartureTime
}

// SituationExchangeDelivery wraps the situations of one SX delivery.
type SituationExchangeDelivery struct {
	Situations []PtSituationElement `xml:"Situations>PtSituationElement"`
}

// PtSituationElement is one free-text disruption notice.
type PtSituationElement struct {
	ParticipantRef string `xml:"ParticipantRef"`
	Summary        string `xml:"Summary"`
}
