package siri

import (
	"encoding/xml"
	"fmt"
	"io"
)

// DecodeServiceDelivery decodes a full SIRI document, as returned by a
// polling GET or delivered to the push callback, into its typed form.
func DecodeServiceDelivery(r io.Reader) (*Siri, error) {
	var doc Siri
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("siri: malformed document: %w", err)
	}
	return &doc, nil
}

// ETJourneysForOperator walks every EstimatedJourneyVersionFrame in the
// delivery and returns only the journeys attributed to operator, mirroring
// the XPath filter
// //EstimatedVehicleJourney[OperatorRef/text() = <operator>].
func ETJourneysForOperator(d ServiceDelivery, operator string) []EstimatedVehicleJourney {
	var out []EstimatedVehicleJourney
	for _, et := range d.EstimatedTimetableDeliveries {
		for _, frame := range et.EstimatedJourneyVersionFrames {
			for _, j := range frame.EstimatedVehicleJourneies {
				if j.OperatorRef == operator {
					out = append(out, j)
				}
			}
		}
	}
	return out
}

// SXSituationsForOperator mirrors the XPath filter
// //PtSituationElement[ParticipantRef/text() = <operator>].
func SXSituationsForOperator(d ServiceDelivery, operator string) []PtSituationElement {
	var out []PtSituationElement
	for _, sx := range d.SituationExchangeDeliveries {
		for _, s := range sx.Situations {
			if s.ParticipantRef == operator {
				out = append(out, s)
			}
		}
	}
	return out
}
