package siri

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/entur/ukur/internal/model"
)

// SubscriptionKind distinguishes the two subscribable feeds.
type SubscriptionKind string

const (
	KindET SubscriptionKind = "et"
	KindSX SubscriptionKind = "sx"
)

// SubscriptionRequest is the body POSTed to the Anshar subscription URL by
// the renew workflow (spec.md §4.D.1).
type SubscriptionRequest struct {
	XMLName              xml.Name              `xml:"SubscriptionRequest"`
	RequestTimestamp     time.Time             `xml:"RequestTimestamp"`
	RequestorRef         string                `xml:"RequestorRef"`
	MessageIdentifier    string                `xml:"MessageIdentifier"`
	ConsumerAddress      string                `xml:"ConsumerAddress"`
	SubscriptionContext  SubscriptionContext   `xml:"SubscriptionContext"`
	ETSubscription       *ETSubscriptionReq    `xml:"EstimatedTimetableSubscriptionRequest,omitempty"`
	SXSubscription       *SXSubscriptionReq    `xml:"SituationExchangeSubscriptionRequest,omitempty"`
}

// SubscriptionContext carries the heartbeat interval negotiated for the
// whole request.
type SubscriptionContext struct {
	HeartbeatIntervalMS int64 `xml:"HeartbeatInterval"`
}

// ETSubscriptionReq is the ET-specific subscription structure.
type ETSubscriptionReq struct {
	SubscriberRef         string    `xml:"SubscriberRef"`
	SubscriptionIdentifier string   `xml:"SubscriptionIdentifier"`
	InitialTerminationTime time.Time `xml:"InitialTerminationTime"`
}

// SXSubscriptionReq is the SX-specific subscription structure.
type SXSubscriptionReq struct {
	SubscriberRef          string    `xml:"SubscriberRef"`
	SubscriptionIdentifier string    `xml:"SubscriptionIdentifier"`
	InitialTerminationTime time.Time `xml:"InitialTerminationTime"`
}

// NewSubscriptionRequest builds one subscription request for kind, per
// spec.md §4.D.1: requestor id, a unique message qualifier, the callback
// address, now, the heartbeat interval and one kind-specific subscription
// carrying initialTerminationTime = now + SUBSCRIPTION_DURATION_MIN minutes.
func NewSubscriptionRequest(kind SubscriptionKind, requestorID, messageQualifier, callbackURL string, now time.Time) SubscriptionRequest {
	expiry := now.Add(time.Duration(model.SubscriptionDurationMin) * time.Minute)
	subID := requestorID + "-" + strings.ToUpper(string(kind))

	req := SubscriptionRequest{
		RequestTimestamp:  now,
		RequestorRef:      requestorID,
		MessageIdentifier: messageQualifier,
		ConsumerAddress:   callbackURL,
		SubscriptionContext: SubscriptionContext{
			HeartbeatIntervalMS: model.HeartbeatIntervalMS,
		},
	}

	switch kind {
	case KindET:
		req.ETSubscription = &ETSubscriptionReq{
			SubscriberRef:          requestorID,
			SubscriptionIdentifier: subID,
			InitialTerminationTime: expiry,
		}
	case KindSX:
		req.SXSubscription = &SXSubscriptionReq{
			SubscriberRef:          requestorID,
			SubscriptionIdentifier: subID,
			InitialTerminationTime: expiry,
		}
	}
	return req
}

// Marshal renders the request as an XML document body, version-stamped
// with the SIRI version this module speaks.
func (r SubscriptionRequest) Marshal() ([]byte, error) {
	type envelope struct {
		XMLName xml.Name            `xml:"Siri"`
		Version string              `xml:"version,attr"`
		Request SubscriptionRequest `xml:"SubscriptionRequest"`
	}
	return xml.MarshalIndent(envelope{Version: model.SiriVersion, Request: r}, "", "  ")
}
