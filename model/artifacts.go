package model

import (
	"encoding/json"
	"time"

	"github.com/dspconnect/core/urn"
)

// Offer is an immutable record of contract terms proposed during a
// negotiation, tied to the message that carried it.
type Offer struct {
	Id        urn.OfferId
	ProcessId urn.ProcessId
	Content   json.RawMessage
	MessageId urn.MessageId
}

// Agreement is the sealed, opaque artifact a negotiation concludes on.
// Content is immutable after creation; Active is the only field that
// changes, through AgreementRepository.SetActive. SetActive sets Active to
// either value and does not check the negotiation's state.
type Agreement struct {
	Id                    urn.AgreementId
	ProcessId             urn.ProcessId
	ConsumerParticipantId urn.ParticipantId
	ProviderParticipantId urn.ParticipantId
	Content               json.RawMessage
	Active                bool
	CreatedAt             time.Time
}

// Participant is a named peer identity with a callback address.
type Participant struct {
	Id              urn.ParticipantId
	Name            string
	CallbackAddress string
	CreatedAt       time.Time
}

// NotificationCategory scopes a subscription/notification to one of the
// event families the bus carries.
type NotificationCategory string

const (
	CategoryCatalog   NotificationCategory = "Catalog"
	CategoryCN        NotificationCategory = "CN"
	CategoryTP        NotificationCategory = "TP"
	CategoryDataPlane NotificationCategory = "DataPlane"
)

// Subscription is a standing registration for at-least-once delivery of
// events in one or more categories.
type Subscription struct {
	Id              urn.URN
	CallbackAddress string
	Categories      []NotificationCategory
	ExpiresAt       *time.Time
	Active          bool
}

func (s *Subscription) Subscribes(c NotificationCategory) bool {
	if !s.Active {
		return false
	}
	for _, have := range s.Categories {
		if have == c {
			return true
		}
	}
	return false
}

// NotificationStatus is the outcome of a single delivery attempt.
type NotificationStatus string

const (
	NotificationOk      NotificationStatus = "Ok"
	NotificationPending NotificationStatus = "Pending"
)

// Notification pins exactly one delivery attempt for one subscription
// (invariant 3 of spec.md §8).
type Notification struct {
	Id             urn.URN
	SubscriptionId urn.URN
	Category       NotificationCategory
	Kind           string
	ProcessId      urn.ProcessId
	Content        json.RawMessage
	Status         NotificationStatus
	Attempt        int
	CreatedAt      time.Time
}
