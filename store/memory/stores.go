package memory

import "github.com/dspconnect/core/store"

// NewStores assembles a complete in-memory store.Stores, the DB_TYPE=memory
// backend used by tests and by IS_LOCAL=true deployments (spec.md §6).
func NewStores() *store.Stores {
	return &store.Stores{
		Negotiations:  NewNegotiationRepository(),
		Transfers:     NewTransferRepository(),
		Messages:      NewMessageRepository(),
		Offers:        NewOfferRepository(),
		Agreements:    NewAgreementRepository(),
		Participants:  NewParticipantRepository(),
		Subscriptions: NewSubscriptionRepository(),
		Notifications: NewNotificationRepository(),
	}
}
