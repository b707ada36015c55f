package postgres

import (
	"database/sql"

	"github.com/dspconnect/core/store"
)

// NewStores assembles a complete Postgres-backed store.Stores over a single
// *sql.DB, the DB_TYPE=postgres backend of spec.md §6.
func NewStores(db *sql.DB) *store.Stores {
	return &store.Stores{
		Negotiations:  NewNegotiationRepository(db),
		Transfers:     NewTransferRepository(db),
		Messages:      NewMessageRepository(db),
		Offers:        NewOfferRepository(db),
		Agreements:    NewAgreementRepository(db),
		Participants:  NewParticipantRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}
