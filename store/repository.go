// Package store defines the Repository contracts C3 requires: idempotent
// creation keyed by peer identifiers, optimistic-timestamp updates, and a
// closed error taxonomy (dsperr.NotFound / Conflict / Backend — no other
// kind leaks past a Repository method, per spec.md §4.1).
package store

import (
	"context"

	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

// Created wraps a newly-created (or idempotently-reused) row.
type Created[T any] struct {
	Row            T
	AlreadyExisted bool
}

// NegotiationEdit mutates selected fields of a NegotiationProcess; fields
// left nil are unchanged. Each Update applies its edit as one atomic write
// (the in-memory backend under its repository mutex, Postgres as a single
// UPDATE); it does not take WithProcessLock, which is the separate primitive
// for serializing multi-step work against one process.
type NegotiationEdit struct {
	ProviderPid        *urn.ProcessId
	ConsumerPid        *urn.ProcessId
	State              *model.CnState
	AssociatedProvider *urn.ParticipantId
	AssociatedConsumer *urn.ParticipantId
	AgreementId        *urn.AgreementId
}

type NegotiationFilter struct {
	State       *model.CnState
	AgreementId *urn.AgreementId
}

// NegotiationRepository persists NegotiationProcess aggregates.
type NegotiationRepository interface {
	GetById(ctx context.Context, id urn.ProcessId) (*model.NegotiationProcess, error)
	GetByPeerPid(ctx context.Context, peerPid urn.ProcessId, role model.Role) (*model.NegotiationProcess, error)
	ListByFilter(ctx context.Context, f NegotiationFilter) ([]*model.NegotiationProcess, error)
	Create(ctx context.Context, proc *model.NegotiationProcess) (Created[*model.NegotiationProcess], error)
	Update(ctx context.Context, id urn.ProcessId, edit NegotiationEdit) (*model.NegotiationProcess, error)
	Delete(ctx context.Context, id urn.ProcessId) error

	// WithProcessLock serializes concurrent updates to the same process
	// row, implementing the "serialized update" primitive of spec.md §5.
	WithProcessLock(ctx context.Context, id urn.ProcessId, fn func(ctx context.Context) error) error
}

type TransferEdit struct {
	ProviderPid    *urn.ProcessId
	ConsumerPid    *urn.ProcessId
	State          *model.TpState
	StateAttribute *model.TpStateAttribute
	DataAddress    **model.DataAddress
	ErrorDetails   *string
}

type TransferFilter struct {
	State       *model.TpState
	AgreementId *urn.AgreementId
}

// TransferRepository persists TransferProcess aggregates.
type TransferRepository interface {
	GetById(ctx context.Context, id urn.ProcessId) (*model.TransferProcess, error)
	GetByPeerPid(ctx context.Context, peerPid urn.ProcessId, role model.Role) (*model.TransferProcess, error)
	ListByFilter(ctx context.Context, f TransferFilter) ([]*model.TransferProcess, error)
	Create(ctx context.Context, proc *model.TransferProcess) (Created[*model.TransferProcess], error)
	Update(ctx context.Context, id urn.ProcessId, edit TransferEdit) (*model.TransferProcess, error)
	Delete(ctx context.Context, id urn.ProcessId) error

	WithProcessLock(ctx context.Context, id urn.ProcessId, fn func(ctx context.Context) error) error
}

// MessageRepository appends and lists the message log owned by each
// process (spec.md §3, "ownership").
type MessageRepository interface {
	Append(ctx context.Context, msg *model.Message) error
	ListByProcess(ctx context.Context, processId urn.ProcessId) ([]*model.Message, error)
	GetById(ctx context.Context, id urn.MessageId) (*model.Message, error)
}

// OfferRepository persists Offer records.
type OfferRepository interface {
	Create(ctx context.Context, offer *model.Offer) error
	ListByProcess(ctx context.Context, processId urn.ProcessId) ([]*model.Offer, error)
}

// AgreementRepository persists Agreement artifacts. Content is immutable
// after Create; SetActive is the only permitted mutation.
type AgreementRepository interface {
	GetById(ctx context.Context, id urn.AgreementId) (*model.Agreement, error)
	Create(ctx context.Context, agreement *model.Agreement) (Created[*model.Agreement], error)
	SetActive(ctx context.Context, id urn.AgreementId, active bool) error
	// ReferencedByTransfer reports whether any transfer process still
	// references id, used to decide whether deleting a negotiation may
	// cascade to its agreement (spec.md §3, "ownership").
	ReferencedByTransfer(ctx context.Context, id urn.AgreementId) (bool, error)
}

// ParticipantRepository persists known peer identities.
type ParticipantRepository interface {
	GetById(ctx context.Context, id urn.ParticipantId) (*model.Participant, error)
	Upsert(ctx context.Context, p *model.Participant) error
}

// SubscriptionRepository persists event-bus subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *model.Subscription) error
	ListActiveByCategory(ctx context.Context, category model.NotificationCategory) ([]*model.Subscription, error)
	Deactivate(ctx context.Context, id urn.URN) error
}

// NotificationRepository persists one row per delivery attempt.
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListPending(ctx context.Context, limit int) ([]*model.Notification, error)
	MarkDelivered(ctx context.Context, id urn.URN) error
	IncrementAttempt(ctx context.Context, id urn.URN) error
}

// Stores bundles every repository the core depends on, the unit the
// orchestrator is constructed with.
type Stores struct {
	Negotiations   NegotiationRepository
	Transfers      TransferRepository
	Messages       MessageRepository
	Offers         OfferRepository
	Agreements     AgreementRepository
	Participants   ParticipantRepository
	Subscriptions  SubscriptionRepository
	Notifications  NotificationRepository
}
