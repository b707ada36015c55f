package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/urn"
)

type AgreementRepository struct {
	mu          sync.RWMutex
	byId        map[string]*model.Agreement
	transferRef map[string]bool // agreementId -> referenced by >=1 transfer
}

func NewAgreementRepository() *AgreementRepository {
	return &AgreementRepository{
		byId:        make(map[string]*model.Agreement),
		transferRef: make(map[string]bool),
	}
}

func (r *AgreementRepository) GetById(_ context.Context, id urn.AgreementId) (*model.Agreement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var row, ok = r.byId[id.String()]
	if !ok {
		return nil, dsperr.New(dsperr.KindNotFound, "agreement not found")
	}
	var cp = *row
	return &cp, nil
}

func (r *AgreementRepository) Create(_ context.Context, agreement *model.Agreement) (store.Created[*model.Agreement], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byId[agreement.Id.String()]; ok {
		if !message.DeepEqualPayload(existing.Content, agreement.Content) {
			return store.Created[*model.Agreement]{}, dsperr.New(dsperr.KindConflict, "agreement content is immutable after creation")
		}
		var cp = *existing
		return store.Created[*model.Agreement]{Row: &cp, AlreadyExisted: true}, nil
	}
	var cp = *agreement
	cp.CreatedAt = time.Now().UTC()
	r.byId[cp.Id.String()] = &cp
	var out = cp
	return store.Created[*model.Agreement]{Row: &out}, nil
}

// SetActive is the only mutation Agreement permits after creation
// (spec.md §8, scenario 6: agreement immutability).
func (r *AgreementRepository) SetActive(_ context.Context, id urn.AgreementId, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var row, ok = r.byId[id.String()]
	if !ok {
		return dsperr.New(dsperr.KindNotFound, "agreement not found")
	}
	row.Active = active
	return nil
}

func (r *AgreementRepository) ReferencedByTransfer(_ context.Context, id urn.AgreementId) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transferRef[id.String()], nil
}

// MarkReferenced records that a transfer now references this agreement. The
// in-memory TransferRepository does not call it, so ReferencedByTransfer
// reports only what MarkReferenced has recorded; the Postgres backend
// derives the answer from its foreign key instead.
func (r *AgreementRepository) MarkReferenced(id urn.AgreementId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transferRef[id.String()] = true
}

type ParticipantRepository struct {
	mu   sync.RWMutex
	byId map[string]*model.Participant
}

func NewParticipantRepository() *ParticipantRepository {
	return &ParticipantRepository{byId: make(map[string]*model.Participant)}
}

func (r *ParticipantRepository) GetById(_ context.Context, id urn.ParticipantId) (*model.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var row, ok = r.byId[id.String()]
	if !ok {
		return nil, dsperr.New(dsperr.KindNotFound, "participant not found")
	}
	var cp = *row
	return &cp, nil
}

func (r *ParticipantRepository) Upsert(_ context.Context, p *model.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cp = *p
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.byId[cp.Id.String()] = &cp
	return nil
}
