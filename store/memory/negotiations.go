// Package memory implements every store.Repository over in-process maps,
// guarded by sync.RWMutex, for DB_TYPE=memory (tests and IS_LOCAL=true
// development per spec.md §6). It is a deliberate stdlib-only component:
// no third-party in-memory store in the retrieval pack fits a keyed,
// peer-idempotent aggregate store better than a guarded map (see DESIGN.md).
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/urn"
)

type NegotiationRepository struct {
	mu    sync.RWMutex
	byId  map[string]*model.NegotiationProcess
	locks map[string]*sync.Mutex
}

func NewNegotiationRepository() *NegotiationRepository {
	return &NegotiationRepository{
		byId:  make(map[string]*model.NegotiationProcess),
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *NegotiationRepository) GetById(_ context.Context, id urn.ProcessId) (*model.NegotiationProcess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var row, ok = r.byId[id.String()]
	if !ok {
		return nil, dsperr.New(dsperr.KindNotFound, "negotiation process not found")
	}
	return row.Clone(), nil
}

func (r *NegotiationRepository) GetByPeerPid(_ context.Context, peerPid urn.ProcessId, role model.Role) (*model.NegotiationProcess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.byId {
		var mine *urn.ProcessId
		if role == model.RoleProvider {
			mine = row.ConsumerPid // the peer of a Provider is the Consumer
		} else {
			mine = row.ProviderPid
		}
		if mine != nil && mine.Equal(peerPid.URN) {
			return row.Clone(), nil
		}
	}
	return nil, dsperr.New(dsperr.KindNotFound, "negotiation process not found for peer pid")
}

func (r *NegotiationRepository) ListByFilter(_ context.Context, f store.NegotiationFilter) ([]*model.NegotiationProcess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.NegotiationProcess
	for _, row := range r.byId {
		if f.State != nil && row.State != *f.State {
			continue
		}
		if f.AgreementId != nil && (row.AgreementId == nil || !row.AgreementId.Equal(f.AgreementId.URN)) {
			continue
		}
		out = append(out, row.Clone())
	}
	return out, nil
}

func (r *NegotiationRepository) Create(_ context.Context, proc *model.NegotiationProcess) (store.Created[*model.NegotiationProcess], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.byId {
		if samePeerPair(row, proc) {
			return store.Created[*model.NegotiationProcess]{Row: row.Clone(), AlreadyExisted: true}, nil
		}
	}

	var now = time.Now().UTC()
	var cp = proc.Clone()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.byId[cp.Id.String()] = cp
	return store.Created[*model.NegotiationProcess]{Row: cp.Clone()}, nil
}

// samePeerPair implements the idempotent-creation-by-peer-key contract:
// two processes started by the same initiating side's pid never duplicate.
func samePeerPair(existing, incoming *model.NegotiationProcess) bool {
	if existing.InitiatedBy != incoming.InitiatedBy {
		return false
	}
	var existingPid = existing.PidForRole(existing.InitiatedBy)
	var incomingPid = incoming.PidForRole(incoming.InitiatedBy)
	return existingPid != nil && incomingPid != nil && existingPid.Equal(incomingPid.URN)
}

func (r *NegotiationRepository) Update(_ context.Context, id urn.ProcessId, edit store.NegotiationEdit) (*model.NegotiationProcess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var row, ok = r.byId[id.String()]
	if !ok {
		return nil, dsperr.New(dsperr.KindNotFound, "negotiation process not found")
	}
	if edit.ProviderPid != nil {
		row.ProviderPid = edit.ProviderPid
	}
	if edit.ConsumerPid != nil {
		row.ConsumerPid = edit.ConsumerPid
	}
	if edit.State != nil {
		row.State = *edit.State
	}
	if edit.AssociatedProvider != nil {
		row.AssociatedProvider = edit.AssociatedProvider
	}
	if edit.AssociatedConsumer != nil {
		row.AssociatedConsumer = edit.AssociatedConsumer
	}
	if edit.AgreementId != nil {
		row.AgreementId = edit.AgreementId
	}
	row.UpdatedAt = time.Now().UTC()
	return row.Clone(), nil
}

func (r *NegotiationRepository) Delete(_ context.Context, id urn.ProcessId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byId, id.String())
	delete(r.locks, id.String())
	return nil
}

func (r *NegotiationRepository) WithProcessLock(ctx context.Context, id urn.ProcessId, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	var lock, ok = r.locks[id.String()]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id.String()] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}
