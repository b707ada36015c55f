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

type TransferRepository struct {
	mu    sync.RWMutex
	byId  map[string]*model.TransferProcess
	locks map[string]*sync.Mutex
}

func NewTransferRepository() *TransferRepository {
	return &TransferRepository{
		byId:  make(map[string]*model.TransferProcess),
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *TransferRepository) GetById(_ context.Context, id urn.ProcessId) (*model.TransferProcess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var row, ok = r.byId[id.String()]
	if !ok {
		return nil, dsperr.New(dsperr.KindNotFound, "transfer process not found")
	}
	return row.Clone(), nil
}

func (r *TransferRepository) GetByPeerPid(_ context.Context, peerPid urn.ProcessId, role model.Role) (*model.TransferProcess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.byId {
		var mine *urn.ProcessId
		if role == model.RoleProvider {
			mine = row.ConsumerPid
		} else {
			mine = row.ProviderPid
		}
		if mine != nil && mine.Equal(peerPid.URN) {
			return row.Clone(), nil
		}
	}
	return nil, dsperr.New(dsperr.KindNotFound, "transfer process not found for peer pid")
}

func (r *TransferRepository) ListByFilter(_ context.Context, f store.TransferFilter) ([]*model.TransferProcess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.TransferProcess
	for _, row := range r.byId {
		if f.State != nil && row.State != *f.State {
			continue
		}
		if f.AgreementId != nil && !row.AgreementId.Equal(f.AgreementId.URN) {
			continue
		}
		out = append(out, row.Clone())
	}
	return out, nil
}

func (r *TransferRepository) Create(_ context.Context, proc *model.TransferProcess) (store.Created[*model.TransferProcess], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.byId {
		if sameTransferPeerPair(row, proc) {
			return store.Created[*model.TransferProcess]{Row: row.Clone(), AlreadyExisted: true}, nil
		}
	}

	var now = time.Now().UTC()
	var cp = proc.Clone()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.byId[cp.Id.String()] = cp
	return store.Created[*model.TransferProcess]{Row: cp.Clone()}, nil
}

func sameTransferPeerPair(existing, incoming *model.TransferProcess) bool {
	var existingPid = existing.PidForRole(existing.Role)
	var incomingPid = incoming.PidForRole(incoming.Role)
	return existingPid != nil && incomingPid != nil && existingPid.Equal(incomingPid.URN)
}

func (r *TransferRepository) Update(_ context.Context, id urn.ProcessId, edit store.TransferEdit) (*model.TransferProcess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var row, ok = r.byId[id.String()]
	if !ok {
		return nil, dsperr.New(dsperr.KindNotFound, "transfer process not found")
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
	if edit.StateAttribute != nil {
		row.StateAttribute = *edit.StateAttribute
	}
	if edit.DataAddress != nil {
		row.DataAddress = *edit.DataAddress
	}
	if edit.ErrorDetails != nil {
		row.ErrorDetails = *edit.ErrorDetails
	}
	row.UpdatedAt = time.Now().UTC()
	return row.Clone(), nil
}

func (r *TransferRepository) Delete(_ context.Context, id urn.ProcessId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byId, id.String())
	delete(r.locks, id.String())
	return nil
}

func (r *TransferRepository) WithProcessLock(ctx context.Context, id urn.ProcessId, fn func(ctx context.Context) error) error {
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
