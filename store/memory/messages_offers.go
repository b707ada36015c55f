package memory

import (
	"context"
	"sync"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

type MessageRepository struct {
	mu       sync.RWMutex
	byId     map[string]*model.Message
	byProc   map[string][]*model.Message
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{
		byId:   make(map[string]*model.Message),
		byProc: make(map[string][]*model.Message),
	}
}

func (r *MessageRepository) Append(_ context.Context, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cp = *msg
	r.byId[cp.Id.String()] = &cp
	r.byProc[cp.ProcessId.String()] = append(r.byProc[cp.ProcessId.String()], &cp)
	return nil
}

func (r *MessageRepository) ListByProcess(_ context.Context, processId urn.ProcessId) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rows = r.byProc[processId.String()]
	var out = make([]*model.Message, len(rows))
	copy(out, rows)
	return out, nil
}

func (r *MessageRepository) GetById(_ context.Context, id urn.MessageId) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var row, ok = r.byId[id.String()]
	if !ok {
		return nil, dsperr.New(dsperr.KindNotFound, "message not found")
	}
	var cp = *row
	return &cp, nil
}

type OfferRepository struct {
	mu     sync.RWMutex
	byProc map[string][]*model.Offer
}

func NewOfferRepository() *OfferRepository {
	return &OfferRepository{byProc: make(map[string][]*model.Offer)}
}

func (r *OfferRepository) Create(_ context.Context, offer *model.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cp = *offer
	r.byProc[cp.ProcessId.String()] = append(r.byProc[cp.ProcessId.String()], &cp)
	return nil
}

func (r *OfferRepository) ListByProcess(_ context.Context, processId urn.ProcessId) ([]*model.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rows = r.byProc[processId.String()]
	var out = make([]*model.Offer, len(rows))
	copy(out, rows)
	return out, nil
}
