package memory

import (
	"context"
	"sync"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

type SubscriptionRepository struct {
	mu   sync.RWMutex
	byId map[string]*model.Subscription
}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{byId: make(map[string]*model.Subscription)}
}

func (r *SubscriptionRepository) Create(_ context.Context, sub *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cp = *sub
	r.byId[cp.Id.String()] = &cp
	return nil
}

func (r *SubscriptionRepository) ListActiveByCategory(_ context.Context, category model.NotificationCategory) ([]*model.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Subscription
	for _, row := range r.byId {
		if row.Subscribes(category) {
			var cp = *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *SubscriptionRepository) Deactivate(_ context.Context, id urn.URN) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var row, ok = r.byId[id.String()]
	if !ok {
		return dsperr.New(dsperr.KindNotFound, "subscription not found")
	}
	row.Active = false
	return nil
}

type NotificationRepository struct {
	mu   sync.RWMutex
	byId map[string]*model.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{byId: make(map[string]*model.Notification)}
}

func (r *NotificationRepository) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cp = *n
	r.byId[cp.Id.String()] = &cp
	return nil
}

func (r *NotificationRepository) ListPending(_ context.Context, limit int) ([]*model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Notification
	for _, row := range r.byId {
		if row.Status == model.NotificationPending {
			var cp = *row
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *NotificationRepository) MarkDelivered(_ context.Context, id urn.URN) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var row, ok = r.byId[id.String()]
	if !ok {
		return dsperr.New(dsperr.KindNotFound, "notification not found")
	}
	row.Status = model.NotificationOk
	return nil
}

func (r *NotificationRepository) IncrementAttempt(_ context.Context, id urn.URN) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var row, ok = r.byId[id.String()]
	if !ok {
		return dsperr.New(dsperr.KindNotFound, "notification not found")
	}
	row.Attempt++
	return nil
}
