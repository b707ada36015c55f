// Package eventbus implements the subscription/notification broadcast (C11):
// a Bus that POSTs each broadcast to every active subscriber of a category
// and always records a Notification row, plus a Sweeper that re-drives
// Pending rows with exponential backoff. Grounded on the webhook driver's
// http.NewRequest POST pattern and its own attempt-indexed backoff helper.
package eventbus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/urn"
)

type Bus struct {
	Subscriptions store.SubscriptionRepository
	Notifications store.NotificationRepository
	Client        *http.Client
	Log           *logrus.Logger
}

func New(stores *store.Stores, client *http.Client, log *logrus.Logger) *Bus {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bus{
		Subscriptions: stores.Subscriptions,
		Notifications: stores.Notifications,
		Client:        client,
		Log:           log,
	}
}

// Broadcast enumerates every active subscriber of category, POSTs content
// to each callback, and persists one Notification row per subscriber
// regardless of delivery outcome — Ok on 2xx, Pending otherwise, leaving
// the Sweeper to retry. A subscriber-dispatch error never fails the
// broadcast call itself: delivery is at-least-once and asynchronous by
// design, not a precondition of the state transition that triggered it.
func (b *Bus) Broadcast(ctx context.Context, category model.NotificationCategory, kind string, processId urn.ProcessId, content json.RawMessage) error {
	subs, err := b.Subscriptions.ListActiveByCategory(ctx, category)
	if err != nil {
		return fmt.Errorf("eventbus: listing subscribers for %s: %w", category, err)
	}
	for _, sub := range subs {
		var status = b.deliver(ctx, sub, content)
		var n = &model.Notification{
			Id:             urn.New(urn.NamespaceSubscriber),
			SubscriptionId: sub.Id,
			Category:       category,
			Kind:           kind,
			ProcessId:      processId,
			Content:        content,
			Status:         status,
			CreatedAt:      time.Now().UTC(),
		}
		if err := b.Notifications.Create(ctx, n); err != nil {
			b.Log.WithError(err).Error("eventbus: failed to persist notification row")
		}
	}
	return nil
}

func (b *Bus) deliver(ctx context.Context, sub *model.Subscription, content json.RawMessage) model.NotificationStatus {
	var req, err = http.NewRequestWithContext(ctx, http.MethodPost, sub.CallbackAddress, bytes.NewReader(content))
	if err != nil {
		b.Log.WithError(err).WithField("callback", sub.CallbackAddress).Warn("eventbus: malformed callback address")
		return model.NotificationPending
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.Client.Do(req)
	if err != nil {
		b.Log.WithError(err).WithField("callback", sub.CallbackAddress).Warn("eventbus: delivery failed")
		return model.NotificationPending
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return model.NotificationOk
	}
	return model.NotificationPending
}
