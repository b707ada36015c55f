package eventbus

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dspconnect/core/model"
)

// backoff returns the delay before retry attempt n (1-indexed): 1s, 2s, 4s,
// 8s, ... doubling each attempt, capped at 2^maxAttempts seconds. Adapted
// from the webhook driver's own attempt-indexed backoff helper, generalized
// from its fixed ladder to the doubling schedule spec.md §4.7 specifies.
func backoff(attempt, maxAttempts int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > maxAttempts+1 {
		attempt = maxAttempts + 1
	}
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

// Sweeper periodically re-drives Pending notifications, retrying each with
// exponentially increasing spacing until maxAttempts is exhausted.
type Sweeper struct {
	Bus         *Bus
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Concurrency int
	Log         *logrus.Logger
}

func NewSweeper(bus *Bus, interval time.Duration, batchSize, maxAttempts int, log *logrus.Logger) *Sweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{Bus: bus, Interval: interval, BatchSize: batchSize, MaxAttempts: maxAttempts, Concurrency: 4, Log: log}
}

// Run blocks, sweeping on Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	var ticker = time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				s.Log.WithError(err).Error("eventbus: sweep failed")
			}
		}
	}
}

// sweepOnce fans the due notifications in a batch out across a bounded
// group of goroutines, since each redrive is an independent outbound HTTP
// call and the batch should not serialize behind the slowest peer.
func (s *Sweeper) sweepOnce(ctx context.Context) error {
	pending, err := s.Bus.Notifications.ListPending(ctx, s.BatchSize)
	if err != nil {
		return err
	}

	var group errgroup.Group
	group.SetLimit(s.Concurrency)
	for _, n := range pending {
		if n.Attempt >= s.MaxAttempts {
			continue
		}
		var due = n.CreatedAt.Add(backoff(n.Attempt+1, s.MaxAttempts))
		if time.Now().UTC().Before(due) {
			continue
		}
		n := n
		group.Go(func() error {
			s.redrive(ctx, n)
			return nil
		})
	}
	return group.Wait()
}

func (s *Sweeper) redrive(ctx context.Context, n *model.Notification) {
	if err := s.Bus.Notifications.IncrementAttempt(ctx, n.Id); err != nil {
		s.Log.WithError(err).Error("eventbus: incrementing notification attempt")
		return
	}

	var sub, ok = s.activeSubscription(ctx, n)
	if !ok {
		return
	}
	var status = s.Bus.deliver(ctx, sub, n.Content)
	if status == model.NotificationOk {
		if err := s.Bus.Notifications.MarkDelivered(ctx, n.Id); err != nil {
			s.Log.WithError(err).Error("eventbus: marking notification delivered")
		}
	}
}

// activeSubscription re-fetches the subscriber by category since
// SubscriptionRepository does not expose a get-by-id lookup; a
// redrive is skipped if the subscription has since been deactivated.
func (s *Sweeper) activeSubscription(ctx context.Context, n *model.Notification) (*model.Subscription, bool) {
	subs, err := s.Bus.Subscriptions.ListActiveByCategory(ctx, n.Category)
	if err != nil {
		s.Log.WithError(err).Error("eventbus: listing subscribers during redrive")
		return nil, false
	}
	for _, sub := range subs {
		if sub.Id.Equal(n.SubscriptionId) {
			return sub, true
		}
	}
	return nil, false
}
