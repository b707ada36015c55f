package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	var categories = make([]string, len(sub.Categories))
	for i, c := range sub.Categories {
		categories[i] = string(c)
	}
	var expiresAt *time.Time
	if sub.ExpiresAt != nil {
		expiresAt = sub.ExpiresAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscription (id, callback_address, categories, expires_at, active)
		VALUES ($1, $2, $3, $4, $5)`,
		sub.Id.String(), sub.CallbackAddress, pq.Array(categories), expiresAt, sub.Active)
	if err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "inserting subscription")
	}
	return nil
}

func (r *SubscriptionRepository) ListActiveByCategory(ctx context.Context, category model.NotificationCategory) ([]*model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, callback_address, categories, expires_at, active
		FROM subscription WHERE active = true AND $1 = ANY(categories)`, string(category))
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "listing subscriptions")
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		var (
			id, callback string
			categories   []string
			expiresAt    sql.NullTime
			active       bool
		)
		if err := rows.Scan(&id, &callback, pq.Array(&categories), &expiresAt, &active); err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "scanning subscription row")
		}
		parsedId, err := urn.Parse(id)
		if err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt subscription id")
		}
		var cats = make([]model.NotificationCategory, len(categories))
		for i, c := range categories {
			cats[i] = model.NotificationCategory(c)
		}
		var sub = &model.Subscription{Id: parsedId, CallbackAddress: callback, Categories: cats, Active: active}
		if expiresAt.Valid {
			sub.ExpiresAt = &expiresAt.Time
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (r *SubscriptionRepository) Deactivate(ctx context.Context, id urn.URN) error {
	res, err := r.db.ExecContext(ctx, `UPDATE subscription SET active = false WHERE id = $1`, id.String())
	if err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "deactivating subscription")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dsperr.New(dsperr.KindNotFound, "subscription not found")
	}
	return nil
}

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	var processId sql.NullString
	if !n.ProcessId.IsZero() {
		processId = sql.NullString{String: n.ProcessId.String(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification (id, subscription_id, category, kind, process_id, content, status, attempt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.Id.String(), n.SubscriptionId.String(), string(n.Category), n.Kind,
		processId, []byte(n.Content), string(n.Status), n.Attempt)
	if err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "inserting notification")
	}
	return nil
}

func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]*model.Notification, error) {
	var query = `SELECT id, subscription_id, category, kind, process_id, content, status, attempt, created_at
		FROM notification WHERE status = $1 ORDER BY created_at ASC`
	var args = []any{string(model.NotificationPending)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "listing pending notifications")
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		var (
			id, subscriptionId, category, kind, status string
			processId                                   sql.NullString
			content                                      []byte
			attempt                                      int
			createdAt                                    sql.NullTime
		)
		if err := rows.Scan(&id, &subscriptionId, &category, &kind, &processId, &content, &status, &attempt, &createdAt); err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "scanning notification row")
		}
		nid, err := urn.Parse(id)
		if err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt notification id")
		}
		sid, err := urn.Parse(subscriptionId)
		if err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt subscription id")
		}
		var n = &model.Notification{
			Id:             nid,
			SubscriptionId: sid,
			Category:       model.NotificationCategory(category),
			Kind:           kind,
			Content:        content,
			Status:         model.NotificationStatus(status),
			Attempt:        attempt,
			CreatedAt:      createdAt.Time,
		}
		if processId.Valid {
			pid, err := urn.ParseProcessId(processId.String)
			if err == nil {
				n.ProcessId = pid
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) MarkDelivered(ctx context.Context, id urn.URN) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notification SET status = $1 WHERE id = $2`, string(model.NotificationOk), id.String())
	if err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "marking notification delivered")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dsperr.New(dsperr.KindNotFound, "notification not found")
	}
	return nil
}

func (r *NotificationRepository) IncrementAttempt(ctx context.Context, id urn.URN) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notification SET attempt = attempt + 1 WHERE id = $1`, id.String())
	if err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "incrementing notification attempt")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dsperr.New(dsperr.KindNotFound, "notification not found")
	}
	return nil
}
