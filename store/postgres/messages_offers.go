package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

// MessageRepository fans each append out to whichever of cn_message /
// tp_message owns the process's foreign key, since spec.md §3 keeps one
// logical message log type shared by both state machines but the schema
// (migrations/0001_init.sql) keeps their storage separate per aggregate.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) ownerTable(ctx context.Context, processId urn.ProcessId) (string, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cn_process WHERE id = $1)`, processId.String()).Scan(&exists); err != nil {
		return "", dsperr.Wrap(dsperr.KindBackend, err, "checking cn_process ownership")
	}
	if exists {
		return "cn_message", nil
	}
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tp_process WHERE id = $1)`, processId.String()).Scan(&exists); err != nil {
		return "", dsperr.Wrap(dsperr.KindBackend, err, "checking tp_process ownership")
	}
	if exists {
		return "tp_message", nil
	}
	return "", dsperr.New(dsperr.KindNotFound, "owning process not found for message")
}

func (r *MessageRepository) Append(ctx context.Context, msg *model.Message) error {
	table, err := r.ownerTable(ctx, msg.ProcessId)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, process_id, direction, kind, from_state, to_state, payload, protocol, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.Id.String(), msg.ProcessId.String(), string(msg.Direction), msg.Kind,
		msg.FromState, msg.ToState, []byte(msg.Payload), msg.Protocol, msg.Timestamp)
	if err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "inserting message")
	}
	return nil
}

func scanMessage(row interface{ Scan(dest ...any) error }) (*model.Message, error) {
	var (
		id, processId, direction, kind, fromState, toState, protocol string
		payload                                                      []byte
		timestamp                                                    sql.NullTime
	)
	if err := row.Scan(&id, &processId, &direction, &kind, &fromState, &toState, &payload, &protocol, &timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dsperr.New(dsperr.KindNotFound, "message not found")
		}
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "scanning message row")
	}
	mid, err := urn.ParseMessageId(id)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt message id")
	}
	pid, err := urn.ParseProcessId(processId)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt process id")
	}
	return &model.Message{
		Id:        mid,
		ProcessId: pid,
		Direction: model.Direction(direction),
		Kind:      kind,
		FromState: fromState,
		ToState:   toState,
		Payload:   payload,
		Protocol:  protocol,
		Timestamp: timestamp.Time,
	}, nil
}

const messageColumns = `id, process_id, direction, kind, from_state, to_state, payload, protocol, timestamp`

func (r *MessageRepository) ListByProcess(ctx context.Context, processId urn.ProcessId) ([]*model.Message, error) {
	table, err := r.ownerTable(ctx, processId)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM `+table+` WHERE process_id = $1 ORDER BY timestamp ASC`, processId.String())
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "listing messages")
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MessageRepository) GetById(ctx context.Context, id urn.MessageId) (*model.Message, error) {
	for _, table := range []string{"cn_message", "tp_message"} {
		row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM `+table+` WHERE id = $1`, id.String())
		m, err := scanMessage(row)
		if err == nil {
			return m, nil
		}
		if kind, _ := dsperr.KindOf(err); kind != dsperr.KindNotFound {
			return nil, err
		}
	}
	return nil, dsperr.New(dsperr.KindNotFound, "message not found")
}

// OfferRepository persists Offer records, scoped to the CN process that
// proposed them.
type OfferRepository struct {
	db *sql.DB
}

func NewOfferRepository(db *sql.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

func (r *OfferRepository) Create(ctx context.Context, offer *model.Offer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO offer (id, process_id, content, message_id) VALUES ($1, $2, $3, $4)`,
		offer.Id.String(), offer.ProcessId.String(), []byte(offer.Content), offer.MessageId.String())
	if err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "inserting offer")
	}
	return nil
}

func (r *OfferRepository) ListByProcess(ctx context.Context, processId urn.ProcessId) ([]*model.Offer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, process_id, content, message_id FROM offer WHERE process_id = $1`, processId.String())
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "listing offers")
	}
	defer rows.Close()

	var out []*model.Offer
	for rows.Next() {
		var id, processId, messageId string
		var content []byte
		if err := rows.Scan(&id, &processId, &content, &messageId); err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "scanning offer row")
		}
		oid, err := urn.ParseOfferId(id)
		if err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt offer id")
		}
		pid, err := urn.ParseProcessId(processId)
		if err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt process id")
		}
		mid, err := urn.ParseMessageId(messageId)
		if err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt message id")
		}
		out = append(out, &model.Offer{Id: oid, ProcessId: pid, Content: content, MessageId: mid})
	}
	return out, rows.Err()
}
