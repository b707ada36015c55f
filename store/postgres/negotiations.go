package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/urn"
)

type NegotiationRepository struct {
	db *sql.DB
}

func NewNegotiationRepository(db *sql.DB) *NegotiationRepository {
	return &NegotiationRepository{db: db}
}

func scanNegotiation(row interface {
	Scan(dest ...any) error
}) (*model.NegotiationProcess, error) {
	var (
		id, state, initiatedBy                                   string
		providerPid, consumerPid, assocProvider, assocConsumer   sql.NullString
		agreementId                                              sql.NullString
		createdAt, updatedAt                                     = &sql.NullTime{}, &sql.NullTime{}
	)
	if err := row.Scan(&id, &providerPid, &consumerPid, &state, &initiatedBy,
		&assocProvider, &assocConsumer, &agreementId, createdAt, updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dsperr.New(dsperr.KindNotFound, "negotiation process not found")
		}
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "scanning cn_process row")
	}

	pid, err := urn.ParseProcessId(id)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt process id in storage")
	}
	var p = &model.NegotiationProcess{
		Id:          pid,
		State:       model.CnState(state),
		InitiatedBy: model.Role(initiatedBy),
		CreatedAt:   createdAt.Time,
		UpdatedAt:   updatedAt.Time,
	}
	if providerPid.Valid {
		v, err := urn.ParseProcessId(providerPid.String)
		if err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt provider pid")
		}
		p.ProviderPid = &v
	}
	if consumerPid.Valid {
		v, err := urn.ParseProcessId(consumerPid.String)
		if err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt consumer pid")
		}
		p.ConsumerPid = &v
	}
	if assocProvider.Valid {
		v, err := urn.ParseParticipantId(assocProvider.String)
		if err == nil {
			p.AssociatedProvider = &v
		}
	}
	if assocConsumer.Valid {
		v, err := urn.ParseParticipantId(assocConsumer.String)
		if err == nil {
			p.AssociatedConsumer = &v
		}
	}
	if agreementId.Valid {
		v, err := urn.ParseAgreementId(agreementId.String)
		if err == nil {
			p.AgreementId = &v
		}
	}
	return p, nil
}

const negotiationColumns = `id, provider_pid, consumer_pid, state, initiated_by,
	associated_provider, associated_consumer, agreement_id, created_at, updated_at`

func (r *NegotiationRepository) GetById(ctx context.Context, id urn.ProcessId) (*model.NegotiationProcess, error) {
	var row = r.db.QueryRowContext(ctx,
		`SELECT `+negotiationColumns+` FROM cn_process WHERE id = $1`, id.String())
	return scanNegotiation(row)
}

func (r *NegotiationRepository) GetByPeerPid(ctx context.Context, peerPid urn.ProcessId, role model.Role) (*model.NegotiationProcess, error) {
	var column = "provider_pid"
	if role == model.RoleProvider {
		column = "consumer_pid"
	}
	var row = r.db.QueryRowContext(ctx,
		`SELECT `+negotiationColumns+` FROM cn_process WHERE `+column+` = $1`, peerPid.String())
	return scanNegotiation(row)
}

func (r *NegotiationRepository) ListByFilter(ctx context.Context, f store.NegotiationFilter) ([]*model.NegotiationProcess, error) {
	var query = `SELECT ` + negotiationColumns + ` FROM cn_process WHERE 1=1`
	var args []any
	if f.State != nil {
		args = append(args, string(*f.State))
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if f.AgreementId != nil {
		args = append(args, f.AgreementId.String())
		query += fmt.Sprintf(" AND agreement_id = $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "listing negotiations")
	}
	defer rows.Close()

	var out []*model.NegotiationProcess
	for rows.Next() {
		p, err := scanNegotiation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts proc, or — keyed by the peer pid of proc's initiating
// side — returns the already-existing row with AlreadyExisted=true,
// implementing the idempotent-creation-by-peer-key contract of spec.md
// §4.1 via a Postgres partial unique index (see migrations/0001_init.sql).
func (r *NegotiationRepository) Create(ctx context.Context, proc *model.NegotiationProcess) (store.Created[*model.NegotiationProcess], error) {
	var peerPid *urn.ProcessId
	var peerColumn string
	if proc.InitiatedBy == model.RoleConsumer {
		peerPid, peerColumn = proc.ConsumerPid, "consumer_pid"
	} else {
		peerPid, peerColumn = proc.ProviderPid, "provider_pid"
	}
	if peerPid != nil {
		if existing, err := r.GetByPeerPid(ctx, *peerPid, proc.InitiatedBy.Other()); err == nil {
			return store.Created[*model.NegotiationProcess]{Row: existing, AlreadyExisted: true}, nil
		} else if kind, _ := dsperr.KindOf(err); kind != dsperr.KindNotFound {
			return store.Created[*model.NegotiationProcess]{}, err
		}
	}
	_ = peerColumn // documents which column carried the idempotency key above

	var providerPid, consumerPid sql.NullString
	if proc.ProviderPid != nil {
		providerPid = sql.NullString{String: proc.ProviderPid.String(), Valid: true}
	}
	if proc.ConsumerPid != nil {
		consumerPid = sql.NullString{String: proc.ConsumerPid.String(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cn_process (id, provider_pid, consumer_pid, state, initiated_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		proc.Id.String(), providerPid, consumerPid, string(proc.State), string(proc.InitiatedBy))
	if err != nil {
		return store.Created[*model.NegotiationProcess]{}, dsperr.Wrap(dsperr.KindBackend, err, "inserting cn_process")
	}

	row, err := r.GetById(ctx, proc.Id)
	if err != nil {
		return store.Created[*model.NegotiationProcess]{}, err
	}
	return store.Created[*model.NegotiationProcess]{Row: row}, nil
}

func (r *NegotiationRepository) Update(ctx context.Context, id urn.ProcessId, edit store.NegotiationEdit) (*model.NegotiationProcess, error) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if edit.ProviderPid != nil {
		add("provider_pid", edit.ProviderPid.String())
	}
	if edit.ConsumerPid != nil {
		add("consumer_pid", edit.ConsumerPid.String())
	}
	if edit.State != nil {
		add("state", string(*edit.State))
	}
	if edit.AssociatedProvider != nil {
		add("associated_provider", edit.AssociatedProvider.String())
	}
	if edit.AssociatedConsumer != nil {
		add("associated_consumer", edit.AssociatedConsumer.String())
	}
	if edit.AgreementId != nil {
		add("agreement_id", edit.AgreementId.String())
	}
	add("updated_at", "now()")
	sets[len(sets)-1] = "updated_at = now()"

	args = append(args, id.String())
	var query = fmt.Sprintf(`UPDATE cn_process SET %s WHERE id = $%d`, joinComma(sets), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "updating cn_process")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, dsperr.New(dsperr.KindNotFound, "negotiation process not found")
	}
	return r.GetById(ctx, id)
}

func (r *NegotiationRepository) Delete(ctx context.Context, id urn.ProcessId) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cn_process WHERE id = $1`, id.String()); err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "deleting cn_process")
	}
	return nil
}

// WithProcessLock uses a transaction-scoped SELECT ... FOR UPDATE to
// serialize concurrent updates against the same process row, the Postgres
// realization of spec.md §5's "serialized update" primitive.
func (r *NegotiationRepository) WithProcessLock(ctx context.Context, id urn.ProcessId, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT id FROM cn_process WHERE id = $1 FOR UPDATE`, id.String()); err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "locking cn_process row")
	}
	if err := fn(ctx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "committing transaction")
	}
	return nil
}

func joinComma(parts []string) string {
	var out string
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
