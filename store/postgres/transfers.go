package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/urn"
)

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

const transferColumns = `id, provider_pid, consumer_pid, state, state_attribute, role,
	agreement_id, format_protocol, format_action, callback_address, properties,
	data_address, error_details, created_at, updated_at`

func scanTransfer(row interface{ Scan(dest ...any) error }) (*model.TransferProcess, error) {
	var (
		id, state, stateAttribute, role                   string
		providerPid, consumerPid                           sql.NullString
		agreementId, formatProtocol, formatAction, callback string
		properties, dataAddress                            []byte
		errorDetails                                        sql.NullString
		createdAt, updatedAt                                = &sql.NullTime{}, &sql.NullTime{}
	)
	if err := row.Scan(&id, &providerPid, &consumerPid, &state, &stateAttribute, &role,
		&agreementId, &formatProtocol, &formatAction, &callback, &properties,
		&dataAddress, &errorDetails, createdAt, updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dsperr.New(dsperr.KindNotFound, "transfer process not found")
		}
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "scanning tp_process row")
	}

	pid, err := urn.ParseProcessId(id)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt process id in storage")
	}
	aid, err := urn.ParseAgreementId(agreementId)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt agreement id in storage")
	}
	var p = &model.TransferProcess{
		Id:             pid,
		State:          model.TpState(state),
		StateAttribute: model.TpStateAttribute(stateAttribute),
		Role:           model.Role(role),
		AgreementId:    aid,
		Format:         model.Format{Protocol: formatProtocol, Action: model.Action(formatAction)},
		ErrorDetails:   errorDetails.String,
		CreatedAt:      createdAt.Time,
		UpdatedAt:      updatedAt.Time,
	}
	if callback != "" {
		u, err := url.Parse(callback)
		if err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt callback address")
		}
		p.CallbackAddress = u
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
	if len(properties) > 0 {
		if err := json.Unmarshal(properties, &p.Properties); err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "decoding properties")
		}
	}
	if len(dataAddress) > 0 {
		var da model.DataAddress
		if err := json.Unmarshal(dataAddress, &da); err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "decoding data address")
		}
		p.DataAddress = &da
	}
	return p, nil
}

func (r *TransferRepository) GetById(ctx context.Context, id urn.ProcessId) (*model.TransferProcess, error) {
	var row = r.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM tp_process WHERE id = $1`, id.String())
	proc, err := scanTransfer(row)
	if err != nil {
		return nil, err
	}
	proc.Identifiers, err = r.loadIdentifiers(ctx, id)
	if err != nil {
		return nil, err
	}
	return proc, nil
}

func (r *TransferRepository) loadIdentifiers(ctx context.Context, id urn.ProcessId) (map[string]urn.URN, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM tp_identifier WHERE process_id = $1`, id.String())
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "loading tp_identifier rows")
	}
	defer rows.Close()

	var out map[string]urn.URN
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "scanning tp_identifier row")
		}
		parsed, err := urn.Parse(value)
		if err != nil {
			continue
		}
		if out == nil {
			out = make(map[string]urn.URN)
		}
		out[key] = parsed
	}
	return out, rows.Err()
}

func (r *TransferRepository) GetByPeerPid(ctx context.Context, peerPid urn.ProcessId, role model.Role) (*model.TransferProcess, error) {
	var column = "provider_pid"
	if role == model.RoleProvider {
		column = "consumer_pid"
	}
	var row = r.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM tp_process WHERE `+column+` = $1`, peerPid.String())
	return scanTransfer(row)
}

func (r *TransferRepository) ListByFilter(ctx context.Context, f store.TransferFilter) ([]*model.TransferProcess, error) {
	var query = `SELECT ` + transferColumns + ` FROM tp_process WHERE 1=1`
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
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "listing transfers")
	}
	defer rows.Close()

	var out []*model.TransferProcess
	for rows.Next() {
		p, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts proc, or returns the existing row idempotently keyed by the
// peer pid on proc's own role side, mirroring NegotiationRepository.Create.
func (r *TransferRepository) Create(ctx context.Context, proc *model.TransferProcess) (store.Created[*model.TransferProcess], error) {
	var mine = proc.PidForRole(proc.Role)
	if mine != nil {
		if existing, err := r.GetByPeerPid(ctx, *mine, proc.Role.Other()); err == nil {
			return store.Created[*model.TransferProcess]{Row: existing, AlreadyExisted: true}, nil
		} else if kind, _ := dsperr.KindOf(err); kind != dsperr.KindNotFound {
			return store.Created[*model.TransferProcess]{}, err
		}
	}

	properties, err := json.Marshal(proc.Properties)
	if err != nil {
		return store.Created[*model.TransferProcess]{}, dsperr.Wrap(dsperr.KindBackend, err, "encoding properties")
	}
	var dataAddress []byte
	if proc.DataAddress != nil {
		dataAddress, err = json.Marshal(proc.DataAddress)
		if err != nil {
			return store.Created[*model.TransferProcess]{}, dsperr.Wrap(dsperr.KindBackend, err, "encoding data address")
		}
	}
	var callback string
	if proc.CallbackAddress != nil {
		callback = proc.CallbackAddress.String()
	}
	var providerPid, consumerPid sql.NullString
	if proc.ProviderPid != nil {
		providerPid = sql.NullString{String: proc.ProviderPid.String(), Valid: true}
	}
	if proc.ConsumerPid != nil {
		consumerPid = sql.NullString{String: proc.ConsumerPid.String(), Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Created[*model.TransferProcess]{}, dsperr.Wrap(dsperr.KindBackend, err, "beginning transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tp_process (id, provider_pid, consumer_pid, state, state_attribute, role,
			agreement_id, format_protocol, format_action, callback_address, properties, data_address, error_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`,
		proc.Id.String(), providerPid, consumerPid, string(proc.State), string(proc.StateAttribute),
		string(proc.Role), proc.AgreementId.String(), proc.Format.Protocol, string(proc.Format.Action),
		callback, properties, dataAddress, proc.ErrorDetails)
	if err != nil {
		return store.Created[*model.TransferProcess]{}, dsperr.Wrap(dsperr.KindBackend, err, "inserting tp_process")
	}
	for k, v := range proc.Identifiers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tp_identifier (process_id, key, value) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			proc.Id.String(), k, v.String()); err != nil {
			return store.Created[*model.TransferProcess]{}, dsperr.Wrap(dsperr.KindBackend, err, "inserting tp_identifier")
		}
	}
	if err := tx.Commit(); err != nil {
		return store.Created[*model.TransferProcess]{}, dsperr.Wrap(dsperr.KindBackend, err, "committing transaction")
	}

	row, err := r.GetById(ctx, proc.Id)
	if err != nil {
		return store.Created[*model.TransferProcess]{}, err
	}
	return store.Created[*model.TransferProcess]{Row: row}, nil
}

func (r *TransferRepository) Update(ctx context.Context, id urn.ProcessId, edit store.TransferEdit) (*model.TransferProcess, error) {
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
	if edit.StateAttribute != nil {
		add("state_attribute", string(*edit.StateAttribute))
	}
	if edit.DataAddress != nil {
		var encoded []byte
		if *edit.DataAddress != nil {
			b, err := json.Marshal(*edit.DataAddress)
			if err != nil {
				return nil, dsperr.Wrap(dsperr.KindBackend, err, "encoding data address")
			}
			encoded = b
		}
		add("data_address", encoded)
	}
	if edit.ErrorDetails != nil {
		add("error_details", *edit.ErrorDetails)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id.String())
	var query = fmt.Sprintf(`UPDATE tp_process SET %s WHERE id = $%d`, joinComma(sets), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "updating tp_process")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, dsperr.New(dsperr.KindNotFound, "transfer process not found")
	}
	return r.GetById(ctx, id)
}

func (r *TransferRepository) Delete(ctx context.Context, id urn.ProcessId) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tp_process WHERE id = $1`, id.String()); err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "deleting tp_process")
	}
	return nil
}

func (r *TransferRepository) WithProcessLock(ctx context.Context, id urn.ProcessId, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT id FROM tp_process WHERE id = $1 FOR UPDATE`, id.String()); err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "locking tp_process row")
	}
	if err := fn(ctx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "committing transaction")
	}
	return nil
}
