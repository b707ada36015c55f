package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/urn"
)

type AgreementRepository struct {
	db *sql.DB
}

func NewAgreementRepository(db *sql.DB) *AgreementRepository {
	return &AgreementRepository{db: db}
}

func (r *AgreementRepository) GetById(ctx context.Context, id urn.AgreementId) (*model.Agreement, error) {
	var (
		idStr, processId, consumerParticipantId, providerParticipantId string
		content                                                        []byte
		active                                                         bool
		createdAt                                                      sql.NullTime
	)
	var row = r.db.QueryRowContext(ctx,
		`SELECT id, process_id, consumer_participant_id, provider_participant_id, content, active, created_at
		 FROM agreement WHERE id = $1`, id.String())
	if err := row.Scan(&idStr, &processId, &consumerParticipantId, &providerParticipantId, &content, &active, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dsperr.New(dsperr.KindNotFound, "agreement not found")
		}
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "scanning agreement row")
	}

	aid, err := urn.ParseAgreementId(idStr)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt agreement id")
	}
	pid, err := urn.ParseProcessId(processId)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt process id")
	}
	cpid, err := urn.ParseParticipantId(consumerParticipantId)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt consumer participant id")
	}
	ppid, err := urn.ParseParticipantId(providerParticipantId)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt provider participant id")
	}
	return &model.Agreement{
		Id:                    aid,
		ProcessId:             pid,
		ConsumerParticipantId: cpid,
		ProviderParticipantId: ppid,
		Content:               content,
		Active:                active,
		CreatedAt:             createdAt.Time,
	}, nil
}

func (r *AgreementRepository) Create(ctx context.Context, agreement *model.Agreement) (store.Created[*model.Agreement], error) {
	if existing, err := r.GetById(ctx, agreement.Id); err == nil {
		return store.Created[*model.Agreement]{Row: existing, AlreadyExisted: true}, nil
	} else if kind, _ := dsperr.KindOf(err); kind != dsperr.KindNotFound {
		return store.Created[*model.Agreement]{}, err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agreement (id, process_id, consumer_participant_id, provider_participant_id, content, active)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		agreement.Id.String(), agreement.ProcessId.String(), agreement.ConsumerParticipantId.String(),
		agreement.ProviderParticipantId.String(), []byte(agreement.Content), agreement.Active)
	if err != nil {
		return store.Created[*model.Agreement]{}, dsperr.Wrap(dsperr.KindBackend, err, "inserting agreement")
	}
	row, err := r.GetById(ctx, agreement.Id)
	if err != nil {
		return store.Created[*model.Agreement]{}, err
	}
	return store.Created[*model.Agreement]{Row: row}, nil
}

func (r *AgreementRepository) SetActive(ctx context.Context, id urn.AgreementId, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE agreement SET active = $1 WHERE id = $2`, active, id.String())
	if err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "updating agreement")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dsperr.New(dsperr.KindNotFound, "agreement not found")
	}
	return nil
}

// ReferencedByTransfer derives its answer directly from tp_process's
// agreement_id foreign key, the real-backend counterpart to the
// memory package's hand-tracked transferRef set.
func (r *AgreementRepository) ReferencedByTransfer(ctx context.Context, id urn.AgreementId) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tp_process WHERE agreement_id = $1)`, id.String()).Scan(&exists); err != nil {
		return false, dsperr.Wrap(dsperr.KindBackend, err, "checking agreement reference")
	}
	return exists, nil
}

type ParticipantRepository struct {
	db *sql.DB
}

func NewParticipantRepository(db *sql.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) GetById(ctx context.Context, id urn.ParticipantId) (*model.Participant, error) {
	var (
		idStr, name, callback string
		createdAt             sql.NullTime
	)
	var row = r.db.QueryRowContext(ctx,
		`SELECT id, name, callback_address, created_at FROM participant WHERE id = $1`, id.String())
	if err := row.Scan(&idStr, &name, &callback, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dsperr.New(dsperr.KindNotFound, "participant not found")
		}
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "scanning participant row")
	}
	pid, err := urn.ParseParticipantId(idStr)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindBackend, err, "corrupt participant id")
	}
	return &model.Participant{Id: pid, Name: name, CallbackAddress: callback, CreatedAt: createdAt.Time}, nil
}

func (r *ParticipantRepository) Upsert(ctx context.Context, p *model.Participant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO participant (id, name, callback_address) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, callback_address = EXCLUDED.callback_address`,
		p.Id.String(), p.Name, p.CallbackAddress)
	if err != nil {
		return dsperr.Wrap(dsperr.KindBackend, err, "upserting participant")
	}
	return nil
}
