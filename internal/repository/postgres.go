package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raisedeck/accesslink/internal/domain/access"
)

var _ AccessRepository = (*PostgresAccessRepo)(nil)

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, so one set of
// query methods serves plain and transactional calls.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresAccessRepo persists access records in the access_records table.
type PostgresAccessRepo struct {
	accessQueries
	db *pgxpool.Pool
}

// NewPostgresAccessRepo constructs the repository.
func NewPostgresAccessRepo(pool *pgxpool.Pool, node *snowflake.Node) *PostgresAccessRepo {
	return &PostgresAccessRepo{
		accessQueries: accessQueries{q: pool, node: node},
		db:            pool,
	}
}

// InTx runs fn inside a transaction. Rollback is deferred so every non-commit
// exit path, including panics, releases the handle.
func (r *PostgresAccessRepo) InTx(ctx context.Context, fn func(store AccessStore) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&accessQueries{q: tx, node: r.node}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type accessQueries struct {
	q    rowQuerier
	node *snowflake.Node
}

var _ AccessStore = (*accessQueries)(nil)

const getAccessRecordSQL = `
SELECT id, uid, access_sc, access_ci, access_other, access_notes, created_at, updated_at
FROM access_records
WHERE uid = $1`

func (r *accessQueries) Get(ctx context.Context, uid string) (access.AccessRecord, error) {
	var (
		rec      access.AccessRecord
		scRaw    []byte
		ciRaw    []byte
		otherRaw []byte
		notes    *string
	)
	err := r.q.QueryRow(ctx, getAccessRecordSQL, uid).Scan(
		&rec.ID,
		&rec.UID,
		&scRaw,
		&ciRaw,
		&otherRaw,
		&notes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return access.EmptyRecord(uid), nil
	}
	if err != nil {
		return access.AccessRecord{}, fmt.Errorf("get access record: %w", err)
	}

	rec.SourceControl = access.DecodeSectionJSON(scRaw)
	rec.CICD = access.DecodeSectionJSON(ciRaw)
	rec.Other = decodeMap(otherRaw)
	if notes != nil {
		rec.Notes = *notes
	}
	return rec, nil
}

const upsertAccessRecordSQL = `
INSERT INTO access_records (id, uid, access_sc, access_ci, access_other, access_notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
ON CONFLICT (uid) DO UPDATE SET
	access_sc = EXCLUDED.access_sc,
	access_ci = EXCLUDED.access_ci,
	access_other = EXCLUDED.access_other,
	access_notes = EXCLUDED.access_notes,
	updated_at = now()
RETURNING id, uid, access_sc, access_ci, access_other, access_notes, created_at, updated_at`

func (r *accessQueries) Upsert(ctx context.Context, record access.AccessRecord) (access.AccessRecord, error) {
	id := record.ID
	if id == 0 {
		id = r.node.Generate().Int64()
	}
	scRaw, err := json.Marshal(access.NormalizeSection(record.SourceControl))
	if err != nil {
		return access.AccessRecord{}, fmt.Errorf("encode access_sc: %w", err)
	}
	ciRaw, err := json.Marshal(access.NormalizeSection(record.CICD))
	if err != nil {
		return access.AccessRecord{}, fmt.Errorf("encode access_ci: %w", err)
	}
	otherRaw, err := json.Marshal(record.Other)
	if err != nil {
		return access.AccessRecord{}, fmt.Errorf("encode access_other: %w", err)
	}

	var (
		out      access.AccessRecord
		outSC    []byte
		outCI    []byte
		outOther []byte
		notes    *string
	)
	err = r.q.QueryRow(ctx, upsertAccessRecordSQL, id, record.UID, scRaw, ciRaw, otherRaw, record.Notes).Scan(
		&out.ID,
		&out.UID,
		&outSC,
		&outCI,
		&outOther,
		&notes,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return access.AccessRecord{}, fmt.Errorf("upsert access record: %w", err)
	}

	out.SourceControl = access.DecodeSectionJSON(outSC)
	out.CICD = access.DecodeSectionJSON(outCI)
	out.Other = decodeMap(outOther)
	if notes != nil {
		out.Notes = *notes
	}
	return out, nil
}

func decodeMap(raw []byte) map[string]any {
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}
