package database

import (
	"context"

	"github.com/itu-mlops/playtime-pipeline/store"
	"github.com/itu-mlops/playtime-pipeline/types"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var _ store.StageRunStore = (*StageRunStore)(nil)

var builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func NewStageRunStore(db *sqlx.DB) *StageRunStore {
	return &StageRunStore{db}
}

type StageRunStore struct {
	db *sqlx.DB
}

func (s StageRunStore) Find(_ context.Context, id string) (*types.StageRun, error) {
	dst := new(types.StageRun)
	err := s.db.Get(dst, stageRunFindByID, id)
	return dst, err
}

func (s StageRunStore) List(_ context.Context, params *types.QueryParams) ([]*types.StageRun, error) {
	dst := []*types.StageRun{}

	stmt := builder.Select(stageRunColumns).From("stage_runs")
	if params != nil {
		if params.Stage != "" {
			stmt = stmt.Where(squirrel.Eq{"run_stage": params.Stage})
		}
		if params.Status != "" {
			stmt = stmt.Where(squirrel.Eq{"run_status": params.Status})
		}
	}
	stmt = stmt.OrderBy("run_started ASC")

	sql, args, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}
	err = s.db.Select(&dst, sql, args...)
	return dst, err
}

func (s StageRunStore) Create(_ context.Context, run *types.StageRun) error {
	query, arg, err := s.db.BindNamed(stageRunInsert, run)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(query, arg...)
	return err
}

func (s StageRunStore) Update(_ context.Context, run *types.StageRun) error {
	query, arg, err := s.db.BindNamed(stageRunUpdate, run)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(query, arg...)
	return err
}

func (s StageRunStore) Purge(ctx context.Context, before int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint
	if _, err := tx.Exec(stageRunPurge, before); err != nil {
		return err
	}
	return tx.Commit()
}

const stageRunColumns = `
 run_id
,run_stage
,run_status
,run_detail
,run_started
,run_stopped
`

const stageRunBase = `
SELECT` + stageRunColumns + `
FROM stage_runs
`

const stageRunFindByID = stageRunBase + `
WHERE run_id = $1
`

const stageRunInsert = `
INSERT INTO stage_runs (
 run_id
,run_stage
,run_status
,run_detail
,run_started
,run_stopped
) values (
 :run_id
,:run_stage
,:run_status
,:run_detail
,:run_started
,:run_stopped
)
`

const stageRunUpdate = `
UPDATE stage_runs
SET
 run_status  = :run_status
,run_detail  = :run_detail
,run_stopped = :run_stopped
WHERE run_id = :run_id
`

const stageRunPurge = `
DELETE FROM stage_runs
WHERE run_started < $1
`
