package database

import (
	"context"
	"testing"

	"github.com/itu-mlops/playtime-pipeline/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *StageRunStore {
	t.Helper()
	db, err := Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStageRunStore(db)
}

func seedRun(t *testing.T, s *StageRunStore, id, stage string, status types.StageRunStatus, started int64) *types.StageRun {
	t.Helper()
	run := &types.StageRun{
		ID:      id,
		Stage:   stage,
		Status:  status,
		Started: started,
	}
	require.NoError(t, s.Create(context.Background(), run))
	return run
}

func TestStageRunCreateAndFind(t *testing.T) {
	s := testStore(t)
	seedRun(t, s, "run-1", types.StageTrain, types.StatusRunning, 100)

	got, err := s.Find(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, types.StageTrain, got.Stage)
	assert.Equal(t, types.StatusRunning, got.Status)
	assert.Equal(t, int64(100), got.Started)

	_, err = s.Find(context.Background(), "no-such-run")
	assert.Error(t, err)
}

func TestStageRunUpdate(t *testing.T) {
	s := testStore(t)
	run := seedRun(t, s, "run-1", types.StagePrepare, types.StatusRunning, 100)

	run.Status = types.StatusError
	run.Detail = "raw dataset not found"
	run.Stopped = 130
	require.NoError(t, s.Update(context.Background(), run))

	got, err := s.Find(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, got.Status)
	assert.Equal(t, "raw dataset not found", got.Detail)
	assert.Equal(t, int64(130), got.Stopped)
}

func TestStageRunList(t *testing.T) {
	s := testStore(t)
	seedRun(t, s, "run-1", types.StageTrain, types.StatusSuccess, 100)
	seedRun(t, s, "run-2", types.StageTrain, types.StatusError, 200)
	seedRun(t, s, "run-3", types.StagePromote, types.StatusSuccess, 300)

	all, err := s.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-1", all[0].ID)
	assert.Equal(t, "run-3", all[2].ID)

	trains, err := s.List(context.Background(), &types.QueryParams{Stage: types.StageTrain})
	require.NoError(t, err)
	assert.Len(t, trains, 2)

	failed, err := s.List(context.Background(), &types.QueryParams{
		Stage:  types.StageTrain,
		Status: types.StatusError,
	})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "run-2", failed[0].ID)
}

func TestStageRunPurge(t *testing.T) {
	s := testStore(t)
	seedRun(t, s, "run-1", types.StageDownload, types.StatusSuccess, 100)
	seedRun(t, s, "run-2", types.StageDownload, types.StatusSuccess, 200)

	require.NoError(t, s.Purge(context.Background(), 150))

	remaining, err := s.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "run-2", remaining[0].ID)
}

func TestStageRunStoreSync(t *testing.T) {
	s := NewStageRunStoreSync(testStore(t))
	run := &types.StageRun{
		ID:      "run-1",
		Stage:   types.StageServe,
		Status:  types.StatusRunning,
		Started: 100,
	}
	require.NoError(t, s.Create(context.Background(), run))

	got, err := s.Find(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, types.StageServe, got.Stage)
}
