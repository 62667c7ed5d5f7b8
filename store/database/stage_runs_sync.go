package database

import (
	"context"

	"github.com/itu-mlops/playtime-pipeline/store"
	"github.com/itu-mlops/playtime-pipeline/store/database/mutex"
	"github.com/itu-mlops/playtime-pipeline/types"
)

var _ store.StageRunStore = (*StageRunStoreSync)(nil)

func NewStageRunStoreSync(store *StageRunStore) *StageRunStoreSync {
	return &StageRunStoreSync{store}
}

type StageRunStoreSync struct{ base *StageRunStore }

func (s StageRunStoreSync) Find(ctx context.Context, id string) (*types.StageRun, error) {
	mutex.RLock()
	defer mutex.RUnlock()
	return s.base.Find(ctx, id)
}

func (s StageRunStoreSync) List(ctx context.Context, params *types.QueryParams) ([]*types.StageRun, error) {
	mutex.RLock()
	defer mutex.RUnlock()
	return s.base.List(ctx, params)
}

func (s StageRunStoreSync) Create(ctx context.Context, run *types.StageRun) error {
	mutex.Lock()
	defer mutex.Unlock()
	return s.base.Create(ctx, run)
}

func (s StageRunStoreSync) Update(ctx context.Context, run *types.StageRun) error {
	mutex.Lock()
	defer mutex.Unlock()
	return s.base.Update(ctx, run)
}

func (s StageRunStoreSync) Purge(ctx context.Context, before int64) error {
	mutex.Lock()
	defer mutex.Unlock()
	return s.base.Purge(ctx, before)
}
