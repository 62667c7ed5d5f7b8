package store

import (
	"context"

	"github.com/itu-mlops/playtime-pipeline/types"
)

type StageRunStore interface {
	Find(context.Context, string) (*types.StageRun, error)
	List(context.Context, *types.QueryParams) ([]*types.StageRun, error)
	Create(context.Context, *types.StageRun) error
	Update(context.Context, *types.StageRun) error
	Purge(context.Context, int64) error
}
