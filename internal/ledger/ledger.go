// Package ledger records pipeline stage invocations in the local run
// store so operators can see what ran, when, and how it ended.
package ledger

import (
	"context"
	"time"

	"github.com/itu-mlops/playtime-pipeline/store"
	"github.com/itu-mlops/playtime-pipeline/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Recorder struct {
	store store.StageRunStore
	run   *types.StageRun
}

// Begin inserts a running ledger row for the named stage.
func Begin(ctx context.Context, runStore store.StageRunStore, stage string) (*Recorder, error) {
	run := &types.StageRun{
		ID:      uuid.NewString(),
		Stage:   stage,
		Status:  types.StatusRunning,
		Started: time.Now().Unix(),
	}
	if err := runStore.Create(ctx, run); err != nil {
		return nil, err
	}
	return &Recorder{store: runStore, run: run}, nil
}

// Done marks the ledger row as finished. A nil error records success;
// anything else records the failure detail. Ledger write failures are
// logged and swallowed so they never mask the stage outcome.
func (r *Recorder) Done(ctx context.Context, stageErr error) {
	r.run.Stopped = time.Now().Unix()
	if stageErr != nil {
		r.run.Status = types.StatusError
		r.run.Detail = stageErr.Error()
	} else {
		r.run.Status = types.StatusSuccess
	}
	if err := r.store.Update(ctx, r.run); err != nil {
		logrus.WithError(err).
			WithField("stage", r.run.Stage).
			Warnln("ledger: unable to update stage run")
	}
}

// Run exposes the underlying ledger row.
func (r *Recorder) Run() *types.StageRun {
	return r.run
}
