package types

import (
	"database/sql/driver"
)

type StageRunStatus string

// Value converts the value to a sql string.
func (s StageRunStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// StageRunStatus type enumeration.
const (
	StatusRunning = StageRunStatus("running")
	StatusSuccess = StageRunStatus("success")
	StatusError   = StageRunStatus("error")
)

// Pipeline stage names.
const (
	StageDownload = "download"
	StagePrepare  = "prepare"
	StageTrain    = "train"
	StagePromote  = "promote"
	StageServe    = "serve"
	StageScore    = "score"
)

// StageRun is a single invocation of a pipeline stage, recorded in the
// local run ledger.
type StageRun struct {
	ID      string         `db:"run_id" json:"id"`
	Stage   string         `db:"run_stage" json:"stage"`
	Status  StageRunStatus `db:"run_status" json:"status"`
	Detail  string         `db:"run_detail" json:"detail"`
	Started int64          `db:"run_started" json:"started"`
	Stopped int64          `db:"run_stopped" json:"stopped"`
}

// QueryParams defines filters applied when listing stage runs.
type QueryParams struct {
	Stage  string
	Status StageRunStatus
}
