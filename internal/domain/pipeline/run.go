package pipeline

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Error kinds recorded on a failed run.
const (
	ErrorKindScript   = "script"
	ErrorKindTimeout  = "timeout"
	ErrorKindDispatch = "dispatch"
	ErrorKindPanic    = "panic"
	ErrorKindResults  = "results"
)

// TerminalStatuses never transition again.
var TerminalStatuses = []string{StatusCompleted, StatusFailed}

func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

type Run struct {
	RunID         uuid.UUID      `gorm:"type:uuid;primaryKey;column:run_id" json:"runId"`
	UserID        *uuid.UUID     `gorm:"type:uuid;column:user_id;index" json:"userId,omitempty"`
	PipelineType  string         `gorm:"column:pipeline_type;not null;index" json:"pipelineType"`
	InputFilePath string         `gorm:"column:input_file_path;not null" json:"inputFilePath"`
	InputFiles    datatypes.JSON `gorm:"column:input_files;type:jsonb" json:"inputFiles"`
	Status        string         `gorm:"column:status;not null;index" json:"status"`
	JobID         string         `gorm:"column:job_id;not null;default:''" json:"jobId"`
	ErrorMessage  *string        `gorm:"column:error_message" json:"errorMessage"`
	ErrorKind     string         `gorm:"column:error_kind;not null;default:''" json:"errorKind,omitempty"`
	Attempts      int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
	StartedAt     *time.Time     `gorm:"column:started_at" json:"startedAt"`
	FinishedAt    *time.Time     `gorm:"column:finished_at" json:"finishedAt"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	// Logs is assembled from pipeline_run_logs on read.
	Logs []string `gorm:"-" json:"logs"`
}

func (Run) TableName() string { return "pipeline_runs" }

// RunLog is one append-only log line of a run, ordered by Seq.
type RunLog struct {
	Seq       int64     `gorm:"primaryKey;autoIncrement;column:seq" json:"-"`
	RunID     uuid.UUID `gorm:"type:uuid;not null;index;column:run_id" json:"-"`
	Line      string    `gorm:"column:line;type:text;not null" json:"line"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (RunLog) TableName() string { return "pipeline_run_logs" }
