package pipeline

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/platform/dbctx"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

const maxLogLine = 4000

// RunRepo persists pipeline runs. Every status write is a conditional update that
// refuses to touch a run already in a terminal status, so repeated deliveries of
// the same job can never move a run backwards.
type RunRepo interface {
	Create(dbc dbctx.Context, run *domain.Run) error
	GetByID(dbc dbctx.Context, runID uuid.UUID) (*domain.Run, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Run, error)
	SetJobID(dbc dbctx.Context, runID uuid.UUID, jobID string) (bool, error)
	MarkRunning(dbc dbctx.Context, runID uuid.UUID) (bool, error)
	MarkCompleted(dbc dbctx.Context, runID uuid.UUID) (bool, error)
	MarkFailed(dbc dbctx.Context, runID uuid.UUID, kind string, cause error) (bool, error)
	RecordAttemptError(dbc dbctx.Context, runID uuid.UUID, kind string, cause error) (bool, error)
	AppendLog(dbc dbctx.Context, runID uuid.UUID, line string) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, runID uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
}

type runRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRunRepo(db *gorm.DB, baseLog *logger.Logger) RunRepo {
	return &runRepo{
		db:  db,
		log: baseLog.With("repo", "PipelineRunRepo"),
	}
}

func (r *runRepo) Create(dbc dbctx.Context, run *domain.Run) error {
	if run == nil {
		return errors.New("nil run")
	}
	if run.RunID == uuid.Nil {
		run.RunID = uuid.New()
	}
	if run.Status == "" {
		run.Status = domain.StatusQueued
	}
	return dbc.Conn(r.db).Create(run).Error
}

func (r *runRepo) GetByID(dbc dbctx.Context, runID uuid.UUID) (*domain.Run, error) {
	if runID == uuid.Nil {
		return nil, nil
	}
	transaction := dbc.Conn(r.db)
	var run domain.Run
	err := transaction.Where("run_id = ?", runID).Limit(1).Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.RunID == uuid.Nil {
		return nil, nil
	}
	var lines []domain.RunLog
	if err := transaction.Where("run_id = ?", runID).Order("seq ASC").Find(&lines).Error; err != nil {
		return nil, err
	}
	run.Logs = make([]string, 0, len(lines))
	for _, l := range lines {
		run.Logs = append(run.Logs, l.Line)
	}
	return &run, nil
}

func (r *runRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Run, error) {
	out := []*domain.Run{}
	if userID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	err := dbc.Conn(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetJobID records the queue job id once. Later calls are no-ops.
func (r *runRepo) SetJobID(dbc dbctx.Context, runID uuid.UUID, jobID string) (bool, error) {
	if runID == uuid.Nil || jobID == "" {
		return false, nil
	}
	res := dbc.Conn(r.db).
		Model(&domain.Run{}).
		Where("run_id = ? AND job_id = ?", runID, "").
		Updates(map[string]interface{}{
			"job_id":     jobID,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkRunning claims the run for an attempt. started_at keeps the first attempt's
// timestamp; attempts counts every claim.
func (r *runRepo) MarkRunning(dbc dbctx.Context, runID uuid.UUID) (bool, error) {
	now := time.Now()
	return r.UpdateFieldsUnlessStatus(dbc, runID, domain.TerminalStatuses, map[string]interface{}{
		"status":     domain.StatusRunning,
		"attempts":   gorm.Expr("attempts + 1"),
		"started_at": gorm.Expr("COALESCE(started_at, ?)", now),
		"updated_at": now,
	})
}

func (r *runRepo) MarkCompleted(dbc dbctx.Context, runID uuid.UUID) (bool, error) {
	now := time.Now()
	return r.UpdateFieldsUnlessStatus(dbc, runID, domain.TerminalStatuses, map[string]interface{}{
		"status":        domain.StatusCompleted,
		"finished_at":   now,
		"error_message": nil,
		"error_kind":    "",
		"updated_at":    now,
	})
}

func (r *runRepo) MarkFailed(dbc dbctx.Context, runID uuid.UUID, kind string, cause error) (bool, error) {
	now := time.Now()
	msg := errMessage(cause)
	ok, err := r.UpdateFieldsUnlessStatus(dbc, runID, domain.TerminalStatuses, map[string]interface{}{
		"status":        domain.StatusFailed,
		"finished_at":   now,
		"error_message": msg,
		"error_kind":    kind,
		"updated_at":    now,
	})
	if err != nil || !ok {
		return ok, err
	}
	if logErr := r.AppendLog(dbc, runID, "failed ("+kind+"): "+msg); logErr != nil {
		r.log.Warn("append failure log line", "run_id", runID, "error", logErr)
	}
	return true, nil
}

// RecordAttemptError stores the error of a non-final attempt. The run stays running
// because the queue delivers it again.
func (r *runRepo) RecordAttemptError(dbc dbctx.Context, runID uuid.UUID, kind string, cause error) (bool, error) {
	msg := errMessage(cause)
	ok, err := r.UpdateFieldsUnlessStatus(dbc, runID, domain.TerminalStatuses, map[string]interface{}{
		"error_message": msg,
		"error_kind":    kind,
		"updated_at":    time.Now(),
	})
	if err != nil || !ok {
		return ok, err
	}
	return true, r.AppendLog(dbc, runID, "attempt failed ("+kind+"): "+msg)
}

func (r *runRepo) AppendLog(dbc dbctx.Context, runID uuid.UUID, line string) error {
	if runID == uuid.Nil {
		return nil
	}
	if len(line) > maxLogLine {
		line = line[:maxLogLine]
	}
	return dbc.Conn(r.db).Create(&domain.RunLog{RunID: runID, Line: line}).Error
}

func (r *runRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, runID uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if runID == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := dbc.Conn(r.db).
		Model(&domain.Run{}).
		Where("run_id = ?", runID)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func errMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
