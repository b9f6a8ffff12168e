package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkerError 批处理中单个工人的失败
type WorkerError struct {
	Err      error  `json:"-"`
	Message  string `json:"message"`
	WorkerID int64  `json:"worker_id"`
}

// Report 批处理结果。单个工人失败只记录，不中断整批
type Report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	RunID      string        `json:"run_id"`
	Failures   []WorkerError `json:"failures,omitempty"`
	Processed  int           `json:"processed"`
}

func NewReport(now time.Time) Report {
	return Report{RunID: uuid.NewString(), StartedAt: now}
}

func (r *Report) Fail(workerID int64, err error) {
	r.Failures = append(r.Failures, WorkerError{WorkerID: workerID, Err: err, Message: err.Error()})
}

func (r *Report) Failed() int {
	return len(r.Failures)
}

// Err 汇总所有失败，没有失败时返回 nil
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		msgs = append(msgs, fmt.Sprintf("worker %d: %s", f.WorkerID, f.Message))
	}
	return fmt.Errorf("run %s: %d failures: %s", r.RunID, len(r.Failures), strings.Join(msgs, "; "))
}
