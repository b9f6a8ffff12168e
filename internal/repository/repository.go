package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repositories 聚合所有仓储，由 bootstrap 基于同一个 *gorm.DB 构建
type Repositories struct {
	Workers   *WorkerRepository
	Sites     *SiteRepository
	Sessions  *SessionRepository
	Presence  *PresenceRepository
	Lunch     *LunchRepository
	Summaries *SummaryRepository
	Absences  *AbsenceRepository
	Schedule  *ScheduleRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Workers:   &WorkerRepository{db: db},
		Sites:     &SiteRepository{db: db},
		Sessions:  &SessionRepository{db: db},
		Presence:  &PresenceRepository{db: db},
		Lunch:     &LunchRepository{db: db},
		Summaries: &SummaryRepository{db: db},
		Absences:  &AbsenceRepository{db: db},
		Schedule:  &ScheduleRepository{db: db},
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate 唯一约束冲突（需要 gorm.Config.TranslateError）
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// utc 统一以 UTC 落库与比较，避免不同偏移量的同一时刻在 SQLite 中按字符串比较出错
func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
