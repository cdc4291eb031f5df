package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchedulerLock records which dashboard instance ran one window of a
// housekeeping job. Replicas sharing a database run each window once.
type SchedulerLock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LockName  string    `gorm:"uniqueIndex:idx_lock_name_key;size:100;not null" json:"lock_name"`
	LockKey   string    `gorm:"uniqueIndex:idx_lock_name_key;size:100;not null" json:"lock_key"`
	LockedBy  string    `gorm:"size:100" json:"locked_by"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

func (SchedulerLock) TableName() string { return "scheduler_locks" }

// SchedulerLocks claims job windows for one instance.
type SchedulerLocks struct {
	db    *gorm.DB
	owner string
	ttl   time.Duration
	now   func() time.Time
}

func NewSchedulerLocks(db *gorm.DB, owner string, ttl time.Duration) *SchedulerLocks {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SchedulerLocks{db: db, owner: owner, ttl: ttl, now: time.Now}
}

// ClaimRun inserts the lock row for job and window. It reports false when
// another instance holds it already.
func (l *SchedulerLocks) ClaimRun(job, window string) (bool, error) {
	now := l.now()
	res := l.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&SchedulerLock{
		LockName:  job,
		LockKey:   window,
		LockedBy:  l.owner,
		LockedAt:  now,
		ExpiresAt: now.Add(l.ttl),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Purge deletes expired lock rows.
func (l *SchedulerLocks) Purge() (int64, error) {
	res := l.db.Where("expires_at < ?", l.now()).Delete(&SchedulerLock{})
	return res.RowsAffected, res.Error
}
