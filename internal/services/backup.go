package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// backupSchedules mirror the cron expressions the backend scheduler uses.
var backupSchedules = map[string]string{
	"daily":   "0 3 * * *",
	"weekly":  "0 3 * * 0",
	"monthly": "0 3 1 * *",
}

// ValidBackupFrequency reports whether f is a supported schedule.
func ValidBackupFrequency(f string) bool {
	_, ok := backupSchedules[f]
	return ok
}

// NextBackupRun returns the next scheduled backup after from.
func NextBackupRun(frequency string, from time.Time) (time.Time, error) {
	spec, ok := backupSchedules[frequency]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown backup frequency %q", frequency)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from), nil
}
