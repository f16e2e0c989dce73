package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
)

// FailedJobRecord is the row written for a job that ran out of attempts.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	JobType  string    `gorm:"size:255;not null;index"`
	Payload  string    `gorm:"type:text;not null"`
	Error    string    `gorm:"type:text"`
	Attempts int       `gorm:"not null;default:0"`
	FailedAt time.Time `gorm:"autoCreateTime"`
}

func (FailedJobRecord) TableName() string { return "failed_jobs" }

// UseDB persists failed jobs to db as well as keeping them in memory.
// Call once at boot after the database is connected:
//
//	queue.UseDB(database.DB)
func (m *Manager) UseDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&FailedJobRecord{}); err != nil {
		return fmt.Errorf("queue: migrate failed_jobs: %w", err)
	}
	m.mu.Lock()
	m.db = db
	m.mu.Unlock()
	return nil
}

func (m *Manager) persistFailed(job Job, typeName string, lastErr error, attempts int) {
	now := time.Now()

	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{
		Type: typeName, Job: job, Err: lastErr, FailedAt: now, Attempts: attempts,
	})
	db := m.db
	m.mu.Unlock()

	if db == nil {
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error": "could not marshal: %v"}`, err))
	}

	record := FailedJobRecord{
		JobType:  typeName,
		Payload:  string(payload),
		Error:    lastErr.Error(),
		Attempts: attempts,
		FailedAt: now,
	}
	if err := db.Create(&record).Error; err != nil {
		logger.Error("queue: persist failed job", "type", typeName, "error", err)
	}
}
