package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobTimedOut  JobStatus = "timed_out"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobTimedOut, JobCancelled:
		return true
	}
	return false
}

// GenerationJob tracks one AI generation request from submit to result.
type GenerationJob struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	Kind          MediaKind  `gorm:"size:16;not null" json:"kind"`
	Prompt        string     `gorm:"type:text;not null" json:"prompt"`
	ProviderJobID string     `json:"provider_job_id,omitempty"`
	Status        JobStatus  `gorm:"size:16;not null;index" json:"status"`
	ResultURL     string     `json:"result_url,omitempty"`
	CoverURL      string     `json:"cover_url,omitempty"`
	Title         string     `json:"title,omitempty"`
	Error         string     `gorm:"type:text" json:"error,omitempty"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// BeforeCreate assigns a random id when none was set.
func (j *GenerationJob) BeforeCreate(_ *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JobPending
	}
	return nil
}
