package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// RecognitionJob tracks one long-running recognition.
type RecognitionJob struct {
	ID            string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OperationName string `gorm:"column:operation_name;type:text;uniqueIndex" json:"operation_name"`

	SourceURI    string `gorm:"column:source_uri;type:text" json:"source_uri,omitempty"`
	Encoding     string `gorm:"column:encoding;type:text" json:"encoding"`
	SampleRate   int    `gorm:"column:sample_rate" json:"sample_rate"`
	LanguageCode string `gorm:"column:language_code;type:text" json:"language_code"`
	Transport    string `gorm:"column:transport;type:text" json:"transport"` // grpc|http

	Status     string         `gorm:"column:status;type:text;index" json:"status"` // running|done|failed
	Progress   int            `gorm:"column:progress" json:"progress_percent"`
	Transcript string         `gorm:"column:transcript;type:text" json:"transcript,omitempty"`
	Confidence float64        `gorm:"column:confidence" json:"confidence,omitempty"`
	Results    datatypes.JSON `gorm:"column:results;type:jsonb" json:"results,omitempty"`
	Error      string         `gorm:"column:error;type:text" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (RecognitionJob) TableName() string { return "recognition_jobs" }
