package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeProcessListingPhoto JobType = "process_listing_photo"
	JobTypeBackupListingPhoto  JobType = "backup_listing_photo"
	JobTypeSendListingAlerts   JobType = "send_listing_alerts"
	JobTypeNotifyAdmin         JobType = "notify_admin"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// PhotoJobPayload identifies a stored listing photo. Used by both the
// processing and the backup job.
type PhotoJobPayload struct {
	PhotoID   uint   `json:"photo_id"`
	ListingID uint   `json:"listing_id"`
	FileName  string `json:"file_name"`
	UploadDir string `json:"upload_dir"`
	Backup    bool   `json:"backup"`
}

func (p PhotoJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"photo_id":   p.PhotoID,
		"listing_id": p.ListingID,
		"file_name":  p.FileName,
		"upload_dir": p.UploadDir,
		"backup":     p.Backup,
	}
}

func PhotoJobPayloadFromMap(data map[string]interface{}) (*PhotoJobPayload, error) {
	var payload PhotoJobPayload
	err := decodePayload(data, &payload)
	return &payload, err
}

// ListingAlertsPayload names the listing whose subscribers get alerted.
type ListingAlertsPayload struct {
	ListingID uint `json:"listing_id"`
}

func (p ListingAlertsPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{"listing_id": p.ListingID}
}

func ListingAlertsPayloadFromMap(data map[string]interface{}) (*ListingAlertsPayload, error) {
	var payload ListingAlertsPayload
	err := decodePayload(data, &payload)
	return &payload, err
}

// AdminNoticePayload is a plain-text notification for ADMIN_EMAIL.
type AdminNoticePayload struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (p AdminNoticePayload) ToMap() map[string]interface{} {
	return map[string]interface{}{"subject": p.Subject, "text": p.Text}
}

func AdminNoticePayloadFromMap(data map[string]interface{}) (*AdminNoticePayload, error) {
	var payload AdminNoticePayload
	err := decodePayload(data, &payload)
	return &payload, err
}

// decodePayload round-trips through JSON so numbers decoded as float64
// land in the typed fields.
func decodePayload(data map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, out)
}

// Start marks the job as picked up by a worker.
func (j *Job) Start(now time.Time) {
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// Complete marks a successful run and clears any earlier error.
func (j *Job) Complete(now time.Time) {
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// Fail records a failed attempt. It reports whether another attempt is due,
// in which case the job is left retrying; otherwise it is failed for good.
func (j *Job) Fail(msg string, now time.Time) bool {
	j.RetryCount++
	j.ErrorMsg = msg
	j.UpdatedAt = now
	if j.RetryCount <= j.MaxRetries {
		j.Status = JobStatusRetrying
		return true
	}
	j.Status = JobStatusFailed
	return false
}

// RetryDelay is the backoff before the next attempt: one minute per failure.
func (j *Job) RetryDelay() time.Duration {
	return time.Minute * time.Duration(j.RetryCount)
}

// StartedAt is when the current attempt began, falling back to the last
// update for jobs written before ProcessedAt was set.
func (j *Job) StartedAt() time.Time {
	switch {
	case j.ProcessedAt != nil && !j.ProcessedAt.IsZero():
		return *j.ProcessedAt
	case !j.UpdatedAt.IsZero():
		return j.UpdatedAt
	}
	return j.CreatedAt
}
