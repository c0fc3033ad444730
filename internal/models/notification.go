package models

import "time"

// NotificationCategory labels what triggered a notification.
type NotificationCategory string

const (
	NotifyAnnouncement      NotificationCategory = "announcement"
	NotifyProjectReview     NotificationCategory = "project_review"
	NotifyStatusUpdate      NotificationCategory = "status_update"
	NotifyTopicSubmission   NotificationCategory = "topic_submission"
	NotifyFileUpload        NotificationCategory = "file_upload"
	NotifyStudentAssignment NotificationCategory = "student_assignment"
)

// Notification is a fire-and-forget message row. Core operations emit
// them but never consult delivery results.
type Notification struct {
	ID          string               `db:"id" json:"id"`
	Message     string               `db:"message" json:"message"`
	SendTo      string               `db:"send_to" json:"send_to"`
	InitiatedBy *string              `db:"initiated_by" json:"initiated_by,omitempty"`
	Category    NotificationCategory `db:"category" json:"category"`
	IsRead      bool                 `db:"is_read" json:"is_read"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
}
