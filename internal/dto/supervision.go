package dto

import (
	"time"

	"github.com/noah-isme/fyp-track-api/internal/models"
)

// AssignedStudentRow is the raw roll-up row produced by the supervision
// aggregation query. Projects arrives as a JSON array built in SQL and is
// decoded by the service.
type AssignedStudentRow struct {
	AssignmentID  string    `db:"assignment_id"`
	StudentID     string    `db:"student_id"`
	FullName      string    `db:"full_name"`
	InstitutionID string    `db:"institution_id"`
	Email         string    `db:"email"`
	Phone         string    `db:"phone"`
	AssignedAt    time.Time `db:"assigned_at"`
	Projects      []byte    `db:"projects"`
}

// ProjectSummary is one element of the roll-up's project JSON array.
type ProjectSummary struct {
	ProjectID      string                `json:"project_id"`
	Title          string                `json:"title"`
	ProposalStatus models.ProposalStatus `json:"proposal_status"`
	ProjectStatus  models.ProjectStage   `json:"project_status"`
}

// AssignedStudent is the shaped view handed to callers: the approved topic
// (if any) with its stage, plus the titles of rejected topics.
type AssignedStudent struct {
	AssignmentID   string               `json:"assignment_id"`
	StudentID      string               `json:"student_id"`
	FullName       string               `json:"full_name"`
	InstitutionID  string               `json:"institution_id"`
	Email          string               `json:"email"`
	Phone          string               `json:"phone,omitempty"`
	ApprovedTopic  string               `json:"approved_topic,omitempty"`
	ProjectStatus  *models.ProjectStage `json:"project_status,omitempty"`
	RejectedTopics []string             `json:"rejected_topics"`
}
