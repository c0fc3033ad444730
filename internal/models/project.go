package models

import "time"

// ProposalStatus tracks supervisor review of a submitted topic.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "PENDING"
	ProposalApproved ProposalStatus = "APPROVED"
	ProposalRejected ProposalStatus = "REJECTED"
)

// ProjectStage is one of the ordered phases an approved project moves
// through. Comparison happens via StageIndex, never via the string values.
type ProjectStage string

const (
	StageProposal   ProjectStage = "PROPOSAL"
	StageChapter1_3 ProjectStage = "CHAPTER1_3"
	StageChapter4_5 ProjectStage = "CHAPTER4_5"
	StageCompleted  ProjectStage = "COMPLETED"
)

var stageOrder = []ProjectStage{
	StageProposal,
	StageChapter1_3,
	StageChapter4_5,
	StageCompleted,
}

// StageIndex returns the position of the stage in the fixed progression,
// or -1 for an unknown stage.
func StageIndex(stage ProjectStage) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// ValidStage reports whether the stage is part of the progression.
func ValidStage(stage ProjectStage) bool {
	return StageIndex(stage) >= 0
}

// CanAdvance reports whether moving from one stage to another is a legal,
// strictly forward transition. Jumping ahead over stages is allowed;
// same-stage moves and regressions are not.
func CanAdvance(from, to ProjectStage) bool {
	fromIdx, toIdx := StageIndex(from), StageIndex(to)
	return fromIdx >= 0 && toIdx >= 0 && toIdx > fromIdx
}

// Project is a topic submitted by a student. ProjectStatus is only
// meaningful once the proposal has been approved.
type Project struct {
	ID             string         `db:"id" json:"id"`
	StudentID      string         `db:"student_id" json:"student_id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	Category       string         `db:"category" json:"category"`
	Review         string         `db:"review" json:"review,omitempty"`
	Reviewer       string         `db:"reviewer" json:"reviewer,omitempty"`
	ProposalStatus ProposalStatus `db:"proposal_status" json:"proposal_status"`
	ProjectStatus  ProjectStage   `db:"project_status" json:"project_status"`
	Abstract       string         `db:"abstract" json:"abstract,omitempty"`
	Introduction   string         `db:"introduction" json:"introduction,omitempty"`
	SubmittedAt    time.Time      `db:"submitted_at" json:"submitted_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
	CompletedAt    *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}
