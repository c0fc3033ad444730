package models

import "time"

// Assignment links a student to a supervisor. At most one assignment per
// student is active at any time; superseded rows are deactivated, never
// deleted, so the supervision history survives reassignment. Hard deletion
// only happens when a purged user is removed wholesale.
type Assignment struct {
	ID           string    `db:"id" json:"id"`
	SupervisorID string    `db:"supervisor_id" json:"supervisor_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	AssignedAt   time.Time `db:"assigned_at" json:"assigned_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
