package models

import "time"

// UserRole represents the available roles in the tracking system.
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleCoordinator UserRole = "COORDINATOR"
	RoleSupervisor  UserRole = "SUPERVISOR"
	RoleStudent     UserRole = "STUDENT"
)

// UserStatus marks whether an account may act in the system.
type UserStatus string

const (
	StatusActive   UserStatus = "ACTIVE"
	StatusInactive UserStatus = "INACTIVE"
)

// User represents an application user stored in the users table.
// IsAssigned mirrors the active assignment relation: it is true iff an
// active assignment row targets the student. MaxStudents only applies
// to supervisors.
type User struct {
	ID            string     `db:"id" json:"id"`
	FullName      string     `db:"full_name" json:"full_name"`
	InstitutionID string     `db:"institution_id" json:"institution_id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	Phone         string     `db:"phone" json:"phone,omitempty"`
	Role          UserRole   `db:"role" json:"role"`
	DepartmentID  *string    `db:"department_id" json:"department_id,omitempty"`
	Status        UserStatus `db:"status" json:"status"`
	IsAssigned    bool       `db:"is_assigned" json:"is_assigned"`
	MaxStudents   int        `db:"max_students" json:"max_students"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role         UserRole
	DepartmentID string
	Search       string
	IsAssigned   *bool
	Status       UserStatus
	Page         int
	PageSize     int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
