package models

import "time"

// Department groups users for coordination and archival labeling.
type Department struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	CoordinatorID *string   `db:"coordinator_id" json:"coordinator_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
