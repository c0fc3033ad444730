package models

import "time"

// Archive is the write-once public snapshot of a completed project. It is
// denormalized on purpose: the originating user, project, and assignment
// rows are purged after archival, so nothing here references them.
type Archive struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Author       string    `db:"author" json:"author"`
	Email        string    `db:"email" json:"email"`
	Category     string    `db:"category" json:"category"`
	Department   string    `db:"department" json:"department"`
	SupervisedBy string    `db:"supervised_by" json:"supervised_by"`
	Year         int       `db:"year" json:"year"`
	Abstract     string    `db:"abstract" json:"abstract"`
	Introduction string    `db:"introduction" json:"introduction"`
	FilePath     string    `db:"file_path" json:"file_path"`
	ArchivedAt   time.Time `db:"archived_at" json:"archived_at"`
}

// ArchiveFilter captures catalog search criteria.
type ArchiveFilter struct {
	Search   string
	Category string
	Year     int
	Page     int
	PageSize int
}
