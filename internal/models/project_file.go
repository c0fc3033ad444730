package models

import "time"

// FileType distinguishes student submissions from supervisor corrections.
// The two kinds run fully independent version sequences per project.
type FileType string

const (
	FileSubmission FileType = "SUBMISSION"
	FileCorrection FileType = "CORRECTION"
)

// ValidFileType reports whether the type is known.
func ValidFileType(t FileType) bool {
	return t == FileSubmission || t == FileCorrection
}

// ProjectFile is versioned upload metadata. Version is strictly increasing
// per (project, type) and never reused. IsFinal marks the submission that
// survives into the public archive.
type ProjectFile struct {
	ID           string       `db:"id" json:"id"`
	ProjectID    string       `db:"project_id" json:"project_id"`
	Version      int          `db:"version" json:"version"`
	FilePath     string       `db:"file_path" json:"file_path"`
	FileSize     int64        `db:"file_size" json:"file_size"`
	Type         FileType     `db:"type" json:"type"`
	IsFinal      bool         `db:"is_final" json:"is_final"`
	ProjectStage ProjectStage `db:"project_stage" json:"project_stage"`
	UploadedAt   time.Time    `db:"uploaded_at" json:"uploaded_at"`
}

// ProjectFileFilter narrows file listings.
type ProjectFileFilter struct {
	Stage *ProjectStage
	Type  *FileType
}
