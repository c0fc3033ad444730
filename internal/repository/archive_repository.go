package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-track-api/internal/models"
)

const archiveColumns = `id, title, author, email, category, department, supervised_by, year, abstract, introduction, file_path, archived_at`

// ArchiveRepository persists the write-once public catalog.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs the repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// Create inserts an archive snapshot.
func (r *ArchiveRepository) Create(ctx context.Context, archive *models.Archive) error {
	if archive.ID == "" {
		archive.ID = uuid.NewString()
	}
	if archive.ArchivedAt.IsZero() {
		archive.ArchivedAt = time.Now().UTC()
	}
	const query = `INSERT INTO archives (id, title, author, email, category, department, supervised_by, year, abstract, introduction, file_path, archived_at)
	VALUES (:id, :title, :author, :email, :category, :department, :supervised_by, :year, :abstract, :introduction, :file_path, :archived_at)`
	if _, err := r.db.NamedExecContext(ctx, query, archive); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	return nil
}

// GetByID fetches an archive entry.
func (r *ArchiveRepository) GetByID(ctx context.Context, id string) (*models.Archive, error) {
	query := fmt.Sprintf(`SELECT %s FROM archives WHERE id = $1`, archiveColumns)
	var archive models.Archive
	if err := r.db.GetContext(ctx, &archive, query, id); err != nil {
		return nil, err
	}
	return &archive, nil
}

// List returns catalog entries matching the filter plus the total count.
func (r *ArchiveRepository) List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR author ILIKE $%d OR supervised_by ILIKE $%d)", len(args), len(args), len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM archives"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count archives: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	query := fmt.Sprintf("SELECT %s FROM archives%s ORDER BY archived_at DESC LIMIT %d OFFSET %d",
		archiveColumns, where, pageSize, (page-1)*pageSize)

	var archives []models.Archive
	if err := r.db.SelectContext(ctx, &archives, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list archives: %w", err)
	}
	return archives, total, nil
}
