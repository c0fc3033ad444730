package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fyp-track-api/internal/models"
	appErrors "github.com/noah-isme/fyp-track-api/pkg/errors"
	"github.com/noah-isme/fyp-track-api/pkg/storage"
)

type archiveRepository interface {
	GetByID(ctx context.Context, id string) (*models.Archive, error)
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, int, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CatalogPage is one page of catalog search results.
type CatalogPage struct {
	Archives []models.Archive `json:"archives"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// DownloadGrant is a time-limited token for fetching an archived file.
type DownloadGrant struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CatalogService serves the public archive: read-only search over
// completed projects plus signed download links for their final files.
type CatalogService struct {
	archives archiveRepository
	cache    catalogCache
	signer   *storage.SignedURLSigner
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCatalogService creates a service instance. The cache may be nil, in
// which case every search hits the database.
func NewCatalogService(archives archiveRepository, cache catalogCache, signer *storage.SignedURLSigner, cacheTTL time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CatalogService{
		archives: archives,
		cache:    cache,
		signer:   signer,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Search returns a page of catalog entries. Results are cached per filter
// combination; the retention sweep invalidates the whole catalog keyspace
// after publishing new entries.
func (s *CatalogService) Search(ctx context.Context, filter models.ArchiveFilter) (*CatalogPage, error) {
	key := catalogKey(filter)
	if s.cache != nil {
		var cached CatalogPage
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if err != appErrors.ErrCacheMiss {
			s.logger.Sugar().Warnw("catalog cache read failed", "key", key, "error", err)
		}
	}

	archives, total, err := s.archives.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search catalog")
	}
	if archives == nil {
		archives = []models.Archive{}
	}

	page := &CatalogPage{
		Archives: archives,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	if page.Page <= 0 {
		page.Page = 1
	}
	if page.PageSize <= 0 || page.PageSize > 100 {
		page.PageSize = 10
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, page, s.cacheTTL); err != nil {
			s.logger.Sugar().Warnw("catalog cache write failed", "key", key, "error", err)
		}
	}
	return page, nil
}

// GetByID fetches one catalog entry.
func (s *CatalogService) GetByID(ctx context.Context, id string) (*models.Archive, error) {
	archive, err := s.archives.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archive")
	}
	return archive, nil
}

// GrantDownload issues a signed, expiring token for the archive's file.
func (s *CatalogService) GrantDownload(ctx context.Context, archiveID string) (*DownloadGrant, error) {
	archive, err := s.GetByID(ctx, archiveID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(archive.ID, archive.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &DownloadGrant{Token: token, ExpiresAt: expiresAt}, nil
}

// ResolveDownload validates a token and returns the blob location it grants
// access to.
func (s *CatalogService) ResolveDownload(ctx context.Context, token string) (string, error) {
	archiveID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	archive, err := s.GetByID(ctx, archiveID)
	if err != nil {
		return "", err
	}
	if archive.FilePath != relPath {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match archive")
	}
	return archive.FilePath, nil
}

func catalogKey(filter models.ArchiveFilter) string {
	return fmt.Sprintf("catalog:search:%s:%s:%d:%d:%d",
		filter.Search, filter.Category, filter.Year, filter.Page, filter.PageSize)
}
