package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/noah-isme/fyp-track-api/internal/dto"
	"github.com/noah-isme/fyp-track-api/internal/models"
	appErrors "github.com/noah-isme/fyp-track-api/pkg/errors"
	"github.com/noah-isme/fyp-track-api/pkg/storage"
)

// Shared in-memory fakes used across the service tests. They model just
// enough behaviour (active-assignment bookkeeping, version sequences,
// approval cascades) for the workflows under test to run end to end.

type stubUserRepo struct {
	users      map[string]*models.User
	purged     []string
	lastFilter models.UserFilter
	listTotal  int
}

func newStubUserRepo(users ...*models.User) *stubUserRepo {
	repo := &stubUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *stubUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubUserRepo) FindByInstitutionID(ctx context.Context, institutionID string) (*models.User, error) {
	for _, u := range m.users {
		if u.InstitutionID == institutionID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(m.users)+1)
	}
	m.users[user.ID] = user
	return nil
}

func (m *stubUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	total := m.listTotal
	if total == 0 {
		total = len(users)
	}
	return users, total, nil
}

func (m *stubUserRepo) SetAssigned(ctx context.Context, id string, assigned bool) error {
	if u, ok := m.users[id]; ok {
		u.IsAssigned = assigned
	}
	return nil
}

func (m *stubUserRepo) UpdateMaxStudents(ctx context.Context, id string, max int) error {
	if u, ok := m.users[id]; ok {
		u.MaxStudents = max
	}
	return nil
}

func (m *stubUserRepo) PurgeCascade(ctx context.Context, userID string) error {
	m.purged = append(m.purged, userID)
	delete(m.users, userID)
	return nil
}

type stubAssignmentRepo struct {
	active      map[string]*models.Assignment
	supervisors map[string]string
	deactivated []string
	created     []*models.Assignment
	rows        []dto.AssignedStudentRow
}

func newStubAssignmentRepo() *stubAssignmentRepo {
	return &stubAssignmentRepo{
		active:      make(map[string]*models.Assignment),
		supervisors: make(map[string]string),
	}
}

func (m *stubAssignmentRepo) CountActiveBySupervisor(ctx context.Context, supervisorID string) (int, error) {
	count := 0
	for _, a := range m.active {
		if a.SupervisorID == supervisorID {
			count++
		}
	}
	return count, nil
}

func (m *stubAssignmentRepo) FindActiveByStudent(ctx context.Context, studentID string) (*models.Assignment, error) {
	if a, ok := m.active[studentID]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubAssignmentRepo) ExistsActive(ctx context.Context, supervisorID, studentID string) (bool, error) {
	a, ok := m.active[studentID]
	return ok && a.SupervisorID == supervisorID, nil
}

func (m *stubAssignmentRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	for studentID, a := range m.active {
		if a.ID == id {
			delete(m.active, studentID)
		}
	}
	return nil
}

func (m *stubAssignmentRepo) CreateBatch(ctx context.Context, assignments []*models.Assignment) error {
	for _, a := range assignments {
		if a.ID == "" {
			a.ID = fmt.Sprintf("assignment-%d", len(m.created)+1)
		}
		m.created = append(m.created, a)
		m.active[a.StudentID] = a
	}
	return nil
}

func (m *stubAssignmentRepo) ActiveSupervisorName(ctx context.Context, studentID string) (string, error) {
	if a, ok := m.active[studentID]; ok {
		return m.supervisors[a.SupervisorID], nil
	}
	return "", nil
}

func (m *stubAssignmentRepo) ListAssignedStudents(ctx context.Context, supervisorID string) ([]dto.AssignedStudentRow, error) {
	return m.rows, nil
}

type stubProjectRepo struct {
	projects map[string]*models.Project
	cascades int
	deleted  []string
}

func newStubProjectRepo(projects ...*models.Project) *stubProjectRepo {
	repo := &stubProjectRepo{projects: make(map[string]*models.Project)}
	for _, p := range projects {
		repo.projects[p.ID] = p
	}
	return repo
}

func (m *stubProjectRepo) FindByID(ctx context.Context, id string) (*models.Project, error) {
	if p, ok := m.projects[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubProjectRepo) FindApprovedByStudent(ctx context.Context, studentID string) (*models.Project, error) {
	for _, p := range m.projects {
		if p.StudentID == studentID && p.ProposalStatus == models.ProposalApproved {
			copied := *p
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *stubProjectRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Project, error) {
	projects := make([]models.Project, 0)
	for _, p := range m.projects {
		if p.StudentID == studentID {
			projects = append(projects, *p)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

func (m *stubProjectRepo) CreateBatch(ctx context.Context, projects []*models.Project) error {
	for _, p := range projects {
		if p.ID == "" {
			p.ID = fmt.Sprintf("project-%d", len(m.projects)+1)
		}
		if p.ProposalStatus == "" {
			p.ProposalStatus = models.ProposalPending
		}
		if p.ProjectStatus == "" {
			p.ProjectStatus = models.StageProposal
		}
		m.projects[p.ID] = p
	}
	return nil
}

func (m *stubProjectRepo) ApproveWithCascade(ctx context.Context, topicID, studentID, review, reviewer string) error {
	m.cascades++
	for _, p := range m.projects {
		if p.StudentID == studentID && p.ID != topicID && p.ProposalStatus == models.ProposalApproved {
			p.ProposalStatus = models.ProposalRejected
		}
	}
	target, ok := m.projects[topicID]
	if !ok {
		return sql.ErrNoRows
	}
	target.ProposalStatus = models.ProposalApproved
	target.Review = review
	target.Reviewer = reviewer
	return nil
}

func (m *stubProjectRepo) UpdateProposalStatus(ctx context.Context, topicID string, status models.ProposalStatus, review, reviewer string) error {
	p, ok := m.projects[topicID]
	if !ok {
		return sql.ErrNoRows
	}
	p.ProposalStatus = status
	p.Review = review
	p.Reviewer = reviewer
	return nil
}

func (m *stubProjectRepo) UpdateStage(ctx context.Context, projectID string, stage models.ProjectStage, completedAt *time.Time) error {
	p, ok := m.projects[projectID]
	if !ok {
		return sql.ErrNoRows
	}
	p.ProjectStatus = stage
	p.CompletedAt = completedAt
	return nil
}

func (m *stubProjectRepo) UpdateNarrative(ctx context.Context, projectID, abstract, introduction string) error {
	p, ok := m.projects[projectID]
	if !ok {
		return sql.ErrNoRows
	}
	p.Abstract = abstract
	p.Introduction = introduction
	return nil
}

func (m *stubProjectRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.projects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.projects, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *stubProjectRepo) ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]models.Project, error) {
	projects := make([]models.Project, 0)
	for _, p := range m.projects {
		if p.ProjectStatus == models.StageCompleted && p.CompletedAt != nil && p.CompletedAt.Before(cutoff) {
			projects = append(projects, *p)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

type stubFileRepo struct {
	files     map[string]*models.ProjectFile
	owners    map[string]string
	uploadSeq int
}

func newStubFileRepo() *stubFileRepo {
	return &stubFileRepo{
		files:  make(map[string]*models.ProjectFile),
		owners: make(map[string]string),
	}
}

func (m *stubFileRepo) NextVersion(ctx context.Context, projectID string, fileType models.FileType) (int, error) {
	max := 0
	for _, f := range m.files {
		if f.ProjectID == projectID && f.Type == fileType && f.Version > max {
			max = f.Version
		}
	}
	return max + 1, nil
}

func (m *stubFileRepo) Create(ctx context.Context, file *models.ProjectFile) error {
	if file.ID == "" {
		m.uploadSeq++
		file.ID = fmt.Sprintf("file-%d", m.uploadSeq)
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC().Add(time.Duration(m.uploadSeq) * time.Millisecond)
	}
	m.files[file.ID] = file
	return nil
}

func (m *stubFileRepo) FindByID(ctx context.Context, id string) (*models.ProjectFile, error) {
	if f, ok := m.files[id]; ok {
		copied := *f
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubFileRepo) List(ctx context.Context, projectID string, filter models.ProjectFileFilter) ([]models.ProjectFile, error) {
	files := make([]models.ProjectFile, 0)
	for _, f := range m.files {
		if f.ProjectID != projectID {
			continue
		}
		if filter.Stage != nil && f.ProjectStage != *filter.Stage {
			continue
		}
		if filter.Type != nil && f.Type != *filter.Type {
			continue
		}
		files = append(files, *f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].UploadedAt.Before(files[j].UploadedAt) })
	return files, nil
}

func (m *stubFileRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.files[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.files, id)
	return nil
}

func (m *stubFileRepo) FindFinal(ctx context.Context, projectID string) (*models.ProjectFile, error) {
	var found *models.ProjectFile
	for _, f := range m.files {
		if f.ProjectID == projectID && f.Type == models.FileSubmission && f.IsFinal {
			if found == nil || f.Version > found.Version {
				found = f
			}
		}
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	copied := *found
	return &copied, nil
}

func (m *stubFileRepo) FindLatest(ctx context.Context, projectID string) (*models.ProjectFile, error) {
	var found *models.ProjectFile
	for _, f := range m.files {
		if f.ProjectID == projectID {
			if found == nil || f.UploadedAt.After(found.UploadedAt) {
				found = f
			}
		}
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	copied := *found
	return &copied, nil
}

func (m *stubFileRepo) MarkLatestFinal(ctx context.Context, projectID string) (bool, error) {
	var latest *models.ProjectFile
	for _, f := range m.files {
		if f.ProjectID == projectID && f.Type == models.FileSubmission {
			if latest == nil || f.Version > latest.Version {
				latest = f
			}
		}
	}
	if latest == nil {
		return false, nil
	}
	latest.IsFinal = true
	return true, nil
}

func (m *stubFileRepo) ListByStudent(ctx context.Context, studentID string) ([]models.ProjectFile, error) {
	files := make([]models.ProjectFile, 0)
	for _, f := range m.files {
		if m.owners[f.ProjectID] == studentID {
			files = append(files, *f)
		}
	}
	return files, nil
}

type stubBlobStore struct {
	stored    []string
	deleted   []string
	failStore bool
}

func (m *stubBlobStore) Store(localPath, namespace string) (storage.StoredObject, error) {
	if m.failStore {
		return storage.StoredObject{}, fmt.Errorf("blob store unavailable")
	}
	location := filepath.Join(namespace, filepath.Base(localPath))
	m.stored = append(m.stored, location)
	return storage.StoredObject{Location: location, Size: 42}, nil
}

func (m *stubBlobStore) Delete(locations []string) error {
	m.deleted = append(m.deleted, locations...)
	return nil
}

type stubDepartmentRepo struct {
	departments map[string]*models.Department
}

func (m *stubDepartmentRepo) FindByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := m.departments[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

type stubArchiveRepo struct {
	archives   []*models.Archive
	listCalls  int
	lastFilter models.ArchiveFilter
}

func (m *stubArchiveRepo) Create(ctx context.Context, archive *models.Archive) error {
	if archive.ID == "" {
		archive.ID = fmt.Sprintf("archive-%d", len(m.archives)+1)
	}
	if archive.ArchivedAt.IsZero() {
		archive.ArchivedAt = time.Now().UTC()
	}
	m.archives = append(m.archives, archive)
	return nil
}

func (m *stubArchiveRepo) GetByID(ctx context.Context, id string) (*models.Archive, error) {
	for _, a := range m.archives {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *stubArchiveRepo) List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, int, error) {
	m.listCalls++
	m.lastFilter = filter
	archives := make([]models.Archive, 0, len(m.archives))
	for _, a := range m.archives {
		archives = append(archives, *a)
	}
	return archives, len(archives), nil
}

type stubCache struct {
	entries  map[string][]byte
	patterns []string
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string][]byte)}
}

func (m *stubCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *stubCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *stubCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	m.entries = make(map[string][]byte)
	return nil
}

type recordingNotifier struct {
	sent []models.Notification
}

func (m *recordingNotifier) Notify(ctx context.Context, notification models.Notification) {
	m.sent = append(m.sent, notification)
}
