package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"colabtrack/internal/model"
	"colabtrack/internal/repository"
)

// fakeDB is an in-memory stand-in for the postgres repositories. A transaction holds the
// mutex for its whole callback; calls made through the tx view skip locking.
type fakeDB struct {
	mu sync.Mutex

	users       map[uuid.UUID]*model.User
	projects    map[uuid.UUID]*model.Project
	tasks       map[uuid.UUID]*model.Task
	deps        map[uuid.UUID]map[uuid.UUID]struct{}
	checklists  map[uuid.UUID][]model.ChecklistItem
	tags        map[uuid.UUID][]model.TaskTag
	comments    map[uuid.UUID]*model.Comment
	attachments map[uuid.UUID]*model.FileAttachment

	// lockedVersions records the attachment ids returned by LockVersionsOf.
	lockedVersions []uuid.UUID

	// failWith, when set, is returned from every store call.
	failWith error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:       map[uuid.UUID]*model.User{},
		projects:    map[uuid.UUID]*model.Project{},
		tasks:       map[uuid.UUID]*model.Task{},
		deps:        map[uuid.UUID]map[uuid.UUID]struct{}{},
		checklists:  map[uuid.UUID][]model.ChecklistItem{},
		tags:        map[uuid.UUID][]model.TaskTag{},
		comments:    map[uuid.UUID]*model.Comment{},
		attachments: map[uuid.UUID]*model.FileAttachment{},
	}
}

func (db *fakeDB) addProject() uuid.UUID {
	id := uuid.New()
	db.projects[id] = &model.Project{ID: id, Name: "project " + id.String()[:8]}
	return id
}

func (db *fakeDB) addComment(taskID uuid.UUID) uuid.UUID {
	id := uuid.New()
	db.comments[id] = &model.Comment{ID: id, TaskID: taskID, Body: "note"}
	return id
}

func (db *fakeDB) dependsOn(taskID, depID uuid.UUID) bool {
	_, ok := db.deps[taskID][depID]
	return ok
}

// store is a view over fakeDB that implements the repository interfaces.
type fakeStore struct {
	db   *fakeDB
	inTx bool
}

var (
	_ repository.TaskStore               = (*fakeStore)(nil)
	_ repository.AttachmentStore         = fakeAttachments{}
	_ repository.UserRepositoryInterface = fakeUsers{}
)

// fakeAttachments adapts fakeStore to AttachmentStore, whose Transaction and GetByID
// signatures differ from TaskStore's.
type fakeAttachments struct{ *fakeStore }

func newFakeStore(db *fakeDB) *fakeStore { return &fakeStore{db: db} }

func (s *fakeStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.db.mu.Lock()
	return s.db.mu.Unlock
}

func (s *fakeStore) err(ctx context.Context) error {
	if ctx.Err() != nil {
		return repository.ErrTimeout
	}
	return s.db.failWith
}

func (s *fakeStore) Transaction(ctx context.Context, fn func(tx repository.TaskStore) error) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	return fn(&fakeStore{db: s.db, inTx: true})
}

func (s *fakeStore) LockProjects(ctx context.Context, ids ...uuid.UUID) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := s.db.projects[id]; !ok {
			return repository.ErrProjectNotFound
		}
	}
	return nil
}

func (s *fakeStore) Create(ctx context.Context, task *model.Task) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	stored := *task
	stored.Checklist, stored.Tags = nil, nil
	s.db.tasks[task.ID] = &stored
	s.db.checklists[task.ID] = append([]model.ChecklistItem(nil), task.Checklist...)
	s.db.tags[task.ID] = append([]model.TaskTag(nil), task.Tags...)
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return nil, err
	}
	t, ok := s.db.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeStore) GetDetailed(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return nil, err
	}
	t, ok := s.db.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	cp := *t
	cp.Checklist = append([]model.ChecklistItem(nil), s.db.checklists[id]...)
	cp.Tags = append([]model.TaskTag(nil), s.db.tags[id]...)
	for depID := range s.db.deps[id] {
		dep := *s.db.tasks[depID]
		cp.Dependencies = append(cp.Dependencies, &dep)
	}
	for _, other := range s.db.tasks {
		if other.ParentTaskID != nil && *other.ParentTaskID == id {
			cp.Subtasks = append(cp.Subtasks, *other)
		}
	}
	return &cp, nil
}

func (s *fakeStore) ListByProject(ctx context.Context, projectID uuid.UUID, filter repository.TaskFilter) ([]model.Task, error) {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return nil, err
	}
	var out []model.Task
	for _, t := range s.db.tasks {
		if t.ProjectID != projectID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *filter.AssigneeID) {
			continue
		}
		out = append(out, *t)
	}
	sortTasks(out)
	return out, nil
}

func (s *fakeStore) ListByAssignee(ctx context.Context, userID uuid.UUID) ([]model.Task, error) {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return nil, err
	}
	var out []model.Task
	for _, t := range s.db.tasks {
		if t.AssigneeID != nil && *t.AssigneeID == userID {
			out = append(out, *t)
		}
	}
	sortTasks(out)
	return out, nil
}

func (s *fakeStore) Update(ctx context.Context, task *model.Task) error {
	return s.mutateTask(ctx, task.ID, func(t *model.Task) {
		t.Title = task.Title
		t.Description = task.Description
		t.Priority = task.Priority
		t.AssigneeID = task.AssigneeID
		t.DueDate = task.DueDate
		t.UpdatedAt = task.UpdatedAt
	})
}

func (s *fakeStore) ReplaceChecklist(ctx context.Context, taskID uuid.UUID, items []model.ChecklistItem) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	s.db.checklists[taskID] = append([]model.ChecklistItem(nil), items...)
	return nil
}

func (s *fakeStore) ReplaceTags(ctx context.Context, taskID uuid.UUID, tags []model.TaskTag) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	s.db.tags[taskID] = append([]model.TaskTag(nil), tags...)
	return nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, taskID uuid.UUID, status model.TaskStatus, at time.Time) error {
	return s.mutateTask(ctx, taskID, func(t *model.Task) {
		t.Status = status
		t.UpdatedAt = at
	})
}

func (s *fakeStore) AddTimeSpent(ctx context.Context, taskID uuid.UUID, seconds int64, at time.Time) error {
	return s.mutateTask(ctx, taskID, func(t *model.Task) {
		t.TimeSpent += seconds
		t.UpdatedAt = at
	})
}

func (s *fakeStore) Touch(ctx context.Context, taskID uuid.UUID, at time.Time) error {
	return s.mutateTask(ctx, taskID, func(t *model.Task) { t.UpdatedAt = at })
}

func (s *fakeStore) SetParent(ctx context.Context, taskID uuid.UUID, parentID *uuid.UUID, at time.Time) error {
	return s.mutateTask(ctx, taskID, func(t *model.Task) {
		t.ParentTaskID = parentID
		t.UpdatedAt = at
	})
}

func (s *fakeStore) mutateTask(ctx context.Context, id uuid.UUID, apply func(*model.Task)) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	t, ok := s.db.tasks[id]
	if !ok {
		return repository.ErrTaskNotFound
	}
	apply(t)
	return nil
}

func (s *fakeStore) DependenciesOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return nil, err
	}
	var out []uuid.UUID
	for _, id := range ids {
		for dep := range s.db.deps[id] {
			out = append(out, dep)
		}
	}
	return out, nil
}

func (s *fakeStore) ListDependencies(ctx context.Context, taskID uuid.UUID) ([]model.Task, error) {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return nil, err
	}
	var out []model.Task
	for dep := range s.db.deps[taskID] {
		out = append(out, *s.db.tasks[dep])
	}
	sortTasks(out)
	return out, nil
}

func (s *fakeStore) AddDependency(ctx context.Context, taskID, dependencyID uuid.UUID) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	if s.db.deps[taskID] == nil {
		s.db.deps[taskID] = map[uuid.UUID]struct{}{}
	}
	s.db.deps[taskID][dependencyID] = struct{}{}
	return nil
}

func (s *fakeStore) RemoveDependency(ctx context.Context, taskID, dependencyID uuid.UUID) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	delete(s.db.deps[taskID], dependencyID)
	return nil
}

func (s *fakeStore) ChildrenOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return nil, err
	}
	parents := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		parents[id] = struct{}{}
	}
	var out []uuid.UUID
	for _, t := range s.db.tasks {
		if t.ParentTaskID == nil {
			continue
		}
		if _, ok := parents[*t.ParentTaskID]; ok {
			out = append(out, t.ID)
		}
	}
	return out, nil
}

func (s *fakeStore) ProjectTaskIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return nil, err
	}
	var out []uuid.UUID
	for _, t := range s.db.tasks {
		if t.ProjectID == projectID {
			out = append(out, t.ID)
		}
	}
	return out, nil
}

func (s *fakeStore) DetachDependencies(ctx context.Context, ids []uuid.UUID) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	for _, id := range ids {
		delete(s.db.deps, id)
		for _, edges := range s.db.deps {
			delete(edges, id)
		}
	}
	return nil
}

func (s *fakeStore) DeleteComments(ctx context.Context, taskIDs []uuid.UUID) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	owned := idSet(taskIDs)
	for id, c := range s.db.comments {
		if _, ok := owned[c.TaskID]; ok {
			delete(s.db.comments, id)
		}
	}
	return nil
}

func (s *fakeStore) DeleteAttachments(ctx context.Context, taskIDs []uuid.UUID) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	owned := idSet(taskIDs)
	for id, a := range s.db.attachments {
		if _, ok := owned[a.TaskID]; ok {
			delete(s.db.attachments, id)
		}
	}
	return nil
}

func (s *fakeStore) DeleteTasks(ctx context.Context, ids []uuid.UUID) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	removed := 0
	for _, id := range ids {
		if _, ok := s.db.tasks[id]; ok {
			removed++
		}
		delete(s.db.tasks, id)
		delete(s.db.checklists, id)
		delete(s.db.tags, id)
	}
	if removed == 0 {
		return repository.ErrTaskNotFound
	}
	return nil
}

func (s *fakeStore) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	defer s.lock()()
	if err := s.err(ctx); err != nil {
		return err
	}
	if _, ok := s.db.projects[projectID]; !ok {
		return repository.ErrProjectNotFound
	}
	delete(s.db.projects, projectID)
	return nil
}

// Attachment store

func (a fakeAttachments) Transaction(ctx context.Context, fn func(tx repository.AttachmentStore) error) error {
	defer a.lock()()
	if err := a.err(ctx); err != nil {
		return err
	}
	return fn(fakeAttachments{&fakeStore{db: a.db, inTx: true}})
}

func (a fakeAttachments) LockTask(ctx context.Context, taskID uuid.UUID) error {
	defer a.lock()()
	if err := a.err(ctx); err != nil {
		return err
	}
	if _, ok := a.db.tasks[taskID]; !ok {
		return repository.ErrTaskNotFound
	}
	return nil
}

func (a fakeAttachments) LockForVersioning(ctx context.Context, id uuid.UUID) (*model.FileAttachment, error) {
	return a.GetByID(ctx, id)
}

func (a fakeAttachments) Create(ctx context.Context, attachment *model.FileAttachment) error {
	defer a.lock()()
	if err := a.err(ctx); err != nil {
		return err
	}
	cp := *attachment
	a.db.attachments[attachment.ID] = &cp
	return nil
}

func (a fakeAttachments) GetByID(ctx context.Context, id uuid.UUID) (*model.FileAttachment, error) {
	defer a.lock()()
	if err := a.err(ctx); err != nil {
		return nil, err
	}
	found, ok := a.db.attachments[id]
	if !ok {
		return nil, repository.ErrAttachmentNotFound
	}
	cp := *found
	return &cp, nil
}

func (a fakeAttachments) ListByTask(ctx context.Context, taskID uuid.UUID) ([]model.FileAttachment, error) {
	defer a.lock()()
	if err := a.err(ctx); err != nil {
		return nil, err
	}
	var out []model.FileAttachment
	for _, f := range a.db.attachments {
		if f.TaskID == taskID {
			out = append(out, *f)
		}
	}
	sortAttachments(out)
	return out, nil
}

func (a fakeAttachments) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.FileAttachment, error) {
	defer a.lock()()
	if err := a.err(ctx); err != nil {
		return nil, err
	}
	var out []model.FileAttachment
	for _, id := range ids {
		if f, ok := a.db.attachments[id]; ok {
			out = append(out, *f)
		}
	}
	sortAttachments(out)
	return out, nil
}

func (a fakeAttachments) VersionsOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	defer a.lock()()
	if err := a.err(ctx); err != nil {
		return nil, err
	}
	parents := idSet(ids)
	var out []uuid.UUID
	for _, f := range a.db.attachments {
		if f.ParentFileID == nil {
			continue
		}
		if _, ok := parents[*f.ParentFileID]; ok {
			out = append(out, f.ID)
		}
	}
	return out, nil
}

func (a fakeAttachments) LockVersionsOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	out, err := a.VersionsOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	a.db.lockedVersions = append(a.db.lockedVersions, out...)
	return out, nil
}

func (a fakeAttachments) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	defer a.lock()()
	if err := a.err(ctx); err != nil {
		return err
	}
	removed := 0
	for _, id := range ids {
		if _, ok := a.db.attachments[id]; ok {
			removed++
			delete(a.db.attachments, id)
		}
	}
	if removed == 0 {
		return repository.ErrAttachmentNotFound
	}
	return nil
}

// User repository

type fakeUsers struct{ *fakeStore }

func (u fakeUsers) Create(ctx context.Context, user *model.User) error {
	defer u.lock()()
	if err := u.err(ctx); err != nil {
		return err
	}
	for _, existing := range u.db.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	cp := *user
	u.db.users[user.ID] = &cp
	return nil
}

func (u fakeUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	defer u.lock()()
	if err := u.err(ctx); err != nil {
		return nil, err
	}
	for _, existing := range u.db.users {
		if existing.Email == email {
			cp := *existing
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (u fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	defer u.lock()()
	if err := u.err(ctx); err != nil {
		return nil, err
	}
	existing, ok := u.db.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *existing
	return &cp, nil
}

func (u fakeUsers) Update(ctx context.Context, user *model.User) error {
	defer u.lock()()
	if err := u.err(ctx); err != nil {
		return err
	}
	if _, ok := u.db.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *user
	u.db.users[user.ID] = &cp
	return nil
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortTasks(tasks []model.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
}

func sortAttachments(files []model.FileAttachment) {
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
}
