// Package fakestore provides in-memory repositories with the same semantics
// as the Postgres ones in package store. They back unit tests and local runs
// without a database.
package fakestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/apiserver/internal/store"
	"github.com/taskflow/apiserver/types"
)

// Store holds users and tasks behind a single lock so that task reads can
// populate user references consistently.
type Store struct {
	lock     sync.RWMutex
	users    map[string]types.User
	emailIDs map[string]string
	tasks    map[string]types.Task
	seq      int64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[string]types.User),
		emailIDs: make(map[string]string),
		tasks:    make(map[string]types.Task),
		now:      time.Now,
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

// Tasks returns the task repository view of the store.
func (s *Store) Tasks() *TaskRepository {
	return &TaskRepository{s: s}
}

// tick returns a strictly increasing timestamp so ordering by creation time is
// deterministic even when calls land in the same clock tick.
func (s *Store) tick() time.Time {
	s.seq++
	return s.now().UTC().Add(time.Duration(s.seq) * time.Microsecond)
}

type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	id, ok := r.s.emailIDs[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.s.users[id], nil
}

func (r *UserRepository) List(_ context.Context) ([]types.User, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	users := make([]types.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *UserRepository) Count(_ context.Context) (int, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()
	return len(r.s.users), nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	if _, exists := r.s.emailIDs[user.Email]; exists {
		return types.User{}, store.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Status == "" {
		user.Status = types.StatusActive
	}
	now := r.s.tick()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.s.users[user.ID] = user
	r.s.emailIDs[user.Email] = user.ID
	return user, nil
}

func (r *UserRepository) UpdateStatus(_ context.Context, id string, status types.Status) (types.User, error) {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if user.Status == types.StatusActive && status == types.StatusInactive {
		user.TokenVersion++
	}
	user.Status = status
	user.UpdatedAt = r.s.tick()
	r.s.users[id] = user
	return user, nil
}

type TaskRepository struct {
	s *Store
}

func (r *TaskRepository) List(_ context.Context, filter types.TaskFilter, offset, limit int) ([]types.Task, int, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 5
	}

	matched := make([]types.Task, 0)
	for _, task := range r.s.tasks {
		if filter.AssignedTo != "" && task.AssignedTo.ID != filter.AssignedTo {
			continue
		}
		matched = append(matched, r.populate(task))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return []types.Task{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *TaskRepository) Get(_ context.Context, id string) (types.Task, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	task, ok := r.s.tasks[id]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	return r.populate(task), nil
}

func (r *TaskRepository) Create(_ context.Context, task types.Task) (types.Task, error) {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Attachments == nil {
		task.Attachments = []types.Attachment{}
	}
	now := r.s.tick()
	task.CreatedAt = now
	task.UpdatedAt = now
	r.s.tasks[task.ID] = task
	return r.populate(task), nil
}

func (r *TaskRepository) Update(_ context.Context, task types.Task) (types.Task, error) {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	current, ok := r.s.tasks[task.ID]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	current.Title = task.Title
	current.Description = task.Description
	current.Status = task.Status
	current.AssignedTo = types.UserRef{ID: task.AssignedTo.ID}
	current.DueDate = task.DueDate
	current.UpdatedAt = r.s.tick()
	r.s.tasks[task.ID] = current
	return r.populate(current), nil
}

func (r *TaskRepository) Delete(_ context.Context, id string) error {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	if _, ok := r.s.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func (r *TaskRepository) BulkUpdateStatus(_ context.Context, ids []string, status types.TaskStatus) (int, error) {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	modified := 0
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		task, ok := r.s.tasks[id]
		if !ok || task.Status == status {
			continue
		}
		task.Status = status
		task.UpdatedAt = r.s.tick()
		r.s.tasks[id] = task
		modified++
	}
	return modified, nil
}

func (r *TaskRepository) AddAttachment(_ context.Context, taskID string, attachment types.Attachment) (types.Task, error) {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	task, ok := r.s.tasks[taskID]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	attachments := make([]types.Attachment, 0, len(task.Attachments)+1)
	attachments = append(attachments, task.Attachments...)
	task.Attachments = append(attachments, attachment)
	task.UpdatedAt = r.s.tick()
	r.s.tasks[taskID] = task
	return r.populate(task), nil
}

func (r *TaskRepository) CountByStatus(_ context.Context) (total, completed int, err error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	for _, task := range r.s.tasks {
		total++
		if task.Status == types.TaskCompleted {
			completed++
		}
	}
	return total, completed, nil
}

// populate fills user references from the user table. Callers hold the lock.
func (r *TaskRepository) populate(task types.Task) types.Task {
	if user, ok := r.s.users[task.AssignedTo.ID]; ok {
		task.AssignedTo = types.UserRef{ID: user.ID, Name: user.Name, Email: user.Email}
	}
	if user, ok := r.s.users[task.CreatedBy.ID]; ok {
		task.CreatedBy = types.UserRef{ID: user.ID, Name: user.Name, Email: user.Email}
	}
	return task
}
