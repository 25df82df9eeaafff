package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/taskflow/apiserver/internal/apperr"
	"github.com/taskflow/apiserver/internal/auth"
	"github.com/taskflow/apiserver/internal/mq"
	"github.com/taskflow/apiserver/internal/storage"
	"github.com/taskflow/apiserver/internal/store"
	"github.com/taskflow/apiserver/types"
)

const (
	DefaultTaskPageSize = 5
	MaxTaskPageSize     = 100
)

// Client messages returned by TaskService.
const (
	MsgTaskNotFound      = "Task not found"
	MsgTaskViewDenied    = "Not authorized to access this task"
	MsgTaskUpdateDenied  = "Not authorized to update this task"
	MsgTaskDeleteDenied  = "Not authorized to delete this task"
	MsgAssigneeNotFound  = "Assigned user not found"
	MsgInvalidTaskStatus = "Invalid status value"
)

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	List(ctx context.Context, filter types.TaskFilter, offset, limit int) ([]types.Task, int, error)
	Get(ctx context.Context, id string) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id string) error
	BulkUpdateStatus(ctx context.Context, ids []string, status types.TaskStatus) (int, error)
	AddAttachment(ctx context.Context, taskID string, attachment types.Attachment) (types.Task, error)
	CountByStatus(ctx context.Context) (total, completed int, err error)
}

// UserLookup resolves assignees.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// TaskInput carries the fields of a new task.
type TaskInput struct {
	Title       string
	Description string
	Status      types.TaskStatus
	AssignedTo  string
	DueDate     *time.Time
}

// TaskPatch carries a partial update. Nil and empty fields are left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *types.TaskStatus
	AssignedTo  *string
	DueDate     *time.Time
}

// Pagination describes a page of results.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Tasks      []types.Task `json:"tasks"`
	Pagination Pagination   `json:"pagination"`
}

// TaskService encapsulates task use-cases. Admins see and edit every task;
// users see tasks assigned to them and edit tasks they created.
type TaskService struct {
	repo    TaskRepository
	users   UserLookup
	storage *storage.Storage
	events  *mq.Publisher
	now     func() time.Time
}

// NewTaskService constructs a TaskService. objects may be nil, in which case
// attachment operations are unavailable.
func NewTaskService(repo TaskRepository, users UserLookup, objects *storage.Storage, events *mq.Publisher) *TaskService {
	if events == nil {
		events = mq.NewPublisher(nil)
	}
	return &TaskService{
		repo:    repo,
		users:   users,
		storage: objects,
		events:  events,
		now:     time.Now,
	}
}

// List returns one page of the tasks visible to actor, newest first.
func (s *TaskService) List(ctx context.Context, actor types.User, page, limit int) (TaskPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultTaskPageSize
	}
	if limit > MaxTaskPageSize {
		limit = MaxTaskPageSize
	}

	filter := types.TaskFilter{}
	if !auth.IsAdmin(actor) {
		filter.AssignedTo = actor.ID
	}

	tasks, total, err := s.repo.List(ctx, filter, (page-1)*limit, limit)
	if err != nil {
		return TaskPage{}, apperr.Internal(err)
	}

	return TaskPage{
		Tasks: tasks,
		Pagination: Pagination{
			Total: total,
			Page:  page,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

// Get returns a task if actor is an admin or its assignee.
func (s *TaskService) Get(ctx context.Context, actor types.User, id string) (types.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return types.Task{}, err
	}
	if !auth.IsOwnerOrAdmin(actor, task.AssignedTo.ID) {
		return types.Task{}, apperr.Forbidden(MsgTaskViewDenied)
	}
	return task, nil
}

// Create stores a new task created by actor.
func (s *TaskService) Create(ctx context.Context, actor types.User, in TaskInput) (types.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return types.Task{}, apperr.Validation("Title is required")
	}
	if strings.TrimSpace(in.AssignedTo) == "" {
		return types.Task{}, apperr.Validation("Assigned user is required")
	}
	status := in.Status
	if status == "" {
		status = types.TaskPending
	}
	if _, err := types.ParseTaskStatus(string(status)); err != nil {
		return types.Task{}, apperr.Validation(MsgInvalidTaskStatus)
	}
	if err := s.checkAssignee(ctx, in.AssignedTo); err != nil {
		return types.Task{}, err
	}

	task, err := s.repo.Create(ctx, types.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		AssignedTo:  types.UserRef{ID: in.AssignedTo},
		CreatedBy:   types.UserRef{ID: actor.ID},
		DueDate:     in.DueDate,
	})
	if err != nil {
		return types.Task{}, apperr.Internal(err)
	}

	s.events.Publish(ctx, mq.ChannelTask, mq.EventTaskCreated, actor.ID, mq.TaskChanged{
		TaskID:     task.ID,
		Status:     string(task.Status),
		AssignedTo: task.AssignedTo.ID,
	})
	return task, nil
}

// Update applies patch if actor is an admin or the task's creator.
func (s *TaskService) Update(ctx context.Context, actor types.User, id string, patch TaskPatch) (types.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return types.Task{}, err
	}
	if !auth.IsOwnerOrAdmin(actor, task.CreatedBy.ID) {
		return types.Task{}, apperr.Forbidden(MsgTaskUpdateDenied)
	}

	if patch.Title != nil && strings.TrimSpace(*patch.Title) != "" {
		task.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil && *patch.Description != "" {
		task.Description = *patch.Description
	}
	if patch.Status != nil && *patch.Status != "" {
		if _, err := types.ParseTaskStatus(string(*patch.Status)); err != nil {
			return types.Task{}, apperr.Validation(MsgInvalidTaskStatus)
		}
		task.Status = *patch.Status
	}
	if patch.AssignedTo != nil && *patch.AssignedTo != "" && *patch.AssignedTo != task.AssignedTo.ID {
		if err := s.checkAssignee(ctx, *patch.AssignedTo); err != nil {
			return types.Task{}, err
		}
		task.AssignedTo = types.UserRef{ID: *patch.AssignedTo}
	}
	if patch.DueDate != nil {
		task.DueDate = patch.DueDate
	}

	updated, err := s.repo.Update(ctx, task)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Task{}, apperr.Wrap(apperr.KindNotFound, MsgTaskNotFound, err)
		}
		return types.Task{}, apperr.Internal(err)
	}

	s.events.Publish(ctx, mq.ChannelTask, mq.EventTaskUpdated, actor.ID, mq.TaskChanged{
		TaskID:     updated.ID,
		Status:     string(updated.Status),
		AssignedTo: updated.AssignedTo.ID,
	})
	return updated, nil
}

// Delete removes a task if actor is an admin or the task's creator.
func (s *TaskService) Delete(ctx context.Context, actor types.User, id string) error {
	task, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !auth.IsOwnerOrAdmin(actor, task.CreatedBy.ID) {
		return apperr.Forbidden(MsgTaskDeleteDenied)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Wrap(apperr.KindNotFound, MsgTaskNotFound, err)
		}
		return apperr.Internal(err)
	}

	s.removeAttachmentObjects(ctx, task)
	s.events.Publish(ctx, mq.ChannelTask, mq.EventTaskDeleted, actor.ID, mq.TaskChanged{TaskID: id})
	return nil
}

// BulkUpdateStatus sets status on every listed task. Callers gate it to admins.
func (s *TaskService) BulkUpdateStatus(ctx context.Context, actor types.User, ids []string, status types.TaskStatus) (int, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("Task IDs array is required")
	}
	if _, err := types.ParseTaskStatus(string(status)); err != nil {
		return 0, apperr.Validation(MsgInvalidTaskStatus)
	}

	modified, err := s.repo.BulkUpdateStatus(ctx, ids, status)
	if err != nil {
		return 0, apperr.Internal(err)
	}

	s.events.Publish(ctx, mq.ChannelTask, mq.EventTasksBulkUpdated, actor.ID, mq.TasksBulkUpdated{
		TaskIDs:       ids,
		Status:        string(status),
		ModifiedCount: modified,
	})
	return modified, nil
}

func (s *TaskService) load(ctx context.Context, id string) (types.Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Task{}, apperr.Wrap(apperr.KindNotFound, MsgTaskNotFound, err)
		}
		return types.Task{}, apperr.Internal(err)
	}
	return task, nil
}

func (s *TaskService) checkAssignee(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Wrap(apperr.KindValidation, MsgAssigneeNotFound, err)
		}
		return apperr.Internal(err)
	}
	return nil
}
