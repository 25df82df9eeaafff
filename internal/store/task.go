package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/taskflow/apiserver/types"
)

const taskSelect = `
		SELECT t.id, t.title, t.description, t.status,
		       a.id, a.name, a.email,
		       c.id, c.name, c.email,
		       t.due_date, t.attachments, t.created_at, t.updated_at
		FROM tasks t
		JOIN users a ON a.id = t.assigned_to
		JOIN users c ON c.id = t.created_by`

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// List returns a page of tasks, newest first, and the total matching the filter.
func (r *TaskRepository) List(ctx context.Context, filter types.TaskFilter, offset, limit int) ([]types.Task, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 5
	}
	if filter.AssignedTo != "" && !validID(filter.AssignedTo) {
		return []types.Task{}, 0, nil
	}

	const countQuery = `SELECT COUNT(1) FROM tasks WHERE ($1 = '' OR assigned_to::text = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, filter.AssignedTo).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = taskSelect + `
		WHERE ($1 = '' OR t.assigned_to::text = $1)
		ORDER BY t.created_at DESC, t.id
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, filter.AssignedTo, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks := make([]types.Task, 0, limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (types.Task, error) {
	if !validID(id) {
		return types.Task{}, ErrNotFound
	}
	const query = taskSelect + ` WHERE t.id = $1`
	return scanTask(r.db.QueryRowContext(ctx, query, id))
}

// Create inserts task and returns it with its user references populated.
func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now().UTC()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Attachments == nil {
		task.Attachments = []types.Attachment{}
	}
	attachmentsJSON, err := json.Marshal(task.Attachments)
	if err != nil {
		return types.Task{}, err
	}

	const query = `
		INSERT INTO tasks (id, title, description, status, assigned_to, created_by, due_date, attachments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.AssignedTo.ID,
		task.CreatedBy.ID,
		task.DueDate,
		attachmentsJSON,
		now,
		now,
	); err != nil {
		return types.Task{}, err
	}

	return r.Get(ctx, task.ID)
}

// Update overwrites the editable fields of task.
func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	if !validID(task.ID) {
		return types.Task{}, ErrNotFound
	}
	const query = `
		UPDATE tasks
		SET title = $1,
			description = $2,
			status = $3,
			assigned_to = $4,
			due_date = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.Status,
		task.AssignedTo.ID,
		task.DueDate,
		time.Now().UTC(),
		task.ID,
	)
	if err != nil {
		return types.Task{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Task{}, err
	}
	if affected == 0 {
		return types.Task{}, ErrNotFound
	}
	return r.Get(ctx, task.ID)
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	const query = `DELETE FROM tasks WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkUpdateStatus sets status on every task in ids and returns how many rows
// actually changed. Unknown or malformed ids are ignored.
func (r *TaskRepository) BulkUpdateStatus(ctx context.Context, ids []string, status types.TaskStatus) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	const query = `
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE id = ANY($3::uuid[]) AND status <> $1`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), pq.Array(valid))
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// AddAttachment appends attachment to the task's attachment list in place.
func (r *TaskRepository) AddAttachment(ctx context.Context, taskID string, attachment types.Attachment) (types.Task, error) {
	if !validID(taskID) {
		return types.Task{}, ErrNotFound
	}
	payload, err := json.Marshal([]attachmentRecord{toAttachmentRecord(attachment)})
	if err != nil {
		return types.Task{}, err
	}

	const query = `
		UPDATE tasks
		SET attachments = attachments || $1::jsonb, updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, payload, time.Now().UTC(), taskID)
	if err != nil {
		return types.Task{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Task{}, err
	}
	if affected == 0 {
		return types.Task{}, ErrNotFound
	}
	return r.Get(ctx, taskID)
}

// CountByStatus returns the total number of tasks and how many are completed.
func (r *TaskRepository) CountByStatus(ctx context.Context) (total, completed int, err error) {
	const query = `
		SELECT COUNT(1), COUNT(1) FILTER (WHERE status = 'completed')
		FROM tasks`
	if err := r.db.QueryRowContext(ctx, query).Scan(&total, &completed); err != nil {
		return 0, 0, err
	}
	return total, completed, nil
}

// attachmentRecord is the stored form of an attachment. Unlike the API form it
// keeps the object key.
type attachmentRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	ObjectKey   string    `json:"object_key"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func toAttachmentRecord(a types.Attachment) attachmentRecord {
	return attachmentRecord{
		ID:          a.ID,
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Size:        a.Size,
		SHA256:      a.SHA256,
		ObjectKey:   a.ObjectKey,
		UploadedBy:  a.UploadedBy,
		UploadedAt:  a.UploadedAt,
	}
}

func (a attachmentRecord) toAttachment() types.Attachment {
	return types.Attachment{
		ID:          a.ID,
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Size:        a.Size,
		SHA256:      a.SHA256,
		ObjectKey:   a.ObjectKey,
		UploadedBy:  a.UploadedBy,
		UploadedAt:  a.UploadedAt,
	}
}

func scanTask(row rowScanner) (types.Task, error) {
	var task types.Task
	var dueDate sql.NullTime
	var attachmentsJSON []byte
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.AssignedTo.ID,
		&task.AssignedTo.Name,
		&task.AssignedTo.Email,
		&task.CreatedBy.ID,
		&task.CreatedBy.Name,
		&task.CreatedBy.Email,
		&dueDate,
		&attachmentsJSON,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, err
	}
	if dueDate.Valid {
		due := dueDate.Time
		task.DueDate = &due
	}

	var records []attachmentRecord
	_ = json.Unmarshal(attachmentsJSON, &records)
	task.Attachments = make([]types.Attachment, 0, len(records))
	for _, record := range records {
		task.Attachments = append(task.Attachments, record.toAttachment())
	}
	return task, nil
}
