package types

import (
	"fmt"
	"time"
)

// TaskStatus is the progress state of a task.
type TaskStatus string

// Supported task statuses.
const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

// ParseTaskStatus converts a raw value into a TaskStatus.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	switch TaskStatus(raw) {
	case TaskPending, TaskInProgress, TaskCompleted:
		return TaskStatus(raw), nil
	default:
		return "", fmt.Errorf("unknown task status %q", raw)
	}
}

// Task represents a unit of work assigned to a user.
type Task struct {
	// ID is the unique identifier of the task.
	ID string `json:"id" db:"id"`

	// Title is the short human-readable summary of the task.
	Title string `json:"title" db:"title"`

	// Description contains the details of what needs to be done.
	Description string `json:"description" db:"description"`

	// Status is the current progress state.
	Status TaskStatus `json:"status" db:"status"`

	// AssignedTo is the user responsible for the task. Regular users only
	// see tasks assigned to them.
	AssignedTo UserRef `json:"assignedTo" db:"assigned_to"`

	// CreatedBy is the user who created the task and may edit or delete it.
	CreatedBy UserRef `json:"createdBy" db:"created_by"`

	// DueDate is optional.
	DueDate *time.Time `json:"dueDate,omitempty" db:"due_date"`

	// Attachments lists files uploaded to object storage for this task.
	Attachments []Attachment `json:"attachments" db:"attachments"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Attachment describes a file stored in object storage for a task.
type Attachment struct {
	// ID is the unique identifier of the attachment within its task.
	ID string `json:"id"`

	// Filename is the original name of the uploaded file.
	Filename string `json:"filename"`

	// ContentType is the MIME type reported on upload.
	ContentType string `json:"contentType"`

	// Size is the object size in bytes.
	Size int64 `json:"size"`

	// SHA256 is the hex-encoded digest of the contents.
	SHA256 string `json:"sha256"`

	// ObjectKey is the path of the object in the configured bucket.
	ObjectKey string `json:"-"`

	// UploadedBy is the id of the uploader.
	UploadedBy string `json:"uploadedBy"`

	UploadedAt time.Time `json:"uploadedAt"`
}

// TaskFilter narrows task listings. An empty AssignedTo lists every task.
type TaskFilter struct {
	AssignedTo string
}

// TaskStats summarizes task and user counts for the admin dashboard.
type TaskStats struct {
	TotalUsers     int `json:"totalUsers"`
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
	PendingTasks   int `json:"pendingTasks"`
}
