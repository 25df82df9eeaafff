package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/taskflow/apiserver/internal/apperr"
	"github.com/taskflow/apiserver/internal/auth"
	"github.com/taskflow/apiserver/internal/services"
	"github.com/taskflow/apiserver/types"
)

const (
	formFieldFile      = "file"
	maxMultipartMemory = 32 << 20
	dateOnlyLayout     = "2006-01-02"
)

// TaskHandler provides HTTP handlers for tasks and their attachments.
type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// TaskRouter registers task routes. Every route requires authentication;
// bulk updates additionally require an admin. Attachment routes are mounted
// only when object storage is configured.
func TaskRouter(r chi.Router, taskService *services.TaskService, requireAuth func(http.Handler) http.Handler) {
	handler := NewTaskHandler(taskService)

	r.Use(requireAuth)
	r.Get("/", handler.ListTasks)
	r.Post("/", handler.CreateTask)
	r.With(RequireAdmin).Patch("/bulk-update", handler.BulkUpdate)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Patch("/", handler.UpdateTask)
		r.Delete("/", handler.DeleteTask)
		if taskService.AttachmentsEnabled() {
			r.Post("/attachments", handler.UploadAttachment)
			r.Get("/attachments/{attachmentID}", handler.DownloadAttachment)
		}
	})
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := auth.IdentityFromContext(r.Context())
	result, err := h.taskService.List(r.Context(), actor, page, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())
	task, err := h.taskService.Get(r.Context(), actor, chi.URLParam(r, "taskID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	actor, _ := auth.IdentityFromContext(r.Context())
	task, err := h.taskService.Create(r.Context(), actor, services.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      types.TaskStatus(req.Status),
		AssignedTo:  strings.TrimSpace(req.AssignedTo),
		DueDate:     req.DueDate.timePtr(),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	patch := services.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate.timePtr(),
	}
	if req.Status != nil {
		status := types.TaskStatus(*req.Status)
		patch.Status = &status
	}

	actor, _ := auth.IdentityFromContext(r.Context())
	task, err := h.taskService.Update(r.Context(), actor, chi.URLParam(r, "taskID"), patch)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())
	if err := h.taskService.Delete(r.Context(), actor, chi.URLParam(r, "taskID")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Task deleted successfully"})
}

func (h *TaskHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req BulkUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	actor, _ := auth.IdentityFromContext(r.Context())
	modified, err := h.taskService.BulkUpdateStatus(r.Context(), actor, req.TaskIDs, types.TaskStatus(req.Status))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BulkUpdateResponse{
		Message:       fmt.Sprintf("%d tasks updated successfully", modified),
		ModifiedCount: modified,
	})
}

func (h *TaskHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAttachmentSize+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	upload, err := parseUploadFile(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := auth.IdentityFromContext(r.Context())
	attachment, err := h.taskService.AddAttachment(r.Context(), actor, chi.URLParam(r, "taskID"), upload)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

func (h *TaskHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())
	attachment, body, err := h.taskService.OpenAttachment(
		r.Context(),
		actor,
		chi.URLParam(r, "taskID"),
		chi.URLParam(r, "attachmentID"),
	)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(attachment.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": attachment.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	AssignedTo  string    `json:"assignedTo"`
	DueDate     dateInput `json:"dueDate"`
}

// UpdateTaskRequest is the body of PATCH /tasks/{taskID}. Omitted fields are
// left unchanged.
type UpdateTaskRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	AssignedTo  *string   `json:"assignedTo"`
	DueDate     dateInput `json:"dueDate"`
}

type BulkUpdateRequest struct {
	TaskIDs []string `json:"taskIds"`
	Status  string   `json:"status"`
}

type BulkUpdateResponse struct {
	Message       string `json:"message"`
	ModifiedCount int    `json:"modifiedCount"`
}

// dateInput accepts RFC 3339 timestamps and plain YYYY-MM-DD dates as sent by
// HTML date inputs. Null and empty strings leave it unset.
type dateInput struct {
	value *time.Time
}

func (d *dateInput) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		d.value = nil
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperr.Validation("Invalid due date")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.value = nil
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, dateOnlyLayout} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			d.value = &utc
			return nil
		}
	}
	return apperr.Validation("Invalid due date")
}

func (d dateInput) timePtr() *time.Time {
	return d.value
}

func parseUploadFile(form *multipart.Form) (services.AttachmentUpload, error) {
	if form == nil {
		return services.AttachmentUpload{}, errors.New("missing form data")
	}

	files := form.File[formFieldFile]
	if len(files) == 0 {
		return services.AttachmentUpload{}, errors.New("file is required")
	}
	if len(files) > 1 {
		return services.AttachmentUpload{}, errors.New("only one file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return services.AttachmentUpload{}, fmt.Errorf("failed to read file: %w", err)
	}

	data, err := readFileLimited(file, services.MaxAttachmentSize)
	_ = file.Close()
	if err != nil {
		return services.AttachmentUpload{}, err
	}

	return services.AttachmentUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
