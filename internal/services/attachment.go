package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/taskflow/apiserver/internal/apperr"
	"github.com/taskflow/apiserver/internal/auth"
	"github.com/taskflow/apiserver/internal/storage"
	"github.com/taskflow/apiserver/internal/store"
	"github.com/taskflow/apiserver/types"
)

// MaxAttachmentSize bounds a single uploaded file.
const MaxAttachmentSize = 10 << 20

const (
	MsgAttachmentNotFound    = "Attachment not found"
	MsgStorageUnavailable    = "Attachments are not enabled"
	MsgAttachmentEmpty       = "File is required"
	MsgAttachmentTooLarge    = "File exceeds the 10 MiB limit"
	MsgAttachmentBadFilename = "Invalid filename"
)

// AttachmentUpload is a file received from a client.
type AttachmentUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AttachmentsEnabled reports whether an object storage backend is configured.
func (s *TaskService) AttachmentsEnabled() bool {
	return s.storage != nil
}

// AddAttachment stores upload in object storage and records it on the task.
// Admins, the assignee and the creator may attach files.
func (s *TaskService) AddAttachment(ctx context.Context, actor types.User, taskID string, upload AttachmentUpload) (types.Attachment, error) {
	if s.storage == nil {
		return types.Attachment{}, apperr.Validation(MsgStorageUnavailable)
	}
	if len(upload.Data) == 0 {
		return types.Attachment{}, apperr.Validation(MsgAttachmentEmpty)
	}
	if len(upload.Data) > MaxAttachmentSize {
		return types.Attachment{}, apperr.Validation(MsgAttachmentTooLarge)
	}
	filename, err := cleanFilename(upload.Filename)
	if err != nil {
		return types.Attachment{}, err
	}

	task, err := s.load(ctx, taskID)
	if err != nil {
		return types.Attachment{}, err
	}
	if !canTouchAttachments(actor, task) {
		return types.Attachment{}, apperr.Forbidden(MsgTaskViewDenied)
	}

	contentType := strings.TrimSpace(upload.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	sum := sha256.Sum256(upload.Data)
	id := uuid.NewString()
	attachment := types.Attachment{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(upload.Data)),
		SHA256:      hex.EncodeToString(sum[:]),
		ObjectKey:   path.Join("tasks", task.ID, id+"-"+filename),
		UploadedBy:  actor.ID,
		UploadedAt:  s.now().UTC(),
	}

	if err := s.storage.Put(ctx, attachment.ObjectKey, bytes.NewReader(upload.Data), attachment.Size, contentType); err != nil {
		return types.Attachment{}, apperr.Internal(err)
	}

	if _, err := s.repo.AddAttachment(ctx, task.ID, attachment); err != nil {
		if delErr := s.storage.Delete(ctx, attachment.ObjectKey); delErr != nil {
			zerolog.Ctx(ctx).Warn().Err(delErr).Str("object_key", attachment.ObjectKey).Msg("orphaned attachment object")
		}
		if errors.Is(err, store.ErrNotFound) {
			return types.Attachment{}, apperr.Wrap(apperr.KindNotFound, MsgTaskNotFound, err)
		}
		return types.Attachment{}, apperr.Internal(err)
	}
	return attachment, nil
}

// OpenAttachment returns the metadata and contents of an attachment. The
// caller must close the reader.
func (s *TaskService) OpenAttachment(ctx context.Context, actor types.User, taskID, attachmentID string) (types.Attachment, io.ReadCloser, error) {
	if s.storage == nil {
		return types.Attachment{}, nil, apperr.Validation(MsgStorageUnavailable)
	}

	task, err := s.load(ctx, taskID)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	if !canTouchAttachments(actor, task) {
		return types.Attachment{}, nil, apperr.Forbidden(MsgTaskViewDenied)
	}

	for _, attachment := range task.Attachments {
		if attachment.ID != attachmentID {
			continue
		}
		body, err := s.storage.Get(ctx, attachment.ObjectKey)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				return types.Attachment{}, nil, apperr.Wrap(apperr.KindNotFound, MsgAttachmentNotFound, err)
			}
			return types.Attachment{}, nil, apperr.Internal(err)
		}
		return attachment, body, nil
	}
	return types.Attachment{}, nil, apperr.NotFound(MsgAttachmentNotFound)
}

func (s *TaskService) removeAttachmentObjects(ctx context.Context, task types.Task) {
	if s.storage == nil {
		return
	}
	for _, attachment := range task.Attachments {
		if err := s.storage.Delete(ctx, attachment.ObjectKey); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("task_id", task.ID).
				Str("object_key", attachment.ObjectKey).
				Msg("failed to delete attachment object")
		}
	}
}

func canTouchAttachments(actor types.User, task types.Task) bool {
	return auth.IsAdmin(actor) || actor.ID == task.AssignedTo.ID || actor.ID == task.CreatedBy.ID
}

func cleanFilename(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	base := path.Base(path.Clean("/" + name))
	if base == "/" || base == "." || base == ".." || base == "" {
		return "", apperr.Validation(MsgAttachmentBadFilename)
	}
	if len(base) > 255 {
		return "", apperr.Validation(MsgAttachmentBadFilename)
	}
	return base, nil
}
