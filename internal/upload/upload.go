package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"echochat-backend/internal/models"

	"github.com/google/uuid"
)

// ErrUnsupportedAttachmentType rejects attachments outside the image/* and
// audio/* families before any bytes leave the process.
var ErrUnsupportedAttachmentType = errors.New("unsupported attachment type")

// Uploader stores an attachment's bytes and returns a public URL for it.
type Uploader interface {
	Upload(ctx context.Context, key, mimeType string, data []byte) (string, error)
}

// ValidateMimeType checks an attachment's declared type against the allowed
// families. Per-chat settings may narrow the list further; an empty allowed
// list means the family rule alone applies.
func ValidateMimeType(mimeType string, allowed []string) error {
	if !strings.HasPrefix(mimeType, "image/") && !strings.HasPrefix(mimeType, "audio/") {
		return fmt.Errorf("%w: %s", ErrUnsupportedAttachmentType, mimeType)
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, a := range allowed {
		if a == mimeType {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedAttachmentType, mimeType)
}

// AttachmentKey builds the object key for an attachment: scoped to the chat,
// disambiguated by upload time so repeated file names never collide.
func AttachmentKey(chatID, fileName string, at time.Time) string {
	return fmt.Sprintf("chats/%s/%d_%s", chatID, at.UnixNano(), fileName)
}

// UploadAttachment validates and stores one attachment, returning the
// MediaAttachment to embed in the message document.
func UploadAttachment(ctx context.Context, up Uploader, chatID string, att *models.AttachmentUpload, allowed []string, at time.Time) (*models.MediaAttachment, error) {
	if err := ValidateMimeType(att.MimeType, allowed); err != nil {
		return nil, err
	}
	key := AttachmentKey(chatID, att.FileName, at)
	url, err := up.Upload(ctx, key, att.MimeType, att.Data)
	if err != nil {
		return nil, fmt.Errorf("upload attachment: %w", err)
	}
	return &models.MediaAttachment{
		ID:       uuid.NewString(),
		URL:      url,
		MimeType: att.MimeType,
		FileName: att.FileName,
		FileSize: int64(len(att.Data)),
		Width:    att.Width,
		Height:   att.Height,
		Duration: att.Duration,
	}, nil
}
