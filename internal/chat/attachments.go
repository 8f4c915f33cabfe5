package chat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/g-ogaki/assistant-ui-langgraph/internal/types"
)

// maxAttachmentSize bounds how much attachment data is held in memory (16 MiB).
const maxAttachmentSize = 16 << 20

// ErrNotImage is returned for attachments outside the image/* MIME filter.
var ErrNotImage = errors.New("attachment is not an image")

// IngestAttachment accepts an uploaded image and encodes it as an
// in-memory data URL; nothing touches disk. The returned id is a random
// client-side identifier — removal later is a no-op since there is
// nothing to release.
func IngestAttachment(file multipart.File, header *multipart.FileHeader) (types.AttachmentResponse, error) {
	data, err := io.ReadAll(io.LimitReader(file, maxAttachmentSize+1))
	if err != nil {
		return types.AttachmentResponse{}, fmt.Errorf("failed to read attachment: %w", err)
	}
	if len(data) > maxAttachmentSize {
		return types.AttachmentResponse{}, fmt.Errorf("attachment exceeds %d bytes", maxAttachmentSize)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return types.AttachmentResponse{}, ErrNotImage
	}

	return types.AttachmentResponse{
		ID:  uuid.NewString(),
		URL: "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}
