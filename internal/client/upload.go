package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
)

// FormField is the multipart field the server reads the photo from.
const FormField = "image"

// Upload is a photo to analyze.
type Upload struct {
	Reader    io.Reader
	Filename  string
	MediaType string
}

// NewUploadRequest builds the multipart POST for url. The part carries the
// upload's media type so the server can embed it verbatim.
func NewUploadRequest(ctx context.Context, url string, upload Upload) (*http.Request, error) {
	if upload.Reader == nil {
		return nil, fmt.Errorf("upload reader is required")
	}
	filename := upload.Filename
	if filename == "" {
		filename = "photo"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FormField, filepath.Base(filename)))
	if upload.MediaType != "" {
		header.Set("Content-Type", upload.MediaType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, upload.Reader); err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "text/event-stream")
	return req, nil
}

// MediaTypeFromFilename guesses the type from the extension. Unknown
// extensions return "" and the server detects the format.
func MediaTypeFromFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	default:
		return ""
	}
}
