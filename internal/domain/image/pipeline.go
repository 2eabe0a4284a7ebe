package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	platformconfig "github.com/dfeirstein/the-skin-lab/internal/platform/config"
	platformerrors "github.com/dfeirstein/the-skin-lab/internal/platform/errors"
	"github.com/dfeirstein/the-skin-lab/internal/platform/logging"
)

// Public messages for rejected uploads.
const (
	MsgInvalidImage = "Invalid image"
	MsgTooLarge     = "Image too large"
)

const defaultMaxFileSize = 10 * 1024 * 1024

// Pipeline streams an upload through size limiting, validation and base64 encoding.
type Pipeline struct {
	validator *SecurityValidator
	logger    *logging.Logger
	limits    platformconfig.ImageConfig
}

// Options configures the pipeline behaviour.
type Options struct {
	Limits platformconfig.ImageConfig
	Logger *logging.Logger
}

func NewPipeline(opts Options) *Pipeline {
	limits := opts.Limits
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = defaultMaxFileSize
	}
	return &Pipeline{
		validator: NewSecurityValidator(limits, opts.Logger),
		logger:    opts.Logger,
		limits:    limits,
	}
}

// MaxFileSize is the largest payload Process accepts.
func (p *Pipeline) MaxFileSize() int64 {
	return p.limits.MaxFileSize
}

// Process reads the upload once, copying it into the raw buffer and the base64
// encoder at the same time.
func (p *Pipeline) Process(ctx context.Context, upload Upload) (*Encoded, error) {
	const op = "image.process"
	if upload.Reader == nil {
		return nil, platformerrors.New(platformerrors.KindInvalidInput, op, MsgInvalidImage)
	}
	if err := ctx.Err(); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindInternal, op, "request cancelled", err)
	}

	limited := &io.LimitedReader{R: upload.Reader, N: p.limits.MaxFileSize + 1}

	rawBuf := bytes.NewBuffer(make([]byte, 0, 32*1024))
	base64Buf := bytes.NewBuffer(make([]byte, 0, 64*1024))
	encoder := base64.NewEncoder(base64.StdEncoding, base64Buf)

	if _, err := io.Copy(io.MultiWriter(rawBuf, encoder), limited); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindInternal, op, "read image bytes", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindInternal, op, "finalise base64 encoding", err)
	}
	if limited.N <= 0 {
		return nil, platformerrors.Wrap(platformerrors.KindInvalidInput, op, MsgTooLarge,
			fmt.Errorf("image exceeds maximum size of %d bytes", p.limits.MaxFileSize))
	}

	raw := rawBuf.Bytes()
	if len(raw) == 0 {
		return nil, platformerrors.Wrap(platformerrors.KindInvalidInput, op, MsgInvalidImage,
			fmt.Errorf("empty image payload"))
	}

	encoded := &Encoded{
		Base64: base64Buf.String(),
		Size:   int64(len(raw)),
	}

	if p.limits.Validate {
		validation := p.validator.ValidateBytes(raw, formatFromMediaType(upload.MediaType))
		if !validation.IsValid {
			cause := validation.Error
			if cause == nil {
				cause = fmt.Errorf("image validation failed")
			}
			return nil, platformerrors.Wrap(platformerrors.KindInvalidInput, op, MsgInvalidImage, cause)
		}
		encoded.Format = validation.Format
		encoded.Width = validation.Width
		encoded.Height = validation.Height
	}

	encoded.MediaType = resolveMediaType(upload.MediaType, encoded.Format, raw)
	return encoded, nil
}

// resolveMediaType keeps the declared type unless it is missing or generic.
func resolveMediaType(declared, detectedFormat string, raw []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.EqualFold(declared, "application/octet-stream") {
		return declared
	}
	if detectedFormat != "" {
		return "image/" + detectedFormat
	}
	return http.DetectContentType(raw)
}

// formatFromMediaType maps "image/jpeg; q=1" to "jpeg". Non-image types map to "".
func formatFromMediaType(mediaType string) string {
	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	format, ok := strings.CutPrefix(parsed, "image/")
	if !ok {
		return ""
	}
	return format
}
