package image

import (
	"io"
	"strings"
)

// Upload is the image as received from the client: raw bytes plus the media
// type the client declared for them.
type Upload struct {
	Reader    io.Reader
	MediaType string
	Filename  string
}

// Encoded is an upload ready to be embedded in a model request.
type Encoded struct {
	MediaType string
	Base64    string
	Size      int64
	Format    string
	Width     int
	Height    int
}

// DataURL renders the self-describing inline form: data:<type>;base64,<payload>.
func (e *Encoded) DataURL() string {
	var b strings.Builder
	b.Grow(len(e.MediaType) + len(e.Base64) + 13)
	b.WriteString("data:")
	b.WriteString(e.MediaType)
	b.WriteString(";base64,")
	b.WriteString(e.Base64)
	return b.String()
}

// ValidationResult captures the outcome of security validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}
