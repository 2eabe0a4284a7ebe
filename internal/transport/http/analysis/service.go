package analysis

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainanalysis "github.com/dfeirstein/the-skin-lab/internal/domain/analysis"
	domainimage "github.com/dfeirstein/the-skin-lab/internal/domain/image"
	platformerrors "github.com/dfeirstein/the-skin-lab/internal/platform/errors"
	"github.com/dfeirstein/the-skin-lab/internal/platform/logging"
	httptransport "github.com/dfeirstein/the-skin-lab/internal/transport/http"
)

const (
	// Route is relative to the /api group.
	Route = "/analyze-skin"

	formField = "image"

	// multipartMemory is how much of the form is held in memory before
	// spilling to temp files.
	multipartMemory = 8 << 20
	// bodySlack covers multipart boundaries and headers on top of the image.
	bodySlack = 1 << 20
)

// Analyzer starts an analysis and reports what it is configured with.
type Analyzer interface {
	Analyze(ctx context.Context, req domainanalysis.Request) (<-chan domainanalysis.Event, error)
	Provider() string
	Model() string
	MaxTokens() int
}

type Options struct {
	Analyzer Analyzer
	Logger   *logging.Logger
	// MaxUploadSize bounds the request body. Zero disables the bound.
	MaxUploadSize int64
	// Limiter runs before the POST handler when set.
	Limiter gin.HandlerFunc
}

// Service is the HTTP surface of the skin analysis relay.
type Service struct {
	analyzer      Analyzer
	logger        *logging.Logger
	maxUploadSize int64
	limiter       gin.HandlerFunc
}

// StatusData is the payload of GET /api/analyze-skin.
type StatusData struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
}

func NewService(opts Options) (*Service, error) {
	if opts.Analyzer == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "analysis.new-service", "analyzer is required")
	}
	return &Service{
		analyzer:      opts.Analyzer,
		logger:        opts.Logger,
		maxUploadSize: opts.MaxUploadSize,
		limiter:       opts.Limiter,
	}, nil
}

// Register mounts the analysis routes on the API group.
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET(Route, s.handleGet)
	if s.limiter != nil {
		router.POST(Route, s.limiter, s.handlePost)
	} else {
		router.POST(Route, s.handlePost)
	}

	s.logger.InfoTag(logging.TagHTTP, "analysis routes registered")
	return nil
}

// handleGet reports the configured model.
// @Summary Analysis service status
// @Description Returns the provider, model and completion ceiling used for skin analysis.
// @Tags Analysis
// @Produce json
// @Success 200 {object} httptransport.APIResponse{data=StatusData}
// @Router /analyze-skin [get]
func (s *Service) handleGet(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, StatusData{
		Provider:  s.analyzer.Provider(),
		Model:     s.analyzer.Model(),
		MaxTokens: s.analyzer.MaxTokens(),
	}, "")
}

// handlePost streams a skin analysis of the uploaded photo.
// @Summary Analyze a skin photo
// @Description Uploads one photo and streams the model output as server-sent events.
// @Description Each event is `data: <json>` where json is {"content"}, {"analysis","done":true} or {"error"}.
// @Tags Analysis
// @Accept multipart/form-data
// @Produce text/event-stream
// @Param image formData file true "Face photo"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.RateLimitResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /analyze-skin [post]
func (s *Service) handlePost(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	upload, cleanup, err := s.readUpload(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer cleanup()

	events, err := s.analyzer.Analyze(ctx, domainanalysis.Request{
		ID:     httptransport.RequestID(c),
		Upload: upload,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	writeStreamHeaders(c.Writer)
	writer := newEventWriter(c.Writer)
	for ev := range events {
		if err := writer.Write(ev); err != nil {
			s.logger.WarnContext(ctx, "[HTTP] client went away mid-stream", "error", err.Error())
			return
		}
	}
}

// readUpload returns a nil upload when the form has no image part.
func (s *Service) readUpload(c *gin.Context) (*domainimage.Upload, func(), error) {
	const op = "analysis.read-upload"
	noop := func() {}

	if s.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize+bodySlack)
	}
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, noop, platformerrors.Wrap(platformerrors.KindInvalidInput, op, domainimage.MsgTooLarge, err)
		}
		return nil, noop, platformerrors.Wrap(platformerrors.KindInternal, op, domainanalysis.MsgProcessFailed, err)
	}
	cleanup := func() {
		if c.Request.MultipartForm != nil {
			_ = c.Request.MultipartForm.RemoveAll()
		}
	}

	file, header, err := c.Request.FormFile(formField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, cleanup, nil
	}
	if err != nil {
		return nil, cleanup, platformerrors.Wrap(platformerrors.KindInternal, op, domainanalysis.MsgProcessFailed, err)
	}

	upload := &domainimage.Upload{
		Reader:    file,
		MediaType: header.Header.Get("Content-Type"),
		Filename:  header.Filename,
	}
	return upload, func() {
		_ = file.Close()
		cleanup()
	}, nil
}

// respondError answers before the stream opens. Only typed messages reach
// the client; anything else is a generic 500.
func (s *Service) respondError(c *gin.Context, err error) {
	status := platformerrors.HTTPStatus(err)
	message := domainanalysis.MsgProcessFailed
	if status != http.StatusInternalServerError {
		message = platformerrors.PublicMessage(err, message)
	}

	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "[HTTP] analysis request failed", "status", status, "error", err.Error())
	} else {
		s.logger.WarnContext(c.Request.Context(), "[HTTP] analysis request rejected", "status", status, "error", err.Error())
	}
	httptransport.AbortWithError(c, status, message)
}
