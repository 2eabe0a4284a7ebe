package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dfeirstein/the-skin-lab/internal/domain/analysis"
	"github.com/dfeirstein/the-skin-lab/internal/platform/logging"
)

// AnalyzePath is the analysis route relative to the server root.
const AnalyzePath = "/api/analyze-skin"

// Client posts photos to an analysis server and consumes the stream.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

// New returns a client for baseURL. httpClient defaults to one without a
// timeout because analyses can stream for minutes.
func New(baseURL string, httpClient *http.Client, logger *logging.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// Analyze uploads the photo and blocks until the stream ends. onContent, if
// set, sees every fragment as it arrives.
func (c *Client) Analyze(ctx context.Context, upload Upload, onContent func(string)) (*Outcome, error) {
	req, err := NewUploadRequest(ctx, c.baseURL+AnalyzePath, upload)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post analysis: %w", err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "analysis response", "status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"), "request_id", resp.Header.Get("X-Request-ID"))

	if resp.StatusCode != http.StatusOK {
		return nil, decodeErrorBody(resp)
	}

	return NewConsumer(onContent).Consume(resp.Body)
}

func decodeErrorBody(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload struct {
		Error string `json:"error"`
	}
	message := http.StatusText(resp.StatusCode)
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		message = payload.Error
	}
	return &AnalysisError{Status: resp.StatusCode, Message: message}
}

// UserMessage is what an end user sees for any failed analysis.
func UserMessage(error) string {
	return analysis.MsgConsumerFailed
}
