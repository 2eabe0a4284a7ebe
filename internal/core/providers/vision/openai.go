package vision

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/dfeirstein/the-skin-lab/internal/domain/analysis"
	platformerrors "github.com/dfeirstein/the-skin-lab/internal/platform/errors"
	"github.com/dfeirstein/the-skin-lab/internal/platform/logging"
)

// Config holds the hosted model settings.
type Config struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
}

// OpenAI streams completions from an OpenAI-compatible chat endpoint.
type OpenAI struct {
	config Config
	client *openai.Client
	logger *logging.Logger
}

func NewOpenAI(cfg Config, logger *logging.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, platformerrors.New(platformerrors.KindConfig, "vision.openai", "api key is required")
	}
	if cfg.Model == "" {
		return nil, platformerrors.New(platformerrors.KindConfig, "vision.openai", "model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	logger.DebugTag(logging.TagVision, "openai provider ready: model=%s base_url=%s", cfg.Model, clientConfig.BaseURL)
	return &OpenAI{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}, nil
}

// Stream sends one user message holding the instruction text and the image.
func (p *OpenAI) Stream(ctx context.Context, req analysis.ModelRequest) (analysis.FragmentStream, error) {
	request := openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: req.Instruction,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: req.ImageURL,
						},
					},
				},
			},
		},
		MaxCompletionTokens: req.MaxTokens,
		Stream:              true,
	}
	// Reasoning models reject anything but the default temperature.
	if p.config.Temperature > 0 {
		request.Temperature = float32(p.config.Temperature)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		p.logger.ErrorTag(logging.TagVision, "create stream failed: model=%s max_tokens=%d err=%v",
			p.config.Model, req.MaxTokens, err)
		return nil, platformerrors.Wrap(platformerrors.KindUpstream, "vision.openai.stream", "create chat completion stream", err)
	}
	return &openAIStream{stream: stream}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (string, error) {
	response, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", nil
	}
	return response.Choices[0].Delta.Content, nil
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
